package level_test

import (
	"fmt"

	"github.com/cwbudde/algo-response/stats/level"
)

func ExampleSummarize() {
	s := level.Summarize([]float64{2, 4, 9})
	fmt.Printf("count=%d min=%.1f avg=%.1f max=%.1f\n", s.Count, s.Min, s.Avg, s.Max)
	// Output: count=3 min=2.0 avg=5.0 max=9.0
}

func ExamplePowerDB() {
	fmt.Printf("%.1f\n", level.PowerDB(100))
	fmt.Printf("%.1f\n", level.FromDB(20))
	// Output:
	// 20.0
	// 10.0
}
