package level

import (
	"math"
	"testing"
)

func TestSummarize(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   Summary
	}{
		{"empty", nil, Summary{}},
		{"single", []float64{3}, Summary{Count: 1, Min: 3, Avg: 3, Max: 3}},
		{"mixed", []float64{2, -1, 5}, Summary{Count: 3, Min: -1, Avg: 2, Max: 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Summarize(tt.values)
			if got != tt.want {
				t.Errorf("Summarize() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPowerDB(t *testing.T) {
	if got := PowerDB(100); math.Abs(got-20) > 1e-12 {
		t.Errorf("PowerDB(100) = %g, want 20", got)
	}
	if got := PowerDB(0); !math.IsInf(got, -1) {
		t.Errorf("PowerDB(0) = %g, want -Inf", got)
	}
	if got := PowerDB(-1); !math.IsInf(got, -1) {
		t.Errorf("PowerDB(-1) = %g, want -Inf", got)
	}
}

func TestAmplitudeDBRoundTrip(t *testing.T) {
	for _, db := range []float64{-40, -3, 0, 6, 60} {
		got := AmplitudeDB(FromDB(db))
		if math.Abs(got-db) > 1e-9 {
			t.Errorf("AmplitudeDB(FromDB(%g)) = %g", db, got)
		}
	}
}

func TestSpreadDB(t *testing.T) {
	// A factor of 2 in power is ~3.01 dB.
	got := SpreadDB([]float64{1, 1.5, 2})
	want := 10 * math.Log10(2)
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("SpreadDB = %g, want %g", got, want)
	}

	if got := SpreadDB([]float64{5, 5, 5}); got != 0 {
		t.Errorf("SpreadDB(identical) = %g, want 0", got)
	}
	if got := SpreadDB([]float64{7}); got != 0 {
		t.Errorf("SpreadDB(single) = %g, want 0", got)
	}
	if got := SpreadDB([]float64{0, 1}); !math.IsInf(got, 1) {
		t.Errorf("SpreadDB(zero floor) = %g, want +Inf", got)
	}
}
