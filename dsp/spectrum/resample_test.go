package spectrum

import (
	"errors"
	"math"
	"testing"
)

func TestResampleLogLogRoundTrip(t *testing.T) {
	freqs := []float64{10, 20, 40, 80, 160}
	mags := []float64{1, 0.5, 2, 0.25, 1.5}

	out, err := ResampleLogLog(freqs, mags, freqs)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != len(freqs) {
		t.Fatalf("len = %d, want %d", len(out), len(freqs))
	}
	for i := range out {
		if math.Abs(out[i]-mags[i]) > 1e-12*mags[i] {
			t.Errorf("out[%d] = %g, want %g", i, out[i], mags[i])
		}
	}
}

func TestResampleLogLogLength(t *testing.T) {
	freqs := []float64{100, 200, 400}
	mags := []float64{1, 2, 4}

	for _, n := range []int{0, 1, 7, 64} {
		target := make([]float64, n)
		for i := range target {
			target[i] = 50 * math.Pow(1.1, float64(i))
		}
		out, err := ResampleLogLog(freqs, mags, target)
		if err != nil {
			t.Fatal(err)
		}
		if len(out) != n {
			t.Errorf("len(out) = %d, want %d", len(out), n)
		}
	}
}

func TestResampleLogLogInterpolatesLogLog(t *testing.T) {
	// Two points one octave apart; in log-log space the geometric midpoint
	// frequency must map to the geometric mean of the amplitudes.
	freqs := []float64{100, 200}
	mags := []float64{1, 4}
	mid := math.Sqrt(100 * 200)

	out, err := ResampleLogLog(freqs, mags, []float64{mid})
	if err != nil {
		t.Fatal(err)
	}
	want := math.Sqrt(1 * 4)
	if math.Abs(out[0]-want) > 1e-9 {
		t.Errorf("midpoint = %g, want %g", out[0], want)
	}
}

func TestResampleLogLogHoldsBoundaries(t *testing.T) {
	freqs := []float64{100, 200, 400}
	mags := []float64{2, 1, 0.5}

	out, err := ResampleLogLog(freqs, mags, []float64{10, 50, 99.9999, 400.0001, 1000, 20000})
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range []float64{2, 2, 2, 0.5, 0.5, 0.5} {
		if math.Abs(out[i]-want) > 1e-3*want {
			t.Errorf("out[%d] = %g, want ~%g (boundary hold)", i, out[i], want)
		}
	}
}

func TestResampleLogLogContinuousAtBoundary(t *testing.T) {
	// No discontinuity where the sentinel region meets the reference range.
	freqs := []float64{100, 200}
	mags := []float64{3, 3}

	target := []float64{99.999, 100, 100.001, 199.999, 200, 200.001}
	out, err := ResampleLogLog(freqs, mags, target)
	if err != nil {
		t.Fatal(err)
	}
	for i := range out {
		if math.Abs(out[i]-3) > 1e-6 {
			t.Errorf("out[%d] = %g, want 3", i, out[i])
		}
	}
}

func TestResampleLogLogClampsFloor(t *testing.T) {
	freqs := []float64{100, 200}
	mags := []float64{0, 0} // clamped to 1e-12 before log

	out, err := ResampleLogLog(freqs, mags, []float64{150})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(out[0]-ampFloor) > 1e-18 {
		t.Errorf("out[0] = %g, want %g", out[0], ampFloor)
	}
}

func TestResampleLogLogErrors(t *testing.T) {
	tests := []struct {
		name    string
		freqs   []float64
		mags    []float64
		wantErr error
	}{
		{"short reference", []float64{100}, []float64{1}, ErrShortReference},
		{"empty reference", nil, nil, ErrShortReference},
		{"length mismatch", []float64{100, 200}, []float64{1}, ErrReferenceMismatch},
		{"unordered", []float64{200, 100}, []float64{1, 1}, ErrReferenceOrder},
		{"duplicate freq", []float64{100, 100}, []float64{1, 1}, ErrReferenceOrder},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResampleLogLog(tt.freqs, tt.mags, []float64{150})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
