package spectrum

import (
	"errors"
	"math"
	"testing"
)

// sineBuffer builds a buffer of n samples at the given rate containing a pure
// sine of the given frequency and amplitude.
func sineBuffer(n int, rate, freq, amp float64) Buffer {
	b := Buffer{
		Times: make([]float64, n),
		Volts: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		t := float64(i) / rate
		b.Times[i] = t
		b.Volts[i] = amp * math.Sin(2*math.Pi*freq*t)
	}
	return b
}

func TestBufferValidate(t *testing.T) {
	good := sineBuffer(64, 1000, 100, 1)

	tests := []struct {
		name    string
		mutate  func(*Buffer)
		wantErr error
	}{
		{"valid", func(*Buffer) {}, nil},
		{"one sample", func(b *Buffer) { b.Times = b.Times[:1]; b.Volts = b.Volts[:1] }, ErrShortBuffer},
		{"empty", func(b *Buffer) { b.Times = nil; b.Volts = nil }, ErrShortBuffer},
		{"length mismatch", func(b *Buffer) { b.Volts = b.Volts[:32] }, ErrInvalidBuffer},
		{"zero period", func(b *Buffer) { b.Times[1] = b.Times[0] }, ErrInvalidPeriod},
		{"nan sample", func(b *Buffer) { b.Volts[10] = math.NaN() }, ErrNonFinite},
		{"inf sample", func(b *Buffer) { b.Volts[10] = math.Inf(1) }, ErrNonFinite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := good
			b.Times = append([]float64(nil), good.Times...)
			b.Volts = append([]float64(nil), good.Volts...)
			tt.mutate(&b)

			err := b.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrInvalidBuffer) {
				t.Errorf("error %v does not unwrap to ErrInvalidBuffer", err)
			}
		})
	}
}

func TestExtractSine(t *testing.T) {
	// 1024 samples at 1024 Hz gives a 1 Hz bin width, so a 100 Hz sine
	// lands exactly on bin index 99 (DC removed).
	ex := NewExtractor(0)

	s, err := ex.Extract(sineBuffer(1024, 1024, 100, 0.5))
	if err != nil {
		t.Fatal(err)
	}

	if len(s.Freqs) != 512 || len(s.Mags) != 512 {
		t.Fatalf("bins = %d/%d, want 512/512", len(s.Freqs), len(s.Mags))
	}
	if s.Freqs[0] != 1 {
		t.Errorf("first freq = %g, want 1 (DC removed)", s.Freqs[0])
	}
	if got := s.BinWidth(); math.Abs(got-1) > 1e-9 {
		t.Errorf("bin width = %g, want 1", got)
	}

	// With the 2/N scaling a full-period sine reads its time-domain amplitude.
	peak := 0.0
	peakBin := -1
	for i, m := range s.Mags {
		if m > peak {
			peak = m
			peakBin = i
		}
	}
	if peakBin != 99 {
		t.Errorf("peak bin = %d (%g Hz), want 99 (100 Hz)", peakBin, s.Freqs[peakBin])
	}
	if math.Abs(peak-0.5) > 1e-6 {
		t.Errorf("peak magnitude = %g, want 0.5", peak)
	}
}

func TestExtractGain(t *testing.T) {
	buf := sineBuffer(1024, 1024, 100, 1)

	flat, err := NewExtractor(0).Extract(buf)
	if err != nil {
		t.Fatal(err)
	}
	boosted, err := NewExtractor(20).Extract(buf)
	if err != nil {
		t.Fatal(err)
	}

	// +20 dB is a 10x linear factor on every bin.
	for i := range flat.Mags {
		want := flat.Mags[i] * 10
		if math.Abs(boosted.Mags[i]-want) > 1e-9*math.Max(1, want) {
			t.Fatalf("bin %d: gain-scaled magnitude = %g, want %g", i, boosted.Mags[i], want)
		}
	}
}

func TestExtractRejectsInvalid(t *testing.T) {
	ex := NewExtractor(0)

	_, err := ex.Extract(Buffer{Times: []float64{0}, Volts: []float64{1}})
	if !errors.Is(err, ErrInvalidBuffer) {
		t.Errorf("Extract(short) = %v, want ErrInvalidBuffer", err)
	}

	bad := sineBuffer(64, 1000, 100, 1)
	bad.Volts[3] = math.NaN()
	_, err = ex.Extract(bad)
	if !errors.Is(err, ErrNonFinite) {
		t.Errorf("Extract(nan) = %v, want ErrNonFinite", err)
	}
}

func TestExtractPlanReuse(t *testing.T) {
	ex := NewExtractor(0)

	for i := 0; i < 3; i++ {
		if _, err := ex.Extract(sineBuffer(256, 1024, 64, 1)); err != nil {
			t.Fatal(err)
		}
	}
	if len(ex.plans) != 1 {
		t.Errorf("plan cache size = %d, want 1", len(ex.plans))
	}
}

func TestSampleGridEqual(t *testing.T) {
	s := Sample{Freqs: []float64{1, 2, 3}, Mags: []float64{1, 1, 1}}

	if !s.GridEqual([]float64{1, 2, 3}) {
		t.Error("GridEqual(same) = false")
	}
	if s.GridEqual([]float64{1, 2}) {
		t.Error("GridEqual(shorter) = true")
	}
	if s.GridEqual([]float64{1, 2, 4}) {
		t.Error("GridEqual(different) = true")
	}
}
