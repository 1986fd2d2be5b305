package spectrum

import (
	"errors"
	"fmt"
	"math"
)

// Errors returned by buffer validation. All of them unwrap to
// [ErrInvalidBuffer] so callers can skip an analysis pass with a single
// errors.Is check.
var (
	ErrInvalidBuffer = errors.New("spectrum: invalid buffer")
	ErrShortBuffer   = fmt.Errorf("%w: fewer than 2 samples", ErrInvalidBuffer)
	ErrInvalidPeriod = fmt.Errorf("%w: sample period must be positive", ErrInvalidBuffer)
	ErrNonFinite     = fmt.Errorf("%w: non-finite sample value", ErrInvalidBuffer)
)

// Buffer is a captured audio waveform: parallel slices of sample times in
// seconds and voltages, with a uniform sample period. The caller owns the
// buffer exclusively until it is consumed by [Extractor.Extract].
type Buffer struct {
	Times []float64
	Volts []float64
}

// SamplePeriod returns the spacing between consecutive samples in seconds.
// It is only meaningful for a buffer that passes [Buffer.Validate].
func (b Buffer) SamplePeriod() float64 {
	if len(b.Times) < 2 {
		return 0
	}
	return b.Times[1] - b.Times[0]
}

// Duration returns the total time covered by the buffer in seconds.
func (b Buffer) Duration() float64 {
	return b.SamplePeriod() * float64(len(b.Volts))
}

// Validate checks that the buffer is analyzable: at least 2 samples, a
// positive sample period, matching slice lengths, and finite voltages.
func (b Buffer) Validate() error {
	if len(b.Volts) < 2 || len(b.Times) < 2 {
		return ErrShortBuffer
	}
	if len(b.Times) != len(b.Volts) {
		return fmt.Errorf("%w: %d times vs %d voltages", ErrInvalidBuffer, len(b.Times), len(b.Volts))
	}
	if b.SamplePeriod() <= 0 {
		return ErrInvalidPeriod
	}
	for _, v := range b.Volts {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ErrNonFinite
		}
	}
	return nil
}

// Sample is a one-sided magnitude spectrum with the DC bin removed.
// Freqs is strictly increasing and parallel to Mags; bin k of an N-sample
// buffer with period T sits at (k+1) / (N*T) Hz.
type Sample struct {
	Freqs []float64
	Mags  []float64
}

// BinWidth returns the frequency spacing between adjacent bins in Hz.
func (s Sample) BinWidth() float64 {
	if len(s.Freqs) < 2 {
		if len(s.Freqs) == 1 {
			return s.Freqs[0]
		}
		return 0
	}
	return s.Freqs[1] - s.Freqs[0]
}

// GridEqual reports whether the sample's frequency grid matches freqs
// exactly. History averaging uses this to decide whether an entry must be
// resampled before it can be accumulated.
func (s Sample) GridEqual(freqs []float64) bool {
	if len(s.Freqs) != len(freqs) {
		return false
	}
	for i, f := range s.Freqs {
		if f != freqs[i] {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the sample. The analyzer hands cloned samples
// to the history buffer so that later in-place calibration cannot alias
// stored entries.
func (s Sample) Clone() Sample {
	out := Sample{
		Freqs: make([]float64, len(s.Freqs)),
		Mags:  make([]float64, len(s.Mags)),
	}
	copy(out.Freqs, s.Freqs)
	copy(out.Mags, s.Mags)
	return out
}
