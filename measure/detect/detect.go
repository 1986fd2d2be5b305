// Package detect decides whether a magnitude spectrum contains an expected
// stimulus tone and measures its power.
//
// Detection combines two criteria:
//
//   - An autocorrelation peak search over the magnitude sequence. The
//     spectrum is convolved with itself and the argmax of the result is
//     mapped back to a frequency; this is robust against phase and harmonic
//     content where a raw per-bin magnitude check is not.
//   - A dominance ratio: the power in the small band of bins around the
//     expected frequency divided by the total spectrum power.
//
// Either criterion passing marks the stimulus as found.
package detect

import (
	"errors"
	"fmt"
	"math"

	algofft "github.com/MeKo-Christian/algo-fft"
	"gonum.org/v1/gonum/floats"

	"github.com/cwbudde/algo-response/dsp/spectrum"
)

// Errors returned by detection.
var (
	ErrEmptySpectrum = errors.New("detect: spectrum needs at least 2 bins")
	ErrInvalidFreq   = errors.New("detect: expected frequency must be positive")
)

// bandHalfWidth is the number of bins on each side of the center bin that
// count toward the in-band power (the "bucket of interest").
const bandHalfWidth = 1

// Detection is the result of probing one spectrum for one stimulus frequency.
type Detection struct {
	ExpectedFreq float64
	DetectedFreq float64 // frequency of the autocorrelation peak
	PowerInBand  float64 // sum of squared magnitudes over the bucket of interest
	PowerTotal   float64 // sum of squared magnitudes over the whole spectrum
	Found        bool
}

// Ratio returns the fraction of total power concentrated in the bucket of
// interest, or 0 for an empty spectrum.
func (d Detection) Ratio() float64 {
	if d.PowerTotal <= 0 {
		return 0
	}
	return d.PowerInBand / d.PowerTotal
}

// Detector probes spectra for stimulus tones. FFT plans for the
// autocorrelation are cached per spectrum size; a Detector is not safe for
// concurrent use.
type Detector struct {
	// Threshold is the dominance ratio above which the stimulus counts as
	// found even without an autocorrelation frequency match. Zero or
	// negative disables the ratio criterion.
	Threshold float64

	plans  map[int]*algofft.Plan[complex128]
	padded []complex128
	freq   []complex128
}

// New creates a detector with the given dominance threshold.
func New(threshold float64) *Detector {
	return &Detector{
		Threshold: threshold,
		plans:     make(map[int]*algofft.Plan[complex128]),
	}
}

// Detect measures the expected stimulus frequency in s.
//
// The in-band power sums squared magnitudes over the bins within
// bandHalfWidth of the bin nearest expectedFreq. The autocorrelation peak at
// index k maps back to frequency (k/2 + 1) * binWidth; the frequency matches
// when it lies within a quarter bin of expectedFreq.
func (d *Detector) Detect(s spectrum.Sample, expectedFreq float64) (Detection, error) {
	n := len(s.Mags)
	if n < 2 || len(s.Freqs) != n {
		return Detection{}, ErrEmptySpectrum
	}
	if expectedFreq <= 0 {
		return Detection{}, ErrInvalidFreq
	}

	binWidth := s.BinWidth()
	det := Detection{
		ExpectedFreq: expectedFreq,
		PowerTotal:   floats.Dot(s.Mags, s.Mags),
	}

	// Bucket of interest: bins within bandHalfWidth of the bin nearest the
	// expected frequency. Index 0 holds the first bin above DC.
	center := int(math.Round(expectedFreq/binWidth)) - 1
	lo := center - bandHalfWidth
	hi := center + bandHalfWidth
	if lo < 0 {
		lo = 0
	}
	if hi > n-1 {
		hi = n - 1
	}
	for i := lo; i <= hi; i++ {
		det.PowerInBand += s.Mags[i] * s.Mags[i]
	}

	peak, err := d.autocorrPeak(s.Mags)
	if err != nil {
		return Detection{}, err
	}
	det.DetectedFreq = (float64(peak)/2 + 1) * binWidth

	freqMatch := math.Abs(det.DetectedFreq-expectedFreq) < binWidth/4
	dominant := d.Threshold > 0 && det.Ratio() > d.Threshold
	det.Found = freqMatch || dominant
	return det, nil
}

// autocorrPeak returns the argmax of the full self-convolution of mags,
// computed in the frequency domain with next-power-of-two zero padding.
func (d *Detector) autocorrPeak(mags []float64) (int, error) {
	n := len(mags)
	convLen := 2*n - 1
	fftSize := nextPowerOf2(convLen)

	plan, err := d.plan(fftSize)
	if err != nil {
		return 0, err
	}

	if cap(d.padded) < fftSize {
		d.padded = make([]complex128, fftSize)
		d.freq = make([]complex128, fftSize)
	}
	padded := d.padded[:fftSize]
	freq := d.freq[:fftSize]
	for i := range padded {
		padded[i] = 0
	}
	for i, v := range mags {
		padded[i] = complex(v, 0)
	}

	if err := plan.Forward(freq, padded); err != nil {
		return 0, fmt.Errorf("detect: forward FFT failed: %w", err)
	}
	for i := range freq {
		freq[i] *= freq[i]
	}
	if err := plan.Inverse(padded, freq); err != nil {
		return 0, fmt.Errorf("detect: inverse FFT failed: %w", err)
	}

	// The convolution values are non-negative up to rounding, so the real
	// part alone ranks the peak.
	best := 0
	bestVal := real(padded[0])
	for i := 1; i < convLen; i++ {
		if v := real(padded[i]); v > bestVal {
			bestVal = v
			best = i
		}
	}
	return best, nil
}

func (d *Detector) plan(n int) (*algofft.Plan[complex128], error) {
	if p, ok := d.plans[n]; ok {
		return p, nil
	}
	p, err := algofft.NewPlan64(n)
	if err != nil {
		return nil, fmt.Errorf("detect: fft plan for %d points: %w", n, err)
	}
	d.plans[n] = p
	return p, nil
}

// nextPowerOf2 returns the next power of 2 >= n.
func nextPowerOf2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p *= 2
	}
	return p
}
