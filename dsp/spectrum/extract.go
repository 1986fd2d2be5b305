package spectrum

import (
	"fmt"
	"math"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/cwbudde/algo-vecmath"
)

// Extractor computes magnitude spectra from audio buffers.
//
// FFT plans are cached per buffer length, so in steady state an extraction
// allocates only the output sample and reuses internal scratch buffers.
// An Extractor is not safe for concurrent use; the analyzer drives it from a
// single goroutine.
type Extractor struct {
	// GainDB is applied to all magnitudes as a linear factor 10^(GainDB/20).
	GainDB float64

	plans   map[int]*algofft.Plan[complex128]
	work    []complex128
	out     []complex128
	scratch []float64
}

// NewExtractor creates an extractor with the given gain in dB.
func NewExtractor(gainDB float64) *Extractor {
	return &Extractor{
		GainDB: gainDB,
		plans:  make(map[int]*algofft.Plan[complex128]),
	}
}

// Extract computes the one-sided magnitude spectrum of buf.
//
// The N real samples are transformed with an N-point FFT; bins 1..N/2 are
// returned with magnitude scaled by
//
//	2/N * 10^(GainDB/20)
//
// so that a full-scale sine within the buffer reads close to its time-domain
// amplitude times the gain factor. The DC bin is dropped.
//
// Returns an error satisfying errors.Is(err, ErrInvalidBuffer) for degenerate
// buffers, in which case the analysis pass should be skipped.
func (e *Extractor) Extract(buf Buffer) (Sample, error) {
	if err := buf.Validate(); err != nil {
		return Sample{}, err
	}

	n := len(buf.Volts)
	plan, err := e.plan(n)
	if err != nil {
		return Sample{}, err
	}

	if cap(e.work) < n {
		e.work = make([]complex128, n)
		e.out = make([]complex128, n)
	}
	work := e.work[:n]
	out := e.out[:n]
	for i, v := range buf.Volts {
		work[i] = complex(v, 0)
	}

	if err := plan.Forward(out, work); err != nil {
		return Sample{}, fmt.Errorf("spectrum: forward FFT failed: %w", err)
	}

	// One-sided spectrum without DC: bins 1..N/2.
	bins := n / 2
	period := buf.SamplePeriod()
	binWidth := 1 / (float64(n) * period)
	scale := 2 / float64(n) * math.Pow(10, e.GainDB/20)

	if cap(e.scratch) < 2*bins {
		e.scratch = make([]float64, 2*bins)
	}
	re := e.scratch[:bins]
	im := e.scratch[bins : 2*bins]
	for k := 0; k < bins; k++ {
		re[k] = real(out[k+1])
		im[k] = imag(out[k+1])
	}

	s := Sample{
		Freqs: make([]float64, bins),
		Mags:  make([]float64, bins),
	}
	vecmath.Magnitude(s.Mags, re, im)
	for k := 0; k < bins; k++ {
		s.Freqs[k] = float64(k+1) * binWidth
		s.Mags[k] *= scale
	}
	return s, nil
}

func (e *Extractor) plan(n int) (*algofft.Plan[complex128], error) {
	if p, ok := e.plans[n]; ok {
		return p, nil
	}
	p, err := algofft.NewPlan64(n)
	if err != nil {
		return nil, fmt.Errorf("spectrum: fft plan for %d samples: %w", n, err)
	}
	e.plans[n] = p
	return p, nil
}
