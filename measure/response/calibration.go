package response

import (
	"gonum.org/v1/gonum/floats"

	"github.com/cwbudde/algo-response/dsp/spectrum"
)

// Curve is a reference frequency response used to calibrate measured
// spectra. Freqs must be strictly ascending; Mags holds the linear
// magnitude at each frequency.
type Curve struct {
	Freqs []float64
	Mags  []float64
}

// Valid reports whether the curve can be resampled onto a spectrum grid.
func (c Curve) Valid() bool {
	return len(c.Freqs) >= 2 && len(c.Freqs) == len(c.Mags)
}

// calDivisorFloor bounds the calibration divisor away from zero.
const calDivisorFloor = 1e-12

type calState int

const (
	calInactive calState = iota
	calActive
	calPendingRemoval
)

// calibration divides analyzed spectra by a reference curve. The curve is
// resampled onto the spectrum grid once and cached until the grid changes.
// Removal is latched so the analyzer emits the plot-removal notification
// exactly once, on the next buffer after the remove request.
type calibration struct {
	state calState
	curve Curve

	grid   []float64 // frequency grid of the cached resample
	onGrid []float64 // curve magnitudes on grid
}

// set installs a new curve and activates calibration. An unusable curve is
// ignored and the previous state kept.
func (c *calibration) set(curve Curve) bool {
	if !curve.Valid() {
		return false
	}
	c.curve = Curve{
		Freqs: append([]float64(nil), curve.Freqs...),
		Mags:  append([]float64(nil), curve.Mags...),
	}
	c.state = calActive
	c.grid = nil
	c.onGrid = nil
	return true
}

// off deactivates calibration but keeps the curve for a later set.
func (c *calibration) off() {
	if c.state == calActive {
		c.state = calInactive
	}
}

// remove discards the curve and latches a pending plot removal.
func (c *calibration) remove() {
	c.curve = Curve{}
	c.grid = nil
	c.onGrid = nil
	c.state = calPendingRemoval
}

// takeRemoval reports a latched removal and consumes it.
func (c *calibration) takeRemoval() bool {
	if c.state != calPendingRemoval {
		return false
	}
	c.state = calInactive
	return true
}

// apply divides the sample magnitudes in place by the curve resampled onto
// the sample grid. Inactive calibration leaves the sample untouched.
func (c *calibration) apply(s *spectrum.Sample) error {
	if c.state != calActive {
		return nil
	}
	if !floats.Equal(c.grid, s.Freqs) {
		onGrid, err := spectrum.ResampleLogLog(c.curve.Freqs, c.curve.Mags, s.Freqs)
		if err != nil {
			return err
		}
		c.grid = append(c.grid[:0], s.Freqs...)
		c.onGrid = onGrid
	}
	for i, d := range c.onGrid {
		if d < calDivisorFloor {
			d = calDivisorFloor
		}
		s.Mags[i] /= d
	}
	return nil
}
