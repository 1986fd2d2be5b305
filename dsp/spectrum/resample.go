package spectrum

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Errors returned by [ResampleLogLog].
var (
	ErrShortReference    = errors.New("spectrum: reference curve needs at least 2 points")
	ErrReferenceMismatch = errors.New("spectrum: reference freq/mag length mismatch")
	ErrReferenceOrder    = errors.New("spectrum: reference frequencies must be strictly increasing")
)

// ampFloor is the clamp applied before taking logarithms, so a zero
// magnitude interpolates as a very small value instead of -Inf.
const ampFloor = 1e-12

func clampedLog(v float64) float64 {
	if v < ampFloor {
		v = ampFloor
	}
	return math.Log(v)
}

// ResampleLogLog maps an amplitude curve sampled at refFreqs onto the target
// frequency grid.
//
// Both axes are interpolated in the log domain: a resampled point lies on the
// straight line between its bracketing reference points when plotted as dB
// against log frequency. Target frequencies outside the reference range hold
// the nearest boundary value. That extrapolation is implemented by prepending
// and appending sentinel points one log-frequency step outside the reference
// range which replicate the boundary log-amplitude, so the interpolation
// formula stays uniform with no boundary branches.
//
// The output always has len(target) values, and resampling a curve onto its
// own grid returns the original magnitudes (up to the 1e-12 amplitude floor).
func ResampleLogLog(refFreqs, refMags, target []float64) ([]float64, error) {
	m := len(refFreqs)
	if m < 2 {
		return nil, ErrShortReference
	}
	if len(refMags) != m {
		return nil, fmt.Errorf("%w: %d != %d", ErrReferenceMismatch, m, len(refMags))
	}

	// Padded log-domain reference: index i+1 holds reference point i, with
	// sentinels at 0 and m+1.
	logF := make([]float64, m+2)
	logA := make([]float64, m+2)
	for i := 0; i < m; i++ {
		if i > 0 && refFreqs[i] <= refFreqs[i-1] {
			return nil, fmt.Errorf("%w: index %d", ErrReferenceOrder, i)
		}
		logF[i+1] = clampedLog(refFreqs[i])
		logA[i+1] = clampedLog(refMags[i])
	}
	stepLo := logF[2] - logF[1]
	stepHi := logF[m] - logF[m-1]
	logF[0] = logF[1] - stepLo
	logA[0] = logA[1]
	logF[m+1] = logF[m] + stepHi
	logA[m+1] = logA[m]

	out := make([]float64, len(target))
	for i, f := range target {
		// First reference index with freq >= f, shifted by 1 for the
		// prepended sentinel.
		idx := sort.SearchFloat64s(refFreqs, f) + 1

		x1, x2 := logF[idx-1], logF[idx]
		y1, y2 := logA[idx-1], logA[idx]

		x := clampedLog(f)
		y := y2
		if x2 != x1 {
			y = y1 + (y2-y1)/(x2-x1)*(x-x1)
		}
		out[i] = math.Exp(y)
	}
	return out, nil
}
