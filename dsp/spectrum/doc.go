// Package spectrum converts captured audio buffers into one-sided magnitude
// spectra and maps amplitude curves between frequency grids.
//
// The [Extractor] turns a timestamped voltage buffer into a [Sample]: the
// magnitude of each FFT bin above DC, scaled by 2/N and the configured gain.
// [ResampleLogLog] translates an amplitude curve sampled at one frequency
// grid onto another by linear interpolation in log-log space, which keeps a
// resampled point on the straight line between its neighbours when viewed on
// a dB vs. log-frequency plot.
//
// # Usage
//
// Extract a spectrum from a capture buffer:
//
//	ex := spectrum.NewExtractor(60) // 60 dB gain
//	s, err := ex.Extract(buf)
//
// Map a calibration curve onto the live grid before dividing it out:
//
//	calOnGrid, err := spectrum.ResampleLogLog(cal.Freqs, cal.Mags, s.Freqs)
package spectrum
