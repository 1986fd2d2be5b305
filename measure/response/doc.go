// Package response implements a frequency-response measurement engine for
// audio systems measured over an acoustic loopback.
//
// The central type is [Analyzer]: a single-goroutine engine that receives
// captured audio buffers and control messages over an inbox channel, runs
// each buffer through the spectral pipeline (FFT extraction, optional
// calibration, tone detection, time-windowed log-domain averaging), and
// publishes results to a [Display] collaborator. A [Generator]
// collaborator produces the stimulus tones and pulses.
//
// Three measurement stages build on the pipeline and run in sequence on
// the analyzer's dwell tick: a noise-floor measurement that samples the
// ambient level and derives the pulse spike threshold, an acoustic-delay
// measurement that times pulses through the loopback and sets the settle
// duration, and a frequency sweep that steps geometrically spaced tones
// across the configured band and records one amplitude per tone once the
// history window agrees on it.
//
// All engine state is confined to the goroutine running [Analyzer.Run];
// messages are the only way in, the Display interface the only way out.
package response
