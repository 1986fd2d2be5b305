package response

import (
	"time"

	"github.com/cwbudde/algo-response/dsp/spectrum"
)

// Message is the tagged union of inbound analyzer messages. Collaborators
// send messages over the analyzer's inbox channel; the analyzer owns all
// state and processes one message at a time.
type Message interface {
	isMessage()
}

// MicData delivers a captured audio buffer for analysis.
type MicData struct {
	Buffer     spectrum.Buffer
	CapturedAt time.Time
}

// MicDataSweep delivers a captured buffer together with the stimulus that
// was active while it was recorded.
type MicDataSweep struct {
	Buffer       spectrum.Buffer
	CapturedAt   time.Time
	StimulusFreq float64
	EmittedAt    time.Time // when the generator started the stimulus
}

// CalRequest selects what an ApplyCal message does.
type CalRequest int

const (
	// CalSet activates calibration with the attached curve.
	CalSet CalRequest = iota
	// CalOff stops applying calibration but keeps the stored curve.
	CalOff
	// CalRemove stops applying calibration, drops the curve, and notifies
	// the display exactly once.
	CalRemove
)

// ApplyCal controls the calibration curve.
type ApplyCal struct {
	Request CalRequest
	Curve   Curve // consulted only for CalSet
}

// SetStartFreq carries user text for the sweep start frequency.
type SetStartFreq struct{ Text string }

// SetStopFreq carries user text for the sweep stop frequency.
type SetStopFreq struct{ Text string }

// SetGain carries user text for the spectrum gain in dB.
type SetGain struct{ Text string }

// SetSweepPoints carries user text for the sweep point count.
type SetSweepPoints struct{ Text string }

// SetHistoryWindow carries user text for the averaging window in seconds.
type SetHistoryWindow struct{ Text string }

// SetDetectionThreshold carries user text for the detector dominance ratio.
type SetDetectionThreshold struct{ Text string }

// ClearSweep discards recorded sweep points without stopping a measurement.
type ClearSweep struct{}

// MeasureNoise starts (On) or cancels a noise-floor measurement.
// Points <= 0 uses the default sample count.
type MeasureNoise struct {
	On     bool
	Points int
}

// MeasureDelay starts (On) or cancels an acoustic-delay measurement.
// Points <= 0 uses the configured sweep point count; SpikeThresholdDB 0
// uses the threshold derived from the last noise-floor measurement.
type MeasureDelay struct {
	On               bool
	Points           int
	SpikeThresholdDB float64
}

// MeasureSweep starts (On) or cancels a frequency-sweep measurement.
type MeasureSweep struct{ On bool }

// MeasureStop cancels every pending and running measurement.
type MeasureStop struct{}

// LoadConfig applies a stored flat key/value config.
type LoadConfig struct{ Values map[string]string }

// SaveConfig requests the current config as a flat key/value map. The
// analyzer replies on the provided channel; like every request message it
// is answered before the next message is processed.
type SaveConfig struct{ Reply chan<- map[string]string }

func (MicData) isMessage()               {}
func (MicDataSweep) isMessage()          {}
func (ApplyCal) isMessage()              {}
func (SetStartFreq) isMessage()          {}
func (SetStopFreq) isMessage()           {}
func (SetGain) isMessage()               {}
func (SetSweepPoints) isMessage()        {}
func (SetHistoryWindow) isMessage()      {}
func (SetDetectionThreshold) isMessage() {}
func (ClearSweep) isMessage()            {}
func (MeasureNoise) isMessage()          {}
func (MeasureDelay) isMessage()          {}
func (MeasureSweep) isMessage()          {}
func (MeasureStop) isMessage()           {}
func (LoadConfig) isMessage()            {}
func (SaveConfig) isMessage()            {}
