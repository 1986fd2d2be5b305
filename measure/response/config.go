package response

import (
	"strconv"
)

// Parameter bounds. Candidate values outside a bound clamp to it; malformed
// text never changes a value.
const (
	FreqMinHz = 50.0
	FreqMaxHz = 20000.0

	GainMinDB = 0.0
	GainMaxDB = 200.0

	SweepPointsMin = 1
	SweepPointsMax = 100

	HistoryWindowMinS = 0.0
	HistoryWindowMaxS = 10.0

	thresholdMin = 0.0
	thresholdMax = 1.0
)

// Config holds the user-settable analyzer parameters.
type Config struct {
	StartFreq          float64 // sweep start frequency [Hz]
	StopFreq           float64 // sweep stop frequency [Hz]
	GainDB             float64 // spectrum gain [dB]
	SweepPoints        int     // tones per sweep
	HistoryWindow      float64 // averaging window [s]
	DetectionThreshold float64 // dominance ratio for tone detection
}

// DefaultConfig returns the startup parameter set.
func DefaultConfig() Config {
	return Config{
		StartFreq:          FreqMinHz,
		StopFreq:           FreqMaxHz,
		GainDB:             60,
		SweepPoints:        100,
		HistoryWindow:      3,
		DetectionThreshold: 0.90,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// SetStartFreq assigns the sweep start frequency, clamped to the bound.
func (c *Config) SetStartFreq(hz float64) {
	c.StartFreq = clamp(hz, FreqMinHz, FreqMaxHz)
}

// SetStopFreq assigns the sweep stop frequency, clamped to the bound.
func (c *Config) SetStopFreq(hz float64) {
	c.StopFreq = clamp(hz, FreqMinHz, FreqMaxHz)
}

// SetGainDB assigns the spectrum gain, clamped to the bound.
func (c *Config) SetGainDB(db float64) {
	c.GainDB = clamp(db, GainMinDB, GainMaxDB)
}

// SetSweepPoints assigns the sweep point count, clamped to the bound.
func (c *Config) SetSweepPoints(points int) {
	if points < SweepPointsMin {
		points = SweepPointsMin
	}
	if points > SweepPointsMax {
		points = SweepPointsMax
	}
	c.SweepPoints = points
}

// SetHistoryWindow assigns the averaging window in seconds, clamped to the
// bound.
func (c *Config) SetHistoryWindow(seconds float64) {
	c.HistoryWindow = clamp(seconds, HistoryWindowMinS, HistoryWindowMaxS)
}

// SetDetectionThreshold assigns the detector dominance ratio, clamped to
// [0, 1].
func (c *Config) SetDetectionThreshold(ratio float64) {
	c.DetectionThreshold = clamp(ratio, thresholdMin, thresholdMax)
}

// Text setters parse user input. Malformed text is ignored and the previous
// value kept; the return value reports whether the input was applied.

// SetStartFreqText parses and assigns the sweep start frequency.
func (c *Config) SetStartFreqText(s string) bool {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return false
	}
	c.SetStartFreq(v)
	return true
}

// SetStopFreqText parses and assigns the sweep stop frequency.
func (c *Config) SetStopFreqText(s string) bool {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return false
	}
	c.SetStopFreq(v)
	return true
}

// SetGainDBText parses and assigns the spectrum gain.
func (c *Config) SetGainDBText(s string) bool {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return false
	}
	c.SetGainDB(v)
	return true
}

// SetSweepPointsText parses and assigns the sweep point count.
func (c *Config) SetSweepPointsText(s string) bool {
	v, err := strconv.Atoi(s)
	if err != nil {
		return false
	}
	c.SetSweepPoints(v)
	return true
}

// SetHistoryWindowText parses and assigns the averaging window.
func (c *Config) SetHistoryWindowText(s string) bool {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return false
	}
	c.SetHistoryWindow(v)
	return true
}

// SetDetectionThresholdText parses and assigns the detector threshold.
func (c *Config) SetDetectionThresholdText(s string) bool {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return false
	}
	c.SetDetectionThreshold(v)
	return true
}

// Persisted key names for the flat key/value config form.
const (
	keyStartFreq     = "start_freq"
	keyStopFreq      = "stop_freq"
	keyGainDB        = "gain_db"
	keySweepPoints   = "sweep_points"
	keyHistoryWindow = "history_window"
	keyThreshold     = "detection_threshold"
)

// Map returns the config as a flat key/value map, suitable for JSON
// serialization by a config store.
func (c Config) Map() map[string]string {
	return map[string]string{
		keyStartFreq:     strconv.FormatFloat(c.StartFreq, 'g', -1, 64),
		keyStopFreq:      strconv.FormatFloat(c.StopFreq, 'g', -1, 64),
		keyGainDB:        strconv.FormatFloat(c.GainDB, 'g', -1, 64),
		keySweepPoints:   strconv.Itoa(c.SweepPoints),
		keyHistoryWindow: strconv.FormatFloat(c.HistoryWindow, 'g', -1, 64),
		keyThreshold:     strconv.FormatFloat(c.DetectionThreshold, 'g', -1, 64),
	}
}

// ApplyMap applies values from a flat key/value map. Unknown keys and
// malformed values are ignored, so a partially corrupt stored config
// degrades field by field instead of failing wholesale.
func (c *Config) ApplyMap(values map[string]string) {
	setters := map[string]func(string) bool{
		keyStartFreq:     c.SetStartFreqText,
		keyStopFreq:      c.SetStopFreqText,
		keyGainDB:        c.SetGainDBText,
		keySweepPoints:   c.SetSweepPointsText,
		keyHistoryWindow: c.SetHistoryWindowText,
		keyThreshold:     c.SetDetectionThresholdText,
	}
	for key, set := range setters {
		if v, ok := values[key]; ok {
			set(v)
		}
	}
}
