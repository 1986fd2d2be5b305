package response

import "time"

// Plot series names sent to the display collaborator.
const (
	SeriesLive    = "Live"
	SeriesAverage = "Average"
	SeriesSweep   = "Sweep"
	SeriesCal     = "Cal"
)

// Display receives analysis results for plotting. Implementations run
// outside the analyzer goroutine's ownership domain and must not retain the
// slices past the call.
type Display interface {
	PlotData(series string, freqs, mags []float64)
	RemovePlot(series string)
	SweepFinished()
	NoiseFinished()
	DelayFinished()
}

// Mode selects the tone generator's output style.
type Mode int

const (
	// ModeTone plays a continuous sine at the commanded frequency.
	ModeTone Mode = iota
	// ModePulse emits short pulses for delay measurement.
	ModePulse
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeTone:
		return "tone"
	case ModePulse:
		return "pulse"
	default:
		return "unknown"
	}
}

// Generator is the tone-generation collaborator. Commands are posted;
// Mode, Volume, and PulsePeak are synchronous queries answered from the
// generator's current state.
type Generator interface {
	// PlayTone starts a continuous tone; frequency 0 silences the output.
	PlayTone(freq float64)
	// GeneratePulse emits one measurement pulse at the given frequency and
	// returns the emission timestamp.
	GeneratePulse(freq float64) time.Time
	SetMode(mode Mode)
	// SetVolume sets the output volume in dB.
	SetVolume(db float64)

	Mode() Mode
	Volume() float64

	// ArmSpikeDetector prepares the loopback spike detector for the next
	// pulse; a spike must clear thresholdDB to register.
	ArmSpikeDetector(thresholdDB float64)
	// PulsePeak reports the timestamp of the detected spike since the last
	// arm, if any.
	PulsePeak() (time.Time, bool)
}

// savedGeneratorState remembers the generator settings that a delay
// measurement temporarily overrides. It is restored on every exit path.
type savedGeneratorState struct {
	mode   Mode
	volume float64
}

func saveGeneratorState(g Generator) *savedGeneratorState {
	return &savedGeneratorState{mode: g.Mode(), volume: g.Volume()}
}

func (s *savedGeneratorState) restore(g Generator) {
	g.SetMode(s.mode)
	g.SetVolume(s.volume)
}
