package response

import (
	"time"

	"go.uber.org/zap"
)

// Option configures an Analyzer at construction time.
type Option func(*Analyzer)

// WithLogger sets the structured logger. The default discards all output.
func WithLogger(log *zap.Logger) Option {
	return func(a *Analyzer) {
		if log != nil {
			a.log = log
		}
	}
}

// WithConfig sets the initial parameters. Values outside the documented
// bounds clamp the same way runtime updates do.
func WithConfig(cfg Config) Option {
	return func(a *Analyzer) {
		a.cfg.SetStartFreq(cfg.StartFreq)
		a.cfg.SetStopFreq(cfg.StopFreq)
		a.cfg.SetGainDB(cfg.GainDB)
		a.cfg.SetSweepPoints(cfg.SweepPoints)
		a.cfg.SetHistoryWindow(cfg.HistoryWindow)
		a.cfg.SetDetectionThreshold(cfg.DetectionThreshold)
	}
}

// WithDwell sets the scheduler tick period of the analyzer loop.
func WithDwell(d time.Duration) Option {
	return func(a *Analyzer) {
		if d > 0 {
			a.dwell = d
		}
	}
}

// WithClock replaces the wall clock, making measurement timing
// deterministic in tests.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) {
		if now != nil {
			a.now = now
		}
	}
}

// WithInboxSize sets the message inbox capacity.
func WithInboxSize(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.inbox = make(chan Message, n)
		}
	}
}
