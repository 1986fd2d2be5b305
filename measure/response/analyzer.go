package response

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/cwbudde/algo-response/dsp/spectrum"
	"github.com/cwbudde/algo-response/measure/detect"
	"github.com/cwbudde/algo-response/measure/history"
	"github.com/cwbudde/algo-response/stats/level"
)

const (
	// defaultDwell is the scheduler tick period of the analyzer loop.
	defaultDwell = 100 * time.Millisecond

	defaultInboxSize = 64
)

// Analyzer is the measurement engine. It owns the spectral pipeline, the
// history buffer, the calibration state, and the measurement sequencer; all
// of it is confined to the goroutine running [Analyzer.Run], so none of the
// internal state needs locking. Collaborators talk to the analyzer through
// messages and receive results through the Display interface.
type Analyzer struct {
	cfg   Config
	log   *zap.Logger
	dwell time.Duration
	now   func() time.Time
	inbox chan Message

	gen     Generator
	display Display

	extractor *spectrum.Extractor
	detector  *detect.Detector
	hist      *history.Buffer
	cal       calibration
	machine   *machine
}

// New creates an analyzer wired to the given collaborators.
func New(gen Generator, display Display, opts ...Option) *Analyzer {
	a := &Analyzer{
		cfg:     DefaultConfig(),
		log:     zap.NewNop(),
		dwell:   defaultDwell,
		now:     time.Now,
		gen:     gen,
		display: display,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.inbox == nil {
		a.inbox = make(chan Message, defaultInboxSize)
	}
	a.extractor = spectrum.NewExtractor(a.cfg.GainDB)
	a.detector = detect.New(a.cfg.DetectionThreshold)
	a.hist = history.NewWithClock(historyWindow(a.cfg.HistoryWindow), a.now)
	a.machine = newMachine(&a.cfg, a.gen, a.display, a.log, a.now)
	return a
}

func historyWindow(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

// Config returns a copy of the current parameters. It reads analyzer-owned
// state and is only safe before Run starts or after it returns.
func (a *Analyzer) Config() Config { return a.cfg }

// Send posts a message to the analyzer, blocking while the inbox is full.
func (a *Analyzer) Send(msg Message) { a.inbox <- msg }

// TrySend posts a message without blocking and reports whether it was
// accepted. Capture callbacks use it so a busy analyzer drops buffers
// instead of stalling the audio path.
func (a *Analyzer) TrySend(msg Message) bool {
	select {
	case a.inbox <- msg:
		return true
	default:
		return false
	}
}

// Run processes messages and drives the measurement sequencer until ctx is
// canceled. Any measurement still running at cancellation is stopped and
// the generator restored.
func (a *Analyzer) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.dwell)
	defer ticker.Stop()
	defer a.machine.stop()

	a.log.Info("analyzer running", zap.Duration("dwell", a.dwell))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-a.inbox:
			a.handle(msg)
		case <-ticker.C:
			a.machine.tick()
		}
	}
}

func (a *Analyzer) handle(msg Message) {
	switch msg := msg.(type) {
	case MicData:
		a.analyze(msg.Buffer, msg.CapturedAt, 0)
	case MicDataSweep:
		a.analyze(msg.Buffer, msg.CapturedAt, msg.StimulusFreq)
	case ApplyCal:
		a.handleCal(msg)
	case SetStartFreq:
		a.applyText("start frequency", msg.Text, a.cfg.SetStartFreqText)
	case SetStopFreq:
		a.applyText("stop frequency", msg.Text, a.cfg.SetStopFreqText)
	case SetGain:
		a.applyText("gain", msg.Text, a.cfg.SetGainDBText)
	case SetSweepPoints:
		a.applyText("sweep points", msg.Text, a.cfg.SetSweepPointsText)
	case SetHistoryWindow:
		a.applyText("history window", msg.Text, a.cfg.SetHistoryWindowText)
	case SetDetectionThreshold:
		a.applyText("detection threshold", msg.Text, a.cfg.SetDetectionThresholdText)
	case ClearSweep:
		a.machine.clearSweepResults()
		a.display.RemovePlot(SeriesSweep)
	case MeasureNoise:
		if msg.On {
			a.machine.requestNoise(msg.Points)
		} else {
			a.machine.cancelNoise()
		}
	case MeasureDelay:
		if msg.On {
			a.machine.requestDelay(msg.Points, msg.SpikeThresholdDB)
		} else {
			a.machine.cancelDelay()
		}
	case MeasureSweep:
		if msg.On {
			a.machine.requestSweep()
		} else {
			a.machine.cancelSweep()
		}
	case MeasureStop:
		a.machine.stop()
	case LoadConfig:
		a.cfg.ApplyMap(msg.Values)
		a.log.Info("config loaded",
			zap.Float64("startFreq", a.cfg.StartFreq),
			zap.Float64("stopFreq", a.cfg.StopFreq),
			zap.Float64("gainDB", a.cfg.GainDB),
			zap.Int("sweepPoints", a.cfg.SweepPoints),
			zap.Float64("historyWindow", a.cfg.HistoryWindow),
			zap.Float64("threshold", a.cfg.DetectionThreshold))
	case SaveConfig:
		if msg.Reply != nil {
			msg.Reply <- a.cfg.Map()
		}
	}
}

func (a *Analyzer) applyText(name, text string, set func(string) bool) {
	if !set(text) {
		a.log.Warn("parameter text rejected",
			zap.String("param", name), zap.String("text", text))
	}
}

func (a *Analyzer) handleCal(msg ApplyCal) {
	switch msg.Request {
	case CalSet:
		if !a.cal.set(msg.Curve) {
			a.log.Warn("calibration curve rejected",
				zap.Int("freqs", len(msg.Curve.Freqs)),
				zap.Int("mags", len(msg.Curve.Mags)))
			return
		}
		a.display.PlotData(SeriesCal, msg.Curve.Freqs, msg.Curve.Mags)
		a.log.Info("calibration set", zap.Int("points", len(msg.Curve.Freqs)))
	case CalOff:
		a.cal.off()
	case CalRemove:
		a.cal.remove()
	}
}

// analyze runs one captured buffer through the spectral pipeline:
// extraction, calibration, live plot, tone detection, history update,
// averaged plot, then sequencer observation. stimulusFreq 0 marks a buffer
// captured without an active stimulus.
func (a *Analyzer) analyze(buf spectrum.Buffer, capturedAt time.Time, stimulusFreq float64) {
	a.extractor.GainDB = a.cfg.GainDB
	sample, err := a.extractor.Extract(buf)
	if err != nil {
		a.log.Warn("buffer rejected", zap.Error(err))
		return
	}

	if a.cal.takeRemoval() {
		a.display.RemovePlot(SeriesCal)
	}
	if err := a.cal.apply(&sample); err != nil {
		// The spectrum stays uncalibrated for this buffer.
		a.log.Warn("calibration not applied", zap.Error(err))
	}
	a.display.PlotData(SeriesLive, sample.Freqs, sample.Mags)

	var det detect.Detection
	var stim *history.Stimulus
	if stimulusFreq > 0 {
		a.detector.Threshold = a.cfg.DetectionThreshold
		d, err := a.detector.Detect(sample, stimulusFreq)
		if err != nil {
			a.log.Warn("tone detection failed",
				zap.Float64("freq", stimulusFreq), zap.Error(err))
		} else {
			det = d
			stim = &history.Stimulus{
				ExpectedFreq: stimulusFreq,
				Found:        d.Found,
				PowerTotal:   d.PowerTotal,
				PowerInBand:  d.PowerInBand,
			}
		}
	}

	if capturedAt.IsZero() {
		capturedAt = a.now()
	}
	a.hist.SetWindow(historyWindow(a.cfg.HistoryWindow))
	a.hist.Add(history.Entry{
		CapturedAt:     capturedAt,
		Spectrum:       sample.Clone(),
		BufferDuration: buf.Duration(),
		Stimulus:       stim,
	})

	if avg, count := a.hist.AverageOnto(sample.Freqs); count > 0 {
		a.display.PlotData(SeriesAverage, sample.Freqs, avg)
	} else {
		a.display.PlotData(SeriesAverage, sample.Freqs, sample.Mags)
	}

	if stim != nil {
		a.machine.observeSweep(det, a.hist.StimulusSummary(stimulusFreq))
	} else {
		a.machine.observeSpectrum(level.PowerDB(floats.Dot(sample.Mags, sample.Mags)))
	}
}
