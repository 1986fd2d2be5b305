package response

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/cwbudde/algo-response/measure/detect"
	"github.com/cwbudde/algo-response/measure/history"
	"github.com/cwbudde/algo-response/stats/level"
)

// Measurement timing and policy constants.
const (
	// startSettleDelay is the fixed pause between receiving a measurement
	// request and starting the first stage, so the room quiets down after
	// the user interaction.
	startSettleDelay = 2 * time.Second

	// defaultNoisePoints is the noise-floor sample count when the request
	// does not specify one.
	defaultNoisePoints = 10

	// spikeMarginDB is added to the measured noise maximum to form the
	// delay-measurement spike threshold: a pulse must clear ambient noise
	// by this margin to count.
	spikeMarginDB = 3.0

	// defaultSpikeThresholdDB is the arm threshold used when no noise
	// floor has been measured and the request does not carry one.
	defaultSpikeThresholdDB = -30.0

	// pulseTimeout bounds how long a pulse may remain undetected before
	// the attempt is retried.
	pulseTimeout = time.Second

	// volumeStepPerRetryDB is the generator volume escalation per retry.
	volumeStepPerRetryDB = 3.0

	// maxPulseRetries bounds the retries of a delay measurement before it
	// gives up and reports partial results.
	maxPulseRetries = 5

	// settleGrowthFactor scales the maximum measured acoustic delay into
	// the settle duration used by sweep analysis.
	settleGrowthFactor = 1.25

	// minStableEntries is how many matching history entries a sweep point
	// needs before its stability can be judged.
	minStableEntries = 3

	// stabilitySpreadDB is the maximum in-band power spread across the
	// matching history entries for a sweep point to count as stable.
	stabilitySpreadDB = 3.0

	// pointTimeoutFrac of the history window is the per-point time budget;
	// beyond it a sweep point is accepted regardless of spread so the
	// sweep cannot stall indefinitely.
	pointTimeoutFrac = 0.8
)

// machineState enumerates the measurement sequencer states.
type machineState int

const (
	stateIdle machineState = iota
	stateStartSettle
	stateNoiseInit
	stateNoiseMeasure
	stateDelayInit
	stateDelayArm
	stateDelayPulse
	stateDelayMeasure
	stateSweepInit
	stateSweepTone
	stateSweepMeasure
)

// String returns the state name.
func (s machineState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateStartSettle:
		return "start-settle"
	case stateNoiseInit:
		return "noise-init"
	case stateNoiseMeasure:
		return "noise-measure"
	case stateDelayInit:
		return "delay-init"
	case stateDelayArm:
		return "delay-arm"
	case stateDelayPulse:
		return "delay-pulse"
	case stateDelayMeasure:
		return "delay-measure"
	case stateSweepInit:
		return "sweep-init"
	case stateSweepTone:
		return "sweep-tone"
	case stateSweepMeasure:
		return "sweep-measure"
	default:
		return "unknown"
	}
}

// noiseRequest owns the progress of one noise-floor measurement.
type noiseRequest struct {
	points  int
	samples []float64 // total spectrum power per buffer [dB]
}

// delayRequest owns the progress of one acoustic-delay measurement.
type delayRequest struct {
	points           int
	spikeThresholdDB float64 // 0 = derive from noise floor

	freqs     []float64
	index     int
	samples   []float64 // measured delays [s]
	retries   int
	escalated bool
	nominal   float64 // generator volume to return to [dB]
	pulseAt   time.Time
	saved     *savedGeneratorState
}

// sweepRequest owns the progress of one frequency-sweep measurement.
type sweepRequest struct {
	freqs []float64 // planned tone frequencies

	index      int
	recFreqs   []float64 // accepted points
	recAmpls   []float64
	toneStart  time.Time
	pointStart time.Time
}

// machine sequences noise-floor, acoustic-delay, and frequency-sweep
// measurements. It runs on the analyzer goroutine: requests and buffer
// observations arrive as method calls, progress happens on [machine.tick].
type machine struct {
	cfg     *Config
	gen     Generator
	display Display
	log     *zap.Logger
	now     func() time.Time

	state    machineState
	deadline time.Time

	noise *noiseRequest
	delay *delayRequest
	sweep *sweepRequest

	// Results of completed stages.
	noiseResult level.Summary
	delayResult level.Summary
	spikeDB     float64
	hasSpikeDB  bool
	settle      time.Duration
}

func newMachine(cfg *Config, gen Generator, display Display, log *zap.Logger, now func() time.Time) *machine {
	return &machine{
		cfg:     cfg,
		gen:     gen,
		display: display,
		log:     log,
		now:     now,
	}
}

// sweepFrequencies spaces points geometrically from start to stop:
//
//	f_k = start * (stop/start)^(k/(points-1))
func sweepFrequencies(start, stop float64, points int) []float64 {
	if points < 1 {
		return nil
	}
	if points == 1 {
		return []float64{start}
	}
	out := make([]float64, points)
	ratio := stop / start
	for k := range out {
		out[k] = start * math.Pow(ratio, float64(k)/float64(points-1))
	}
	return out
}

// --- requests -------------------------------------------------------------

func (m *machine) requestNoise(points int) {
	if points <= 0 {
		points = defaultNoisePoints
	}
	m.noise = &noiseRequest{points: points}
	m.armStartSettle()
}

func (m *machine) requestDelay(points int, spikeThresholdDB float64) {
	if points <= 0 {
		points = m.cfg.SweepPoints
	}
	m.delay = &delayRequest{points: points, spikeThresholdDB: spikeThresholdDB}
	m.armStartSettle()
}

func (m *machine) requestSweep() {
	m.sweep = &sweepRequest{}
	m.armStartSettle()
}

func (m *machine) armStartSettle() {
	if m.state != stateIdle {
		return // joins the running sequence by priority when a stage ends
	}
	m.state = stateStartSettle
	m.deadline = m.now().Add(startSettleDelay)
	m.log.Info("measurement requested", zap.Duration("settle", startSettleDelay))
}

func (m *machine) cancelNoise() {
	if m.noise == nil {
		return
	}
	active := m.state == stateNoiseInit || m.state == stateNoiseMeasure
	m.noise = nil
	m.afterCancel(active)
}

func (m *machine) cancelDelay() {
	if m.delay == nil {
		return
	}
	active := m.state >= stateDelayInit && m.state <= stateDelayMeasure
	if m.delay.saved != nil {
		m.delay.saved.restore(m.gen)
	}
	m.delay = nil
	m.afterCancel(active)
}

func (m *machine) cancelSweep() {
	if m.sweep == nil {
		return
	}
	active := m.state >= stateSweepInit && m.state <= stateSweepMeasure
	if active {
		m.gen.PlayTone(0)
	}
	m.sweep = nil
	m.afterCancel(active)
}

func (m *machine) afterCancel(wasActive bool) {
	if wasActive {
		m.startPending()
		return
	}
	if m.state == stateStartSettle && m.noise == nil && m.delay == nil && m.sweep == nil {
		m.state = stateIdle
	}
}

// clearSweepResults drops the points recorded so far without stopping a
// running sweep.
func (m *machine) clearSweepResults() {
	if m.sweep == nil {
		return
	}
	m.sweep.recFreqs = m.sweep.recFreqs[:0]
	m.sweep.recAmpls = m.sweep.recAmpls[:0]
}

// stop cancels everything and restores any temporarily-changed generator
// state unconditionally.
func (m *machine) stop() {
	if m.delay != nil && m.delay.saved != nil {
		m.delay.saved.restore(m.gen)
	}
	m.gen.PlayTone(0)
	m.noise, m.delay, m.sweep = nil, nil, nil
	if m.state != stateIdle {
		m.log.Info("measurements stopped", zap.Stringer("state", m.state))
	}
	m.state = stateIdle
}

// --- scheduler tick -------------------------------------------------------

// tick advances the sequencer by one dwell period. All timers are monotonic
// deadlines checked here, never blocking sleeps, so a stop request is
// honored within one tick.
func (m *machine) tick() {
	now := m.now()
	switch m.state {
	case stateIdle:
	case stateStartSettle:
		if !now.Before(m.deadline) {
			m.startPending()
		}
	case stateNoiseInit:
		m.noise.samples = m.noise.samples[:0]
		m.state = stateNoiseMeasure
	case stateNoiseMeasure:
		// Samples arrive via observeSpectrum.
	case stateDelayInit:
		m.initDelay()
	case stateDelayArm:
		m.gen.ArmSpikeDetector(m.delaySpikeThreshold())
		m.state = stateDelayPulse
	case stateDelayPulse:
		d := m.delay
		d.pulseAt = m.gen.GeneratePulse(d.freqs[d.index])
		m.deadline = now.Add(pulseTimeout)
		m.state = stateDelayMeasure
	case stateDelayMeasure:
		m.tickDelayMeasure(now)
	case stateSweepInit:
		m.initSweep()
	case stateSweepTone:
		m.tickSweepTone(now)
	case stateSweepMeasure:
		// Point acceptance happens via observeSweep.
	}
}

// startPending enters the next requested stage, noise before delay before
// sweep, or returns to idle.
func (m *machine) startPending() {
	switch {
	case m.noise != nil:
		m.state = stateNoiseInit
	case m.delay != nil:
		m.state = stateDelayInit
	case m.sweep != nil:
		m.state = stateSweepInit
	default:
		m.state = stateIdle
		return
	}
	m.log.Info("starting measurement stage", zap.Stringer("state", m.state))
}

// --- noise floor ----------------------------------------------------------

// observeSpectrum feeds the total power of an analyzed buffer to a running
// noise-floor measurement.
func (m *machine) observeSpectrum(totalPowerDB float64) {
	if m.state != stateNoiseMeasure || m.noise == nil {
		return
	}
	n := m.noise
	n.samples = append(n.samples, totalPowerDB)
	if len(n.samples) < n.points {
		return
	}

	m.noiseResult = level.Summarize(n.samples)
	m.spikeDB = m.noiseResult.Max + spikeMarginDB
	m.hasSpikeDB = true
	m.log.Info("noise floor measured",
		zap.Int("points", m.noiseResult.Count),
		zap.Float64("minDB", m.noiseResult.Min),
		zap.Float64("avgDB", m.noiseResult.Avg),
		zap.Float64("maxDB", m.noiseResult.Max),
		zap.Float64("spikeThresholdDB", m.spikeDB))
	m.noise = nil
	m.display.NoiseFinished()
	m.startPending()
}

// --- acoustic delay -------------------------------------------------------

func (m *machine) initDelay() {
	d := m.delay
	d.saved = saveGeneratorState(m.gen)
	d.nominal = d.saved.volume
	m.gen.SetMode(ModePulse)

	start, stop := m.cfg.StartFreq, m.cfg.StopFreq
	if start > stop {
		start, stop = stop, start
	}
	d.freqs = sweepFrequencies(start, stop, d.points)
	d.index = 0
	d.retries = 0
	m.state = stateDelayArm
}

func (m *machine) delaySpikeThreshold() float64 {
	if m.delay != nil && m.delay.spikeThresholdDB != 0 {
		return m.delay.spikeThresholdDB
	}
	if m.hasSpikeDB {
		return m.spikeDB
	}
	return defaultSpikeThresholdDB
}

func (m *machine) tickDelayMeasure(now time.Time) {
	d := m.delay

	if peak, ok := m.gen.PulsePeak(); ok && d.pulseAt.Before(peak) {
		sample := peak.Sub(d.pulseAt).Seconds()
		d.samples = append(d.samples, sample)
		m.log.Debug("delay sample",
			zap.Float64("freq", d.freqs[d.index]),
			zap.Float64("delayS", sample),
			zap.Int("retries", d.retries))
		if d.escalated {
			// A retried attempt succeeded: back to nominal volume.
			m.gen.SetVolume(d.nominal)
			d.escalated = false
		}
		d.retries = 0
		d.index++
		if d.index >= len(d.freqs) {
			m.finishDelay(true)
		} else {
			m.state = stateDelayArm
		}
		return
	}

	if now.Before(m.deadline) {
		return
	}

	d.retries++
	if d.retries > maxPulseRetries {
		m.log.Warn("delay measurement gave up",
			zap.Float64("freq", d.freqs[d.index]),
			zap.Int("collected", len(d.samples)))
		m.finishDelay(false)
		return
	}
	// Escalate volume to overcome signal loss and try the same point again.
	m.gen.SetVolume(d.nominal + float64(d.retries)*volumeStepPerRetryDB)
	d.escalated = true
	m.state = stateDelayArm
}

// finishDelay records results (possibly partial), restores the generator,
// and moves on. Every exit path of the delay measurement funnels through
// here so the saved generator state cannot leak.
func (m *machine) finishDelay(complete bool) {
	d := m.delay
	m.delayResult = level.Summarize(d.samples)
	if m.delayResult.Count > 0 {
		m.settle = time.Duration(m.delayResult.Max * settleGrowthFactor * float64(time.Second))
	}
	d.saved.restore(m.gen)
	m.log.Info("delay measurement finished",
		zap.Bool("complete", complete),
		zap.Int("points", m.delayResult.Count),
		zap.Float64("minS", m.delayResult.Min),
		zap.Float64("avgS", m.delayResult.Avg),
		zap.Float64("maxS", m.delayResult.Max),
		zap.Duration("settle", m.settle))
	m.delay = nil
	m.display.DelayFinished()
	m.startPending()
}

// --- frequency sweep ------------------------------------------------------

func (m *machine) initSweep() {
	s := m.sweep
	start, stop := m.cfg.StartFreq, m.cfg.StopFreq
	if start > stop {
		start, stop = stop, start
	}
	points := m.cfg.SweepPoints
	s.freqs = sweepFrequencies(start, stop, points)
	s.index = 0
	s.recFreqs = make([]float64, 0, points)
	s.recAmpls = make([]float64, 0, points)
	m.state = stateSweepTone
	m.log.Info("sweep started",
		zap.Float64("startFreq", start),
		zap.Float64("stopFreq", stop),
		zap.Int("points", points))
}

func (m *machine) tickSweepTone(now time.Time) {
	s := m.sweep
	if s.index >= len(s.freqs) {
		m.finishSweep()
		return
	}
	f := s.freqs[s.index]
	m.gen.PlayTone(f)
	s.toneStart = now
	s.pointStart = now
	m.state = stateSweepMeasure
	m.log.Debug("sweep tone", zap.Int("point", s.index), zap.Float64("freq", f))
}

// observeSweep judges whether the current sweep point is ready, given the
// detector result for the newest buffer and the history summary for the
// expected frequency.
//
// A point is ready when the newest buffer found the stimulus, the tone has
// been active at least the settle duration, and at least minStableEntries
// history entries agree within stabilitySpreadDB. Once the point has
// consumed pointTimeoutFrac of the history time budget it is accepted
// regardless, so a marginal point cannot stall the sweep.
func (m *machine) observeSweep(det detect.Detection, summary history.StimulusSummary) {
	if m.state != stateSweepMeasure || m.sweep == nil {
		return
	}
	s := m.sweep
	f := s.freqs[s.index]
	if det.ExpectedFreq != f {
		return // buffer from a previous tone
	}

	now := m.now()
	ready := det.Found &&
		now.Sub(s.toneStart) >= m.settle &&
		summary.Matched >= minStableEntries &&
		summary.SpreadDB() <= stabilitySpreadDB

	if !ready {
		budget := time.Duration(pointTimeoutFrac * float64(m.cfg.HistoryWindow) * float64(time.Second))
		if now.Sub(s.pointStart) <= budget {
			return
		}
		m.log.Warn("sweep point accepted on timeout",
			zap.Int("point", s.index),
			zap.Float64("freq", f),
			zap.Float64("spreadDB", summary.SpreadDB()),
			zap.Int("matched", summary.Matched))
	}

	power := summary.Power.Avg
	if summary.Power.Count == 0 {
		power = det.PowerInBand
	}
	m.recordSweepPoint(f, math.Sqrt(power))
	s.index++
	m.state = stateSweepTone
}

// recordSweepPoint appends an accepted amplitude and republishes the sweep
// series. Writes beyond the planned point count are rejected.
func (m *machine) recordSweepPoint(freq, amplitude float64) {
	s := m.sweep
	if len(s.recAmpls) >= len(s.freqs) {
		m.log.Warn("sweep point overflow rejected", zap.Float64("freq", freq))
		return
	}
	s.recFreqs = append(s.recFreqs, freq)
	s.recAmpls = append(s.recAmpls, amplitude)
	m.display.PlotData(SeriesSweep, s.recFreqs, s.recAmpls)
}

func (m *machine) finishSweep() {
	m.gen.PlayTone(0)
	m.log.Info("sweep finished", zap.Int("points", len(m.sweep.recAmpls)))
	m.sweep = nil
	m.display.SweepFinished()
	m.startPending()
}
