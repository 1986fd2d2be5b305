// Command respmeter measures the frequency response of a simulated audio
// loopback and prints the result as a table.
//
// The simulated plant is a speaker/microphone pair with a low-frequency
// rolloff, a high-frequency rolloff, additive noise, and a fixed acoustic
// delay, so all three measurement stages have something real to find.
//
// Usage:
//
//	respmeter [flags]
//
// Examples:
//
//	respmeter -points 20
//	respmeter -start 200 -stop 8000 -points 30 -v
//	respmeter -config settings.json -save
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"sync"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/cwbudde/algo-response/dsp/spectrum"
	"github.com/cwbudde/algo-response/measure/response"
	"github.com/cwbudde/algo-response/stats/level"
)

func main() {
	start := flag.Float64("start", 100, "sweep start frequency in Hz")
	stop := flag.Float64("stop", 10000, "sweep stop frequency in Hz")
	points := flag.Int("points", 20, "number of sweep points")
	gainDB := flag.Float64("gain", 0, "spectrum gain in dB")
	window := flag.Float64("window", 1.0, "history averaging window in seconds")
	rate := flag.Float64("rate", 48000, "simulated sample rate in Hz")
	bufSize := flag.Int("bufsize", 4096, "simulated capture buffer size in samples")
	delay := flag.Duration("delay", 8*time.Millisecond, "simulated acoustic delay")
	noise := flag.Float64("noise", 0.002, "simulated noise amplitude")
	configPath := flag.String("config", "", "JSON settings file to load before measuring")
	save := flag.Bool("save", false, "write settings back to -config when done")
	verbose := flag.Bool("v", false, "verbose engine logging")
	flag.Parse()

	cfg := response.DefaultConfig()
	cfg.SetStartFreq(*start)
	cfg.SetStopFreq(*stop)
	cfg.SetSweepPoints(*points)
	cfg.SetGainDB(*gainDB)
	cfg.SetHistoryWindow(*window)

	err := run(cfg, *rate, *bufSize, *delay, *noise, *configPath, *save, *verbose)
	if err != nil {
		fmt.Fprintln(os.Stderr, "respmeter:", err)
		os.Exit(1)
	}
}

func run(cfg response.Config, rate float64, bufSize int, delay time.Duration,
	noise float64, configPath string, save, verbose bool) error {

	logger := zap.NewNop()
	if verbose {
		dev, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		logger = dev
		defer logger.Sync()
	}

	lb := &loopback{
		delay:    delay,
		noiseAmp: noise,
		volume:   -12,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	disp := &console{done: make(chan struct{})}
	a := response.New(lb, disp,
		response.WithConfig(cfg),
		response.WithLogger(logger))

	if configPath != "" {
		values, err := readSettings(configPath)
		if err != nil {
			return err
		}
		a.Send(response.LoadConfig{Values: values})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- a.Run(ctx) }()
	go feed(ctx, a, lb, bufSize, rate)

	a.Send(response.MeasureNoise{On: true, Points: 5})
	a.Send(response.MeasureDelay{On: true, Points: 3})
	a.Send(response.MeasureSweep{On: true})

	select {
	case <-disp.done:
	case <-ctx.Done():
		return fmt.Errorf("measurement timed out")
	}

	if err := printResults(os.Stdout, disp); err != nil {
		return err
	}

	if save && configPath != "" {
		reply := make(chan map[string]string, 1)
		a.Send(response.SaveConfig{Reply: reply})
		if err := writeSettings(configPath, <-reply); err != nil {
			return err
		}
	}

	cancel()
	<-runDone
	return nil
}

// feed synthesizes microphone buffers at the real-time capture rate and
// posts them to the analyzer, dropping buffers when it is busy.
func feed(ctx context.Context, a *response.Analyzer, lb *loopback, n int, rate float64) {
	period := time.Duration(float64(n) / rate * float64(time.Second))
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		buf, tone := lb.capture(n, rate)
		if tone > 0 {
			a.TrySend(response.MicDataSweep{
				Buffer:       buf,
				CapturedAt:   time.Now(),
				StimulusFreq: tone,
			})
		} else {
			a.TrySend(response.MicData{Buffer: buf, CapturedAt: time.Now()})
		}
	}
}

func printResults(w *os.File, disp *console) error {
	freqs, ampls := disp.results()
	if len(freqs) == 0 {
		return fmt.Errorf("sweep produced no points")
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "freq [Hz]\tamplitude\tlevel [dB]\t")
	for i := range freqs {
		fmt.Fprintf(tw, "%.1f\t%.6f\t%+.2f\t\n", freqs[i], ampls[i], level.AmplitudeDB(ampls[i]))
	}
	return tw.Flush()
}

func readSettings(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var values map[string]string
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return values, nil
}

func writeSettings(path string, values map[string]string) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// loopback simulates a sound card wired through a speaker/microphone pair:
// a smooth band-limited response, additive noise, and a fixed acoustic
// delay for the pulse detector.
type loopback struct {
	mu sync.Mutex

	mode   response.Mode
	volume float64
	tone   float64

	delay    time.Duration
	noiseAmp float64

	armed   bool
	peak    time.Time
	hasPeak bool

	rng *rand.Rand
}

func (l *loopback) PlayTone(freq float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tone = freq
}

func (l *loopback) GeneratePulse(freq float64) time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	if l.armed {
		l.peak = now.Add(l.delay)
		l.hasPeak = true
		l.armed = false
	}
	return now
}

func (l *loopback) SetMode(mode response.Mode) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.mode = mode
}

func (l *loopback) SetVolume(db float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.volume = db
}

func (l *loopback) Mode() response.Mode {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mode
}

func (l *loopback) Volume() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.volume
}

func (l *loopback) ArmSpikeDetector(thresholdDB float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.armed = true
	l.hasPeak = false
}

func (l *loopback) PulsePeak() (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	// The spike is only observable once the sound has arrived.
	if l.hasPeak && time.Now().After(l.peak) {
		return l.peak, true
	}
	return time.Time{}, false
}

// plantGain models the simulated response: a rolloff below 150 Hz and
// another above 6 kHz.
func plantGain(freq float64) float64 {
	lo := freq / math.Sqrt(freq*freq+150*150)
	hi := 6000 / math.Sqrt(freq*freq+6000*6000)
	return lo * hi
}

// capture synthesizes one buffer of what the microphone records, returning
// the stimulus frequency active during the capture (0 when silent).
func (l *loopback) capture(n int, rate float64) (spectrum.Buffer, float64) {
	l.mu.Lock()
	tone := l.tone
	mode := l.mode
	l.mu.Unlock()

	buf := spectrum.Buffer{
		Times: make([]float64, n),
		Volts: make([]float64, n),
	}
	stimulus := 0.0
	if mode == response.ModeTone && tone > 0 {
		stimulus = tone
	}
	for i := 0; i < n; i++ {
		t := float64(i) / rate
		buf.Times[i] = t
		v := l.noiseAmp * (l.rng.Float64()*2 - 1)
		if stimulus > 0 {
			v += 0.5 * plantGain(stimulus) * math.Sin(2*math.Pi*stimulus*t)
		}
		buf.Volts[i] = v
	}
	return buf, stimulus
}

// console collects sweep results and reports stage completion.
type console struct {
	mu    sync.Mutex
	freqs []float64
	ampls []float64

	once sync.Once
	done chan struct{}
}

func (c *console) PlotData(series string, freqs, mags []float64) {
	if series != response.SeriesSweep {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.freqs = append(c.freqs[:0], freqs...)
	c.ampls = append(c.ampls[:0], mags...)
}

func (c *console) RemovePlot(series string) {
	if series != response.SeriesSweep {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.freqs = c.freqs[:0]
	c.ampls = c.ampls[:0]
}

func (c *console) SweepFinished() {
	fmt.Fprintln(os.Stderr, "sweep finished")
	c.once.Do(func() { close(c.done) })
}

func (c *console) NoiseFinished() { fmt.Fprintln(os.Stderr, "noise floor measured") }
func (c *console) DelayFinished() { fmt.Fprintln(os.Stderr, "acoustic delay measured") }

func (c *console) results() ([]float64, []float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]float64(nil), c.freqs...), append([]float64(nil), c.ampls...)
}
