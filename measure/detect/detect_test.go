package detect

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-response/dsp/spectrum"
)

// sineSample extracts the spectrum of a pure sine captured over n samples.
// n samples at rate n gives a 1 Hz bin width, so integer frequencies land
// exactly on bins.
func sineSample(t *testing.T, n int, freq, amp float64) spectrum.Sample {
	t.Helper()
	buf := spectrum.Buffer{
		Times: make([]float64, n),
		Volts: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		ts := float64(i) / float64(n)
		buf.Times[i] = ts
		buf.Volts[i] = amp * math.Sin(2*math.Pi*freq*ts)
	}
	s, err := spectrum.NewExtractor(0).Extract(buf)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestDetectPureTone(t *testing.T) {
	d := New(0.9)
	s := sineSample(t, 1024, 100, 1)

	det, err := d.Detect(s, 100)
	if err != nil {
		t.Fatal(err)
	}
	if !det.Found {
		t.Error("Found = false for pure tone at expected frequency")
	}
	if math.Abs(det.DetectedFreq-100) >= s.BinWidth()/4 {
		t.Errorf("DetectedFreq = %g, want within %g of 100", det.DetectedFreq, s.BinWidth()/4)
	}
	if det.Ratio() < 0.9 {
		t.Errorf("Ratio = %g, want > 0.9 for a pure tone", det.Ratio())
	}
}

func TestDetectRejectsOffFrequency(t *testing.T) {
	d := New(0.9)
	// Stimulus at 1.5x the expected frequency.
	s := sineSample(t, 1024, 150, 1)

	det, err := d.Detect(s, 100)
	if err != nil {
		t.Fatal(err)
	}
	if det.Found {
		t.Errorf("Found = true for tone at 1.5x expected (detected %g Hz)", det.DetectedFreq)
	}
	if det.Ratio() > 0.1 {
		t.Errorf("Ratio = %g, want near 0 off-frequency", det.Ratio())
	}
}

func TestDetectPowerInBand(t *testing.T) {
	d := New(0)
	s := sineSample(t, 1024, 100, 0.5)

	det, err := d.Detect(s, 100)
	if err != nil {
		t.Fatal(err)
	}

	// The tone is bin-aligned, so nearly all power sits in the center bin:
	// magnitude 0.5 -> power 0.25.
	if math.Abs(det.PowerInBand-0.25) > 1e-3 {
		t.Errorf("PowerInBand = %g, want ~0.25", det.PowerInBand)
	}
	if det.PowerTotal < det.PowerInBand {
		t.Errorf("PowerTotal = %g < PowerInBand = %g", det.PowerTotal, det.PowerInBand)
	}
}

func TestDetectDominanceWithoutFreqMatch(t *testing.T) {
	// A hand-built two-peak spectrum where the autocorrelation peak lands
	// away from the expected bin, but the band still dominates.
	s := spectrum.Sample{
		Freqs: make([]float64, 64),
		Mags:  make([]float64, 64),
	}
	for i := range s.Freqs {
		s.Freqs[i] = float64(i + 1)
	}
	s.Mags[40] = 1.0 // dominant peak away from expected
	s.Mags[9] = 0.9  // expected bin, strong but not the autocorr winner

	d := New(0)
	det, err := d.Detect(s, 10)
	if err != nil {
		t.Fatal(err)
	}
	if det.Found {
		t.Error("Found = true with ratio criterion disabled")
	}

	d.Threshold = 0.4
	det, err = d.Detect(s, 10)
	if err != nil {
		t.Fatal(err)
	}
	if !det.Found {
		t.Errorf("Found = false with ratio %g above threshold 0.4", det.Ratio())
	}
}

func TestDetectBandClampsAtEdges(t *testing.T) {
	s := spectrum.Sample{
		Freqs: []float64{1, 2, 3, 4},
		Mags:  []float64{1, 0, 0, 0},
	}

	d := New(0)
	det, err := d.Detect(s, 1)
	if err != nil {
		t.Fatal(err)
	}
	if det.PowerInBand != 1 {
		t.Errorf("PowerInBand = %g, want 1 (band clamped at spectrum edge)", det.PowerInBand)
	}
}

func TestDetectErrors(t *testing.T) {
	d := New(0)

	_, err := d.Detect(spectrum.Sample{Freqs: []float64{1}, Mags: []float64{1}}, 100)
	if !errors.Is(err, ErrEmptySpectrum) {
		t.Errorf("short spectrum err = %v, want ErrEmptySpectrum", err)
	}

	s := spectrum.Sample{Freqs: []float64{1, 2}, Mags: []float64{1, 1}}
	_, err = d.Detect(s, 0)
	if !errors.Is(err, ErrInvalidFreq) {
		t.Errorf("zero freq err = %v, want ErrInvalidFreq", err)
	}
}
