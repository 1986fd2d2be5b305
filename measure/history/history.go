// Package history keeps a time-windowed record of recent spectra and the
// stimulus metrics measured from them.
//
// The buffer averages magnitudes in the log domain: for each frequency the
// average of ln(magnitude) over all entries is exponentiated back to a
// linear amplitude. An arithmetic average is dominated by transient peaks in
// the window; the log average tracks perceived (dB) loudness stably.
package history

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/cwbudde/algo-response/dsp/spectrum"
	"github.com/cwbudde/algo-response/stats/level"
)

// ampFloor guards the logarithm during averaging, matching the floor used by
// the log-log resampler.
const ampFloor = 1e-12

// maxSummaryEntries bounds how many of the most recent matching entries feed
// the stimulus summary once more are available. Weighting the summary toward
// recent captures keeps the stability check responsive after a tone change.
const maxSummaryEntries = 3

// Stimulus records what the tone detector measured for one captured buffer.
type Stimulus struct {
	ExpectedFreq float64
	Found        bool
	PowerTotal   float64
	PowerInBand  float64
}

// Entry is one analysis pass kept in the history window.
type Entry struct {
	CapturedAt     time.Time
	Spectrum       spectrum.Sample
	BufferDuration float64 // seconds of audio covered by the buffer
	Stimulus       *Stimulus
}

// StimulusSummary aggregates the in-band power of recent entries that found
// a given stimulus frequency.
type StimulusSummary struct {
	// Matched counts all entries in the window that found the frequency.
	Matched int
	// Power summarizes linear in-band power over at most the
	// maxSummaryEntries most recent matches.
	Power level.Summary
	// Span is the capture-time distance between the oldest and newest
	// summarized entries.
	Span time.Duration
	// BufferTime is the total audio time covered by the summarized entries.
	BufferTime float64
}

// SpreadDB returns the max/min in-band power ratio of the summarized entries
// in dB; 0 when fewer than 2 entries are summarized.
func (s StimulusSummary) SpreadDB() float64 {
	if s.Power.Count < 2 {
		return 0
	}
	return level.SpreadDB([]float64{s.Power.Min, s.Power.Max})
}

// Buffer is a time-windowed ring of recent entries. It owns its entries
// exclusively; callers hand over cloned spectra. Not safe for concurrent
// use — the analyzer drives it from a single goroutine.
type Buffer struct {
	window  time.Duration
	entries []Entry

	// now is replaceable in tests.
	now func() time.Time
}

// New creates a history buffer covering the given time window.
func New(window time.Duration) *Buffer {
	return NewWithClock(window, time.Now)
}

// NewWithClock is New with a replaceable clock for deterministic aging.
func NewWithClock(window time.Duration, now func() time.Time) *Buffer {
	if now == nil {
		now = time.Now
	}
	return &Buffer{window: window, now: now}
}

// SetWindow changes the covered time window. Old entries age out on the
// next Add.
func (b *Buffer) SetWindow(window time.Duration) {
	if window < 0 {
		window = 0
	}
	b.window = window
}

// Window returns the covered time window.
func (b *Buffer) Window() time.Duration { return b.window }

// Len returns the number of retained entries.
func (b *Buffer) Len() int { return len(b.entries) }

// Latest returns the most recent entry and whether one exists.
func (b *Buffer) Latest() (Entry, bool) {
	if len(b.entries) == 0 {
		return Entry{}, false
	}
	return b.entries[len(b.entries)-1], true
}

// Add evicts aged-out entries and appends e. An entry captured exactly at
// now-window is already outside the window.
func (b *Buffer) Add(e Entry) {
	b.evict(b.now())
	b.entries = append(b.entries, e)
}

func (b *Buffer) evict(now time.Time) {
	cutoff := now.Add(-b.window)
	keep := 0
	for keep < len(b.entries) && !b.entries[keep].CapturedAt.After(cutoff) {
		keep++
	}
	if keep > 0 {
		b.entries = append(b.entries[:0], b.entries[keep:]...)
	}
}

// AverageOnto computes the log-domain average magnitude of all retained
// entries on the target frequency grid, resampling entries whose native grid
// differs. It returns the averaged magnitudes and the number of entries that
// contributed; with 0 contributors the caller should fall back to the live
// spectrum.
func (b *Buffer) AverageOnto(target []float64) ([]float64, int) {
	if len(target) == 0 {
		return nil, 0
	}

	acc := make([]float64, len(target))
	count := 0
	for _, e := range b.entries {
		mags := e.Spectrum.Mags
		if !e.Spectrum.GridEqual(target) {
			resampled, err := spectrum.ResampleLogLog(e.Spectrum.Freqs, mags, target)
			if err != nil {
				// A degenerate entry cannot be mapped onto the grid;
				// it simply does not contribute.
				continue
			}
			mags = resampled
		}
		for i, m := range mags {
			if m < ampFloor {
				m = ampFloor
			}
			acc[i] += math.Log(m)
		}
		count++
	}
	if count == 0 {
		return acc, 0
	}

	floats.Scale(1/float64(count), acc)
	for i := range acc {
		acc[i] = math.Exp(acc[i])
	}
	return acc, count
}

// StimulusSummary aggregates entries whose detector run found expectedFreq.
// Once more than maxSummaryEntries match, only the most recent ones feed the
// power statistics; Matched still counts all of them.
func (b *Buffer) StimulusSummary(expectedFreq float64) StimulusSummary {
	var matched []Entry
	for _, e := range b.entries {
		if e.Stimulus != nil && e.Stimulus.Found && e.Stimulus.ExpectedFreq == expectedFreq {
			matched = append(matched, e)
		}
	}

	out := StimulusSummary{Matched: len(matched)}
	if len(matched) == 0 {
		return out
	}

	recent := matched
	if len(recent) > maxSummaryEntries {
		recent = recent[len(recent)-maxSummaryEntries:]
	}

	powers := make([]float64, len(recent))
	for i, e := range recent {
		powers[i] = e.Stimulus.PowerInBand
		out.BufferTime += e.BufferDuration
	}
	out.Power = level.Summarize(powers)
	out.Span = recent[len(recent)-1].CapturedAt.Sub(recent[0].CapturedAt)
	return out
}
