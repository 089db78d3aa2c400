// Package rainfall reconstructs regularly spaced rainfall-rate series
// from irregular tipping-bucket logs. Raw tips are segmented into
// discrete events by adaptive inter-tip time thresholds, each event's
// cumulative curve is fitted with a clamped cubic spline (with linear
// and uniform-rate fallbacks), resampled to one-minute resolution and
// bias-corrected so the reconstructed volume matches the logged tips.
package rainfall

import (
	"time"
)

// Tip is a single tipping-bucket record: a discrete rainfall volume
// registered at the instant the bucket tipped.
type Tip struct {
	Time   time.Time
	Volume float64 // mm
}

// Event is a temporally contiguous cluster of tips delimited by dry
// gaps longer than the maximum inter-tip time.
type Event struct {
	Tips []Tip
	// Singleton marks one-tip events, which are reconstructed by
	// uniform-rate distribution instead of curve fitting.
	Singleton bool
}

// Start returns the timestamp of the event's first tip.
func (e Event) Start() time.Time { return e.Tips[0].Time }

// End returns the timestamp of the event's last tip.
func (e Event) End() time.Time { return e.Tips[len(e.Tips)-1].Time }

// Duration is the span between the first and last tip.
func (e Event) Duration() time.Duration { return e.End().Sub(e.Start()) }

// Volume is the total tip volume of the event in mm.
func (e Event) Volume() float64 {
	total := 0.0
	for _, tip := range e.Tips {
		total += tip.Volume
	}
	return total
}
