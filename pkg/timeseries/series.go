// Package timeseries provides the sample/series model shared by all
// analysis stages: void detection, fixed-interval aggregation,
// cross-correlation gap filling and the calendar day index used by the
// drought components.
//
// A missing observation is represented by NaN. Every operation returns
// freshly allocated series; no stage mutates its input.
package timeseries

import (
	"fmt"
	"math"
	"time"
)

// Sample is a single timestamped observation. A NaN value marks a
// missing observation at a known timestamp.
type Sample struct {
	Time  time.Time
	Value float64
}

// Series is an ordered sequence of samples with strictly increasing
// timestamps.
type Series []Sample

// Missing returns the sentinel used for absent observations.
func Missing() float64 { return math.NaN() }

// IsMissing reports whether v is the missing-observation sentinel.
func IsMissing(v float64) bool { return math.IsNaN(v) }

// New validates that timestamps strictly increase and returns the
// samples as a Series.
func New(samples []Sample) (Series, error) {
	for i := 1; i < len(samples); i++ {
		if !samples[i].Time.After(samples[i-1].Time) {
			return nil, fmt.Errorf("timeseries: timestamps must strictly increase (index %d: %s then %s)",
				i, samples[i-1].Time, samples[i].Time)
		}
	}
	return Series(samples), nil
}

// Values returns the value column as a new slice.
func (s Series) Values() []float64 {
	vals := make([]float64, len(s))
	for i, smp := range s {
		vals[i] = smp.Value
	}
	return vals
}

// Times returns the timestamp column as a new slice.
func (s Series) Times() []time.Time {
	ts := make([]time.Time, len(s))
	for i, smp := range s {
		ts[i] = smp.Time
	}
	return ts
}

// ValidCount returns the number of non-missing samples.
func (s Series) ValidCount() int {
	n := 0
	for _, smp := range s {
		if !IsMissing(smp.Value) {
			n++
		}
	}
	return n
}

// LastValid returns the index of the last non-missing sample, or -1.
func (s Series) LastValid() int {
	for i := len(s) - 1; i >= 0; i-- {
		if !IsMissing(s[i].Value) {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of the series.
func (s Series) Clone() Series {
	out := make(Series, len(s))
	copy(out, s)
	return out
}

// Cumulative returns the running sum of the series, treating missing
// values as zero increments. The output carries no missing sentinels;
// use DetectVoids on the source series to recover gap locations.
func (s Series) Cumulative() Series {
	out := make(Series, len(s))
	total := 0.0
	for i, smp := range s {
		if !IsMissing(smp.Value) {
			total += smp.Value
		}
		out[i] = Sample{Time: smp.Time, Value: total}
	}
	return out
}
