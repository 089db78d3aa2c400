package rainfall

import (
	"fmt"
	"time"
)

// SegmentParams control event segmentation. The inter-tip time bounds
// are derived from the bucket volume and the realistic intensity
// range: MaxT = bucket/minIntensity is the longest gap still inside
// one event, MinT = bucket/maxIntensity the shortest physically
// plausible gap between distinct tips.
type SegmentParams struct {
	BucketVolume float64 // mm per tip, e.g. 0.2
	MinIntensity float64 // mm/h, default 0.2
	MaxIntensity float64 // mm/h, default 127
	// PreGridCollapse collapses all tips onto a 1-minute grid before
	// segmentation instead of pairwise sub-MinT merging (the "mintip"
	// switch).
	PreGridCollapse bool
}

// DefaultSegmentParams returns the standard bounds for a 0.2 mm
// tipping bucket.
func DefaultSegmentParams() SegmentParams {
	return SegmentParams{
		BucketVolume: 0.2,
		MinIntensity: 0.2,
		MaxIntensity: 127,
	}
}

// Validate rejects non-physical configurations.
func (p SegmentParams) Validate() error {
	if p.BucketVolume <= 0 {
		return fmt.Errorf("rainfall: bucket volume must be positive, got %g", p.BucketVolume)
	}
	if p.MinIntensity <= 0 || p.MaxIntensity <= p.MinIntensity {
		return fmt.Errorf("rainfall: intensity bounds must satisfy 0 < min < max, got [%g, %g]",
			p.MinIntensity, p.MaxIntensity)
	}
	return nil
}

// MaxT is the maximum inter-tip time inside one event.
func (p SegmentParams) MaxT() time.Duration {
	return time.Duration(p.BucketVolume / p.MinIntensity * float64(time.Hour))
}

// MinT is the minimum plausible inter-tip time; closer pairs are
// merged.
func (p SegmentParams) MinT() time.Duration {
	return time.Duration(p.BucketVolume / p.MaxIntensity * float64(time.Hour))
}

// SegmentResult holds the events plus observational diagnostics.
type SegmentResult struct {
	Events         []Event
	EventCount     int
	SingletonCount int
	MeanDuration   time.Duration
	MergedTips     int
	SplitTips      int
}

// Segment partitions a tip log into rainfall events. Tips must be in
// chronological order. The passes are: merge (or grid-collapse) of
// implausibly close tips, half-tip splitting of long in-event gaps,
// then boundary detection at gaps exceeding MaxT.
func Segment(tips []Tip, p SegmentParams) (SegmentResult, error) {
	if err := p.Validate(); err != nil {
		return SegmentResult{}, err
	}
	for i := 1; i < len(tips); i++ {
		if !tips[i].Time.After(tips[i-1].Time) {
			return SegmentResult{}, fmt.Errorf("rainfall: tips must be in strictly increasing time order (index %d)", i)
		}
	}
	if len(tips) == 0 {
		return SegmentResult{}, nil
	}

	var res SegmentResult
	var merged []Tip
	if p.PreGridCollapse {
		merged = collapseToMinuteGrid(tips)
		res.MergedTips = len(tips) - len(merged)
	} else {
		merged, res.MergedTips = mergeCloseTips(tips, p.MinT())
	}

	split := splitLongGaps(merged, p.MaxT())
	res.SplitTips = len(split) - len(merged)

	maxT := p.MaxT()
	var events []Event
	var current []Tip
	for i, tip := range split {
		if i > 0 && tip.Time.Sub(split[i-1].Time) > maxT {
			events = append(events, newEvent(current))
			current = nil
		}
		current = append(current, tip)
	}
	events = append(events, newEvent(current))

	res.Events = events
	res.EventCount = len(events)
	var totalDur time.Duration
	for _, ev := range events {
		if ev.Singleton {
			res.SingletonCount++
		}
		totalDur += ev.Duration()
	}
	res.MeanDuration = totalDur / time.Duration(len(events))
	return res, nil
}

func newEvent(tips []Tip) Event {
	return Event{Tips: tips, Singleton: len(tips) == 1}
}

// mergeCloseTips combines tips separated by at most minT into one tip
// carrying the summed volume and the later timestamp. A single forward
// pass handles chains: each kept tip keeps absorbing successors until
// the gap opens up.
func mergeCloseTips(tips []Tip, minT time.Duration) ([]Tip, int) {
	out := make([]Tip, 0, len(tips))
	mergedCount := 0
	for _, tip := range tips {
		if n := len(out); n > 0 && tip.Time.Sub(out[n-1].Time) <= minT {
			out[n-1].Volume += tip.Volume
			out[n-1].Time = tip.Time
			mergedCount++
			continue
		}
		out = append(out, tip)
	}
	return out, mergedCount
}

// collapseToMinuteGrid sums all tips falling in the same (t-1m, t]
// minute bucket into one tip at the minute boundary.
func collapseToMinuteGrid(tips []Tip) []Tip {
	out := make([]Tip, 0, len(tips))
	for _, tip := range tips {
		t := tip.Time
		if !t.Equal(t.Truncate(time.Minute)) {
			t = t.Truncate(time.Minute).Add(time.Minute)
		}
		if n := len(out); n > 0 && out[n-1].Time.Equal(t) {
			out[n-1].Volume += tip.Volume
			continue
		}
		out = append(out, Tip{Time: t, Volume: tip.Volume})
	}
	return out
}

// splitLongGaps inserts a synthetic half-tip at the midpoint of gaps
// in (MaxT/2, MaxT]: the later tip contributes half its volume at the
// midpoint and keeps the other half at its own time. Gaps beyond MaxT
// are left intact; they become event boundaries.
func splitLongGaps(tips []Tip, maxT time.Duration) []Tip {
	out := make([]Tip, 0, len(tips))
	for i, tip := range tips {
		if i > 0 {
			gap := tip.Time.Sub(tips[i-1].Time)
			if gap > maxT/2 && gap <= maxT {
				mid := tips[i-1].Time.Add(gap / 2)
				out = append(out, Tip{Time: mid, Volume: tip.Volume / 2})
				out = append(out, Tip{Time: tip.Time, Volume: tip.Volume / 2})
				continue
			}
		}
		out = append(out, tip)
	}
	return out
}
