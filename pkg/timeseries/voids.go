package timeseries

import "time"

// VoidInterval is a maximal contiguous span with no valid data.
// Intervals produced by DetectVoids are sorted, non-overlapping and
// coalesced.
type VoidInterval struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the interval. The start is
// inclusive and the end exclusive, except for zero-width intervals
// (trailing voids) where the single instant is contained.
func (v VoidInterval) Contains(t time.Time) bool {
	if v.Start.Equal(v.End) {
		return t.Equal(v.Start)
	}
	return !t.Before(v.Start) && t.Before(v.End)
}

// Overlaps reports whether the interval intersects [from, to).
func (v VoidInterval) Overlaps(from, to time.Time) bool {
	if v.Start.Equal(v.End) {
		return !v.Start.Before(from) && v.Start.Before(to)
	}
	return v.Start.Before(to) && from.Before(v.End)
}

// DetectVoids scans a series for missing-value runs and returns them
// as coalesced gap intervals. A missing sample at index i spans
// [t[i], t[i+1]); a trailing missing sample closes at its own
// timestamp. An all-valid series yields an empty list.
func DetectVoids(s Series) []VoidInterval {
	var voids []VoidInterval
	for i, smp := range s {
		if !IsMissing(smp.Value) {
			continue
		}
		end := smp.Time
		if i+1 < len(s) {
			end = s[i+1].Time
		}
		if n := len(voids); n > 0 && !smp.Time.After(voids[n-1].End) {
			// Touching or overlapping the previous void: extend it.
			if end.After(voids[n-1].End) {
				voids[n-1].End = end
			}
			continue
		}
		voids = append(voids, VoidInterval{Start: smp.Time, End: end})
	}
	return voids
}
