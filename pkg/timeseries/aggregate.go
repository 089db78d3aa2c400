package timeseries

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// AggMode selects how raw samples falling into a grid bucket are
// combined.
type AggMode int

const (
	// AggSum accumulates bucket members; used for tipping-bucket
	// rainfall where each sample is a discrete volume.
	AggSum AggMode = iota
	// AggAverage averages bucket members; used for stage/discharge
	// where samples are instantaneous readings.
	AggAverage
)

func (m AggMode) String() string {
	switch m {
	case AggSum:
		return "sum"
	case AggAverage:
		return "average"
	}
	return fmt.Sprintf("AggMode(%d)", int(m))
}

// SummaryStats are the basic statistics of a series over its non-void
// cells.
type SummaryStats struct {
	Sum  float64
	Mean float64
	Max  float64
	Min  float64
}

// AggResult is the full output of a fixed-interval aggregation. The
// void-value series is the complement of the regular series: it holds
// the pre-mask value at void cells and NaN at valid cells, so the two
// series tile the grid exactly.
type AggResult struct {
	Series     Series
	Cumulative Series
	VoidValues Series
	Interval   time.Duration
	Stats      SummaryStats
}

// Aggregate resamples an irregular series onto a uniform grid. Grid
// points run from the first timestamp rounded up to a whole interval
// through the last, and a bucket at grid time g collects raw samples
// in (g-interval, g].
//
// Degenerate data never fails: an empty series yields an empty result.
// A non-positive interval is a configuration error.
func Aggregate(s Series, interval time.Duration, mode AggMode) (AggResult, error) {
	if interval <= 0 {
		return AggResult{}, fmt.Errorf("timeseries: aggregation interval must be positive, got %s", interval)
	}
	if len(s) == 0 {
		return AggResult{Interval: interval, Stats: naNStats()}, nil
	}

	step := interval.Nanoseconds()
	firstIdx := ceilDiv(s[0].Time.UnixNano(), step)
	lastIdx := ceilDiv(s[len(s)-1].Time.UnixNano(), step)
	n := int(lastIdx-firstIdx) + 1
	loc := s[0].Time.Location()
	gridTime := func(cell int) time.Time {
		return time.Unix(0, (firstIdx+int64(cell))*step).In(loc)
	}

	sums := make([]float64, n)
	counts := make([]int, n)
	voidTouched := make([]bool, n)
	for _, smp := range s {
		cell := int(ceilDiv(smp.Time.UnixNano(), step) - firstIdx)
		if cell < 0 || cell >= n {
			continue
		}
		if IsMissing(smp.Value) {
			voidTouched[cell] = true
			continue
		}
		sums[cell] += smp.Value
		counts[cell]++
	}

	// Cells whose span intersects an input gap.
	voids := DetectVoids(s)
	for _, v := range voids {
		for cell := 0; cell < n; cell++ {
			g := gridTime(cell)
			if v.Overlaps(g.Add(-interval), g) {
				voidTouched[cell] = true
			}
		}
	}

	vals := make([]float64, n)
	unresolved := make([]bool, n)
	switch mode {
	case AggSum:
		for cell := 0; cell < n; cell++ {
			switch {
			case counts[cell] > 0:
				vals[cell] = sums[cell]
			case voidTouched[cell]:
				vals[cell] = 0
				unresolved[cell] = true
			default:
				vals[cell] = 0 // dry interval, a true zero
			}
		}
	case AggAverage:
		for cell := 0; cell < n; cell++ {
			if counts[cell] > 0 {
				vals[cell] = sums[cell] / float64(counts[cell])
			}
		}
		for cell := 0; cell < n; cell++ {
			if counts[cell] > 0 {
				continue
			}
			prevOK := cell > 0 && counts[cell-1] > 0
			nextOK := cell+1 < n && counts[cell+1] > 0
			if prevOK && nextOK {
				// Lone empty bucket between two populated ones.
				vals[cell] = (vals[cell-1] + vals[cell+1]) / 2
			} else {
				vals[cell] = 0
				unresolved[cell] = true
			}
		}
	default:
		return AggResult{}, fmt.Errorf("timeseries: unknown aggregation mode %v", mode)
	}

	// Sensor startup/shutdown artifact: an edge zero next to a
	// non-zero neighbor is a void, not a real zero.
	if n >= 2 {
		if vals[0] == 0 && counts[0] == 0 && vals[1] != 0 {
			unresolved[0] = true
			voidTouched[0] = true
		}
		if vals[n-1] == 0 && counts[n-1] == 0 && vals[n-2] != 0 {
			unresolved[n-1] = true
			voidTouched[n-1] = true
		}
	}

	out := make(Series, n)
	voidVals := make(Series, n)
	for cell := 0; cell < n; cell++ {
		g := gridTime(cell)
		out[cell] = Sample{Time: g, Value: vals[cell]}
		voidVals[cell] = Sample{Time: g, Value: Missing()}
		if unresolved[cell] && voidTouched[cell] {
			out[cell].Value = Missing()
			voidVals[cell].Value = vals[cell]
		}
	}

	return AggResult{
		Series:     out,
		Cumulative: out.Cumulative(),
		VoidValues: voidVals,
		Interval:   interval,
		Stats:      summarize(out),
	}, nil
}

// MedianSpacing estimates the native sampling interval of a series as
// the median inter-sample spacing. Returns zero for series with fewer
// than two samples.
func MedianSpacing(s Series) time.Duration {
	if len(s) < 2 {
		return 0
	}
	deltas := make([]float64, 0, len(s)-1)
	for i := 1; i < len(s); i++ {
		deltas = append(deltas, float64(s[i].Time.Sub(s[i-1].Time)))
	}
	sort.Float64s(deltas)
	return time.Duration(stat.Quantile(0.5, stat.Empirical, deltas, nil))
}

func summarize(s Series) SummaryStats {
	var vals []float64
	for _, smp := range s {
		if !IsMissing(smp.Value) {
			vals = append(vals, smp.Value)
		}
	}
	if len(vals) == 0 {
		return naNStats()
	}
	return SummaryStats{
		Sum:  floats.Sum(vals),
		Mean: stat.Mean(vals, nil),
		Max:  floats.Max(vals),
		Min:  floats.Min(vals),
	}
}

func naNStats() SummaryStats {
	return SummaryStats{Sum: math.NaN(), Mean: math.NaN(), Max: math.NaN(), Min: math.NaN()}
}

func ceilDiv(a, b int64) int64 {
	q := a / b
	if a%b > 0 {
		q++
	}
	return q
}
