package timeseries

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"
)

// FillOptions control cross-correlation gap filling.
type FillOptions struct {
	// MinR2 is the minimum coefficient of determination between the
	// two cumulative curves for filling to proceed. Defaults to 0.99.
	MinR2 float64
	// Mode is used when the two series have different native intervals
	// and the finer one must be re-aggregated to match the coarser.
	Mode AggMode
	// CutEnd truncates both outputs at the earlier of the two series'
	// last valid timestamps, so fills are never extrapolated beyond
	// the reliable record.
	CutEnd bool
	// RestoreNative puts each series' own trailing samples back,
	// unfilled, after a CutEnd truncation.
	RestoreNative bool
}

// FillResult carries both series after a fill attempt. When the
// correlation is too weak or the overlap too short, Filled is false,
// the series are returned unchanged and Diagnostic says why.
type FillResult struct {
	A, B       Series
	Slope      float64
	R2         float64
	Filled     bool
	FilledA    int
	FilledB    int
	Diagnostic string
}

// FillGaps fills missing values in each series from the other, using a
// through-origin regression between the cumulative curves built over
// timestamps where both series are valid. Missing A values become
// B/slope and missing B values become A*slope.
//
// A weak correlation is a data condition, not an error: the result is
// returned unfilled with a diagnostic.
func FillGaps(a, b Series, opt FillOptions) (FillResult, error) {
	if opt.MinR2 == 0 {
		opt.MinR2 = 0.99
	}
	if opt.MinR2 < 0 || opt.MinR2 > 1 {
		return FillResult{}, fmt.Errorf("timeseries: MinR2 must be in [0,1], got %g", opt.MinR2)
	}

	a, b, err := matchIntervals(a, b, opt.Mode)
	if err != nil {
		return FillResult{}, err
	}
	res := FillResult{A: a.Clone(), B: b.Clone()}

	bByTime := make(map[int64]float64, len(b))
	for _, smp := range b {
		bByTime[smp.Time.UnixNano()] = smp.Value
	}

	// Cumulative curves restricted to mutually valid timestamps.
	var cumA, cumB []float64
	sumA, sumB := 0.0, 0.0
	for _, smp := range a {
		bv, ok := bByTime[smp.Time.UnixNano()]
		if !ok || IsMissing(smp.Value) || IsMissing(bv) {
			continue
		}
		sumA += smp.Value
		sumB += bv
		cumA = append(cumA, sumA)
		cumB = append(cumB, sumB)
	}
	if len(cumA) <= 1 {
		res.Diagnostic = fmt.Sprintf("gap fill refused: only %d mutually valid samples", len(cumA))
		return res, nil
	}

	_, slope := stat.LinearRegression(cumA, cumB, nil, true)
	r := stat.Correlation(cumA, cumB, nil)
	res.Slope = slope
	res.R2 = r * r
	if res.R2 < opt.MinR2 || slope == 0 {
		res.Diagnostic = fmt.Sprintf("gap fill refused: R²=%.4f below %.4f", res.R2, opt.MinR2)
		return res, nil
	}

	aByTime := make(map[int64]float64, len(a))
	for _, smp := range a {
		aByTime[smp.Time.UnixNano()] = smp.Value
	}
	for i, smp := range res.A {
		if !IsMissing(smp.Value) {
			continue
		}
		if bv, ok := bByTime[smp.Time.UnixNano()]; ok && !IsMissing(bv) {
			res.A[i].Value = bv / slope
			res.FilledA++
		}
	}
	for i, smp := range res.B {
		if !IsMissing(smp.Value) {
			continue
		}
		if av, ok := aByTime[smp.Time.UnixNano()]; ok && !IsMissing(av) {
			res.B[i].Value = av * slope
			res.FilledB++
		}
	}
	res.Filled = true

	if opt.CutEnd {
		cut := cutPoint(a, b)
		tailA := tailAfter(a, cut)
		tailB := tailAfter(b, cut)
		res.A = truncateAfter(res.A, cut)
		res.B = truncateAfter(res.B, cut)
		if opt.RestoreNative {
			res.A = append(res.A, tailA...)
			res.B = append(res.B, tailB...)
		}
	}
	return res, nil
}

// matchIntervals re-aggregates the finer-sampled series onto the
// coarser series' native interval so both share one grid.
func matchIntervals(a, b Series, mode AggMode) (Series, Series, error) {
	da, db := MedianSpacing(a), MedianSpacing(b)
	if da == 0 || db == 0 || da == db {
		return a, b, nil
	}
	if da < db {
		agg, err := Aggregate(a, db, mode)
		if err != nil {
			return nil, nil, err
		}
		return agg.Series, b, nil
	}
	agg, err := Aggregate(b, da, mode)
	if err != nil {
		return nil, nil, err
	}
	return a, agg.Series, nil
}

func cutPoint(a, b Series) time.Time {
	ia, ib := a.LastValid(), b.LastValid()
	switch {
	case ia < 0 && ib < 0:
		return time.Time{}
	case ia < 0:
		return b[ib].Time
	case ib < 0:
		return a[ia].Time
	}
	if a[ia].Time.Before(b[ib].Time) {
		return a[ia].Time
	}
	return b[ib].Time
}

func truncateAfter(s Series, cut time.Time) Series {
	out := make(Series, 0, len(s))
	for _, smp := range s {
		if smp.Time.After(cut) {
			break
		}
		out = append(out, smp)
	}
	return out
}

func tailAfter(s Series, cut time.Time) Series {
	var out Series
	for _, smp := range s {
		if smp.Time.After(cut) {
			out = append(out, smp)
		}
	}
	return out
}
