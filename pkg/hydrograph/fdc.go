package hydrograph

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/hydronet/catchflow/pkg/timeseries"
)

// FDCPoint is one row of a flow-duration curve: the value equalled or
// exceeded the given percentage of the time.
type FDCPoint struct {
	Exceedance float64 // percent, 1..100
	Value      float64
}

// FlowDurationCurve computes the empirical exceedance table of a
// series over its valid samples, at the given number of evenly spaced
// exceedance levels (100 for the conventional 1%..100% table). A
// series with no valid samples yields an all-missing table.
func FlowDurationCurve(s timeseries.Series, points int) ([]FDCPoint, error) {
	if points < 1 {
		return nil, fmt.Errorf("hydrograph: flow-duration curve needs at least 1 point, got %d", points)
	}
	var vals []float64
	for _, smp := range s {
		if !timeseries.IsMissing(smp.Value) {
			vals = append(vals, smp.Value)
		}
	}
	sort.Float64s(vals)

	curve := make([]FDCPoint, points)
	for k := 1; k <= points; k++ {
		exceed := 100 * float64(k) / float64(points)
		curve[k-1] = FDCPoint{Exceedance: exceed, Value: timeseries.Missing()}
		if len(vals) > 0 {
			curve[k-1].Value = stat.Quantile(1-exceed/100, stat.Empirical, vals, nil)
		}
	}
	return curve, nil
}
