// Package hydrograph provides streamflow analyses that consume the
// regularized series produced by the reconstruction pipeline: baseflow
// separation, flow-duration curves and diversion/storage-release
// simulation.
package hydrograph

import (
	"fmt"
	"math"

	"github.com/hydronet/catchflow/pkg/timeseries"
)

// BaseflowParams control the recursive digital filter.
type BaseflowParams struct {
	// Alpha is the filter parameter; 0.925 is the usual daily value.
	Alpha float64
	// Passes is the number of filter sweeps, alternating direction.
	// Default 3 (forward, backward, forward).
	Passes int
}

// DefaultBaseflowParams returns the standard single-parameter setup.
func DefaultBaseflowParams() BaseflowParams {
	return BaseflowParams{Alpha: 0.925, Passes: 3}
}

// Validate rejects non-physical configurations.
func (p BaseflowParams) Validate() error {
	if p.Alpha <= 0 || p.Alpha >= 1 {
		return fmt.Errorf("hydrograph: filter alpha must be in (0,1), got %g", p.Alpha)
	}
	if p.Passes < 1 {
		return fmt.Errorf("hydrograph: pass count must be positive, got %d", p.Passes)
	}
	return nil
}

// BaseflowResult is the separated hydrograph. Baseflow and stormflow
// sum to the input at every valid sample; missing input samples stay
// missing in both components.
type BaseflowResult struct {
	Baseflow  timeseries.Series
	Stormflow timeseries.Series
	// Index is the baseflow fraction of total valid flow volume.
	Index float64
}

// SeparateBaseflow splits a discharge series into slow and quick
// components with a recursive single-parameter digital filter applied
// in alternating directions. Each contiguous valid segment is filtered
// independently, so gaps do not leak state across voids.
func SeparateBaseflow(q timeseries.Series, p BaseflowParams) (BaseflowResult, error) {
	if err := p.Validate(); err != nil {
		return BaseflowResult{}, err
	}

	base := make([]float64, len(q))
	for i, smp := range q {
		base[i] = smp.Value
	}

	for i := 0; i < len(q); {
		if timeseries.IsMissing(q[i].Value) {
			i++
			continue
		}
		j := i
		for j < len(q) && !timeseries.IsMissing(q[j].Value) {
			j++
		}
		filterSegment(base[i:j], p)
		i = j
	}

	res := BaseflowResult{
		Baseflow:  make(timeseries.Series, len(q)),
		Stormflow: make(timeseries.Series, len(q)),
	}
	totalFlow, totalBase := 0.0, 0.0
	for i, smp := range q {
		res.Baseflow[i] = timeseries.Sample{Time: smp.Time, Value: base[i]}
		res.Stormflow[i] = timeseries.Sample{Time: smp.Time, Value: smp.Value - base[i]}
		if timeseries.IsMissing(smp.Value) {
			res.Stormflow[i].Value = timeseries.Missing()
			continue
		}
		totalFlow += smp.Value
		totalBase += base[i]
	}
	if totalFlow > 0 {
		res.Index = totalBase / totalFlow
	} else {
		res.Index = math.NaN()
	}
	return res, nil
}

// filterSegment runs the alternating-direction recursive filter over
// one contiguous valid segment, reducing it to its baseflow in place.
func filterSegment(q []float64, p BaseflowParams) {
	n := len(q)
	if n < 2 {
		return
	}
	total := append([]float64(nil), q...)
	for pass := 0; pass < p.Passes; pass++ {
		quick := make([]float64, n)
		if pass%2 == 0 {
			for i := 1; i < n; i++ {
				quick[i] = p.Alpha*quick[i-1] + (1+p.Alpha)/2*(q[i]-q[i-1])
			}
		} else {
			for i := n - 2; i >= 0; i-- {
				quick[i] = p.Alpha*quick[i+1] + (1+p.Alpha)/2*(q[i]-q[i+1])
			}
		}
		for i := 0; i < n; i++ {
			qf := quick[i]
			if qf < 0 {
				qf = 0
			}
			b := q[i] - qf
			if b < 0 {
				b = 0
			}
			if b > total[i] {
				b = total[i]
			}
			q[i] = b
		}
	}
}
