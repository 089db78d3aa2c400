package hydrograph

import (
	"math"
	"testing"
	"time"

	"github.com/hydronet/catchflow/pkg/timeseries"
)

func dailyFlow(values []float64) timeseries.Series {
	s := make(timeseries.Series, len(values))
	t := time.Date(2017, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, v := range values {
		s[i] = timeseries.Sample{Time: t, Value: v}
		t = t.AddDate(0, 0, 1)
	}
	return s
}

// recessionHydrograph is a storm peak over a steady base.
func recessionHydrograph() timeseries.Series {
	vals := make([]float64, 60)
	for i := range vals {
		vals[i] = 5.0
	}
	peak := []float64{8, 20, 45, 32, 22, 16, 12, 9, 7, 6}
	copy(vals[20:], peak)
	return dailyFlow(vals)
}

func TestSeparateBaseflowBounds(t *testing.T) {
	q := recessionHydrograph()
	res, err := SeparateBaseflow(q, DefaultBaseflowParams())
	if err != nil {
		t.Fatal(err)
	}
	for i := range q {
		b := res.Baseflow[i].Value
		if b < 0 {
			t.Errorf("day %d: negative baseflow %v", i, b)
		}
		if b > q[i].Value+1e-9 {
			t.Errorf("day %d: baseflow %v exceeds total flow %v", i, b, q[i].Value)
		}
		sum := b + res.Stormflow[i].Value
		if math.Abs(sum-q[i].Value) > 1e-9 {
			t.Errorf("day %d: components sum to %v, expected %v", i, sum, q[i].Value)
		}
	}
	if res.Index <= 0 || res.Index >= 1 {
		t.Errorf("baseflow index %v out of (0,1) for a storm-over-base record", res.Index)
	}
	// The storm peak must be mostly stormflow.
	if res.Stormflow[22].Value < res.Baseflow[22].Value {
		t.Error("peak day should be stormflow dominated")
	}
}

func TestSeparateBaseflowHandlesGaps(t *testing.T) {
	q := recessionHydrograph()
	q[30].Value = timeseries.Missing()
	res, err := SeparateBaseflow(q, DefaultBaseflowParams())
	if err != nil {
		t.Fatal(err)
	}
	if !timeseries.IsMissing(res.Baseflow[30].Value) || !timeseries.IsMissing(res.Stormflow[30].Value) {
		t.Error("missing input must stay missing in both components")
	}
}

func TestBaseflowParamsValidate(t *testing.T) {
	if err := (BaseflowParams{Alpha: 1.2, Passes: 3}).Validate(); err == nil {
		t.Error("expected error for alpha outside (0,1)")
	}
	if err := (BaseflowParams{Alpha: 0.9, Passes: 0}).Validate(); err == nil {
		t.Error("expected error for zero passes")
	}
}

func TestFlowDurationCurve(t *testing.T) {
	vals := make([]float64, 100)
	for i := range vals {
		vals[i] = float64(i + 1) // 1..100
	}
	curve, err := FlowDurationCurve(dailyFlow(vals), 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(curve) != 100 {
		t.Fatalf("expected 100 points, got %d", len(curve))
	}
	for i := 1; i < len(curve); i++ {
		if curve[i].Value > curve[i-1].Value {
			t.Fatalf("FDC must be non-increasing: point %d (%v) > point %d (%v)",
				i, curve[i].Value, i-1, curve[i-1].Value)
		}
	}
	if curve[len(curve)-1].Exceedance != 100 {
		t.Errorf("last exceedance level: expected 100, got %v", curve[len(curve)-1].Exceedance)
	}
	// High flows are rarely exceeded, low flows almost always.
	if curve[0].Value < curve[len(curve)-1].Value {
		t.Error("low-exceedance value should exceed high-exceedance value")
	}
}

func TestFlowDurationCurveEmptySeries(t *testing.T) {
	curve, err := FlowDurationCurve(dailyFlow([]float64{math.NaN(), math.NaN()}), 10)
	if err != nil {
		t.Fatal(err)
	}
	for _, pt := range curve {
		if !timeseries.IsMissing(pt.Value) {
			t.Errorf("exceedance %v: expected missing value, got %v", pt.Exceedance, pt.Value)
		}
	}
}

func TestSimulateDiversionMassBalance(t *testing.T) {
	q := recessionHydrograph()
	p := DiversionParams{ThresholdFlow: 10, MaxRate: 8, Capacity: 30, ReleaseCoeff: 0.1}
	res, err := SimulateDiversion(q, p)
	if err != nil {
		t.Fatal(err)
	}
	finalStorage := res.Storage[len(res.Storage)-1].Value
	if diff := res.TotalDiverted - res.TotalReleased - finalStorage; math.Abs(diff) > 1e-9 {
		t.Errorf("mass balance violated by %v", diff)
	}
	for i := range q {
		if timeseries.IsMissing(q[i].Value) {
			continue
		}
		want := q[i].Value - res.Diverted[i].Value + res.Released[i].Value
		if math.Abs(res.Modified[i].Value-want) > 1e-9 {
			t.Errorf("day %d: modified flow %v, expected %v", i, res.Modified[i].Value, want)
		}
		if res.Diverted[i].Value > p.MaxRate+1e-9 {
			t.Errorf("day %d: diversion %v exceeds cap %v", i, res.Diverted[i].Value, p.MaxRate)
		}
		if res.Storage[i].Value > p.Capacity+1e-9 {
			t.Errorf("day %d: storage %v exceeds capacity %v", i, res.Storage[i].Value, p.Capacity)
		}
	}
	if res.TotalDiverted <= 0 {
		t.Error("the storm peak should trigger diversion")
	}
}

func TestSimulateDiversionValidation(t *testing.T) {
	if _, err := SimulateDiversion(nil, DiversionParams{MaxRate: -1, Capacity: 1}); err == nil {
		t.Fatal("expected validation error")
	}
}
