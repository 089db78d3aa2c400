package rainfall

import (
	"math"
	"testing"
	"time"
)

// A single isolated 0.2mm tip at 12:00 spread at 3mm/h covers exactly
// 4 minutes ending at 12:00, each carrying 0.05mm.
func TestSingletonSpread(t *testing.T) {
	ev := Event{Tips: []Tip{tip(0, 0.2)}, Singleton: true}
	r := InterpolateEvent(ev, DefaultInterpParams())

	if len(r.Rates) != 4 {
		t.Fatalf("expected 4 minutes, got %d", len(r.Rates))
	}
	for i, v := range r.Rates {
		if math.Abs(v-0.05) > 1e-12 {
			t.Errorf("minute %d: expected 0.05, got %v", i, v)
		}
	}
	if !r.End().Equal(base) {
		t.Errorf("spread must end at the tip time %v, got %v", base, r.End())
	}
	if !r.Converged {
		t.Error("uniform spread is exact and must be converged")
	}
}

// Two tips 3 minutes apart: per-minute rates must sum to exactly the
// 0.4mm logged volume.
func TestTwoTipVolumeConservation(t *testing.T) {
	ev := Event{Tips: []Tip{tip(0, 0.2), tip(3*time.Minute, 0.2)}}
	r := InterpolateEvent(ev, DefaultInterpParams())

	if math.Abs(r.Volume()-0.4) > 1e-9 {
		t.Errorf("expected total 0.4, got %v", r.Volume())
	}
	if !r.UsedLinear {
		t.Error("2-tip events must use linear interpolation")
	}
	if !r.Converged {
		t.Error("expected convergence")
	}
	for i, v := range r.Rates {
		if v < 0 {
			t.Errorf("minute %d: negative rate %v", i, v)
		}
	}
}

// Volume conservation for spline-fitted events across a range of tip
// patterns, within the low-intensity-floor tolerance.
func TestSplineVolumeConservation(t *testing.T) {
	tests := []struct {
		name string
		tips []Tip
	}{
		{
			name: "steady event",
			tips: []Tip{tip(0, 0.2), tip(4*time.Minute, 0.2), tip(8*time.Minute, 0.2), tip(12*time.Minute, 0.2)},
		},
		{
			name: "accelerating burst",
			tips: []Tip{tip(0, 0.2), tip(20*time.Minute, 0.2), tip(25*time.Minute, 0.2), tip(26*time.Minute, 0.2), tip(27*time.Minute, 0.2)},
		},
		{
			name: "tapering tail",
			tips: []Tip{tip(0, 0.2), tip(time.Minute, 0.2), tip(2*time.Minute, 0.2), tip(10*time.Minute, 0.2), tip(40*time.Minute, 0.2)},
		},
	}
	p := DefaultInterpParams()
	tol := p.LowIntensityFloor / 60
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := Event{Tips: tt.tips}
			r := InterpolateEvent(ev, p)
			if !r.Converged {
				t.Fatalf("expected convergence, volume %v of target %v", r.Volume(), r.Target)
			}
			if math.Abs(r.Volume()-ev.Volume()) > tol {
				t.Errorf("volume %v deviates from target %v beyond %v", r.Volume(), ev.Volume(), tol)
			}
		})
	}
}

// The reconstructed cumulative curve must be non-decreasing: the bias
// correction clips every negative spline lobe.
func TestCumulativeMonotone(t *testing.T) {
	ev := Event{Tips: []Tip{
		tip(0, 0.2), tip(30*time.Second, 0.2), tip(25*time.Minute, 0.2), tip(26*time.Minute, 0.4),
	}}
	r := InterpolateEvent(ev, DefaultInterpParams())
	cum := 0.0
	for i, v := range r.Rates {
		if v < 0 {
			t.Fatalf("minute %d: negative rate %v breaks monotonicity", i, v)
		}
		cum += v
	}
	if math.Abs(cum-1.0) > 0.01 {
		t.Errorf("cumulative endpoint %v, expected ~1.0", cum)
	}
}

// Rates between zero and the floor must be lifted to the floor.
func TestLowIntensityFloorApplied(t *testing.T) {
	p := DefaultInterpParams()
	floor := p.LowIntensityFloor / 60
	ev := Event{Tips: []Tip{tip(0, 0.2), tip(50*time.Minute, 0.2), tip(55*time.Minute, 0.2)}}
	r := InterpolateEvent(ev, p)
	for i, v := range r.Rates {
		if v > 0 && v < floor-1e-12 {
			t.Errorf("minute %d: rate %v below floor %v", i, v, floor)
		}
	}
}

func TestInterpParamsValidate(t *testing.T) {
	p := DefaultInterpParams()
	p.NominalRate = 0
	if err := p.Validate(); err == nil {
		t.Error("expected error for zero nominal rate")
	}
	p = DefaultInterpParams()
	p.MaxIterations = 0
	if err := p.Validate(); err == nil {
		t.Error("expected error for zero iteration cap")
	}
}

func TestEmptyEvent(t *testing.T) {
	r := InterpolateEvent(Event{}, DefaultInterpParams())
	if len(r.Rates) != 0 || !r.Converged {
		t.Errorf("empty event must yield an empty converged result")
	}
}
