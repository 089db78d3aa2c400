package rainfall

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/interp"
)

// InterpParams control per-event curve fitting and bias correction.
type InterpParams struct {
	// NominalRate is the fixed intensity (mm/h) used to spread
	// singleton tips. Default 3.
	NominalRate float64
	// LowIntensityFloor (mm/h) is both the minimum intensity any
	// reconstructed minute may carry and, converted to a per-minute
	// volume, the convergence tolerance of the correction loop.
	// Default 0.1 (half the minimum realistic intensity).
	LowIntensityFloor float64
	// MaxIterations caps the bias-correction loop. Default 10.
	MaxIterations int
	// MaxSplineDeviation is the relative volume error beyond which the
	// spline fit is abandoned for linear interpolation. Default 0.25.
	MaxSplineDeviation float64
}

// DefaultInterpParams returns the standard reconstruction parameters.
func DefaultInterpParams() InterpParams {
	return InterpParams{
		NominalRate:        3,
		LowIntensityFloor:  0.1,
		MaxIterations:      10,
		MaxSplineDeviation: 0.25,
	}
}

// Validate rejects non-physical configurations.
func (p InterpParams) Validate() error {
	if p.NominalRate <= 0 {
		return fmt.Errorf("rainfall: nominal rate must be positive, got %g", p.NominalRate)
	}
	if p.LowIntensityFloor < 0 {
		return fmt.Errorf("rainfall: low-intensity floor must be non-negative, got %g", p.LowIntensityFloor)
	}
	if p.MaxIterations < 1 {
		return fmt.Errorf("rainfall: iteration cap must be at least 1, got %d", p.MaxIterations)
	}
	return nil
}

// EventRates is the reconstructed per-minute rainfall of one event.
// Rates[k] is the volume (mm) of the wall-clock minute ending at
// Start.Add(k minutes); Rates[0] ends at Start.
type EventRates struct {
	Start  time.Time
	Rates  []float64
	Target float64
	// Converged is false when the correction loop exhausted its
	// iterations without matching the target volume; the rates are
	// then a best-effort approximation.
	Converged bool
	// UsedLinear is true when the cubic fit was skipped (2-tip event)
	// or abandoned for excessive volume deviation.
	UsedLinear bool
}

// End returns the end of the last reconstructed minute.
func (r EventRates) End() time.Time {
	if len(r.Rates) == 0 {
		return r.Start
	}
	return r.Start.Add(time.Duration(len(r.Rates)-1) * time.Minute)
}

// Volume is the reconstructed total in mm.
func (r EventRates) Volume() float64 {
	total := 0.0
	for _, v := range r.Rates {
		total += v
	}
	return total
}

// InterpolateEvent reconstructs one event's per-minute rates. Events
// with at least three tips get a clamped cubic spline over the padded
// cumulative curve, two-tip events a linear fit, singletons a uniform
// spread at the nominal rate ending at the tip. Numeric degeneracy is
// never fatal: the result carries Converged=false instead.
func InterpolateEvent(ev Event, p InterpParams) EventRates {
	if len(ev.Tips) == 0 {
		return EventRates{Converged: true}
	}
	if ev.Singleton || len(ev.Tips) == 1 {
		return spreadSingleton(ev.Tips[0], p)
	}
	return fitEvent(ev, p)
}

// spreadSingleton distributes an isolated tip uniformly at the nominal
// rate over the minutes ending at the tip's timestamp.
func spreadSingleton(tip Tip, p InterpParams) EventRates {
	perMinute := p.NominalRate / 60
	minutes := int(math.Round(tip.Volume / perMinute))
	if minutes < 1 {
		minutes = 1
	}
	rates := make([]float64, minutes)
	for i := range rates {
		rates[i] = tip.Volume / float64(minutes)
	}
	return EventRates{
		Start:     ceilMinute(tip.Time).Add(-time.Duration(minutes-1) * time.Minute),
		Rates:     rates,
		Target:    tip.Volume,
		Converged: true,
	}
}

func fitEvent(ev Event, p InterpParams) EventRates {
	tips := ev.Tips
	n := len(tips)
	target := ev.Volume()

	// Pad with a zero-rate start half an inter-tip interval before the
	// first tip and a symmetric point after the last, so the fitted
	// curve starts and ends flat.
	startPad := tips[1].Time.Sub(tips[0].Time) / 2
	endPad := tips[n-1].Time.Sub(tips[n-2].Time) / 2
	origin := tips[0].Time.Add(-startPad)
	end := tips[n-1].Time.Add(endPad)

	xs := make([]float64, 0, n+2)
	ys := make([]float64, 0, n+2)
	xs = append(xs, 0)
	ys = append(ys, 0)
	cum := 0.0
	for _, tip := range tips {
		cum += tip.Volume
		xs = append(xs, tip.Time.Sub(origin).Seconds())
		ys = append(ys, cum)
	}
	xs = append(xs, end.Sub(origin).Seconds())
	ys = append(ys, cum)

	useLinear := n == 2
	curve, err := fitCurve(xs, ys, useLinear)
	if err != nil {
		curve, _ = fitCurve(xs, ys, true)
		useLinear = true
	}

	gridStart := ceilMinuteAfter(origin)
	gridEnd := ceilMinute(end)
	rates := resample(curve, origin, gridStart, gridEnd, xs[len(xs)-1])

	res := EventRates{Start: gridStart, Rates: rates, Target: target, UsedLinear: useLinear}
	clipDev := correctBias(&res, p)

	if !useLinear && clipDev > p.MaxSplineDeviation {
		// Clipping the spline's negative lobes distorted the volume
		// too much; redo linearly.
		curve, _ = fitCurve(xs, ys, true)
		res = EventRates{
			Start:      gridStart,
			Rates:      resample(curve, origin, gridStart, gridEnd, xs[len(xs)-1]),
			Target:     target,
			UsedLinear: true,
		}
		correctBias(&res, p)
	}
	return res
}

func fitCurve(xs, ys []float64, linear bool) (func(float64) float64, error) {
	if linear {
		var pl interp.PiecewiseLinear
		if err := pl.Fit(xs, ys); err != nil {
			return nil, err
		}
		return clampDomain(pl.Predict, xs), nil
	}
	var cc interp.ClampedCubic
	if err := cc.Fit(xs, ys); err != nil {
		return nil, err
	}
	return clampDomain(cc.Predict, xs), nil
}

// clampDomain pins evaluation to the fitted range so the curve is zero
// before the event start and constant after its end.
func clampDomain(predict func(float64) float64, xs []float64) func(float64) float64 {
	lo, hi := xs[0], xs[len(xs)-1]
	return func(x float64) float64 {
		if x < lo {
			x = lo
		}
		if x > hi {
			x = hi
		}
		return predict(x)
	}
}

// resample derives per-minute volumes as first differences of the
// cumulative curve on the wall-clock minute grid.
func resample(curve func(float64) float64, origin, gridStart, gridEnd time.Time, xMax float64) []float64 {
	count := int(gridEnd.Sub(gridStart)/time.Minute) + 1
	if count < 1 {
		count = 1
	}
	rates := make([]float64, count)
	prev := curve(0)
	for k := 0; k < count; k++ {
		x := gridStart.Add(time.Duration(k) * time.Minute).Sub(origin).Seconds()
		if x > xMax {
			x = xMax
		}
		c := curve(x)
		rates[k] = c - prev
		prev = c
	}
	return rates
}

// correctBias enforces the volume-conservation invariant: clip
// negative rates, lift sub-floor positives to the floor, rescale so
// the total matches the target, and iterate because rescaling can push
// rates back below the floor. Returns the relative volume deviation
// observed after the first clip/floor pass, which measures how badly
// the fitted curve undershot or overshot.
func correctBias(r *EventRates, p InterpParams) float64 {
	floor := p.LowIntensityFloor / 60 // mm per minute
	tol := floor
	if tol <= 0 {
		tol = 1e-9
	}
	clipDev := 0.0
	for iter := 0; iter < p.MaxIterations; iter++ {
		sum := 0.0
		for i, v := range r.Rates {
			if v < 0 {
				r.Rates[i] = 0
			} else if v > 0 && v < floor {
				r.Rates[i] = floor
			}
			sum += r.Rates[i]
		}
		if iter == 0 && r.Target > 0 {
			clipDev = math.Abs(sum-r.Target) / r.Target
		}
		if math.Abs(sum-r.Target) <= tol {
			r.Converged = true
			return clipDev
		}
		if sum <= 0 {
			return clipDev
		}
		scale := r.Target / sum
		for i := range r.Rates {
			r.Rates[i] *= scale
		}
	}
	r.Converged = math.Abs(r.Volume()-r.Target) <= tol
	return clipDev
}

func ceilMinute(t time.Time) time.Time {
	tr := t.Truncate(time.Minute)
	if tr.Equal(t) {
		return t
	}
	return tr.Add(time.Minute)
}

// ceilMinuteAfter returns the first minute boundary strictly after t.
func ceilMinuteAfter(t time.Time) time.Time {
	return t.Truncate(time.Minute).Add(time.Minute)
}
