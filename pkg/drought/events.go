package drought

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/hydronet/catchflow/pkg/timeseries"
)

// EventParams control drought classification, pooling and filtering.
type EventParams struct {
	// PoolingDays merges droughts separated by a shorter non-drought
	// run. Default 10.
	PoolingDays int
	// MinDuration discards droughts shorter than this many days after
	// pooling. Default 10.
	MinDuration int
	// Smooth applies the centered 30-day moving average before
	// classification, matching the threshold estimation.
	Smooth bool
	// SmoothWindow is the moving-average window in days. Default 30.
	SmoothWindow int
	// HydroYearStart is the month opening the hydrological year used
	// for annual totals. Default October.
	HydroYearStart time.Month
}

// DefaultEventParams returns the standard 10-day pooling setup.
func DefaultEventParams() EventParams {
	return EventParams{
		PoolingDays:    10,
		MinDuration:    10,
		Smooth:         true,
		SmoothWindow:   30,
		HydroYearStart: time.October,
	}
}

func (p EventParams) withDefaults() EventParams {
	if p.PoolingDays == 0 {
		p.PoolingDays = 10
	}
	if p.MinDuration == 0 {
		p.MinDuration = 10
	}
	if p.SmoothWindow == 0 {
		p.SmoothWindow = 30
	}
	if p.HydroYearStart == 0 {
		p.HydroYearStart = time.October
	}
	return p
}

// Validate rejects out-of-range configurations.
func (p EventParams) Validate() error {
	p = p.withDefaults()
	if p.PoolingDays < 1 || p.MinDuration < 1 {
		return fmt.Errorf("drought: pooling window and minimum duration must be positive, got %d and %d",
			p.PoolingDays, p.MinDuration)
	}
	if p.HydroYearStart < time.January || p.HydroYearStart > time.December {
		return fmt.Errorf("drought: invalid hydrological year start month %d", p.HydroYearStart)
	}
	return nil
}

// Event is a pooled, duration-filtered drought.
type Event struct {
	Start time.Time
	// Days is the event duration including pooled non-drought days.
	Days int
	// Deficit is the sum of (value - threshold) over the event's days,
	// restricted to negative terms. It is signed: more negative means
	// more severe.
	Deficit float64
}

// Indices are the ten summary statistics of a drought analysis. When
// no event survives pooling and filtering, the duration and deficit
// statistics are NaN, never zero.
type Indices struct {
	Years           float64
	MeanAnnualTotal float64
	StdAnnualTotal  float64
	DroughtsPerYear float64
	MeanDuration    float64
	StdDuration     float64
	MaxDuration     float64
	MeanDeficit     float64
	StdDeficit      float64
	// WorstDeficit is the minimum (most negative) event deficit. The
	// source labels this "maximum"; the computed semantics are kept.
	WorstDeficit float64
}

// Result carries the indices, the surviving events and a diagnostic
// for degenerate outcomes.
type Result struct {
	Indices    Indices
	Events     []Event
	Diagnostic string
}

type dayRun struct {
	start   int // sample index
	length  int
	drought bool
}

// ExtractIndices classifies each day of the series against the
// seasonal threshold curve, pools droughts separated by short recovery
// runs, discards short droughts and computes the summary indices.
func ExtractIndices(daily timeseries.Series, threshold []float64, p EventParams) (Result, error) {
	p = p.withDefaults()
	if err := p.Validate(); err != nil {
		return Result{}, err
	}
	if len(threshold) != CurveLength {
		return Result{}, fmt.Errorf("drought: threshold curve must have %d entries, got %d", CurveLength, len(threshold))
	}
	if len(daily) == 0 {
		return Result{}, fmt.Errorf("drought: empty series")
	}

	vals := daily.Values()
	if p.Smooth {
		vals = timeseries.MovingAverage(vals, p.SmoothWindow)
	}

	drought := make([]bool, len(daily))
	deficitByDay := make([]float64, len(daily))
	for i, smp := range daily {
		if timeseries.IsMissing(vals[i]) {
			continue
		}
		th := threshold[timeseries.CalendarDayIndex(smp.Time)-1]
		if timeseries.IsMissing(th) {
			continue
		}
		if vals[i] < th {
			drought[i] = true
			deficitByDay[i] = vals[i] - th
		}
	}

	runs := runLengths(drought)

	// Pooling: a short recovery between two droughts belongs to the
	// drought. Merging only ever converts non-drought runs, so one
	// pass over the original runs is stable.
	for i, r := range runs {
		if !r.drought && r.length < p.PoolingDays && i > 0 && i+1 < len(runs) {
			for d := r.start; d < r.start+r.length; d++ {
				drought[d] = true
			}
		}
	}
	runs = runLengths(drought)

	// Duration filter: short droughts are reclassified, not merged.
	for _, r := range runs {
		if r.drought && r.length < p.MinDuration {
			for d := r.start; d < r.start+r.length; d++ {
				drought[d] = false
			}
		}
	}
	runs = runLengths(drought)

	var events []Event
	for _, r := range runs {
		if !r.drought {
			continue
		}
		deficit := 0.0
		for d := r.start; d < r.start+r.length; d++ {
			deficit += deficitByDay[d]
		}
		events = append(events, Event{Start: daily[r.start].Time, Days: r.length, Deficit: deficit})
	}

	res := Result{Events: events}
	res.Indices = computeIndices(daily, events, p)
	if len(events) == 0 {
		res.Diagnostic = "no drought events survive pooling and duration filtering"
	}
	return res, nil
}

func runLengths(state []bool) []dayRun {
	var runs []dayRun
	for i := 0; i < len(state); {
		j := i
		for j < len(state) && state[j] == state[i] {
			j++
		}
		runs = append(runs, dayRun{start: i, length: j - i, drought: state[i]})
		i = j
	}
	return runs
}

func computeIndices(daily timeseries.Series, events []Event, p EventParams) Indices {
	idx := Indices{Years: float64(len(daily)) / 365.25}

	totals := annualTotals(daily, p.HydroYearStart)
	if len(totals) > 0 {
		idx.MeanAnnualTotal = stat.Mean(totals, nil)
		idx.StdAnnualTotal = stat.StdDev(totals, nil)
	} else {
		idx.MeanAnnualTotal = math.NaN()
		idx.StdAnnualTotal = math.NaN()
	}

	if len(events) == 0 {
		idx.DroughtsPerYear = 0
		idx.MeanDuration = math.NaN()
		idx.StdDuration = math.NaN()
		idx.MaxDuration = math.NaN()
		idx.MeanDeficit = math.NaN()
		idx.StdDeficit = math.NaN()
		idx.WorstDeficit = math.NaN()
		return idx
	}

	durations := make([]float64, len(events))
	deficits := make([]float64, len(events))
	for i, ev := range events {
		durations[i] = float64(ev.Days)
		deficits[i] = ev.Deficit
	}
	idx.DroughtsPerYear = float64(len(events)) / idx.Years
	idx.MeanDuration = stat.Mean(durations, nil)
	idx.StdDuration = stat.StdDev(durations, nil)
	idx.MaxDuration = maxOf(durations)
	idx.MeanDeficit = stat.Mean(deficits, nil)
	idx.StdDeficit = stat.StdDev(deficits, nil)
	idx.WorstDeficit = minOf(deficits)
	return idx
}

// annualTotals sums the raw series per complete hydrological year.
func annualTotals(daily timeseries.Series, startMonth time.Month) []float64 {
	type acc struct {
		total float64
		days  int
	}
	byYear := make(map[int]*acc)
	for _, smp := range daily {
		y := smp.Time.Year()
		if smp.Time.Month() < startMonth {
			y--
		}
		a, ok := byYear[y]
		if !ok {
			a = &acc{}
			byYear[y] = a
		}
		a.days++
		if !timeseries.IsMissing(smp.Value) {
			a.total += smp.Value
		}
	}
	var totals []float64
	for _, a := range byYear {
		if a.days >= 365 {
			totals = append(totals, a.total)
		}
	}
	return totals
}

func maxOf(vals []float64) float64 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func minOf(vals []float64) float64 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
