// Package drought derives seasonal low-flow/low-rainfall threshold
// curves from long daily records and extracts pooled drought events
// and summary indices against them.
//
// All threshold curves share one 366-entry day-of-year convention: in
// non-leap years dates past 28 February are shifted up by one index so
// a calendar date always lands on the same entry (see
// timeseries.CalendarDayIndex).
package drought

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"

	"github.com/hydronet/catchflow/pkg/timeseries"
)

// CurveLength is the fixed length of every threshold curve.
const CurveLength = 366

// Method selects one of the four threshold estimators.
type Method string

const (
	MethodDMA Method = "dma" // daily quantile, moving-average smoothed
	MethodMMA Method = "mma" // monthly quantile broadcast to days
	MethodD30 Method = "d30" // pooled 30-day window quantile
	MethodFFT Method = "fft" // Fourier-truncated DMA curve
)

// ThresholdParams control threshold estimation.
type ThresholdParams struct {
	// Quantile is the exceedance level of the threshold. Default 0.2.
	Quantile float64
	// Smooth applies a centered 30-day moving average to the daily
	// series before pooling.
	Smooth bool
	// SmoothWindow is the moving-average window in days. Default 30.
	SmoothWindow int
}

// DefaultThresholdParams returns the standard 20th-percentile setup
// with pre-smoothing enabled.
func DefaultThresholdParams() ThresholdParams {
	return ThresholdParams{Quantile: 0.2, Smooth: true, SmoothWindow: 30}
}

func (p ThresholdParams) withDefaults() ThresholdParams {
	if p.Quantile == 0 {
		p.Quantile = 0.2
	}
	if p.SmoothWindow == 0 {
		p.SmoothWindow = 30
	}
	return p
}

// Validate rejects out-of-range configurations.
func (p ThresholdParams) Validate() error {
	p = p.withDefaults()
	if p.Quantile <= 0 || p.Quantile >= 1 {
		return fmt.Errorf("drought: quantile must be in (0,1), got %g", p.Quantile)
	}
	if p.SmoothWindow < 1 {
		return fmt.Errorf("drought: smoothing window must be positive, got %d", p.SmoothWindow)
	}
	return nil
}

// ThresholdSet holds the four alternative 366-day threshold curves.
// All curves, MMA's days-in-month included, use the 366-day calendar
// convention of timeseries.CalendarDayIndex (February has 29 days).
type ThresholdSet struct {
	DMA []float64
	MMA []float64
	D30 []float64
	FFT []float64
	// FFTCutoff is the number of harmonics kept by the selected
	// Fourier truncation.
	FFTCutoff int
}

// Curve returns the curve for a method.
func (s ThresholdSet) Curve(m Method) ([]float64, error) {
	switch m {
	case MethodDMA:
		return s.DMA, nil
	case MethodMMA:
		return s.MMA, nil
	case MethodD30:
		return s.D30, nil
	case MethodFFT:
		return s.FFT, nil
	}
	return nil, fmt.Errorf("drought: unknown threshold method %q", m)
}

// ComputeThresholds derives the four seasonal threshold curves from a
// daily series spanning at least one full year.
func ComputeThresholds(daily timeseries.Series, p ThresholdParams) (ThresholdSet, error) {
	p = p.withDefaults()
	if err := p.Validate(); err != nil {
		return ThresholdSet{}, err
	}
	if len(daily) < 365 {
		return ThresholdSet{}, fmt.Errorf("drought: series must span at least one full year, got %d samples", len(daily))
	}

	vals := daily.Values()
	if p.Smooth {
		vals = timeseries.MovingAverage(vals, p.SmoothWindow)
	}

	// Pool values by day-of-year index.
	var pools [CurveLength][]float64
	for i, smp := range daily {
		if timeseries.IsMissing(vals[i]) {
			continue
		}
		idx := timeseries.CalendarDayIndex(smp.Time)
		pools[idx-1] = append(pools[idx-1], vals[i])
	}

	set := ThresholdSet{
		DMA: dailyQuantileCurve(&pools, p.Quantile, p.SmoothWindow),
		MMA: monthlyQuantileCurve(daily, vals, p.Quantile, p.SmoothWindow),
		D30: windowQuantileCurve(&pools, p.Quantile, 15),
	}
	set.FFT, set.FFTCutoff = fourierCurve(set.DMA, set.D30)
	return set, nil
}

// dailyQuantileCurve is the DMA method: per-day quantile across years,
// then a circular 30-day moving average over the year.
func dailyQuantileCurve(pools *[CurveLength][]float64, q float64, window int) []float64 {
	curve := make([]float64, CurveLength)
	for i := range curve {
		curve[i] = quantileOf(pools[i], q)
	}
	return circularMovingAverage(curve, window)
}

// windowQuantileCurve is the D30 method: one quantile over all values
// pooled from a centered +-half day window across all years, with no
// smoothing pass.
func windowQuantileCurve(pools *[CurveLength][]float64, q float64, half int) []float64 {
	curve := make([]float64, CurveLength)
	for i := range curve {
		var window []float64
		for d := -half; d <= half; d++ {
			j := ((i+d)%CurveLength + CurveLength) % CurveLength
			window = append(window, pools[j]...)
		}
		curve[i] = quantileOf(window, q)
	}
	return curve
}

// monthlyQuantileCurve is the MMA method: quantile of monthly totals
// per calendar month, converted to a daily-equivalent rate, broadcast
// across the month's day indices and circularly smoothed. Days-in-month
// follows the 366-day curve convention, so February divides by 29 in
// every year; the resulting sub-percent dip is uniform across years
// and is smoothed together with the rest of the curve.
func monthlyQuantileCurve(daily timeseries.Series, vals []float64, q float64, window int) []float64 {
	type ym struct {
		year  int
		month time.Month
	}
	totals := make(map[ym]float64)
	for i, smp := range daily {
		if timeseries.IsMissing(vals[i]) {
			continue
		}
		key := ym{smp.Time.Year(), smp.Time.Month()}
		totals[key] += vals[i]
	}

	curve := make([]float64, CurveLength)
	for m := time.January; m <= time.December; m++ {
		var pool []float64
		for key, total := range totals {
			if key.month == m {
				pool = append(pool, total)
			}
		}
		first, last := timeseries.MonthDayIndexRange(m)
		dailyRate := quantileOf(pool, q) / float64(last-first+1)
		for i := first; i <= last; i++ {
			curve[i-1] = dailyRate
		}
	}
	return circularMovingAverage(curve, window)
}

// fourierCurve selects the low-pass truncation of the DMA spectrum
// closest to the D30 curve. Candidate cutoffs keep the DC component
// plus the k lowest harmonics, k in [1, 183]; negative values of the
// reconstruction are clipped to zero.
func fourierCurve(dma, d30 []float64) ([]float64, int) {
	filled := fillCircular(dma)
	fft := fourier.NewFFT(CurveLength)
	coeff := fft.Coefficients(nil, filled)

	bestK := 1
	var best []float64
	bestSSE := math.Inf(1)
	trunc := make([]complex128, len(coeff))
	for k := 1; k <= CurveLength/2; k++ {
		for i := range trunc {
			if i <= k {
				trunc[i] = coeff[i]
			} else {
				trunc[i] = 0
			}
		}
		seq := fft.Sequence(nil, trunc)
		for i := range seq {
			seq[i] /= CurveLength
			if seq[i] < 0 {
				seq[i] = 0
			}
		}
		sse := 0.0
		for i := range seq {
			if timeseries.IsMissing(d30[i]) {
				continue
			}
			d := seq[i] - d30[i]
			sse += d * d
		}
		if sse < bestSSE {
			bestSSE = sse
			bestK = k
			best = seq
		}
	}
	return best, bestK
}

func quantileOf(pool []float64, q float64) float64 {
	if len(pool) == 0 {
		return timeseries.Missing()
	}
	sorted := append([]float64(nil), pool...)
	sort.Float64s(sorted)
	return stat.Quantile(q, stat.Empirical, sorted, nil)
}

// circularMovingAverage smooths a year-length curve with wraparound at
// the year boundary, skipping missing entries.
func circularMovingAverage(curve []float64, window int) []float64 {
	n := len(curve)
	out := make([]float64, n)
	half := window / 2
	for i := 0; i < n; i++ {
		sum := 0.0
		count := 0
		for d := -half; d <= half; d++ {
			j := ((i+d)%n + n) % n
			if timeseries.IsMissing(curve[j]) {
				continue
			}
			sum += curve[j]
			count++
		}
		if count == 0 {
			out[i] = timeseries.Missing()
			continue
		}
		out[i] = sum / float64(count)
	}
	return out
}

// fillCircular replaces missing curve entries by linear interpolation
// between the nearest valid neighbors around the circle, so the FFT
// sees a finite sequence. A record with no leap year leaves index 60
// empty, for example.
func fillCircular(curve []float64) []float64 {
	n := len(curve)
	out := append([]float64(nil), curve...)
	for i := range out {
		if !timeseries.IsMissing(out[i]) {
			continue
		}
		// Walk outward for the nearest valid values on each side.
		var prevIdx, nextIdx, dPrev, dNext int = -1, -1, 0, 0
		for d := 1; d < n; d++ {
			j := ((i-d)%n + n) % n
			if prevIdx < 0 && !timeseries.IsMissing(curve[j]) {
				prevIdx, dPrev = j, d
			}
			k := (i + d) % n
			if nextIdx < 0 && !timeseries.IsMissing(curve[k]) {
				nextIdx, dNext = k, d
			}
			if prevIdx >= 0 && nextIdx >= 0 {
				break
			}
		}
		switch {
		case prevIdx < 0 && nextIdx < 0:
			out[i] = 0
		case prevIdx < 0:
			out[i] = curve[nextIdx]
		case nextIdx < 0:
			out[i] = curve[prevIdx]
		default:
			w := float64(dNext) / float64(dPrev+dNext)
			out[i] = w*curve[prevIdx] + (1-w)*curve[nextIdx]
		}
	}
	return out
}
