package timeseries

// MovingAverage applies a centered moving-average window to a value
// slice. Positions outside the array are treated as missing, not
// wrapped, so the tails average over fewer values. Missing entries are
// skipped; a window with no valid members yields a missing result.
func MovingAverage(vals []float64, window int) []float64 {
	if window < 1 {
		window = 1
	}
	n := len(vals)
	out := make([]float64, n)
	half := window / 2
	for i := 0; i < n; i++ {
		sum := 0.0
		count := 0
		for j := i - half; j <= i+half; j++ {
			if j < 0 || j >= n || IsMissing(vals[j]) {
				continue
			}
			sum += vals[j]
			count++
		}
		if count == 0 {
			out[i] = Missing()
			continue
		}
		out[i] = sum / float64(count)
	}
	return out
}

// Smooth returns a copy of the series with a centered moving average
// of the given window (in samples) applied to its values.
func Smooth(s Series, window int) Series {
	smoothed := MovingAverage(s.Values(), window)
	out := make(Series, len(s))
	for i, smp := range s {
		out[i] = Sample{Time: smp.Time, Value: smoothed[i]}
	}
	return out
}
