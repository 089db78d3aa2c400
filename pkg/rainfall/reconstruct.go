package rainfall

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/hydronet/catchflow/pkg/timeseries"
)

// ReconstructOptions tune the event-parallel reconstruction.
type ReconstructOptions struct {
	// Workers bounds the interpolation pool. Defaults to GOMAXPROCS.
	Workers int
	// OnProgress, when set, is called with the fraction of events
	// completed. Calls are serialized.
	OnProgress func(fraction float64)
}

// ReconstructResult is the assembled per-minute rainfall series plus
// reconstruction diagnostics.
type ReconstructResult struct {
	// Series holds one sample per minute over the union of all event
	// spans; minutes outside any event are zero.
	Series timeseries.Series
	// Cumulative is the running total of Series.
	Cumulative timeseries.Series
	Events     []EventRates
	// NonConverged counts events whose bias correction exhausted its
	// iterations; their contribution is best-effort.
	NonConverged int
	// LinearFallbacks counts events reconstructed linearly, whether by
	// tip count or by spline abandonment.
	LinearFallbacks int
}

// Reconstruct interpolates every event and assembles the global
// per-minute series by additive superposition, in event start order so
// the output is reproducible regardless of completion order. Each
// event depends only on its own tips, so interpolation runs on a
// bounded worker pool.
func Reconstruct(ctx context.Context, events []Event, p InterpParams, opts ReconstructOptions) (ReconstructResult, error) {
	if err := p.Validate(); err != nil {
		return ReconstructResult{}, err
	}
	if len(events) == 0 {
		return ReconstructResult{}, nil
	}

	sorted := make([]Event, len(events))
	copy(sorted, events)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start().Before(sorted[j].Start()) })

	workers := opts.Workers
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(sorted) {
		workers = len(sorted)
	}

	rates := make([]EventRates, len(sorted))
	jobs := make(chan int)
	var wg sync.WaitGroup
	var mu sync.Mutex
	done := 0

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				rates[idx] = InterpolateEvent(sorted[idx], p)
				if opts.OnProgress != nil {
					mu.Lock()
					done++
					opts.OnProgress(float64(done) / float64(len(sorted)))
					mu.Unlock()
				}
			}
		}()
	}

	var ctxErr error
feed:
	for i := range sorted {
		if ctxErr = ctx.Err(); ctxErr != nil {
			break feed
		}
		select {
		case <-ctx.Done():
			ctxErr = ctx.Err()
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()
	if ctxErr != nil {
		return ReconstructResult{}, ctxErr
	}

	res := ReconstructResult{Events: rates}
	for _, r := range rates {
		if !r.Converged {
			res.NonConverged++
		}
		if r.UsedLinear {
			res.LinearFallbacks++
		}
	}
	res.Series = superpose(rates)
	res.Cumulative = res.Series.Cumulative()
	return res, nil
}

// superpose adds every event's rates into one minute-gridded series.
// Events are already ordered by start, and overlapping boundary
// minutes accumulate both contributions.
func superpose(rates []EventRates) timeseries.Series {
	var start, end time.Time
	for _, r := range rates {
		if len(r.Rates) == 0 {
			continue
		}
		if start.IsZero() || r.Start.Before(start) {
			start = r.Start
		}
		if r.End().After(end) {
			end = r.End()
		}
	}
	if start.IsZero() {
		return nil
	}

	n := int(end.Sub(start)/time.Minute) + 1
	vals := make([]float64, n)
	for _, r := range rates {
		offset := int(r.Start.Sub(start) / time.Minute)
		for k, v := range r.Rates {
			vals[offset+k] += v
		}
	}

	out := make(timeseries.Series, n)
	for i := range vals {
		out[i] = timeseries.Sample{Time: start.Add(time.Duration(i) * time.Minute), Value: vals[i]}
	}
	return out
}
