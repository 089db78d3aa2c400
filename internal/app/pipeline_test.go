package app

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/hydronet/catchflow/internal/log"
	"github.com/hydronet/catchflow/internal/storage"
	"github.com/hydronet/catchflow/pkg/config"
	"github.com/hydronet/catchflow/pkg/drought"
	"github.com/hydronet/catchflow/pkg/rainfall"
	"github.com/hydronet/catchflow/pkg/timeseries"
)

func newTestPipeline(t *testing.T) (*Pipeline, *storage.Store) {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "results.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	log.Init(false)
	return NewPipeline(config.Default(), store, log.GetSugaredLogger()), store
}

func TestRunRainfallPersistsSeries(t *testing.T) {
	p, store := newTestPipeline(t)

	base := time.Date(2023, 4, 1, 10, 0, 0, 0, time.UTC)
	tips := []rainfall.Tip{
		{Time: base, Volume: 0.2},
		{Time: base.Add(3 * time.Minute), Volume: 0.2},
		{Time: base.Add(6 * time.Minute), Volume: 0.2},
		{Time: base.Add(9 * time.Minute), Volume: 0.2},
	}

	res, err := p.RunRainfall(context.Background(), "gauge-1", tips)
	if err != nil {
		t.Fatal(err)
	}
	if res.Segments.EventCount != 1 {
		t.Errorf("expected 1 event, got %d", res.Segments.EventCount)
	}

	var total float64
	for _, s := range res.Minute {
		if !timeseries.IsMissing(s.Value) {
			total += s.Value
		}
	}
	if math.Abs(total-0.8) > 0.02 {
		t.Errorf("reconstructed total: expected 0.8 mm, got %v", total)
	}

	loaded, err := store.LoadSeries(res.Run.ID, "minute")
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != len(res.Minute) {
		t.Errorf("persisted minute series: expected %d samples, got %d", len(res.Minute), len(loaded))
	}
	if _, err := store.LoadSeries(res.Run.ID, "aggregated"); err != nil {
		t.Fatal(err)
	}
}

func TestRunRainfallCancellation(t *testing.T) {
	p, _ := newTestPipeline(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	base := time.Date(2023, 4, 1, 10, 0, 0, 0, time.UTC)
	tips := []rainfall.Tip{
		{Time: base, Volume: 0.2},
		{Time: base.Add(3 * time.Minute), Volume: 0.2},
	}
	if _, err := p.RunRainfall(ctx, "gauge-1", tips); err == nil {
		t.Error("expected an error from a canceled context")
	}
}

func TestRunDroughtPersistsResults(t *testing.T) {
	p, store := newTestPipeline(t)

	// Six pooled years keep the 0.2 quantile above the single dry
	// spell, so the threshold does not mirror the drought itself.
	start := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	samples := make([]timeseries.Sample, 6*365)
	for i := range samples {
		day := start.AddDate(0, 0, i)
		flow := 6.0
		if i >= 1200 && i < 1230 {
			flow = 1.0
		}
		samples[i] = timeseries.Sample{Time: day, Value: flow}
	}
	daily, err := timeseries.New(samples)
	if err != nil {
		t.Fatal(err)
	}

	res, err := p.RunDrought(context.Background(), "stream-1", daily)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Analysis.Events) != 1 {
		t.Fatalf("expected 1 drought event, got %d", len(res.Analysis.Events))
	}
	// Series smoothing smears the 30-day spell outward by up to half
	// the smoothing window on each side.
	if d := res.Analysis.Events[0].Days; d < 30 || d > 62 {
		t.Errorf("event duration: expected roughly 30-60 days, got %d", d)
	}
	if res.Analysis.Events[0].Deficit >= 0 {
		t.Errorf("deficit must be negative, got %v", res.Analysis.Events[0].Deficit)
	}

	curve, err := store.LoadThreshold(res.Run.ID, drought.MethodDMA)
	if err != nil {
		t.Fatal(err)
	}
	if len(curve) != drought.CurveLength {
		t.Errorf("persisted curve length: expected %d, got %d", drought.CurveLength, len(curve))
	}
	events, err := store.LoadDroughtEvents(res.Run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Errorf("persisted events: expected 1, got %d", len(events))
	}
	baseflow, err := store.LoadSeries(res.Run.ID, "baseflow")
	if err != nil {
		t.Fatal(err)
	}
	if len(baseflow) != len(daily) {
		t.Errorf("persisted baseflow: expected %d samples, got %d", len(daily), len(baseflow))
	}
	idx, err := store.LoadIndices(res.Run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if idx.MaxDuration != res.Analysis.Indices.MaxDuration {
		t.Errorf("persisted MaxDuration %v differs from computed %v", idx.MaxDuration, res.Analysis.Indices.MaxDuration)
	}
}

func TestRunDroughtWithoutStore(t *testing.T) {
	log.Init(false)
	p := NewPipeline(config.Default(), nil, log.GetSugaredLogger())

	start := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	samples := make([]timeseries.Sample, 2*365)
	for i := range samples {
		samples[i] = timeseries.Sample{Time: start.AddDate(0, 0, i), Value: 4.0}
	}
	daily, _ := timeseries.New(samples)

	res, err := p.RunDrought(context.Background(), "stream-1", daily)
	if err != nil {
		t.Fatal(err)
	}
	if res.Run.ID != "" {
		t.Error("no run must be created without a store")
	}
}
