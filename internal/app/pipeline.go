package app

import (
	"context"
	"fmt"

	"github.com/hydronet/catchflow/internal/storage"
	"github.com/hydronet/catchflow/pkg/config"
	"github.com/hydronet/catchflow/pkg/drought"
	"github.com/hydronet/catchflow/pkg/hydrograph"
	"github.com/hydronet/catchflow/pkg/rainfall"
	"github.com/hydronet/catchflow/pkg/timeseries"
	"go.uber.org/zap"
)

// Pipeline runs the analysis stages against a configuration and
// persists the results. The store is optional; with a nil store the
// pipeline computes results without persisting them.
type Pipeline struct {
	cfg    *config.Config
	store  *storage.Store
	logger *zap.SugaredLogger
}

// NewPipeline creates a pipeline instance
func NewPipeline(cfg *config.Config, store *storage.Store, logger *zap.SugaredLogger) *Pipeline {
	return &Pipeline{cfg: cfg, store: store, logger: logger}
}

// RainfallResult bundles the outputs of a rainfall run.
type RainfallResult struct {
	Run        storage.Run
	Segments   rainfall.SegmentResult
	Minute     timeseries.Series
	Aggregated timeseries.AggResult
}

// RunRainfall reconstructs a regular rainfall series from a tip log
// and aggregates it to the configured interval.
func (p *Pipeline) RunRainfall(ctx context.Context, station string, tips []rainfall.Tip) (RainfallResult, error) {
	var res RainfallResult

	if err := p.cfg.Validate(); err != nil {
		return res, err
	}

	seg, err := rainfall.Segment(tips, p.cfg.SegmentParams())
	if err != nil {
		return res, fmt.Errorf("segmentation failed: %w", err)
	}
	res.Segments = seg
	p.logger.Infof("segmented %d tips into %d events (%d singletons, %d merged, %d split)",
		len(tips), seg.EventCount, seg.SingletonCount, seg.MergedTips, seg.SplitTips)

	rec, err := rainfall.Reconstruct(ctx, seg.Events, p.cfg.InterpParams(), rainfall.ReconstructOptions{
		Workers: p.cfg.Workers,
		OnProgress: func(fraction float64) {
			p.logger.Debugf("reconstruction %.0f%% complete", fraction*100)
		},
	})
	if err != nil {
		return res, fmt.Errorf("reconstruction failed: %w", err)
	}
	res.Minute = rec.Series
	if rec.NonConverged > 0 {
		p.logger.Warnf("%d events did not converge during bias correction", rec.NonConverged)
	}
	if rec.LinearFallbacks > 0 {
		p.logger.Infof("%d events reconstructed linearly", rec.LinearFallbacks)
	}

	agg, err := timeseries.Aggregate(rec.Series, p.cfg.Interval(), timeseries.AggSum)
	if err != nil {
		return res, fmt.Errorf("aggregation failed: %w", err)
	}
	res.Aggregated = agg
	p.logger.Infof("aggregated to %v intervals: total %.1f mm over %d samples",
		p.cfg.Interval(), agg.Stats.Sum, len(agg.Series))

	if p.store != nil {
		run, err := p.store.CreateRun(station, p.cfg.Method())
		if err != nil {
			return res, err
		}
		res.Run = run
		if err := p.store.SaveSeries(run.ID, "minute", rec.Series); err != nil {
			return res, err
		}
		if err := p.store.SaveSeries(run.ID, "aggregated", agg.Series); err != nil {
			return res, err
		}
	}

	return res, nil
}

// DroughtResult bundles the outputs of a drought run.
type DroughtResult struct {
	Run        storage.Run
	Thresholds drought.ThresholdSet
	Analysis   drought.Result
	Baseflow   hydrograph.BaseflowResult
}

// RunDrought estimates variable threshold curves from a daily series
// and extracts drought events and indices under the configured method.
func (p *Pipeline) RunDrought(ctx context.Context, station string, daily timeseries.Series) (DroughtResult, error) {
	var res DroughtResult

	if err := p.cfg.Validate(); err != nil {
		return res, err
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	set, err := drought.ComputeThresholds(daily, p.cfg.ThresholdParams())
	if err != nil {
		return res, fmt.Errorf("threshold estimation failed: %w", err)
	}
	res.Thresholds = set
	p.logger.Infof("estimated threshold curves (fft cutoff %d harmonics)", set.FFTCutoff)

	curve, err := set.Curve(p.cfg.Method())
	if err != nil {
		return res, err
	}
	analysis, err := drought.ExtractIndices(daily, curve, p.cfg.EventParams())
	if err != nil {
		return res, fmt.Errorf("drought extraction failed: %w", err)
	}
	res.Analysis = analysis
	if analysis.Diagnostic != "" {
		p.logger.Warn(analysis.Diagnostic)
	}
	p.logger.Infof("extracted %d drought events over %.1f years under %s",
		len(analysis.Events), analysis.Indices.Years, p.cfg.Method())

	bf, err := hydrograph.SeparateBaseflow(daily, hydrograph.DefaultBaseflowParams())
	if err != nil {
		return res, fmt.Errorf("baseflow separation failed: %w", err)
	}
	res.Baseflow = bf
	p.logger.Infof("baseflow index %.2f", bf.Index)

	if p.store != nil {
		run, err := p.store.CreateRun(station, p.cfg.Method())
		if err != nil {
			return res, err
		}
		res.Run = run
		if err := p.store.SaveSeries(run.ID, "daily", daily); err != nil {
			return res, err
		}
		if err := p.store.SaveSeries(run.ID, "baseflow", bf.Baseflow); err != nil {
			return res, err
		}
		if err := p.store.SaveThresholds(run.ID, set); err != nil {
			return res, err
		}
		if err := p.store.SaveDroughtEvents(run.ID, analysis.Events); err != nil {
			return res, err
		}
		if err := p.store.SaveIndices(run.ID, analysis.Indices); err != nil {
			return res, err
		}
	}

	return res, nil
}
