// Package config defines the explicit parameter set consumed by the
// analysis pipeline and a YAML file provider. There is no ambient
// configuration state: every component receives its parameters by
// value.
package config

import (
	"fmt"
	"time"

	"github.com/hydronet/catchflow/pkg/drought"
	"github.com/hydronet/catchflow/pkg/rainfall"
)

// Config is the full parameter set of an analysis run.
type Config struct {
	Aggregation AggregationData `yaml:"aggregation"`
	Rainfall    RainfallData    `yaml:"rainfall"`
	Drought     DroughtData     `yaml:"drought"`
	GapFill     GapFillData     `yaml:"gapfill"`
	// Workers bounds the event-interpolation pool; 0 means one worker
	// per CPU.
	Workers int `yaml:"workers,omitempty"`
}

// AggregationData configures the fixed-interval aggregator.
type AggregationData struct {
	IntervalMinutes int `yaml:"interval_minutes"`
}

// RainfallData configures segmentation and spline reconstruction.
type RainfallData struct {
	BucketVolumeMM   float64 `yaml:"bucket_volume_mm"`
	MinIntensityMMH  float64 `yaml:"min_intensity_mmh"`
	MaxIntensityMMH  float64 `yaml:"max_intensity_mmh"`
	NominalRateMMH   float64 `yaml:"nominal_rate_mmh"`
	LowIntensityMMH  float64 `yaml:"low_intensity_floor_mmh"`
	PreGridCollapse  bool    `yaml:"pre_grid_collapse"`
	MaxIterations    int     `yaml:"max_iterations,omitempty"`
}

// DroughtData configures threshold estimation and event extraction.
type DroughtData struct {
	Method         string  `yaml:"method"` // dma, mma, d30 or fft
	Quantile       float64 `yaml:"quantile"`
	Smooth         bool    `yaml:"smooth"`
	PoolingDays    int     `yaml:"pooling_days"`
	MinDuration    int     `yaml:"min_duration_days"`
	HydroYearStart int     `yaml:"hydro_year_start_month"`
}

// GapFillData configures cross-correlation gap filling.
type GapFillData struct {
	MinR2  float64 `yaml:"min_r2"`
	CutEnd bool    `yaml:"cut_end"`
}

// Default returns the standard configuration for a 0.2 mm tipping
// bucket and daily drought analysis.
func Default() *Config {
	return &Config{
		Aggregation: AggregationData{IntervalMinutes: 1440},
		Rainfall: RainfallData{
			BucketVolumeMM:  0.2,
			MinIntensityMMH: 0.2,
			MaxIntensityMMH: 127,
			NominalRateMMH:  3,
			LowIntensityMMH: 0.1,
			MaxIterations:   10,
		},
		Drought: DroughtData{
			Method:         string(drought.MethodDMA),
			Quantile:       0.2,
			Smooth:         true,
			PoolingDays:    10,
			MinDuration:    10,
			HydroYearStart: int(time.October),
		},
		GapFill: GapFillData{MinR2: 0.99},
	}
}

// Validate checks the whole configuration and fails fast before any
// computation.
func (c *Config) Validate() error {
	if c.Aggregation.IntervalMinutes <= 0 {
		return fmt.Errorf("config: aggregation interval must be positive, got %d minutes", c.Aggregation.IntervalMinutes)
	}
	if err := c.SegmentParams().Validate(); err != nil {
		return err
	}
	if err := c.InterpParams().Validate(); err != nil {
		return err
	}
	if _, err := (drought.ThresholdSet{}).Curve(drought.Method(c.Drought.Method)); err != nil {
		return err
	}
	if err := c.ThresholdParams().Validate(); err != nil {
		return err
	}
	if err := c.EventParams().Validate(); err != nil {
		return err
	}
	if c.GapFill.MinR2 < 0 || c.GapFill.MinR2 > 1 {
		return fmt.Errorf("config: gap-fill minimum R² must be in [0,1], got %g", c.GapFill.MinR2)
	}
	return nil
}

// Interval returns the aggregation interval as a duration.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.Aggregation.IntervalMinutes) * time.Minute
}

// SegmentParams maps the configuration onto segmentation parameters.
func (c *Config) SegmentParams() rainfall.SegmentParams {
	return rainfall.SegmentParams{
		BucketVolume:    c.Rainfall.BucketVolumeMM,
		MinIntensity:    c.Rainfall.MinIntensityMMH,
		MaxIntensity:    c.Rainfall.MaxIntensityMMH,
		PreGridCollapse: c.Rainfall.PreGridCollapse,
	}
}

// InterpParams maps the configuration onto interpolation parameters.
func (c *Config) InterpParams() rainfall.InterpParams {
	p := rainfall.DefaultInterpParams()
	p.NominalRate = c.Rainfall.NominalRateMMH
	p.LowIntensityFloor = c.Rainfall.LowIntensityMMH
	if c.Rainfall.MaxIterations > 0 {
		p.MaxIterations = c.Rainfall.MaxIterations
	}
	return p
}

// ThresholdParams maps the configuration onto threshold parameters.
func (c *Config) ThresholdParams() drought.ThresholdParams {
	return drought.ThresholdParams{
		Quantile: c.Drought.Quantile,
		Smooth:   c.Drought.Smooth,
	}
}

// EventParams maps the configuration onto drought event parameters.
func (c *Config) EventParams() drought.EventParams {
	return drought.EventParams{
		PoolingDays:    c.Drought.PoolingDays,
		MinDuration:    c.Drought.MinDuration,
		Smooth:         c.Drought.Smooth,
		HydroYearStart: time.Month(c.Drought.HydroYearStart),
	}
}

// Method returns the configured drought threshold method.
func (c *Config) Method() drought.Method {
	return drought.Method(c.Drought.Method)
}
