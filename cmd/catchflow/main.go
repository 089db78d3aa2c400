package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/hydronet/catchflow/internal/app"
	"github.com/hydronet/catchflow/internal/log"
	"github.com/hydronet/catchflow/internal/storage"
	"github.com/hydronet/catchflow/pkg/config"
)

const version = "1.0-" + runtime.GOOS + "/" + runtime.GOARCH

const usage = `usage: catchflow <command> [flags]

commands:
  rainfall   reconstruct a regular rainfall series from a tip log
  drought    estimate thresholds and extract drought events from a daily series
  serve      expose stored results over HTTP
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	switch os.Args[1] {
	case "rainfall":
		runRainfall(os.Args[2:])
	case "drought":
		runDrought(os.Args[2:])
	case "serve":
		runServe(os.Args[2:])
	case "-version", "--version", "version":
		fmt.Printf("catchflow %s\n", version)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

func runRainfall(args []string) {
	fs := flag.NewFlagSet("rainfall", flag.ExitOnError)
	cfgFile := fs.String("config", "config.yaml", "Path to YAML configuration")
	dbFile := fs.String("db", "results.db", "Path to the result database")
	station := fs.String("station", "", "Station name recorded with the run")
	tipsFile := fs.String("tips", "", "Path to the tip log CSV (time[,volume_mm])")
	debug := fs.Bool("debug", false, "Turn on debugging output")
	fs.Parse(args)

	application, cfg := bootstrap(*cfgFile, *dbFile, *debug)
	defer log.Sync()

	if *tipsFile == "" {
		log.Fatalf("the -tips flag is required")
	}

	tips, err := app.ReadTips(*tipsFile, cfg.Rainfall.BucketVolumeMM)
	if err != nil {
		log.Fatalf("Failed to read tip log: %v", err)
	}

	res, err := application.Pipeline().RunRainfall(context.Background(), *station, tips)
	if err != nil {
		log.Fatalf("Rainfall run failed: %v", err)
	}
	log.Infof("run %s complete: %d events, %.1f mm total", res.Run.ID, res.Segments.EventCount, res.Aggregated.Stats.Sum)
}

func runDrought(args []string) {
	fs := flag.NewFlagSet("drought", flag.ExitOnError)
	cfgFile := fs.String("config", "config.yaml", "Path to YAML configuration")
	dbFile := fs.String("db", "results.db", "Path to the result database")
	station := fs.String("station", "", "Station name recorded with the run")
	dailyFile := fs.String("daily", "", "Path to the daily series CSV (time,value)")
	debug := fs.Bool("debug", false, "Turn on debugging output")
	fs.Parse(args)

	application, _ := bootstrap(*cfgFile, *dbFile, *debug)
	defer log.Sync()

	if *dailyFile == "" {
		log.Fatalf("the -daily flag is required")
	}

	daily, err := app.ReadDaily(*dailyFile)
	if err != nil {
		log.Fatalf("Failed to read daily series: %v", err)
	}

	res, err := application.Pipeline().RunDrought(context.Background(), *station, daily)
	if err != nil {
		log.Fatalf("Drought run failed: %v", err)
	}
	log.Infof("run %s complete: %d drought events over %.1f years",
		res.Run.ID, len(res.Analysis.Events), res.Analysis.Indices.Years)
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfgFile := fs.String("config", "config.yaml", "Path to YAML configuration")
	dbFile := fs.String("db", "results.db", "Path to the result database")
	listen := fs.String("listen", ":8080", "Listen address for the results API")
	debug := fs.Bool("debug", false, "Turn on debugging output")
	fs.Parse(args)

	application, _ := bootstrap(*cfgFile, *dbFile, *debug)
	defer log.Sync()

	if err := application.Serve(context.Background(), *listen); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

// bootstrap sets up logging, loads the configuration and opens the
// result store shared by every command.
func bootstrap(cfgFile, dbFile string, debug bool) (*app.App, *config.Config) {
	if err := log.Init(debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := loadConfig(cfgFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	store, err := storage.Open(dbFile)
	if err != nil {
		log.Fatalf("Failed to open result store: %v", err)
	}

	return app.New(cfg, store, log.GetSugaredLogger()), cfg
}

func loadConfig(cfgFile string) (*config.Config, error) {
	filename, _ := filepath.Abs(cfgFile)

	if _, err := os.Stat(filename); os.IsNotExist(err) {
		cfg := config.Default()
		return cfg, nil
	}

	cfg, err := config.LoadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file. Did you pass the -config flag? Run with -h for help: %w", err)
	}
	return cfg, nil
}
