package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/socassist/risk-engine/internal/calibration"
	"github.com/socassist/risk-engine/internal/ledger"
	"github.com/socassist/risk-engine/internal/observability"
	"github.com/socassist/risk-engine/internal/scoring"
	"github.com/socassist/risk-engine/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to risk_engine.db")
	force := flag.Bool("force", false, "run even if the ledger is unchanged since the last run")
	minSamples := flag.Int("min-samples", calibration.DefaultConfig().MinSamples, "minimum resolved incidents overall and per question")
	rate := flag.Float64("learning-rate", calibration.DefaultConfig().LearningRate, "weight step per unit of error rate")
	timeout := flag.Duration("timeout", 5*time.Minute, "abort the run after this long")
	logLevel := flag.String("log-level", "warn", "log level")
	flag.Parse()

	if *dbPath == "" || *minSamples < 1 || *rate <= 0 {
		fmt.Fprintln(os.Stderr, "usage: calibrate --db path/to/risk_engine.db [--force] [--min-samples N] [--learning-rate R]")
		os.Exit(2)
	}

	logger := observability.InitLogger(observability.LogConfig{Level: *logLevel, Format: "text"})

	st, err := store.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	cur, err := st.Current(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load active config: %v\n", err)
		os.Exit(1)
	}
	led, err := ledger.NewStore(st.DB())
	if err != nil {
		fmt.Fprintf(os.Stderr, "open ledger: %v\n", err)
		os.Exit(1)
	}

	cfg := calibration.DefaultConfig()
	cfg.MinSamples = *minSamples
	cfg.LearningRate = *rate

	runner := calibration.NewRunner(led, st, scoring.NewEngine(cur.Snapshot, logger, nil),
		calibration.WithConfig(cfg),
		calibration.WithLogger(logger),
	)

	run := runner.Run
	if *force {
		run = runner.Rerun
	}
	summary, err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "calibrate: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		fmt.Fprintf(os.Stderr, "encode json: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main
