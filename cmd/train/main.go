package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/rs/zerolog/log"

	"callquality/internal/cfg"
	"callquality/internal/logging"
	"callquality/internal/ml"
	"callquality/internal/storage"
	"callquality/internal/training"
)

// args override the loaded configuration when set.
type args struct {
	DataDir    *string  `arg:"--data" help:"directory holding the monthly CSV files"`
	Pattern    *string  `arg:"--pattern" help:"glob for monthly CSV files"`
	Output     *string  `arg:"--output" help:"directory for training reports"`
	ModelPath  *string  `arg:"--model" help:"path the active bundle is written to"`
	TopStates  *int     `arg:"--top-states" help:"number of states with an indicator slot"`
	TestRatio  *float64 `arg:"--test-ratio" help:"held out fraction"`
	Seed       *int64   `arg:"--seed" help:"random seed for splits and models"`
	Folds      *int     `arg:"--folds" help:"cross-validation folds"`
	Trees      *int     `arg:"--trees" help:"random forest size"`
	LogLevel   *string  `arg:"--log-level" help:"debug, info, warn or error"`
	NoActivate bool     `arg:"--no-activate" help:"register the new version without making it active"`
}

func (args) Description() string {
	return "Trains the call quality rating models and publishes the best one."
}

func main() {
	var a args
	arg.MustParse(&a)

	c, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}
	a.apply(&c)

	closer, err := logging.Setup(c.LogLevel, c.LogFile, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging setup failed: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, c, !a.NoActivate); err != nil {
		log.Error().Err(err).Msg("training failed")
		closer.Close()
		os.Exit(1)
	}
}

func (a args) apply(c *cfg.Settings) {
	if a.DataDir != nil {
		c.Training.DataDir = *a.DataDir
	}
	if a.Pattern != nil {
		c.Training.FilePattern = *a.Pattern
	}
	if a.Output != nil {
		c.Training.OutputDir = *a.Output
	}
	if a.ModelPath != nil {
		c.ModelPath = *a.ModelPath
	}
	if a.TopStates != nil {
		c.Training.TopStates = *a.TopStates
	}
	if a.TestRatio != nil {
		c.Training.TestRatio = *a.TestRatio
	}
	if a.Seed != nil {
		c.Training.Seed = *a.Seed
	}
	if a.Folds != nil {
		c.Training.Folds = *a.Folds
	}
	if a.Trees != nil {
		c.Training.Trees = *a.Trees
	}
	if a.LogLevel != nil {
		c.LogLevel = *a.LogLevel
	}
}

func run(ctx context.Context, c cfg.Settings, activate bool) error {
	log.Info().
		Str("data_dir", c.Training.DataDir).
		Str("pattern", c.Training.FilePattern).
		Int("top_states", c.Training.TopStates).
		Int64("seed", c.Training.Seed).
		Msg("starting training run")

	report, err := training.Run(ctx, training.ConfigFromSettings(c.Training))
	if err != nil {
		return err
	}
	b := report.Bundle

	mm, err := ml.NewModelManager(c.ModelsDir)
	if err != nil {
		return err
	}
	versioned := filepath.Join(mm.Dir(), fmt.Sprintf("call_quality_%s.json", report.FinishedAt.UTC().Format("20060102-150405")))
	version, err := mm.AddVersion(versioned, b.ModelName, b.Metrics)
	if err != nil {
		return fmt.Errorf("failed to register model version: %w", err)
	}
	b.Version = version.Version
	if err := ml.SaveBundle(versioned, b); err != nil {
		return err
	}

	if activate {
		if err := mm.ActivateVersion(version.Version); err != nil {
			return err
		}
		if err := ml.SaveBundle(c.ModelPath, b); err != nil {
			return err
		}
		log.Info().Str("version", version.Version).Str("path", c.ModelPath).Msg("model version activated")
	}

	reporter := training.NewReporter(report, c.Training.OutputDir)
	if err := reporter.GenerateReport(); err != nil {
		return fmt.Errorf("failed to write training report: %w", err)
	}
	reporter.PrintSummary()

	if c.DataPath != "" {
		store, err := storage.New(c.DataPath)
		if err != nil {
			log.Warn().Err(err).Msg("storage unavailable, training run not recorded")
			return nil
		}
		defer store.Close()
		if err := store.StoreTrainingRun(report.TrainingRun(versioned, version.Version)); err != nil {
			log.Warn().Err(err).Msg("failed to record training run")
		}
	}

	log.Info().
		Str("best_model", report.BestModel).
		Float64("test_r2", report.Best().TestR2).
		Dur("elapsed", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond)).
		Msg("training complete")
	return nil
}
