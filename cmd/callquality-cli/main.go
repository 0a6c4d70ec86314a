package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/alexflint/go-arg"

	"callquality/internal/api"
	"callquality/internal/cfg"
	"callquality/internal/client"
	"callquality/internal/ml"
	"callquality/internal/storage"
)

type predictCmd struct {
	Operator  string  `arg:"--operator,required"`
	Network   string  `arg:"--network,required" help:"2G, 3G, 4G or Unknown"`
	Location  string  `arg:"--location,required" help:"Indoor, Outdoor or Travelling"`
	Quality   string  `arg:"--quality,required" help:"Satisfactory, Poor Voice Quality or Call Dropped"`
	Latitude  float64 `arg:"--lat,required"`
	Longitude float64 `arg:"--lon,required"`
	State     string  `arg:"--state"`
	Month     string  `arg:"--month" default:"January"`
}

type healthCmd struct{}

type modelInfoCmd struct{}

type versionsCmd struct{}

type rollbackCmd struct{}

type runsCmd struct {
	Limit int `arg:"--limit" default:"10"`
}

type args struct {
	URL       string        `arg:"--url,env:CALLQUALITY_URL" default:"http://localhost:8000" help:"prediction API base URL"`
	Timeout   time.Duration `arg:"--timeout" default:"5s"`
	Predict   *predictCmd   `arg:"subcommand:predict" help:"rate one call"`
	Health    *healthCmd    `arg:"subcommand:health" help:"show service health"`
	ModelInfo *modelInfoCmd `arg:"subcommand:model-info" help:"show the served model"`
	Versions  *versionsCmd  `arg:"subcommand:versions" help:"list registered model versions"`
	Rollback  *rollbackCmd  `arg:"subcommand:rollback" help:"activate the previous model version"`
	Runs      *runsCmd      `arg:"subcommand:runs" help:"list recorded training runs"`
}

func main() {
	var a args
	p := arg.MustParse(&a)
	if p.Subcommand() == nil {
		p.Fail("missing subcommand")
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.Timeout+time.Second)
	defer cancel()
	c := client.New(a.URL, a.Timeout)

	var err error
	switch {
	case a.Predict != nil:
		err = predict(ctx, c, a.Predict)
	case a.Health != nil:
		var h *api.HealthResponse
		h, err = c.Health(ctx)
		if h != nil {
			printJSON(h)
		}
	case a.ModelInfo != nil:
		var info *api.ModelInfoResponse
		if info, err = c.ModelInfo(ctx); err == nil {
			printJSON(info)
		}
	case a.Versions != nil:
		err = versions()
	case a.Rollback != nil:
		err = rollback()
	case a.Runs != nil:
		err = runs(a.Runs.Limit)
	}

	if err != nil {
		if errors.Is(err, client.ErrServiceUnavailable) {
			fmt.Fprintln(os.Stderr, "service unavailable: no model loaded")
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func predict(ctx context.Context, c *client.Client, p *predictCmd) error {
	req := api.PredictRequest{
		Operator:         &p.Operator,
		NetworkType:      &p.Network,
		InoutTravelling:  &p.Location,
		CalldropCategory: &p.Quality,
		Latitude:         &p.Latitude,
		Longitude:        &p.Longitude,
		StateName:        &p.State,
		Month:            &p.Month,
	}
	resp, err := c.Predict(ctx, req)
	if err != nil {
		return err
	}
	fmt.Printf("Predicted rating: %.2f (%s)\n", resp.PredictedRating, resp.ConfidenceInterval)
	fmt.Printf("Model: %s, accuracy %s, confidence %s\n",
		resp.ModelInfo.Model, resp.ModelInfo.Accuracy, resp.ModelInfo.PredictionConfidence)
	if !resp.StateMatched {
		fmt.Println("Note: state is outside the model's top states")
	}
	return nil
}

func loadSettings() (cfg.Settings, error) {
	s, err := cfg.Load()
	if err != nil {
		return s, fmt.Errorf("config load failed: %w", err)
	}
	return s, nil
}

func versions() error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	mm, err := ml.NewModelManager(s.ModelsDir)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tMODEL\tR2\tMAE\tCREATED\tACTIVE")
	for _, v := range mm.ListVersions() {
		active := ""
		if v.IsActive {
			active = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%.4f\t%.4f\t%s\t%s\n",
			v.Version, v.ModelName, v.Metrics.R2, v.Metrics.MAE, v.CreatedAt.Format(time.RFC3339), active)
	}
	return w.Flush()
}

// rollback activates the previous version and republishes its bundle at the
// serving path. The API picks it up on restart.
func rollback() error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	mm, err := ml.NewModelManager(s.ModelsDir)
	if err != nil {
		return err
	}
	if err := mm.Rollback(); err != nil {
		return err
	}
	v := mm.GetCurrentVersion()
	b, err := ml.LoadBundle(v.Path)
	if err != nil {
		return err
	}
	if err := ml.SaveBundle(s.ModelPath, b); err != nil {
		return err
	}
	fmt.Printf("Active version: %s (%s)\n", v.Version, v.ModelName)
	return nil
}

func runs(limit int) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	if s.DataPath == "" {
		return errors.New("DATA_PATH is not configured")
	}
	store, err := storage.New(s.DataPath)
	if err != nil {
		return err
	}
	defer store.Close()

	list, err := store.ListTrainingRuns()
	if err != nil {
		return err
	}
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFINISHED\tROWS\tBEST\tTEST R2\tVERSION")
	for _, r := range list {
		var best storage.ModelRun
		for _, m := range r.Models {
			if m.Name == r.BestModel {
				best = m
			}
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%.4f\t%s\n",
			r.ID, r.FinishedAt.Format(time.RFC3339), r.Rows, r.BestModel, best.TestR2, r.Version)
	}
	return w.Flush()
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}
