package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/alexflint/go-arg"
	"github.com/rs/zerolog/log"

	"callquality/internal/common"
	"callquality/internal/dataset"
	"callquality/internal/logging"
)

func main() {
	args := struct {
		Data     string  `arg:"--data" help:"output directory"`
		Year     int     `arg:"--year"`
		Months   string  `arg:"--months" help:"comma separated month names, all twelve when empty"`
		Rows     int     `arg:"--rows" help:"rows per monthly file"`
		Seed     int64   `arg:"--seed"`
		DropRate float64 `arg:"--drop-rate" help:"share of rows without a state name"`
	}{
		Data:     common.DefaultDataDir,
		Year:     2023,
		Rows:     1000,
		Seed:     common.DefaultSeed,
		DropRate: 0.05,
	}
	arg.MustParse(&args)

	closer, err := logging.Setup("info", "", true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging setup failed: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	var months []string
	for _, m := range strings.Split(args.Months, ",") {
		if m = strings.TrimSpace(m); m != "" {
			months = append(months, m)
		}
	}

	paths, err := dataset.Generate(dataset.GenerateConfig{
		Dir:          args.Data,
		Year:         args.Year,
		Months:       months,
		RowsPerMonth: args.Rows,
		Seed:         args.Seed,
		DropRate:     args.DropRate,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to generate sample data")
	}

	fmt.Printf("✓ Generated %d sample exports in %s\n", len(paths), args.Data)
}
