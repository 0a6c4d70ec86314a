package training

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"callquality/internal/dataset"
	"callquality/internal/features"
	"callquality/internal/ml"
)

var syntheticStates = []string{
	"Karnataka", "Maharashtra", "Uttarakhand", "Kerala", "Rajasthan", "Bihar",
	"West Bengal", "Madhya Pradesh", "Uttar Pradesh", "Jharkhand", "Goa", "Assam",
}

// syntheticCorpus builds rows whose rating is driven by call quality, with
// operator and network as secondary signals.
func syntheticCorpus(n int) *dataset.Corpus {
	ops := features.OperatorLabels
	nets := features.NetworkTypeLabels
	locs := features.LocationContextLabels
	quals := features.CallQualityLabels

	rows := make([]dataset.Row, n)
	for i := 0; i < n; i++ {
		op := ops[i%len(ops)]
		net := nets[(i/4)%len(nets)]
		loc := locs[(i/16)%len(locs)]
		qual := quals[(i/3)%len(quals)]

		var rating float64
		switch qual {
		case "Satisfactory":
			rating = 4
			if op == "Airtel" || op == "RJio" {
				rating = 5
			}
		case "Poor Voice Quality":
			rating = 2
			if net == "4G" {
				rating = 3
			}
		default:
			rating = 1
		}

		rec := features.NewCallRecord(op, net, loc, qual,
			10+float64(i%20), 75+float64(i%10), syntheticStates[i%len(syntheticStates)], features.MonthNames[i%10])
		rows[i] = dataset.Row{Record: rec, Rating: rating}
	}
	return dataset.NewCorpus(rows)
}

func smallConfig(c *dataset.Corpus) Config {
	return Config{
		TopStates:    10,
		TestRatio:    0.2,
		Seed:         42,
		Folds:        3,
		Trees:        10,
		MaxDepth:     8,
		BoostRounds:  30,
		BoostDepth:   3,
		LearningRate: 0.1,
		Corpus:       c,
	}
}

func TestRun_TrainsAndSelectsBest(t *testing.T) {
	report, err := Run(context.Background(), smallConfig(syntheticCorpus(1100)))
	require.NoError(t, err)

	require.Len(t, report.Models, 3)
	names := []string{report.Models[0].Name, report.Models[1].Name, report.Models[2].Name}
	assert.Equal(t, []string{"Random Forest", "Gradient Boosting", "Linear Regression"}, names)

	best := report.Best()
	for _, m := range report.Models {
		assert.LessOrEqual(t, m.TestR2, best.TestR2)
	}
	// rating is a deterministic function of the inputs
	assert.Greater(t, best.TestR2, 0.9)

	assert.Equal(t, 1100, report.Rows)
	assert.InDelta(t, 220, report.TestRows, 3)
	assert.Equal(t, 1100, report.TrainRows+report.TestRows)
	assert.Len(t, report.TopStates, 10)
	assert.Len(t, report.FeatureColumns, features.NewSchema(report.TopStates).Len())
	assert.Len(t, report.States, len(syntheticStates))
	assert.NotEmpty(t, report.FeatureImportance)
	assert.LessOrEqual(t, len(report.FeatureImportance), 10)

	b := report.Bundle
	require.NotNil(t, b)
	assert.Equal(t, report.BestModel, b.ModelName)
	assert.Equal(t, best.TestR2, b.Metrics.R2)
	assert.Equal(t, best.TestMAE, b.Metrics.MAE)
	assert.Equal(t, report.FeatureColumns, b.FeatureColumns)
	assert.Len(t, b.Baseline, len(b.FeatureColumns))
	assert.Equal(t, report.TrainRows, b.TrainingRows)

	require.Len(t, report.Samples, 5)
	for _, s := range report.Samples {
		assert.GreaterOrEqual(t, s.Predicted, ml.MinRating)
		assert.LessOrEqual(t, s.Predicted, ml.MaxRating)
	}
}

func TestRun_Deterministic(t *testing.T) {
	corpus := syntheticCorpus(400)
	a, err := Run(context.Background(), smallConfig(corpus))
	require.NoError(t, err)
	b, err := Run(context.Background(), smallConfig(corpus))
	require.NoError(t, err)

	assert.Equal(t, a.BestModel, b.BestModel)
	for i := range a.Models {
		assert.Equal(t, a.Models[i].TestR2, b.Models[i].TestR2, a.Models[i].Name)
		assert.Equal(t, a.Models[i].CVMean, b.Models[i].CVMean, a.Models[i].Name)
	}
}

func TestRun_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, smallConfig(syntheticCorpus(200)))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_LoadsFromDirectory(t *testing.T) {
	dir := t.TempDir()
	var sb strings.Builder
	sb.WriteString("operator,inout_travelling,network_type,rating,calldrop_category,latitude,longitude,state_name\n")
	for i, row := range syntheticCorpus(120).Rows {
		r := row.Record
		sb.WriteString(strings.Join([]string{
			r.Operator.String(), r.Location.String(), r.NetworkType.String(),
			formatFloat(row.Rating),
			r.Quality.String(), formatFloat(r.Latitude + float64(i)/1000), formatFloat(r.Longitude), r.StateName,
		}, ","))
		sb.WriteString("\n")
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "May_MyCall_2023.csv"), []byte(sb.String()), 0o600))

	cfg := smallConfig(nil)
	cfg.DataDir = dir
	report, err := Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 120, report.Rows)
	require.Len(t, report.Data.Files, 1)
	assert.Equal(t, "May", report.Data.Files[0].Month)
}

func TestRun_MissingData(t *testing.T) {
	cfg := smallConfig(nil)
	cfg.DataDir = t.TempDir()
	_, err := Run(context.Background(), cfg)
	assert.ErrorIs(t, err, dataset.ErrNoData)
}

func TestBundleRoundTripKeepsPredictions(t *testing.T) {
	corpus := syntheticCorpus(500)
	report, err := Run(context.Background(), smallConfig(corpus))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "bundle.json")
	require.NoError(t, ml.SaveBundle(path, report.Bundle))
	loaded, err := ml.LoadBundle(path)
	require.NoError(t, err)

	before, err := ml.NewService(report.Bundle)
	require.NoError(t, err)
	after, err := ml.NewService(loaded)
	require.NoError(t, err)

	for _, row := range corpus.Rows[:50] {
		a, err := before.Predict(context.Background(), row.Record)
		require.NoError(t, err)
		b, err := after.Predict(context.Background(), row.Record)
		require.NoError(t, err)
		assert.Equal(t, a.Rating, b.Rating)
	}
}

func TestReport_TrainingRun(t *testing.T) {
	report := &Report{
		Rows:      10,
		TopStates: []string{"Goa"},
		BestModel: "Random Forest",
		Models: []ModelResult{
			{Name: "Random Forest", TrainR2: 0.9, TestR2: 0.8, TestRMSE: 0.3, TestMAE: 0.2, CVMean: 0.7, CVStd: 0.05},
		},
	}
	run := report.TrainingRun("models/b.json", "v1")
	assert.Equal(t, "models/b.json", run.BundlePath)
	assert.Equal(t, "v1", run.Version)
	require.Len(t, run.Models, 1)
	assert.Equal(t, 0.3, run.Models[0].RMSE)
	assert.Equal(t, 0.7, run.Models[0].CVMean)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
