// Package training fits the candidate regressors on the survey corpus, picks
// the best one on held-out R² and packages it with its frozen schema.
package training

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/rs/zerolog/log"

	"callquality/internal/cfg"
	"callquality/internal/dataset"
	"callquality/internal/features"
	"callquality/internal/ml"
	"callquality/internal/storage"
)

// sampleOffsets are the test rows echoed in the report as prediction examples.
var sampleOffsets = []int{0, 50, 100, 150, 200}

const topImportances = 10

// Config drives one training run.
type Config struct {
	DataDir      string
	FilePattern  string
	TopStates    int
	TestRatio    float64
	Seed         int64
	Folds        int
	Trees        int
	MaxDepth     int
	BoostRounds  int
	BoostDepth   int
	LearningRate float64

	// Corpus skips loading from DataDir when set.
	Corpus *dataset.Corpus
}

// ConfigFromSettings maps the configured training settings.
func ConfigFromSettings(t cfg.TrainingSettings) Config {
	return Config{
		DataDir:      t.DataDir,
		FilePattern:  t.FilePattern,
		TopStates:    t.TopStates,
		TestRatio:    t.TestRatio,
		Seed:         t.Seed,
		Folds:        t.Folds,
		Trees:        t.Trees,
		MaxDepth:     t.MaxDepth,
		BoostRounds:  t.BoostRounds,
		BoostDepth:   t.BoostDepth,
		LearningRate: t.LearningRate,
	}
}

// ModelResult holds the scores of one candidate.
type ModelResult struct {
	Name     string  `json:"name" csv:"model"`
	Type     string  `json:"type" csv:"type"`
	TrainR2  float64 `json:"train_r2" csv:"train_r2"`
	TestR2   float64 `json:"test_r2" csv:"test_r2"`
	TestRMSE float64 `json:"test_rmse" csv:"test_rmse"`
	TestMAE  float64 `json:"test_mae" csv:"test_mae"`
	CVMean   float64 `json:"cv_r2_mean" csv:"cv_r2_mean"`
	CVStd    float64 `json:"cv_r2_std" csv:"cv_r2_std"`
	FitTime  string  `json:"fit_time" csv:"fit_time"`
}

// SamplePrediction is one held-out row run through the prediction service.
type SamplePrediction struct {
	TestIndex int     `json:"test_index"`
	Actual    float64 `json:"actual"`
	Predicted float64 `json:"predicted"`
	Error     float64 `json:"error"`
}

// RatingCount is how many rows carry one rating value.
type RatingCount struct {
	Rating float64 `json:"rating"`
	Count  int     `json:"count"`
}

// Report is everything a run produced. Bundle holds the best model.
type Report struct {
	StartedAt          time.Time          `json:"started_at"`
	FinishedAt         time.Time          `json:"finished_at"`
	Data               dataset.Stats      `json:"data"`
	Rows               int                `json:"rows"`
	TrainRows          int                `json:"train_rows"`
	TestRows           int                `json:"test_rows"`
	RatingDistribution []RatingCount      `json:"rating_distribution"`
	States             []string           `json:"states"`
	TopStates          []string           `json:"top_states"`
	FeatureColumns     []string           `json:"feature_columns"`
	Models             []ModelResult      `json:"models"`
	BestModel          string             `json:"best_model"`
	ImportanceMethod   string             `json:"importance_method"`
	FeatureImportance  []ml.FeatureScore  `json:"feature_importance"`
	Samples            []SamplePrediction `json:"sample_predictions"`
	Bundle             *ml.Bundle         `json:"-"`
}

// Best returns the result of the selected model.
func (r *Report) Best() ModelResult {
	for _, m := range r.Models {
		if m.Name == r.BestModel {
			return m
		}
	}
	return ModelResult{}
}

// TrainingRun converts the report into its persisted summary.
func (r *Report) TrainingRun(bundlePath, version string) *storage.TrainingRun {
	run := &storage.TrainingRun{
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Rows:       r.Rows,
		TopStates:  r.TopStates,
		BestModel:  r.BestModel,
		BundlePath: bundlePath,
		Version:    version,
	}
	for _, m := range r.Models {
		run.Models = append(run.Models, storage.ModelRun{
			Name:    m.Name,
			TrainR2: m.TrainR2,
			TestR2:  m.TestR2,
			RMSE:    m.TestRMSE,
			MAE:     m.TestMAE,
			CVMean:  m.CVMean,
			CVStd:   m.CVStd,
		})
	}
	return run
}

type candidate func() ml.Trainer

func (c Config) candidates() []candidate {
	return []candidate{
		func() ml.Trainer { return ml.NewRandomForest(c.Trees, c.MaxDepth, c.Seed) },
		func() ml.Trainer { return ml.NewGradientBoosting(c.BoostRounds, c.LearningRate, c.BoostDepth) },
		func() ml.Trainer { return ml.NewLinearRegression() },
	}
}

func (c Config) withDefaults() Config {
	if c.TopStates <= 0 {
		c.TopStates = features.DefaultTopStates
	}
	if c.TestRatio == 0 {
		c.TestRatio = 0.2
	}
	if c.Folds == 0 {
		c.Folds = 5
	}
	if c.Trees == 0 {
		c.Trees = 100
	}
	if c.BoostRounds == 0 {
		c.BoostRounds = 100
	}
	if c.BoostDepth == 0 {
		c.BoostDepth = 3
	}
	if c.LearningRate == 0 {
		c.LearningRate = 0.1
	}
	return c
}

// Run executes the full pipeline. The context is checked between stages.
func Run(ctx context.Context, c Config) (*Report, error) {
	c = c.withDefaults()
	report := &Report{StartedAt: time.Now()}

	corpus := c.Corpus
	if corpus == nil {
		var err error
		corpus, err = dataset.Load(c.DataDir, c.FilePattern)
		if err != nil {
			return nil, fmt.Errorf("load corpus: %w", err)
		}
	}
	report.Data = corpus.Stats()
	report.Rows = corpus.Len()

	counts := corpus.StateCounts()
	for _, sc := range counts {
		report.States = append(report.States, sc.Name)
	}
	sort.Strings(report.States)

	schema := features.NewSchema(features.TopStates(counts, c.TopStates))
	names := schema.Names()
	report.TopStates = schema.TopStates()
	report.FeatureColumns = names

	X := features.EncodeAll(corpus.Records(), schema)
	y := corpus.Ratings()
	report.RatingDistribution = ratingDistribution(y)

	log.Info().
		Int("rows", len(X)).
		Int("features", len(names)).
		Strs("top_states", report.TopStates).
		Msg("feature matrix built")

	trainIdx, testIdx, err := StratifiedSplit(y, c.TestRatio, c.Seed)
	if err != nil {
		return nil, err
	}
	Xtr, ytr := selectRows(X, y, trainIdx)
	Xte, yte := selectRows(X, y, testIdx)
	report.TrainRows, report.TestRows = len(trainIdx), len(testIdx)

	var (
		best       ml.Trainer
		bestResult ModelResult
	)
	for _, newModel := range c.candidates() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		model := newModel()
		res, err := evaluateCandidate(ctx, model, newModel, Xtr, ytr, Xte, yte, c.Folds)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", model.Name(), err)
		}
		report.Models = append(report.Models, res)

		log.Info().
			Str("model", res.Name).
			Float64("test_r2", res.TestR2).
			Float64("test_rmse", res.TestRMSE).
			Float64("cv_r2_mean", res.CVMean).
			Float64("cv_r2_std", res.CVStd).
			Str("fit_time", res.FitTime).
			Msg("candidate evaluated")

		if best == nil || res.TestR2 > bestResult.TestR2 {
			best, bestResult = model, res
		}
	}
	report.BestModel = best.Name()

	scores, ok := ml.ModelImportance(best, names)
	report.ImportanceMethod = "impurity"
	if !ok {
		report.ImportanceMethod = "permutation"
		scores, err = ml.PermutationImportance(best, Xte, yte, names, c.Seed)
		if err != nil {
			return nil, fmt.Errorf("feature importance: %w", err)
		}
	}
	report.FeatureImportance = ml.TopFeatures(scores, topImportances)

	baseline, err := ml.BaselineFromMatrix(Xtr, names)
	if err != nil {
		return nil, fmt.Errorf("baseline: %w", err)
	}

	bundle := &ml.Bundle{
		ModelName:      best.Name(),
		ModelType:      best.Type(),
		Model:          best,
		FeatureColumns: names,
		TopStates:      report.TopStates,
		Metrics: ml.PerformanceMetrics{
			R2:     bestResult.TestR2,
			RMSE:   bestResult.TestRMSE,
			MAE:    bestResult.TestMAE,
			CVMean: bestResult.CVMean,
			CVStd:  bestResult.CVStd,
		},
		FeatureImportance: report.FeatureImportance,
		Baseline:          baseline,
		TrainedAt:         time.Now().UTC(),
		TrainingRows:      len(trainIdx),
	}

	samples, err := samplePredictions(ctx, bundle, corpus, testIdx, Xte)
	if err != nil {
		return nil, err
	}
	report.Samples = samples
	report.Bundle = bundle
	report.FinishedAt = time.Now()

	log.Info().
		Str("best_model", report.BestModel).
		Float64("r2", bundle.Metrics.R2).
		Float64("mae", bundle.Metrics.MAE).
		Dur("elapsed", report.FinishedAt.Sub(report.StartedAt)).
		Msg("training finished")

	return report, nil
}

func evaluateCandidate(ctx context.Context, model ml.Trainer, newModel candidate,
	Xtr [][]float64, ytr []float64, Xte [][]float64, yte []float64, folds int,
) (ModelResult, error) {
	res := ModelResult{Name: model.Name(), Type: model.Type()}

	start := time.Now()
	if err := model.Fit(Xtr, ytr); err != nil {
		return res, err
	}
	res.FitTime = time.Since(start).Round(time.Millisecond).String()

	train, err := ml.Score(model, Xtr, ytr)
	if err != nil {
		return res, err
	}
	test, err := ml.Score(model, Xte, yte)
	if err != nil {
		return res, err
	}
	res.TrainR2 = train.R2
	res.TestR2, res.TestRMSE, res.TestMAE = test.R2, test.RMSE, test.MAE

	cv, err := crossValidate(ctx, newModel, Xtr, ytr, folds)
	if err != nil {
		return res, fmt.Errorf("cross validation: %w", err)
	}
	if res.CVMean, err = stats.Mean(cv); err != nil {
		return res, err
	}
	if res.CVStd, err = stats.StandardDeviationPopulation(cv); err != nil {
		return res, err
	}
	return res, nil
}

// crossValidate returns the held-out R² of a fresh model per fold.
func crossValidate(ctx context.Context, newModel candidate, X [][]float64, y []float64, k int) ([]float64, error) {
	folds, err := KFold(len(X), k)
	if err != nil {
		return nil, err
	}
	scores := make([]float64, 0, k)
	for _, held := range folds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		Xf, yf := selectRows(X, y, complement(len(X), held))
		Xh, yh := selectRows(X, y, held)

		m := newModel()
		if err := m.Fit(Xf, yf); err != nil {
			return nil, err
		}
		s, err := ml.Score(m, Xh, yh)
		if err != nil {
			return nil, err
		}
		scores = append(scores, s.R2)
	}
	return scores, nil
}

// samplePredictions runs a few held-out rows through the same service the
// API uses and checks that its raw output matches the matrix the model was
// scored on.
func samplePredictions(ctx context.Context, b *ml.Bundle, corpus *dataset.Corpus, testIdx []int, Xte [][]float64) ([]SamplePrediction, error) {
	svc, err := ml.NewService(b, ml.WithCache(0, 0))
	if err != nil {
		return nil, fmt.Errorf("build prediction service: %w", err)
	}

	var offsets []int
	var records []features.CallRecord
	for _, off := range sampleOffsets {
		if off < len(testIdx) {
			offsets = append(offsets, off)
			records = append(records, corpus.Rows[testIdx[off]].Record)
		}
	}

	results, err := svc.PredictBatch(ctx, records)
	if err != nil {
		var verr *ml.ValidationError
		if errors.As(err, &verr) {
			// coordinates outside the serviceable range cannot be echoed
			log.Warn().Err(err).Msg("skipping sample predictions")
			return nil, nil
		}
		return nil, fmt.Errorf("sample predictions: %w", err)
	}

	out := make([]SamplePrediction, len(results))
	for i, res := range results {
		off := offsets[i]
		direct, err := b.Model.Predict(Xte[off])
		if err != nil {
			return nil, err
		}
		if res.Raw != direct {
			return nil, fmt.Errorf("serving output %v differs from training output %v for test row %d", res.Raw, direct, off)
		}
		actual := corpus.Rows[testIdx[off]].Rating
		out[i] = SamplePrediction{
			TestIndex: off,
			Actual:    actual,
			Predicted: res.Rating,
			Error:     math.Abs(actual - res.Rating),
		}
	}
	return out, nil
}

func ratingDistribution(y []float64) []RatingCount {
	counts := make(map[float64]int)
	for _, v := range y {
		counts[v]++
	}
	out := make([]RatingCount, 0, len(counts))
	for v, n := range counts {
		out = append(out, RatingCount{Rating: v, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rating < out[j].Rating })
	return out
}
