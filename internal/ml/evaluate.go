package ml

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
)

// Scores holds regression metrics for one evaluation.
type Scores struct {
	R2   float64 `json:"r2_score"`
	RMSE float64 `json:"rmse"`
	MAE  float64 `json:"mae"`
}

// Evaluate computes R², RMSE and MAE of yPred against yTrue.
func Evaluate(yTrue, yPred []float64) (Scores, error) {
	if len(yTrue) == 0 || len(yTrue) != len(yPred) {
		return Scores{}, fmt.Errorf("cannot evaluate %d predictions against %d targets", len(yPred), len(yTrue))
	}
	mean, err := stats.Mean(yTrue)
	if err != nil {
		return Scores{}, err
	}

	var ssRes, ssTot, absSum float64
	for i := range yTrue {
		d := yTrue[i] - yPred[i]
		ssRes += d * d
		absSum += math.Abs(d)
		t := yTrue[i] - mean
		ssTot += t * t
	}
	n := float64(len(yTrue))

	r2 := 0.0
	if ssTot > 0 {
		r2 = 1 - ssRes/ssTot
	} else if ssRes == 0 {
		r2 = 1
	}
	return Scores{R2: r2, RMSE: math.Sqrt(ssRes / n), MAE: absSum / n}, nil
}

// PredictAll runs m over every row of X.
func PredictAll(m Regressor, X [][]float64) ([]float64, error) {
	out := make([]float64, len(X))
	for i, row := range X {
		p, err := m.Predict(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = p
	}
	return out, nil
}

// Score predicts X with m and evaluates against y.
func Score(m Regressor, X [][]float64, y []float64) (Scores, error) {
	pred, err := PredictAll(m, X)
	if err != nil {
		return Scores{}, err
	}
	return Evaluate(y, pred)
}
