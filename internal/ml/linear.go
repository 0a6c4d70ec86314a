package ml

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"callquality/internal/features"
)

// ridgeLambda keeps the normal equations solvable when one-hot groups are
// collinear with the intercept.
const ridgeLambda = 1e-6

// LinearRegression is an ordinary least squares model solved on centered data.
type LinearRegression struct {
	Coef      []float64 `json:"coef"`
	Intercept float64   `json:"intercept"`
}

func NewLinearRegression() *LinearRegression { return &LinearRegression{} }

func (l *LinearRegression) Name() string { return "Linear Regression" }
func (l *LinearRegression) Type() string { return TypeLinearRegression }

// Fit solves (XcᵀXc + λI)β = Xcᵀyc with a Cholesky factorization.
func (l *LinearRegression) Fit(X [][]float64, y []float64) error {
	width, err := validateTrainingSet(X, y)
	if err != nil {
		return err
	}
	n := len(X)

	xMean := make([]float64, width)
	var yMean float64
	for i, row := range X {
		for j, v := range row {
			xMean[j] += v
		}
		yMean += y[i]
	}
	for j := range xMean {
		xMean[j] /= float64(n)
	}
	yMean /= float64(n)

	data := make([]float64, 0, n*width)
	yc := make([]float64, n)
	for i, row := range X {
		for j, v := range row {
			data = append(data, v-xMean[j])
		}
		yc[i] = y[i] - yMean
	}
	xc := mat.NewDense(n, width, data)

	var xtx mat.SymDense
	xtx.SymOuterK(1, xc.T())
	for j := 0; j < width; j++ {
		xtx.SetSym(j, j, xtx.At(j, j)+ridgeLambda)
	}

	var xty mat.VecDense
	xty.MulVec(xc.T(), mat.NewVecDense(n, yc))

	var chol mat.Cholesky
	if ok := chol.Factorize(&xtx); !ok {
		return errors.New("normal equations are not positive definite")
	}
	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, &xty); err != nil {
		return fmt.Errorf("solve normal equations: %w", err)
	}

	l.Coef = make([]float64, width)
	l.Intercept = yMean
	for j := range l.Coef {
		l.Coef[j] = beta.AtVec(j)
		l.Intercept -= l.Coef[j] * xMean[j]
	}
	return nil
}

func (l *LinearRegression) InputWidth() int { return len(l.Coef) }

// Verify rejects untrained or non-finite coefficients.
func (l *LinearRegression) Verify() error {
	if len(l.Coef) == 0 {
		return errors.New("model not trained")
	}
	for i, c := range append([]float64{l.Intercept}, l.Coef...) {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return fmt.Errorf("coefficient %d is not finite", i)
		}
	}
	return nil
}

// Predict returns intercept + coef·v.
func (l *LinearRegression) Predict(v features.Vector) (float64, error) {
	if len(l.Coef) == 0 {
		return 0, errors.New("model not trained")
	}
	if len(v) != len(l.Coef) {
		return 0, fmt.Errorf("expected %d features, got %d", len(l.Coef), len(v))
	}
	out := l.Intercept + mat.Dot(mat.NewVecDense(len(v), append([]float64(nil), v...)), mat.NewVecDense(len(l.Coef), l.Coef))
	if math.IsNaN(out) || math.IsInf(out, 0) {
		return 0, errors.New("non-finite prediction")
	}
	return out, nil
}
