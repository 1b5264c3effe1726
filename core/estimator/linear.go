package estimator

import (
	"fmt"
	"math"

	"github.com/sajari/regression"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Linear is an ordinary least squares model. Constant columns carry no
// information and get a zero coefficient.
type Linear struct {
	Intercept float64
	Coef      []float64
	R2        float64
}

// NewLinear returns an unfitted Linear model.
func NewLinear() *Linear { return &Linear{} }

// Kind implements Regressor.
func (*Linear) Kind() Kind { return LinearRegression }

// Fit solves the least squares problem through sajari/regression.
func (l *Linear) Fit(x *mat.Dense, y []float64) error {
	n, c, err := checkFitInput(x, y)
	if err != nil {
		return err
	}

	col := make([]float64, n)
	active := make([]int, 0, c)
	for j := 0; j < c; j++ {
		mat.Col(col, j, x)
		if _, v := stat.PopMeanVariance(col, nil); v > 0 {
			active = append(active, j)
		}
	}

	coef := make([]float64, c)
	if len(active) == 0 {
		l.Intercept, l.Coef, l.R2 = stat.Mean(y, nil), coef, 0
		return nil
	}
	if n < len(active)+1 {
		return fmt.Errorf("%w: %d rows for %d variables", ErrInsufficientData, n, len(active))
	}

	var r regression.Regression
	r.SetObserved("delay_minutes")
	for i, j := range active {
		r.SetVar(i, fmt.Sprintf("x%d", j))
	}
	row := make([]float64, c)
	for i := 0; i < n; i++ {
		mat.Row(row, i, x)
		vars := make([]float64, len(active))
		for k, j := range active {
			vars[k] = row[j]
		}
		r.Train(regression.DataPoint(y[i], vars))
	}
	if err := r.Run(); err != nil {
		return fmt.Errorf("%w: %v", ErrDegenerate, err)
	}

	got := r.GetCoeffs()
	if len(got) != len(active)+1 {
		return fmt.Errorf("%w: solver returned %d coefficients", ErrDegenerate, len(got))
	}
	for _, v := range got {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite coefficient", ErrDegenerate)
		}
	}
	for k, j := range active {
		coef[j] = got[k+1]
	}
	l.Intercept, l.Coef, l.R2 = got[0], coef, r.R2
	return nil
}

// Predict implements Regressor.
func (l *Linear) Predict(row []float64) float64 {
	out := l.Intercept
	for j, c := range l.Coef {
		if j < len(row) {
			out += c * row[j]
		}
	}
	return out
}
