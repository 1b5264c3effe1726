package estimator

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Scores are held-out regression metrics.
type Scores struct {
	MAE              float64 `json:"mae"`
	MSE              float64 `json:"mse"`
	RMSE             float64 `json:"rmse"`
	R2               float64 `json:"r2"`
	AccuracyWithin5  float64 `json:"accuracy_within_5min"`
	AccuracyWithin10 float64 `json:"accuracy_within_10min"`
}

// Evaluate compares predictions with the observed targets. R2 is 0 when the
// targets are constant and the predictions are not exact, and 1 when they are.
func Evaluate(yTrue, yPred []float64) Scores {
	n := len(yTrue)
	if n == 0 || n != len(yPred) {
		return Scores{}
	}
	var abs, sq float64
	var in5, in10 int
	for i := range yTrue {
		d := yPred[i] - yTrue[i]
		abs += math.Abs(d)
		sq += d * d
		if math.Abs(d) <= 5 {
			in5++
		}
		if math.Abs(d) <= 10 {
			in10++
		}
	}
	s := Scores{
		MAE:              abs / float64(n),
		MSE:              sq / float64(n),
		AccuracyWithin5:  float64(in5) / float64(n),
		AccuracyWithin10: float64(in10) / float64(n),
	}
	s.RMSE = math.Sqrt(s.MSE)

	_, variance := stat.PopMeanVariance(yTrue, nil)
	switch {
	case variance > 0:
		s.R2 = stat.RSquaredFrom(yPred, yTrue, nil)
	case sq == 0:
		s.R2 = 1
	default:
		s.R2 = 0
	}
	return s
}

// CVResult is the outcome of k-fold cross validation.
type CVResult struct {
	FoldMAE []float64 `json:"fold_mae"`
	MeanMAE float64   `json:"cv_mae"`
	StdMAE  float64   `json:"cv_std"`
}

// CrossValidateMAE fits a fresh estimator from build on each unshuffled fold
// and reports the mean and population standard deviation of the fold MAE.
func CrossValidateMAE(build func() (Regressor, error), x *mat.Dense, y []float64, k int) (CVResult, error) {
	n, _, err := checkFitInput(x, y)
	if err != nil {
		return CVResult{}, err
	}
	folds := KFold(n, k)
	if folds == nil {
		return CVResult{}, fmt.Errorf("%w: %d rows for %d folds", ErrInsufficientData, n, k)
	}
	res := CVResult{FoldMAE: make([]float64, len(folds))}
	for i, f := range folds {
		r, err := build()
		if err != nil {
			return CVResult{}, err
		}
		if err := r.Fit(SelectRows(x, f.Train), selectVals(y, f.Train)); err != nil {
			return CVResult{}, fmt.Errorf("fold %d: %w", i, err)
		}
		pred := PredictAll(r, SelectRows(x, f.Test))
		res.FoldMAE[i] = Evaluate(selectVals(y, f.Test), pred).MAE
	}
	res.MeanMAE, res.StdMAE = stat.PopMeanStdDev(res.FoldMAE, nil)
	return res, nil
}
