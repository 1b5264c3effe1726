package estimator

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// BoostingParams configure least-squares gradient boosting.
type BoostingParams struct {
	NEstimators     int     `json:"n_estimators"`
	LearningRate    float64 `json:"learning_rate"`
	MaxDepth        int     `json:"max_depth"`
	MinSamplesSplit int     `json:"min_samples_split"`
	MinSamplesLeaf  int     `json:"min_samples_leaf"`
}

// DefaultBoostingParams returns 100 stages of depth 6 with learning rate 0.1.
func DefaultBoostingParams() BoostingParams {
	return BoostingParams{NEstimators: 100, LearningRate: 0.1, MaxDepth: 6, MinSamplesSplit: 2, MinSamplesLeaf: 1}
}

// Boosting is an additive model of regression trees fitted to residuals.
type Boosting struct {
	Params BoostingParams
	Init   float64
	Trees  []*Tree
}

// NewBoosting returns an unfitted boosting model.
func NewBoosting(p BoostingParams) *Boosting {
	d := DefaultBoostingParams()
	if p.NEstimators <= 0 {
		p.NEstimators = d.NEstimators
	}
	if p.LearningRate <= 0 {
		p.LearningRate = d.LearningRate
	}
	return &Boosting{Params: p}
}

// Kind implements Regressor.
func (*Boosting) Kind() Kind { return GradientBoosting }

// Fit starts from the target mean and adds one shrunken tree per stage.
func (b *Boosting) Fit(x *mat.Dense, y []float64) error {
	n, _, err := checkFitInput(x, y)
	if err != nil {
		return err
	}
	tp := TreeParams{MaxDepth: b.Params.MaxDepth, MinSamplesSplit: b.Params.MinSamplesSplit, MinSamplesLeaf: b.Params.MinSamplesLeaf}
	b.Init = stat.Mean(y, nil)
	b.Trees = make([]*Tree, 0, b.Params.NEstimators)

	pred := make([]float64, n)
	for i := range pred {
		pred[i] = b.Init
	}
	resid := make([]float64, n)
	row := make([]float64, x.RawMatrix().Cols)
	for s := 0; s < b.Params.NEstimators; s++ {
		for i := range resid {
			resid[i] = y[i] - pred[i]
		}
		t := NewTree(tp)
		if err := t.Fit(x, resid); err != nil {
			return err
		}
		b.Trees = append(b.Trees, t)
		for i := range pred {
			mat.Row(row, i, x)
			pred[i] += b.Params.LearningRate * t.Predict(row)
		}
	}
	return nil
}

// Predict implements Regressor.
func (b *Boosting) Predict(row []float64) float64 {
	out := b.Init
	for _, t := range b.Trees {
		out += b.Params.LearningRate * t.Predict(row)
	}
	return out
}
