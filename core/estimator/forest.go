package estimator

import (
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// ForestParams configure a bagged ensemble of regression trees.
type ForestParams struct {
	NEstimators     int    `json:"n_estimators"`
	MaxDepth        int    `json:"max_depth"`
	MinSamplesSplit int    `json:"min_samples_split"`
	MinSamplesLeaf  int    `json:"min_samples_leaf"`
	Seed            uint64 `json:"random_state"`
	Workers         int    `json:"n_jobs"`
}

// DefaultForestParams returns 100 trees of depth 10 seeded with 42.
func DefaultForestParams() ForestParams {
	return ForestParams{NEstimators: 100, MaxDepth: 10, MinSamplesSplit: 2, MinSamplesLeaf: 1, Seed: 42}
}

// Forest averages trees fitted on bootstrap samples.
type Forest struct {
	Params ForestParams
	Trees  []*Tree
}

// NewForest returns an unfitted forest.
func NewForest(p ForestParams) *Forest {
	if p.NEstimators <= 0 {
		p.NEstimators = DefaultForestParams().NEstimators
	}
	return &Forest{Params: p}
}

// Kind implements Regressor.
func (*Forest) Kind() Kind { return RandomForest }

// Fit grows the trees concurrently. Each tree draws its bootstrap sample from
// its own generator seeded from Params.Seed and the tree index, so the result
// does not depend on scheduling.
func (f *Forest) Fit(x *mat.Dense, y []float64) error {
	n, _, err := checkFitInput(x, y)
	if err != nil {
		return err
	}
	tp := TreeParams{MaxDepth: f.Params.MaxDepth, MinSamplesSplit: f.Params.MinSamplesSplit, MinSamplesLeaf: f.Params.MinSamplesLeaf}
	trees := make([]*Tree, f.Params.NEstimators)

	var g errgroup.Group
	workers := f.Params.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(workers)
	for i := range trees {
		g.Go(func() error {
			rng := rand.New(rand.NewPCG(f.Params.Seed, uint64(i)))
			idx := make([]int, n)
			for k := range idx {
				idx[k] = rng.IntN(n)
			}
			t := NewTree(tp)
			t.fitIndices(x, y, idx)
			trees[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	f.Trees = trees
	return nil
}

// Predict implements Regressor.
func (f *Forest) Predict(row []float64) float64 {
	if len(f.Trees) == 0 {
		return 0
	}
	var sum float64
	for _, t := range f.Trees {
		sum += t.Predict(row)
	}
	return sum / float64(len(f.Trees))
}
