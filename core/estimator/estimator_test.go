package estimator

import (
	"bytes"
	"encoding/gob"
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// linearData returns y = 3 + 2*x0 - x1 with a constant third column.
func linearData(n int) (*mat.Dense, []float64) {
	rng := rand.New(rand.NewPCG(1, 2))
	x := mat.NewDense(n, 3, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		a, b := rng.Float64()*10, rng.Float64()*5
		x.SetRow(i, []float64{a, b, 7})
		y[i] = 3 + 2*a - b
	}
	return x, y
}

// stepData returns y = 10 when x0 > 5 else 0.
func stepData(n int) (*mat.Dense, []float64) {
	x := mat.NewDense(n, 2, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		v := float64(i%11) + 0.5
		x.SetRow(i, []float64{v, float64(i % 3)})
		if v > 5 {
			y[i] = 10
		}
	}
	return x, y
}

func mae(r Regressor, x *mat.Dense, y []float64) float64 {
	return Evaluate(y, PredictAll(r, x)).MAE
}

func TestLinear_RecoversCoefficients(t *testing.T) {
	x, y := linearData(50)
	l := NewLinear()
	require.NoError(t, l.Fit(x, y))
	assert.InDelta(t, 3, l.Intercept, 1e-6)
	require.Len(t, l.Coef, 3)
	assert.InDelta(t, 2, l.Coef[0], 1e-6)
	assert.InDelta(t, -1, l.Coef[1], 1e-6)
	assert.Equal(t, 0.0, l.Coef[2], "constant column")
	assert.InDelta(t, 1, l.R2, 1e-6)
	assert.InDelta(t, 3+2*4-1*2, l.Predict([]float64{4, 2, 7}), 1e-6)
}

func TestLinear_AllConstantColumns(t *testing.T) {
	x := mat.NewDense(4, 1, []float64{1, 1, 1, 1})
	l := NewLinear()
	require.NoError(t, l.Fit(x, []float64{1, 2, 3, 4}))
	assert.InDelta(t, 2.5, l.Predict([]float64{1}), 1e-12)
}

func TestLinear_TooFewRows(t *testing.T) {
	x := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 7})
	err := NewLinear().Fit(x, []float64{1, 2})
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestFitInputValidation(t *testing.T) {
	x := mat.NewDense(3, 1, []float64{1, 2, 3})
	for _, r := range []Regressor{NewLinear(), NewForest(ForestParams{NEstimators: 2}), NewBoosting(BoostingParams{NEstimators: 2}), NewMLP(MLPParams{MaxIter: 2})} {
		err := r.Fit(x, []float64{1, 2})
		assert.ErrorIs(t, err, ErrDegenerate, "%s", r.Kind())
		err = r.Fit(nil, nil)
		assert.ErrorIs(t, err, ErrInsufficientData, "%s", r.Kind())
	}
}

func TestTree_LearnsStep(t *testing.T) {
	x, y := stepData(66)
	tr := NewTree(TreeParams{MaxDepth: 3})
	require.NoError(t, tr.Fit(x, y))
	assert.Equal(t, 0.0, mae(tr, x, y))
	assert.Equal(t, 10.0, tr.Predict([]float64{8, 0}))
	assert.Equal(t, 0.0, tr.Predict([]float64{2, 0}))
	assert.InDelta(t, 5.0, tr.Nodes[0].Threshold, 0.5)
}

func TestTree_DepthLimitAndConstantTarget(t *testing.T) {
	x, y := stepData(66)
	stump := NewTree(TreeParams{MaxDepth: 1})
	require.NoError(t, stump.Fit(x, y))
	assert.Len(t, stump.Nodes, 3)

	flat := NewTree(TreeParams{})
	require.NoError(t, flat.Fit(x, make([]float64, 66)))
	assert.Len(t, flat.Nodes, 1)
}

func TestForest_DeterministicAndAccurate(t *testing.T) {
	x, y := stepData(88)
	p := ForestParams{NEstimators: 20, MaxDepth: 4, Seed: 7}
	f1, f2 := NewForest(p), NewForest(p)
	require.NoError(t, f1.Fit(x, y))
	require.NoError(t, f2.Fit(x, y))
	assert.Len(t, f1.Trees, 20)
	assert.Equal(t, PredictAll(f1, x), PredictAll(f2, x))
	assert.Less(t, mae(f1, x, y), 1.0)

	f3 := NewForest(ForestParams{NEstimators: 20, MaxDepth: 4, Seed: 8})
	require.NoError(t, f3.Fit(x, y))
	assert.Equal(t, RandomForest, f3.Kind())
}

func TestBoosting_ReducesError(t *testing.T) {
	x, y := linearData(80)
	b := NewBoosting(BoostingParams{NEstimators: 50, MaxDepth: 3})
	require.NoError(t, b.Fit(x, y))
	assert.Len(t, b.Trees, 50)
	baseline := Evaluate(y, constant(len(y), b.Init)).MAE
	assert.Less(t, mae(b, x, y), baseline/3)
}

func TestMLP_LearnsLinearTrend(t *testing.T) {
	x, y := linearData(120)
	var s StandardScaler
	xs := s.FitTransform(x)
	m := NewMLP(MLPParams{HiddenLayers: []int{16}, LearningRate: 0.01, BatchSize: 16, MaxIter: 300, Seed: 3})
	require.NoError(t, m.Fit(xs, y))
	assert.Greater(t, m.Epochs, 1)
	assert.Equal(t, []int{3, 16, 1}, m.Sizes)

	mean := 0.0
	for _, v := range y {
		mean += v
	}
	mean /= float64(len(y))
	baseline := Evaluate(y, constant(len(y), mean)).MAE
	assert.Less(t, mae(m, xs, y), baseline/2)

	again := NewMLP(MLPParams{HiddenLayers: []int{16}, LearningRate: 0.01, BatchSize: 16, MaxIter: 300, Seed: 3})
	require.NoError(t, again.Fit(xs, y))
	assert.Equal(t, PredictAll(m, xs), PredictAll(again, xs), "seeded training is reproducible")
}

func TestRegistry(t *testing.T) {
	assert.ElementsMatch(t, []Kind{RandomForest, GradientBoosting, NeuralNetwork, LinearRegression}, Kinds())
	assert.True(t, Known(LinearRegression))
	assert.False(t, Known("svm"))

	_, err := New("svm", nil)
	assert.True(t, errors.Is(err, ErrUnknownKind))

	r, err := New(RandomForest, map[string]any{"n_estimators": 5, "max_depth": "3"})
	require.NoError(t, err)
	f, ok := r.(*Forest)
	require.True(t, ok)
	assert.Equal(t, 5, f.Params.NEstimators)
	assert.Equal(t, 3, f.Params.MaxDepth)
	assert.Equal(t, uint64(42), f.Params.Seed)

	r, err = New(NeuralNetwork, map[string]any{"hidden_layer_sizes": []any{8, 4}})
	require.NoError(t, err)
	assert.Equal(t, []int{8, 4}, r.(*MLP).Params.HiddenLayers)
}

func TestGobRoundTrip(t *testing.T) {
	x, y := linearData(40)
	models := []Regressor{
		NewLinear(),
		NewForest(ForestParams{NEstimators: 5, MaxDepth: 3, Seed: 1}),
		NewBoosting(BoostingParams{NEstimators: 5, MaxDepth: 2}),
		NewMLP(MLPParams{HiddenLayers: []int{4}, MaxIter: 5}),
	}
	for _, m := range models {
		require.NoError(t, m.Fit(x, y), "%s", m.Kind())
		var buf bytes.Buffer
		var in Regressor = m
		require.NoError(t, gob.NewEncoder(&buf).Encode(&in))
		var out Regressor
		require.NoError(t, gob.NewDecoder(&buf).Decode(&out))
		assert.Equal(t, m.Kind(), out.Kind())
		assert.Equal(t, PredictAll(m, x), PredictAll(out, x), "%s", m.Kind())
	}
}

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestEvaluate(t *testing.T) {
	s := Evaluate([]float64{1, 2, 3, 4}, []float64{1, 2, 3, 10})
	assert.InDelta(t, 1.5, s.MAE, 1e-12)
	assert.InDelta(t, 9, s.MSE, 1e-12)
	assert.InDelta(t, 3, s.RMSE, 1e-12)
	assert.InDelta(t, 1-36.0/5, s.R2, 1e-12)
	assert.InDelta(t, 0.75, s.AccuracyWithin5, 1e-12)
	assert.InDelta(t, 1, s.AccuracyWithin10, 1e-12)

	assert.Equal(t, 1.0, Evaluate([]float64{2, 2}, []float64{2, 2}).R2)
	assert.Equal(t, 0.0, Evaluate([]float64{2, 2}, []float64{1, 3}).R2)
	assert.False(t, math.IsNaN(Evaluate([]float64{2, 2}, []float64{1, 3}).R2))
	assert.Equal(t, Scores{}, Evaluate(nil, nil))
}
