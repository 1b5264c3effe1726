package prediction

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/smartrail/core/estimator"
)

func TestSynthesize(t *testing.T) {
	x, y := Synthesize(400, 42)
	require.Len(t, x, 400)
	require.Len(t, y, 400)
	for i, row := range x {
		assert.Len(t, row, 13)
		assert.GreaterOrEqual(t, y[i], 0.0)
		assert.LessOrEqual(t, y[i], MaxSyntheticDelay)
		assert.GreaterOrEqual(t, row[0], 5.0)
		assert.LessOrEqual(t, row[0], 22.0)
		assert.GreaterOrEqual(t, row[6], 0.0, "rainfall is exponential")
	}

	x2, y2 := Synthesize(400, 42)
	assert.Equal(t, x, x2)
	assert.Equal(t, y, y2)

	_, y3 := Synthesize(400, 43)
	assert.NotEqual(t, y, y3)

	x0, y0 := Synthesize(0, 42)
	assert.Nil(t, x0)
	assert.Nil(t, y0)
}

func TestRetrain_UsesDatabaseWindow(t *testing.T) {
	x, y := Synthesize(80, 9)
	src := &stubSource{x: x, y: y}
	m := New(testConfig(), WithSource(src))

	res, err := m.Retrain(context.Background(), estimator.LinearRegression, true)
	require.NoError(t, err)
	assert.Equal(t, SourceDatabase, res.Source)
	assert.Equal(t, 80, res.Samples)

	_, err = m.Retrain(context.Background(), estimator.LinearRegression, false)
	require.NoError(t, err)
	assert.Equal(t, []int{30, 90}, src.days)
}

func TestRetrain_FallsBackToSynthetic(t *testing.T) {
	tests := []struct {
		name string
		src  TrainingSource
	}{
		{"no source", nil},
		{"source error", &stubSource{err: errors.New("connection refused")}},
		{"too few rows", &stubSource{x: [][]float64{make([]float64, 13)}, y: []float64{1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := []Option{}
			if tt.src != nil {
				opts = append(opts, WithSource(tt.src))
			}
			m := New(testConfig(), opts...)
			res, err := m.Retrain(context.Background(), "", true)
			require.NoError(t, err)
			assert.Equal(t, SourceSynthetic, res.Source)
			assert.Equal(t, 200, res.Samples)
			assert.Equal(t, estimator.LinearRegression, res.ModelType, "empty kind uses the default")
		})
	}
}

func TestRetrain_SingleFlight(t *testing.T) {
	x, y := Synthesize(60, 2)
	src := &stubSource{x: x, y: y, release: make(chan struct{}), entered: make(chan struct{})}
	m := New(testConfig(), WithSource(src))

	done := make(chan error, 1)
	go func() {
		_, err := m.Retrain(context.Background(), estimator.LinearRegression, true)
		done <- err
	}()
	<-src.entered

	_, err := m.Retrain(context.Background(), estimator.LinearRegression, true)
	assert.ErrorIs(t, err, ErrRetrainInProgress)
	_, err = m.CompareAndTrain(context.Background(), x, y, nil, "")
	assert.ErrorIs(t, err, ErrRetrainInProgress)

	close(src.release)
	require.NoError(t, <-done)

	src.entered, src.release = nil, nil
	_, err = m.Retrain(context.Background(), estimator.LinearRegression, true)
	assert.NoError(t, err)
}

func TestCompareAndTrain(t *testing.T) {
	m := New(testConfig())
	x, y := Synthesize(200, 11)
	cmp, err := m.CompareAndTrain(context.Background(), x, y,
		[]estimator.Kind{estimator.RandomForest, estimator.LinearRegression, "svm"}, "")
	require.NoError(t, err)
	require.Len(t, cmp.Candidates, 3)
	assert.NotEmpty(t, cmp.Candidates[2].Error)

	best := cmp.Candidates[0]
	if cmp.Candidates[1].Metrics.MAE < best.Metrics.MAE {
		best = cmp.Candidates[1]
	}
	assert.Equal(t, best.Kind, cmp.Best)
	assert.Equal(t, best.Kind, m.Info().ModelType)
	assert.Equal(t, best.Metrics, cmp.Final.Metrics, "the final fit repeats the winning candidate")
	assert.Equal(t, "1.0.0", cmp.Final.Version)
	assert.Equal(t, SourceManual, cmp.Final.Source)
}

func TestCompareAndTrain_KeepsSource(t *testing.T) {
	m := New(testConfig())
	x, y := Synthesize(120, 5)
	cmp, err := m.CompareAndTrain(context.Background(), x, y,
		[]estimator.Kind{estimator.LinearRegression}, SourceDatabase)
	require.NoError(t, err)
	assert.Equal(t, SourceDatabase, cmp.Final.Source)
	assert.Equal(t, SourceDatabase, m.Current().Meta.Source)
	assert.Equal(t, SourceDatabase, m.Info().Source)
}

func TestCompareAndTrain_AllFail(t *testing.T) {
	m := New(testConfig())
	x, y := Synthesize(5, 1)
	_, err := m.CompareAndTrain(context.Background(), x, y, []estimator.Kind{estimator.LinearRegression}, SourceSynthetic)
	assert.ErrorIs(t, err, estimator.ErrInsufficientData)
	assert.False(t, m.Loaded())
}
