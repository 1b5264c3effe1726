package artifact

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/smartrail/core/estimator"
	"github.com/kilianp07/smartrail/core/features"
	"github.com/kilianp07/smartrail/core/prediction"
)

func trainedModel(t *testing.T, store prediction.ArtifactStore, kind estimator.Kind) *prediction.Model {
	t.Helper()
	cfg := prediction.Config{
		DefaultKind: kind,
		Hyperparams: map[estimator.Kind]map[string]any{
			estimator.RandomForest:     {"n_estimators": 5, "max_depth": 4},
			estimator.GradientBoosting: {"n_estimators": 5, "max_depth": 3},
			estimator.NeuralNetwork:    {"hidden_layer_sizes": []int{8}, "max_iter": 20},
		},
	}
	m := prediction.New(cfg, prediction.WithStore(store))
	x, y := prediction.Synthesize(150, 42)
	if _, err := m.Train(context.Background(), x, y, kind); err != nil {
		t.Fatalf("train %s: %v", kind, err)
	}
	return m
}

func TestFileStore_RoundTrip(t *testing.T) {
	probe, _ := prediction.Synthesize(20, 7)
	for _, kind := range estimator.Kinds() {
		t.Run(string(kind), func(t *testing.T) {
			dir := t.TempDir()
			store := NewFileStore(dir)
			m := trainedModel(t, store, kind)

			for _, f := range []string{ModelFile, ScalerFile, MetadataFile} {
				_, err := os.Stat(filepath.Join(dir, f))
				require.NoError(t, err, f)
			}

			loaded := prediction.New(prediction.Config{}, prediction.WithStore(store))
			require.NoError(t, loaded.Load(context.Background()))
			assert.Equal(t, m.Info().Version, loaded.Info().Version)
			assert.Equal(t, kind, loaded.Info().ModelType)

			for _, row := range probe {
				v, err := features.FromSlice(row)
				require.NoError(t, err)
				want, err := m.Predict(v)
				require.NoError(t, err)
				got, err := loaded.Predict(v)
				require.NoError(t, err)
				assert.Equal(t, want, got)
			}
		})
	}
}

func TestFileStore_Missing(t *testing.T) {
	_, err := NewFileStore(filepath.Join(t.TempDir(), "none")).Load(context.Background())
	assert.ErrorIs(t, err, prediction.ErrNoArtifact)
}

func TestFileStore_Corrupt(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)
	trainedModel(t, store, estimator.LinearRegression)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ModelFile), []byte("not zstd"), 0o644))

	_, err := store.Load(context.Background())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, prediction.ErrNoArtifact)
}

func TestFileStore_MetadataIsReadableJSON(t *testing.T) {
	dir := t.TempDir()
	trainedModel(t, NewFileStore(dir), estimator.LinearRegression)
	b, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	require.NoError(t, err)
	assert.Contains(t, string(b), `"model_type": "linear_regression"`)
	assert.Contains(t, string(b), `"is_trained": true`)
	assert.Contains(t, string(b), `"historical_avg_delay"`)

	matches, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}
