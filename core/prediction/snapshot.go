package prediction

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/smartrail/core/estimator"
	"github.com/kilianp07/smartrail/core/features"
)

// ErrNoArtifact is returned by an ArtifactStore that holds no saved model.
var ErrNoArtifact = errors.New("no saved model artifact")

// TrainingMetrics are the held-out and cross-validated scores of a snapshot.
type TrainingMetrics struct {
	estimator.Scores
	CVMAE        float64 `json:"cv_mae"`
	CVStd        float64 `json:"cv_std"`
	TrainSamples int     `json:"n_train"`
	TestSamples  int     `json:"n_test"`
}

// Metadata describes a trained snapshot. It is persisted next to the
// estimator and scaler.
type Metadata struct {
	ModelType    estimator.Kind  `json:"model_type"`
	Version      string          `json:"version"`
	Generation   uint64          `json:"generation"`
	FeatureNames []string        `json:"feature_names"`
	TrainedAt    time.Time       `json:"trained_at"`
	IsTrained    bool            `json:"is_trained"`
	Source       string          `json:"source,omitempty"`
	Metrics      TrainingMetrics `json:"metrics"`
}

// Snapshot is one complete trained model. It must not be mutated after it
// has been published.
type Snapshot struct {
	Estimator estimator.Regressor
	Scaler    *estimator.StandardScaler
	Meta      Metadata
}

// Validate checks that the snapshot can serve predictions for the current
// feature layout.
func (s *Snapshot) Validate() error {
	if s == nil || s.Estimator == nil {
		return fmt.Errorf("snapshot has no estimator")
	}
	if !s.Scaler.Fitted() || len(s.Scaler.Mean) != features.Dim {
		return fmt.Errorf("scaler expects %d features, want %d", len(s.scalerMean()), features.Dim)
	}
	if !features.SameNames(s.Meta.FeatureNames) {
		return fmt.Errorf("feature names %v do not match %v", s.Meta.FeatureNames, features.Names())
	}
	if !s.Meta.IsTrained {
		return fmt.Errorf("snapshot is not marked trained")
	}
	return nil
}

func (s *Snapshot) scalerMean() []float64 {
	if s.Scaler == nil {
		return nil
	}
	return s.Scaler.Mean
}

// ArtifactStore persists snapshots. Save and Load treat the estimator, scaler
// and metadata as one unit.
type ArtifactStore interface {
	Save(ctx context.Context, s *Snapshot) error
	Load(ctx context.Context) (*Snapshot, error)
}

// Version formats the semantic version of a model generation.
func Version(generation uint64) string {
	return fmt.Sprintf("1.0.%d", generation)
}

// parseGeneration recovers the generation from a version string written by
// Version. Unknown formats map to 0.
func parseGeneration(v string) uint64 {
	i := strings.LastIndexByte(v, '.')
	if i < 0 {
		return 0
	}
	n, err := strconv.ParseUint(v[i+1:], 10, 64)
	if err != nil {
		return 0
	}
	return n
}
