package estimator

import (
	"encoding/gob"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/kilianp07/smartrail/core/factory"
)

// Kind names a regression algorithm.
type Kind string

const (
	RandomForest     Kind = "random_forest"
	GradientBoosting Kind = "gradient_boosting"
	NeuralNetwork    Kind = "neural_network"
	LinearRegression Kind = "linear_regression"
)

// Sentinel errors returned by fitting and construction.
var (
	ErrUnknownKind      = errors.New("unknown estimator kind")
	ErrInsufficientData = errors.New("insufficient training data")
	ErrDegenerate       = errors.New("degenerate training data")
	ErrNotFitted        = errors.New("estimator not fitted")
)

// MinSamples is the smallest training set Train accepts.
const MinSamples = 10

// Regressor is a fitted or unfitted regression model.
type Regressor interface {
	// Fit trains the model on the rows of x with targets y.
	Fit(x *mat.Dense, y []float64) error
	// Predict returns the estimate for one feature row.
	Predict(row []float64) float64
	Kind() Kind
}

var registry = factory.NewRegistry[Regressor]()

func init() {
	registry.MustRegister(string(RandomForest), func(conf map[string]any) (Regressor, error) {
		p := DefaultForestParams()
		if err := factory.Decode(conf, &p); err != nil {
			return nil, err
		}
		return NewForest(p), nil
	})
	registry.MustRegister(string(GradientBoosting), func(conf map[string]any) (Regressor, error) {
		p := DefaultBoostingParams()
		if err := factory.Decode(conf, &p); err != nil {
			return nil, err
		}
		return NewBoosting(p), nil
	})
	registry.MustRegister(string(NeuralNetwork), func(conf map[string]any) (Regressor, error) {
		p := DefaultMLPParams()
		if err := factory.Decode(conf, &p); err != nil {
			return nil, err
		}
		return NewMLP(p), nil
	})
	registry.MustRegister(string(LinearRegression), func(map[string]any) (Regressor, error) {
		return NewLinear(), nil
	})

	gob.Register(&Linear{})
	gob.Register(&Tree{})
	gob.Register(&Forest{})
	gob.Register(&Boosting{})
	gob.Register(&MLP{})
}

// Kinds lists the registered estimator kinds.
func Kinds() []Kind {
	names := registry.Names()
	out := make([]Kind, len(names))
	for i, n := range names {
		out[i] = Kind(n)
	}
	return out
}

// Known reports whether k is a registered kind.
func Known(k Kind) bool { return registry.Has(string(k)) }

// New creates an unfitted estimator of kind k. conf overrides the default
// hyperparameters using the json names of the params structs.
func New(k Kind, conf map[string]any) (Regressor, error) {
	if !Known(k) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, k)
	}
	r, err := registry.Create(factory.ModuleConfig{Type: string(k), Conf: conf})
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", k, err)
	}
	return r, nil
}

// PredictAll applies r to every row of x.
func PredictAll(r Regressor, x mat.Matrix) []float64 {
	n, c := x.Dims()
	out := make([]float64, n)
	row := make([]float64, c)
	for i := 0; i < n; i++ {
		mat.Row(row, i, x)
		out[i] = r.Predict(row)
	}
	return out
}

func checkFitInput(x *mat.Dense, y []float64) (int, int, error) {
	if x == nil {
		return 0, 0, fmt.Errorf("%w: no rows", ErrInsufficientData)
	}
	n, c := x.Dims()
	if n != len(y) {
		return 0, 0, fmt.Errorf("%w: %d rows but %d targets", ErrDegenerate, n, len(y))
	}
	if n < 2 || c == 0 {
		return 0, 0, fmt.Errorf("%w: %d rows, %d columns", ErrInsufficientData, n, c)
	}
	return n, c, nil
}
