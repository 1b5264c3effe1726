package estimator

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// StandardScaler removes the column mean and divides by the population
// standard deviation. Constant columns keep a scale of 1.
type StandardScaler struct {
	Mean  []float64
	Scale []float64
}

// Fitted reports whether Fit has been called.
func (s *StandardScaler) Fitted() bool { return s != nil && len(s.Mean) > 0 }

// Fit learns the column statistics of x.
func (s *StandardScaler) Fit(x *mat.Dense) {
	n, c := x.Dims()
	s.Mean = make([]float64, c)
	s.Scale = make([]float64, c)
	col := make([]float64, n)
	for j := 0; j < c; j++ {
		mat.Col(col, j, x)
		mean, std := stat.PopMeanStdDev(col, nil)
		s.Mean[j] = mean
		if std == 0 {
			std = 1
		}
		s.Scale[j] = std
	}
}

// Transform returns a scaled copy of x.
func (s *StandardScaler) Transform(x mat.Matrix) *mat.Dense {
	n, c := x.Dims()
	out := mat.NewDense(n, c, nil)
	out.Apply(func(_, j int, v float64) float64 {
		return (v - s.Mean[j]) / s.Scale[j]
	}, x)
	return out
}

// FitTransform fits the scaler on x and returns the scaled matrix.
func (s *StandardScaler) FitTransform(x *mat.Dense) *mat.Dense {
	s.Fit(x)
	return s.Transform(x)
}

// TransformRow scales a single row.
func (s *StandardScaler) TransformRow(row []float64) ([]float64, error) {
	if len(row) != len(s.Mean) {
		return nil, fmt.Errorf("scaler expects %d features, got %d", len(s.Mean), len(row))
	}
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = (v - s.Mean[j]) / s.Scale[j]
	}
	return out, nil
}

// Matrix copies rows into a dense matrix. All rows must have the same length.
func Matrix(rows [][]float64) (*mat.Dense, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("%w: empty matrix", ErrInsufficientData)
	}
	c := len(rows[0])
	data := make([]float64, 0, len(rows)*c)
	for i, r := range rows {
		if len(r) != c {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrDegenerate, i, len(r), c)
		}
		data = append(data, r...)
	}
	return mat.NewDense(len(rows), c, data), nil
}
