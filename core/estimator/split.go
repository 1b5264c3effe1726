package estimator

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// Split holds a train/test partition.
type Split struct {
	XTrain, XTest *mat.Dense
	YTrain, YTest []float64
}

// TrainTestSplit shuffles the rows with a seeded generator and holds out
// ceil(testSize*n) of them. It needs at least two rows.
func TrainTestSplit(x *mat.Dense, y []float64, testSize float64, seed uint64) (Split, error) {
	n, _, err := checkFitInput(x, y)
	if err != nil {
		return Split{}, err
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	if nTest < 1 {
		nTest = 1
	}
	if nTest >= n {
		nTest = n - 1
	}
	perm := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)).Perm(n)
	test, train := perm[:nTest], perm[nTest:]
	return Split{
		XTrain: SelectRows(x, train),
		XTest:  SelectRows(x, test),
		YTrain: selectVals(y, train),
		YTest:  selectVals(y, test),
	}, nil
}

// Fold is one cross-validation partition expressed as row indices.
type Fold struct {
	Train []int
	Test  []int
}

// KFold partitions n rows into k contiguous folds without shuffling. The
// first n%k folds hold one extra row.
func KFold(n, k int) []Fold {
	if k < 2 || n < k {
		return nil
	}
	folds := make([]Fold, 0, k)
	start := 0
	for f := 0; f < k; f++ {
		size := n / k
		if f < n%k {
			size++
		}
		end := start + size
		fold := Fold{Test: make([]int, 0, size), Train: make([]int, 0, n-size)}
		for i := 0; i < n; i++ {
			if i >= start && i < end {
				fold.Test = append(fold.Test, i)
			} else {
				fold.Train = append(fold.Train, i)
			}
		}
		folds = append(folds, fold)
		start = end
	}
	return folds
}

// SelectRows copies the given rows of x into a new matrix.
func SelectRows(x mat.Matrix, idx []int) *mat.Dense {
	_, c := x.Dims()
	out := mat.NewDense(len(idx), c, nil)
	row := make([]float64, c)
	for i, r := range idx {
		mat.Row(row, r, x)
		out.SetRow(i, row)
	}
	return out
}

func selectVals(y []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, r := range idx {
		out[i] = y[r]
	}
	return out
}
