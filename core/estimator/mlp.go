package estimator

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// MLPParams configure the feed-forward network trained with Adam.
type MLPParams struct {
	HiddenLayers  []int   `json:"hidden_layer_sizes"`
	LearningRate  float64 `json:"learning_rate_init"`
	Alpha         float64 `json:"alpha"`
	BatchSize     int     `json:"batch_size"`
	MaxIter       int     `json:"max_iter"`
	Tol           float64 `json:"tol"`
	NIterNoChange int     `json:"n_iter_no_change"`
	Beta1         float64 `json:"beta_1"`
	Beta2         float64 `json:"beta_2"`
	Epsilon       float64 `json:"epsilon"`
	Seed          uint64  `json:"random_state"`
}

// DefaultMLPParams mirrors a (100, 50) ReLU network with 500 Adam epochs.
func DefaultMLPParams() MLPParams {
	return MLPParams{
		HiddenLayers:  []int{100, 50},
		LearningRate:  1e-3,
		Alpha:         1e-4,
		BatchSize:     200,
		MaxIter:       500,
		Tol:           1e-4,
		NIterNoChange: 10,
		Beta1:         0.9,
		Beta2:         0.999,
		Epsilon:       1e-8,
		Seed:          42,
	}
}

// MLP is a multilayer perceptron with ReLU hidden layers and a linear output.
// Weights[l] is a row-major Sizes[l] x Sizes[l+1] matrix.
type MLP struct {
	Params  MLPParams
	Sizes   []int
	Weights [][]float64
	Biases  [][]float64
	Epochs  int
	Loss    float64
}

// NewMLP returns an unfitted network.
func NewMLP(p MLPParams) *MLP {
	d := DefaultMLPParams()
	if len(p.HiddenLayers) == 0 {
		p.HiddenLayers = d.HiddenLayers
	}
	if p.LearningRate <= 0 {
		p.LearningRate = d.LearningRate
	}
	if p.BatchSize <= 0 {
		p.BatchSize = d.BatchSize
	}
	if p.MaxIter <= 0 {
		p.MaxIter = d.MaxIter
	}
	if p.NIterNoChange <= 0 {
		p.NIterNoChange = d.NIterNoChange
	}
	if p.Beta1 <= 0 {
		p.Beta1 = d.Beta1
	}
	if p.Beta2 <= 0 {
		p.Beta2 = d.Beta2
	}
	if p.Epsilon <= 0 {
		p.Epsilon = d.Epsilon
	}
	return &MLP{Params: p}
}

// Kind implements Regressor.
func (*MLP) Kind() Kind { return NeuralNetwork }

type adamState struct {
	mW, vW []*mat.Dense
	mB, vB [][]float64
	t      int
}

// Fit trains with mini-batch Adam on the squared error plus an L2 penalty.
// Training stops after MaxIter epochs or when the epoch loss has not improved
// by Tol for NIterNoChange consecutive epochs.
func (m *MLP) Fit(x *mat.Dense, y []float64) error {
	n, c, err := checkFitInput(x, y)
	if err != nil {
		return err
	}
	p := m.Params
	m.Sizes = append(append([]int{c}, p.HiddenLayers...), 1)
	for _, s := range m.Sizes {
		if s <= 0 {
			return fmt.Errorf("%w: layer size %d", ErrDegenerate, s)
		}
	}
	rng := rand.New(rand.NewPCG(p.Seed, 0x5eed))
	m.initWeights(rng)

	layers := len(m.Sizes) - 1
	w := make([]*mat.Dense, layers)
	st := adamState{mW: make([]*mat.Dense, layers), vW: make([]*mat.Dense, layers), mB: make([][]float64, layers), vB: make([][]float64, layers)}
	for l := 0; l < layers; l++ {
		w[l] = mat.NewDense(m.Sizes[l], m.Sizes[l+1], m.Weights[l])
		st.mW[l] = mat.NewDense(m.Sizes[l], m.Sizes[l+1], nil)
		st.vW[l] = mat.NewDense(m.Sizes[l], m.Sizes[l+1], nil)
		st.mB[l] = make([]float64, m.Sizes[l+1])
		st.vB[l] = make([]float64, m.Sizes[l+1])
	}

	batch := p.BatchSize
	if batch > n {
		batch = n
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	best := math.Inf(1)
	stale := 0
	for epoch := 0; epoch < p.MaxIter; epoch++ {
		rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
		var total float64
		for start := 0; start < n; start += batch {
			end := start + batch
			if end > n {
				end = n
			}
			idx := order[start:end]
			loss := m.step(w, &st, SelectRows(x, idx), selectVals(y, idx))
			total += loss * float64(len(idx))
		}
		m.Loss = total / float64(n)
		m.Epochs = epoch + 1
		if math.IsNaN(m.Loss) || math.IsInf(m.Loss, 0) {
			return fmt.Errorf("%w: training diverged", ErrDegenerate)
		}
		if m.Loss > best-p.Tol {
			stale++
		} else {
			stale = 0
		}
		if m.Loss < best {
			best = m.Loss
		}
		if stale > p.NIterNoChange {
			break
		}
	}
	return nil
}

func (m *MLP) initWeights(rng *rand.Rand) {
	layers := len(m.Sizes) - 1
	m.Weights = make([][]float64, layers)
	m.Biases = make([][]float64, layers)
	for l := 0; l < layers; l++ {
		in, out := m.Sizes[l], m.Sizes[l+1]
		bound := math.Sqrt(6 / float64(in+out))
		m.Weights[l] = make([]float64, in*out)
		for i := range m.Weights[l] {
			m.Weights[l][i] = (rng.Float64()*2 - 1) * bound
		}
		m.Biases[l] = make([]float64, out)
		for i := range m.Biases[l] {
			m.Biases[l][i] = (rng.Float64()*2 - 1) * bound
		}
	}
}

// step runs one forward and backward pass on a batch and applies an Adam
// update. It returns the batch loss before the update.
func (m *MLP) step(w []*mat.Dense, st *adamState, xb *mat.Dense, yb []float64) float64 {
	p := m.Params
	layers := len(w)
	bs, _ := xb.Dims()
	fb := float64(bs)

	acts := make([]*mat.Dense, layers+1)
	acts[0] = xb
	for l := 0; l < layers; l++ {
		z := new(mat.Dense)
		z.Mul(acts[l], w[l])
		bias := m.Biases[l]
		hidden := l < layers-1
		z.Apply(func(_, j int, v float64) float64 {
			v += bias[j]
			if hidden && v < 0 {
				return 0
			}
			return v
		}, z)
		acts[l+1] = z
	}

	delta := mat.NewDense(bs, 1, nil)
	var sq float64
	for i := 0; i < bs; i++ {
		d := acts[layers].At(i, 0) - yb[i]
		delta.Set(i, 0, d)
		sq += d * d
	}
	var penalty float64
	for l := 0; l < layers; l++ {
		for _, v := range m.Weights[l] {
			penalty += v * v
		}
	}
	loss := sq/fb/2 + 0.5*p.Alpha*penalty/fb

	st.t++
	lrT := p.LearningRate * math.Sqrt(1-math.Pow(p.Beta2, float64(st.t))) / (1 - math.Pow(p.Beta1, float64(st.t)))
	for l := layers - 1; l >= 0; l-- {
		gradW := new(mat.Dense)
		gradW.Mul(acts[l].T(), delta)
		gradW.Apply(func(i, j int, v float64) float64 {
			return (v + p.Alpha*w[l].At(i, j)) / fb
		}, gradW)
		gradB := make([]float64, m.Sizes[l+1])
		for j := range gradB {
			gradB[j] = mat.Sum(delta.ColView(j)) / fb
		}

		var next *mat.Dense
		if l > 0 {
			next = new(mat.Dense)
			next.Mul(delta, w[l].T())
			prev := acts[l]
			next.Apply(func(i, j int, v float64) float64 {
				if prev.At(i, j) <= 0 {
					return 0
				}
				return v
			}, next)
		}

		adamUpdate(w[l], st.mW[l], st.vW[l], gradW, p, lrT)
		for j, g := range gradB {
			st.mB[l][j] = p.Beta1*st.mB[l][j] + (1-p.Beta1)*g
			st.vB[l][j] = p.Beta2*st.vB[l][j] + (1-p.Beta2)*g*g
			m.Biases[l][j] -= lrT * st.mB[l][j] / (math.Sqrt(st.vB[l][j]) + p.Epsilon)
		}
		delta = next
	}
	return loss
}

func adamUpdate(w, mw, vw, grad *mat.Dense, p MLPParams, lrT float64) {
	r, c := w.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			g := grad.At(i, j)
			mv := p.Beta1*mw.At(i, j) + (1-p.Beta1)*g
			vv := p.Beta2*vw.At(i, j) + (1-p.Beta2)*g*g
			mw.Set(i, j, mv)
			vw.Set(i, j, vv)
			w.Set(i, j, w.At(i, j)-lrT*mv/(math.Sqrt(vv)+p.Epsilon))
		}
	}
}

// Predict implements Regressor.
func (m *MLP) Predict(row []float64) float64 {
	layers := len(m.Weights)
	if layers == 0 {
		return 0
	}
	act := row
	for l := 0; l < layers; l++ {
		in, out := m.Sizes[l], m.Sizes[l+1]
		next := make([]float64, out)
		copy(next, m.Biases[l])
		wl := m.Weights[l]
		for i := 0; i < in && i < len(act); i++ {
			a := act[i]
			if a == 0 {
				continue
			}
			base := i * out
			for j := 0; j < out; j++ {
				next[j] += a * wl[base+j]
			}
		}
		if l < layers-1 {
			for j, v := range next {
				if v < 0 {
					next[j] = 0
				}
			}
		}
		act = next
	}
	return act[0]
}
