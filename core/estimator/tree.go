package estimator

import (
	"sort"

	"gonum.org/v1/gonum/mat"
)

// TreeParams control the growth of a regression tree. MaxDepth <= 0 means
// unlimited depth.
type TreeParams struct {
	MaxDepth        int `json:"max_depth"`
	MinSamplesSplit int `json:"min_samples_split"`
	MinSamplesLeaf  int `json:"min_samples_leaf"`
}

func (p TreeParams) normalized() TreeParams {
	if p.MinSamplesSplit < 2 {
		p.MinSamplesSplit = 2
	}
	if p.MinSamplesLeaf < 1 {
		p.MinSamplesLeaf = 1
	}
	return p
}

// Node is a tree node. Leaves have Left == -1.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64
}

// Tree is a CART regression tree minimising squared error.
type Tree struct {
	Params TreeParams
	Nodes  []Node
}

// NewTree returns an unfitted tree.
func NewTree(p TreeParams) *Tree { return &Tree{Params: p.normalized()} }

// Kind implements Regressor. A lone tree reports the forest kind since it is
// only used as a building block.
func (*Tree) Kind() Kind { return RandomForest }

// Fit grows the tree on all rows of x.
func (t *Tree) Fit(x *mat.Dense, y []float64) error {
	n, _, err := checkFitInput(x, y)
	if err != nil {
		return err
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	t.fitIndices(x, y, idx)
	return nil
}

// fitIndices grows the tree on the rows listed in idx. Rows may repeat, which
// is how bootstrap samples are expressed.
func (t *Tree) fitIndices(x *mat.Dense, y []float64, idx []int) {
	t.Params = t.Params.normalized()
	t.Nodes = t.Nodes[:0]
	b := treeBuilder{x: x, y: y, p: t.Params, tree: t}
	b.grow(idx, 0)
}

// Predict implements Regressor.
func (t *Tree) Predict(row []float64) float64 {
	if len(t.Nodes) == 0 {
		return 0
	}
	i := 0
	for {
		n := t.Nodes[i]
		if n.Left < 0 {
			return n.Value
		}
		if row[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

type treeBuilder struct {
	x    *mat.Dense
	y    []float64
	p    TreeParams
	tree *Tree
}

func (b *treeBuilder) grow(idx []int, depth int) int {
	var sum, sumSq float64
	for _, i := range idx {
		sum += b.y[i]
		sumSq += b.y[i] * b.y[i]
	}
	n := float64(len(idx))
	node := Node{Left: -1, Right: -1, Value: sum / n}
	pos := len(b.tree.Nodes)
	b.tree.Nodes = append(b.tree.Nodes, node)

	impurity := sumSq - sum*sum/n
	if (b.p.MaxDepth > 0 && depth >= b.p.MaxDepth) ||
		len(idx) < b.p.MinSamplesSplit ||
		len(idx) < 2*b.p.MinSamplesLeaf ||
		impurity <= 1e-12*(1+sumSq) {
		return pos
	}

	feature, threshold, ok := b.bestSplit(idx, sum, sumSq)
	if !ok {
		return pos
	}
	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if b.x.At(i, feature) <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return pos
	}
	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.tree.Nodes[pos].Feature = feature
	b.tree.Nodes[pos].Threshold = threshold
	b.tree.Nodes[pos].Left = l
	b.tree.Nodes[pos].Right = r
	return pos
}

// bestSplit scans every feature for the threshold with the lowest summed
// squared error of the two children. Thresholds sit halfway between
// consecutive distinct values.
func (b *treeBuilder) bestSplit(idx []int, sum, sumSq float64) (int, float64, bool) {
	_, cols := b.x.Dims()
	n := len(idx)
	minLeaf := b.p.MinSamplesLeaf
	parentSSE := sumSq - sum*sum/float64(n)

	bestSSE := parentSSE
	bestFeature, bestThreshold, found := -1, 0.0, false

	type pair struct{ v, y float64 }
	pairs := make([]pair, n)
	for f := 0; f < cols; f++ {
		for k, i := range idx {
			pairs[k] = pair{v: b.x.At(i, f), y: b.y[i]}
		}
		sort.Slice(pairs, func(a, c int) bool { return pairs[a].v < pairs[c].v })
		if pairs[0].v == pairs[n-1].v {
			continue
		}
		var ls, lsq float64
		for k := 0; k < n-1; k++ {
			ls += pairs[k].y
			lsq += pairs[k].y * pairs[k].y
			nl := k + 1
			nr := n - nl
			if nl < minLeaf {
				continue
			}
			if nr < minLeaf {
				break
			}
			if pairs[k].v == pairs[k+1].v {
				continue
			}
			rs := sum - ls
			rsq := sumSq - lsq
			sse := (lsq - ls*ls/float64(nl)) + (rsq - rs*rs/float64(nr))
			if sse < bestSSE-1e-12*(1+parentSSE) {
				bestSSE = sse
				bestFeature = f
				bestThreshold = pairs[k].v + (pairs[k+1].v-pairs[k].v)/2
				found = true
			}
		}
	}
	return bestFeature, bestThreshold, found
}
