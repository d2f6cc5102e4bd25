package classifier

import (
	"math/rand/v2"

	"github.com/tensorplex-labs/molgan/internal/fingerprint"
)

// A Node is a split of the form "bit FeatureIndex unset ?". The left subtree
// receives rows where the bit is 0.
type Node struct {
	FeatureIndex int  `json:"feature_index"`
	LeftChild    int  `json:"left_child"`
	LeftIsLeaf   bool `json:"left_is_leaf"`
	RightChild   int  `json:"right_child"`
	RightIsLeaf  bool `json:"right_is_leaf"`
}

// A Tree is a flat decision tree over fingerprint bits. Outputs holds the
// weighted class distribution of each leaf.
type Tree struct {
	Nodes       []Node      `json:"nodes"`
	Outputs     [][]float64 `json:"outputs"`
	FeatureSize int         `json:"feature_size"`
	importance  []float64
}

// Leaf returns the index of the leaf v lands in.
func (t *Tree) Leaf(v fingerprint.Vector) int {
	if len(t.Nodes) == 0 {
		return 0
	}
	cur := t.Nodes[0]
	for {
		if !v.Test(cur.FeatureIndex) {
			if cur.LeftIsLeaf {
				return cur.LeftChild
			}
			cur = t.Nodes[cur.LeftChild]
		} else {
			if cur.RightIsLeaf {
				return cur.RightChild
			}
			cur = t.Nodes[cur.RightChild]
		}
	}
}

// Proba returns the class distribution of the leaf v lands in.
func (t *Tree) Proba(v fingerprint.Vector) []float64 {
	return t.Outputs[t.Leaf(v)]
}

type treeParams struct {
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int
}

type treeBuilder struct {
	params  treeParams
	rows    []fingerprint.Vector
	labels  []int
	weights []float64
	rng     *rand.Rand
	tree    *Tree
}

// childRef is where a finished subtree is attached.
type childRef struct {
	index  int
	isLeaf bool
}

func gini(w [numClasses]float64) float64 {
	total := w[0] + w[1]
	if total <= 0 {
		return 0
	}
	p0, p1 := w[0]/total, w[1]/total
	return 1 - p0*p0 - p1*p1
}

func (b *treeBuilder) classWeights(idx []int) [numClasses]float64 {
	var w [numClasses]float64
	for _, i := range idx {
		w[b.labels[i]] += b.weights[i]
	}
	return w
}

func (b *treeBuilder) leaf(w [numClasses]float64) childRef {
	total := w[0] + w[1]
	dist := make([]float64, numClasses)
	if total > 0 {
		dist[0], dist[1] = w[0]/total, w[1]/total
	}
	b.tree.Outputs = append(b.tree.Outputs, dist)
	return childRef{index: len(b.tree.Outputs) - 1, isLeaf: true}
}

type split struct {
	feature     int
	left, right []int
	decrease    float64
}

// bestSplit examines features in random order until maxFeatures
// non-constant ones have been evaluated.
func (b *treeBuilder) bestSplit(idx []int, w [numClasses]float64) (split, bool) {
	parentTotal := w[0] + w[1]
	parentImpurity := gini(w) * parentTotal

	features := b.rng.Perm(b.tree.FeatureSize)
	best := split{decrease: 1e-12}
	found := false
	visited := 0
	for _, f := range features {
		if visited >= b.params.maxFeatures {
			break
		}
		var wr [numClasses]float64
		nr := 0
		for _, i := range idx {
			if b.rows[i].Test(f) {
				wr[b.labels[i]] += b.weights[i]
				nr++
			}
		}
		nl := len(idx) - nr
		if nr == 0 || nl == 0 {
			continue
		}
		visited++
		if nl < b.params.minSamplesLeaf || nr < b.params.minSamplesLeaf {
			continue
		}
		wl := [numClasses]float64{w[0] - wr[0], w[1] - wr[1]}
		dec := parentImpurity - gini(wl)*(wl[0]+wl[1]) - gini(wr)*(wr[0]+wr[1])
		if dec > best.decrease {
			best = split{feature: f, decrease: dec}
			found = true
		}
	}
	if !found {
		return split{}, false
	}
	for _, i := range idx {
		if b.rows[i].Test(best.feature) {
			best.right = append(best.right, i)
		} else {
			best.left = append(best.left, i)
		}
	}
	return best, true
}

func (b *treeBuilder) grow(idx []int, depth int) childRef {
	w := b.classWeights(idx)
	if len(idx) < b.params.minSamplesSplit ||
		(b.params.maxDepth > 0 && depth >= b.params.maxDepth) ||
		gini(w) <= 0 {
		return b.leaf(w)
	}
	s, ok := b.bestSplit(idx, w)
	if !ok {
		return b.leaf(w)
	}
	b.tree.importance[s.feature] += s.decrease

	at := len(b.tree.Nodes)
	b.tree.Nodes = append(b.tree.Nodes, Node{FeatureIndex: s.feature})
	left := b.grow(s.left, depth+1)
	right := b.grow(s.right, depth+1)
	b.tree.Nodes[at].LeftChild, b.tree.Nodes[at].LeftIsLeaf = left.index, left.isLeaf
	b.tree.Nodes[at].RightChild, b.tree.Nodes[at].RightIsLeaf = right.index, right.isLeaf
	return childRef{index: at}
}

// buildTree fits one tree on the rows in idx with the given per-row weights.
func buildTree(rows []fingerprint.Vector, labels []int, weights []float64, idx []int, params treeParams, rng *rand.Rand) *Tree {
	n := rows[0].Len()
	b := &treeBuilder{
		params:  params,
		rows:    rows,
		labels:  labels,
		weights: weights,
		rng:     rng,
		tree:    &Tree{FeatureSize: n, importance: make([]float64, n)},
	}
	b.grow(idx, 0)
	return b.tree
}
