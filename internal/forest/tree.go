package forest

import (
	"math/rand"
	"sort"
)

// Node is one entry of a tree's flat node array. Leaves carry the fraction of home wins
// among the training samples that reached them.
type Node struct {
	Leaf      bool    `json:"leaf,omitempty"`
	Prob      float64 `json:"prob"`
	Feature   int     `json:"feature,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Left      int     `json:"left,omitempty"`
	Right     int     `json:"right,omitempty"`
}

// Tree is a binary CART tree stored as a flat node array rooted at index 0.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// predict walks x down to a leaf and returns its home-win probability.
func (t Tree) predict(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Leaf {
			return n.Prob
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

type treeParams struct {
	maxDepth    int
	minLeaf     int
	maxFeatures int
}

type treeBuilder struct {
	x      [][]float64
	y      []bool
	params treeParams
	rng    *rand.Rand
	nodes  []Node
}

// growTree fits one tree on the rows idx of (x, y).
func growTree(x [][]float64, y []bool, idx []int, params treeParams, rng *rand.Rand) Tree {
	b := &treeBuilder{x: x, y: y, params: params, rng: rng}
	b.grow(idx, 0)
	return Tree{Nodes: b.nodes}
}

func (b *treeBuilder) grow(idx []int, depth int) int {
	pos := positives(b.y, idx)
	prob := float64(pos) / float64(len(idx))

	self := len(b.nodes)
	b.nodes = append(b.nodes, Node{Leaf: true, Prob: prob})

	if depth >= b.params.maxDepth || pos == 0 || pos == len(idx) || len(idx) < 2*b.params.minLeaf {
		return self
	}

	feature, threshold, ok := b.bestSplit(idx)
	if !ok {
		return self
	}

	var left, right []int
	for _, i := range idx {
		if b.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[self] = Node{Prob: prob, Feature: feature, Threshold: threshold, Left: l, Right: r}
	return self
}

// bestSplit searches features in random order for the split with the lowest weighted Gini
// impurity that leaves at least minLeaf rows on each side. It stops after maxFeatures
// features once a valid split has been seen.
func (b *treeBuilder) bestSplit(idx []int) (int, float64, bool) {
	nFeatures := len(b.x[idx[0]])
	candidates := b.rng.Perm(nFeatures)

	total := len(idx)
	totalPos := positives(b.y, idx)
	best := gini(totalPos, total)
	bestFeature, bestThreshold, found := -1, 0.0, false

	sorted := make([]int, total)
	for tried, f := range candidates {
		if tried >= b.params.maxFeatures && found {
			break
		}
		copy(sorted, idx)
		sort.SliceStable(sorted, func(i, j int) bool {
			return b.x[sorted[i]][f] < b.x[sorted[j]][f]
		})

		leftPos := 0
		for k := 0; k < total-1; k++ {
			if b.y[sorted[k]] {
				leftPos++
			}
			leftN := k + 1
			rightN := total - leftN
			if leftN < b.params.minLeaf || rightN < b.params.minLeaf {
				continue
			}
			lo, hi := b.x[sorted[k]][f], b.x[sorted[k+1]][f]
			if lo == hi {
				continue
			}
			score := (float64(leftN)*gini(leftPos, leftN) + float64(rightN)*gini(totalPos-leftPos, rightN)) / float64(total)
			if score < best-1e-12 {
				best = score
				bestFeature = f
				bestThreshold = lo + (hi-lo)/2
				found = true
			}
		}
	}
	return bestFeature, bestThreshold, found
}

func gini(pos, n int) float64 {
	if n == 0 {
		return 0
	}
	p := float64(pos) / float64(n)
	return 2 * p * (1 - p)
}

func positives(y []bool, idx []int) int {
	n := 0
	for _, i := range idx {
		if y[i] {
			n++
		}
	}
	return n
}
