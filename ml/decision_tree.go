package ml

import (
	"errors"
	"math/rand"
	"sort"
)

// DecisionTree is a CART classifier over class indices 0..NClasses-1.
// Nodes are stored in a flat slice in pre-order; the root is Nodes[0].
type DecisionTree struct {
	MaxDepth        int        `json:"max_depth"`
	MinSamplesSplit int        `json:"min_samples_split"`
	MinSamplesLeaf  int        `json:"min_samples_leaf"`
	MaxFeatures     int        `json:"max_features"`
	Seed            int64      `json:"seed"`
	NClasses        int        `json:"n_classes"`
	NFeatures       int        `json:"n_features"`
	Nodes           []TreeNode `json:"nodes"`
}

type TreeNode struct {
	FeatureIdx int       `json:"feature_idx"`
	Threshold  float64   `json:"threshold"`
	LeftChild  int       `json:"left_child"`
	RightChild int       `json:"right_child"`
	Samples    int       `json:"samples"`
	Probas     []float64 `json:"probas,omitempty"`
	IsLeaf     bool      `json:"is_leaf"`
}

type TreeOption func(*DecisionTree)

func WithTreeMaxDepth(d int) TreeOption       { return func(dt *DecisionTree) { dt.MaxDepth = d } }
func WithTreeMaxFeatures(k int) TreeOption    { return func(dt *DecisionTree) { dt.MaxFeatures = k } }
func WithTreeMinSamplesLeaf(n int) TreeOption { return func(dt *DecisionTree) { dt.MinSamplesLeaf = n } }
func WithTreeMinSamplesSplit(n int) TreeOption {
	return func(dt *DecisionTree) { dt.MinSamplesSplit = n }
}
func WithTreeSeed(seed int64) TreeOption { return func(dt *DecisionTree) { dt.Seed = seed } }

// NewDecisionTree returns a tree grown until leaves are pure, using every
// feature at each split unless MaxFeatures is set.
func NewDecisionTree(opts ...TreeOption) *DecisionTree {
	dt := &DecisionTree{
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
	}
	for _, o := range opts {
		o(dt)
	}
	return dt
}

// Train fits the tree on all rows. Labels are class indices.
func (dt *DecisionTree) Train(features [][]float64, labels []int) error {
	if len(features) == 0 || len(labels) == 0 {
		return errors.New("features or labels empty")
	}
	nClasses := 0
	for _, label := range labels {
		if label < 0 {
			return errors.New("labels must be non-negative class indices")
		}
		if label+1 > nClasses {
			nClasses = label + 1
		}
	}
	idx := make([]int, len(features))
	for i := range idx {
		idx[i] = i
	}
	return dt.fit(features, labels, idx, nClasses, rand.New(rand.NewSource(dt.Seed)))
}

// fit grows the tree from the rows listed in idx. idx may repeat rows, which
// is how bootstrap samples are expressed.
func (dt *DecisionTree) fit(features [][]float64, labels []int, idx []int, nClasses int, rnd *rand.Rand) error {
	if len(features) != len(labels) {
		return errors.New("features and labels size mismatch")
	}
	if len(idx) == 0 {
		return errors.New("no samples to fit")
	}
	p := len(features[0])
	for _, row := range features {
		if len(row) != p {
			return &DimensionMismatchError{Expected: p, Got: len(row)}
		}
	}
	if dt.MinSamplesSplit < 2 {
		dt.MinSamplesSplit = 2
	}
	if dt.MinSamplesLeaf < 1 {
		dt.MinSamplesLeaf = 1
	}

	dt.NClasses = nClasses
	dt.NFeatures = p
	dt.Nodes = dt.Nodes[:0]
	dt.grow(features, labels, idx, 0, rnd)
	return nil
}

// Predict returns the most probable class index.
func (dt *DecisionTree) Predict(features []float64) (int, error) {
	probas, err := dt.PredictProba(features)
	if err != nil {
		return 0, err
	}
	return argmax(probas), nil
}

// PredictProba returns the class distribution of the leaf features fall into.
func (dt *DecisionTree) PredictProba(features []float64) ([]float64, error) {
	if len(dt.Nodes) == 0 {
		return nil, errors.New("model not trained")
	}
	if len(features) != dt.NFeatures {
		return nil, &DimensionMismatchError{Expected: dt.NFeatures, Got: len(features)}
	}
	idx := 0
	for {
		node := dt.Nodes[idx]
		if node.IsLeaf {
			return node.Probas, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return nil, errors.New("feature index out of range")
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx < 0 || idx >= len(dt.Nodes) {
			return nil, errors.New("invalid tree state")
		}
	}
}

// Depth returns the length of the longest root-to-leaf path.
func (dt *DecisionTree) Depth() int {
	if len(dt.Nodes) == 0 {
		return 0
	}
	var walk func(idx int) int
	walk = func(idx int) int {
		node := dt.Nodes[idx]
		if node.IsLeaf {
			return 0
		}
		l, r := walk(node.LeftChild), walk(node.RightChild)
		if l > r {
			return l + 1
		}
		return r + 1
	}
	return walk(0)
}

func (dt *DecisionTree) grow(features [][]float64, labels []int, idx []int, depth int, rnd *rand.Rand) int {
	nodeIdx := len(dt.Nodes)
	dt.Nodes = append(dt.Nodes, TreeNode{FeatureIdx: -1, LeftChild: -1, RightChild: -1, Samples: len(idx)})

	counts := classCounts(labels, idx, dt.NClasses)
	if isPure(counts) || len(idx) < dt.MinSamplesSplit || (dt.MaxDepth > 0 && depth >= dt.MaxDepth) {
		dt.makeLeaf(nodeIdx, counts)
		return nodeIdx
	}

	split, ok := dt.bestSplit(features, labels, idx, counts, rnd)
	if !ok {
		dt.makeLeaf(nodeIdx, counts)
		return nodeIdx
	}

	left := dt.grow(features, labels, split.left, depth+1, rnd)
	right := dt.grow(features, labels, split.right, depth+1, rnd)

	node := &dt.Nodes[nodeIdx]
	node.FeatureIdx = split.feature
	node.Threshold = split.threshold
	node.LeftChild = left
	node.RightChild = right
	return nodeIdx
}

func (dt *DecisionTree) makeLeaf(nodeIdx int, counts []int) {
	node := &dt.Nodes[nodeIdx]
	node.IsLeaf = true
	node.Probas = countsToProbas(counts)
}

type treeSplit struct {
	feature   int
	threshold float64
	impurity  float64
	left      []int
	right     []int
}

type valueIndex struct {
	value float64
	row   int
}

func (dt *DecisionTree) bestSplit(features [][]float64, labels []int, idx []int, counts []int, rnd *rand.Rand) (treeSplit, bool) {
	candidates := dt.candidateFeatures(rnd)
	parent := giniFromCounts(counts, len(idx))
	best := treeSplit{feature: -1, impurity: parent}

	pairs := make([]valueIndex, len(idx))
	leftCounts := make([]int, dt.NClasses)
	rightCounts := make([]int, dt.NClasses)
	n := len(idx)

	for _, f := range candidates {
		for i, row := range idx {
			pairs[i] = valueIndex{value: features[row][f], row: row}
		}
		sort.Slice(pairs, func(a, b int) bool { return pairs[a].value < pairs[b].value })

		for c := range leftCounts {
			leftCounts[c] = 0
		}
		copy(rightCounts, counts)

		for s := 1; s < n; s++ {
			label := labels[pairs[s-1].row]
			leftCounts[label]++
			rightCounts[label]--
			if pairs[s].value == pairs[s-1].value {
				continue
			}
			if s < dt.MinSamplesLeaf || n-s < dt.MinSamplesLeaf {
				continue
			}
			weighted := (float64(s)*giniFromCounts(leftCounts, s) + float64(n-s)*giniFromCounts(rightCounts, n-s)) / float64(n)
			if weighted < best.impurity-1e-12 {
				best.feature = f
				best.threshold = (pairs[s-1].value + pairs[s].value) / 2
				best.impurity = weighted
			}
		}
	}
	if best.feature < 0 {
		return best, false
	}

	for _, row := range idx {
		if features[row][best.feature] <= best.threshold {
			best.left = append(best.left, row)
		} else {
			best.right = append(best.right, row)
		}
	}
	return best, len(best.left) > 0 && len(best.right) > 0
}

// candidateFeatures draws the features examined at one node.
func (dt *DecisionTree) candidateFeatures(rnd *rand.Rand) []int {
	all := make([]int, dt.NFeatures)
	for i := range all {
		all[i] = i
	}
	if dt.MaxFeatures <= 0 || dt.MaxFeatures >= dt.NFeatures {
		return all
	}
	for i := 0; i < dt.MaxFeatures; i++ {
		j := i + rnd.Intn(dt.NFeatures-i)
		all[i], all[j] = all[j], all[i]
	}
	return all[:dt.MaxFeatures]
}

func classCounts(labels []int, idx []int, nClasses int) []int {
	counts := make([]int, nClasses)
	for _, row := range idx {
		counts[labels[row]]++
	}
	return counts
}

func giniFromCounts(counts []int, total int) float64 {
	if total == 0 {
		return 0
	}
	impurity := 1.0
	for _, c := range counts {
		p := float64(c) / float64(total)
		impurity -= p * p
	}
	return impurity
}

func countsToProbas(counts []int) []float64 {
	total := 0
	for _, c := range counts {
		total += c
	}
	probas := make([]float64, len(counts))
	if total == 0 {
		return probas
	}
	for i, c := range counts {
		probas[i] = float64(c) / float64(total)
	}
	return probas
}

func isPure(counts []int) bool {
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

// argmax returns the first index of the largest value, so ties go to the
// lower class.
func argmax(values []float64) int {
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[best] {
			best = i
		}
	}
	return best
}
