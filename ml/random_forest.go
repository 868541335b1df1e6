package ml

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sort"
	"sync"
)

// RandomForest is a bagged ensemble of decision trees. Class probabilities
// are the mean of the trees' leaf distributions.
type RandomForest struct {
	NEstimators     int             `json:"n_estimators"`
	MaxDepth        int             `json:"max_depth"`
	MinSamplesSplit int             `json:"min_samples_split"`
	MinSamplesLeaf  int             `json:"min_samples_leaf"`
	MaxFeatures     int             `json:"max_features"`
	Bootstrap       bool            `json:"bootstrap"`
	Seed            int64           `json:"seed"`
	ClassLabels     []int           `json:"classes"`
	NFeatures       int             `json:"n_features"`
	Trees           []*DecisionTree `json:"trees"`

	workers int
}

type ForestOption func(*RandomForest)

func WithNEstimators(n int) ForestOption  { return func(rf *RandomForest) { rf.NEstimators = n } }
func WithMaxDepth(d int) ForestOption     { return func(rf *RandomForest) { rf.MaxDepth = d } }
func WithMaxFeatures(k int) ForestOption  { return func(rf *RandomForest) { rf.MaxFeatures = k } }
func WithBootstrap(b bool) ForestOption   { return func(rf *RandomForest) { rf.Bootstrap = b } }
func WithSeed(seed int64) ForestOption    { return func(rf *RandomForest) { rf.Seed = seed } }
func WithMinSamplesLeaf(n int) ForestOption {
	return func(rf *RandomForest) { rf.MinSamplesLeaf = n }
}
func WithMinSamplesSplit(n int) ForestOption {
	return func(rf *RandomForest) { rf.MinSamplesSplit = n }
}

// WithWorkers bounds how many trees are fitted at once. The fitted forest
// does not depend on it.
func WithWorkers(n int) ForestOption { return func(rf *RandomForest) { rf.workers = n } }

// NewRandomForest returns a forest of 100 fully grown trees with bootstrap
// sampling and sqrt(p) features per split.
func NewRandomForest(opts ...ForestOption) *RandomForest {
	rf := &RandomForest{
		NEstimators:     100,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Bootstrap:       true,
		Seed:            42,
		workers:         runtime.GOMAXPROCS(0),
	}
	for _, o := range opts {
		o(rf)
	}
	return rf
}

func (rf *RandomForest) Name() string {
	return "random_forest"
}

// Classes returns the label values in probability order.
func (rf *RandomForest) Classes() []int {
	out := make([]int, len(rf.ClassLabels))
	copy(out, rf.ClassLabels)
	return out
}

// Fit trains NEstimators trees. Tree i draws its bootstrap sample and
// feature subsets from Seed+i, so the result depends only on the data and
// Seed.
func (rf *RandomForest) Fit(X [][]float64, y []int) error {
	if len(X) == 0 {
		return errors.New("randomforest: empty X")
	}
	if len(y) != len(X) {
		return errors.New("randomforest: X and y length mismatch")
	}
	if rf.NEstimators <= 0 {
		return fmt.Errorf("randomforest: n_estimators must be positive, got %d", rf.NEstimators)
	}

	rf.ClassLabels = uniqueSorted(y)
	classIndex := make(map[int]int, len(rf.ClassLabels))
	for i, c := range rf.ClassLabels {
		classIndex[c] = i
	}
	encoded := make([]int, len(y))
	for i, label := range y {
		encoded[i] = classIndex[label]
	}

	rf.NFeatures = len(X[0])
	maxFeatures := rf.MaxFeatures
	if maxFeatures <= 0 {
		maxFeatures = int(math.Max(1, math.Floor(math.Sqrt(float64(rf.NFeatures)))))
	}

	workers := rf.workers
	if workers <= 0 {
		workers = 1
	}
	if workers > rf.NEstimators {
		workers = rf.NEstimators
	}

	rf.Trees = make([]*DecisionTree, rf.NEstimators)
	errs := make([]error, rf.NEstimators)
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				rf.Trees[i], errs[i] = rf.fitTree(X, encoded, i, maxFeatures)
			}
		}()
	}
	for i := 0; i < rf.NEstimators; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			rf.Trees = nil
			return err
		}
	}
	return nil
}

func (rf *RandomForest) fitTree(X [][]float64, y []int, i int, maxFeatures int) (*DecisionTree, error) {
	seed := rf.Seed + int64(i)
	rnd := rand.New(rand.NewSource(seed))

	n := len(X)
	sample := make([]int, n)
	for j := range sample {
		if rf.Bootstrap {
			sample[j] = rnd.Intn(n)
		} else {
			sample[j] = j
		}
	}

	tree := NewDecisionTree(
		WithTreeMaxDepth(rf.MaxDepth),
		WithTreeMinSamplesSplit(rf.MinSamplesSplit),
		WithTreeMinSamplesLeaf(rf.MinSamplesLeaf),
		WithTreeMaxFeatures(maxFeatures),
		WithTreeSeed(seed),
	)
	if err := tree.fit(X, y, sample, len(rf.ClassLabels), rnd); err != nil {
		return nil, fmt.Errorf("randomforest: tree %d: %w", i, err)
	}
	return tree, nil
}

// PredictProba averages the trees' class distributions. The result is
// aligned with Classes and sums to 1.
func (rf *RandomForest) PredictProba(features []float64) ([]float64, error) {
	if len(rf.Trees) == 0 {
		return nil, errors.New("model not trained")
	}
	if len(features) != rf.NFeatures {
		return nil, &DimensionMismatchError{Expected: rf.NFeatures, Got: len(features)}
	}
	probas := make([]float64, len(rf.ClassLabels))
	for _, tree := range rf.Trees {
		p, err := tree.PredictProba(features)
		if err != nil {
			return nil, err
		}
		for c := range probas {
			if c < len(p) {
				probas[c] += p[c]
			}
		}
	}
	for c := range probas {
		probas[c] /= float64(len(rf.Trees))
	}
	return probas, nil
}

// Predict returns the label with the highest mean probability.
func (rf *RandomForest) Predict(features []float64) (int, error) {
	probas, err := rf.PredictProba(features)
	if err != nil {
		return 0, err
	}
	return rf.ClassLabels[argmax(probas)], nil
}

// PredictBatch predicts every row of X.
func (rf *RandomForest) PredictBatch(X [][]float64) ([]int, error) {
	out := make([]int, len(X))
	for i, row := range X {
		label, err := rf.Predict(row)
		if err != nil {
			return nil, err
		}
		out[i] = label
	}
	return out, nil
}

// Score returns the accuracy on X, y.
func (rf *RandomForest) Score(X [][]float64, y []int) (float64, error) {
	if len(X) == 0 || len(X) != len(y) {
		return 0, errors.New("score: invalid evaluation set")
	}
	predicted, err := rf.PredictBatch(X)
	if err != nil {
		return 0, err
	}
	correct := 0
	for i := range y {
		if predicted[i] == y[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(y)), nil
}

// Validate checks a decoded forest before it is used for prediction.
func (rf *RandomForest) Validate() error {
	if len(rf.Trees) == 0 {
		return errors.New("forest has no trees")
	}
	if len(rf.ClassLabels) == 0 || rf.NFeatures <= 0 {
		return errors.New("forest has no classes or features")
	}
	for i, tree := range rf.Trees {
		if tree == nil || len(tree.Nodes) == 0 {
			return fmt.Errorf("tree %d is empty", i)
		}
		if tree.NFeatures != rf.NFeatures {
			return fmt.Errorf("tree %d expects %d features, forest %d", i, tree.NFeatures, rf.NFeatures)
		}
		for j, node := range tree.Nodes {
			if node.IsLeaf {
				if len(node.Probas) != len(rf.ClassLabels) {
					return fmt.Errorf("tree %d node %d has %d probabilities", i, j, len(node.Probas))
				}
				continue
			}
			if node.LeftChild <= j || node.RightChild <= j || node.LeftChild >= len(tree.Nodes) || node.RightChild >= len(tree.Nodes) {
				return fmt.Errorf("tree %d node %d has invalid children", i, j)
			}
		}
	}
	return nil
}

func uniqueSorted(values []int) []int {
	seen := make(map[int]struct{})
	out := make([]int, 0, 2)
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}
