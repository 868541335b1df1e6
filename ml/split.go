package ml

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// StratifiedSplit partitions X and y into train and test sets so that each
// label keeps its share of the full dataset. The partition depends only on
// the input and seed.
func StratifiedSplit(X [][]float64, y []int, testFraction float64, seed int64) (trainX, testX [][]float64, trainY, testY []int, err error) {
	if len(X) == 0 {
		return nil, nil, nil, nil, errors.New("split: empty dataset")
	}
	if len(X) != len(y) {
		return nil, nil, nil, nil, errors.New("split: features and labels size mismatch")
	}
	if testFraction <= 0 || testFraction >= 1 {
		return nil, nil, nil, nil, fmt.Errorf("split: test fraction %v must be in (0, 1)", testFraction)
	}

	byLabel := make(map[int][]int)
	for i, label := range y {
		byLabel[label] = append(byLabel[label], i)
	}
	labels := make([]int, 0, len(byLabel))
	for label := range byLabel {
		labels = append(labels, label)
	}
	sort.Ints(labels)

	rnd := rand.New(rand.NewSource(seed))
	var trainIdx, testIdx []int
	for _, label := range labels {
		indices := byLabel[label]
		rnd.Shuffle(len(indices), func(i, j int) { indices[i], indices[j] = indices[j], indices[i] })
		nTest := int(math.Round(float64(len(indices)) * testFraction))
		testIdx = append(testIdx, indices[:nTest]...)
		trainIdx = append(trainIdx, indices[nTest:]...)
	}
	if len(trainIdx) == 0 || len(testIdx) == 0 {
		return nil, nil, nil, nil, fmt.Errorf("split: %d records are too few for test fraction %v", len(X), testFraction)
	}
	rnd.Shuffle(len(trainIdx), func(i, j int) { trainIdx[i], trainIdx[j] = trainIdx[j], trainIdx[i] })
	rnd.Shuffle(len(testIdx), func(i, j int) { testIdx[i], testIdx[j] = testIdx[j], testIdx[i] })

	trainX, trainY = gather(X, y, trainIdx)
	testX, testY = gather(X, y, testIdx)
	return trainX, testX, trainY, testY, nil
}

func gather(X [][]float64, y []int, idx []int) ([][]float64, []int) {
	outX := make([][]float64, len(idx))
	outY := make([]int, len(idx))
	for i, k := range idx {
		outX[i] = X[k]
		outY[i] = y[k]
	}
	return outX, outY
}
