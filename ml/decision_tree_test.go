package ml

import (
	"math"
	"testing"
)

func TestDecisionTreeTrainPredict(t *testing.T) {
	features := [][]float64{
		{0.1, 0.2},
		{0.2, 0.1},
		{0.9, 0.8},
		{0.8, 0.9},
	}
	labels := []int{0, 0, 1, 1}

	model := NewDecisionTree(WithTreeMaxDepth(2))
	if err := model.Train(features, labels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	label, err := model.Predict([]float64{0.15, 0.15})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if label != 0 {
		t.Fatalf("expected label 0, got %d", label)
	}
	probas, err := model.PredictProba([]float64{0.85, 0.85})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if probas[1] != 1 {
		t.Fatalf("expected pure leaf for class 1, got %v", probas)
	}
	if model.Depth() != 1 {
		t.Fatalf("expected a single split, got depth %d", model.Depth())
	}
}

func TestDecisionTreeThresholdIsMidpoint(t *testing.T) {
	model := NewDecisionTree()
	if err := model.Train([][]float64{{1}, {2}, {4}, {5}}, []int{0, 0, 1, 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if model.Nodes[0].Threshold != 3 {
		t.Fatalf("expected threshold 3, got %v", model.Nodes[0].Threshold)
	}
}

func TestDecisionTreeMaxDepthLeafProbabilities(t *testing.T) {
	features := [][]float64{{0}, {1}, {2}, {3}, {4}, {5}}
	labels := []int{0, 1, 0, 1, 1, 1}
	model := NewDecisionTree(WithTreeMaxDepth(1))
	if err := model.Train(features, labels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, x := range []float64{0, 5} {
		probas, err := model.PredictProba([]float64{x})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if math.Abs(probas[0]+probas[1]-1) > 1e-12 {
			t.Fatalf("probabilities do not sum to 1: %v", probas)
		}
	}
}

func TestDecisionTreeErrors(t *testing.T) {
	model := NewDecisionTree()
	if _, err := model.Predict([]float64{1}); err == nil {
		t.Fatal("expected error for untrained model")
	}
	if err := model.Train(nil, nil); err == nil {
		t.Fatal("expected error for empty input")
	}
	if err := model.Train([][]float64{{1}}, []int{-1}); err == nil {
		t.Fatal("expected error for negative label")
	}
	if err := model.Train([][]float64{{1}, {2}}, []int{0, 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := model.Predict([]float64{1, 2}); err == nil {
		t.Fatal("expected dimension error")
	}
}

func TestDecisionTreeMinSamplesLeaf(t *testing.T) {
	features := [][]float64{{0}, {1}, {2}, {3}}
	labels := []int{1, 0, 0, 0}
	model := NewDecisionTree(WithTreeMinSamplesLeaf(2))
	if err := model.Train(features, labels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, node := range model.Nodes {
		if node.IsLeaf && node.Samples < 2 {
			t.Fatalf("leaf with %d samples violates min_samples_leaf", node.Samples)
		}
	}
}
