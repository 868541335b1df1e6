package ml

import (
	"math"
	"testing"
)

func TestConfusionMatrix(t *testing.T) {
	actual := []int{1, 1, 0, 0, 1, 0}
	predicted := []int{1, 0, 0, 1, 1, 0}
	m, err := NewConfusionMatrix(actual, predicted, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.TruePositive != 2 || m.FalseNegative != 1 || m.FalsePositive != 1 || m.TrueNegative != 2 {
		t.Fatalf("unexpected matrix %+v", m)
	}
	if math.Abs(m.Accuracy()-4.0/6.0) > 1e-12 {
		t.Fatalf("unexpected accuracy %v", m.Accuracy())
	}
	if math.Abs(m.Precision()-2.0/3.0) > 1e-12 || math.Abs(m.Recall()-2.0/3.0) > 1e-12 {
		t.Fatalf("unexpected precision/recall %v/%v", m.Precision(), m.Recall())
	}
	if math.Abs(m.F1()-2.0/3.0) > 1e-12 {
		t.Fatalf("unexpected f1 %v", m.F1())
	}
}

func TestConfusionMatrixEmptyCases(t *testing.T) {
	var m ConfusionMatrix
	if m.Accuracy() != 0 || m.Precision() != 0 || m.Recall() != 0 || m.F1() != 0 {
		t.Fatal("empty matrix should score 0")
	}
	if _, err := NewConfusionMatrix([]int{1}, []int{1, 0}, 1); err == nil {
		t.Fatal("expected size mismatch error")
	}
}
