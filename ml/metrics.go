package ml

import "errors"

// ConfusionMatrix counts binary outcomes against a positive label.
type ConfusionMatrix struct {
	TruePositive  int `json:"tp"`
	FalsePositive int `json:"fp"`
	TrueNegative  int `json:"tn"`
	FalseNegative int `json:"fn"`
}

func NewConfusionMatrix(actual, predicted []int, positive int) (ConfusionMatrix, error) {
	var m ConfusionMatrix
	if len(actual) != len(predicted) {
		return m, errors.New("actual and predicted size mismatch")
	}
	for i := range actual {
		switch {
		case predicted[i] == positive && actual[i] == positive:
			m.TruePositive++
		case predicted[i] == positive:
			m.FalsePositive++
		case actual[i] == positive:
			m.FalseNegative++
		default:
			m.TrueNegative++
		}
	}
	return m, nil
}

func (m ConfusionMatrix) Total() int {
	return m.TruePositive + m.FalsePositive + m.TrueNegative + m.FalseNegative
}

func (m ConfusionMatrix) Accuracy() float64 {
	if m.Total() == 0 {
		return 0
	}
	return float64(m.TruePositive+m.TrueNegative) / float64(m.Total())
}

func (m ConfusionMatrix) Precision() float64 {
	if m.TruePositive+m.FalsePositive == 0 {
		return 0
	}
	return float64(m.TruePositive) / float64(m.TruePositive+m.FalsePositive)
}

func (m ConfusionMatrix) Recall() float64 {
	if m.TruePositive+m.FalseNegative == 0 {
		return 0
	}
	return float64(m.TruePositive) / float64(m.TruePositive+m.FalseNegative)
}

func (m ConfusionMatrix) F1() float64 {
	p, r := m.Precision(), m.Recall()
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

// Evaluation summarizes a classifier on a labelled set.
type Evaluation struct {
	Accuracy  float64         `json:"accuracy"`
	Precision float64         `json:"precision"`
	Recall    float64         `json:"recall"`
	F1        float64         `json:"f1"`
	Confusion ConfusionMatrix `json:"confusion"`
}

// Evaluate scores model on X, y treating positive as the positive class.
func Evaluate(model Classifier, X [][]float64, y []int, positive int) (Evaluation, error) {
	if len(X) == 0 || len(X) != len(y) {
		return Evaluation{}, errors.New("evaluate: invalid evaluation set")
	}
	predicted := make([]int, len(X))
	for i, row := range X {
		label, err := model.Predict(row)
		if err != nil {
			return Evaluation{}, err
		}
		predicted[i] = label
	}
	m, err := NewConfusionMatrix(y, predicted, positive)
	if err != nil {
		return Evaluation{}, err
	}
	return Evaluation{
		Accuracy:  m.Accuracy(),
		Precision: m.Precision(),
		Recall:    m.Recall(),
		F1:        m.F1(),
		Confusion: m,
	}, nil
}
