package ml

import (
	"errors"

	"heartrisk/dataset"
)

// TrainingSet is the encoded feature matrix and label vector of a dataset.
type TrainingSet struct {
	Features [][]float64
	Labels   []int
}

// BuildTrainingSet encodes ds with p.
func BuildTrainingSet(ds *dataset.Dataset, p *Preprocessor) (*TrainingSet, error) {
	if p == nil {
		return nil, errors.New("preprocessor is required")
	}
	features, err := p.Matrix(ds)
	if err != nil {
		return nil, err
	}
	labels := make([]int, len(ds.Labels))
	copy(labels, ds.Labels)
	return &TrainingSet{Features: features, Labels: labels}, nil
}
