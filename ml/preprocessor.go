package ml

import (
	"errors"
	"fmt"

	"heartrisk/dataset"
)

// Preprocessor turns dataset columns into an encoded feature matrix: it owns
// the encoder bank and the feature order captured from the training data.
type Preprocessor struct {
	Encoders *EncoderBank
	Order    FeatureOrder
}

// FitPreprocessor fits one encoder per categorical column of ds and records
// the dataset's feature columns as the feature order.
func FitPreprocessor(ds *dataset.Dataset) (*Preprocessor, error) {
	if ds == nil || ds.Rows() == 0 {
		return nil, errors.New("dataset is empty")
	}
	columns := make(map[string][]string, len(ds.Categorical))
	for _, name := range ds.Columns {
		if values, ok := ds.Categorical[name]; ok {
			columns[name] = values
		}
	}
	bank, err := FitEncoderBank(columns)
	if err != nil {
		return nil, err
	}
	order, err := NewFeatureOrder(ds.Columns)
	if err != nil {
		return nil, err
	}
	return &Preprocessor{Encoders: bank, Order: order}, nil
}

// Matrix encodes ds row by row in feature order.
func (p *Preprocessor) Matrix(ds *dataset.Dataset) ([][]float64, error) {
	if ds == nil || ds.Rows() == 0 {
		return nil, errors.New("dataset is empty")
	}
	columns := make([][]float64, len(p.Order))
	for j, name := range p.Order {
		if labels, ok := ds.Categorical[name]; ok {
			encoded, err := p.Encoders.EncodeColumn(name, labels)
			if err != nil {
				return nil, err
			}
			columns[j] = encoded
			continue
		}
		values, ok := ds.Numeric[name]
		if !ok {
			return nil, &dataset.MissingFeatureError{Column: name}
		}
		columns[j] = values
	}

	rows := ds.Rows()
	matrix := make([][]float64, rows)
	for i := 0; i < rows; i++ {
		row := make([]float64, len(columns))
		for j, col := range columns {
			if len(col) != rows {
				return nil, fmt.Errorf("column %s has %d values, want %d", p.Order[j], len(col), rows)
			}
			row[j] = col[i]
		}
		matrix[i] = row
	}
	return matrix, nil
}

// Mappings returns label to code mappings for every encoded column.
func (p *Preprocessor) Mappings() map[string]map[string]int {
	out := make(map[string]map[string]int)
	for _, name := range p.Encoders.Columns() {
		enc, _ := p.Encoders.Encoder(name)
		out[name] = enc.Mapping()
	}
	return out
}
