package ml

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat"
)

// StandardScaler removes each column's mean and divides by its population
// standard deviation. Parameters are fixed at fit time.
type StandardScaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// FitStandardScaler computes per-column statistics of X. Constant columns
// get a scale of 1.
func FitStandardScaler(X [][]float64) (*StandardScaler, error) {
	if len(X) == 0 {
		return nil, errors.New("fit scaler: empty matrix")
	}
	cols := len(X[0])
	if cols == 0 {
		return nil, errors.New("fit scaler: no columns")
	}

	s := &StandardScaler{
		Mean:  make([]float64, cols),
		Scale: make([]float64, cols),
	}
	column := make([]float64, len(X))
	for j := 0; j < cols; j++ {
		for i, row := range X {
			if len(row) != cols {
				return nil, &DimensionMismatchError{Expected: cols, Got: len(row)}
			}
			column[i] = row[j]
		}
		mean, variance := stat.PopMeanVariance(column, nil)
		s.Mean[j] = mean
		s.Scale[j] = math.Sqrt(variance)
		if s.Scale[j] == 0 || math.IsNaN(s.Scale[j]) {
			s.Scale[j] = 1
		}
	}
	return s, nil
}

// Width is the number of columns the scaler was fitted on.
func (s *StandardScaler) Width() int {
	return len(s.Mean)
}

// TransformRow returns a standardized copy of row.
func (s *StandardScaler) TransformRow(row []float64) ([]float64, error) {
	if len(row) != len(s.Mean) {
		return nil, &DimensionMismatchError{Expected: len(s.Mean), Got: len(row)}
	}
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = (v - s.Mean[j]) / s.Scale[j]
	}
	return out, nil
}

// Transform returns a standardized copy of X.
func (s *StandardScaler) Transform(X [][]float64) ([][]float64, error) {
	out := make([][]float64, len(X))
	for i, row := range X {
		scaled, err := s.TransformRow(row)
		if err != nil {
			return nil, err
		}
		out[i] = scaled
	}
	return out, nil
}

// Validate checks that the parameters can be applied.
func (s *StandardScaler) Validate() error {
	if len(s.Mean) == 0 || len(s.Mean) != len(s.Scale) {
		return errors.New("scaler parameters are inconsistent")
	}
	for _, v := range s.Scale {
		if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New("scaler has an invalid scale")
		}
	}
	return nil
}
