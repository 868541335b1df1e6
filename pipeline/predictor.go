package pipeline

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"heartrisk/artifact"
	"heartrisk/dataset"
)

// Prediction is the outcome of one inference call.
type Prediction struct {
	Label    int               `json:"label"`
	P0       float64           `json:"p0"`
	P1       float64           `json:"p1"`
	Warnings []dataset.Warning `json:"warnings"`
	RunID    string            `json:"run_id"`
	Record   dataset.Record    `json:"record"`
}

// Predictor applies a loaded artifact bundle to raw records. The bundle is
// never modified, so a Predictor may be shared between goroutines.
type Predictor struct {
	bundle *artifact.Bundle
	logger *zap.Logger
}

func NewPredictor(bundle *artifact.Bundle, logger *zap.Logger) (*Predictor, error) {
	if bundle == nil {
		return nil, errors.New("predictor: bundle is required")
	}
	if err := bundle.Validate(); err != nil {
		return nil, fmt.Errorf("predictor: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Predictor{bundle: bundle, logger: logger}, nil
}

// LoadPredictor loads the bundle from store. Missing, corrupt and mismatched
// bundles surface as the artifact package's typed errors.
func LoadPredictor(store *artifact.Store, logger *zap.Logger) (*Predictor, error) {
	bundle, err := store.Load()
	if err != nil {
		return nil, err
	}
	return NewPredictor(bundle, logger)
}

func (p *Predictor) RunID() string {
	return p.bundle.RunID
}

func (p *Predictor) Bundle() *artifact.Bundle {
	return p.bundle
}

// PredictRisk encodes the categorical columns, assembles the feature vector
// in registry order, scales it and classifies it. The first failure aborts
// the call.
func (p *Predictor) PredictRisk(raw dataset.RawRecord) (*Prediction, error) {
	b := p.bundle

	codes := make(map[string]int, len(b.Encoders.Columns()))
	for _, column := range b.Encoders.Columns() {
		value, ok := raw[column]
		if !ok || value == nil {
			return nil, &dataset.MissingFeatureError{Column: column}
		}
		field, _ := dataset.Lookup(column)
		label, err := field.CoerceCategory(value)
		if err != nil {
			return nil, err
		}
		code, err := b.Encoders.Encode(column, label)
		if err != nil {
			return nil, err
		}
		codes[column] = code
	}

	row := make([]float64, b.Order.Len())
	warnings := make([]dataset.Warning, 0)
	for i, column := range b.Order {
		if code, ok := codes[column]; ok {
			row[i] = float64(code)
			continue
		}
		value, ok := raw[column]
		if !ok || value == nil {
			return nil, &dataset.MissingFeatureError{Column: column}
		}
		field, _ := dataset.Lookup(column)
		number, err := field.CoerceNumber(value)
		if err != nil {
			return nil, err
		}
		if w := field.Check(number); w != nil {
			warnings = append(warnings, *w)
		}
		row[i] = number
	}

	scaled, err := b.Scaler.TransformRow(row)
	if err != nil {
		return nil, err
	}
	label, err := b.Model.Predict(scaled)
	if err != nil {
		return nil, err
	}
	probas, err := b.Model.PredictProba(scaled)
	if err != nil {
		return nil, err
	}

	pred := &Prediction{
		Label:    label,
		Warnings: warnings,
		RunID:    b.RunID,
	}
	for i, class := range b.Model.Classes() {
		switch class {
		case 0:
			pred.P0 = probas[i]
		case 1:
			pred.P1 = probas[i]
		}
	}
	if rec, err := dataset.ParseRecord(raw); err == nil {
		pred.Record = rec
	}

	p.logger.Debug("prediction",
		zap.String("run_id", b.RunID),
		zap.Int("label", label),
		zap.Float64("p1", pred.P1),
		zap.Int("warnings", len(warnings)))
	return pred, nil
}
