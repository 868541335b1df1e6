// Package artifact persists the fitted model bundle shared between training
// and inference.
package artifact

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"heartrisk/dataset"
	"heartrisk/ml"
)

// Bundle is the set of fitted objects one training run produces. The four
// parts are only valid together and are never mutated after creation.
type Bundle struct {
	RunID     string
	CreatedAt time.Time
	Model     *ml.RandomForest
	Scaler    *ml.StandardScaler
	Order     ml.FeatureOrder
	Encoders  *ml.EncoderBank
}

// NewBundle stamps fitted objects with a fresh run id.
func NewBundle(model *ml.RandomForest, scaler *ml.StandardScaler, order ml.FeatureOrder, encoders *ml.EncoderBank) *Bundle {
	return &Bundle{
		RunID:     uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Model:     model,
		Scaler:    scaler,
		Order:     order,
		Encoders:  encoders,
	}
}

// Validate checks that the parts fit together.
func (b *Bundle) Validate() error {
	if b.Model == nil || b.Scaler == nil || b.Encoders == nil || len(b.Order) == 0 {
		return errors.New("bundle is incomplete")
	}
	if err := b.Model.Validate(); err != nil {
		return fmt.Errorf("classifier: %w", err)
	}
	if err := b.Scaler.Validate(); err != nil {
		return fmt.Errorf("scaler: %w", err)
	}
	if b.Scaler.Width() != b.Order.Len() {
		return fmt.Errorf("scaler expects %d features, feature order has %d", b.Scaler.Width(), b.Order.Len())
	}
	if b.Model.NFeatures != b.Order.Len() {
		return fmt.Errorf("classifier expects %d features, feature order has %d", b.Model.NFeatures, b.Order.Len())
	}
	for _, name := range b.Order {
		field, ok := dataset.Lookup(name)
		if !ok {
			return fmt.Errorf("feature order has unknown column %s", name)
		}
		if field.IsCategorical() != b.Encoders.Has(name) {
			return fmt.Errorf("encoder bank and schema disagree on column %s", name)
		}
	}
	for _, name := range b.Encoders.Columns() {
		if b.Order.Index(name) < 0 {
			return fmt.Errorf("encoder for %s has no feature column", name)
		}
	}
	for _, name := range dataset.FieldNames() {
		if b.Order.Index(name) < 0 {
			return fmt.Errorf("feature order lacks column %s", name)
		}
	}
	return nil
}
