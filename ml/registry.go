package ml

import "errors"

// FeatureOrder is the column ordering the scaler and classifier were fitted
// on. Inference must present features in exactly this order.
type FeatureOrder []string

func NewFeatureOrder(columns []string) (FeatureOrder, error) {
	if len(columns) == 0 {
		return nil, errors.New("feature order is empty")
	}
	seen := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		if _, ok := seen[c]; ok {
			return nil, errors.New("feature order has duplicate column " + c)
		}
		seen[c] = struct{}{}
	}
	out := make(FeatureOrder, len(columns))
	copy(out, columns)
	return out, nil
}

func (o FeatureOrder) Len() int {
	return len(o)
}

// Index returns the position of column, or -1.
func (o FeatureOrder) Index(column string) int {
	for i, c := range o {
		if c == column {
			return i
		}
	}
	return -1
}

func (o FeatureOrder) Equal(other FeatureOrder) bool {
	if len(o) != len(other) {
		return false
	}
	for i := range o {
		if o[i] != other[i] {
			return false
		}
	}
	return true
}
