// Package dataset describes the clinical record schema and loads the
// tabular training data.
package dataset

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind is the semantic type of a schema field.
type Kind int

const (
	KindInteger Kind = iota
	KindFloat
	KindBinary
	KindCategorical
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindBinary:
		return "binary"
	case KindCategorical:
		return "categorical"
	default:
		return "unknown"
	}
}

// MarshalText lets kinds appear by name in JSON payloads.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// LabelColumn is the binary target column, present only in training data.
const LabelColumn = "HeartDisease"

// Field is one typed column of a clinical record. Min and Max bound the
// accepted clinical range for numeric fields; Categories lists the
// reference labels for categorical ones.
type Field struct {
	Name       string   `json:"name"`
	Kind       Kind     `json:"kind"`
	Min        float64  `json:"min,omitempty"`
	Max        float64  `json:"max,omitempty"`
	Default    any      `json:"default"`
	Categories []string `json:"categories,omitempty"`
	Unit       string   `json:"unit,omitempty"`
	Help       string   `json:"help,omitempty"`
}

var fields = []Field{
	{Name: "Age", Kind: KindInteger, Min: 1, Max: 120, Default: 50, Unit: "years", Help: "Current age in years"},
	{Name: "Sex", Kind: KindCategorical, Categories: []string{"M", "F"}, Default: "M", Help: "Biological sex"},
	{Name: "ChestPainType", Kind: KindCategorical, Categories: []string{"TA", "ATA", "NAP", "ASY"}, Default: "ASY", Help: "Type of chest pain experienced"},
	{Name: "RestingBP", Kind: KindInteger, Min: 50, Max: 200, Default: 120, Unit: "mm Hg", Help: "Resting blood pressure"},
	{Name: "Cholesterol", Kind: KindInteger, Min: 100, Max: 600, Default: 200, Unit: "mg/dL", Help: "Serum cholesterol"},
	{Name: "FastingBS", Kind: KindBinary, Min: 0, Max: 1, Default: 0, Help: "Fasting blood sugar > 120 mg/dL"},
	{Name: "RestingECG", Kind: KindCategorical, Categories: []string{"Normal", "ST", "LVH"}, Default: "Normal", Help: "Resting electrocardiogram result"},
	{Name: "MaxHR", Kind: KindInteger, Min: 60, Max: 220, Default: 150, Unit: "bpm", Help: "Maximum heart rate achieved"},
	{Name: "ExerciseAngina", Kind: KindCategorical, Categories: []string{"Y", "N"}, Default: "N", Help: "Exercise-induced angina"},
	{Name: "Oldpeak", Kind: KindFloat, Min: 0, Max: 10, Default: 1.0, Help: "ST depression induced by exercise"},
	{Name: "ST_Slope", Kind: KindCategorical, Categories: []string{"Up", "Flat", "Down"}, Default: "Up", Help: "Slope of the peak exercise ST segment"},
	{Name: "Ca", Kind: KindInteger, Min: 0, Max: 3, Default: 0, Help: "Major vessels colored by fluoroscopy"},
	{Name: "Thal", Kind: KindInteger, Min: 0, Max: 3, Default: 1, Help: "Thalassemia test result"},
}

// Fields returns the record schema in canonical order.
func Fields() []Field {
	out := make([]Field, len(fields))
	copy(out, fields)
	return out
}

// FieldNames returns the feature column names in canonical order.
func FieldNames() []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

// Lookup finds a schema field by its exact column name.
func Lookup(name string) (Field, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// CategoricalColumns returns the categorical column names in schema order.
func CategoricalColumns() []string {
	var names []string
	for _, f := range fields {
		if f.Kind == KindCategorical {
			names = append(names, f.Name)
		}
	}
	return names
}

func (f Field) IsCategorical() bool {
	return f.Kind == KindCategorical
}

// CoerceNumber converts a raw input value into the field's numeric value.
func (f Field) CoerceNumber(value any) (float64, error) {
	if f.IsCategorical() {
		return 0, &InvalidValueError{Column: f.Name, Value: value, Reason: "categorical field has no numeric value"}
	}

	var number float64
	switch v := value.(type) {
	case float64:
		number = v
	case float32:
		number = float64(v)
	case int:
		number = float64(v)
	case int32:
		number = float64(v)
	case int64:
		number = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, &InvalidValueError{Column: f.Name, Value: value, Reason: "not a number"}
		}
		number = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, &InvalidValueError{Column: f.Name, Value: value, Reason: "not a number"}
		}
		number = parsed
	case bool:
		if f.Kind != KindBinary {
			return 0, &InvalidValueError{Column: f.Name, Value: value, Reason: "expected a number"}
		}
		if v {
			number = 1
		}
	default:
		return 0, &InvalidValueError{Column: f.Name, Value: value, Reason: fmt.Sprintf("unsupported type %T", value)}
	}

	if math.IsNaN(number) || math.IsInf(number, 0) {
		return 0, &InvalidValueError{Column: f.Name, Value: value, Reason: "not a finite number"}
	}
	switch f.Kind {
	case KindInteger:
		if number != math.Trunc(number) {
			return 0, &InvalidValueError{Column: f.Name, Value: value, Reason: "expected an integer"}
		}
		// Record stores integers as int; keep every accepted value representable.
		if number < math.MinInt32 || number > math.MaxInt32 {
			return 0, &InvalidValueError{Column: f.Name, Value: value, Reason: "integer out of range"}
		}
	case KindBinary:
		if number != 0 && number != 1 {
			return 0, &InvalidValueError{Column: f.Name, Value: value, Reason: "expected 0 or 1"}
		}
	}
	return number, nil
}

// CoerceCategory converts a raw input value into a category label.
func (f Field) CoerceCategory(value any) (string, error) {
	if !f.IsCategorical() {
		return "", &InvalidValueError{Column: f.Name, Value: value, Reason: "numeric field has no category"}
	}
	label, ok := value.(string)
	if !ok {
		return "", &InvalidValueError{Column: f.Name, Value: value, Reason: "expected a string label"}
	}
	return strings.TrimSpace(label), nil
}

// Check reports a warning when a numeric value falls outside the field's
// clinical range. Ranges are advisory; nothing here rejects a value.
func (f Field) Check(value float64) *Warning {
	if f.IsCategorical() || f.Max <= f.Min {
		return nil
	}
	if value >= f.Min && value <= f.Max {
		return nil
	}
	return &Warning{
		Column:  f.Name,
		Value:   value,
		Message: fmt.Sprintf("%s=%g is outside the expected range %g-%g", f.Name, value, f.Min, f.Max),
	}
}

// Warning flags a single column of an input record.
type Warning struct {
	Column  string  `json:"column"`
	Value   float64 `json:"value"`
	Message string  `json:"message"`
}
