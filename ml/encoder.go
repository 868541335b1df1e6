package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// LabelEncoder is a bijection between the category labels of one column
// and the integers 0..n-1. Labels are sorted in byte order before codes
// are assigned, so the mapping depends only on the set of labels seen.
type LabelEncoder struct {
	column  string
	classes []string
	index   map[string]int
}

// FitLabelEncoder builds the encoder for column from its observed values.
func FitLabelEncoder(column string, values []string) (*LabelEncoder, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("fit encoder %s: no values", column)
	}
	seen := make(map[string]struct{}, 8)
	classes := make([]string, 0, 8)
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		classes = append(classes, v)
	}
	sort.Strings(classes)
	return newLabelEncoder(column, classes), nil
}

func newLabelEncoder(column string, classes []string) *LabelEncoder {
	index := make(map[string]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	return &LabelEncoder{column: column, classes: classes, index: index}
}

func (e *LabelEncoder) Column() string {
	return e.column
}

// Classes returns the labels in code order.
func (e *LabelEncoder) Classes() []string {
	out := make([]string, len(e.classes))
	copy(out, e.classes)
	return out
}

// Encode returns the code of label.
func (e *LabelEncoder) Encode(label string) (int, error) {
	code, ok := e.index[label]
	if !ok {
		return 0, &UnknownCategoryError{Column: e.column, Label: label, Known: e.Classes()}
	}
	return code, nil
}

// Decode returns the label of code.
func (e *LabelEncoder) Decode(code int) (string, error) {
	if code < 0 || code >= len(e.classes) {
		return "", fmt.Errorf("code %d out of range for %s", code, e.column)
	}
	return e.classes[code], nil
}

// Mapping returns label to code pairs.
func (e *LabelEncoder) Mapping() map[string]int {
	out := make(map[string]int, len(e.index))
	for k, v := range e.index {
		out[k] = v
	}
	return out
}

// EncoderBank holds one fitted LabelEncoder per categorical column.
type EncoderBank struct {
	encoders map[string]*LabelEncoder
}

// FitEncoderBank fits an encoder for every column in values.
func FitEncoderBank(values map[string][]string) (*EncoderBank, error) {
	if len(values) == 0 {
		return nil, errors.New("fit encoder bank: no columns")
	}
	bank := &EncoderBank{encoders: make(map[string]*LabelEncoder, len(values))}
	for column, col := range values {
		enc, err := FitLabelEncoder(column, col)
		if err != nil {
			return nil, err
		}
		bank.encoders[column] = enc
	}
	return bank, nil
}

// Columns returns the encoded column names, sorted.
func (b *EncoderBank) Columns() []string {
	names := make([]string, 0, len(b.encoders))
	for name := range b.encoders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (b *EncoderBank) Encoder(column string) (*LabelEncoder, bool) {
	enc, ok := b.encoders[column]
	return enc, ok
}

func (b *EncoderBank) Has(column string) bool {
	_, ok := b.encoders[column]
	return ok
}

// Encode encodes label with the encoder of column.
func (b *EncoderBank) Encode(column, label string) (int, error) {
	enc, ok := b.encoders[column]
	if !ok {
		return 0, fmt.Errorf("no encoder for column %s", column)
	}
	return enc.Encode(label)
}

// EncodeColumn encodes a whole column into feature values.
func (b *EncoderBank) EncodeColumn(column string, labels []string) ([]float64, error) {
	out := make([]float64, len(labels))
	for i, label := range labels {
		code, err := b.Encode(column, label)
		if err != nil {
			return nil, err
		}
		out[i] = float64(code)
	}
	return out, nil
}

// MarshalJSON stores each column's classes in code order.
func (b *EncoderBank) MarshalJSON() ([]byte, error) {
	payload := make(map[string][]string, len(b.encoders))
	for name, enc := range b.encoders {
		payload[name] = enc.classes
	}
	return json.Marshal(payload)
}

func (b *EncoderBank) UnmarshalJSON(data []byte) error {
	var payload map[string][]string
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	if len(payload) == 0 {
		return errors.New("encoder bank is empty")
	}
	b.encoders = make(map[string]*LabelEncoder, len(payload))
	for name, classes := range payload {
		if len(classes) == 0 {
			return fmt.Errorf("encoder %s has no classes", name)
		}
		if !sort.StringsAreSorted(classes) {
			return fmt.Errorf("encoder %s classes are not sorted", name)
		}
		for i := 1; i < len(classes); i++ {
			if classes[i] == classes[i-1] {
				return fmt.Errorf("encoder %s has duplicate class %q", name, classes[i])
			}
		}
		b.encoders[name] = newLabelEncoder(name, classes)
	}
	return nil
}
