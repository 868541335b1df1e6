package ml

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestLabelEncoderPinnedCodes(t *testing.T) {
	tests := []struct {
		column string
		values []string
		want   map[string]int
	}{
		{column: "Sex", values: []string{"M", "F", "M"}, want: map[string]int{"F": 0, "M": 1}},
		{column: "ChestPainType", values: []string{"TA", "ATA", "NAP", "ASY"}, want: map[string]int{"ASY": 0, "ATA": 1, "NAP": 2, "TA": 3}},
		{column: "RestingECG", values: []string{"Normal", "ST", "LVH"}, want: map[string]int{"LVH": 0, "Normal": 1, "ST": 2}},
		{column: "ExerciseAngina", values: []string{"Y", "N"}, want: map[string]int{"N": 0, "Y": 1}},
		{column: "ST_Slope", values: []string{"Up", "Flat", "Down"}, want: map[string]int{"Down": 0, "Flat": 1, "Up": 2}},
	}
	for _, tt := range tests {
		t.Run(tt.column, func(t *testing.T) {
			enc, err := FitLabelEncoder(tt.column, tt.values)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			for label, code := range tt.want {
				got, err := enc.Encode(label)
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if got != code {
					t.Fatalf("Encode(%q) = %d, want %d", label, got, code)
				}
			}
		})
	}
}

func TestLabelEncoderIgnoresObservationOrder(t *testing.T) {
	a, _ := FitLabelEncoder("ST_Slope", []string{"Up", "Flat", "Down"})
	b, _ := FitLabelEncoder("ST_Slope", []string{"Down", "Down", "Up", "Flat"})
	if len(a.Classes()) != len(b.Classes()) {
		t.Fatal("class count differs")
	}
	for i := range a.Classes() {
		if a.Classes()[i] != b.Classes()[i] {
			t.Fatalf("classes differ: %v vs %v", a.Classes(), b.Classes())
		}
	}
}

func TestLabelEncoderRoundTrip(t *testing.T) {
	enc, _ := FitLabelEncoder("ChestPainType", []string{"TA", "ATA", "NAP", "ASY", "ATA"})
	for _, label := range enc.Classes() {
		code, err := enc.Encode(label)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		decoded, err := enc.Decode(code)
		if err != nil || decoded != label {
			t.Fatalf("decode(encode(%q)) = %q, %v", label, decoded, err)
		}
	}
	for code := range enc.Classes() {
		label, _ := enc.Decode(code)
		back, _ := enc.Encode(label)
		if back != code {
			t.Fatalf("encode(decode(%d)) = %d", code, back)
		}
	}
	if _, err := enc.Decode(len(enc.Classes())); err == nil {
		t.Fatal("expected error for out of range code")
	}
}

func TestLabelEncoderUnknownCategory(t *testing.T) {
	enc, _ := FitLabelEncoder("Sex", []string{"M", "F"})
	_, err := enc.Encode("X")
	var unknown *UnknownCategoryError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownCategoryError, got %v", err)
	}
	if unknown.Column != "Sex" || unknown.Label != "X" {
		t.Fatalf("unexpected error fields: %+v", unknown)
	}
}

func TestEncoderBankJSON(t *testing.T) {
	bank, err := FitEncoderBank(map[string][]string{
		"Sex":      {"M", "F"},
		"ST_Slope": {"Up", "Flat", "Down"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	payload, err := json.Marshal(bank)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded EncoderBank
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got, _ := decoded.Encode("ST_Slope", "Up"); got != 2 {
		t.Fatalf("expected Up=2 after reload, got %d", got)
	}
	if cols := decoded.Columns(); len(cols) != 2 || cols[0] != "ST_Slope" || cols[1] != "Sex" {
		t.Fatalf("unexpected columns %v", cols)
	}
}

func TestEncoderBankRejectsUnsortedPayload(t *testing.T) {
	var bank EncoderBank
	if err := json.Unmarshal([]byte(`{"Sex":["M","F"]}`), &bank); err == nil {
		t.Fatal("expected error for unsorted classes")
	}
	if err := json.Unmarshal([]byte(`{}`), &bank); err == nil {
		t.Fatal("expected error for empty bank")
	}
}
