package dataset

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestCoerceNumber(t *testing.T) {
	age, _ := Lookup("Age")
	oldpeak, _ := Lookup("Oldpeak")
	fbs, _ := Lookup("FastingBS")

	tests := []struct {
		name    string
		field   Field
		value   any
		want    float64
		wantErr bool
	}{
		{name: "int", field: age, value: 50, want: 50},
		{name: "json float", field: age, value: 50.0, want: 50},
		{name: "json number", field: oldpeak, value: json.Number("1.5"), want: 1.5},
		{name: "numeric string", field: oldpeak, value: " 2.3 ", want: 2.3},
		{name: "fractional integer", field: age, value: 50.5, wantErr: true},
		{name: "text", field: age, value: "fifty", wantErr: true},
		{name: "binary bool", field: fbs, value: true, want: 1},
		{name: "binary out of set", field: fbs, value: 2, wantErr: true},
		{name: "nil", field: age, value: nil, wantErr: true},
		{name: "integer overflow", field: age, value: json.Number("1e19"), wantErr: true},
		{name: "negative overflow", field: age, value: -1e12, wantErr: true},
		{name: "int32 bound", field: age, value: json.Number("2147483647"), want: 2147483647},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.field.CoerceNumber(tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CoerceNumber() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var invalid *InvalidValueError
				if !errors.As(err, &invalid) {
					t.Fatalf("expected InvalidValueError, got %T", err)
				}
				return
			}
			if got != tt.want {
				t.Fatalf("CoerceNumber() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCoerceCategory(t *testing.T) {
	sex, _ := Lookup("Sex")
	if got, err := sex.CoerceCategory(" M "); err != nil || got != "M" {
		t.Fatalf("unexpected result %q, %v", got, err)
	}
	if _, err := sex.CoerceCategory(1); err == nil {
		t.Fatal("expected error for numeric label")
	}
}

func TestFieldCheck(t *testing.T) {
	bp, _ := Lookup("RestingBP")
	if w := bp.Check(120); w != nil {
		t.Fatalf("unexpected warning: %v", w)
	}
	w := bp.Check(230)
	if w == nil || w.Column != "RestingBP" {
		t.Fatalf("expected RestingBP warning, got %v", w)
	}
	sex, _ := Lookup("Sex")
	if sex.Check(5) != nil {
		t.Fatal("categorical fields never warn")
	}
}

func TestCategoricalColumns(t *testing.T) {
	want := []string{"Sex", "ChestPainType", "RestingECG", "ExerciseAngina", "ST_Slope"}
	got := CategoricalColumns()
	if len(got) != len(want) {
		t.Fatalf("unexpected columns %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected columns %v", got)
		}
	}
}

func TestParseRecord(t *testing.T) {
	rec := DefaultRecord()
	parsed, err := ParseRecord(rec.Raw())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed != rec {
		t.Fatalf("round trip mismatch: %+v != %+v", parsed, rec)
	}

	raw := rec.Raw()
	delete(raw, "Thal")
	_, err = ParseRecord(raw)
	var missing *MissingFeatureError
	if !errors.As(err, &missing) || missing.Column != "Thal" {
		t.Fatalf("expected missing Thal, got %v", err)
	}
}

func TestParseRecordRejectsOverflow(t *testing.T) {
	raw := DefaultRecord().Raw()
	raw["Age"] = json.Number("1e19")
	_, err := ParseRecord(raw)
	var invalid *InvalidValueError
	if !errors.As(err, &invalid) || invalid.Column != "Age" {
		t.Fatalf("expected invalid Age, got %v", err)
	}
}
