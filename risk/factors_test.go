package risk

import (
	"testing"

	"heartrisk/dataset"
	"heartrisk/pipeline"
)

func codes(factors []Factor) map[string]Severity {
	out := make(map[string]Severity, len(factors))
	for _, f := range factors {
		out[f.Code] = f.Severity
	}
	return out
}

func TestAnalyzeThresholds(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*dataset.Record)
		code   string
		want   Severity // empty means absent
	}{
		{"male over 45", func(r *dataset.Record) { r.Sex, r.Age = "M", 46 }, "age", SeveritySignificant},
		{"male at 45", func(r *dataset.Record) { r.Sex, r.Age = "M", 45 }, "age", ""},
		{"female at 50", func(r *dataset.Record) { r.Sex, r.Age = "F", 50 }, "age", ""},
		{"female over 55", func(r *dataset.Record) { r.Sex, r.Age = "F", 56 }, "age", SeveritySignificant},
		{"bp at 130", func(r *dataset.Record) { r.RestingBP = 130 }, "blood_pressure", SeveritySignificant},
		{"bp at 129", func(r *dataset.Record) { r.RestingBP = 129 }, "blood_pressure", ""},
		{"cholesterol at 200", func(r *dataset.Record) { r.Cholesterol = 200 }, "cholesterol", SeveritySignificant},
		{"cholesterol at 199", func(r *dataset.Record) { r.Cholesterol = 199 }, "cholesterol", ""},
		{"fasting glucose", func(r *dataset.Record) { r.FastingBS = 1 }, "fasting_glucose", SeveritySignificant},
		{"angina", func(r *dataset.Record) { r.ExerciseAngina = "Y" }, "exercise_angina", SeveritySignificant},
		{"oldpeak 1.5", func(r *dataset.Record) { r.Oldpeak = 1.5 }, "st_depression", SeveritySignificant},
		{"oldpeak 0.5", func(r *dataset.Record) { r.Oldpeak = 0.5 }, "st_depression", SeverityMinor},
		{"oldpeak 0", func(r *dataset.Record) { r.Oldpeak = 0 }, "st_depression", ""},
		{"one vessel", func(r *dataset.Record) { r.Ca = 1 }, "vessels", SeveritySignificant},
		{"typical angina", func(r *dataset.Record) { r.ChestPainType = "TA" }, "chest_pain", SeveritySignificant},
		{"atypical angina", func(r *dataset.Record) { r.ChestPainType = "ATA" }, "chest_pain", SeveritySignificant},
		{"asymptomatic", func(r *dataset.Record) { r.ChestPainType = "ASY" }, "chest_pain", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := dataset.Record{Sex: "F", Age: 30, ChestPainType: "NAP", ExerciseAngina: "N"}
			tt.mutate(&rec)
			got, ok := codes(Analyze(rec))[tt.code]
			if tt.want == "" {
				if ok {
					t.Fatalf("expected no %s factor, got %s", tt.code, got)
				}
				return
			}
			if got != tt.want {
				t.Fatalf("factor %s = %q, want %q", tt.code, got, tt.want)
			}
		})
	}
}

func TestAnalyzeHealthyRecord(t *testing.T) {
	rec := dataset.Record{Age: 35, Sex: "M", ChestPainType: "NAP", RestingBP: 115, Cholesterol: 180, ExerciseAngina: "N"}
	if factors := Analyze(rec); len(factors) != 0 {
		t.Fatalf("expected no factors, got %+v", factors)
	}
}

func TestAssess(t *testing.T) {
	rec := dataset.DefaultRecord()
	pred := &pipeline.Prediction{Label: 1, P0: 0.27, P1: 0.73, RunID: "run", Record: rec}
	a := Assess(pred)
	if a.Level != LevelHigh || a.RiskPercentage != 73 {
		t.Fatalf("unexpected assessment: %+v", a)
	}
	if len(a.Factors) != len(Analyze(rec)) {
		t.Fatalf("factors not attached")
	}
	if LevelFor(0) != LevelLow {
		t.Fatal("label 0 should be low")
	}
	if got := Percentage(0.12345); got != 12.3 {
		t.Fatalf("Percentage = %v", got)
	}
}
