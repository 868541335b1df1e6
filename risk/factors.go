// Package risk explains a prediction in clinical terms: which measurements
// of a record are recognised risk factors, and how the probability reads.
package risk

import (
	"fmt"

	"heartrisk/dataset"
)

type Severity string

const (
	SeverityMinor       Severity = "minor"
	SeveritySignificant Severity = "significant"
)

// Factor is one risk factor found in a record.
type Factor struct {
	Code     string   `json:"code"`
	Column   string   `json:"column"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Analyze lists the risk factors present in rec, in a fixed order.
func Analyze(rec dataset.Record) []Factor {
	factors := make([]Factor, 0, 8)
	add := func(code, column string, sev Severity, format string, args ...any) {
		factors = append(factors, Factor{Code: code, Column: column, Severity: sev, Message: fmt.Sprintf(format, args...)})
	}

	switch {
	case rec.Sex == "M" && rec.Age > 45:
		add("age", "Age", SeveritySignificant, "Age above 45 (male): %d years", rec.Age)
	case rec.Sex == "F" && rec.Age > 55:
		add("age", "Age", SeveritySignificant, "Age above 55 (female): %d years", rec.Age)
	}
	if rec.RestingBP >= 130 {
		add("blood_pressure", "RestingBP", SeveritySignificant, "Elevated blood pressure: %d mm Hg", rec.RestingBP)
	}
	if rec.Cholesterol >= 200 {
		add("cholesterol", "Cholesterol", SeveritySignificant, "Elevated cholesterol: %d mg/dL", rec.Cholesterol)
	}
	if rec.FastingBS == 1 {
		add("fasting_glucose", "FastingBS", SeveritySignificant, "Impaired fasting glucose (>120 mg/dL)")
	}
	if rec.ExerciseAngina == "Y" {
		add("exercise_angina", "ExerciseAngina", SeveritySignificant, "Exercise-induced angina")
	}
	switch {
	case rec.Oldpeak >= 1.5:
		add("st_depression", "Oldpeak", SeveritySignificant, "Significant ST depression: %g", rec.Oldpeak)
	case rec.Oldpeak > 0:
		add("st_depression", "Oldpeak", SeverityMinor, "Minor ST depression: %g", rec.Oldpeak)
	}
	if rec.Ca > 0 {
		add("vessels", "Ca", SeveritySignificant, "Fluoroscopy shows %d major vessel(s) affected", rec.Ca)
	}
	if rec.ChestPainType == "ATA" || rec.ChestPainType == "TA" {
		add("chest_pain", "ChestPainType", SeveritySignificant, "Symptomatic chest pain type: %s", rec.ChestPainType)
	}
	return factors
}
