package risk

import (
	"heartrisk/dataset"
	"heartrisk/pipeline"
)

type Level string

const (
	LevelLow  Level = "low"
	LevelHigh Level = "high"
)

// LevelFor maps a predicted label to its level.
func LevelFor(label int) Level {
	if label == 1 {
		return LevelHigh
	}
	return LevelLow
}

// Percentage returns p1 as a percentage rounded to one decimal.
func Percentage(p1 float64) float64 {
	return float64(int(p1*1000+0.5)) / 10
}

// Assessment is a prediction together with its explanation.
type Assessment struct {
	Label          int               `json:"label"`
	Level          Level             `json:"level"`
	RiskPercentage float64           `json:"risk_percentage"`
	P0             float64           `json:"p0"`
	P1             float64           `json:"p1"`
	Factors        []Factor          `json:"factors"`
	Warnings       []dataset.Warning `json:"warnings"`
	RunID          string            `json:"run_id"`
}

func Assess(pred *pipeline.Prediction) Assessment {
	return Assessment{
		Label:          pred.Label,
		Level:          LevelFor(pred.Label),
		RiskPercentage: Percentage(pred.P1),
		P0:             pred.P0,
		P1:             pred.P1,
		Factors:        Analyze(pred.Record),
		Warnings:       pred.Warnings,
		RunID:          pred.RunID,
	}
}
