package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"heartrisk/artifact"
	"heartrisk/dataset"
	"heartrisk/pipeline"
	"heartrisk/risk"
)

func predictCmd(a *app) *cobra.Command {
	var (
		recordPath string
		sets       []string
		dir        string
		defaults   bool
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Assess one record with the trained bundle",
		Example: `  heartrisk predict --record patient.json
  heartrisk predict --defaults --set Age=61 --set ChestPainType=ASY`,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := buildRecord(recordPath, sets, defaults)
			if err != nil {
				return err
			}
			if dir == "" {
				dir = a.cfg.Artifacts.Dir
			}
			predictor, err := pipeline.LoadPredictor(artifact.NewStore(dir, a.logger), a.logger)
			if err != nil {
				return err
			}
			pred, err := predictor.PredictRisk(raw)
			if err != nil {
				return err
			}
			assessment := risk.Assess(pred)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(assessment)
			}
			printAssessment(cmd.OutOrStdout(), assessment)
			return nil
		},
	}
	cmd.Flags().StringVar(&recordPath, "record", "", "JSON file holding the record")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "field value as Name=value (repeatable)")
	cmd.Flags().StringVar(&dir, "artifacts", "", "artifact directory (default from config)")
	cmd.Flags().BoolVar(&defaults, "defaults", false, "start from the form defaults")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the assessment as JSON")
	return cmd
}

// buildRecord layers defaults, the record file and --set values in that
// order.
func buildRecord(path string, sets []string, defaults bool) (dataset.RawRecord, error) {
	raw := dataset.RawRecord{}
	if defaults {
		raw = dataset.DefaultRecord().Raw()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		var fromFile dataset.RawRecord
		if err := dec.Decode(&fromFile); err != nil {
			return nil, fmt.Errorf("parse record %s: %w", path, err)
		}
		for k, v := range fromFile {
			raw[k] = v
		}
	}
	for _, s := range sets {
		name, value, ok := strings.Cut(s, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("--set %q must look like Name=value", s)
		}
		name = strings.TrimSpace(name)
		field, known := dataset.Lookup(name)
		if known && !field.IsCategorical() {
			raw[name] = json.Number(strings.TrimSpace(value))
		} else {
			raw[name] = value
		}
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("no record given: use --record, --set or --defaults")
	}
	return raw, nil
}

func printAssessment(w io.Writer, a risk.Assessment) {
	verdict := "LOW RISK"
	if a.Level == risk.LevelHigh {
		verdict = "HIGH RISK"
	}
	fmt.Fprintf(w, "Prediction: %s (label %d)\n", verdict, a.Label)
	fmt.Fprintf(w, "Risk probability: %.1f%%\n", a.RiskPercentage)
	fmt.Fprintf(w, "P(no disease)=%.4f  P(disease)=%.4f\n", a.P0, a.P1)
	for _, warning := range a.Warnings {
		fmt.Fprintf(w, "Warning: %s\n", warning.Message)
	}
	if len(a.Factors) == 0 {
		fmt.Fprintln(w, "No risk factors identified.")
	} else {
		fmt.Fprintf(w, "Risk factors (%d):\n", len(a.Factors))
		for _, f := range a.Factors {
			fmt.Fprintf(w, "  - %s\n", f.Message)
		}
	}
	fmt.Fprintf(w, "Model run: %s\n", a.RunID)
}
