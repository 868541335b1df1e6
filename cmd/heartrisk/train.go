package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"heartrisk/artifact"
	"heartrisk/dataset"
	"heartrisk/db"
	"heartrisk/pipeline"
)

func trainCmd(a *app) *cobra.Command {
	var (
		dataPath string
		outDir   string
		asJSON   bool
		noLog    bool
	)
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Fit the model on a CSV dataset and write the artifact bundle",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if dataPath == "" {
				dataPath = cfg.Dataset.Path
			}
			if outDir == "" {
				outDir = cfg.Artifacts.Dir
			}
			flags := cmd.Flags()
			if flags.Changed("seed") {
				cfg.Training.Seed, _ = flags.GetInt64("seed")
			}
			if flags.Changed("trees") {
				cfg.Training.NEstimators, _ = flags.GetInt("trees")
			}
			if flags.Changed("test-fraction") {
				cfg.Training.TestFraction, _ = flags.GetFloat64("test-fraction")
			}
			if flags.Changed("encoding") {
				cfg.Dataset.Encoding, _ = flags.GetString("encoding")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			opts := []pipeline.TrainerOption{
				pipeline.WithDatasetOptions(dataset.Options{
					Encoding: cfg.Dataset.Encoding,
					Comma:    cfg.Dataset.Comma(),
					Logger:   a.logger,
				}),
			}
			if !noLog {
				store, err := db.Open(cfg.Database.Path)
				if err != nil {
					a.logger.Warn("training log unavailable", zap.Error(err))
				} else {
					defer store.Close()
					opts = append(opts, pipeline.WithRunRecorder(store))
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			trainer := pipeline.NewTrainer(cfg.Training, artifact.NewStore(outDir, a.logger), a.logger, opts...)
			report, err := trainer.Train(ctx, dataPath)
			if err != nil {
				return fmt.Errorf("training failed: %w", err)
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().StringVar(&dataPath, "data", "", "dataset CSV path (default from config)")
	cmd.Flags().StringVar(&outDir, "out", "", "artifact directory (default from config)")
	cmd.Flags().Int64("seed", 42, "random seed for split and forest")
	cmd.Flags().Int("trees", 100, "number of trees")
	cmd.Flags().Float64("test-fraction", 0.2, "share of records held out for testing")
	cmd.Flags().String("encoding", "utf-8", "dataset character set")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	cmd.Flags().BoolVar(&noLog, "no-log", false, "do not record the run in the training log")
	return cmd
}

func printReport(w io.Writer, r *pipeline.TrainingReport) {
	fmt.Fprintf(w, "Dataset shape: (%d, %d)\n", r.Rows, r.Columns)
	labels := make([]int, 0, len(r.LabelCounts))
	for label := range r.LabelCounts {
		labels = append(labels, label)
	}
	sort.Ints(labels)
	for _, label := range labels {
		fmt.Fprintf(w, "  %s=%d: %d\n", dataset.LabelColumn, label, r.LabelCounts[label])
	}

	fmt.Fprintln(w, "Encoding:")
	columns := make([]string, 0, len(r.Mappings))
	for column := range r.Mappings {
		columns = append(columns, column)
	}
	sort.Strings(columns)
	for _, column := range columns {
		pairs := make([]string, 0, len(r.Mappings[column]))
		for label, code := range r.Mappings[column] {
			pairs = append(pairs, fmt.Sprintf("%s=%d", label, code))
		}
		sort.Strings(pairs)
		fmt.Fprintf(w, "  %s: %s\n", column, strings.Join(pairs, " "))
	}
	fmt.Fprintf(w, "Feature order: %s\n", strings.Join(r.FeatureOrder, ", "))
	fmt.Fprintf(w, "Training set: (%d, %d)  Test set: (%d, %d)\n", r.TrainRows, len(r.FeatureOrder), r.TestRows, len(r.FeatureOrder))
	fmt.Fprintf(w, "Train accuracy: %.4f\n", r.TrainAccuracy)
	fmt.Fprintf(w, "Test accuracy:  %.4f\n", r.TestAccuracy)
	fmt.Fprintf(w, "Precision: %.4f  Recall: %.4f  F1: %.4f\n", r.Evaluation.Precision, r.Evaluation.Recall, r.Evaluation.F1)
	c := r.Evaluation.Confusion
	fmt.Fprintf(w, "Confusion: TN=%d FP=%d FN=%d TP=%d\n", c.TrueNegative, c.FalsePositive, c.FalseNegative, c.TruePositive)
	for _, issue := range r.Quality {
		fmt.Fprintf(w, "Data quality [%s] %s\n", issue.Severity, issue.Message)
	}
	fmt.Fprintf(w, "Artifacts saved to %s (run %s)\n", r.ArtifactDir, r.RunID)
}
