package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"heartrisk/artifact"
	"heartrisk/config"
	"heartrisk/dataset"
	"heartrisk/db"
	"heartrisk/ml"
)

// RunRecorder stores a summary of each finished training run.
type RunRecorder interface {
	SaveTrainingRun(ctx context.Context, run db.TrainingRun) error
}

// TrainingReport carries the diagnostics of one training run.
type TrainingReport struct {
	RunID         string                    `json:"run_id"`
	Rows          int                       `json:"rows"`
	Columns       int                       `json:"columns"`
	LabelCounts   map[int]int               `json:"label_counts"`
	Mappings      map[string]map[string]int `json:"mappings"`
	FeatureOrder  []string                  `json:"feature_order"`
	TrainRows     int                       `json:"train_rows"`
	TestRows      int                       `json:"test_rows"`
	TrainAccuracy float64                   `json:"train_accuracy"`
	TestAccuracy  float64                   `json:"test_accuracy"`
	Evaluation    ml.Evaluation             `json:"evaluation"`
	Quality       []QualityIssue            `json:"quality"`
	ArtifactDir   string                    `json:"artifact_dir"`
	Duration      time.Duration             `json:"duration"`
}

// Trainer fits and persists a model bundle from a CSV dataset.
type Trainer struct {
	cfg     config.TrainingConfig
	data    dataset.Options
	store   *artifact.Store
	runs    RunRecorder
	checker *DataChecker
	logger  *zap.Logger
}

type TrainerOption func(*Trainer)

// WithRunRecorder records every saved run.
func WithRunRecorder(r RunRecorder) TrainerOption {
	return func(t *Trainer) { t.runs = r }
}

func WithDatasetOptions(opts dataset.Options) TrainerOption {
	return func(t *Trainer) { t.data = opts }
}

func WithDataChecker(dc *DataChecker) TrainerOption {
	return func(t *Trainer) { t.checker = dc }
}

func NewTrainer(cfg config.TrainingConfig, store *artifact.Store, logger *zap.Logger, opts ...TrainerOption) *Trainer {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Trainer{
		cfg:     cfg,
		store:   store,
		checker: NewDataChecker(),
		logger:  logger,
	}
	for _, o := range opts {
		o(t)
	}
	if t.data.Logger == nil {
		t.data.Logger = logger
	}
	return t
}

// Train runs the whole training routine on the dataset at path and saves
// the resulting bundle. Nothing is written unless every step succeeds.
func (t *Trainer) Train(ctx context.Context, path string) (*TrainingReport, error) {
	if t.store == nil {
		return nil, errors.New("trainer: artifact store is required")
	}
	start := time.Now()

	ds, err := dataset.Load(path, t.data)
	if err != nil {
		return nil, err
	}
	rows, cols := ds.Shape()
	t.logger.Info("dataset loaded", zap.String("path", path), zap.Int("rows", rows), zap.Int("columns", cols))

	quality := t.checker.Check(ds)
	for _, issue := range quality {
		t.logger.Warn("data quality issue",
			zap.String("rule", issue.Rule),
			zap.String("column", issue.Column),
			zap.String("severity", issue.Severity),
			zap.String("message", issue.Message))
	}

	prep, err := ml.FitPreprocessor(ds)
	if err != nil {
		return nil, fmt.Errorf("fit encoders: %w", err)
	}
	set, err := ml.BuildTrainingSet(ds, prep)
	if err != nil {
		return nil, fmt.Errorf("encode dataset: %w", err)
	}

	trainX, testX, trainY, testY, err := ml.StratifiedSplit(set.Features, set.Labels, t.cfg.TestFraction, t.cfg.Seed)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scaler, err := ml.FitStandardScaler(trainX)
	if err != nil {
		return nil, fmt.Errorf("fit scaler: %w", err)
	}
	trainScaled, err := scaler.Transform(trainX)
	if err != nil {
		return nil, err
	}
	testScaled, err := scaler.Transform(testX)
	if err != nil {
		return nil, err
	}

	forest := ml.NewRandomForest(t.forestOptions()...)
	t.logger.Info("fitting random forest",
		zap.Int("n_estimators", forest.NEstimators),
		zap.Int64("seed", forest.Seed),
		zap.Int("train_rows", len(trainX)))
	if err := forest.Fit(trainScaled, trainY); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	trainAcc, err := forest.Score(trainScaled, trainY)
	if err != nil {
		return nil, err
	}
	eval, err := ml.Evaluate(forest, testScaled, testY, 1)
	if err != nil {
		return nil, err
	}

	bundle := artifact.NewBundle(forest, scaler, prep.Order, prep.Encoders)
	if err := t.store.Save(bundle); err != nil {
		return nil, fmt.Errorf("save artifacts: %w", err)
	}

	report := &TrainingReport{
		RunID:         bundle.RunID,
		Rows:          rows,
		Columns:       cols,
		LabelCounts:   ds.LabelCounts(),
		Mappings:      prep.Mappings(),
		FeatureOrder:  append([]string(nil), prep.Order...),
		TrainRows:     len(trainX),
		TestRows:      len(testX),
		TrainAccuracy: trainAcc,
		TestAccuracy:  eval.Accuracy,
		Evaluation:    eval,
		Quality:       quality,
		ArtifactDir:   t.store.Dir(),
		Duration:      time.Since(start),
	}

	if t.runs != nil {
		run := db.TrainingRun{
			RunID:         bundle.RunID,
			ModelName:     forest.Name(),
			NEstimators:   forest.NEstimators,
			Seed:          forest.Seed,
			TrainAccuracy: trainAcc,
			TestAccuracy:  eval.Accuracy,
			Precision:     eval.Precision,
			Recall:        eval.Recall,
			F1:            eval.F1,
			DataPoints:    rows,
			TrainedAt:     bundle.CreatedAt,
		}
		if err := t.runs.SaveTrainingRun(ctx, run); err != nil {
			// The bundle is already on disk; a missing log entry is not fatal.
			t.logger.Warn("failed to record training run", zap.String("run_id", bundle.RunID), zap.Error(err))
		}
	}

	t.logger.Info("training complete",
		zap.String("run_id", report.RunID),
		zap.Float64("train_accuracy", report.TrainAccuracy),
		zap.Float64("test_accuracy", report.TestAccuracy),
		zap.Duration("duration", report.Duration))
	return report, nil
}

func (t *Trainer) forestOptions() []ml.ForestOption {
	opts := []ml.ForestOption{
		ml.WithSeed(t.cfg.Seed),
		ml.WithMaxDepth(t.cfg.MaxDepth),
		ml.WithMaxFeatures(t.cfg.MaxFeatures),
	}
	if t.cfg.NEstimators > 0 {
		opts = append(opts, ml.WithNEstimators(t.cfg.NEstimators))
	}
	if t.cfg.MinSamplesSplit > 0 {
		opts = append(opts, ml.WithMinSamplesSplit(t.cfg.MinSamplesSplit))
	}
	if t.cfg.MinSamplesLeaf > 0 {
		opts = append(opts, ml.WithMinSamplesLeaf(t.cfg.MinSamplesLeaf))
	}
	if t.cfg.Workers > 0 {
		opts = append(opts, ml.WithWorkers(t.cfg.Workers))
	}
	return opts
}
