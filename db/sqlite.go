package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS training_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL UNIQUE,
    model_name VARCHAR(50),
    n_estimators INTEGER,
    seed INTEGER,
    train_accuracy REAL,
    test_accuracy REAL,
    precision REAL,
    recall REAL,
    f1 REAL,
    data_points INTEGER,
    trained_at DATETIME
);
CREATE TABLE IF NOT EXISTS predictions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    request_id TEXT,
    run_id TEXT NOT NULL,
    label INTEGER,
    p0 REAL,
    p1 REAL,
    input TEXT,
    created_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_predictions_created_at ON predictions(created_at);
`

// Store persists the training log and the prediction audit trail.
type Store struct {
	db *sql.DB
}

// Open opens (and creates, if needed) the SQLite database at path.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	database, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database failed: %w", err)
	}
	database.SetMaxOpenConns(1)
	if _, err := database.Exec(schema); err != nil {
		database.Close()
		return nil, fmt.Errorf("create tables failed: %w", err)
	}
	return &Store{db: database}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type TrainingRun struct {
	RunID         string    `json:"run_id"`
	ModelName     string    `json:"model_name"`
	NEstimators   int       `json:"n_estimators"`
	Seed          int64     `json:"seed"`
	TrainAccuracy float64   `json:"train_accuracy"`
	TestAccuracy  float64   `json:"test_accuracy"`
	Precision     float64   `json:"precision"`
	Recall        float64   `json:"recall"`
	F1            float64   `json:"f1"`
	DataPoints    int       `json:"data_points"`
	TrainedAt     time.Time `json:"trained_at"`
}

func (s *Store) SaveTrainingRun(ctx context.Context, run TrainingRun) error {
	if s == nil || s.db == nil {
		return errors.New("database not initialized")
	}
	if run.RunID == "" {
		return errors.New("run id required")
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO training_log (
            run_id, model_name, n_estimators, seed, train_accuracy, test_accuracy,
            precision, recall, f1, data_points, trained_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.ModelName, run.NEstimators, run.Seed, run.TrainAccuracy, run.TestAccuracy,
		run.Precision, run.Recall, run.F1, run.DataPoints, run.TrainedAt.UTC())
	return err
}

// RecentTrainingRuns returns up to limit runs, newest first.
func (s *Store) RecentTrainingRuns(ctx context.Context, limit int) ([]TrainingRun, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("database not initialized")
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT run_id, model_name, n_estimators, seed, train_accuracy, test_accuracy,
               precision, recall, f1, data_points, trained_at
        FROM training_log
        ORDER BY trained_at DESC, id DESC
        LIMIT ?`, limitOrDefault(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]TrainingRun, 0)
	for rows.Next() {
		var r TrainingRun
		if err := rows.Scan(&r.RunID, &r.ModelName, &r.NEstimators, &r.Seed, &r.TrainAccuracy, &r.TestAccuracy,
			&r.Precision, &r.Recall, &r.F1, &r.DataPoints, &r.TrainedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// PredictionLog is one audited inference. Input holds the raw record as
// JSON.
type PredictionLog struct {
	RequestID string    `json:"request_id"`
	RunID     string    `json:"run_id"`
	Label     int       `json:"label"`
	P0        float64   `json:"p0"`
	P1        float64   `json:"p1"`
	Input     string    `json:"input"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Store) SavePrediction(ctx context.Context, p PredictionLog) error {
	if s == nil || s.db == nil {
		return errors.New("database not initialized")
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO predictions (request_id, run_id, label, p0, p1, input, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.RequestID, p.RunID, p.Label, p.P0, p.P1, p.Input, p.CreatedAt.UTC())
	return err
}

func (s *Store) RecentPredictions(ctx context.Context, limit int) ([]PredictionLog, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("database not initialized")
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT request_id, run_id, label, p0, p1, input, created_at
        FROM predictions
        ORDER BY created_at DESC, id DESC
        LIMIT ?`, limitOrDefault(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]PredictionLog, 0)
	for rows.Next() {
		var p PredictionLog
		var requestID sql.NullString
		if err := rows.Scan(&requestID, &p.RunID, &p.Label, &p.P0, &p.P1, &p.Input, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.RequestID = requestID.String
		out = append(out, p)
	}
	return out, rows.Err()
}

const (
	defaultLimit = 50
	maxLimit     = 1000
)

// limitOrDefault maps a non-positive limit to the default and caps large ones.
func limitOrDefault(limit int) int {
	switch {
	case limit <= 0:
		return defaultLimit
	case limit > maxLimit:
		return maxLimit
	default:
		return limit
	}
}
