package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"heartrisk/ml"
)

// FormatVersion is bumped whenever the on-disk layout changes.
const FormatVersion = 1

const (
	ModelFile    = "heart_model.json"
	ScalerFile   = "scaler.json"
	ColumnsFile  = "model_columns.json"
	EncodersFile = "label_encoders.json"
)

// Files returns the bundle file names in the order they are written.
func Files() []string {
	return []string{ModelFile, ScalerFile, ColumnsFile, EncodersFile}
}

var kinds = map[string]string{
	ModelFile:    "classifier",
	ScalerFile:   "scaler",
	ColumnsFile:  "feature_order",
	EncodersFile: "encoder_bank",
}

type envelope struct {
	FormatVersion int             `json:"format_version"`
	Kind          string          `json:"kind"`
	RunID         string          `json:"run_id"`
	CreatedAt     time.Time       `json:"created_at"`
	Payload       json.RawMessage `json:"payload"`
}

// Store reads and writes a bundle as four files in one directory.
type Store struct {
	dir    string
	logger *zap.Logger
}

func NewStore(dir string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{dir: dir, logger: logger}
}

func (s *Store) Dir() string {
	return s.dir
}

// Exists reports whether every bundle file is present.
func (s *Store) Exists() bool {
	return len(s.missing()) == 0
}

// Save writes the bundle. All files are staged in a temporary directory
// first, so a failed encode or write leaves the previous bundle in place.
func (s *Store) Save(b *Bundle) error {
	if b == nil {
		return errors.New("bundle is nil")
	}
	if err := b.Validate(); err != nil {
		return fmt.Errorf("refusing to save bundle: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	payloads := map[string]any{
		ModelFile:    b.Model,
		ScalerFile:   b.Scaler,
		ColumnsFile:  b.Order,
		EncodersFile: b.Encoders,
	}

	staging, err := os.MkdirTemp(s.dir, ".bundle-")
	if err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	for _, name := range Files() {
		raw, err := json.Marshal(payloads[name])
		if err != nil {
			return fmt.Errorf("encode %s: %w", name, err)
		}
		data, err := json.MarshalIndent(envelope{
			FormatVersion: FormatVersion,
			Kind:          kinds[name],
			RunID:         b.RunID,
			CreatedAt:     b.CreatedAt,
			Payload:       raw,
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("encode %s: %w", name, err)
		}
		if err := writeFileSync(filepath.Join(staging, name), data); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}

	for _, name := range Files() {
		if err := os.Rename(filepath.Join(staging, name), filepath.Join(s.dir, name)); err != nil {
			return fmt.Errorf("install %s: %w", name, err)
		}
	}
	s.logger.Info("model bundle saved", zap.String("dir", s.dir), zap.String("run_id", b.RunID))
	return nil
}

// Load reads the bundle. It fails with MissingArtifactError before decoding
// anything if a file is absent, with CorruptArtifactError if a file cannot
// be decoded, and with BundleMismatchError if the files come from
// different runs.
func (s *Store) Load() (*Bundle, error) {
	if missing := s.missing(); len(missing) > 0 {
		return nil, &MissingArtifactError{Dir: s.dir, Files: missing}
	}

	envelopes := make(map[string]envelope, 4)
	runIDs := make(map[string]string, 4)
	for _, name := range Files() {
		env, err := s.readEnvelope(name)
		if err != nil {
			return nil, err
		}
		envelopes[name] = env
		runIDs[name] = env.RunID
	}
	runID := runIDs[ModelFile]
	for _, id := range runIDs {
		if id != runID {
			return nil, &BundleMismatchError{RunIDs: runIDs}
		}
	}

	b := &Bundle{RunID: runID, CreatedAt: envelopes[ModelFile].CreatedAt}
	b.Model = &ml.RandomForest{}
	b.Scaler = &ml.StandardScaler{}
	b.Encoders = &ml.EncoderBank{}
	targets := map[string]any{
		ModelFile:    b.Model,
		ScalerFile:   b.Scaler,
		ColumnsFile:  &b.Order,
		EncodersFile: b.Encoders,
	}
	for _, name := range Files() {
		if err := json.Unmarshal(envelopes[name].Payload, targets[name]); err != nil {
			return nil, &CorruptArtifactError{File: name, Err: err}
		}
	}
	if err := b.Validate(); err != nil {
		return nil, &CorruptArtifactError{File: ModelFile, Err: err}
	}

	s.logger.Debug("model bundle loaded", zap.String("dir", s.dir), zap.String("run_id", runID))
	return b, nil
}

func (s *Store) readEnvelope(name string) (envelope, error) {
	var env envelope
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return env, &CorruptArtifactError{File: name, Err: err}
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return env, &CorruptArtifactError{File: name, Err: err}
	}
	if env.FormatVersion != FormatVersion {
		return env, &CorruptArtifactError{File: name, Err: fmt.Errorf("format version %d, want %d", env.FormatVersion, FormatVersion)}
	}
	if env.Kind != kinds[name] {
		return env, &CorruptArtifactError{File: name, Err: fmt.Errorf("holds %q, want %q", env.Kind, kinds[name])}
	}
	if env.RunID == "" || len(env.Payload) == 0 {
		return env, &CorruptArtifactError{File: name, Err: errors.New("missing run id or payload")}
	}
	return env, nil
}

func (s *Store) missing() []string {
	var missing []string
	for _, name := range Files() {
		if _, err := os.Stat(filepath.Join(s.dir, name)); errors.Is(err, fs.ErrNotExist) {
			missing = append(missing, name)
		}
	}
	return missing
}

func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
