package artifact

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heartrisk/dataset"
	"heartrisk/internal/testdata"
	"heartrisk/ml"
)

func fitBundle(t *testing.T, seed int64) *Bundle {
	t.Helper()
	ds, err := dataset.Read(bytes.NewReader(testdata.CSV(80, seed)), dataset.Options{})
	require.NoError(t, err)
	p, err := ml.FitPreprocessor(ds)
	require.NoError(t, err)
	set, err := ml.BuildTrainingSet(ds, p)
	require.NoError(t, err)
	scaler, err := ml.FitStandardScaler(set.Features)
	require.NoError(t, err)
	scaled, err := scaler.Transform(set.Features)
	require.NoError(t, err)
	rf := ml.NewRandomForest(ml.WithNEstimators(3), ml.WithSeed(seed))
	require.NoError(t, rf.Fit(scaled, set.Labels))
	return NewBundle(rf, scaler, p.Order, p.Encoders)
}

func TestStoreSaveLoad(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, nil)
	assert.False(t, store.Exists())

	bundle := fitBundle(t, 1)
	require.NoError(t, store.Save(bundle))
	assert.True(t, store.Exists())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 4, "staging directory must be cleaned up")

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, bundle.RunID, loaded.RunID)
	assert.True(t, bundle.Order.Equal(loaded.Order))
	assert.Equal(t, bundle.Scaler.Mean, loaded.Scaler.Mean)
	assert.Equal(t, []string{"ASY", "ATA", "NAP", "TA"}, mustEncoder(t, loaded, "ChestPainType").Classes())

	row := make([]float64, loaded.Order.Len())
	want, err := bundle.Model.PredictProba(row)
	require.NoError(t, err)
	got, err := loaded.Model.PredictProba(row)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func mustEncoder(t *testing.T, b *Bundle, column string) *ml.LabelEncoder {
	t.Helper()
	enc, ok := b.Encoders.Encoder(column)
	require.True(t, ok)
	return enc
}

func TestStoreLoadMissingNamesEveryFile(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "models"), nil)
	_, err := store.Load()
	var missing *MissingArtifactError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, Files(), missing.Files)
	for _, name := range Files() {
		assert.Contains(t, err.Error(), name)
	}
}

func TestStoreLoadPartiallyMissing(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, nil)
	require.NoError(t, store.Save(fitBundle(t, 2)))
	require.NoError(t, os.Remove(filepath.Join(dir, ScalerFile)))
	require.NoError(t, os.Remove(filepath.Join(dir, EncodersFile)))

	_, err := store.Load()
	var missing *MissingArtifactError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{ScalerFile, EncodersFile}, missing.Files)
}

func TestStoreLoadCorrupt(t *testing.T) {
	tests := []struct {
		name   string
		file   string
		mutate func(t *testing.T, path string)
	}{
		{
			name: "garbage",
			file: ScalerFile,
			mutate: func(t *testing.T, path string) {
				require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))
			},
		},
		{
			name: "wrong kind",
			file: ColumnsFile,
			mutate: func(t *testing.T, path string) {
				rewriteEnvelope(t, path, func(env *envelope) { env.Kind = "scaler" })
			},
		},
		{
			name: "future format",
			file: ModelFile,
			mutate: func(t *testing.T, path string) {
				rewriteEnvelope(t, path, func(env *envelope) { env.FormatVersion = FormatVersion + 1 })
			},
		},
		{
			name: "inconsistent payload",
			file: ColumnsFile,
			mutate: func(t *testing.T, path string) {
				rewriteEnvelope(t, path, func(env *envelope) { env.Payload = json.RawMessage(`["Age","Sex"]`) })
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			store := NewStore(dir, nil)
			require.NoError(t, store.Save(fitBundle(t, 3)))
			tt.mutate(t, filepath.Join(dir, tt.file))

			_, err := store.Load()
			var corrupt *CorruptArtifactError
			require.ErrorAs(t, err, &corrupt)
			var missing *MissingArtifactError
			assert.False(t, errors.As(err, &missing))
		})
	}
}

func TestStoreLoadMixedRuns(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	require.NoError(t, NewStore(first, nil).Save(fitBundle(t, 4)))
	require.NoError(t, NewStore(second, nil).Save(fitBundle(t, 5)))

	data, err := os.ReadFile(filepath.Join(second, EncodersFile))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(first, EncodersFile), data, 0o644))

	_, err = NewStore(first, nil).Load()
	var mismatch *BundleMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Len(t, mismatch.RunIDs, 4)
}

func TestStoreRefusesInvalidBundle(t *testing.T) {
	bundle := fitBundle(t, 6)
	bundle.Order = bundle.Order[:5]
	assert.Error(t, NewStore(t.TempDir(), nil).Save(bundle))
	assert.Error(t, NewStore(t.TempDir(), nil).Save(nil))
}

func rewriteEnvelope(t *testing.T, path string, mutate func(*envelope)) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.Unmarshal(data, &env))
	mutate(&env)
	data, err = json.Marshal(env)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}
