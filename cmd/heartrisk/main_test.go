package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heartrisk/artifact"
	"heartrisk/dataset"
	"heartrisk/internal/testdata"
	"heartrisk/risk"
)

func TestBuildRecordSetValues(t *testing.T) {
	raw, err := buildRecord("", []string{"Age=61", "Sex=M", "Oldpeak= 1.5", "ChestPainType=ASY"}, false)
	require.NoError(t, err)

	assert.Equal(t, json.Number("61"), raw["Age"])
	assert.Equal(t, json.Number("1.5"), raw["Oldpeak"])
	assert.Equal(t, "M", raw["Sex"])
	assert.Equal(t, "ASY", raw["ChestPainType"])
}

func TestBuildRecordLayering(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "record.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"Age": 70, "Sex": "F"}`), 0o644))

	raw, err := buildRecord(path, []string{"Sex=M"}, true)
	require.NoError(t, err)

	assert.Len(t, raw, len(dataset.FieldNames()))
	assert.Equal(t, json.Number("70"), raw["Age"])
	assert.Equal(t, "M", raw["Sex"])
}

func TestBuildRecordErrors(t *testing.T) {
	_, err := buildRecord("", nil, false)
	assert.Error(t, err)

	_, err = buildRecord("", []string{"Age"}, false)
	assert.Error(t, err)

	_, err = buildRecord(filepath.Join(t.TempDir(), "missing.json"), nil, false)
	assert.Error(t, err)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"http://localhost:3000"})
	req := func(origin string) bool {
		return check(mustRequest(t, origin))
	}
	assert.True(t, req(""))
	assert.True(t, req("http://localhost:3000"))
	assert.False(t, req("http://evil.example"))

	assert.True(t, originChecker([]string{"*"})(mustRequest(t, "http://anything")))
}

func mustRequest(t *testing.T, origin string) *http.Request {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, "/api/ws/assess", nil)
	if origin != "" {
		r.Header.Set("Origin", origin)
	}
	return r
}

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	data := testdata.WriteCSV(t, dir, 200, 7)
	cfg := fmt.Sprintf(`dataset:
  path: %s
artifacts:
  dir: %s
  watch: false
training:
  n_estimators: 10
database:
  path: %s
log:
  level: error
`, data, filepath.Join(dir, "models"), filepath.Join(dir, "heartrisk.db"))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestTrainPredictHistory(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir)

	out, err := run(t, "--config", cfg, "train", "--seed", "3")
	require.NoError(t, err)
	assert.Contains(t, out, fmt.Sprintf("Dataset shape: (200, %d)", len(dataset.FieldNames())+1))
	assert.Contains(t, out, "Sex: F=0 M=1")
	assert.Contains(t, out, "Test accuracy:")
	for _, name := range artifact.Files() {
		assert.FileExists(t, filepath.Join(dir, "models", name))
	}

	out, err = run(t, "--config", cfg, "predict", "--defaults", "--set", "Age=61", "--json")
	require.NoError(t, err)
	var a risk.Assessment
	require.NoError(t, json.Unmarshal([]byte(out), &a))
	assert.InDelta(t, 1.0, a.P0+a.P1, 1e-9)
	assert.NotEmpty(t, a.RunID)

	out, err = run(t, "--config", cfg, "history", "--json")
	require.NoError(t, err)
	var runs []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, a.RunID, runs[0]["run_id"])
}

func TestPredictWithoutModel(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir)

	_, err := run(t, "--config", cfg, "predict", "--defaults")
	require.Error(t, err)
	assert.Contains(t, err.Error(), artifact.ModelFile)
}

func TestVersion(t *testing.T) {
	out, err := run(t, "--config", filepath.Join(t.TempDir(), "none.yaml"), "version")
	require.NoError(t, err)
	assert.Equal(t, "heartrisk version "+Version+"\n", out)
}
