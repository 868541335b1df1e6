package pipeline

import (
	"os"
	"testing"

	"heartrisk/dataset"
)

func smallDataset(labels []int, ages []float64) *dataset.Dataset {
	n := len(labels)
	ds := &dataset.Dataset{
		Columns:     []string{"Age", "Sex"},
		Categorical: map[string][]string{"Sex": make([]string, n)},
		Numeric:     map[string][]float64{"Age": ages},
		Labels:      labels,
	}
	for i := range ds.Categorical["Sex"] {
		ds.Categorical["Sex"][i] = "M"
	}
	return ds
}

func TestRangeRule(t *testing.T) {
	ds := smallDataset([]int{0, 1, 0, 1}, []float64{50, 130, 0, 60})
	issues := NewRangeRule().Check(ds)
	if len(issues) != 1 {
		t.Fatalf("expected 1 issue, got %d: %+v", len(issues), issues)
	}
	if issues[0].Column != "Age" || issues[0].Count != 2 {
		t.Fatalf("unexpected issue: %+v", issues[0])
	}
	if issues[0].Severity != "medium" {
		t.Fatalf("expected medium severity for half the rows, got %s", issues[0].Severity)
	}
}

func TestDuplicateRule(t *testing.T) {
	ds := smallDataset([]int{0, 0, 1, 0}, []float64{50, 50, 50, 51})
	issues := NewDuplicateRule().Check(ds)
	if len(issues) != 1 || issues[0].Count != 1 {
		t.Fatalf("expected one duplicate, got %+v", issues)
	}

	ds = smallDataset([]int{0, 1}, []float64{50, 51})
	if issues := NewDuplicateRule().Check(ds); len(issues) != 0 {
		t.Fatalf("expected no duplicates, got %+v", issues)
	}
}

func TestClassBalanceRule(t *testing.T) {
	labels := make([]int, 20)
	ages := make([]float64, 20)
	for i := range ages {
		ages[i] = float64(40 + i)
	}
	labels[0] = 1

	issues := NewClassBalanceRule(0.1).Check(smallDataset(labels, ages))
	if len(issues) != 1 || issues[0].Count != 1 {
		t.Fatalf("expected minority label flagged, got %+v", issues)
	}

	labels[0] = 0
	issues = NewClassBalanceRule(0.1).Check(smallDataset(labels, ages))
	if len(issues) != 1 || issues[0].Severity != "high" {
		t.Fatalf("expected single-label issue, got %+v", issues)
	}
}

func TestDataCheckerRunsAllRules(t *testing.T) {
	ds := smallDataset([]int{0, 0, 1}, []float64{50, 50, 500})
	issues := NewDataChecker().Check(ds)
	rules := make(map[string]bool)
	for _, issue := range issues {
		rules[issue.Rule] = true
	}
	if !rules["range"] || !rules["duplicate"] {
		t.Fatalf("expected range and duplicate issues, got %+v", issues)
	}
	if got := NewDataChecker().Check(nil); len(got) != 0 {
		t.Fatalf("expected no issues for nil dataset, got %+v", got)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
