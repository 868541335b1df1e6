package pipeline

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"heartrisk/dataset"
)

// QualityRule inspects a training dataset. Rules only report; they never
// drop or correct records.
type QualityRule interface {
	Check(ds *dataset.Dataset) []QualityIssue
	Name() string
}

type QualityIssue struct {
	Rule     string `json:"rule"`
	Severity string `json:"severity"` // low, medium, high
	Column   string `json:"column,omitempty"`
	Count    int    `json:"count"`
	Message  string `json:"message"`
}

// DataChecker runs quality rules over a dataset.
type DataChecker struct {
	rules []QualityRule
}

// NewDataChecker returns a checker with the default rules.
func NewDataChecker() *DataChecker {
	dc := &DataChecker{}
	dc.AddRule(NewRangeRule())
	dc.AddRule(NewDuplicateRule())
	dc.AddRule(NewClassBalanceRule(0.1))
	return dc
}

func (dc *DataChecker) AddRule(rule QualityRule) {
	dc.rules = append(dc.rules, rule)
}

// Check applies every rule in order.
func (dc *DataChecker) Check(ds *dataset.Dataset) []QualityIssue {
	issues := make([]QualityIssue, 0)
	if ds == nil {
		return issues
	}
	for _, rule := range dc.rules {
		issues = append(issues, rule.Check(ds)...)
	}
	return issues
}

// RangeRule counts numeric values outside each field's clinical range.
type RangeRule struct{}

func NewRangeRule() *RangeRule {
	return &RangeRule{}
}

func (r *RangeRule) Name() string {
	return "range"
}

func (r *RangeRule) Check(ds *dataset.Dataset) []QualityIssue {
	var issues []QualityIssue
	for _, name := range ds.Columns {
		values, ok := ds.Numeric[name]
		if !ok {
			continue
		}
		field, _ := dataset.Lookup(name)
		count := 0
		var first *dataset.Warning
		for _, v := range values {
			if w := field.Check(v); w != nil {
				count++
				if first == nil {
					first = w
				}
			}
		}
		if count == 0 {
			continue
		}
		severity := "low"
		if float64(count) > 0.05*float64(len(values)) {
			severity = "medium"
		}
		issues = append(issues, QualityIssue{
			Rule:     r.Name(),
			Severity: severity,
			Column:   name,
			Count:    count,
			Message:  fmt.Sprintf("%d values out of range, e.g. %s", count, first.Message),
		})
	}
	return issues
}

// DuplicateRule counts records identical to an earlier one, label included.
type DuplicateRule struct{}

func NewDuplicateRule() *DuplicateRule {
	return &DuplicateRule{}
}

func (r *DuplicateRule) Name() string {
	return "duplicate"
}

func (r *DuplicateRule) Check(ds *dataset.Dataset) []QualityIssue {
	seen := make(map[string]struct{}, ds.Rows())
	duplicates := 0
	var b strings.Builder
	for i := 0; i < ds.Rows(); i++ {
		b.Reset()
		for _, name := range ds.Columns {
			if labels, ok := ds.Categorical[name]; ok {
				b.WriteString(labels[i])
			} else {
				b.WriteString(strconv.FormatFloat(ds.Numeric[name][i], 'g', -1, 64))
			}
			b.WriteByte('|')
		}
		b.WriteString(strconv.Itoa(ds.Labels[i]))
		key := b.String()
		if _, ok := seen[key]; ok {
			duplicates++
			continue
		}
		seen[key] = struct{}{}
	}
	if duplicates == 0 {
		return nil
	}
	return []QualityIssue{{
		Rule:     r.Name(),
		Severity: "low",
		Count:    duplicates,
		Message:  fmt.Sprintf("%d duplicate records", duplicates),
	}}
}

// ClassBalanceRule flags labels whose share falls below MinShare.
type ClassBalanceRule struct {
	MinShare float64
}

func NewClassBalanceRule(minShare float64) *ClassBalanceRule {
	return &ClassBalanceRule{MinShare: minShare}
}

func (r *ClassBalanceRule) Name() string {
	return "class_balance"
}

func (r *ClassBalanceRule) Check(ds *dataset.Dataset) []QualityIssue {
	counts := ds.LabelCounts()
	labels := make([]int, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	sort.Ints(labels)

	var issues []QualityIssue
	if len(labels) < 2 {
		issues = append(issues, QualityIssue{
			Rule:     r.Name(),
			Severity: "high",
			Column:   dataset.LabelColumn,
			Count:    ds.Rows(),
			Message:  "dataset contains a single label",
		})
		return issues
	}
	for _, label := range labels {
		share := float64(counts[label]) / float64(ds.Rows())
		if share < r.MinShare {
			issues = append(issues, QualityIssue{
				Rule:     r.Name(),
				Severity: "medium",
				Column:   dataset.LabelColumn,
				Count:    counts[label],
				Message:  fmt.Sprintf("label %d is only %.1f%% of records", label, share*100),
			})
		}
	}
	return issues
}
