package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Options controls how a dataset file is decoded.
type Options struct {
	// Encoding is a WHATWG character set name such as "utf-8",
	// "windows-1252" or "gbk". Empty means utf-8.
	Encoding string
	// Comma overrides the field delimiter. Zero means ','.
	Comma  rune
	Logger *zap.Logger
}

// Dataset is the in-memory training table split by column type.
type Dataset struct {
	Header      []string
	Columns     []string
	Categorical map[string][]string
	Numeric     map[string][]float64
	Labels      []int
}

// Rows returns the number of records.
func (d *Dataset) Rows() int {
	return len(d.Labels)
}

// Shape returns rows and columns, the label column included.
func (d *Dataset) Shape() (int, int) {
	return len(d.Labels), len(d.Columns) + 1
}

// LabelCounts returns how many records carry each label value.
func (d *Dataset) LabelCounts() map[int]int {
	counts := make(map[int]int)
	for _, label := range d.Labels {
		counts[label]++
	}
	return counts
}

// Load reads a CSV dataset from path.
func Load(path string, opts Options) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer file.Close()

	ds, err := Read(file, opts)
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", path, err)
	}
	return ds, nil
}

// Read parses a CSV dataset with a header row. Every schema field and the
// label column must be present; other columns are ignored.
func Read(r io.Reader, opts Options) (*Dataset, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	enc, err := resolveEncoding(opts.Encoding)
	if err != nil {
		return nil, err
	}
	reader := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(enc.NewDecoder())))
	if opts.Comma != 0 {
		reader.Comma = opts.Comma
	}
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("dataset is empty")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}

	var missing []string
	for _, name := range append(FieldNames(), LabelColumn) {
		if _, ok := index[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaMismatchError{Missing: missing}
	}

	ds := &Dataset{
		Header:      header,
		Categorical: make(map[string][]string),
		Numeric:     make(map[string][]float64),
	}
	for _, name := range header {
		if _, ok := Lookup(name); ok {
			ds.Columns = append(ds.Columns, name)
		} else if name != LabelColumn {
			logger.Warn("ignoring unknown dataset column", zap.String("column", name))
		}
	}

	line := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		for _, name := range ds.Columns {
			field, _ := Lookup(name)
			cell := strings.TrimSpace(row[index[name]])
			if field.IsCategorical() {
				if cell == "" {
					return nil, fmt.Errorf("line %d: empty value for %s", line, name)
				}
				ds.Categorical[name] = append(ds.Categorical[name], cell)
				continue
			}
			value, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: column %s: %w", line, name, &InvalidValueError{Column: name, Value: cell, Reason: "not a number"})
			}
			ds.Numeric[name] = append(ds.Numeric[name], value)
		}

		label, err := strconv.Atoi(strings.TrimSpace(row[index[LabelColumn]]))
		if err != nil || (label != 0 && label != 1) {
			return nil, fmt.Errorf("line %d: %w", line, &InvalidValueError{Column: LabelColumn, Value: row[index[LabelColumn]], Reason: "expected 0 or 1"})
		}
		ds.Labels = append(ds.Labels, label)
	}

	if ds.Rows() == 0 {
		return nil, errors.New("dataset has no records")
	}
	logger.Debug("dataset loaded", zap.Int("rows", ds.Rows()), zap.Strings("columns", ds.Columns))
	return ds, nil
}

func resolveEncoding(name string) (encoding.Encoding, error) {
	if name == "" {
		return unicode.UTF8, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unsupported dataset encoding %q: %w", name, err)
	}
	return enc, nil
}
