package artifact

import (
	"fmt"
	"sort"
	"strings"
)

// MissingArtifactError lists every bundle file absent from the artifact
// directory.
type MissingArtifactError struct {
	Dir   string
	Files []string
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("missing model artifacts in %s: %s", e.Dir, strings.Join(e.Files, ", "))
}

// CorruptArtifactError reports a bundle file that exists but cannot be used.
type CorruptArtifactError struct {
	File string
	Err  error
}

func (e *CorruptArtifactError) Error() string {
	return fmt.Sprintf("corrupt model artifact %s: %v", e.File, e.Err)
}

func (e *CorruptArtifactError) Unwrap() error {
	return e.Err
}

// BundleMismatchError reports artifacts written by different training runs.
type BundleMismatchError struct {
	RunIDs map[string]string
}

func (e *BundleMismatchError) Error() string {
	files := make([]string, 0, len(e.RunIDs))
	for f := range e.RunIDs {
		files = append(files, f)
	}
	sort.Strings(files)
	parts := make([]string, len(files))
	for i, f := range files {
		parts[i] = f + "=" + e.RunIDs[f]
	}
	return "model artifacts come from different training runs: " + strings.Join(parts, ", ")
}
