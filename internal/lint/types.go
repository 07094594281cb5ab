// Package lint checks the source tree and the rendered output for common
// publishing mistakes.
package lint

import (
	"fmt"
	"sort"

	"github.com/starford/quire/internal/apperr"
)

// Severity indicates the importance level of a linting issue.
type Severity int

const (
	// SeverityWarning indicates issues that should be fixed but don't fail lint.
	SeverityWarning Severity = iota + 1
	// SeverityError indicates issues that make "quire lint" exit non-zero.
	SeverityError
)

// String returns the human-readable severity name.
func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the severity by name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Issue represents a single linting problem found in a file.
type Issue struct {
	File     string   `json:"file"`     // slash separated, relative to the tree root
	Severity Severity `json:"severity"` // issue severity level
	Rule     string   `json:"rule"`     // rule identifier, e.g. "img-alt"
	Message  string   `json:"message"`
	Line     int      `json:"line,omitempty"` // 0 for file-level issues
}

// Result contains all issues found during linting.
type Result struct {
	Issues     []Issue `json:"issues"`
	FilesTotal int     `json:"files_total"`
}

// Merge appends other's issues and file count to r.
func (r *Result) Merge(other *Result) {
	r.Issues = append(r.Issues, other.Issues...)
	r.FilesTotal += other.FilesTotal
}

// Sort orders issues by file, then line, then rule.
func (r *Result) Sort() {
	sort.SliceStable(r.Issues, func(i, j int) bool {
		a, b := r.Issues[i], r.Issues[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Rule < b.Rule
	})
}

// HasErrors returns true if any error-level issues exist.
func (r *Result) HasErrors() bool {
	return r.ErrorCount() > 0
}

// ErrorCount returns the number of error-level issues.
func (r *Result) ErrorCount() int {
	return r.count(SeverityError)
}

// WarningCount returns the number of warning-level issues.
func (r *Result) WarningCount() int {
	return r.count(SeverityWarning)
}

func (r *Result) count(s Severity) int {
	n := 0
	for _, issue := range r.Issues {
		if issue.Severity == s {
			n++
		}
	}
	return n
}

// Err returns an error wrapping apperr.ErrLintFailed when errors were found.
func (r *Result) Err() error {
	if n := r.ErrorCount(); n > 0 {
		return fmt.Errorf("lint: %d error(s): %w", n, apperr.ErrLintFailed)
	}
	return nil
}
