package lint

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Formatter formats linting results for output.
type Formatter interface {
	Format(w io.Writer, result *Result) error
}

// NewFormatter returns the formatter for name ("text" or "json").
func NewFormatter(name string) (Formatter, error) {
	switch name {
	case "", "text":
		return TextFormatter{}, nil
	case "json":
		return JSONFormatter{}, nil
	}
	return nil, fmt.Errorf("lint: unknown format %q", name)
}

// TextFormatter formats results as human-readable text.
type TextFormatter struct{}

// Format writes one line per issue and a summary.
func (TextFormatter) Format(w io.Writer, result *Result) error {
	for _, issue := range result.Issues {
		loc := issue.File
		if issue.Line > 0 {
			loc = fmt.Sprintf("%s:%d", issue.File, issue.Line)
		}
		if _, err := fmt.Fprintf(w, "%-7s %s [%s] %s\n", issue.Severity, loc, issue.Rule, issue.Message); err != nil {
			return err
		}
	}
	if len(result.Issues) > 0 {
		if _, err := fmt.Fprintln(w, strings.Repeat("-", 60)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%d files scanned, %d error%s, %d warning%s\n",
		result.FilesTotal,
		result.ErrorCount(), pluralize(result.ErrorCount()),
		result.WarningCount(), pluralize(result.WarningCount()))
	return err
}

// JSONFormatter formats results as JSON.
type JSONFormatter struct{}

// Format writes the result as an indented JSON document.
func (JSONFormatter) Format(w io.Writer, result *Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func pluralize(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
