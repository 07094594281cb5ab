package lint

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/starford/quire/internal/parser"
	"github.com/starford/quire/internal/storage"
)

// Source rule identifiers.
const (
	RulePostFilename  = "post-filename"
	RuleFrontmatter   = "frontmatter"
	RulePostTitle     = "post-title"
	RulePostDate      = "post-date"
	RuleUnknownLayout = "unknown-layout"
)

const (
	postsDir          = "_posts"
	defaultPostLayout = "post"
)

// SourceOptions configures Source.
type SourceOptions struct {
	// Layouts lists the names of the layouts that exist.
	Layouts []string
	// Skip filters the walk the same way the builder does.
	Skip storage.SkipFunc
}

// Source checks documents in the source tree: post file names, front
// matter validity, post titles and dates, and layout references.
func Source(store storage.Provider, opts SourceOptions) (*Result, error) {
	layouts := make(map[string]bool, len(opts.Layouts))
	for _, l := range opts.Layouts {
		layouts[l] = true
	}
	metas, err := store.List("", opts.Skip)
	if err != nil {
		return nil, err
	}
	res := &Result{Issues: []Issue{}}
	for _, m := range metas {
		inPosts := strings.HasPrefix(m.Path, postsDir+"/")
		ext := strings.ToLower(path.Ext(m.Path))
		if inPosts && ext != ".md" && ext != ".markdown" && ext != ".html" {
			continue
		}
		data, err := store.Read(m.Path)
		if err != nil {
			return nil, err
		}
		if !inPosts && !parser.HasFrontmatter(data) {
			continue
		}
		res.FilesTotal++
		res.Issues = append(res.Issues, checkDocument(m.Path, data, inPosts, layouts)...)
	}
	res.Sort()
	return res, nil
}

func checkDocument(rel string, data []byte, isPost bool, layouts map[string]bool) []Issue {
	var issues []Issue
	issue := func(sev Severity, rule, msg string) {
		issues = append(issues, Issue{File: rel, Severity: sev, Rule: rule, Message: msg})
	}

	_, _, nameOK := parser.ParsePostFilename(path.Base(rel))
	if isPost && !nameOK {
		issue(SeverityError, RulePostFilename, "post file names must look like YYYY-MM-DD-slug.md")
	}

	res, err := parser.Parse(data)
	if err != nil {
		if errors.Is(err, parser.ErrInvalidDate) {
			issue(SeverityError, RulePostDate, err.Error())
		} else {
			issue(SeverityError, RuleFrontmatter, err.Error())
		}
		return issues
	}

	if isPost {
		if !parser.HasFrontmatter(data) {
			issue(SeverityError, RuleFrontmatter, "post has no front matter block")
		}
		if _, ok := res.Frontmatter["title"].(string); !ok {
			issue(SeverityError, RulePostTitle, "post has no title in front matter")
		}
		if !res.HasDate && !nameOK {
			issue(SeverityError, RulePostDate, "post has no date in its name or front matter")
		}
	}
	if _, named := res.Frontmatter["layout"]; isPost && !named && !layouts[defaultPostLayout] {
		issue(SeverityError, RuleUnknownLayout, fmt.Sprintf("post has no layout and %q does not exist", defaultPostLayout))
	}
	if res.Layout != "" && !layouts[res.Layout] && !isNoLayout(res.Layout) {
		issue(SeverityError, RuleUnknownLayout, fmt.Sprintf("layout %q does not exist", res.Layout))
	}
	return issues
}

func isNoLayout(s string) bool {
	switch strings.ToLower(s) {
	case "none", "null", "false":
		return true
	}
	return false
}
