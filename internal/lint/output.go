package lint

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/starford/quire/internal/storage"
)

// Output rule identifiers.
const (
	RuleImgAlt       = "img-alt"
	RuleBrokenLink   = "broken-link"
	RuleDuplicateID  = "duplicate-id"
	RuleMissingTitle = "missing-title"
)

// OutputOptions configures Output.
type OutputOptions struct {
	// BaseURL is stripped from root-relative links before resolving them.
	BaseURL string
	Skip    storage.SkipFunc
}

// Output checks every rendered HTML file: images need alt text, internal
// links and sources must resolve to an output file, element ids must be
// unique, and every document needs a non-empty <title>.
func Output(store storage.Provider, opts OutputOptions) (*Result, error) {
	metas, err := store.List("", opts.Skip)
	if err != nil {
		return nil, err
	}
	files := make(map[string]bool, len(metas))
	for _, m := range metas {
		files[m.Path] = true
	}
	c := &outputChecker{files: files, baseURL: strings.TrimRight(opts.BaseURL, "/")}

	res := &Result{Issues: []Issue{}}
	for _, m := range metas {
		if !strings.HasSuffix(m.Path, ".html") {
			continue
		}
		data, err := store.Read(m.Path)
		if err != nil {
			return nil, err
		}
		res.FilesTotal++
		issues, err := c.check(m.Path, data)
		if err != nil {
			return nil, err
		}
		res.Issues = append(res.Issues, issues...)
	}
	res.Sort()
	return res, nil
}

type outputChecker struct {
	files   map[string]bool
	baseURL string
}

func (c *outputChecker) check(rel string, data []byte) ([]Issue, error) {
	var issues []Issue
	add := func(line int, sev Severity, rule, msg string) {
		issues = append(issues, Issue{File: rel, Line: line, Severity: sev, Rule: rule, Message: msg})
	}

	ids := make(map[string]int)
	line := 1
	inTitle, hasTitle := false, false
	// Full documents need a title; fragments such as Google verification
	// files do not.
	isDocument := bytes.Contains(bytes.ToLower(data), []byte("<html"))

	z := html.NewTokenizer(bytes.NewReader(data))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if err := z.Err(); err != io.EOF {
				return nil, fmt.Errorf("lint: parse %s: %w", rel, err)
			}
			break
		}
		at := line
		line += bytes.Count(z.Raw(), []byte("\n"))

		switch tt {
		case html.TextToken:
			if inTitle && strings.TrimSpace(string(z.Text())) != "" {
				hasTitle = true
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); atom.Lookup(name) == atom.Title {
				inTitle = false
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			a := atom.Lookup(name)
			attrs := map[string]string{}
			for hasAttr {
				var k, v []byte
				k, v, hasAttr = z.TagAttr()
				attrs[string(k)] = string(v)
			}

			if a == atom.Title && tt == html.StartTagToken {
				inTitle = true
			}
			if id, ok := attrs["id"]; ok && id != "" {
				if first, dup := ids[id]; dup {
					add(at, SeverityWarning, RuleDuplicateID, fmt.Sprintf("id %q already used on line %d", id, first))
				} else {
					ids[id] = at
				}
			}
			if a == atom.Img {
				if _, ok := attrs["alt"]; !ok {
					add(at, SeverityWarning, RuleImgAlt, fmt.Sprintf("<img src=%q> has no alt attribute", attrs["src"]))
				}
			}
			for _, key := range linkAttrs(a) {
				if target, ok := attrs[key]; ok && !c.resolves(rel, target) {
					add(at, SeverityError, RuleBrokenLink, fmt.Sprintf("%s=%q does not resolve to an output file", key, target))
				}
			}
		}
	}

	if isDocument && !hasTitle {
		add(0, SeverityWarning, RuleMissingTitle, "document has no <title>")
	}
	return issues, nil
}

func linkAttrs(a atom.Atom) []string {
	switch a {
	case atom.A, atom.Link:
		return []string{"href"}
	case atom.Img, atom.Script, atom.Source, atom.Iframe, atom.Audio, atom.Video:
		return []string{"src"}
	}
	return nil
}

// resolves reports whether target, found in the file rel, points at an
// existing output file. External and fragment-only links always resolve.
func (c *outputChecker) resolves(rel, target string) bool {
	target = strings.TrimSpace(target)
	if target == "" || strings.HasPrefix(target, "#") || strings.HasPrefix(target, "//") {
		return true
	}
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	if u.Scheme != "" || u.Host != "" {
		return true
	}
	p := u.Path
	if p == "" {
		return true
	}

	var resolved string
	if strings.HasPrefix(p, "/") {
		if c.baseURL != "" {
			if p != c.baseURL && !strings.HasPrefix(p, c.baseURL+"/") {
				return false
			}
			p = strings.TrimPrefix(p, c.baseURL)
		}
		resolved = strings.TrimPrefix(path.Clean(p), "/")
	} else {
		resolved = path.Join(path.Dir(rel), p)
	}
	if strings.HasPrefix(resolved, "..") {
		return false
	}
	if strings.HasSuffix(p, "/") || resolved == "." || resolved == "" {
		return c.files[path.Join(resolved, "index.html")]
	}
	return c.files[resolved] || c.files[resolved+".html"] || c.files[path.Join(resolved, "index.html")]
}
