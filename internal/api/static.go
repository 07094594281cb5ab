package api

import (
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// NotFoundPage is served with status 404 when it exists in the site.
const NotFoundPage = "404.html"

// SiteHandler serves the built site the way GitHub Pages does:
// directories resolve to index.html, extensionless paths fall back to
// .html, and misses get the site's 404.html.
type SiteHandler struct {
	root    string
	baseURL string
}

// NewSiteHandler serves files under root. baseURL is stripped from
// request paths first.
func NewSiteHandler(root, baseURL string) *SiteHandler {
	return &SiteHandler{root: root, baseURL: strings.TrimRight(baseURL, "/")}
}

// ServeHTTP serves GET and HEAD requests.
func (h *SiteHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	p := r.URL.Path
	if h.baseURL != "" {
		if p == h.baseURL {
			http.Redirect(w, r, h.baseURL+"/", http.StatusMovedPermanently)
			return
		}
		if !strings.HasPrefix(p, h.baseURL+"/") {
			h.notFound(w, r)
			return
		}
		p = strings.TrimPrefix(p, h.baseURL)
	}

	rel := strings.TrimPrefix(path.Clean("/"+p), "/")
	for _, candidate := range candidates(rel, strings.HasSuffix(p, "/")) {
		if h.serveFile(w, r, candidate, http.StatusOK) {
			return
		}
	}
	h.notFound(w, r)
}

func candidates(rel string, dir bool) []string {
	if rel == "" {
		return []string{"index.html"}
	}
	if dir {
		return []string{path.Join(rel, "index.html")}
	}
	out := []string{rel, path.Join(rel, "index.html")}
	if path.Ext(rel) == "" {
		out = append(out, rel+".html")
	}
	return out
}

func (h *SiteHandler) notFound(w http.ResponseWriter, r *http.Request) {
	if h.serveFile(w, r, NotFoundPage, http.StatusNotFound) {
		return
	}
	http.NotFound(w, r)
}

// serveFile writes rel with status and reports whether it was a regular file.
func (h *SiteHandler) serveFile(w http.ResponseWriter, r *http.Request, rel string, status int) bool {
	f, err := os.Open(filepath.Join(h.root, filepath.FromSlash(rel)))
	if err != nil {
		// ENOTDIR and permission errors are misses too.
		return false
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		return false
	}
	if status != http.StatusOK {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		if r.Method != http.MethodHead {
			_, _ = io.Copy(w, f)
		}
		return true
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	return true
}
