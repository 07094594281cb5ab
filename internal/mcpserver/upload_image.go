package mcpserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
)

// ImagesDir is where uploaded images are stored in the source tree.
const ImagesDir = "assets/images"

const maxImageSize = 10 << 20 // 10 MB

var (
	imageExts = map[string]string{
		"image/png":     ".png",
		"image/jpeg":    ".jpg",
		"image/gif":     ".gif",
		"image/webp":    ".webp",
		"image/svg+xml": ".svg",
	}
	unsafeNameRe = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
)

type uploadResult struct {
	Path     string `json:"path"`
	URL      string `json:"url"`
	Markdown string `json:"markdown"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}

func (s *Server) uploadImage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var (
		data []byte
		ext  string
	)
	if strings.HasPrefix(raw, "data:") {
		data, ext, err = decodeDataURI(raw)
	} else {
		data, ext, err = download(ctx, raw)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	name := cleanFilename(req.GetString("filename", ""), raw, ext)
	if err := checkImage(data, path.Ext(name)); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	rel := path.Join(ImagesDir, name)
	if s.store.Exists(rel) {
		return mcp.NewToolResultError(fmt.Sprintf("file already exists: %s", rel)), nil
	}
	if err := s.store.Write(rel, data); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("save image: %v", err)), nil
	}

	alt := req.GetString("alt", "")
	if alt == "" {
		alt = strings.TrimSuffix(name, path.Ext(name))
	}
	res := uploadResult{Path: rel, URL: "/" + rel}
	res.Markdown = fmt.Sprintf("![%s](%s)", alt, res.URL)
	if size, err := s.posts.ImageSize(res.URL); err == nil {
		res.Width, res.Height = size.Width, size.Height
	}
	return jsonResult(res), nil
}

// decodeDataURI parses a data:<mediatype>;base64,<data> URI.
func decodeDataURI(uri string) ([]byte, string, error) {
	meta, encoded, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return nil, "", fmt.Errorf("invalid data URI: missing comma separator")
	}
	if !strings.HasSuffix(meta, ";base64") {
		return nil, "", fmt.Errorf("only base64 data URIs are supported")
	}
	mime, _, _ := strings.Cut(strings.TrimSuffix(meta, ";base64"), ";")
	ext, ok := imageExts[mime]
	if !ok {
		return nil, "", fmt.Errorf("unsupported image type in data URI: %s", mime)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		if data, err = base64.RawStdEncoding.DecodeString(encoded); err != nil {
			return nil, "", fmt.Errorf("invalid base64 data: %w", err)
		}
	}
	if len(data) > maxImageSize {
		return nil, "", fmt.Errorf("image too large: %d bytes (max %d)", len(data), maxImageSize)
	}
	return data, ext, nil
}

// download fetches an http(s) URL, refusing loopback and metadata hosts.
func download(ctx context.Context, raw string) ([]byte, string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, "", fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, "", fmt.Errorf("unsupported scheme: %s (only http/https)", u.Scheme)
	}
	if err := checkHost(u.Hostname()); err != nil {
		return nil, "", err
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
		CheckRedirect: func(r *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects (max 5)")
			}
			return checkHost(r.URL.Hostname())
		},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
	if err != nil {
		return nil, "", fmt.Errorf("invalid URL: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("read body failed: %w", err)
	}
	if len(data) > maxImageSize {
		return nil, "", fmt.Errorf("image too large: exceeds %d bytes", maxImageSize)
	}
	mime, _, _ := strings.Cut(resp.Header.Get("Content-Type"), ";")
	return data, imageExts[strings.TrimSpace(mime)], nil
}

// checkHost rejects loopback and cloud metadata addresses.
func checkHost(host string) error {
	if host == "metadata.google.internal" {
		return fmt.Errorf("blocked host: %s", host)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		ips, err := net.LookupIP(host)
		if err != nil || len(ips) == 0 {
			return nil //nolint:nilerr // let http.Client report DNS failures
		}
		ip = ips[0]
	}
	if ip.IsLoopback() {
		return fmt.Errorf("blocked host: loopback address %s", host)
	}
	if ip.Equal(net.ParseIP("169.254.169.254")) {
		return fmt.Errorf("blocked host: cloud metadata address %s", host)
	}
	return nil
}

// cleanFilename picks the stored file name: the requested one, else the
// URL's base name, else a uuid. Unsafe characters become "_" and a missing
// extension is taken from the detected type.
func cleanFilename(requested, raw, ext string) string {
	name := path.Base(requested)
	if requested == "" && !strings.HasPrefix(raw, "data:") {
		if u, err := url.Parse(raw); err == nil {
			name = path.Base(u.Path)
		}
	}
	name = unsafeNameRe.ReplaceAllString(name, "_")
	if name == "" || name == "." || name == "/" || strings.Trim(name, "_.") == "" {
		name = uuid.NewString()
	}
	if path.Ext(name) == "" && ext != "" {
		name += ext
	}
	return name
}

// checkImage verifies the content matches an allowed image extension.
func checkImage(data []byte, ext string) error {
	ext = strings.ToLower(ext)
	if ext == ".svg" {
		head := data
		if len(head) > 1024 {
			head = head[:1024]
		}
		if !bytes.Contains(head, []byte("<svg")) {
			return fmt.Errorf("content does not appear to be an SVG image")
		}
		return nil
	}
	if ext == ".jpeg" {
		ext = ".jpg"
	}
	valid := false
	for _, e := range imageExts {
		valid = valid || e == ext
	}
	if !valid {
		return fmt.Errorf("unsupported image extension %q (allowed: png, jpg, jpeg, gif, webp, svg)", ext)
	}
	mime, _, _ := strings.Cut(http.DetectContentType(data), ";")
	if imageExts[mime] != ext {
		return fmt.Errorf("content does not match extension %s (detected: %s)", ext, mime)
	}
	return nil
}
