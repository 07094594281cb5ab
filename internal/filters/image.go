package filters

import (
	"encoding/xml"
	"fmt"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "golang.org/x/image/webp" // register decoder
)

// ImageSize holds pixel dimensions.
type ImageSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ImageSize returns the dimensions of the image at a site path. Only the
// header is decoded. Errors propagate so a missing image fails the build.
func (f *Filters) ImageSize(v any) (ImageSize, error) {
	p, err := f.imagePath(toString(v))
	if err != nil {
		return ImageSize{}, err
	}

	f.mu.Lock()
	size, ok := f.images[p]
	f.mu.Unlock()
	if ok {
		return size, nil
	}

	size, err = decodeSize(p)
	if err != nil {
		return ImageSize{}, err
	}

	f.mu.Lock()
	f.images[p] = size
	f.mu.Unlock()
	return size, nil
}

// ImageWidth returns the pixel width of the image at a site path.
func (f *Filters) ImageWidth(v any) (int, error) {
	s, err := f.ImageSize(v)
	return s.Width, err
}

// ImageHeight returns the pixel height of the image at a site path.
func (f *Filters) ImageHeight(v any) (int, error) {
	s, err := f.ImageSize(v)
	return s.Height, err
}

// imagePath maps a site path ("/img/a.png", "img/a.png?v=2") to a file under
// the source directory.
func (f *Filters) imagePath(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("filters: image path is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("filters: image path %q: %w", raw, err)
	}
	if u.Scheme != "" || u.Host != "" {
		return "", fmt.Errorf("filters: image %q is not a local path", raw)
	}
	rel := u.Path
	if base := strings.TrimRight(f.opts.BaseURL, "/"); base != "" {
		if rel == base || strings.HasPrefix(rel, base+"/") {
			rel = strings.TrimPrefix(rel, base)
		}
	}
	rel = strings.TrimPrefix(rel, "/")

	root, err := filepath.Abs(f.opts.SourceDir)
	if err != nil {
		return "", fmt.Errorf("filters: resolve source dir: %w", err)
	}
	abs := filepath.Join(root, filepath.FromSlash(rel))
	if !strings.HasPrefix(abs, root+string(os.PathSeparator)) {
		return "", fmt.Errorf("filters: image path escapes site root: %s", raw)
	}
	return abs, nil
}

func decodeSize(path string) (ImageSize, error) {
	fh, err := os.Open(path)
	if err != nil {
		return ImageSize{}, fmt.Errorf("filters: image size: %w", err)
	}
	defer fh.Close()

	if strings.EqualFold(filepath.Ext(path), ".svg") {
		return svgSize(fh, path)
	}

	cfg, _, err := image.DecodeConfig(fh)
	if err != nil {
		return ImageSize{}, fmt.Errorf("filters: image size %s: %w", path, err)
	}
	return ImageSize{Width: cfg.Width, Height: cfg.Height}, nil
}

// svgSize reads width/height from the root <svg> element, falling back to
// the viewBox.
func svgSize(r io.Reader, path string) (ImageSize, error) {
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err != nil {
			return ImageSize{}, fmt.Errorf("filters: image size %s: no <svg> element: %w", path, err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if start.Name.Local != "svg" {
			return ImageSize{}, fmt.Errorf("filters: image size %s: root element is <%s>", path, start.Name.Local)
		}
		var size ImageSize
		var viewBox string
		for _, a := range start.Attr {
			switch a.Name.Local {
			case "width":
				size.Width = svgLength(a.Value)
			case "height":
				size.Height = svgLength(a.Value)
			case "viewBox":
				viewBox = a.Value
			}
		}
		if (size.Width == 0 || size.Height == 0) && viewBox != "" {
			f := strings.FieldsFunc(viewBox, func(r rune) bool { return r == ' ' || r == ',' })
			if len(f) == 4 {
				if size.Width == 0 {
					size.Width = svgLength(f[2])
				}
				if size.Height == 0 {
					size.Height = svgLength(f[3])
				}
			}
		}
		if size.Width == 0 || size.Height == 0 {
			return ImageSize{}, fmt.Errorf("filters: image size %s: svg has no usable dimensions", path)
		}
		return size, nil
	}
}

func svgLength(s string) int {
	s = strings.TrimSuffix(strings.TrimSpace(s), "px")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0
	}
	return int(v + 0.5)
}
