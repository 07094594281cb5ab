package assets

import (
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/starford/quire/internal/checksum"
	"github.com/starford/quire/internal/storage"
)

// Manifest maps an original output path to its revisioned path, both slash
// separated and relative to the output root.
type Manifest map[string]string

// rewriteExts are the files whose references to revisioned assets are
// rewritten.
var rewriteExts = map[string]bool{
	".html": true,
	".css":  true,
	".xml":  true,
	".json": true,
}

// RevisionedName returns name-<hash>.ext for p.
func RevisionedName(p string, data []byte) string {
	ext := path.Ext(p)
	return strings.TrimSuffix(p, ext) + "-" + checksum.Short(data) + ext
}

// Revision renames every file whose extension is in exts to its
// content-hashed name, rewrites references in HTML, CSS, XML and JSON files,
// and writes the manifest to manifestPath when it is not empty.
//
// Assets that cannot reference others (images, fonts, scripts) are hashed
// first; stylesheets are rewritten before being hashed so that a changed
// image also changes the name of every stylesheet pointing at it.
func Revision(store storage.Provider, exts []string, manifestPath string, skip storage.SkipFunc) (Manifest, error) {
	want := make(map[string]bool, len(exts))
	for _, e := range exts {
		want[strings.ToLower(e)] = true
	}

	metas, err := store.List("", skip)
	if err != nil {
		return nil, err
	}
	var leaves, rewritable, others []string
	for _, meta := range metas {
		if meta.Path == manifestPath {
			continue
		}
		ext := strings.ToLower(path.Ext(meta.Path))
		switch {
		case want[ext] && rewriteExts[ext]:
			rewritable = append(rewritable, meta.Path)
		case want[ext]:
			leaves = append(leaves, meta.Path)
		case rewriteExts[ext]:
			others = append(others, meta.Path)
		}
	}

	manifest := make(Manifest)
	for _, p := range leaves {
		if err := revise(store, p, nil, manifest); err != nil {
			return nil, err
		}
	}
	replacer := manifest.Replacer()
	for _, p := range rewritable {
		if err := revise(store, p, replacer, manifest); err != nil {
			return nil, err
		}
	}

	replacer = manifest.Replacer()
	for _, p := range others {
		if err := rewrite(store, p, replacer); err != nil {
			return nil, err
		}
	}

	if manifestPath != "" {
		data, err := json.MarshalIndent(manifest, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("assets: encode manifest: %w", err)
		}
		if err := store.Write(manifestPath, data); err != nil {
			return nil, err
		}
	}
	return manifest, nil
}

func revise(store storage.Provider, p string, r *strings.Replacer, manifest Manifest) error {
	data, err := store.Read(p)
	if err != nil {
		return err
	}
	if r != nil {
		if replaced := r.Replace(string(data)); replaced != string(data) {
			data = []byte(replaced)
			if err := store.Write(p, data); err != nil {
				return err
			}
		}
	}
	name := RevisionedName(p, data)
	if err := store.Move(p, name); err != nil {
		return err
	}
	manifest[p] = name
	return nil
}

func rewrite(store storage.Provider, p string, r *strings.Replacer) error {
	data, err := store.Read(p)
	if err != nil {
		return err
	}
	out := r.Replace(string(data))
	if out == string(data) {
		return nil
	}
	return store.Write(p, []byte(out))
}

// Replacer returns a replacer swapping every original path for its
// revisioned one. Longer paths are tried first so that "css/main.css" wins
// over "main.css".
func (m Manifest) Replacer() *strings.Replacer {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, k, m[k])
	}
	return strings.NewReplacer(pairs...)
}
