// Package site builds the output tree from a source directory: discovery,
// rendering, generated feeds and the asset pipeline.
package site

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/starford/quire/internal/assets"
	"github.com/starford/quire/internal/filters"
	"github.com/starford/quire/internal/index"
	"github.com/starford/quire/internal/metrics"
	"github.com/starford/quire/internal/models"
	"github.com/starford/quire/internal/render"
	"github.com/starford/quire/internal/storage"
)

// Options configures a Builder.
type Options struct {
	Source      string
	Destination string
	Permalink   string
	Drafts      bool
	Future      bool
	Exclude     []string
	KeepFiles   []string

	Minify             bool
	Revision           bool
	RevisionExtensions []string
	Manifest           string

	WordsPerMinute int
	FeedLimit      int
	HighlightStyle string

	Title       string
	Description string
	URL         string
	BaseURL     string
	Author      render.Author
	Params      map[string]any

	// LiveReload is the event stream path the reload script listens on.
	// Empty leaves pages untouched.
	LiveReload string
}

// Result describes a finished build.
type Result struct {
	Posts    []*models.Page
	Pages    []*models.Page
	Static   []models.StaticFile
	Manifest assets.Manifest
	Duration time.Duration
}

// Builder renders a site. Build calls are serialised.
type Builder struct {
	opts     Options
	logger   *slog.Logger
	index    index.PostIndex
	recorder metrics.Recorder
	now      func() time.Time

	mu sync.Mutex
}

// Option configures optional Builder collaborators.
type Option func(*Builder)

// WithIndex syncs posts into idx after every successful build.
func WithIndex(idx index.PostIndex) Option {
	return func(b *Builder) { b.index = idx }
}

// WithRecorder reports stage and build timings to r.
func WithRecorder(r metrics.Recorder) Option {
	return func(b *Builder) {
		if r != nil {
			b.recorder = r
		}
	}
}

// WithClock replaces time.Now, for deciding which posts are in the future.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// New creates a Builder.
func New(opts Options, logger *slog.Logger, options ...Option) *Builder {
	if opts.Permalink == "" {
		opts.Permalink = DefaultPermalink
	}
	b := &Builder{
		opts:     opts,
		logger:   logger,
		recorder: metrics.NoopRecorder{},
		now:      time.Now,
	}
	for _, o := range options {
		o(b)
	}
	return b
}

// Build renders the whole site into the destination directory.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	start := time.Now()
	res, err := b.build(ctx)
	elapsed := time.Since(start)
	b.recorder.ObserveBuildDuration(elapsed)
	if err != nil {
		b.recorder.IncBuildOutcome(metrics.OutcomeFailed)
		return nil, err
	}
	b.recorder.IncBuildOutcome(metrics.OutcomeSuccess)
	b.recorder.SetPages(string(models.KindPost), len(res.Posts))
	b.recorder.SetPages(string(models.KindPage), len(res.Pages))
	b.recorder.SetPages(string(models.KindStatic), len(res.Static))
	res.Duration = elapsed

	b.logger.Info("site built",
		slog.Int("posts", len(res.Posts)),
		slog.Int("pages", len(res.Pages)),
		slog.Int("static", len(res.Static)),
		slog.String("duration", elapsed.Round(time.Millisecond).String()),
	)
	return res, nil
}

func (b *Builder) filters(root string) *filters.Filters {
	return filters.New(filters.Options{
		SourceDir:      root,
		SiteURL:        b.opts.URL,
		BaseURL:        b.opts.BaseURL,
		WordsPerMinute: b.opts.WordsPerMinute,
	})
}

// Filters returns the template functions a build of this site uses.
func (b *Builder) Filters() (*filters.Filters, error) {
	src, err := storage.NewFS(b.opts.Source)
	if err != nil {
		return nil, err
	}
	return b.filters(src.Root()), nil
}

// LayoutNames parses the site's layouts and returns their names, sorted.
func (b *Builder) LayoutNames() ([]string, error) {
	src, err := storage.NewFS(b.opts.Source)
	if err != nil {
		return nil, err
	}
	l, err := render.LoadLayouts(src, b.filters(src.Root()).FuncMap())
	if err != nil {
		return nil, err
	}
	names := l.Names()
	sort.Strings(names)
	return names, nil
}

type step struct {
	name string
	fn   func() error
}

func (b *Builder) stage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	b.recorder.ObserveStageDuration(name, time.Since(start))
	if err != nil {
		return fmt.Errorf("site: %s: %w", name, err)
	}
	b.logger.Debug("stage done", slog.String("stage", name), slog.String("duration", time.Since(start).String()))
	return nil
}

func (b *Builder) build(ctx context.Context) (*Result, error) {
	src, err := storage.NewFS(b.opts.Source)
	if err != nil {
		return nil, err
	}
	dest, err := storage.EnsureFS(b.opts.Destination)
	if err != nil {
		return nil, err
	}
	if src.Root() == dest.Root() {
		return nil, fmt.Errorf("site: destination %s is the source directory", dest.Root())
	}

	f := b.filters(src.Root())
	r := &run{
		b:      b,
		src:    src,
		dest:   dest,
		f:      f,
		md:     render.NewMarkdown(b.opts.HighlightStyle),
		now:    b.now(),
		output: make(map[string]string),
	}

	steps := []step{
		{"layouts", r.loadLayouts},
		{"discover", r.discover},
		{"read", r.read},
		{"clean", func() error { return dest.Clean(b.opts.KeepFiles) }},
		{"render", r.render},
		{"static", r.copyStatic},
		{"generate", r.generate},
	}
	if b.opts.Minify {
		steps = append(steps, step{"minify", r.minify})
	}
	if b.opts.Revision {
		steps = append(steps, step{"revision", r.revision})
	}
	if b.index != nil {
		steps = append(steps, step{"index", func() error { return index.Sync(b.index, r.posts, b.logger) }})
	}

	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := b.stage(s.name, s.fn); err != nil {
			return nil, err
		}
	}

	return &Result{
		Posts:    r.posts,
		Pages:    r.pages,
		Static:   r.static,
		Manifest: r.manifest,
	}, nil
}

// siteData assembles the .Site value shared by every template.
func (r *run) siteData() *render.Site {
	tags := make(map[string][]*models.Page)
	for _, p := range r.posts {
		for _, t := range p.Tags {
			tags[t] = append(tags[t], p)
		}
	}
	names := make([]string, 0, len(tags))
	for t := range tags {
		names = append(names, t)
	}
	sort.Slice(names, func(i, j int) bool {
		return strings.ToLower(names[i]) < strings.ToLower(names[j])
	})
	o := r.b.opts
	return &render.Site{
		Title:       o.Title,
		Description: o.Description,
		URL:         o.URL,
		BaseURL:     o.BaseURL,
		Author:      o.Author,
		Params:      o.Params,
		Posts:       r.posts,
		Pages:       r.pages,
		Tags:        tags,
		TagNames:    names,
		Time:        r.now,
	}
}
