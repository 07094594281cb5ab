// Package internal wires configuration, logging and the site packages into
// the commands quire runs.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/starford/quire/internal/api"
	"github.com/starford/quire/internal/certs"
	"github.com/starford/quire/internal/deploy"
	"github.com/starford/quire/internal/index"
	"github.com/starford/quire/internal/lint"
	"github.com/starford/quire/internal/mcpserver"
	"github.com/starford/quire/internal/metrics"
	"github.com/starford/quire/internal/postservice"
	"github.com/starford/quire/internal/render"
	"github.com/starford/quire/internal/site"
	"github.com/starford/quire/internal/sse"
	"github.com/starford/quire/internal/storage"
)

// reloadThrottle is the minimum gap between two reload events.
const reloadThrottle = 250 * time.Millisecond

func (a *application) builder(liveReload string, opts ...site.Option) *site.Builder {
	c := a.config
	return site.New(site.Options{
		Source:             c.Build.Source,
		Destination:        c.Build.Destination,
		Permalink:          c.Build.Permalink,
		Drafts:             c.Build.Drafts,
		Future:             c.Build.Future,
		Exclude:            c.Build.Exclude,
		KeepFiles:          c.Build.KeepFiles,
		Minify:             c.Build.Minify,
		Revision:           c.Build.Revision.Enabled,
		RevisionExtensions: c.Build.Revision.Extensions,
		Manifest:           c.Build.Revision.Manifest,
		WordsPerMinute:     c.Build.WordsPerMinute,
		FeedLimit:          c.Build.FeedLimit,
		HighlightStyle:     c.Build.HighlightStyle,
		Title:              c.Site.Title,
		Description:        c.Site.Description,
		URL:                c.Site.URL,
		BaseURL:            c.Site.BaseURL,
		Author:             render.Author(c.Site.Author),
		Params:             c.Site.Params,
		LiveReload:         liveReload,
	}, a.logger, opts...)
}

func (a *application) openIndex() (*index.DB, error) {
	db, err := index.Open(a.config.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}
	return db, nil
}

// Build renders the site once and refreshes the post index.
func Build(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	db, err := app.openIndex()
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = app.builder("", site.WithIndex(db)).Build(ctx)
	return err
}

// Serve builds the site, then serves it with live reload until ctx is
// cancelled or the process receives SIGINT/SIGTERM.
func Serve(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("source", cfg.Build.Source),
		slog.String("destination", cfg.Build.Destination),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	src, err := storage.NewFS(cfg.Build.Source)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	db, err := app.openIndex()
	if err != nil {
		return err
	}
	defer db.Close()

	registry := prometheus.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(registry)

	broker := sse.NewBroker(reloadThrottle, sse.WithClientObserver(recorder.SetLiveReloadClients))
	defer broker.Close()

	b := app.builder(api.EventsPath, site.WithIndex(db), site.WithRecorder(recorder))
	if _, err := b.Build(ctx); err != nil {
		// Keep serving so the fix is picked up by the watcher.
		logger.Error("initial build failed", slog.String("error", err.Error()))
	}
	f, err := b.Filters()
	if err != nil {
		return err
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Mount("/", api.NewRouter(api.RouterConfig{
		Posts:   postservice.NewService(src, db, f),
		Events:  broker,
		Metrics: recorder.Handler(),
		Site:    api.NewSiteHandler(cfg.Build.Destination, cfg.Site.BaseURL),
	}))

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Rebuild on source changes and tell browsers.
	g.Go(func() error {
		return b.Watch(gCtx, site.DefaultDebounce, func(_ *site.Result, changed []string, err error) {
			if err != nil {
				broker.BuildFailed(err)
				return
			}
			broker.Reload(changed...)
		})
	})

	g.Go(func() error {
		tls := cfg.App.HTTP.TLS
		logger.Info("Starting HTTP server",
			slog.String("address", cfg.App.HTTP.Address()),
			slog.Bool("tls", tls.Enabled))
		var err error
		if tls.Enabled {
			err = httpServer.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// Close the event streams first; Shutdown waits for open handlers.
		broker.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return context.Canceled
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// DeployOptions tunes Deploy.
type DeployOptions struct {
	// SkipBuild publishes the destination directory as it is.
	SkipBuild bool
	// Message overrides the configured commit message.
	Message string
}

// Deploy builds the site and pushes it to the configured branch.
func Deploy(ctx context.Context, do DeployOptions, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	if cfg.Deploy.Remote == "" {
		return deploy.ErrNoRemote
	}
	if !do.SkipBuild {
		if err := Build(ctx, WithConfig(cfg), WithLogger(app.logger)); err != nil {
			return err
		}
	}

	msg := cfg.Deploy.Message
	if do.Message != "" {
		msg = do.Message
	}
	res, err := deploy.New(app.logger).Publish(ctx, deploy.Options{
		Dir:         cfg.Build.Destination,
		Remote:      cfg.Deploy.Remote,
		Branch:      cfg.Deploy.Branch,
		Token:       cfg.Deploy.Token,
		CNAME:       cfg.Deploy.CNAME,
		AuthorName:  cfg.Deploy.AuthorName,
		AuthorEmail: cfg.Deploy.AuthorEmail,
		Message:     msg,
	})
	if err != nil {
		return err
	}
	if !res.Pushed {
		fmt.Fprintf(app.out, "%s is up to date\n", cfg.Deploy.Branch)
		return nil
	}
	fmt.Fprintf(app.out, "published %d files to %s (%s)\n", res.Files, cfg.Deploy.Branch, res.Commit)
	return nil
}

// LintOptions tunes Lint.
type LintOptions struct {
	// Format is "text" or "json".
	Format string
	// Output also builds the site and checks the rendered HTML.
	Output bool
}

// Lint checks the source tree (and optionally the built site), writes the
// report and returns an error wrapping apperr.ErrLintFailed when any
// error-level issue was found.
func Lint(ctx context.Context, lo LintOptions, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	formatter, err := lint.NewFormatter(lo.Format)
	if err != nil {
		return err
	}
	cfg := app.config

	b := app.builder("")
	src, err := storage.NewFS(cfg.Build.Source)
	if err != nil {
		return err
	}
	layouts, err := b.LayoutNames()
	if err != nil {
		return err
	}
	res, err := lint.Source(src, lint.SourceOptions{Layouts: layouts, Skip: b.Skip(src.Root())})
	if err != nil {
		return err
	}

	if lo.Output {
		if _, err := b.Build(ctx); err != nil {
			return err
		}
		dest, err := storage.NewFS(cfg.Build.Destination)
		if err != nil {
			return err
		}
		out, err := lint.Output(dest, lint.OutputOptions{BaseURL: cfg.Site.BaseURL})
		if err != nil {
			return err
		}
		res.Merge(out)
		res.Sort()
	}

	if err := formatter.Format(app.out, res); err != nil {
		return err
	}
	return res.Err()
}

// CertOptions tunes Cert.
type CertOptions struct {
	Hosts    []string
	Validity time.Duration
	Force    bool
}

// Cert writes a self-signed certificate to the configured TLS paths.
func Cert(co CertOptions, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	tls := app.config.App.HTTP.TLS
	if err := certs.Generate(certs.Options{
		CertFile: tls.CertFile,
		KeyFile:  tls.KeyFile,
		Hosts:    co.Hosts,
		Validity: co.Validity,
		Force:    co.Force,
	}); err != nil {
		return err
	}
	fmt.Fprintf(app.out, "wrote %s and %s\n", tls.CertFile, tls.KeyFile)
	return nil
}

// NewPost scaffolds a post in the source tree and prints its path.
func NewPost(ctx context.Context, np postservice.NewPost, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	src, err := storage.NewFS(app.config.Build.Source)
	if err != nil {
		return err
	}
	f, err := app.builder("").Filters()
	if err != nil {
		return err
	}
	p, err := postservice.NewService(src, nil, f).CreatePost(ctx, np)
	if err != nil {
		return err
	}
	fmt.Fprintln(app.out, p)
	return nil
}

// MCP refreshes the post index with a build, then serves the MCP tools on
// stdin/stdout. Logs must not go to stdout; pass WithLogger.
func MCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	src, err := storage.NewFS(app.config.Build.Source)
	if err != nil {
		return err
	}
	db, err := app.openIndex()
	if err != nil {
		return err
	}
	defer db.Close()

	b := app.builder("", site.WithIndex(db))
	if _, err := b.Build(ctx); err != nil {
		app.logger.Warn("build failed, serving the existing index", slog.String("error", err.Error()))
	}
	f, err := b.Filters()
	if err != nil {
		return err
	}
	return mcpserver.New(postservice.NewService(src, db, f), src, app.version).ServeStdio()
}
