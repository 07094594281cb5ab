package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// EventsPath is where browsers subscribe to live reload events.
const EventsPath = "/__quire/events"

// RouterConfig holds what the dev server mounts.
type RouterConfig struct {
	// Posts backs /api; nil leaves the API unmounted.
	Posts Posts
	// Events is the live reload stream; nil disables it.
	Events http.Handler
	// Metrics serves Prometheus metrics; nil disables /metrics.
	Metrics http.Handler
	// Site serves everything no other route claims.
	Site http.Handler
}

// NewRouter creates a chi router with the health checks, the post API, the
// event stream, metrics and the site.
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	// Health check endpoints.
	r.Get("/health/live", health)
	r.Get("/health/ready", health)

	if cfg.Posts != nil {
		h := NewHandler(cfg.Posts)
		r.Route("/api", func(r chi.Router) {
			r.Get("/posts", h.ListPosts)
			r.Get("/posts/*", h.GetPost)
			r.Get("/search", h.Search)
			r.Get("/tags", h.Tags)
		})
	}

	if cfg.Events != nil {
		r.Get(EventsPath, cfg.Events.ServeHTTP)
	}
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	if cfg.Site != nil {
		site := NoCache(cfg.Site)
		r.NotFound(site.ServeHTTP)
		r.MethodNotAllowed(site.ServeHTTP)
	}
	return r
}

func health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
