// Package api implements the dev server's HTTP surface using chi: the post
// API, live reload events, metrics and the built site itself.
package api

import "net/http"

// NoCache stops browsers from caching responses, so a reload after a
// rebuild always fetches fresh pages and assets.
func NoCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.Header().Set("Expires", "0")
		next.ServeHTTP(w, r)
	})
}
