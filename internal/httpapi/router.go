// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds the read API's http.Handler: the five endpoints from
// the read API contract, a Prometheus exposition endpoint, and a static
// file fallback, all behind CORS middleware.
//
// corsOrigins is called on every request rather than captured once, so a
// config hot-reload takes effect immediately.
func NewRouter(store Store, staticDir string, corsOrigins func() []string, logger *slog.Logger) http.Handler {
	logger = logger.With("component", "httpapi")
	cache := newCollectorsCache()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/collectors", makeListCollectorsHandler(store, cache, logger))
	mux.HandleFunc("GET /api/collectors/{uuid}", makeCollectorDataHandler(store, logger))
	mux.HandleFunc("GET /api/metrics", makeGetAllMetricsHandler(store, logger))
	mux.HandleFunc("DELETE /api/metrics", makePurgeMetricsHandler(store, logger))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("/", newStaticFS(staticDir))

	return corsMiddleware(corsOrigins, mux)
}
