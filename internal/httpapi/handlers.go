// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/telemetryd/telemetryd/internal/receiver"
)

// collectorView is the JSON shape for one row of GET /api/collectors.
type collectorView struct {
	CollectorID string `json:"collector_id"`
	LastSeen    string `json:"last_seen"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "encoding response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

func formatLastSeen(us uint64) string {
	return time.UnixMicro(int64(us)).Local().Format("15:04:05.000000")
}

func makeListCollectorsHandler(store Store, cache *collectorsCache, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if body, ok := cache.get(); ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write(body)
			return
		}

		summaries, err := store.ListCollectors(r.Context())
		if err != nil {
			logger.Error("listing collectors failed", "error", err)
			http.Error(w, "listing collectors", http.StatusInternalServerError)
			return
		}

		views := make([]collectorView, 0, len(summaries))
		for _, s := range summaries {
			views = append(views, collectorView{
				CollectorID: s.CollectorID,
				LastSeen:    formatLastSeen(s.LastSeenUs),
			})
		}

		body, err := json.Marshal(views)
		if err != nil {
			http.Error(w, "encoding response", http.StatusInternalServerError)
			return
		}
		cache.set(body)

		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}
}

func makeCollectorDataHandler(store Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("uuid")
		if id == "" {
			http.Error(w, "missing collector id", http.StatusBadRequest)
			return
		}

		points, err := store.DataPointsForCollector(r.Context(), id)
		if err != nil {
			logger.Error("querying collector data failed", "error", err, "collector_id", id)
			http.Error(w, "querying data points", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, nonNil(points))
	}
}

func makeGetAllMetricsHandler(store Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		points, err := store.AllDataPoints(r.Context())
		if err != nil {
			logger.Error("querying all data points failed", "error", err)
			http.Error(w, "querying data points", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, nonNil(points))
	}
}

func makePurgeMetricsHandler(store Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.PurgeAll(r.Context()); err != nil {
			logger.Error("purging data points failed", "error", err)
			http.Error(w, "purging data points", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func nonNil(points []receiver.DataPoint) []receiver.DataPoint {
	if points == nil {
		return []receiver.DataPoint{}
	}
	return points
}
