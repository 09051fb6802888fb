// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package archive

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the Prometheus instruments the archive sweeper updates.
type Metrics struct {
	RowsArchived prometheus.Counter
	Sweeps       *prometheus.CounterVec
}

// NewMetrics registers the archive sweep's counters against the default
// registerer, so the receiver's existing /metrics endpoint picks them up.
func NewMetrics() *Metrics {
	return &Metrics{
		RowsArchived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "archive_rows_archived_total",
			Help: "Total rows successfully uploaded to the archive and deleted from Postgres.",
		}),
		Sweeps: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "archive_sweeps_total",
			Help: "Total archive sweeps, labeled by outcome.",
		}, []string{"status"}),
	}
}
