// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package httpapi exposes the receiver's persisted time series over HTTP:
// a small read API plus a Prometheus exposition endpoint and a static file
// fallback for the operator dashboard.
package httpapi

import (
	"context"

	"github.com/telemetryd/telemetryd/internal/receiver"
)

// Store is the subset of *receiver.Store the read API depends on. Declaring
// it here (rather than taking *receiver.Store directly) lets handler tests
// run against an in-memory fake instead of a live Postgres connection.
type Store interface {
	ListCollectors(ctx context.Context) ([]receiver.CollectorSummary, error)
	DataPointsForCollector(ctx context.Context, collectorID string) ([]receiver.DataPoint, error)
	AllDataPoints(ctx context.Context) ([]receiver.DataPoint, error)
	PurgeAll(ctx context.Context) error
}
