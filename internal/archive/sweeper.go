// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package archive periodically exports aged time-series rows to S3 as
// gzip-compressed NDJSON and purges them from Postgres, freeing the core
// pipeline from unbounded storage growth.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/telemetryd/telemetryd/internal/receiver"
)

// Sweeper runs one archive pass at a time: select aged rows, group by
// collector, upload each collector's batch, and delete on a successful
// upload. A batch that fails to upload is left untouched and retried on the
// next sweep — archival is at-least-once on the S3 side, at-most-once on
// the delete side.
type Sweeper struct {
	store     Store
	uploader  Uploader
	prefix    string
	retention time.Duration
	metrics   *Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// NewSweeper builds a Sweeper. retention is the age threshold past which
// rows become eligible for archival.
func NewSweeper(store Store, uploader Uploader, prefix string, retention time.Duration, metrics *Metrics, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		store:     store,
		uploader:  uploader,
		prefix:    prefix,
		retention: retention,
		metrics:   metrics,
		logger:    logger.With("component", "archive-sweeper"),
		now:       time.Now,
	}
}

// Sweep runs one pass. It never returns an error for a single collector's
// upload failure — those are logged and left for the next sweep — but does
// return an error if the initial row selection itself fails.
func (s *Sweeper) Sweep(ctx context.Context) error {
	cutoff := s.now().Add(-s.retention)
	if cutoff.UnixMicro() <= 0 {
		// No row can be older than the Unix epoch.
		s.metrics.Sweeps.WithLabelValues("empty").Inc()
		return nil
	}
	cutoffUs := uint64(cutoff.UnixMicro())

	rows, err := s.store.RowsOlderThan(ctx, cutoffUs)
	if err != nil {
		s.metrics.Sweeps.WithLabelValues("error").Inc()
		return fmt.Errorf("selecting aged rows: %w", err)
	}
	if len(rows) == 0 {
		s.metrics.Sweeps.WithLabelValues("empty").Inc()
		return nil
	}

	batches := groupByCollector(rows)
	// Unix seconds of this sweep, so a later sweep never overwrites an object
	// whose rows were already deleted.
	sweepDate := fmt.Sprintf("%d", s.now().Unix())

	anyFailed := false
	for collectorID, points := range batches {
		if err := s.archiveBatch(ctx, collectorID, points, cutoffUs, sweepDate); err != nil {
			anyFailed = true
			s.logger.Error("archiving collector batch failed, rows left in place for next sweep",
				"error", err, "collector_id", collectorID, "rows", len(points))
			continue
		}
		s.metrics.RowsArchived.Add(float64(len(points)))
	}

	if anyFailed {
		s.metrics.Sweeps.WithLabelValues("partial").Inc()
	} else {
		s.metrics.Sweeps.WithLabelValues("ok").Inc()
	}
	return nil
}

func (s *Sweeper) archiveBatch(ctx context.Context, collectorID string, points []receiver.DataPoint, cutoffUs uint64, sweepDate string) error {
	ndjson, err := marshalNDJSON(points)
	if err != nil {
		return fmt.Errorf("serializing batch: %w", err)
	}
	compressed, err := gzipNDJSON(ndjson)
	if err != nil {
		return err
	}

	key := fmt.Sprintf("%s/%s/%s.ndjson.gz", s.prefix, collectorID, sweepDate)
	if err := s.uploader.Upload(ctx, key, compressed); err != nil {
		return err
	}

	// Only delete what was actually uploaded: the same cutoff used to select
	// this batch, scoped to this collector.
	if err := s.store.DeleteCollectorRowsOlderThan(ctx, collectorID, cutoffUs); err != nil {
		return fmt.Errorf("deleting archived rows after successful upload: %w", err)
	}
	return nil
}

func marshalNDJSON(points []receiver.DataPoint) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, p := range points {
		if err := enc.Encode(p); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func groupByCollector(points []receiver.DataPoint) map[string][]receiver.DataPoint {
	out := make(map[string][]receiver.DataPoint)
	for _, p := range points {
		out[p.CollectorID] = append(out[p.CollectorID], p)
	}
	for _, rows := range out {
		sort.Slice(rows, func(i, j int) bool { return rows[i].ReceivedUs < rows[j].ReceivedUs })
	}
	return out
}
