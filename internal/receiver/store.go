// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package receiver

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/telemetryd/telemetryd/internal/wire"
)

// schemaSQL is a convenience for local/dev use only, matching:
//
//	timeseries(collector_id TEXT, received TEXT, total_memory INT8,
//	            used_memory INT8, cpus INT4, cpu_usage REAL, avg_cpu_usage REAL)
//
// `received` stores timestamp_us as decimal text, not an integer column. The
// column can hold the wire format's full 128-bit range, but this package
// reads and writes only values that fit in a uint64 (the codec carries the
// low 64 bits of the timestamp field). This is additive DDL only
// — it never alters or drops an existing table.
const schemaSQL = `CREATE TABLE IF NOT EXISTS timeseries (
	collector_id TEXT NOT NULL,
	received TEXT NOT NULL,
	total_memory BIGINT,
	used_memory BIGINT,
	cpus INTEGER,
	cpu_usage REAL,
	avg_cpu_usage REAL
)`

const insertSQL = `INSERT INTO timeseries
	(collector_id, received, total_memory, used_memory, cpus, cpu_usage, avg_cpu_usage)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

// DataPoint is one persisted row.
type DataPoint struct {
	CollectorID    string  `json:"collector_id"`
	ReceivedUs     uint64  `json:"received_us"`
	TotalMemoryKiB uint64  `json:"total_memory"`
	UsedMemoryKiB  uint64  `json:"used_memory"`
	CPUCount       uint32  `json:"cpus"`
	CPUUsagePct    float32 `json:"cpu_usage"`
	AvgCPUUsagePct float32 `json:"avg_cpu_usage"`
}

// CollectorSummary is one row of the collector list view.
type CollectorSummary struct {
	CollectorID string
	LastSeenUs  uint64
}

// Store is the single writer of the time-series table. In the core
// pipeline, only the persistence worker's Run loop calls insert; the read
// API calls the query methods directly since pgxpool is safe for concurrent
// use by design.
type Store struct {
	pool    *pgxpool.Pool
	logger  *slog.Logger
	metrics *Metrics
}

// NewStore connects to databaseURL and ensures the timeseries table exists.
func NewStore(ctx context.Context, databaseURL string, logger *slog.Logger, metrics *Metrics) (*Store, error) {
	pool, err := pgxpool.Connect(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring timeseries table: %w", err)
	}
	return &Store{pool: pool, logger: logger.With("component", "store"), metrics: metrics}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Run drains queue until it closes or ctx is cancelled, persisting
// SubmitData envelopes and logging-and-continuing on Exit.
func (s *Store) Run(ctx context.Context, queue <-chan Envelope) {
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-queue:
			if !ok {
				return
			}
			s.handle(ctx, env)
		}
	}
}

func (s *Store) handle(ctx context.Context, env Envelope) {
	switch cmd := env.Command.(type) {
	case wire.SubmitData:
		s.insert(ctx, env.TimestampUs, cmd)
	case wire.Exit:
		// A single collector finishing must not stop the receiver: log and
		// keep serving every other collector.
		s.logger.Info("collector exited", "collector_id", cmd.CollectorID.String())
	default:
		s.logger.Warn("unrecognized command variant, dropping", "type", fmt.Sprintf("%T", cmd))
	}
}

// insert writes one row. Failures are logged and the sample is dropped —
// the time series is lossy by design; it never retries.
func (s *Store) insert(ctx context.Context, timestampUs uint64, cmd wire.SubmitData) {
	received := strconv.FormatUint(timestampUs, 10)
	_, err := s.pool.Exec(ctx, insertSQL,
		cmd.CollectorID.String(),
		received,
		int64(cmd.Metrics.TotalMemoryKiB),
		int64(cmd.Metrics.UsedMemoryKiB),
		int32(cmd.Metrics.CPUCount),
		cmd.Metrics.CPUUsagePct,
		cmd.Metrics.AvgCPUUsagePct,
	)
	if err != nil {
		s.logger.Error("insert failed, dropping sample", "error", err, "collector_id", cmd.CollectorID.String())
		if s.metrics != nil {
			s.metrics.InsertErrors.Inc()
		}
		return
	}
	if s.metrics != nil {
		s.metrics.Inserts.Inc()
	}
}

// ListCollectors returns the collector summary view, sorted ascending by
// last_seen.
func (s *Store) ListCollectors(ctx context.Context) ([]CollectorSummary, error) {
	rows, err := s.pool.Query(ctx, `SELECT collector_id, MAX(received::numeric) FROM timeseries GROUP BY collector_id`)
	if err != nil {
		return nil, fmt.Errorf("listing collectors: %w", err)
	}
	defer rows.Close()

	var out []CollectorSummary
	for rows.Next() {
		var id string
		var lastSeen float64
		if err := rows.Scan(&id, &lastSeen); err != nil {
			return nil, fmt.Errorf("scanning collector row: %w", err)
		}
		out = append(out, CollectorSummary{CollectorID: id, LastSeenUs: uint64(lastSeen)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].LastSeenUs < out[j].LastSeenUs })
	return out, nil
}

// DataPointsForCollector returns every row for collectorID ordered by
// received_us ascending.
func (s *Store) DataPointsForCollector(ctx context.Context, collectorID string) ([]DataPoint, error) {
	return s.queryDataPoints(ctx,
		`SELECT collector_id, received, total_memory, used_memory, cpus, cpu_usage, avg_cpu_usage
		 FROM timeseries WHERE collector_id = $1 ORDER BY received::numeric ASC`, collectorID)
}

// AllDataPoints returns every row, ordered by received_us ascending.
func (s *Store) AllDataPoints(ctx context.Context) ([]DataPoint, error) {
	return s.queryDataPoints(ctx,
		`SELECT collector_id, received, total_memory, used_memory, cpus, cpu_usage, avg_cpu_usage
		 FROM timeseries ORDER BY received::numeric ASC`)
}

func (s *Store) queryDataPoints(ctx context.Context, sql string, args ...any) ([]DataPoint, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("querying data points: %w", err)
	}
	defer rows.Close()

	points := make([]DataPoint, 0)
	for rows.Next() {
		var (
			collectorID  string
			receivedText string
			totalMemory  int64
			usedMemory   int64
			cpus         int32
			cpuUsage     float32
			avgCPUUsage  float32
		)
		if err := rows.Scan(&collectorID, &receivedText, &totalMemory, &usedMemory, &cpus, &cpuUsage, &avgCPUUsage); err != nil {
			return nil, fmt.Errorf("scanning data point: %w", err)
		}
		receivedUs, err := strconv.ParseUint(receivedText, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing received timestamp %q: %w", receivedText, err)
		}
		points = append(points, DataPoint{
			CollectorID:    collectorID,
			ReceivedUs:     receivedUs,
			TotalMemoryKiB: uint64(totalMemory),
			UsedMemoryKiB:  uint64(usedMemory),
			CPUCount:       uint32(cpus),
			CPUUsagePct:    cpuUsage,
			AvgCPUUsagePct: avgCPUUsage,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return points, nil
}

// PurgeAll deletes every row from the time-series table.
func (s *Store) PurgeAll(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM timeseries`); err != nil {
		return fmt.Errorf("purging timeseries: %w", err)
	}
	return nil
}

// RowsOlderThan returns every row with received < cutoffUs, across all
// collectors, for the archive sweeper to group and export.
func (s *Store) RowsOlderThan(ctx context.Context, cutoffUs uint64) ([]DataPoint, error) {
	cutoff := strconv.FormatUint(cutoffUs, 10)
	return s.queryDataPoints(ctx,
		`SELECT collector_id, received, total_memory, used_memory, cpus, cpu_usage, avg_cpu_usage
		 FROM timeseries WHERE received::numeric < $1::numeric ORDER BY received::numeric ASC`, cutoff)
}

// DeleteCollectorRowsOlderThan removes one collector's rows with
// received < cutoffUs. Called only after that exact batch has been
// durably written to the archive's backing store.
func (s *Store) DeleteCollectorRowsOlderThan(ctx context.Context, collectorID string, cutoffUs uint64) error {
	cutoff := strconv.FormatUint(cutoffUs, 10)
	_, err := s.pool.Exec(ctx,
		`DELETE FROM timeseries WHERE collector_id = $1 AND received::numeric < $2::numeric`,
		collectorID, cutoff)
	if err != nil {
		return fmt.Errorf("deleting archived rows for %s: %w", collectorID, err)
	}
	return nil
}
