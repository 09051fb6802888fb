// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package receiver

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/telemetryd/telemetryd/internal/wire"
)

// Metrics holds the Prometheus instruments the listener and persistence
// worker update as frames flow through the receiver. They are registered
// against the default registerer so the HTTP read API's /metrics handler
// picks them up without additional wiring.
type Metrics struct {
	ConnectionsAccepted   prometheus.Counter
	FramesDecoded         prometheus.Counter
	DecodeErrors          *prometheus.CounterVec
	Inserts               prometheus.Counter
	InsertErrors          prometheus.Counter
	PersistenceQueueDepth prometheus.GaugeFunc
}

// NewMetrics registers the receiver's counters and gauges. queueDepth is
// polled on every /metrics scrape to report the persistence channel's
// current backlog.
func NewMetrics(queueDepth func() int) *Metrics {
	return &Metrics{
		ConnectionsAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "receiver_connections_accepted_total",
			Help: "TCP connections accepted by the receiver listener.",
		}),
		FramesDecoded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "receiver_frames_decoded_total",
			Help: "Envelopes successfully decoded.",
		}),
		DecodeErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "receiver_frames_decode_errors_total",
			Help: "Envelopes rejected during decode, labeled by failure kind.",
		}, []string{"kind"}),
		Inserts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "receiver_inserts_total",
			Help: "Rows successfully inserted into the time-series table.",
		}),
		InsertErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "receiver_insert_errors_total",
			Help: "Inserts that failed and were dropped.",
		}),
		PersistenceQueueDepth: promauto.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "receiver_persistence_queue_depth",
			Help: "Current number of envelopes buffered for the persistence worker.",
		}, func() float64 { return float64(queueDepth()) }),
	}
}

// decodeErrorKind maps a wire decode error to a stable Prometheus label.
func decodeErrorKind(err error) string {
	switch {
	case errors.Is(err, wire.ErrUnsupportedVersion):
		return "unsupported_version"
	case errors.Is(err, wire.ErrTruncated):
		return "truncated"
	case errors.Is(err, wire.ErrBadCRC):
		return "bad_crc"
	case errors.Is(err, wire.ErrBadPayload):
		return "bad_payload"
	default:
		return "unknown"
	}
}
