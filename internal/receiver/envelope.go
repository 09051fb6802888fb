// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package receiver implements the server side of the telemetry pipeline: a
// TCP listener that decodes framed envelopes, and a persistence worker that
// writes them into a relational time-series table.
package receiver

import "github.com/telemetryd/telemetryd/internal/wire"

// Envelope is a decoded (timestamp, command) pair handed from a connection
// task to the persistence worker over the bounded channel P.
type Envelope struct {
	TimestampUs uint64
	Command     wire.Command
}
