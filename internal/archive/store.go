// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package archive

import (
	"context"

	"github.com/telemetryd/telemetryd/internal/receiver"
)

// Store is the subset of *receiver.Store the sweeper needs: find aged rows,
// and delete exactly the rows that were durably archived.
type Store interface {
	RowsOlderThan(ctx context.Context, cutoffUs uint64) ([]receiver.DataPoint, error)
	DeleteCollectorRowsOlderThan(ctx context.Context, collectorID string, cutoffUs uint64) error
}
