// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package archive

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/telemetryd/telemetryd/internal/receiver"
)

var errUploadFailed = errors.New("upload failed")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeStore struct {
	mu     sync.Mutex
	rows   []receiver.DataPoint
	deletes []struct {
		collectorID string
		cutoffUs    uint64
	}
}

func (f *fakeStore) RowsOlderThan(ctx context.Context, cutoffUs uint64) ([]receiver.DataPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []receiver.DataPoint
	for _, r := range f.rows {
		if r.ReceivedUs < cutoffUs {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteCollectorRowsOlderThan(ctx context.Context, collectorID string, cutoffUs uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, struct {
		collectorID string
		cutoffUs    uint64
	}{collectorID, cutoffUs})

	kept := f.rows[:0]
	for _, r := range f.rows {
		if r.CollectorID == collectorID && r.ReceivedUs < cutoffUs {
			continue
		}
		kept = append(kept, r)
	}
	f.rows = kept
	return nil
}

type fakeUploader struct {
	mu      sync.Mutex
	uploads int
	fail    bool
	keys    []string
}

func (f *fakeUploader) Upload(ctx context.Context, key string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errUploadFailed
	}
	f.uploads++
	f.keys = append(f.keys, key)
	return nil
}

// testMetrics is shared by every test: NewMetrics registers against the
// default registerer, and a second registration of the same names panics.
var testMetrics = NewMetrics()

func newSweeperForTest(store *fakeStore, uploader *fakeUploader) *Sweeper {
	s := NewSweeper(store, uploader, "telemetryd", time.Hour, testMetrics, testLogger())
	s.now = func() time.Time { return time.UnixMicro(10_000_000) }
	return s
}

func TestSweeper_ArchivesAndDeletesAgedRowsOnly(t *testing.T) {
	store := &fakeStore{rows: []receiver.DataPoint{
		{CollectorID: "a", ReceivedUs: 1_000_000}, // aged once now is pushed forward below
		{CollectorID: "a", ReceivedUs: 2_000_000},
		{CollectorID: "b", ReceivedUs: 3_000_000},
		{CollectorID: "a", ReceivedUs: 5_000_000_000}, // newer than the cutoff: must stay
	}}
	uploader := &fakeUploader{}
	sweeper := newSweeperForTest(store, uploader)
	// Retention of an hour relative to now=10s means nothing is "aged" unless
	// now is pushed forward; override now to make the first three rows
	// eligible (cutoff = 10s + 2h - 1h = 3610s).
	sweeper.now = func() time.Time { return time.UnixMicro(10_000_000).Add(2 * time.Hour) }

	if err := sweeper.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	if uploader.uploads != 2 { // one batch per collector: a, b
		t.Errorf("uploads = %d, want 2", uploader.uploads)
	}
	if len(store.rows) != 1 || store.rows[0].ReceivedUs != 5_000_000_000 {
		t.Errorf("rows remaining after sweep = %+v, want only the row newer than the cutoff", store.rows)
	}
}

func TestSweeper_FailedUploadLeavesRowsInPlace(t *testing.T) {
	store := &fakeStore{rows: []receiver.DataPoint{
		{CollectorID: "a", ReceivedUs: 1_000_000},
	}}
	uploader := &fakeUploader{fail: true}
	sweeper := newSweeperForTest(store, uploader)
	sweeper.now = func() time.Time { return time.UnixMicro(1_000_000).Add(2 * time.Hour) }

	if err := sweeper.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep should not bubble up a single collector's upload failure: %v", err)
	}
	if len(store.rows) != 1 {
		t.Errorf("rows remaining = %d, want 1 (upload failed, nothing should be deleted)", len(store.rows))
	}
	if uploader.uploads != 0 {
		t.Errorf("uploads = %d, want 0", uploader.uploads)
	}
}

func TestSweeper_RunningTwiceWithNoNewDataUploadsNothingTheSecondTime(t *testing.T) {
	store := &fakeStore{rows: []receiver.DataPoint{
		{CollectorID: "a", ReceivedUs: 1_000_000},
	}}
	uploader := &fakeUploader{}
	sweeper := newSweeperForTest(store, uploader)
	sweeper.now = func() time.Time { return time.UnixMicro(1_000_000).Add(2 * time.Hour) }

	if err := sweeper.Sweep(context.Background()); err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	firstUploads := uploader.uploads

	if err := sweeper.Sweep(context.Background()); err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if uploader.uploads != firstUploads {
		t.Errorf("second sweep uploaded %d more objects, want 0 (idempotent)", uploader.uploads-firstUploads)
	}
}
