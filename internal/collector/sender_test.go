// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package collector

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/telemetryd/telemetryd/internal/wire"
)

func TestSender_FailureCutoffAfterThreeConsecutiveErrors(t *testing.T) {
	id, _ := wire.NewCollectorID()
	queue := make(chan wire.Command, 8)
	for i := 0; i < 8; i++ {
		queue <- wire.SubmitData{CollectorID: id}
	}
	close(queue)

	var dialAttempts atomic.Int32
	var sampleStopped atomic.Bool

	sender := NewSender("127.0.0.1:0", id, queue, 0, func() { sampleStopped.Store(true) }, testLogger())
	sender.dial = func(network, address string) (net.Conn, error) {
		dialAttempts.Add(1)
		return nil, errors.New("connection refused")
	}

	err := sender.Run(context.Background())
	if !errors.Is(err, ErrSendAborted) {
		t.Fatalf("Run err = %v, want ErrSendAborted", err)
	}
	if got := dialAttempts.Load(); got != MaxConsecutiveErrors {
		t.Errorf("dial attempted %d times, want exactly %d", got, MaxConsecutiveErrors)
	}
	if !sampleStopped.Load() {
		t.Error("stopSampler was never invoked after the breaker tripped")
	}
}

func TestSender_SuccessfulSendResetsFailureCounter(t *testing.T) {
	id, _ := wire.NewCollectorID()
	queue := make(chan wire.Command, 4)
	close(queue)

	sender := NewSender("127.0.0.1:0", id, queue, 0, nil, testLogger())
	var dialErr error
	sender.dial = func(network, address string) (net.Conn, error) {
		if dialErr != nil {
			return nil, dialErr
		}
		return &stubConn{}, nil
	}

	// Two failures, then a success: the breaker must not trip since it
	// never reaches MaxConsecutiveErrors in a row.
	dialErr = errors.New("refused")
	if err := sender.sendOne(wire.SubmitData{CollectorID: id}); err == nil {
		t.Fatal("expected failure on first attempt")
	}
	if err := sender.sendOne(wire.SubmitData{CollectorID: id}); err == nil {
		t.Fatal("expected failure on second attempt")
	}
	dialErr = nil
	if err := sender.sendOne(wire.SubmitData{CollectorID: id}); err != nil {
		t.Fatalf("expected success on third attempt, got %v", err)
	}
	if err := sender.sendOne(wire.SubmitData{CollectorID: id}); err != nil {
		t.Fatalf("breaker should not be tripped after a reset by success, got %v", err)
	}
}

func TestSender_MaxMessagesSendsFinalExit(t *testing.T) {
	id, _ := wire.NewCollectorID()
	queue := make(chan wire.Command, 4)
	for i := 0; i < 2; i++ {
		queue <- wire.SubmitData{CollectorID: id}
	}
	close(queue)

	var lastFrameWasExit atomic.Bool
	sender := NewSender("127.0.0.1:0", id, queue, 2, nil, testLogger())
	sender.dial = func(network, address string) (net.Conn, error) {
		return &stubConn{onWrite: func(p []byte) {
			_, cmd, err := wire.Decode(p)
			if err == nil {
				if _, ok := cmd.(wire.Exit); ok {
					lastFrameWasExit.Store(true)
				}
			}
		}}, nil
	}

	if err := sender.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !lastFrameWasExit.Load() {
		t.Error("expected a final Exit frame after reaching max messages")
	}
}

// stubConn is a minimal net.Conn for success-path tests.
type stubConn struct {
	net.Conn
	onWrite func([]byte)
}

func (c *stubConn) Write(p []byte) (int, error) {
	if c.onWrite != nil {
		c.onWrite(p)
	}
	return len(p), nil
}
func (c *stubConn) Close() error                        { return nil }
func (c *stubConn) SetWriteDeadline(time.Time) error    { return nil }
