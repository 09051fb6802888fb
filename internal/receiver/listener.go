// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package receiver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/telemetryd/telemetryd/internal/wire"
)

// acceptBackoff is the fixed pause after an Accept error before retrying.
// Unlike a typical escalating backoff, the contract calls for a flat delay:
// a slow-to-clear accept failure should not make the listener sleep longer
// and longer while connections queue up.
const acceptBackoff = 100 * time.Millisecond

// readChunkSize is the read buffer size for each connection. The protocol
// is designed around one envelope per chunk (the sender opens a fresh
// connection per frame); a Truncated decode just waits for more bytes.
const readChunkSize = 1024

// Listener accepts TCP connections and decodes framed envelopes from them,
// forwarding decoded (timestamp, command) pairs to a bounded persistence
// channel.
type Listener struct {
	addr    string
	persist chan<- Envelope
	metrics *Metrics
	logger  *slog.Logger
}

// NewListener builds a Listener that accepts on addr and forwards decoded
// envelopes to persist.
func NewListener(addr string, persist chan<- Envelope, metrics *Metrics, logger *slog.Logger) *Listener {
	return &Listener{
		addr:    addr,
		persist: persist,
		metrics: metrics,
		logger:  logger.With("component", "listener"),
	}
}

// Run listens on addr until ctx is cancelled, accepting connections and
// spawning a decode goroutine for each. It returns nil on a clean,
// context-triggered shutdown.
func (l *Listener) Run(ctx context.Context) error {
	return l.RunWithListener(ctx, nil)
}

// RunWithListener is Run, but accepts a pre-built listener (for tests that
// need to bind an ephemeral port before the caller knows it).
func (l *Listener) RunWithListener(ctx context.Context, ln net.Listener) error {
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", l.addr)
		if err != nil {
			return fmt.Errorf("listening on %s: %w", l.addr, err)
		}
	}
	defer ln.Close()

	l.logger.Info("listening", "address", ln.Addr().String())

	go func() {
		<-ctx.Done()
		l.logger.Info("shutdown signal received, closing listener")
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				l.logger.Info("listener stopped")
				return nil
			default:
				l.logger.Error("accept failed, backing off", "error", err)
				time.Sleep(acceptBackoff)
				continue
			}
		}

		if l.metrics != nil {
			l.metrics.ConnectionsAccepted.Inc()
		}
		go l.handleConn(ctx, conn)
	}
}

func (l *Listener) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	buf := make([]byte, 0, readChunkSize*2)
	chunk := make([]byte, readChunkSize)

	for {
		n, err := conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			if !l.drainFrames(ctx, &buf) {
				return
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				l.logger.Debug("transient read timeout, continuing", "error", err)
				continue
			}
			l.logger.Debug("connection closed", "error", err)
			return
		}
	}
}

// drainFrames decodes as many complete frames as are currently buffered,
// forwarding each to the persistence channel. It returns false if the
// caller should stop reading from this connection (context cancelled).
func (l *Listener) drainFrames(ctx context.Context, buf *[]byte) bool {
	for {
		ts, cmd, err := wire.Decode(*buf)
		if err == nil {
			frameLen, _ := wire.FrameLen(*buf)
			*buf = (*buf)[frameLen:]
			if l.metrics != nil {
				l.metrics.FramesDecoded.Inc()
			}
			if !l.forward(ctx, ts, cmd) {
				return false
			}
			continue
		}

		if errors.Is(err, wire.ErrTruncated) {
			// Not enough bytes yet for even a full frame; wait for more.
			return true
		}

		// Header was parseable enough to know the frame's length, but the
		// frame itself is malformed. Wait until all of it has arrived, then
		// log, drop exactly that frame, and keep the connection alive.
		frameLen, ok := wire.FrameLen(*buf)
		if !ok || frameLen > len(*buf) {
			return true
		}
		l.logger.Warn("decode error, dropping frame", "error", err)
		if l.metrics != nil {
			l.metrics.DecodeErrors.WithLabelValues(decodeErrorKind(err)).Inc()
		}
		*buf = (*buf)[frameLen:]
	}
}

func (l *Listener) forward(ctx context.Context, ts uint64, cmd wire.Command) bool {
	select {
	case l.persist <- Envelope{TimestampUs: ts, Command: cmd}:
		return true
	case <-ctx.Done():
		return false
	}
}
