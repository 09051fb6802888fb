// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/sony/gobreaker"

	"github.com/telemetryd/telemetryd/internal/wire"
)

// MaxConsecutiveErrors is the number of consecutive send failures that trips
// the circuit breaker and aborts the sender.
const MaxConsecutiveErrors = 3

// DefaultMaxMessages is the reference value for how many successful frames
// the sender ships before emitting a final Exit and terminating cleanly.
const DefaultMaxMessages = 100

const dialTimeout = 5 * time.Second

// ErrSendAborted is returned by Run once the circuit breaker has tripped
// after MaxConsecutiveErrors consecutive failures.
var ErrSendAborted = errors.New("collector: sender aborted after consecutive failures")

// Sender drains a command queue, frames each command, and delivers it to the
// receiver over a fresh one-frame-per-connection TCP connection.
type Sender struct {
	addr        string
	collectorID wire.CollectorID
	queue       <-chan wire.Command
	maxMessages int
	stopSampler func()
	logger      *slog.Logger
	breaker     *gobreaker.CircuitBreaker
	dial        func(network, address string) (net.Conn, error)
}

// NewSender builds a Sender that ships frames to addr. stopSampler is called
// once, the moment the circuit breaker trips, so the collector's sampler
// stops producing work the sender can no longer deliver. maxMessages <= 0
// uses DefaultMaxMessages.
func NewSender(addr string, collectorID wire.CollectorID, queue <-chan wire.Command, maxMessages int, stopSampler func(), logger *slog.Logger) *Sender {
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	return &Sender{
		addr:        addr,
		collectorID: collectorID,
		queue:       queue,
		maxMessages: maxMessages,
		stopSampler: stopSampler,
		logger:      logger.With("component", "sender", "collector_id", collectorID.String()),
		dial:        net.Dial,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "collector-sender",
			MaxRequests: 1,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= MaxConsecutiveErrors
			},
		}),
	}
}

// Run drains the queue until it closes, the message budget is exhausted, or
// the circuit breaker trips, whichever happens first. Queue order (and thus
// per-collector temporal order) is preserved; there is no batching or
// coalescing.
func (s *Sender) Run(ctx context.Context) error {
	sent := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd, ok := <-s.queue:
			if !ok {
				return nil
			}
			if err := s.sendOne(cmd); err != nil {
				if s.aborted(err) {
					s.logger.Error("sender aborting after consecutive failures",
						"max_consecutive_errors", MaxConsecutiveErrors)
					if s.stopSampler != nil {
						s.stopSampler()
					}
					return ErrSendAborted
				}
				s.logger.Warn("send failed", "error", err)
				continue
			}

			sent++
			if sent >= s.maxMessages {
				s.logger.Info("max messages reached, sending final exit", "count", sent)
				return s.sendExit()
			}
		}
	}
}

// aborted reports whether err (or the breaker's resulting state) means the
// sender has given up on the connection entirely.
func (s *Sender) aborted(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || s.breaker.State() == gobreaker.StateOpen
}

func (s *Sender) sendOne(cmd wire.Command) error {
	_, err := s.breaker.Execute(func() (any, error) {
		frame, encErr := wire.Encode(cmd)
		if encErr != nil {
			return nil, encErr
		}
		return nil, s.writeFrame(frame)
	})
	return err
}

func (s *Sender) sendExit() error {
	return s.sendOne(wire.Exit{CollectorID: s.collectorID})
}

func (s *Sender) writeFrame(frame []byte) error {
	conn, err := s.dial("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("connecting to receiver: %w", err)
	}
	defer conn.Close()

	if err := conn.SetWriteDeadline(time.Now().Add(dialTimeout)); err != nil {
		return fmt.Errorf("setting write deadline: %w", err)
	}
	if _, err := conn.Write(frame); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}
