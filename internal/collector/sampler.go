// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package collector implements the collector-side half of the telemetry
// pipeline: a periodic host-metric sampler handing samples off to a sender
// that frames and ships them to the receiver over TCP.
package collector

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/telemetryd/telemetryd/internal/wire"
)

// DefaultQueueCapacity is the bounded hand-off queue size used when a
// caller doesn't have a configured capacity to pass. A small capacity is
// intentional: metrics older than a few seconds are already stale, so the
// sampler is deliberately coupled to the sender's drain rate rather than
// allowed to build a backlog.
const DefaultQueueCapacity = 10

// ErrAlreadyRunning is returned by Start when the sampler is already running.
var ErrAlreadyRunning = errors.New("collector: sampler already running")

// Sampler periodically captures a Metrics sample and hands it to its output
// queue as a SubmitData command. Scheduling is drift-free (the deadline
// advances by a fixed period regardless of how long a tick took), overlap
// between ticks is suppressed rather than queued, and a panicking tick body
// is contained and logged instead of taking the sampler down.
type Sampler struct {
	collectorID wire.CollectorID
	period      time.Duration
	queue       chan wire.Command
	logger      *slog.Logger
	sampleFn    SampleFunc

	running  atomic.Bool // true from Start until Stop completes
	sampling atomic.Bool // overlap-suppression: true while a tick body is in flight

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewSampler builds a Sampler for collectorID sampling every period, with
// its hand-off queue bounded at queueCapacity. Use WithSampleFunc to
// override the default gopsutil-backed sampling in tests.
func NewSampler(collectorID wire.CollectorID, period time.Duration, queueCapacity int, logger *slog.Logger) *Sampler {
	if queueCapacity <= 0 {
		queueCapacity = DefaultQueueCapacity
	}
	return &Sampler{
		collectorID: collectorID,
		period:      period,
		queue:       make(chan wire.Command, queueCapacity),
		logger:      logger.With("component", "sampler", "collector_id", collectorID.String()),
		sampleFn:    GopsutilSample,
	}
}

// WithSampleFunc overrides the sampling function. Must be called before Start.
func (s *Sampler) WithSampleFunc(fn SampleFunc) *Sampler {
	s.sampleFn = fn
	return s
}

// Queue is the sampler's output: one SubmitData command per successful tick.
func (s *Sampler) Queue() <-chan wire.Command {
	return s.queue
}

// Start begins sampling on its own goroutine. A second call while already
// running returns ErrAlreadyRunning without affecting the running sampler.
func (s *Sampler) Start() error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.run()
	return nil
}

// Stop requests the sampler to exit and waits for its goroutine to finish.
// An in-progress tick is allowed to complete. Stop on an already-stopped
// sampler is a no-op, so repeated calls are safe.
func (s *Sampler) Stop() {
	if !s.running.Load() {
		return
	}
	close(s.stop)
	s.wg.Wait()
	s.running.Store(false)
}

func (s *Sampler) run() {
	defer s.wg.Done()

	next := time.Now().Add(s.period)
	for {
		wait := time.Until(next)
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)
		select {
		case <-s.stop:
			timer.Stop()
			return
		case <-timer.C:
		}

		// Advance by a fixed period, not from "now" — this keeps the
		// cadence drift-free even when a tick overran its deadline.
		next = next.Add(s.period)
		s.tick()
	}
}

func (s *Sampler) tick() {
	if !s.sampling.CompareAndSwap(false, true) {
		s.logger.Debug("tick skipped: previous sample still in flight")
		return
	}
	defer s.sampling.Store(false)

	cmd, ok := s.sampleOnce()
	if !ok {
		return
	}

	select {
	case s.queue <- cmd:
	case <-s.stop:
	}
}

// sampleOnce runs the sample body inside a recover region so a panic during
// sampling logs and returns the state machine to Idle instead of bringing
// down the sampler goroutine.
func (s *Sampler) sampleOnce() (cmd wire.Command, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("sample tick panicked", "panic", r)
			ok = false
		}
	}()

	metrics, err := s.sampleFn()
	if err != nil {
		s.logger.Warn("sample failed", "error", err)
		return nil, false
	}
	return wire.SubmitData{CollectorID: s.collectorID, Metrics: metrics}, true
}
