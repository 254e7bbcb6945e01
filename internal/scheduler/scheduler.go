package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"feedsync/internal/logger"
)

// RunFunc performs one sync pass.
type RunFunc func(ctx context.Context)

// Scheduler repeats a sync pass every interval. Passes never overlap.
type Scheduler struct {
	run        RunFunc
	interval   time.Duration
	stopCh     chan struct{}
	wg         sync.WaitGroup
	cancelFunc context.CancelFunc // cancels the current pass
	mu         sync.Mutex         // protects cancelFunc
}

func New(run RunFunc, interval time.Duration) *Scheduler {
	return &Scheduler{
		run:      run,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.loop()
	logger.Info("scheduler started", "module", "scheduler", "action", "sync", "resource", "feed", "result", "ok", "interval_ms", s.interval.Milliseconds())
}

func (s *Scheduler) Stop() {
	// Cancel any ongoing pass first
	s.mu.Lock()
	if s.cancelFunc != nil {
		s.cancelFunc()
	}
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
	logger.Info("scheduler stopped", "module", "scheduler", "action", "sync", "resource", "feed", "result", "ok")
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	// Run immediately on start
	s.pass()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.pass()
		case <-s.stopCh:
			return
		}
	}
}

func (s *Scheduler) pass() {
	select {
	case <-s.stopCh:
		return
	default:
	}

	// A pass may not outlive the interval
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)

	s.mu.Lock()
	s.cancelFunc = cancel
	s.mu.Unlock()

	defer func() {
		cancel()
		s.mu.Lock()
		s.cancelFunc = nil
		s.mu.Unlock()
	}()

	logger.Info("scheduled sync started", "module", "scheduler", "action", "sync", "resource", "feed", "result", "ok")
	s.run(ctx)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		logger.Warn("scheduled sync exceeded interval, remaining entries were not synced", "module", "scheduler", "action", "sync", "resource", "feed", "result", "timeout", "interval_ms", s.interval.Milliseconds())
		return
	}
	if ctx.Err() != nil {
		logger.Warn("scheduled sync cancelled", "module", "scheduler", "action", "sync", "resource", "feed", "result", "cancelled")
		return
	}
	logger.Info("scheduled sync completed", "module", "scheduler", "action", "sync", "resource", "feed", "result", "ok")
}
