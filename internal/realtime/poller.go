package realtime

import (
	"context"
	"sync"
	"time"

	"symgraph/internal/core/errors"
	"symgraph/internal/shared/observability"
	"symgraph/internal/shared/util"
)

// Tick runs one polling pass: every active query whose last execution is
// older than the poll interval is re-executed; a query older than the query
// timeout is deactivated and its error subscribers get a timeout event
// instead. Returns how many queries were evaluated.
//
// Evaluation is sequential when MaxConcurrency is one, otherwise it runs on
// a bounded worker pool.
func (s *System) Tick(ctx context.Context) int {
	observability.PollTicksTotal.Inc()
	now := time.Now()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0
	}
	var stale, expired []*Query
	for _, q := range s.queries {
		if !q.IsActive {
			continue
		}
		age := now.Sub(q.LastExecuted)
		switch {
		case age > s.cfg.QueryTimeout:
			q.IsActive = false
			expired = append(expired, q)
		case age >= s.cfg.PollInterval:
			stale = append(stale, q)
		}
	}
	s.mu.Unlock()

	for _, q := range expired {
		s.mu.Lock()
		subs := s.subsForQueryLocked(q.ID)
		s.mu.Unlock()
		s.dispatch(subs, Event{
			QueryID: q.ID,
			Type:    EventError,
			Err:     string(errors.CodeQueryTimeout) + ": query exceeded inactivity timeout",
		})
	}

	if s.cfg.MaxConcurrency <= 1 {
		for _, q := range stale {
			s.refresh(ctx, q)
		}
		return len(stale) + len(expired)
	}

	sem := make(chan struct{}, s.cfg.MaxConcurrency)
	var wg sync.WaitGroup
	for _, q := range stale {
		wg.Add(1)
		go func(q *Query) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			s.refresh(ctx, q)
		}(q)
	}
	wg.Wait()
	return len(stale) + len(expired)
}

// Poller drives System.Tick on a recurring interval, paced by a token
// bucket so a burst of manual ticks cannot starve the scheduler.
type Poller struct {
	sys     *System
	limiter *util.Limiter
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewPoller creates a stopped poller. Call Start to run it.
func NewPoller(sys *System) *Poller {
	perSecond := 1.0
	if sys.cfg.PollInterval > 0 {
		perSecond = 1.0 / sys.cfg.PollInterval.Seconds()
	}
	return &Poller{
		sys:     sys,
		limiter: util.NewLimiter(perSecond, 1),
		done:    make(chan struct{}),
	}
}

// Start launches the polling loop. It runs until Stop or ctx cancellation.
func (p *Poller) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	go func() {
		defer close(p.done)
		ticker := time.NewTicker(p.sys.cfg.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !p.limiter.Allow(1) {
					continue
				}
				p.sys.Tick(ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for it to exit.
func (p *Poller) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
}
