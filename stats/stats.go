package stats

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type EventType string

const (
	// EventTypeWalked is a fully correct mailbox report.
	EventTypeWalked EventType = "walked"
	// EventTypeDegraded is a report emitted with size_is_correct false.
	EventTypeDegraded EventType = "degraded"
	// EventTypeSkipped is an ineligible user, no report row.
	EventTypeSkipped EventType = "skipped"
	// EventTypeDropped is a scheduling failure, no report row.
	EventTypeDropped EventType = "dropped"
)

type Event struct {
	Type  EventType
	Email string
	Err   error
}

type Summary struct {
	Walked    int
	Degraded  int
	Skipped   int
	Dropped   int
	LastError error
}

// Rows is the number of report rows actually written.
func (s Summary) Rows() int {
	return s.Walked + s.Degraded
}

func (s Summary) LogAttrs() []any {
	attrs := []any{
		"walked", s.Walked,
		"degraded", s.Degraded,
		"skipped", s.Skipped,
		"dropped", s.Dropped,
		"rows", s.Rows(),
	}
	if s.LastError != nil {
		attrs = append(attrs, "lastError", s.LastError.Error())
	}
	return attrs
}

type Collector struct {
	mu      sync.Mutex
	summary Summary
}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			c.apply(evt)
		}
	}
}

func (c *Collector) Snapshot() Summary {
	c.mu.Lock()
	summary := c.summary
	c.mu.Unlock()
	return summary
}

func (c *Collector) apply(evt Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch evt.Type {
	case EventTypeWalked:
		c.summary.Walked++
	case EventTypeDegraded:
		c.summary.Degraded++
	case EventTypeSkipped:
		c.summary.Skipped++
	case EventTypeDropped:
		c.summary.Dropped++
		if evt.Err != nil {
			c.summary.LastError = evt.Err
		}
	}
}

type EventStream interface {
	SubscribeStats(name string, fn func(context.Context, <-chan Event) error)
}

type Reporter struct {
	collector *Collector
	logger    *slog.Logger
	started   time.Time
}

func NewReporter(stream EventStream, logger *slog.Logger) *Reporter {
	reporter := &Reporter{
		collector: NewCollector(),
		logger:    logger,
		started:   time.Now(),
	}
	stream.SubscribeStats("stats-reporter", reporter.consume)
	return reporter
}

func (r *Reporter) consume(ctx context.Context, events <-chan Event) error {
	r.collector.Run(ctx, events)
	summary := r.collector.Snapshot()
	attrs := append(summary.LogAttrs(), "duration", time.Since(r.started))
	if ctx.Err() != nil {
		if r.logger != nil {
			r.logger.Debug("stats collection stopped", append(attrs, "err", ctx.Err())...)
		}
		return ctx.Err()
	}
	if r.logger != nil {
		r.logger.Info("run summary", attrs...)
	}
	return nil
}

func (r *Reporter) Summary() Summary {
	return r.collector.Snapshot()
}
