package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nlukyanov/mailbox-sizes/config"
	"github.com/nlukyanov/mailbox-sizes/directory"
	"github.com/nlukyanov/mailbox-sizes/filter"
	"github.com/nlukyanov/mailbox-sizes/mailbox"
	"github.com/nlukyanov/mailbox-sizes/stats"
)

// Sink receives one report row per walked mailbox.
type Sink interface {
	Append(report mailbox.Report) error
}

// Runner walks every eligible mailbox with a bounded number of concurrent
// IMAP sessions and streams per-user events to subscribers.
type Runner struct {
	cfg    config.Config
	walker *mailbox.Walker
	sink   Sink
	filter *filter.Filter
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	subMu           sync.Mutex
	subscribers     []chan stats.Event
	statsWG         sync.WaitGroup
	closeEventsOnce sync.Once
}

// New creates a Runner. The parent context bounds the whole run; cancelling
// it stops in-flight walks at the next network operation.
func New(ctx context.Context, cfg config.Config, walker *mailbox.Walker, sink Sink, f *filter.Filter, logger *slog.Logger) *Runner {
	runCtx, cancel := context.WithCancel(ctx)
	return &Runner{
		cfg:    cfg,
		walker: walker,
		sink:   sink,
		filter: f,
		logger: logger,
		ctx:    runCtx,
		cancel: cancel,
	}
}

// SubscribeStats registers a consumer of the event stream. Every subscriber
// gets its own channel carrying the full stream. Must be called before Run;
// the consumer sees the channel closed when the run is over.
func (r *Runner) SubscribeStats(name string, fn func(context.Context, <-chan stats.Event) error) {
	events := make(chan stats.Event, 128)

	r.subMu.Lock()
	r.subscribers = append(r.subscribers, events)
	r.subMu.Unlock()

	r.statsWG.Add(1)
	go func() {
		defer r.statsWG.Done()
		if err := fn(r.ctx, events); err != nil && r.ctx.Err() == nil {
			r.logger.Warn("stats subscriber stopped", "name", name, "err", err)
		}
	}()
}

// Run processes the full user list and blocks until every user has resolved
// to exactly one event and all subscribers have drained the stream.
func (r *Runner) Run(users []directory.User) {
	defer r.cancel()

	permits := make(chan struct{}, r.cfg.MaxSessions)
	var wg sync.WaitGroup

	for _, user := range users {
		if !r.filter.Eligible(user) {
			r.logger.Debug("user skipped",
				"email", user.Email,
				"id", user.ID,
				"enabled", user.IsEnabled)
			r.emit(stats.Event{Type: stats.EventTypeSkipped, Email: user.Email})
			continue
		}

		wg.Add(1)
		go func(u directory.User) {
			defer wg.Done()

			select {
			case permits <- struct{}{}:
			case <-r.ctx.Done():
				r.emit(stats.Event{Type: stats.EventTypeDropped, Email: u.Email, Err: r.ctx.Err()})
				return
			}
			defer func() { <-permits }()

			r.process(u)
		}(user)
	}

	wg.Wait()
	r.closeEvents()
	r.statsWG.Wait()
}

// process walks one mailbox and appends its report row. A panic escaping
// the walker loses that user's row but never the run.
func (r *Runner) process(user directory.User) {
	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("mailbox walk panicked: %v", p)
			r.logger.Error("user dropped", "email", user.Email, "err", err)
			r.emit(stats.Event{Type: stats.EventTypeDropped, Email: user.Email, Err: err})
		}
	}()

	report := r.walker.Walk(r.ctx, user)

	if err := r.sink.Append(report); err != nil {
		r.logger.Error("report row not written", "email", user.Email, "err", err)
		r.emit(stats.Event{Type: stats.EventTypeDropped, Email: user.Email, Err: err})
		return
	}

	if report.SizeCorrect {
		r.logger.Debug("mailbox walked",
			"email", user.Email,
			"messages", report.TotalMessages,
			"bytes", report.TotalSizeBytes)
		r.emit(stats.Event{Type: stats.EventTypeWalked, Email: user.Email})
		return
	}

	r.logger.Warn("mailbox walked with errors", "email", user.Email)
	r.emit(stats.Event{Type: stats.EventTypeDegraded, Email: user.Email})
}

func (r *Runner) emit(evt stats.Event) {
	r.subMu.Lock()
	subscribers := r.subscribers
	r.subMu.Unlock()

	for _, events := range subscribers {
		select {
		case events <- evt:
		case <-r.ctx.Done():
			return
		}
	}
}

func (r *Runner) closeEvents() {
	r.closeEventsOnce.Do(func() {
		r.subMu.Lock()
		defer r.subMu.Unlock()
		for _, events := range r.subscribers {
			close(events)
		}
	})
}
