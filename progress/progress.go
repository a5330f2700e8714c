package progress

import (
	"context"
	"sync"

	"github.com/pterm/pterm"

	"github.com/nlukyanov/mailbox-sizes/stats"
)

// Bar tracks mailbox processing across the whole user list. Every user
// resolves to exactly one event (walked, degraded, skipped or dropped),
// so the bar always reaches its total.
type Bar struct {
	pb      *pterm.ProgressbarPrinter
	total   int
	mu      sync.Mutex
	enabled bool
}

// New creates a progress bar if logLevel is "info"; at other levels the
// bar stays silent so debug logs and the bar don't fight over the tty.
func New(total int, logLevel string) *Bar {
	enabled := logLevel == "info"

	bar := &Bar{total: total, enabled: enabled}
	if enabled {
		pb, _ := pterm.DefaultProgressbar.
			WithTotal(total).
			WithTitle("Counting mailbox sizes").
			Start()
		bar.pb = pb
	}
	return bar
}

// Update advances the bar based on the event type.
func (b *Bar) Update(evt stats.Event) {
	if !b.enabled || b.pb == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.pb.Increment()
	switch evt.Type {
	case stats.EventTypeWalked, stats.EventTypeSkipped:
		if evt.Email != "" {
			b.pb.UpdateTitle("Processed: " + evt.Email)
		}
	case stats.EventTypeDegraded:
		pterm.Warning.Printf("%s: size may be incorrect, see log\n", evt.Email)
	case stats.EventTypeDropped:
		if evt.Err != nil {
			pterm.Error.Printf("%s: %v\n", evt.Email, evt.Err)
		}
	}
}

// Stop finalizes the progress bar.
func (b *Bar) Stop() {
	if !b.enabled || b.pb == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pb.Current < b.total {
		b.pb.Current = b.total
	}
	b.pb.Stop()
	pterm.Success.Println("Run complete")
}

// Subscriber adapts the bar to the runner's stats subscription.
func (b *Bar) Subscriber(ctx context.Context, events <-chan stats.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			b.Update(evt)
		}
	}
}
