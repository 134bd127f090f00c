package curation

import (
	"context"
	"sync"

	"github.com/cosmik-network/cardsync/internal/domain"
	"github.com/cosmik-network/cardsync/internal/logger"
)

// LogDispatcher writes every domain event to the log and keeps a count per
// event name.
type LogDispatcher struct {
	logger logger.Logger

	mu     sync.Mutex
	counts map[string]int64
}

// NewLogDispatcher creates an event dispatcher that only logs
func NewLogDispatcher(log logger.Logger) *LogDispatcher {
	return &LogDispatcher{logger: log, counts: make(map[string]int64)}
}

func (d *LogDispatcher) Dispatch(ctx context.Context, events ...domain.DomainEvent) {
	d.mu.Lock()
	for _, e := range events {
		d.counts[e.EventName()]++
	}
	d.mu.Unlock()

	for _, e := range events {
		d.logger.Debug("domain event",
			logger.String("event", e.EventName()),
			logger.Time("occurred_at", e.OccurredAt()))
	}
}

// Count returns how many events named name were dispatched.
func (d *LogDispatcher) Count(name string) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.counts[name]
}
