package firehose

import (
	"context"
	"sync"
	"time"

	"github.com/cosmik-network/cardsync/internal/logger"
)

// Stats counts dispatched events.
type Stats struct {
	Applied     int64            `json:"applied"`
	Skipped     int64            `json:"skipped"`
	ByNSID      map[string]int64 `json:"by_nsid"`
	LastEventAt time.Time        `json:"last_event_at"`
}

// Dispatcher routes events to processors by record collection.
type Dispatcher struct {
	mu     sync.RWMutex
	routes map[string]Processor
	logger logger.Logger

	statsMu sync.Mutex
	stats   Stats
}

// NewDispatcher creates a dispatcher with no routes
func NewDispatcher(log logger.Logger) *Dispatcher {
	return &Dispatcher{
		routes: make(map[string]Processor),
		logger: log,
		stats:  Stats{ByNSID: make(map[string]int64)},
	}
}

// Handle routes events for nsid to p, replacing any earlier route.
func (d *Dispatcher) Handle(nsid string, p Processor) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.routes[nsid] = p
}

// Collections returns the routed record collections.
func (d *Dispatcher) Collections() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.routes))
	for nsid := range d.routes {
		out = append(out, nsid)
	}
	return out
}

// Dispatch runs ev through the matching processor. Events for unknown
// collections are skipped.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) Outcome {
	out := d.route(ctx, ev)
	d.record(ev.NSID(), out)

	d.logger.Debug("firehose event processed",
		logger.String("at_uri", ev.AtURI),
		logger.String("event_type", string(ev.EventType)),
		logger.Bool("applied", out.Applied),
		logger.String("reason", out.Reason))

	return out
}

func (d *Dispatcher) route(ctx context.Context, ev Event) Outcome {
	if !ev.EventType.Valid() {
		return skipped("unknown event type " + string(ev.EventType))
	}
	nsid := ev.NSID()
	if nsid == "" {
		return skipped("invalid at-uri")
	}

	d.mu.RLock()
	p, ok := d.routes[nsid]
	d.mu.RUnlock()
	if !ok {
		return skipped("unhandled collection " + nsid)
	}
	return p.Process(ctx, ev)
}

func (d *Dispatcher) record(nsid string, out Outcome) {
	d.statsMu.Lock()
	defer d.statsMu.Unlock()

	if out.Applied {
		d.stats.Applied++
	} else {
		d.stats.Skipped++
	}
	if nsid != "" {
		d.stats.ByNSID[nsid]++
	}
	d.stats.LastEventAt = time.Now()
}

// Stats returns a copy of the counters.
func (d *Dispatcher) Stats() Stats {
	d.statsMu.Lock()
	defer d.statsMu.Unlock()

	s := d.stats
	s.ByNSID = make(map[string]int64, len(d.stats.ByNSID))
	for k, v := range d.stats.ByNSID {
		s.ByNSID[k] = v
	}
	return s
}
