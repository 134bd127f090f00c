package deps

import (
	"context"
	"time"

	"github.com/cosmik-network/cardsync/internal/curation"
	"github.com/cosmik-network/cardsync/internal/firehose"
	"github.com/cosmik-network/cardsync/internal/logger"
	"github.com/cosmik-network/cardsync/internal/version"
)

// Pinger reports whether a backing store answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConsumerStats exposes the counters of a running firehose consumer.
type ConsumerStats interface {
	Received() int64
	Processed() int64
}

type Deps struct {
	Logger             logger.Logger
	StartTime          time.Time
	Build              version.Info
	TimeNow            func() time.Time                 // for testing, defaults to time.Now
	AllowedHosts       []string                         // Host headers allowed to access the server
	AllowedCIDRS       []string                         // IPs allowed to access ops endpoints
	TrustProxy         bool                             // true if running behind a trusted reverse proxy (e.g., cloudflared)
	IngestBurst        int                              // rate limit bucket for POST /firehose/events
	IngestRefillPerMin int                              // rate limit refill per client IP
	StoreKind          string                           // "redis" | "memory"
	Store              Pinger                           // backing store of the repositories
	Dispatcher         *firehose.Dispatcher             // routes firehose events to processors
	Consumer           ConsumerStats                    // nil when no live source is configured
	Resolver           *curation.AtURIResolutionService // AT-URI lookups
	ImportTrigger      chan struct{}                    // manual library import trigger (nil if import disabled)
}

// Now returns the current time through TimeNow when set.
func (d Deps) Now() time.Time {
	if d.TimeNow != nil {
		return d.TimeNow()
	}
	return time.Now()
}
