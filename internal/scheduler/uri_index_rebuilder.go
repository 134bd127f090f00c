package scheduler

import (
	"context"

	"github.com/cosmik-network/cardsync/internal/logger"
)

// IndexRebuilder rewrites secondary lookup indexes from the stored
// aggregates.
type IndexRebuilder interface {
	RebuildIndex(ctx context.Context) (int, error)
}

// URIIndexRebuilder rebuilds the AT-URI index on startup
type URIIndexRebuilder struct {
	store  IndexRebuilder
	logger logger.Logger
}

// NewURIIndexRebuilder creates a new index rebuilder
func NewURIIndexRebuilder(store IndexRebuilder, log logger.Logger) *URIIndexRebuilder {
	return &URIIndexRebuilder{
		store:  store,
		logger: log,
	}
}

// Rebuild runs one full rebuild
func (r *URIIndexRebuilder) Rebuild(ctx context.Context) error {
	r.logger.Info("rebuilding at-uri index")

	n, err := r.store.RebuildIndex(ctx)
	if err != nil {
		return err
	}

	if n == 0 {
		r.logger.Info("no records to index")
		return nil
	}

	r.logger.Info("rebuilt at-uri index",
		logger.Int("entries", n))
	return nil
}
