package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/cosmik-network/cardsync/internal/curation"
	"github.com/cosmik-network/cardsync/internal/domain"
	"github.com/cosmik-network/cardsync/internal/logger"
)

const (
	// DefaultOrphanThreshold is how long a card may sit outside every library
	DefaultOrphanThreshold = 7 * 24 * time.Hour
)

// OrphanCollector deletes cards that no library holds any more. They are
// left behind when a removal cascade fails half way.
type OrphanCollector struct {
	cards     domain.CardRepository
	locks     *curation.KeyedMutex
	logger    logger.Logger
	interval  time.Duration
	threshold time.Duration
	now       func() time.Time
	stopCh    chan struct{}
}

// NewOrphanCollector creates a new orphan collector
func NewOrphanCollector(
	cards domain.CardRepository,
	locks *curation.KeyedMutex,
	log logger.Logger,
	interval time.Duration,
	threshold time.Duration,
) *OrphanCollector {
	if threshold == 0 {
		threshold = DefaultOrphanThreshold
	}
	if locks == nil {
		locks = curation.NewKeyedMutex()
	}

	return &OrphanCollector{
		cards:     cards,
		locks:     locks,
		logger:    log,
		interval:  interval,
		threshold: threshold,
		now:       time.Now,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the periodic collection
func (oc *OrphanCollector) Start(ctx context.Context) error {
	if _, err := oc.Collect(ctx); err != nil {
		oc.logger.Warn("initial orphan collection failed",
			logger.Error(err))
	}

	ticker := time.NewTicker(oc.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := oc.Collect(ctx); err != nil {
					oc.logger.Error("orphan collection failed",
						logger.Error(err))
				}
			case <-oc.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the collector
func (oc *OrphanCollector) Stop() {
	close(oc.stopCh)
}

// Collect deletes every card with no library membership whose last change
// is older than the threshold, and returns how many it deleted.
func (oc *OrphanCollector) Collect(ctx context.Context) (int, error) {
	cards, err := oc.cards.FindAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list cards: %w", err)
	}

	now := oc.now()
	deleted := 0
	for _, card := range cards {
		if !oc.isOrphan(card, now) {
			continue
		}
		ok, err := oc.collect(ctx, card.ID(), now)
		if err != nil {
			oc.logger.Warn("failed to delete orphan card",
				logger.String("card_id", card.ID().String()),
				logger.Error(err))
			continue
		}
		if ok {
			deleted++
		}
	}

	if deleted > 0 {
		oc.logger.Info("orphan collection completed",
			logger.Int("cards_deleted", deleted))
	} else {
		oc.logger.Debug("no orphan cards to collect")
	}
	return deleted, nil
}

// collect re-reads the card under its lock so a concurrent add wins.
func (oc *OrphanCollector) collect(ctx context.Context, id domain.CardID, now time.Time) (bool, error) {
	unlock := oc.locks.Lock(curation.CardKey(id))
	defer unlock()

	card, err := oc.cards.FindByID(ctx, id)
	if err != nil {
		return false, err
	}
	if card == nil || !oc.isOrphan(card, now) {
		return false, nil
	}
	if err := oc.cards.Delete(ctx, id); err != nil {
		return false, err
	}

	oc.logger.Info("garbage collected orphan card",
		logger.String("card_id", id.String()),
		logger.String("type", string(card.Type())),
		logger.Duration("orphaned_for", now.Sub(card.UpdatedAt())))
	return true, nil
}

func (oc *OrphanCollector) isOrphan(card *domain.Card, now time.Time) bool {
	if card.LibraryCount() > 0 || card.UpdatedAt().IsZero() {
		return false
	}
	return now.Sub(card.UpdatedAt()) >= oc.threshold
}
