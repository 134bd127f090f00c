package curation

import (
	"context"
	"time"

	"github.com/cosmik-network/cardsync/internal/domain"
	"github.com/cosmik-network/cardsync/internal/logger"
)

// CollectionOptions tunes how card links are published. The zero value
// publishes through the CollectionPublisher.
type CollectionOptions struct {
	// SkipPublishing disables publisher calls. Used when replaying records
	// that already exist remotely.
	SkipPublishing bool
	// PublishedRecordIDs are stamped on new links when SkipPublishing is set.
	PublishedRecordIDs map[domain.CollectionID]domain.PublishedRecordID
}

func (o CollectionOptions) recordFor(id domain.CollectionID) (domain.PublishedRecordID, bool) {
	if o.PublishedRecordIDs == nil {
		return domain.PublishedRecordID{}, false
	}
	rid, ok := o.PublishedRecordIDs[id]
	return rid, ok
}

// CardCollectionService adds and removes cards in collections and keeps the
// link records in sync.
type CardCollectionService struct {
	collections domain.CollectionRepository
	publisher   domain.CollectionPublisher
	locks       *KeyedMutex
	events      domain.EventDispatcher
	logger      logger.Logger
}

// NewCardCollectionService wires a CardCollectionService. events may be nil.
func NewCardCollectionService(
	collections domain.CollectionRepository,
	publisher domain.CollectionPublisher,
	locks *KeyedMutex,
	events domain.EventDispatcher,
	log logger.Logger,
) *CardCollectionService {
	if locks == nil {
		locks = NewKeyedMutex()
	}
	return &CardCollectionService{
		collections: collections,
		publisher:   publisher,
		locks:       locks,
		events:      events,
		logger:      log,
	}
}

// AddCardToCollection links card into the collection on behalf of curator.
// Adding a card that is already linked succeeds without publishing.
func (s *CardCollectionService) AddCardToCollection(
	ctx context.Context,
	card *domain.Card,
	collectionID domain.CollectionID,
	curator domain.CuratorID,
	opts CollectionOptions,
) (*domain.Collection, error) {
	const op = "CardCollectionService.AddCardToCollection"

	unlock := s.locks.Lock(CollectionKey(collectionID))
	defer unlock()

	collection, err := s.load(ctx, op, collectionID)
	if err != nil {
		return nil, err
	}

	added, err := collection.AddCard(card.ID(), curator, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	if !added {
		// A replayed link may arrive after the local one was created unpublished.
		link, _ := collection.CardLink(card.ID())
		rid, ok := opts.recordFor(collectionID)
		if !opts.SkipPublishing || !ok || link.PublishedRecordID != nil {
			return collection, nil
		}
		if err := collection.MarkCardLinkPublished(card.ID(), rid); err != nil {
			return nil, err
		}
		if err := s.collections.Save(ctx, collection); err != nil {
			return nil, domain.Unexpected(op, err)
		}
		return collection, nil
	}

	if opts.SkipPublishing {
		if rid, ok := opts.recordFor(collectionID); ok {
			if err := collection.MarkCardLinkPublished(card.ID(), rid); err != nil {
				return nil, err
			}
		}
	} else {
		rid, err := s.publisher.PublishCardAddedToCollection(ctx, card, collection, curator)
		if err != nil {
			return nil, domain.AsUnexpected(op, err)
		}
		if err := collection.MarkCardLinkPublished(card.ID(), rid); err != nil {
			return nil, err
		}
	}

	if err := s.collections.Save(ctx, collection); err != nil {
		return nil, domain.Unexpected(op, err)
	}
	dispatch(ctx, s.events, collection.PullEvents())

	s.logger.Debug("card added to collection",
		logger.String("card_id", card.ID().String()),
		logger.String("collection_id", collectionID.String()),
		logger.String("curator", curator.String()),
		logger.Bool("published", !opts.SkipPublishing))

	return collection, nil
}

// AddCardToCollections applies AddCardToCollection to each id and stops at
// the first failure. Collections updated before the failure stay updated.
func (s *CardCollectionService) AddCardToCollections(
	ctx context.Context,
	card *domain.Card,
	collectionIDs []domain.CollectionID,
	curator domain.CuratorID,
	opts CollectionOptions,
) ([]*domain.Collection, error) {
	updated := make([]*domain.Collection, 0, len(collectionIDs))
	for _, id := range collectionIDs {
		collection, err := s.AddCardToCollection(ctx, card, id, curator, opts)
		if err != nil {
			return updated, err
		}
		updated = append(updated, collection)
	}
	return updated, nil
}

// RemoveCardFromCollection unlinks cardID. It returns (nil, nil) when the
// card is not linked. The link record is unpublished before the local
// mutation so a publisher failure leaves the collection unchanged.
func (s *CardCollectionService) RemoveCardFromCollection(
	ctx context.Context,
	cardID domain.CardID,
	collectionID domain.CollectionID,
	curator domain.CuratorID,
	opts CollectionOptions,
) (*domain.Collection, error) {
	const op = "CardCollectionService.RemoveCardFromCollection"

	unlock := s.locks.Lock(CollectionKey(collectionID))
	defer unlock()

	collection, err := s.load(ctx, op, collectionID)
	if err != nil {
		return nil, err
	}

	link, ok := collection.CardLink(cardID)
	if !ok {
		return nil, nil
	}
	if !collection.CanRemoveCard(curator) {
		return nil, domain.Access(op, string(curator)+" cannot remove cards from collection "+string(collectionID))
	}

	if !opts.SkipPublishing && link.PublishedRecordID != nil {
		if err := s.publisher.UnpublishCardAddedToCollection(ctx, *link.PublishedRecordID); err != nil {
			return nil, domain.AsUnexpected(op, err)
		}
	}

	if _, _, err := collection.RemoveCard(cardID, curator); err != nil {
		return nil, err
	}
	if err := s.collections.Save(ctx, collection); err != nil {
		return nil, domain.Unexpected(op, err)
	}
	dispatch(ctx, s.events, collection.PullEvents())

	s.logger.Debug("card removed from collection",
		logger.String("card_id", cardID.String()),
		logger.String("collection_id", collectionID.String()),
		logger.String("curator", curator.String()))

	return collection, nil
}

// RemoveCardFromCollections applies RemoveCardFromCollection to each id and
// stops at the first failure. Collections that did not link the card are
// not included in the result.
func (s *CardCollectionService) RemoveCardFromCollections(
	ctx context.Context,
	cardID domain.CardID,
	collectionIDs []domain.CollectionID,
	curator domain.CuratorID,
	opts CollectionOptions,
) ([]*domain.Collection, error) {
	updated := make([]*domain.Collection, 0, len(collectionIDs))
	for _, id := range collectionIDs {
		collection, err := s.RemoveCardFromCollection(ctx, cardID, id, curator, opts)
		if err != nil {
			return updated, err
		}
		if collection != nil {
			updated = append(updated, collection)
		}
	}
	return updated, nil
}

func (s *CardCollectionService) load(ctx context.Context, op string, id domain.CollectionID) (*domain.Collection, error) {
	collection, err := s.collections.FindByID(ctx, id)
	if err != nil {
		return nil, domain.Unexpected(op, err)
	}
	if collection == nil {
		return nil, domain.NotFound(op, "collection "+string(id)+" not found")
	}
	return collection, nil
}

func dispatch(ctx context.Context, d domain.EventDispatcher, events []domain.DomainEvent) {
	if d == nil || len(events) == 0 {
		return
	}
	d.Dispatch(ctx, events...)
}
