package curation

import (
	"context"
	"time"

	"github.com/cosmik-network/cardsync/internal/domain"
	"github.com/cosmik-network/cardsync/internal/logger"
)

// LibraryOptions tunes how library memberships are published. The zero
// value publishes through the CardPublisher.
type LibraryOptions struct {
	// SkipPublishing disables publisher calls.
	SkipPublishing bool
	// PublishedRecordID is stamped on a new membership when SkipPublishing
	// is set.
	PublishedRecordID *domain.PublishedRecordID
}

// CardLibraryService adds, updates and removes cards in curators'
// libraries and keeps the library records in sync.
type CardLibraryService struct {
	cards       domain.CardRepository
	collections domain.CollectionRepository
	publisher   domain.CardPublisher
	linking     *CardCollectionService
	locks       *KeyedMutex
	events      domain.EventDispatcher
	logger      logger.Logger
}

// NewCardLibraryService wires a CardLibraryService. It shares the card and
// collection locks of linking. events may be nil.
func NewCardLibraryService(
	cards domain.CardRepository,
	collections domain.CollectionRepository,
	publisher domain.CardPublisher,
	linking *CardCollectionService,
	events domain.EventDispatcher,
	log logger.Logger,
) *CardLibraryService {
	return &CardLibraryService{
		cards:       cards,
		collections: collections,
		publisher:   publisher,
		linking:     linking,
		locks:       linking.locks,
		events:      events,
		logger:      log,
	}
}

// AddCardToLibrary adds card to curator's library and publishes the
// membership. If the curator already holds a published copy it is
// republished; an unpublished existing membership is left alone.
func (s *CardLibraryService) AddCardToLibrary(
	ctx context.Context,
	card *domain.Card,
	curator domain.CuratorID,
	opts LibraryOptions,
) (*domain.Card, error) {
	const op = "CardLibraryService.AddCardToLibrary"

	if membership, ok := card.Membership(curator); ok {
		return s.refreshMembership(ctx, op, card, curator, membership, opts)
	}

	if err := card.AddToLibrary(curator, time.Now().UTC()); err != nil {
		return nil, err
	}

	if err := s.stampMembership(ctx, op, card, curator, opts); err != nil {
		return nil, err
	}

	if err := s.cards.Save(ctx, card); err != nil {
		return nil, domain.Unexpected(op, err)
	}
	dispatch(ctx, s.events, card.PullEvents())

	s.logger.Debug("card added to library",
		logger.String("card_id", card.ID().String()),
		logger.String("curator", curator.String()),
		logger.Bool("published", !opts.SkipPublishing))

	return card, nil
}

func (s *CardLibraryService) refreshMembership(
	ctx context.Context,
	op string,
	card *domain.Card,
	curator domain.CuratorID,
	membership domain.LibraryMembership,
	opts LibraryOptions,
) (*domain.Card, error) {
	if opts.SkipPublishing {
		// Replays may carry the record of a membership created locally but
		// never published.
		if opts.PublishedRecordID == nil || membership.PublishedRecordID != nil {
			return card, nil
		}
		if err := card.MarkMembershipPublished(curator, *opts.PublishedRecordID); err != nil {
			return nil, err
		}
	} else {
		if membership.PublishedRecordID == nil {
			return card, nil
		}
		if err := s.publish(ctx, op, card, curator); err != nil {
			return nil, err
		}
	}

	if err := s.cards.Save(ctx, card); err != nil {
		return nil, domain.Unexpected(op, err)
	}
	return card, nil
}

// UpdateCardInLibrary persists card and republishes the curator's
// membership when it has been published before.
func (s *CardLibraryService) UpdateCardInLibrary(
	ctx context.Context,
	card *domain.Card,
	curator domain.CuratorID,
	opts LibraryOptions,
) (*domain.Card, error) {
	const op = "CardLibraryService.UpdateCardInLibrary"

	membership, ok := card.Membership(curator)
	if !ok {
		return nil, domain.Validation(op, "card "+string(card.ID())+" is not in the library of "+string(curator))
	}

	if !opts.SkipPublishing && membership.PublishedRecordID != nil {
		if err := s.publish(ctx, op, card, curator); err != nil {
			return nil, err
		}
	}

	if err := s.cards.Save(ctx, card); err != nil {
		return nil, domain.Unexpected(op, err)
	}
	return card, nil
}

// RemoveCardFromLibrary removes curator's membership. Before the membership
// goes, the card is unlinked from the curator's collections and, for a URL
// card, the curator's note on that URL is removed as well. A published
// membership is unpublished before the local mutation; any failure aborts
// the remaining steps. A card left with no memberships is deleted.
func (s *CardLibraryService) RemoveCardFromLibrary(
	ctx context.Context,
	card *domain.Card,
	curator domain.CuratorID,
	opts LibraryOptions,
) (*domain.Card, error) {
	const op = "CardLibraryService.RemoveCardFromLibrary"

	if !card.IsInLibrary(curator) {
		return card, nil
	}

	if err := s.unlinkFromCollections(ctx, op, card, curator, opts); err != nil {
		return nil, err
	}

	if card.IsURLCard() {
		if err := s.removeNote(ctx, op, card, curator, opts); err != nil {
			return nil, err
		}
	}

	membership, _ := card.Membership(curator)
	if !opts.SkipPublishing && membership.PublishedRecordID != nil {
		if err := s.publisher.UnpublishCardFromLibrary(ctx, *membership.PublishedRecordID, curator); err != nil {
			return nil, domain.AsUnexpected(op, err)
		}
	}

	if err := card.RemoveFromLibrary(curator); err != nil {
		return nil, err
	}

	if card.LibraryCount() == 0 {
		if err := s.cards.Delete(ctx, card.ID()); err != nil {
			return nil, domain.Unexpected(op, err)
		}
		s.logger.Debug("card deleted after last library removal",
			logger.String("card_id", card.ID().String()),
			logger.String("type", string(card.Type())))
	} else if err := s.cards.Save(ctx, card); err != nil {
		return nil, domain.Unexpected(op, err)
	}
	dispatch(ctx, s.events, card.PullEvents())

	return card, nil
}

func (s *CardLibraryService) unlinkFromCollections(
	ctx context.Context,
	op string,
	card *domain.Card,
	curator domain.CuratorID,
	opts LibraryOptions,
) error {
	collections, err := s.collections.FindByCuratorContainingCard(ctx, curator, card.ID())
	if err != nil {
		return domain.Unexpected(op, err)
	}
	if len(collections) == 0 {
		return nil
	}
	ids := make([]domain.CollectionID, 0, len(collections))
	for _, c := range collections {
		ids = append(ids, c.ID())
	}
	_, err = s.linking.RemoveCardFromCollections(ctx, card.ID(), ids, curator, CollectionOptions{SkipPublishing: opts.SkipPublishing})
	return err
}

func (s *CardLibraryService) removeNote(
	ctx context.Context,
	op string,
	card *domain.Card,
	curator domain.CuratorID,
	opts LibraryOptions,
) error {
	u := card.URL()
	if u == nil {
		return nil
	}
	found, err := s.cards.FindUsersNoteCardByURL(ctx, curator, *u)
	if err != nil {
		return domain.Unexpected(op, err)
	}
	if found == nil || found.ID() == card.ID() {
		return nil
	}

	// The caller holds the url card lock; the note is locked after it.
	unlock := s.locks.Lock(CardKey(found.ID()))
	defer unlock()

	note, err := s.cards.FindByID(ctx, found.ID())
	if err != nil {
		return domain.Unexpected(op, err)
	}
	if note == nil {
		return nil
	}
	_, err = s.RemoveCardFromLibrary(ctx, note, curator, opts)
	return err
}

// publish writes the curator's library record and stamps the result.
func (s *CardLibraryService) publish(ctx context.Context, op string, card *domain.Card, curator domain.CuratorID) error {
	parent, err := s.parentRecord(ctx, op, card)
	if err != nil {
		return err
	}
	rid, err := s.publisher.PublishCardToLibrary(ctx, card, curator, parent)
	if err != nil {
		return domain.AsUnexpected(op, err)
	}
	return card.MarkMembershipPublished(curator, rid)
}

func (s *CardLibraryService) stampMembership(
	ctx context.Context,
	op string,
	card *domain.Card,
	curator domain.CuratorID,
	opts LibraryOptions,
) error {
	if !opts.SkipPublishing {
		return s.publish(ctx, op, card, curator)
	}
	if opts.PublishedRecordID == nil {
		return nil
	}
	return card.MarkMembershipPublished(curator, *opts.PublishedRecordID)
}

// parentRecord returns the parent's card-level record, or nil when the card
// has no parent or the parent was never published.
func (s *CardLibraryService) parentRecord(ctx context.Context, op string, card *domain.Card) (*domain.PublishedRecordID, error) {
	parentID := card.ParentCardID()
	if parentID == nil {
		return nil, nil
	}
	parent, err := s.cards.FindByID(ctx, *parentID)
	if err != nil {
		return nil, domain.Unexpected(op, err)
	}
	if parent == nil {
		return nil, domain.NotFound(op, "parent card "+string(*parentID)+" not found")
	}
	return parent.PublishedRecordID(), nil
}
