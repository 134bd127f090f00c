package curation

import (
	"context"
	"strings"

	"github.com/cosmik-network/cardsync/internal/domain"
)

// ResourceType names what an AT-URI resolved to.
type ResourceType string

const (
	ResourceCard           ResourceType = "CARD"
	ResourceCollection     ResourceType = "COLLECTION"
	ResourceCollectionLink ResourceType = "COLLECTION_LINK"
)

// CollectionLinkID addresses a card link inside a collection.
type CollectionLinkID struct {
	CollectionID domain.CollectionID `json:"collectionId"`
	CardID       domain.CardID       `json:"cardId"`
}

// Resolution is the local entity an AT-URI refers to. Only the ids that
// match Type are set.
type Resolution struct {
	Type         ResourceType        `json:"type"`
	CardID       domain.CardID       `json:"cardId,omitempty"`
	CollectionID domain.CollectionID `json:"collectionId,omitempty"`
}

// AtURIResolutionService maps published record URIs back to local ids.
type AtURIResolutionService struct {
	cards       domain.CardRepository
	collections domain.CollectionRepository
}

// NewAtURIResolutionService creates a resolution service over both repositories
func NewAtURIResolutionService(cards domain.CardRepository, collections domain.CollectionRepository) *AtURIResolutionService {
	return &AtURIResolutionService{cards: cards, collections: collections}
}

// ResolveAtURI looks uri up among cards, then collections, then card links.
// It returns (nil, nil) when nothing matches.
func (s *AtURIResolutionService) ResolveAtURI(ctx context.Context, uri string) (*Resolution, error) {
	const op = "AtURIResolutionService.ResolveAtURI"

	uri = strings.TrimSpace(uri)
	if uri == "" {
		return nil, nil
	}

	card, err := s.cards.FindByPublishedRecordURI(ctx, uri)
	if err != nil {
		return nil, domain.Unexpected(op, err)
	}
	if card != nil {
		return &Resolution{Type: ResourceCard, CardID: card.ID()}, nil
	}

	collection, err := s.collections.FindByPublishedRecordURI(ctx, uri)
	if err != nil {
		return nil, domain.Unexpected(op, err)
	}
	if collection != nil {
		return &Resolution{Type: ResourceCollection, CollectionID: collection.ID()}, nil
	}

	holder, err := s.collections.FindByCardLinkPublishedRecordURI(ctx, uri)
	if err != nil {
		return nil, domain.Unexpected(op, err)
	}
	if holder != nil {
		for _, link := range holder.CardLinks() {
			if link.PublishedRecordID != nil && link.PublishedRecordID.URI == uri {
				return &Resolution{Type: ResourceCollectionLink, CollectionID: holder.ID(), CardID: link.CardID}, nil
			}
		}
	}

	return nil, nil
}

// ResolveCardID returns the card id for uri, or nil when uri is not a card.
func (s *AtURIResolutionService) ResolveCardID(ctx context.Context, uri string) (*domain.CardID, error) {
	r, err := s.ResolveAtURI(ctx, uri)
	if err != nil || r == nil || r.Type != ResourceCard {
		return nil, err
	}
	id := r.CardID
	return &id, nil
}

// ResolveCollectionID returns the collection id for uri, or nil when uri is
// not a collection.
func (s *AtURIResolutionService) ResolveCollectionID(ctx context.Context, uri string) (*domain.CollectionID, error) {
	r, err := s.ResolveAtURI(ctx, uri)
	if err != nil || r == nil || r.Type != ResourceCollection {
		return nil, err
	}
	id := r.CollectionID
	return &id, nil
}

// ResolveCollectionLinkID returns the link address for uri, or nil when uri
// is not a card link.
func (s *AtURIResolutionService) ResolveCollectionLinkID(ctx context.Context, uri string) (*CollectionLinkID, error) {
	r, err := s.ResolveAtURI(ctx, uri)
	if err != nil || r == nil || r.Type != ResourceCollectionLink {
		return nil, err
	}
	return &CollectionLinkID{CollectionID: r.CollectionID, CardID: r.CardID}, nil
}
