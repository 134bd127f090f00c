package domain

import (
	"context"
	"time"
)

// DomainEvent is something an aggregate recorded while being mutated.
type DomainEvent interface {
	EventName() string
	OccurredAt() time.Time
}

// CardAddedToLibrary is recorded when a curator adds a card to their library.
type CardAddedToLibrary struct {
	CardID    CardID
	CuratorID CuratorID
	At        time.Time
}

func (e CardAddedToLibrary) EventName() string     { return "card.added_to_library" }
func (e CardAddedToLibrary) OccurredAt() time.Time { return e.At }

// CardRemovedFromLibrary is recorded when a membership is removed.
type CardRemovedFromLibrary struct {
	CardID    CardID
	CuratorID CuratorID
	At        time.Time
}

func (e CardRemovedFromLibrary) EventName() string     { return "card.removed_from_library" }
func (e CardRemovedFromLibrary) OccurredAt() time.Time { return e.At }

// CardAddedToCollection is recorded when a new card link is created.
type CardAddedToCollection struct {
	CollectionID CollectionID
	CardID       CardID
	AddedBy      CuratorID
	At           time.Time
}

func (e CardAddedToCollection) EventName() string     { return "collection.card_added" }
func (e CardAddedToCollection) OccurredAt() time.Time { return e.At }

// CardRemovedFromCollection is recorded when a card link is removed.
type CardRemovedFromCollection struct {
	CollectionID CollectionID
	CardID       CardID
	RemovedBy    CuratorID
	At           time.Time
}

func (e CardRemovedFromCollection) EventName() string     { return "collection.card_removed" }
func (e CardRemovedFromCollection) OccurredAt() time.Time { return e.At }

// EventDispatcher receives events after the aggregate that raised them
// has been persisted.
type EventDispatcher interface {
	Dispatch(ctx context.Context, events ...DomainEvent)
}
