package domain

import "context"

// CardRepository persists Card aggregates. Finders return (nil, nil) when
// nothing matches.
type CardRepository interface {
	FindByID(ctx context.Context, id CardID) (*Card, error)
	Save(ctx context.Context, card *Card) error
	Delete(ctx context.Context, id CardID) error

	// FindUsersURLCard returns the URL card the curator owns for url.
	FindUsersURLCard(ctx context.Context, curator CuratorID, url URL) (*Card, error)
	// FindUsersNoteCardByURL returns the curator's note attached to url.
	FindUsersNoteCardByURL(ctx context.Context, curator CuratorID, url URL) (*Card, error)
	// FindByPublishedRecordURI matches the card-level or any membership record.
	FindByPublishedRecordURI(ctx context.Context, uri string) (*Card, error)
	FindAll(ctx context.Context) ([]*Card, error)
}

// CollectionRepository persists Collection aggregates.
type CollectionRepository interface {
	FindByID(ctx context.Context, id CollectionID) (*Collection, error)
	Save(ctx context.Context, collection *Collection) error
	Delete(ctx context.Context, id CollectionID) error

	// FindByCuratorContainingCard lists collections authored by curator
	// that link cardID.
	FindByCuratorContainingCard(ctx context.Context, curator CuratorID, cardID CardID) ([]*Collection, error)
	FindByPublishedRecordURI(ctx context.Context, uri string) (*Collection, error)
	// FindByCardLinkPublishedRecordURI returns the collection holding the
	// card link published as uri.
	FindByCardLinkPublishedRecordURI(ctx context.Context, uri string) (*Collection, error)
	FindAll(ctx context.Context) ([]*Collection, error)
}

// CardPublisher writes and removes library records in the curator's
// repository. Implementations return an Authentication error when the
// curator's session is no longer valid.
type CardPublisher interface {
	// PublishCardToLibrary writes (or rewrites) the curator's record for
	// card. parentRecord is set when the card nests under a published parent.
	PublishCardToLibrary(ctx context.Context, card *Card, curator CuratorID, parentRecord *PublishedRecordID) (PublishedRecordID, error)
	UnpublishCardFromLibrary(ctx context.Context, record PublishedRecordID, curator CuratorID) error
}

// CollectionPublisher writes and removes collection and card link records.
type CollectionPublisher interface {
	Publish(ctx context.Context, collection *Collection) (PublishedRecordID, error)
	Unpublish(ctx context.Context, record PublishedRecordID) error
	PublishCardAddedToCollection(ctx context.Context, card *Card, collection *Collection, curator CuratorID) (PublishedRecordID, error)
	UnpublishCardAddedToCollection(ctx context.Context, record PublishedRecordID) error
}
