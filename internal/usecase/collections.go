package usecase

import (
	"context"

	"github.com/cosmik-network/cardsync/internal/curation"
	"github.com/cosmik-network/cardsync/internal/domain"
	"github.com/cosmik-network/cardsync/internal/logger"
)

// AddCardToCollectionRequest links an existing card into a collection.
type AddCardToCollectionRequest struct {
	CardID         domain.CardID
	CollectionID   domain.CollectionID
	CuratorID      domain.CuratorID
	SkipPublishing bool
	// PublishedRecordID is the link record, stamped when SkipPublishing is set.
	PublishedRecordID *domain.PublishedRecordID
}

// AddCardToCollection links a card into a collection for the curator.
func (c *Commands) AddCardToCollection(ctx context.Context, req AddCardToCollectionRequest) (*domain.Collection, error) {
	const op = "AddCardToCollection"

	curator, err := parseCurator(op, req.CuratorID)
	if err != nil {
		return nil, err
	}
	card, err := c.loadCard(ctx, op, req.CardID)
	if err != nil {
		return nil, err
	}

	opts := curation.CollectionOptions{SkipPublishing: req.SkipPublishing}
	if req.PublishedRecordID != nil {
		opts.PublishedRecordIDs = map[domain.CollectionID]domain.PublishedRecordID{
			req.CollectionID: *req.PublishedRecordID,
		}
	}
	return c.linking.AddCardToCollection(ctx, card, req.CollectionID, curator, opts)
}

// RemoveCardFromCollectionRequest unlinks a card from a collection.
type RemoveCardFromCollectionRequest struct {
	CardID         domain.CardID
	CollectionID   domain.CollectionID
	CuratorID      domain.CuratorID
	SkipPublishing bool
}

// RemoveCardFromCollection unlinks a card. The card itself may already be
// gone; only the link is touched.
func (c *Commands) RemoveCardFromCollection(ctx context.Context, req RemoveCardFromCollectionRequest) error {
	const op = "RemoveCardFromCollection"

	curator, err := parseCurator(op, req.CuratorID)
	if err != nil {
		return err
	}
	_, err = c.linking.RemoveCardFromCollection(ctx, req.CardID, req.CollectionID, curator, curation.CollectionOptions{
		SkipPublishing: req.SkipPublishing,
	})
	return err
}

// CreateCollectionRequest creates a collection authored by CuratorID.
type CreateCollectionRequest struct {
	CuratorID     domain.CuratorID
	Name          string
	Description   string
	AccessType    string
	Collaborators []domain.CuratorID

	PublishedRecordID *domain.PublishedRecordID
	SkipPublishing    bool
}

// CreateCollection creates and publishes a collection. When a record id
// is given and a collection already carries it, that collection is
// returned unchanged.
func (c *Commands) CreateCollection(ctx context.Context, req CreateCollectionRequest) (*domain.Collection, error) {
	const op = "CreateCollection"

	curator, err := parseCurator(op, req.CuratorID)
	if err != nil {
		return nil, err
	}

	if req.PublishedRecordID != nil {
		existing, err := c.collections.FindByPublishedRecordURI(ctx, req.PublishedRecordID.URI)
		if err != nil {
			return nil, domain.Unexpected(op, err)
		}
		if existing != nil {
			return existing, nil
		}
	}

	access := domain.AccessClosed
	if req.AccessType != "" {
		access, err = domain.ParseAccessType(req.AccessType)
		if err != nil {
			return nil, err
		}
	}

	collection, err := domain.NewCollection(domain.CollectionParams{
		AuthorID:      curator,
		Name:          req.Name,
		Description:   req.Description,
		AccessType:    access,
		Collaborators: req.Collaborators,
	})
	if err != nil {
		return nil, err
	}

	if err := c.stampCollection(ctx, op, collection, req.PublishedRecordID, req.SkipPublishing); err != nil {
		return nil, err
	}

	if err := c.collections.Save(ctx, collection); err != nil {
		return nil, domain.Unexpected(op, err)
	}

	c.logger.Debug("collection created",
		logger.String("collection_id", collection.ID().String()),
		logger.String("author", curator.String()))

	return collection, nil
}

// UpdateCollectionRequest changes a collection's details. Empty
// AccessType and nil Collaborators leave those fields as they are.
type UpdateCollectionRequest struct {
	CollectionID   domain.CollectionID
	CuratorID      domain.CuratorID
	Name           string
	Description    string
	AccessType     string
	Collaborators  []domain.CuratorID
	SkipPublishing bool
}

// UpdateCollection applies author-only changes and republishes the
// collection record if it was published.
func (c *Commands) UpdateCollection(ctx context.Context, req UpdateCollectionRequest) (*domain.Collection, error) {
	const op = "UpdateCollection"

	curator, err := parseCurator(op, req.CuratorID)
	if err != nil {
		return nil, err
	}

	unlock := c.locks.Lock(curation.CollectionKey(req.CollectionID))
	defer unlock()

	collection, err := c.loadCollection(ctx, op, req.CollectionID)
	if err != nil {
		return nil, err
	}

	if err := collection.UpdateDetails(curator, req.Name, req.Description); err != nil {
		return nil, err
	}
	if req.AccessType != "" {
		access, err := domain.ParseAccessType(req.AccessType)
		if err != nil {
			return nil, err
		}
		if err := collection.ChangeAccessType(curator, access); err != nil {
			return nil, err
		}
	}
	if req.Collaborators != nil {
		if err := syncCollaborators(collection, curator, req.Collaborators); err != nil {
			return nil, err
		}
	}

	if !req.SkipPublishing && collection.PublishedRecordID() != nil {
		rid, err := c.publisher.Publish(ctx, collection)
		if err != nil {
			return nil, domain.AsUnexpected(op, err)
		}
		if err := collection.MarkPublished(rid); err != nil {
			return nil, err
		}
	}

	if err := c.collections.Save(ctx, collection); err != nil {
		return nil, domain.Unexpected(op, err)
	}
	return collection, nil
}

func syncCollaborators(collection *domain.Collection, actor domain.CuratorID, want []domain.CuratorID) error {
	keep := make(map[domain.CuratorID]bool, len(want))
	for _, id := range want {
		keep[id] = true
		if err := collection.AddCollaborator(actor, id); err != nil {
			return err
		}
	}
	for _, id := range collection.Collaborators() {
		if !keep[id] {
			if err := collection.RemoveCollaborator(actor, id); err != nil {
				return err
			}
		}
	}
	return nil
}

// DeleteCollectionRequest deletes a collection.
type DeleteCollectionRequest struct {
	CollectionID   domain.CollectionID
	CuratorID      domain.CuratorID
	SkipPublishing bool
}

// DeleteCollection removes a collection. Published link records go first,
// then the collection record, then the local aggregate. Author-only.
func (c *Commands) DeleteCollection(ctx context.Context, req DeleteCollectionRequest) error {
	const op = "DeleteCollection"

	curator, err := parseCurator(op, req.CuratorID)
	if err != nil {
		return err
	}

	unlock := c.locks.Lock(curation.CollectionKey(req.CollectionID))
	defer unlock()

	collection, err := c.loadCollection(ctx, op, req.CollectionID)
	if err != nil {
		return err
	}
	if !collection.IsAuthor(curator) {
		return domain.Access(op, "only the author can delete collection "+string(collection.ID()))
	}

	if !req.SkipPublishing {
		for _, link := range collection.CardLinks() {
			if link.PublishedRecordID == nil {
				continue
			}
			if err := c.publisher.UnpublishCardAddedToCollection(ctx, *link.PublishedRecordID); err != nil {
				return domain.AsUnexpected(op, err)
			}
		}
		if rid := collection.PublishedRecordID(); rid != nil {
			if err := c.publisher.Unpublish(ctx, *rid); err != nil {
				return domain.AsUnexpected(op, err)
			}
		}
	}

	if err := c.collections.Delete(ctx, collection.ID()); err != nil {
		return domain.Unexpected(op, err)
	}

	c.logger.Debug("collection deleted",
		logger.String("collection_id", collection.ID().String()),
		logger.Int("card_links", collection.CardCount()))

	return nil
}

func (c *Commands) stampCollection(ctx context.Context, op string, collection *domain.Collection, rid *domain.PublishedRecordID, skip bool) error {
	if skip {
		if rid == nil {
			return nil
		}
		return collection.MarkPublished(*rid)
	}
	published, err := c.publisher.Publish(ctx, collection)
	if err != nil {
		return domain.AsUnexpected(op, err)
	}
	return collection.MarkPublished(published)
}

func (c *Commands) loadCollection(ctx context.Context, op string, id domain.CollectionID) (*domain.Collection, error) {
	collection, err := c.collections.FindByID(ctx, id)
	if err != nil {
		return nil, domain.Unexpected(op, err)
	}
	if collection == nil {
		return nil, domain.NotFound(op, "collection "+string(id)+" not found")
	}
	return collection, nil
}
