package usecase

import (
	"context"

	"github.com/cosmik-network/cardsync/internal/curation"
	"github.com/cosmik-network/cardsync/internal/domain"
	"github.com/cosmik-network/cardsync/internal/logger"
)

// AddURLToLibraryRequest adds a URL (and optionally a note on it) to a
// curator's library.
type AddURLToLibraryRequest struct {
	URL           string
	CuratorID     domain.CuratorID
	Metadata      *domain.URLMetadata
	Note          string
	CollectionIDs []domain.CollectionID

	// Records already written remotely; stamped when SkipPublishing is set.
	PublishedRecordID     *domain.PublishedRecordID
	NotePublishedRecordID *domain.PublishedRecordID
	SkipPublishing        bool
}

// AddURLToLibraryResponse identifies the cards touched.
type AddURLToLibraryResponse struct {
	URLCardID  domain.CardID
	NoteCardID *domain.CardID
}

// AddURLToLibrary finds or creates the curator's URL card, adds it to the
// library, attaches the note and links the card into the given collections.
func (c *Commands) AddURLToLibrary(ctx context.Context, req AddURLToLibraryRequest) (*AddURLToLibraryResponse, error) {
	const op = "AddURLToLibrary"

	curator, err := parseCurator(op, req.CuratorID)
	if err != nil {
		return nil, err
	}
	content, err := domain.NewURLContent(req.URL, req.Metadata)
	if err != nil {
		return nil, err
	}

	unlockURL := c.locks.Lock(curation.URLKey(curator, content.URL))
	defer unlockURL()

	card, err := c.cards.FindUsersURLCard(ctx, curator, content.URL)
	if err != nil {
		return nil, domain.Unexpected(op, err)
	}
	if card != nil {
		unlockCard := c.locks.Lock(curation.CardKey(card.ID()))
		defer unlockCard()
		if card, err = c.reloadCard(ctx, op, card.ID()); err != nil {
			return nil, err
		}
	}
	if card == nil {
		card, err = domain.NewCard(domain.CardParams{CuratorID: curator, Content: content})
		if err != nil {
			return nil, err
		}
	}

	card, err = c.library.AddCardToLibrary(ctx, card, curator, curation.LibraryOptions{
		SkipPublishing:    req.SkipPublishing,
		PublishedRecordID: req.PublishedRecordID,
	})
	if err != nil {
		return nil, err
	}

	resp := &AddURLToLibraryResponse{URLCardID: card.ID()}

	if req.Note != "" {
		note, err := c.upsertNote(ctx, op, card, curator, req.Note, req.NotePublishedRecordID, req.SkipPublishing)
		if err != nil {
			return nil, err
		}
		id := note.ID()
		resp.NoteCardID = &id
	}

	if len(req.CollectionIDs) > 0 {
		if _, err := c.linking.AddCardToCollections(ctx, card, req.CollectionIDs, curator, curation.CollectionOptions{
			SkipPublishing: req.SkipPublishing,
		}); err != nil {
			return nil, err
		}
	}

	c.logger.Debug("url added to library",
		logger.String("card_id", card.ID().String()),
		logger.String("curator", curator.String()),
		logger.String("url", content.URL.String()))

	return resp, nil
}

// upsertNote creates the curator's note on urlCard's URL or replaces the
// text of the existing one.
func (c *Commands) upsertNote(
	ctx context.Context,
	op string,
	urlCard *domain.Card,
	curator domain.CuratorID,
	text string,
	rid *domain.PublishedRecordID,
	skip bool,
) (*domain.Card, error) {
	u := urlCard.URL()
	if u == nil {
		return nil, domain.Validation(op, "card "+string(urlCard.ID())+" has no url")
	}

	existing, err := c.cards.FindUsersNoteCardByURL(ctx, curator, *u)
	if err != nil {
		return nil, domain.Unexpected(op, err)
	}
	if existing != nil {
		// Locked after the url card held by the caller.
		unlock := c.locks.Lock(curation.CardKey(existing.ID()))
		defer unlock()
		if existing, err = c.reloadCard(ctx, op, existing.ID()); err != nil {
			return nil, err
		}
	}

	if existing != nil {
		title := ""
		if nc, ok := existing.Content().(domain.NoteContent); ok {
			title = nc.Title
		}
		content, err := domain.NewNoteContent(text, title)
		if err != nil {
			return nil, err
		}
		if err := existing.UpdateContent(content); err != nil {
			return nil, err
		}
		if !existing.IsInLibrary(curator) {
			return c.library.AddCardToLibrary(ctx, existing, curator, curation.LibraryOptions{SkipPublishing: skip, PublishedRecordID: rid})
		}
		return c.library.UpdateCardInLibrary(ctx, existing, curator, curation.LibraryOptions{SkipPublishing: skip})
	}

	content, err := domain.NewNoteContent(text, "")
	if err != nil {
		return nil, err
	}
	parentID := urlCard.ID()
	note, err := domain.NewCard(domain.CardParams{
		CuratorID:    curator,
		Content:      content,
		ParentCardID: &parentID,
		URL:          u,
	})
	if err != nil {
		return nil, err
	}
	return c.library.AddCardToLibrary(ctx, note, curator, curation.LibraryOptions{SkipPublishing: skip, PublishedRecordID: rid})
}

// UpdateURLCardAssociationsRequest changes what hangs off a URL card: the
// curator's note and the collections it is linked into.
type UpdateURLCardAssociationsRequest struct {
	CardID                domain.CardID
	CuratorID             domain.CuratorID
	Note                  *string
	AddToCollections      []domain.CollectionID
	RemoveFromCollections []domain.CollectionID

	NotePublishedRecordID *domain.PublishedRecordID
	CollectionLinkRecords map[domain.CollectionID]domain.PublishedRecordID
	SkipPublishing        bool
}

// UpdateURLCardAssociationsResponse reports the resulting associations.
type UpdateURLCardAssociationsResponse struct {
	URLCardID   domain.CardID
	NoteCardID  *domain.CardID
	AddedTo     []domain.CollectionID
	RemovedFrom []domain.CollectionID
}

// UpdateURLCardAssociations creates the curator's note if none exists,
// otherwise updates its text, then applies the collection changes.
func (c *Commands) UpdateURLCardAssociations(ctx context.Context, req UpdateURLCardAssociationsRequest) (*UpdateURLCardAssociationsResponse, error) {
	const op = "UpdateURLCardAssociations"

	curator, err := parseCurator(op, req.CuratorID)
	if err != nil {
		return nil, err
	}

	unlock := c.locks.Lock(curation.CardKey(req.CardID))
	defer unlock()

	card, err := c.loadCard(ctx, op, req.CardID)
	if err != nil {
		return nil, err
	}
	if !card.IsURLCard() {
		return nil, domain.Validation(op, "card "+string(card.ID())+" is not a url card")
	}
	if !card.IsInLibrary(curator) {
		return nil, domain.Validation(op, "card "+string(card.ID())+" is not in the library of "+string(curator))
	}

	resp := &UpdateURLCardAssociationsResponse{URLCardID: card.ID()}

	if req.Note != nil {
		note, err := c.upsertNote(ctx, op, card, curator, *req.Note, req.NotePublishedRecordID, req.SkipPublishing)
		if err != nil {
			return nil, err
		}
		id := note.ID()
		resp.NoteCardID = &id
	}

	if len(req.AddToCollections) > 0 {
		added, err := c.linking.AddCardToCollections(ctx, card, req.AddToCollections, curator, curation.CollectionOptions{
			SkipPublishing:     req.SkipPublishing,
			PublishedRecordIDs: req.CollectionLinkRecords,
		})
		if err != nil {
			return nil, err
		}
		for _, col := range added {
			resp.AddedTo = append(resp.AddedTo, col.ID())
		}
	}

	if len(req.RemoveFromCollections) > 0 {
		removed, err := c.linking.RemoveCardFromCollections(ctx, card.ID(), req.RemoveFromCollections, curator, curation.CollectionOptions{
			SkipPublishing: req.SkipPublishing,
		})
		if err != nil {
			return nil, err
		}
		for _, col := range removed {
			resp.RemovedFrom = append(resp.RemovedFrom, col.ID())
		}
	}

	return resp, nil
}

// UpdateNoteCardRequest replaces the text of a note card.
type UpdateNoteCardRequest struct {
	CardID         domain.CardID
	CuratorID      domain.CuratorID
	Text           string
	SkipPublishing bool
}

// UpdateNoteCard rewrites a note's text. Only the note's author may edit it.
func (c *Commands) UpdateNoteCard(ctx context.Context, req UpdateNoteCardRequest) (*domain.Card, error) {
	const op = "UpdateNoteCard"

	curator, err := parseCurator(op, req.CuratorID)
	if err != nil {
		return nil, err
	}

	unlock := c.locks.Lock(curation.CardKey(req.CardID))
	defer unlock()

	card, err := c.loadCard(ctx, op, req.CardID)
	if err != nil {
		return nil, err
	}
	if !card.IsNoteCard() {
		return nil, domain.Validation(op, "card "+string(card.ID())+" is not a note card")
	}
	if card.CuratorID() != curator {
		return nil, domain.Access(op, "only the author can edit note "+string(card.ID()))
	}

	title := ""
	if nc, ok := card.Content().(domain.NoteContent); ok {
		title = nc.Title
	}
	content, err := domain.NewNoteContent(req.Text, title)
	if err != nil {
		return nil, err
	}
	if err := card.UpdateContent(content); err != nil {
		return nil, err
	}

	return c.library.UpdateCardInLibrary(ctx, card, curator, curation.LibraryOptions{SkipPublishing: req.SkipPublishing})
}

// RemoveCardFromLibraryRequest drops a card from a curator's library.
type RemoveCardFromLibraryRequest struct {
	CardID         domain.CardID
	CuratorID      domain.CuratorID
	SkipPublishing bool
}

// RemoveCardFromLibrary removes the curator's membership with all cascades.
// A card that no longer exists is in nobody's library, so removing it again
// succeeds without side effects.
func (c *Commands) RemoveCardFromLibrary(ctx context.Context, req RemoveCardFromLibraryRequest) error {
	const op = "RemoveCardFromLibrary"

	curator, err := parseCurator(op, req.CuratorID)
	if err != nil {
		return err
	}
	if _, err := domain.ParseCardID(string(req.CardID)); err != nil {
		return err
	}

	unlock := c.locks.Lock(curation.CardKey(req.CardID))
	defer unlock()

	card, err := c.reloadCard(ctx, op, req.CardID)
	if err != nil || card == nil {
		return err
	}

	_, err = c.library.RemoveCardFromLibrary(ctx, card, curator, curation.LibraryOptions{SkipPublishing: req.SkipPublishing})
	return err
}

// reloadCard reads the stored card, nil when it is gone. Callers hold the
// card lock so the result is current.
func (c *Commands) reloadCard(ctx context.Context, op string, id domain.CardID) (*domain.Card, error) {
	card, err := c.cards.FindByID(ctx, id)
	if err != nil {
		return nil, domain.Unexpected(op, err)
	}
	return card, nil
}

func (c *Commands) loadCard(ctx context.Context, op string, id domain.CardID) (*domain.Card, error) {
	card, err := c.cards.FindByID(ctx, id)
	if err != nil {
		return nil, domain.Unexpected(op, err)
	}
	if card == nil {
		return nil, domain.NotFound(op, "card "+string(id)+" not found")
	}
	return card, nil
}
