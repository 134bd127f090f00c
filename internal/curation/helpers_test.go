package curation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cosmik-network/cardsync/internal/domain"
	"github.com/cosmik-network/cardsync/internal/logger"
	"github.com/cosmik-network/cardsync/internal/publisher"
	"github.com/cosmik-network/cardsync/internal/store/memory"
)

const (
	alice domain.CuratorID = "did:plc:alice"
	bob   domain.CuratorID = "did:plc:bob"
	carol domain.CuratorID = "did:plc:carol"
)

type env struct {
	store    *memory.Store
	rec      *publisher.Recorder
	events   *LogDispatcher
	linking  *CardCollectionService
	library  *CardLibraryService
	resolver *AtURIResolutionService
}

func newEnv() *env {
	log := logger.New("error", false)
	store := memory.NewStore()
	rec := publisher.NewRecorder(log)
	events := NewLogDispatcher(log)
	linking := NewCardCollectionService(store.Collections(), rec, NewKeyedMutex(), events, log)
	return &env{
		store:    store,
		rec:      rec,
		events:   events,
		linking:  linking,
		library:  NewCardLibraryService(store.Cards(), store.Collections(), rec, linking, events, log),
		resolver: NewAtURIResolutionService(store.Cards(), store.Collections()),
	}
}

func newURLCard(t *testing.T, curator domain.CuratorID, raw string) *domain.Card {
	t.Helper()
	content, err := domain.NewURLContent(raw, nil)
	require.NoError(t, err)
	card, err := domain.NewCard(domain.CardParams{CuratorID: curator, Content: content})
	require.NoError(t, err)
	return card
}

func newNoteCard(t *testing.T, curator domain.CuratorID, parent *domain.Card, text string) *domain.Card {
	t.Helper()
	content, err := domain.NewNoteContent(text, "")
	require.NoError(t, err)
	parentID := parent.ID()
	card, err := domain.NewCard(domain.CardParams{
		CuratorID:    curator,
		Content:      content,
		ParentCardID: &parentID,
		URL:          parent.URL(),
	})
	require.NoError(t, err)
	return card
}

// addToLibrary adds a fresh card to curator's library through the service.
func (e *env) addToLibrary(t *testing.T, card *domain.Card, curator domain.CuratorID) *domain.Card {
	t.Helper()
	out, err := e.library.AddCardToLibrary(context.Background(), card, curator, LibraryOptions{})
	require.NoError(t, err)
	return out
}

func (e *env) saveCollection(t *testing.T, author domain.CuratorID, access domain.AccessType, collaborators ...domain.CuratorID) *domain.Collection {
	t.Helper()
	c, err := domain.NewCollection(domain.CollectionParams{
		AuthorID:      author,
		Name:          "Reading list",
		AccessType:    access,
		Collaborators: collaborators,
	})
	require.NoError(t, err)
	require.NoError(t, e.store.Collections().Save(context.Background(), c))
	return c
}

func (e *env) card(t *testing.T, id domain.CardID) *domain.Card {
	t.Helper()
	c, err := e.store.Cards().FindByID(context.Background(), id)
	require.NoError(t, err)
	return c
}

func (e *env) collection(t *testing.T, id domain.CollectionID) *domain.Collection {
	t.Helper()
	c, err := e.store.Collections().FindByID(context.Background(), id)
	require.NoError(t, err)
	return c
}

func rid(t *testing.T, uri string) domain.PublishedRecordID {
	t.Helper()
	r, err := domain.NewPublishedRecordID(uri, "bafyreitest")
	require.NoError(t, err)
	return r
}
