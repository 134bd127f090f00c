package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cosmik-network/cardsync/internal/curation"
	"github.com/cosmik-network/cardsync/internal/domain"
	"github.com/cosmik-network/cardsync/internal/logger"
	"github.com/cosmik-network/cardsync/internal/publisher"
	"github.com/cosmik-network/cardsync/internal/store/memory"
)

const (
	alice domain.CuratorID = "did:plc:alice"
	bob   domain.CuratorID = "did:plc:bob"
)

type env struct {
	store    *memory.Store
	rec      *publisher.Recorder
	locks    *curation.KeyedMutex
	commands *Commands
}

func newEnv() *env { return newEnvWith(nil) }

// newEnvWith routes library records through cards when set, otherwise
// through the shared recorder.
func newEnvWith(cards func(*publisher.Recorder) domain.CardPublisher) *env {
	log := logger.New("error", false)
	store := memory.NewStore()
	rec := publisher.NewRecorder(log)
	var cardPublisher domain.CardPublisher = rec
	if cards != nil {
		cardPublisher = cards(rec)
	}
	locks := curation.NewKeyedMutex()
	linking := curation.NewCardCollectionService(store.Collections(), rec, locks, nil, log)
	library := curation.NewCardLibraryService(store.Cards(), store.Collections(), cardPublisher, linking, nil, log)

	return &env{
		store: store,
		rec:   rec,
		locks: locks,
		commands: New(Deps{
			Cards:               store.Cards(),
			Collections:         store.Collections(),
			Library:             library,
			Linking:             linking,
			CollectionPublisher: rec,
			Locks:               locks,
			Logger:              log,
		}),
	}
}

func (e *env) addURL(t *testing.T, req AddURLToLibraryRequest) *AddURLToLibraryResponse {
	t.Helper()
	resp, err := e.commands.AddURLToLibrary(context.Background(), req)
	require.NoError(t, err)
	return resp
}

func (e *env) createCollection(t *testing.T, author domain.CuratorID, access string) *domain.Collection {
	t.Helper()
	c, err := e.commands.CreateCollection(context.Background(), CreateCollectionRequest{
		CuratorID:  author,
		Name:       "Reading list",
		AccessType: access,
	})
	require.NoError(t, err)
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

func mustRID(t *testing.T, uri string) *domain.PublishedRecordID {
	t.Helper()
	r, err := domain.NewPublishedRecordID(uri, "bafyreitest")
	require.NoError(t, err)
	return &r
}
