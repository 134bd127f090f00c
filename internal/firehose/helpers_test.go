package firehose

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cosmik-network/cardsync/internal/curation"
	"github.com/cosmik-network/cardsync/internal/domain"
	"github.com/cosmik-network/cardsync/internal/logger"
	"github.com/cosmik-network/cardsync/internal/publisher"
	"github.com/cosmik-network/cardsync/internal/store/memory"
	"github.com/cosmik-network/cardsync/internal/usecase"
)

const (
	alice domain.CuratorID = "did:plc:alice"
	bob   domain.CuratorID = "did:plc:bob"
)

type env struct {
	store      *memory.Store
	rec        *publisher.Recorder
	resolver   *curation.AtURIResolutionService
	dispatcher *Dispatcher
}

func newEnv() *env {
	log := logger.New("error", false)
	store := memory.NewStore()
	rec := publisher.NewRecorder(log)
	locks := curation.NewKeyedMutex()
	linking := curation.NewCardCollectionService(store.Collections(), rec, locks, nil, log)
	library := curation.NewCardLibraryService(store.Cards(), store.Collections(), rec, linking, nil, log)
	resolver := curation.NewAtURIResolutionService(store.Cards(), store.Collections())
	commands := usecase.New(usecase.Deps{
		Cards:               store.Cards(),
		Collections:         store.Collections(),
		Library:             library,
		Linking:             linking,
		CollectionPublisher: rec,
		Locks:               locks,
		Logger:              log,
	})

	d := NewDispatcher(log)
	d.Handle(domain.CardNSID, NewCardEventProcessor(commands, resolver, log))
	d.Handle(domain.CollectionLinkNSID, NewCollectionLinkEventProcessor(commands, resolver, log))
	d.Handle(domain.CollectionNSID, NewCollectionEventProcessor(commands, resolver, log))

	return &env{store: store, rec: rec, resolver: resolver, dispatcher: d}
}

func cid(s string) *string { return &s }

func record(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func createEvent(t *testing.T, uri string, v any) Event {
	return Event{AtURI: uri, CID: cid("bafyrei" + uri[len(uri)-5:]), EventType: EventCreate, Record: record(t, v)}
}

func urlCardRecord(u string) CardRecord {
	return CardRecord{Type: "URL", Content: CardRecordContent{URL: u, Metadata: &domain.URLMetadata{Title: "Example"}}}
}

func noteRecord(parentURI, text string) CardRecord {
	return CardRecord{
		Type:       "NOTE",
		Content:    CardRecordContent{Text: text},
		ParentCard: &StrongRef{URI: parentURI, CID: "bafyreiparent"},
	}
}
