package scheduler

import (
	"github.com/cosmik-network/cardsync/internal/curation"
	"github.com/cosmik-network/cardsync/internal/logger"
	"github.com/cosmik-network/cardsync/internal/publisher"
	"github.com/cosmik-network/cardsync/internal/store/memory"
	"github.com/cosmik-network/cardsync/internal/usecase"
)

type testEnv struct {
	log      logger.Logger
	store    *memory.Store
	rec      *publisher.Recorder
	locks    *curation.KeyedMutex
	commands *usecase.Commands
}

func newTestEnv() *testEnv {
	log := logger.New("error", false)
	store := memory.NewStore()
	rec := publisher.NewRecorder(log)
	locks := curation.NewKeyedMutex()

	linking := curation.NewCardCollectionService(store.Collections(), rec, locks, nil, log)
	library := curation.NewCardLibraryService(store.Cards(), store.Collections(), rec, linking, nil, log)

	return &testEnv{
		log:   log,
		store: store,
		rec:   rec,
		locks: locks,
		commands: usecase.New(usecase.Deps{
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
