// Package usecase holds the command entry points that load aggregates,
// run them through the curation services and report typed errors.
package usecase

import (
	"github.com/cosmik-network/cardsync/internal/curation"
	"github.com/cosmik-network/cardsync/internal/domain"
	"github.com/cosmik-network/cardsync/internal/logger"
)

// Deps carries what the commands need.
type Deps struct {
	Cards               domain.CardRepository
	Collections         domain.CollectionRepository
	Library             *curation.CardLibraryService
	Linking             *curation.CardCollectionService
	CollectionPublisher domain.CollectionPublisher
	Locks               *curation.KeyedMutex
	Logger              logger.Logger
}

// Commands groups the library and collection use cases.
type Commands struct {
	cards       domain.CardRepository
	collections domain.CollectionRepository
	library     *curation.CardLibraryService
	linking     *curation.CardCollectionService
	publisher   domain.CollectionPublisher
	locks       *curation.KeyedMutex
	logger      logger.Logger
}

// New builds Commands from d. d.Locks must be the same KeyedMutex the
// CardCollectionService uses.
func New(d Deps) *Commands {
	locks := d.Locks
	if locks == nil {
		locks = curation.NewKeyedMutex()
	}
	return &Commands{
		cards:       d.Cards,
		collections: d.Collections,
		library:     d.Library,
		linking:     d.Linking,
		publisher:   d.CollectionPublisher,
		locks:       locks,
		logger:      d.Logger,
	}
}

func parseCurator(op string, id domain.CuratorID) (domain.CuratorID, error) {
	curator, err := domain.ParseCuratorID(string(id))
	if err != nil {
		return "", domain.Validation(op, "invalid curator did: "+string(id))
	}
	return curator, nil
}
