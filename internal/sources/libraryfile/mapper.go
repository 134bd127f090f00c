package libraryfile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cosmik-network/cardsync/internal/domain"
	"github.com/cosmik-network/cardsync/internal/usecase"
)

// ErrNoItems is returned when a file holds no usable item.
var ErrNoItems = errors.New("no valid items found in import file")

// Mapper converts an import file to library requests
type Mapper struct{}

// NewMapper creates a new mapper
func NewMapper() *Mapper {
	return &Mapper{}
}

// MapItems builds one AddURLToLibrary request per item. Items without a
// url are skipped; a bad curator or collection id fails the whole file.
func (m *Mapper) MapItems(file File) ([]usecase.AddURLToLibraryRequest, error) {
	curator, err := domain.ParseCuratorID(strings.TrimSpace(file.Curator))
	if err != nil {
		return nil, fmt.Errorf("invalid curator %q: %w", file.Curator, err)
	}

	requests := make([]usecase.AddURLToLibraryRequest, 0, len(file.Items))
	for i, item := range file.Items {
		raw := strings.TrimSpace(item.URL)
		if raw == "" {
			continue
		}

		collections := make([]domain.CollectionID, 0, len(item.Collections))
		for _, c := range item.Collections {
			id, err := domain.ParseCollectionID(strings.TrimSpace(c))
			if err != nil {
				return nil, fmt.Errorf("item %d: invalid collection id %q: %w", i, c, err)
			}
			collections = append(collections, id)
		}

		requests = append(requests, usecase.AddURLToLibraryRequest{
			URL:           raw,
			CuratorID:     curator,
			Metadata:      metadata(item),
			Note:          strings.TrimSpace(item.Note),
			CollectionIDs: collections,
		})
	}

	if len(requests) == 0 {
		return nil, ErrNoItems
	}
	return requests, nil
}

func metadata(item Item) *domain.URLMetadata {
	if item.Title == "" && item.Description == "" {
		return nil
	}
	return &domain.URLMetadata{
		Title:       item.Title,
		Description: item.Description,
	}
}
