package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cosmik-network/cardsync/internal/domain"
)

// Store keeps card and collection snapshots in memory. Aggregates are
// copied in and out so callers never share state with the store.
type Store struct {
	mu          sync.RWMutex
	cards       map[domain.CardID]domain.CardState
	collections map[domain.CollectionID]domain.CollectionState
	writes      int64
	lastWrite   time.Time
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		cards:       make(map[domain.CardID]domain.CardState),
		collections: make(map[domain.CollectionID]domain.CollectionState),
	}
}

// Cards returns the card repository view of the store.
func (s *Store) Cards() *CardRepository { return &CardRepository{store: s} }

// Collections returns the collection repository view of the store.
func (s *Store) Collections() *CollectionRepository { return &CollectionRepository{store: s} }

// Writes returns the number of saves and deletes applied so far.
func (s *Store) Writes() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

// LastWrite returns the time of the last save or delete.
func (s *Store) LastWrite() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastWrite
}

// Counts returns how many cards and collections are stored.
func (s *Store) Counts() (cards int, collections int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cards), len(s.collections)
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error { return nil }

func (s *Store) touch() {
	s.writes++
	s.lastWrite = time.Now()
}

// ─────────────────────────────────────────────────────────────────
// Cards
// ─────────────────────────────────────────────────────────────────

// CardRepository implements domain.CardRepository over a Store.
type CardRepository struct {
	store *Store
}

func (r *CardRepository) FindByID(ctx context.Context, id domain.CardID) (*domain.Card, error) {
	r.store.mu.RLock()
	state, ok := r.store.cards[id]
	r.store.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return domain.RestoreCard(state)
}

func (r *CardRepository) Save(ctx context.Context, card *domain.Card) error {
	state := card.State()
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.cards[state.ID] = state
	r.store.touch()
	return nil
}

func (r *CardRepository) Delete(ctx context.Context, id domain.CardID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.cards[id]; !ok {
		return nil
	}
	delete(r.store.cards, id)
	r.store.touch()
	return nil
}

func (r *CardRepository) FindUsersURLCard(ctx context.Context, curator domain.CuratorID, url domain.URL) (*domain.Card, error) {
	return r.findOne(func(s domain.CardState) bool {
		return s.Type == domain.CardTypeURL && s.CuratorID == curator && s.URL != nil && *s.URL == url
	})
}

func (r *CardRepository) FindUsersNoteCardByURL(ctx context.Context, curator domain.CuratorID, url domain.URL) (*domain.Card, error) {
	return r.findOne(func(s domain.CardState) bool {
		return s.Type == domain.CardTypeNote && s.CuratorID == curator && s.URL != nil && *s.URL == url
	})
}

func (r *CardRepository) FindByPublishedRecordURI(ctx context.Context, uri string) (*domain.Card, error) {
	return r.findOne(func(s domain.CardState) bool {
		if s.PublishedRecordID != nil && s.PublishedRecordID.URI == uri {
			return true
		}
		for _, m := range s.Memberships {
			if m.PublishedRecordID != nil && m.PublishedRecordID.URI == uri {
				return true
			}
		}
		return false
	})
}

func (r *CardRepository) FindAll(ctx context.Context) ([]*domain.Card, error) {
	states := r.snapshot()
	cards := make([]*domain.Card, 0, len(states))
	for _, s := range states {
		card, err := domain.RestoreCard(s)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	return cards, nil
}

// Count returns the number of stored cards
func (r *CardRepository) Count() int {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return len(r.store.cards)
}

func (r *CardRepository) findOne(match func(domain.CardState) bool) (*domain.Card, error) {
	for _, s := range r.snapshot() {
		if match(s) {
			return domain.RestoreCard(s)
		}
	}
	return nil, nil
}

// snapshot returns the card states ordered by creation time then id.
func (r *CardRepository) snapshot() []domain.CardState {
	r.store.mu.RLock()
	states := make([]domain.CardState, 0, len(r.store.cards))
	for _, s := range r.store.cards {
		states = append(states, s)
	}
	r.store.mu.RUnlock()

	sort.Slice(states, func(i, j int) bool {
		if !states[i].CreatedAt.Equal(states[j].CreatedAt) {
			return states[i].CreatedAt.Before(states[j].CreatedAt)
		}
		return states[i].ID < states[j].ID
	})
	return states
}

// ─────────────────────────────────────────────────────────────────
// Collections
// ─────────────────────────────────────────────────────────────────

// CollectionRepository implements domain.CollectionRepository over a Store.
type CollectionRepository struct {
	store *Store
}

func (r *CollectionRepository) FindByID(ctx context.Context, id domain.CollectionID) (*domain.Collection, error) {
	r.store.mu.RLock()
	state, ok := r.store.collections[id]
	r.store.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return domain.RestoreCollection(state)
}

func (r *CollectionRepository) Save(ctx context.Context, collection *domain.Collection) error {
	state := collection.State()
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.collections[state.ID] = state
	r.store.touch()
	return nil
}

func (r *CollectionRepository) Delete(ctx context.Context, id domain.CollectionID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.collections[id]; !ok {
		return nil
	}
	delete(r.store.collections, id)
	r.store.touch()
	return nil
}

func (r *CollectionRepository) FindByCuratorContainingCard(ctx context.Context, curator domain.CuratorID, cardID domain.CardID) ([]*domain.Collection, error) {
	var out []*domain.Collection
	for _, s := range r.snapshot() {
		if s.AuthorID != curator || !hasLink(s, cardID) {
			continue
		}
		c, err := domain.RestoreCollection(s)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *CollectionRepository) FindByPublishedRecordURI(ctx context.Context, uri string) (*domain.Collection, error) {
	for _, s := range r.snapshot() {
		if s.PublishedRecordID != nil && s.PublishedRecordID.URI == uri {
			return domain.RestoreCollection(s)
		}
	}
	return nil, nil
}

func (r *CollectionRepository) FindByCardLinkPublishedRecordURI(ctx context.Context, uri string) (*domain.Collection, error) {
	for _, s := range r.snapshot() {
		for _, l := range s.CardLinks {
			if l.PublishedRecordID != nil && l.PublishedRecordID.URI == uri {
				return domain.RestoreCollection(s)
			}
		}
	}
	return nil, nil
}

func (r *CollectionRepository) FindAll(ctx context.Context) ([]*domain.Collection, error) {
	states := r.snapshot()
	out := make([]*domain.Collection, 0, len(states))
	for _, s := range states {
		c, err := domain.RestoreCollection(s)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Count returns the number of stored collections
func (r *CollectionRepository) Count() int {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return len(r.store.collections)
}

func (r *CollectionRepository) snapshot() []domain.CollectionState {
	r.store.mu.RLock()
	states := make([]domain.CollectionState, 0, len(r.store.collections))
	for _, s := range r.store.collections {
		states = append(states, s)
	}
	r.store.mu.RUnlock()

	sort.Slice(states, func(i, j int) bool {
		if !states[i].CreatedAt.Equal(states[j].CreatedAt) {
			return states[i].CreatedAt.Before(states[j].CreatedAt)
		}
		return states[i].ID < states[j].ID
	})
	return states
}

func hasLink(s domain.CollectionState, cardID domain.CardID) bool {
	for _, l := range s.CardLinks {
		if l.CardID == cardID {
			return true
		}
	}
	return false
}
