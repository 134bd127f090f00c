package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cosmik-network/cardsync/internal/domain"
)

// CardRepository implements domain.CardRepository on Redis.
type CardRepository struct {
	store *Store
}

func (r *CardRepository) FindByID(ctx context.Context, id domain.CardID) (*domain.Card, error) {
	state, err := r.state(ctx, id)
	if err != nil || state == nil {
		return nil, err
	}
	return restoreCard(*state)
}

// Save stores the card snapshot and refreshes its index entries.
func (r *CardRepository) Save(ctx context.Context, card *domain.Card) error {
	state := card.State()
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal card: %w", err)
	}

	previous, err := r.state(ctx, state.ID)
	if err != nil {
		return err
	}
	old := map[string]string{}
	if previous != nil {
		old = cardIndex(*previous)
	}

	_, err = r.store.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, CardKey(string(state.ID)), data, 0)
		pipe.SAdd(ctx, KeyAllCards, string(state.ID))
		indexDiff(ctx, pipe, old, cardIndex(state))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save card: %w", err)
	}
	return nil
}

// Delete removes the card and its index entries. Deleting a missing card
// is a no-op.
func (r *CardRepository) Delete(ctx context.Context, id domain.CardID) error {
	previous, err := r.state(ctx, id)
	if err != nil {
		return err
	}

	_, err = r.store.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, CardKey(string(id)))
		pipe.SRem(ctx, KeyAllCards, string(id))
		if previous != nil {
			indexDiff(ctx, pipe, cardIndex(*previous), nil)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete card: %w", err)
	}
	return nil
}

func (r *CardRepository) FindUsersURLCard(ctx context.Context, curator domain.CuratorID, url domain.URL) (*domain.Card, error) {
	return r.findVia(ctx, URLCardKey(string(curator), string(url)), func(c *domain.Card) bool {
		return c.IsURLCard() && c.CuratorID() == curator
	})
}

func (r *CardRepository) FindUsersNoteCardByURL(ctx context.Context, curator domain.CuratorID, url domain.URL) (*domain.Card, error) {
	return r.findVia(ctx, NoteCardKey(string(curator), string(url)), func(c *domain.Card) bool {
		return c.IsNoteCard() && c.CuratorID() == curator
	})
}

func (r *CardRepository) FindByPublishedRecordURI(ctx context.Context, uri string) (*domain.Card, error) {
	ref, err := r.store.client.Get(ctx, URIKey(uri)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to resolve uri: %w", err)
	}
	kind, id, err := parseRef(ref)
	if err != nil || kind != refCard {
		return nil, nil
	}
	return r.FindByID(ctx, domain.CardID(id))
}

func (r *CardRepository) FindAll(ctx context.Context) ([]*domain.Card, error) {
	states, err := r.all(ctx)
	if err != nil {
		return nil, err
	}
	cards := make([]*domain.Card, 0, len(states))
	for _, s := range states {
		card, err := restoreCard(s)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	return cards, nil
}

func (r *CardRepository) all(ctx context.Context) ([]domain.CardState, error) {
	ids, err := r.store.client.SMembers(ctx, KeyAllCards).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get card IDs: %w", err)
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, CardKey(id))
	}
	blobs, err := r.store.loadBlobs(ctx, keys)
	if err != nil {
		return nil, err
	}

	states := make([]domain.CardState, 0, len(blobs))
	for _, b := range blobs {
		var s domain.CardState
		if err := json.Unmarshal(b, &s); err != nil {
			return nil, fmt.Errorf("failed to unmarshal card: %w", err)
		}
		states = append(states, s)
	}
	sortByCreation(states,
		func(s domain.CardState) time.Time { return s.CreatedAt },
		func(s domain.CardState) string { return string(s.ID) })
	return states, nil
}

func (r *CardRepository) state(ctx context.Context, id domain.CardID) (*domain.CardState, error) {
	data, err := r.store.client.Get(ctx, CardKey(string(id))).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get card: %w", err)
	}
	var s domain.CardState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal card: %w", err)
	}
	return &s, nil
}

// findVia follows a lookup key to a card id and checks the card still
// matches. Stale entries read as a miss.
func (r *CardRepository) findVia(ctx context.Context, key string, match func(*domain.Card) bool) (*domain.Card, error) {
	id, err := r.store.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read card lookup: %w", err)
	}
	card, err := r.FindByID(ctx, domain.CardID(id))
	if err != nil || card == nil {
		return nil, err
	}
	if !match(card) {
		return nil, nil
	}
	return card, nil
}

// cardIndex lists every secondary key that should point at the card.
func cardIndex(s domain.CardState) map[string]string {
	idx := make(map[string]string)
	ref := refCard + string(s.ID)
	if s.PublishedRecordID != nil {
		idx[URIKey(s.PublishedRecordID.URI)] = ref
	}
	for _, m := range s.Memberships {
		if m.PublishedRecordID != nil {
			idx[URIKey(m.PublishedRecordID.URI)] = ref
		}
	}
	if s.URL != nil {
		switch s.Type {
		case domain.CardTypeURL:
			idx[URLCardKey(string(s.CuratorID), string(*s.URL))] = string(s.ID)
		case domain.CardTypeNote:
			idx[NoteCardKey(string(s.CuratorID), string(*s.URL))] = string(s.ID)
		}
	}
	return idx
}

func restoreCard(s domain.CardState) (*domain.Card, error) {
	card, err := domain.RestoreCard(s)
	if err != nil {
		return nil, fmt.Errorf("failed to restore card %s: %w", s.ID, err)
	}
	return card, nil
}
