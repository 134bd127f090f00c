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

// CollectionRepository implements domain.CollectionRepository on Redis.
type CollectionRepository struct {
	store *Store
}

func (r *CollectionRepository) FindByID(ctx context.Context, id domain.CollectionID) (*domain.Collection, error) {
	state, err := r.state(ctx, id)
	if err != nil || state == nil {
		return nil, err
	}
	return restoreCollection(*state)
}

// Save stores the collection snapshot and refreshes its index entries.
func (r *CollectionRepository) Save(ctx context.Context, collection *domain.Collection) error {
	state := collection.State()
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal collection: %w", err)
	}

	previous, err := r.state(ctx, state.ID)
	if err != nil {
		return err
	}
	old := map[string]string{}
	if previous != nil {
		old = collectionIndex(*previous)
	}

	_, err = r.store.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, CollectionKey(string(state.ID)), data, 0)
		pipe.SAdd(ctx, KeyAllCollections, string(state.ID))
		pipe.SAdd(ctx, CuratorCollectionsKey(string(state.AuthorID)), string(state.ID))
		indexDiff(ctx, pipe, old, collectionIndex(state))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save collection: %w", err)
	}
	return nil
}

// Delete removes the collection and its index entries.
func (r *CollectionRepository) Delete(ctx context.Context, id domain.CollectionID) error {
	previous, err := r.state(ctx, id)
	if err != nil {
		return err
	}

	_, err = r.store.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, CollectionKey(string(id)))
		pipe.SRem(ctx, KeyAllCollections, string(id))
		if previous != nil {
			pipe.SRem(ctx, CuratorCollectionsKey(string(previous.AuthorID)), string(id))
			indexDiff(ctx, pipe, collectionIndex(*previous), nil)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	return nil
}

func (r *CollectionRepository) FindByCuratorContainingCard(ctx context.Context, curator domain.CuratorID, cardID domain.CardID) ([]*domain.Collection, error) {
	ids, err := r.store.client.SMembers(ctx, CuratorCollectionsKey(string(curator))).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get curator collections: %w", err)
	}
	states, err := r.load(ctx, ids)
	if err != nil {
		return nil, err
	}

	var out []*domain.Collection
	for _, s := range states {
		if s.AuthorID != curator {
			continue
		}
		c, err := restoreCollection(s)
		if err != nil {
			return nil, err
		}
		if c.HasCard(cardID) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *CollectionRepository) FindByPublishedRecordURI(ctx context.Context, uri string) (*domain.Collection, error) {
	return r.findByRef(ctx, uri, refCollection)
}

func (r *CollectionRepository) FindByCardLinkPublishedRecordURI(ctx context.Context, uri string) (*domain.Collection, error) {
	return r.findByRef(ctx, uri, refCollectionLink)
}

func (r *CollectionRepository) FindAll(ctx context.Context) ([]*domain.Collection, error) {
	ids, err := r.store.client.SMembers(ctx, KeyAllCollections).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get collection IDs: %w", err)
	}
	states, err := r.load(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Collection, 0, len(states))
	for _, s := range states {
		c, err := restoreCollection(s)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *CollectionRepository) findByRef(ctx context.Context, uri, want string) (*domain.Collection, error) {
	ref, err := r.store.client.Get(ctx, URIKey(uri)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to resolve uri: %w", err)
	}
	kind, id, err := parseRef(ref)
	if err != nil || kind != want {
		return nil, nil
	}
	return r.FindByID(ctx, domain.CollectionID(id))
}

func (r *CollectionRepository) load(ctx context.Context, ids []string) ([]domain.CollectionState, error) {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, CollectionKey(id))
	}
	blobs, err := r.store.loadBlobs(ctx, keys)
	if err != nil {
		return nil, err
	}

	states := make([]domain.CollectionState, 0, len(blobs))
	for _, b := range blobs {
		var s domain.CollectionState
		if err := json.Unmarshal(b, &s); err != nil {
			return nil, fmt.Errorf("failed to unmarshal collection: %w", err)
		}
		states = append(states, s)
	}
	sortByCreation(states,
		func(s domain.CollectionState) time.Time { return s.CreatedAt },
		func(s domain.CollectionState) string { return string(s.ID) })
	return states, nil
}

func (r *CollectionRepository) state(ctx context.Context, id domain.CollectionID) (*domain.CollectionState, error) {
	data, err := r.store.client.Get(ctx, CollectionKey(string(id))).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}
	var s domain.CollectionState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal collection: %w", err)
	}
	return &s, nil
}

// collectionIndex lists the URI index entries of a collection and its links.
func collectionIndex(s domain.CollectionState) map[string]string {
	idx := make(map[string]string)
	if s.PublishedRecordID != nil {
		idx[URIKey(s.PublishedRecordID.URI)] = refCollection + string(s.ID)
	}
	for _, l := range s.CardLinks {
		if l.PublishedRecordID != nil {
			idx[URIKey(l.PublishedRecordID.URI)] = refCollectionLink + string(s.ID)
		}
	}
	return idx
}

func restoreCollection(s domain.CollectionState) (*domain.Collection, error) {
	c, err := domain.RestoreCollection(s)
	if err != nil {
		return nil, fmt.Errorf("failed to restore collection %s: %w", s.ID, err)
	}
	return c, nil
}
