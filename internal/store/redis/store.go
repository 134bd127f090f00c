package redis

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists cards and collections as JSON snapshots with secondary
// indexes for the lookups the repositories need.
type Store struct {
	client *redis.Client
}

// NewStore creates a new Redis store
func NewStore(client *redis.Client) *Store {
	return &Store{
		client: client,
	}
}

// Cards returns the card repository backed by this store.
func (s *Store) Cards() *CardRepository { return &CardRepository{store: s} }

// Collections returns the collection repository backed by this store.
func (s *Store) Collections() *CollectionRepository { return &CollectionRepository{store: s} }

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	return nil
}

// Counts returns how many cards and collections are stored.
func (s *Store) Counts(ctx context.Context) (cards int64, collections int64, err error) {
	cards, err = s.client.SCard(ctx, KeyAllCards).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count cards: %w", err)
	}
	collections, err = s.client.SCard(ctx, KeyAllCollections).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count collections: %w", err)
	}
	return cards, collections, nil
}

// loadBlobs fetches the JSON values of keys, skipping missing ones.
func (s *Store) loadBlobs(ctx context.Context, keys []string) ([][]byte, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshots: %w", err)
	}
	out := make([][]byte, 0, len(vals))
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		out = append(out, []byte(str))
	}
	return out, nil
}

// indexDiff writes the new index entries and drops the stale ones.
func indexDiff(ctx context.Context, pipe redis.Pipeliner, old, current map[string]string) {
	for key := range old {
		if _, keep := current[key]; !keep {
			pipe.Del(ctx, key)
		}
	}
	for key, val := range current {
		pipe.Set(ctx, key, val, 0)
	}
}

func sortByCreation[T any](items []T, created func(T) time.Time, id func(T) string) {
	sort.Slice(items, func(i, j int) bool {
		ci, cj := created(items[i]), created(items[j])
		if !ci.Equal(cj) {
			return ci.Before(cj)
		}
		return id(items[i]) < id(items[j])
	})
}
