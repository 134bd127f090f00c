package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RebuildIndex drops every secondary key and rewrites it from the stored
// snapshots. It returns the number of index entries written.
func (s *Store) RebuildIndex(ctx context.Context) (int, error) {
	cards, err := s.Cards().all(ctx)
	if err != nil {
		return 0, err
	}
	ids, err := s.client.SMembers(ctx, KeyAllCollections).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get collection IDs: %w", err)
	}
	collections, err := s.Collections().load(ctx, ids)
	if err != nil {
		return 0, err
	}

	for _, pattern := range []string{KeyPrefixURI + "*", "cardsync:urlcard:*", "cardsync:notecard:*", "cardsync:curator:*"} {
		if err := s.deleteMatching(ctx, pattern); err != nil {
			return 0, err
		}
	}

	written := 0
	pipe := s.client.Pipeline()
	for _, c := range cards {
		for key, val := range cardIndex(c) {
			pipe.Set(ctx, key, val, 0)
			written++
		}
	}
	for _, c := range collections {
		pipe.SAdd(ctx, CuratorCollectionsKey(string(c.AuthorID)), string(c.ID))
		for key, val := range collectionIndex(c) {
			pipe.Set(ctx, key, val, 0)
			written++
		}
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("failed to rebuild uri index: %w", err)
	}
	return written, nil
}

func (s *Store) deleteMatching(ctx context.Context, pattern string) error {
	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to delete index key: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan index keys: %w", err)
	}
	return nil
}
