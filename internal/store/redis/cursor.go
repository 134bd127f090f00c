package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// CursorStore keeps the Jetstream cursor in Redis.
type CursorStore struct {
	client *redis.Client
	key    string
}

// NewCursorStore stores the cursor under KeyJetstreamCursor.
func NewCursorStore(client *redis.Client) *CursorStore {
	return &CursorStore{client: client, key: KeyJetstreamCursor}
}

// LoadCursor returns 0 when no cursor has been saved yet.
func (c *CursorStore) LoadCursor(ctx context.Context) (int64, error) {
	val, err := c.client.Get(ctx, c.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get cursor: %w", err)
	}
	cursor, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse cursor %q: %w", val, err)
	}
	return cursor, nil
}

func (c *CursorStore) SaveCursor(ctx context.Context, cursor int64) error {
	if err := c.client.Set(ctx, c.key, strconv.FormatInt(cursor, 10), 0).Err(); err != nil {
		return fmt.Errorf("failed to save cursor: %w", err)
	}
	return nil
}
