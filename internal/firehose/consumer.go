package firehose

import (
	"context"
	"errors"
	"hash/fnv"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cosmik-network/cardsync/internal/logger"
)

const (
	DefaultShards      = 4
	DefaultShardBuffer = 64
	defaultRetryPause  = 2 * time.Second
)

// Source yields events one at a time. io.EOF ends the stream.
type Source interface {
	Next(ctx context.Context) (Event, error)
}

// Acknowledger is implemented by sources that persist a read position.
// Ack is called once an event returned by Next has been dispatched.
type Acknowledger interface {
	Ack(ev Event)
}

// Consumer reads a Source and dispatches events on a fixed set of shards.
// Events from one repository always land on the same shard so they are
// applied in the order the source delivered them.
type Consumer struct {
	source     Source
	dispatcher *Dispatcher
	logger     logger.Logger
	shards     int
	buffer     int
	retryPause time.Duration

	received  atomic.Int64
	processed atomic.Int64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewConsumer creates a consumer. Non-positive shards or buffer fall back
// to the defaults.
func NewConsumer(source Source, dispatcher *Dispatcher, log logger.Logger, shards, buffer int) *Consumer {
	if shards <= 0 {
		shards = DefaultShards
	}
	if buffer <= 0 {
		buffer = DefaultShardBuffer
	}
	return &Consumer{
		source:     source,
		dispatcher: dispatcher,
		logger:     log,
		shards:     shards,
		buffer:     buffer,
		retryPause: defaultRetryPause,
	}
}

// Start runs the consumer in the background until Stop or ctx ends.
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return errors.New("consumer already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})

	go func() {
		defer close(c.done)
		if err := c.Run(runCtx); err != nil {
			c.logger.Error("firehose consumer stopped", logger.Error(err))
		}
	}()

	c.logger.Info("firehose consumer started",
		logger.Int("shards", c.shards),
		logger.Int("buffer", c.buffer))
	return nil
}

// Stop cancels the consumer and waits for in-flight events to finish.
func (c *Consumer) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()
	if cancel == nil {
		return
	}

	cancel()
	if closer, ok := c.source.(io.Closer); ok {
		_ = closer.Close()
	}
	<-done
}

// Run blocks until the source is exhausted or ctx ends.
func (c *Consumer) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	ack, _ := c.source.(Acknowledger)

	queues := make([]chan Event, c.shards)
	for i := range queues {
		q := make(chan Event, c.buffer)
		queues[i] = q
		g.Go(func() error {
			for ev := range q {
				// Drain with a context that survives shutdown.
				c.dispatcher.Dispatch(context.WithoutCancel(gctx), ev)
				c.processed.Add(1)
				if ack != nil {
					ack.Ack(ev)
				}
			}
			return nil
		})
	}

	g.Go(func() error {
		defer func() {
			for _, q := range queues {
				close(q)
			}
		}()
		return c.read(gctx, queues)
	})

	return g.Wait()
}

func (c *Consumer) read(ctx context.Context, queues []chan Event) error {
	for {
		ev, err := c.source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return nil
			}
			c.logger.Warn("firehose source failed, retrying",
				logger.Error(err),
				logger.Duration("pause", c.retryPause))
			select {
			case <-time.After(c.retryPause):
				continue
			case <-ctx.Done():
				return nil
			}
		}

		c.received.Add(1)
		select {
		case queues[c.shardFor(ev)] <- ev:
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *Consumer) shardFor(ev Event) int {
	key := string(ev.Curator())
	if key == "" {
		key = ev.AtURI
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(c.shards))
}

// Received returns how many events were read from the source.
func (c *Consumer) Received() int64 { return c.received.Load() }

// Processed returns how many events were dispatched.
func (c *Consumer) Processed() int64 { return c.processed.Load() }
