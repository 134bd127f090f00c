// Package jetstream reads record commits from a Jetstream websocket.
package jetstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cosmik-network/cardsync/internal/firehose"
	"github.com/cosmik-network/cardsync/internal/logger"
)

const (
	defaultMinBackoff    = 500 * time.Millisecond
	defaultMaxBackoff    = 30 * time.Second
	defaultReadTimeout   = 60 * time.Second
	defaultFlushInterval = 5 * time.Second
	// Replays a little history on reconnect; processing is idempotent.
	cursorRewind = int64(5 * time.Second / time.Microsecond)
)

// CursorStore persists the last seen time_us.
type CursorStore interface {
	LoadCursor(ctx context.Context) (int64, error)
	SaveCursor(ctx context.Context, cursor int64) error
}

// Config configures a Source.
type Config struct {
	URL               string
	WantedCollections []string
	MinBackoff        time.Duration
	MaxBackoff        time.Duration
	ReadTimeout       time.Duration
	FlushInterval     time.Duration
}

// Source is a firehose.Source backed by a Jetstream connection. It
// reconnects with exponential backoff and resumes from the stored cursor.
// The stored cursor never passes an event that was returned by Next but not
// yet acknowledged.
type Source struct {
	cfg     Config
	dialer  *websocket.Dialer
	cursors CursorStore
	logger  logger.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	read      int64         // highest time_us read from the stream
	inflight  map[int64]int // time_us of returned, unacknowledged events
	loaded    bool
	lastFlush time.Time
	closed    bool

	flushMu sync.Mutex
	saved   int64
}

// New creates a Source. cursors may be nil, in which case every connection
// starts at the live tail.
func New(cfg Config, cursors CursorStore, log logger.Logger) *Source {
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = defaultMinBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = defaultFlushInterval
	}
	return &Source{
		cfg:      cfg,
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		cursors:  cursors,
		logger:   log,
		inflight: make(map[int64]int),
	}
}

// message is the Jetstream JSON frame.
type message struct {
	DID    string  `json:"did"`
	TimeUS int64   `json:"time_us"`
	Kind   string  `json:"kind"`
	Commit *commit `json:"commit,omitempty"`
}

type commit struct {
	Rev        string          `json:"rev"`
	Operation  string          `json:"operation"`
	Collection string          `json:"collection"`
	RKey       string          `json:"rkey"`
	CID        string          `json:"cid,omitempty"`
	Record     json.RawMessage `json:"record,omitempty"`
}

// Next returns the next commit event. Connection failures are returned so
// the caller can pause; the following call reconnects.
func (s *Source) Next(ctx context.Context) (firehose.Event, error) {
	for {
		conn, err := s.connection(ctx)
		if err != nil {
			return firehose.Event{}, err
		}

		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.drop(conn)
			if ctx.Err() != nil {
				return firehose.Event{}, ctx.Err()
			}
			return firehose.Event{}, fmt.Errorf("failed to read jetstream message: %w", err)
		}

		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Debug("skipping malformed jetstream frame", logger.Error(err))
			continue
		}
		commit := msg.Kind == "commit" && msg.Commit != nil
		s.track(msg.TimeUS, commit)
		if !commit {
			s.flush(ctx, false)
			continue
		}
		return toEvent(msg), nil
	}
}

func toEvent(msg message) firehose.Event {
	ev := firehose.Event{
		AtURI:     "at://" + msg.DID + "/" + msg.Commit.Collection + "/" + msg.Commit.RKey,
		EventType: firehose.EventType(msg.Commit.Operation),
		Record:    msg.Commit.Record,
		Cursor:    msg.TimeUS,
	}
	if msg.Commit.CID != "" {
		cid := msg.Commit.CID
		ev.CID = &cid
	}
	return ev
}

// Ack marks ev as dispatched so the stored cursor may move past it. Acks
// that arrive after Close are flushed right away.
func (s *Source) Ack(ev firehose.Event) {
	if ev.Cursor == 0 {
		return
	}
	s.mu.Lock()
	if n := s.inflight[ev.Cursor]; n > 1 {
		s.inflight[ev.Cursor] = n - 1
	} else {
		delete(s.inflight, ev.Cursor)
	}
	closed := s.closed
	s.mu.Unlock()

	s.flush(context.Background(), closed)
}

// Close closes the current connection and flushes the cursor.
func (s *Source) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.closed = true
	s.mu.Unlock()

	s.flush(context.Background(), true)
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// Cursor returns the position that is safe to resume from: the last
// time_us read when nothing is in flight, otherwise just before the oldest
// unacknowledged event.
func (s *Source) Cursor() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.committedLocked()
}

func (s *Source) committedLocked() int64 {
	committed := s.read
	for t := range s.inflight {
		if t-1 < committed {
			committed = t - 1
		}
	}
	return committed
}

func (s *Source) connection(ctx context.Context) (*websocket.Conn, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, context.Canceled
	}
	if s.conn != nil {
		conn := s.conn
		s.mu.Unlock()
		return conn, nil
	}
	s.mu.Unlock()

	s.loadCursor(ctx)

	backoff := s.cfg.MinBackoff
	for attempt := 1; ; attempt++ {
		endpoint, err := s.endpoint()
		if err != nil {
			return nil, err
		}
		conn, _, err := s.dialer.DialContext(ctx, endpoint, nil)
		if err == nil {
			s.mu.Lock()
			s.conn = conn
			s.mu.Unlock()
			s.logger.Info("connected to jetstream",
				logger.String("url", s.cfg.URL),
				logger.Strings("collections", s.cfg.WantedCollections),
				logger.Int64("cursor", s.Cursor()),
				logger.Int("attempt", attempt))
			return conn, nil
		}

		s.logger.Warn("jetstream connection failed",
			logger.Int("attempt", attempt),
			logger.Duration("retry_in", backoff),
			logger.Error(err))

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		backoff *= 2
		if backoff > s.cfg.MaxBackoff {
			backoff = s.cfg.MaxBackoff
		}
	}
}

func (s *Source) endpoint() (string, error) {
	u, err := url.Parse(s.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("failed to parse jetstream url: %w", err)
	}
	q := u.Query()
	for _, nsid := range s.cfg.WantedCollections {
		q.Add("wantedCollections", nsid)
	}
	s.mu.Lock()
	c := s.read
	s.mu.Unlock()
	if c > 0 {
		from := c - cursorRewind
		if from < 0 {
			from = 0
		}
		q.Set("cursor", strconv.FormatInt(from, 10))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (s *Source) loadCursor(ctx context.Context) {
	s.mu.Lock()
	loaded := s.loaded
	s.loaded = true
	s.mu.Unlock()
	if loaded || s.cursors == nil {
		return
	}

	cursor, err := s.cursors.LoadCursor(ctx)
	if err != nil {
		s.logger.Warn("failed to load jetstream cursor", logger.Error(err))
		return
	}
	s.mu.Lock()
	if cursor > s.read {
		s.read = cursor
	}
	s.mu.Unlock()
}

// track records a frame's time_us; commits stay in flight until acked.
func (s *Source) track(timeUS int64, commit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timeUS > s.read {
		s.read = timeUS
	}
	if commit && timeUS > 0 {
		s.inflight[timeUS]++
	}
}

// flush saves the committed cursor once per FlushInterval, or now when
// force is set. Saves are serialized so the stored cursor only moves forward.
func (s *Source) flush(ctx context.Context, force bool) {
	if s.cursors == nil {
		return
	}
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	due := force || time.Since(s.lastFlush) >= s.cfg.FlushInterval
	if due {
		s.lastFlush = time.Now()
	}
	cursor := s.committedLocked()
	s.mu.Unlock()

	if !due || cursor <= s.saved {
		return
	}
	if err := s.cursors.SaveCursor(ctx, cursor); err != nil {
		s.logger.Warn("failed to save jetstream cursor", logger.Error(err))
		return
	}
	s.saved = cursor
}

func (s *Source) drop(conn *websocket.Conn) {
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()
	_ = conn.Close()
}
