package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cosmik-network/cardsync/internal/curation"
	"github.com/cosmik-network/cardsync/internal/domain"
	"github.com/cosmik-network/cardsync/internal/firehose"
	"github.com/cosmik-network/cardsync/internal/httpserver/deps"
	"github.com/cosmik-network/cardsync/internal/logger"
	"github.com/cosmik-network/cardsync/internal/publisher"
	"github.com/cosmik-network/cardsync/internal/store/memory"
	"github.com/cosmik-network/cardsync/internal/usecase"
	"github.com/cosmik-network/cardsync/internal/version"
)

type pinger struct{ err error }

func (p pinger) Ping(ctx context.Context) error { return p.err }

type processorFunc func(ctx context.Context, ev firehose.Event) firehose.Outcome

func (f processorFunc) Process(ctx context.Context, ev firehose.Event) firehose.Outcome { return f(ctx, ev) }

type consumerStats struct{ received, processed int64 }

func (c consumerStats) Received() int64  { return c.received }
func (c consumerStats) Processed() int64 { return c.processed }

func newDeps() deps.Deps {
	log := logger.New("error", false)
	store := memory.NewStore()
	rec := publisher.NewRecorder(log)
	locks := curation.NewKeyedMutex()
	linking := curation.NewCardCollectionService(store.Collections(), rec, locks, nil, log)
	library := curation.NewCardLibraryService(store.Cards(), store.Collections(), rec, linking, nil, log)
	resolver := curation.NewAtURIResolutionService(store.Cards(), store.Collections())
	commands := usecase.New(usecase.Deps{
		Cards:               store.Cards(),
		Collections:         store.Collections(),
		Library:             library,
		Linking:             linking,
		CollectionPublisher: rec,
		Locks:               locks,
		Logger:              log,
	})
	dispatcher := firehose.NewDispatcher(log)
	dispatcher.Handle(domain.CardNSID, firehose.NewCardEventProcessor(commands, resolver, log))

	return deps.Deps{
		Logger:     log,
		StartTime:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Build:      version.Info{Version: "v1.2.3", Commit: "abc123", GoVersion: "go1.25.5"},
		StoreKind:  "memory",
		Store:      store,
		Dispatcher: dispatcher,
		Resolver:   resolver,
	}
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v))
	return v
}

const cardEvent = `{"atUri":"at://did:plc:alice/network.cosmik.card/3kcard","cid":"bafyreicard","eventType":"create","record":{"type":"URL","content":{"url":"https://example.com"}}}`

func TestHealthz(t *testing.T) {
	d := newDeps()
	d.TimeNow = func() time.Time { return d.StartTime.Add(90 * time.Second) }

	rr := httptest.NewRecorder()
	Healthz(d)(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	body := decode[healthzResponse](t, rr)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "v1.2.3", body.Version)
	assert.Equal(t, "abc123", body.Commit)
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
	assert.InDelta(t, 90.0, body.UptimeSeconds, 0.001)
}

func TestReadyz(t *testing.T) {
	tests := []struct {
		name  string
		store deps.Pinger
		code  int
	}{
		{name: "ready", store: pinger{}, code: http.StatusOK},
		{name: "ping fails", store: pinger{err: errors.New("down")}, code: http.StatusServiceUnavailable},
		{name: "no store", code: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDeps()
			d.Store = tt.store
			rr := httptest.NewRecorder()
			Readyz(d)(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			assert.Equal(t, tt.code, rr.Code)
			assert.Equal(t, tt.code == http.StatusOK, decode[readyzResponse](t, rr).Ready)
		})
	}
}

func TestInfra(t *testing.T) {
	tests := []struct {
		name     string
		store    deps.Pinger
		consumer deps.ConsumerStats
		status   string
		mode     string
	}{
		{name: "operational push-only", store: pinger{}, status: "operational", mode: "push-only"},
		{name: "operational jetstream", store: pinger{}, consumer: consumerStats{received: 5, processed: 4}, status: "operational", mode: "jetstream"},
		{name: "critical store", store: pinger{err: errors.New("down")}, status: "critical", mode: "push-only"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDeps()
			d.Store = tt.store
			d.Consumer = tt.consumer

			rr := httptest.NewRecorder()
			Infra(d)(rr, httptest.NewRequest(http.MethodGet, "/infra", nil))

			require.Equal(t, http.StatusOK, rr.Code)
			body := decode[infraResponse](t, rr)
			assert.Equal(t, tt.status, body.Status)
			assert.Equal(t, tt.mode, body.Components["consumer"].Mode)
			assert.Equal(t, []string{domain.CardNSID}, body.Components["dispatcher"].Routes)
			if tt.consumer != nil {
				require.NotNil(t, body.Components["consumer"].Received)
				assert.Equal(t, int64(5), *body.Components["consumer"].Received)
			}
		})
	}
}

func TestReload(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		rr := httptest.NewRecorder()
		Reload(newDeps())(rr, httptest.NewRequest(http.MethodPost, "/reload", nil))
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("triggers then reports busy", func(t *testing.T) {
		d := newDeps()
		d.ImportTrigger = make(chan struct{}, 1)
		h := Reload(d)

		rr := httptest.NewRecorder()
		h(rr, httptest.NewRequest(http.MethodPost, "/reload", nil))
		assert.Equal(t, http.StatusAccepted, rr.Code)

		rr = httptest.NewRecorder()
		h(rr, httptest.NewRequest(http.MethodPost, "/reload", nil))
		assert.Equal(t, http.StatusTooManyRequests, rr.Code)
		assert.Len(t, d.ImportTrigger, 1)
	})
}

func TestIngestEvent(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		code    int
		applied bool
	}{
		{name: "applied", body: cardEvent, code: http.StatusOK, applied: true},
		{name: "skipped", body: `{"atUri":"at://did:plc:alice/app.bsky.feed.post/3k","eventType":"create"}`, code: http.StatusOK},
		{name: "invalid json", body: `{"atUri":`, code: http.StatusBadRequest},
		{name: "two values", body: cardEvent + cardEvent, code: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDeps()
			rr := httptest.NewRecorder()
			IngestEvent(d)(rr, httptest.NewRequest(http.MethodPost, "/firehose/events", strings.NewReader(tt.body)))

			require.Equal(t, tt.code, rr.Code)
			if tt.code != http.StatusOK {
				assert.NotEmpty(t, decode[errorResponse](t, rr).Error)
				return
			}
			body := decode[eventResponse](t, rr)
			assert.Equal(t, tt.applied, body.Applied)
			if !tt.applied {
				assert.NotEmpty(t, body.Reason)
			}
		})
	}

	t.Run("runs to completion after the client is gone", func(t *testing.T) {
		d := newDeps()
		var ctxErr error
		d.Dispatcher.Handle(domain.CollectionNSID, processorFunc(func(ctx context.Context, ev firehose.Event) firehose.Outcome {
			ctxErr = ctx.Err()
			return firehose.Outcome{Applied: true}
		}))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		body := `{"atUri":"at://did:plc:alice/network.cosmik.collection/3kcoll","eventType":"delete"}`
		req := httptest.NewRequest(http.MethodPost, "/firehose/events", strings.NewReader(body)).WithContext(ctx)

		rr := httptest.NewRecorder()
		IngestEvent(d)(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.True(t, decode[eventResponse](t, rr).Applied)
		assert.NoError(t, ctxErr)
	})

	t.Run("no dispatcher", func(t *testing.T) {
		d := newDeps()
		d.Dispatcher = nil
		rr := httptest.NewRecorder()
		IngestEvent(d)(rr, httptest.NewRequest(http.MethodPost, "/firehose/events", strings.NewReader(cardEvent)))
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	})
}

func TestResolve(t *testing.T) {
	d := newDeps()
	rr := httptest.NewRecorder()
	IngestEvent(d)(rr, httptest.NewRequest(http.MethodPost, "/firehose/events", strings.NewReader(cardEvent)))
	require.True(t, decode[eventResponse](t, rr).Applied)

	get := func(uri string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		Resolve(d)(rr, httptest.NewRequest(http.MethodGet, "/resolve?uri="+url.QueryEscape(uri), nil))
		return rr
	}

	rr = get("at://did:plc:alice/network.cosmik.card/3kcard")
	require.Equal(t, http.StatusOK, rr.Code)
	res := decode[curation.Resolution](t, rr)
	assert.Equal(t, curation.ResourceCard, res.Type)
	assert.NotEmpty(t, res.CardID)

	assert.Equal(t, http.StatusNotFound, get("at://did:plc:alice/network.cosmik.card/3kother").Code)
	assert.Equal(t, http.StatusBadRequest, get("").Code)

	d.Resolver = nil
	assert.Equal(t, http.StatusServiceUnavailable, get("at://did:plc:alice/network.cosmik.card/3kcard").Code)
}
