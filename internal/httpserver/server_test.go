package httpserver

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cosmik-network/cardsync/internal/curation"
	"github.com/cosmik-network/cardsync/internal/firehose"
	"github.com/cosmik-network/cardsync/internal/httpserver/deps"
	"github.com/cosmik-network/cardsync/internal/logger"
	"github.com/cosmik-network/cardsync/internal/store/memory"
)

func TestNewRouterRoutes(t *testing.T) {
	log := logger.New("error", false)
	store := memory.NewStore()
	d := deps.Deps{
		Logger:             log,
		StartTime:          time.Now(),
		AllowedCIDRS:       []string{"192.0.2.0/24"},
		IngestBurst:        10,
		IngestRefillPerMin: 60,
		StoreKind:          "memory",
		Store:              store,
		Dispatcher:         firehose.NewDispatcher(log),
		Resolver:           curation.NewAtURIResolutionService(store.Cards(), store.Collections()),
		ImportTrigger:      make(chan struct{}, 1),
	}
	router := NewRouter(log, d)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		code   int
	}{
		{name: "healthz", method: http.MethodGet, path: "/healthz", code: http.StatusOK},
		{name: "healthz head", method: http.MethodHead, path: "/healthz", code: http.StatusOK},
		{name: "readyz", method: http.MethodGet, path: "/readyz", code: http.StatusOK},
		{name: "infra", method: http.MethodGet, path: "/infra", code: http.StatusOK},
		{name: "reload", method: http.MethodPost, path: "/reload", code: http.StatusAccepted},
		{name: "resolve unknown", method: http.MethodGet, path: "/resolve?uri=at://did:plc:alice/network.cosmik.card/3k", code: http.StatusNotFound},
		{name: "ingest", method: http.MethodPost, path: "/firehose/events", body: `{"atUri":"at://did:plc:alice/app.bsky.feed.post/3k","eventType":"create"}`, code: http.StatusOK},
		{name: "wrong method", method: http.MethodGet, path: "/firehose/events", code: http.StatusMethodNotAllowed},
		{name: "unknown path", method: http.MethodGet, path: "/nope", code: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			r.RemoteAddr = "192.0.2.10:5555"
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, r)
			assert.Equal(t, tt.code, rr.Code)
		})
	}

	t.Run("ops endpoints reject other clients", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/readyz", nil)
		r.RemoteAddr = "203.0.113.1:5555"
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, r)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})
}
