package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/cosmik-network/cardsync/internal/httpserver/deps"
	"github.com/cosmik-network/cardsync/internal/httpserver/handlers"
	"github.com/cosmik-network/cardsync/internal/httpserver/mw"
)

func init() { Register("firehose", registerFirehose) }

func registerFirehose(r chi.Router, d deps.Deps) {
	r.With(
		mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger),
		mw.EnforceHost(d.AllowedHosts, d.Logger),
		mw.RateLimit(mw.RateLimitConfig{
			Burst:             d.IngestBurst,
			RefillPerIPPerMin: d.IngestRefillPerMin,
			MaxEntries:        10000,
			TrustProxy:        d.TrustProxy,
		}),
	).Post("/firehose/events", handlers.IngestEvent(d))

	r.With(
		mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger),
		mw.EnforceHost(d.AllowedHosts, d.Logger),
	).Get("/resolve", handlers.Resolve(d))
}
