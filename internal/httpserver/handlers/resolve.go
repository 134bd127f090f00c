package handlers

import (
	"net/http"
	"strings"

	"github.com/cosmik-network/cardsync/internal/httpserver/deps"
	"github.com/cosmik-network/cardsync/internal/logger"
)

// Resolve maps ?uri= to the card, collection or collection link that
// holds it.
func Resolve(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uri := strings.TrimSpace(r.URL.Query().Get("uri"))
		if uri == "" {
			writeError(w, http.StatusBadRequest, "missing uri parameter")
			return
		}
		if d.Resolver == nil {
			writeError(w, http.StatusServiceUnavailable, "resolver not initialized")
			return
		}

		res, err := d.Resolver.ResolveAtURI(r.Context(), uri)
		if err != nil {
			d.Logger.Error("failed to resolve at-uri",
				logger.String("uri", uri),
				logger.Error(err))
			writeError(w, http.StatusInternalServerError, "resolution failed")
			return
		}
		if res == nil {
			writeError(w, http.StatusNotFound, "no card or collection holds this uri")
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}
