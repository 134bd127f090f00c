package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/cosmik-network/cardsync/internal/firehose"
	"github.com/cosmik-network/cardsync/internal/httpserver/deps"
	"github.com/cosmik-network/cardsync/internal/logger"
)

const maxEventBytes = 1 << 20

type eventResponse struct {
	AtURI   string `json:"atUri"`
	Applied bool   `json:"applied"`
	Reason  string `json:"reason,omitempty"`
}

// IngestEvent runs one firehose envelope through the dispatcher. The
// outcome is reported with 200 whether or not the event applied.
func IngestEvent(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.Dispatcher == nil {
			writeError(w, http.StatusServiceUnavailable, "dispatcher not initialized")
			return
		}

		var ev firehose.Event
		dec := json.NewDecoder(io.LimitReader(r.Body, maxEventBytes))
		if err := dec.Decode(&ev); err != nil {
			d.Logger.Debug("rejected firehose event body", logger.Error(err))
			writeError(w, http.StatusBadRequest, "invalid event json")
			return
		}
		if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "body must hold a single event")
			return
		}

		// A started event runs to completion even if the client goes away.
		out := d.Dispatcher.Dispatch(context.WithoutCancel(r.Context()), ev)
		writeJSON(w, http.StatusOK, eventResponse{
			AtURI:   ev.AtURI,
			Applied: out.Applied,
			Reason:  out.Reason,
		})
	}
}
