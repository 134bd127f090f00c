package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/cosmik-network/cardsync/internal/firehose"
	"github.com/cosmik-network/cardsync/internal/httpserver/deps"
)

type componentStatus struct {
	OK        bool            `json:"ok"`
	Mode      string          `json:"mode,omitempty"`
	Received  *int64          `json:"received,omitempty"`
	Processed *int64          `json:"processed,omitempty"`
	Events    *firehose.Stats `json:"events,omitempty"`
	Routes    []string        `json:"routes,omitempty"`
	Error     string          `json:"error,omitempty"`
}

type infraResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components"`
}

func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		components := map[string]componentStatus{
			"store":      checkStore(r.Context(), d),
			"dispatcher": dispatcherStatus(d),
			"consumer":   consumerStatus(d),
		}

		writeJSON(w, http.StatusOK, infraResponse{
			Status:     determineStatus(components),
			Components: components,
		})
	}
}

func determineStatus(components map[string]componentStatus) string {
	if store, ok := components["store"]; ok && !store.OK {
		return "critical"
	}
	if consumer, ok := components["consumer"]; ok && !consumer.OK {
		return "degraded"
	}
	return "operational"
}

func checkStore(parent context.Context, d deps.Deps) componentStatus {
	if d.Store == nil {
		return componentStatus{OK: false, Mode: d.StoreKind, Error: "store not initialized"}
	}

	ctx, cancel := context.WithTimeout(parent, 2*time.Second)
	defer cancel()

	if err := d.Store.Ping(ctx); err != nil {
		return componentStatus{OK: false, Mode: d.StoreKind, Error: err.Error()}
	}
	return componentStatus{OK: true, Mode: d.StoreKind}
}

func dispatcherStatus(d deps.Deps) componentStatus {
	if d.Dispatcher == nil {
		return componentStatus{OK: false, Error: "dispatcher not initialized"}
	}
	stats := d.Dispatcher.Stats()
	return componentStatus{OK: true, Events: &stats, Routes: d.Dispatcher.Collections()}
}

func consumerStatus(d deps.Deps) componentStatus {
	if d.Consumer == nil {
		// Events only arrive through POST /firehose/events.
		return componentStatus{OK: true, Mode: "push-only"}
	}
	received, processed := d.Consumer.Received(), d.Consumer.Processed()
	return componentStatus{OK: true, Mode: "jetstream", Received: &received, Processed: &processed}
}
