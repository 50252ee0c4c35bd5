package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/txfeed/service/metrics"
	natspkg "github.com/brojonat/txfeed/service/nats"
	"github.com/google/uuid"
)

const sseKeepaliveInterval = 10 * time.Second

// handleStreamStatus streams status change events as Server-Sent Events.
// Without an address path parameter it streams every address.
func handleStreamStatus(subscriber StatusSubscriber, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.PathValue("address")
		if address != "" {
			if err := validateAddress(address); err != nil {
				writeError(w, err.Error(), http.StatusBadRequest)
				return
			}
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		clientID := uuid.NewString()
		logger := logger.With("client_id", clientID, "address", address)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		m.RecordSSEConnectionChange(1)
		defer m.RecordSSEConnectionChange(-1)
		logger.DebugContext(r.Context(), "SSE client connected", "remote_addr", r.RemoteAddr)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		events := make(chan *natspkg.StatusChangeEvent, 16)
		subErr := make(chan error, 1)
		go func() {
			subErr <- subscriber.Subscribe(ctx, address, func(e *natspkg.StatusChangeEvent) {
				select {
				case events <- e:
				case <-ctx.Done():
				}
			})
		}()

		connected, _ := json.Marshal(map[string]string{"address": address, "client_id": clientID})
		fmt.Fprintf(w, "event: connected\ndata: %s\n\n", connected)
		flusher.Flush()

		keepalive := time.NewTicker(sseKeepaliveInterval)
		defer keepalive.Stop()

		for {
			select {
			case <-keepalive.C:
				fmt.Fprintf(w, ": keepalive\n\n")
				flusher.Flush()

			case e := <-events:
				data, err := json.Marshal(e)
				if err != nil {
					logger.WarnContext(ctx, "failed to marshal event", "error", err)
					continue
				}
				fmt.Fprintf(w, "id: %s\nevent: status\ndata: %s\n\n", e.EventID, data)
				flusher.Flush()
				m.RecordSSEEventSent("status")

			case err := <-subErr:
				if err != nil {
					logger.ErrorContext(ctx, "status subscription failed", "error", err)
					fmt.Fprintf(w, "event: error\ndata: {\"error\": \"failed to subscribe\"}\n\n")
					flusher.Flush()
				}
				return

			case <-ctx.Done():
				logger.DebugContext(ctx, "SSE client disconnected")
				return
			}
		}
	})
}
