/*
stream.go - Server-sent change notification stream

PURPOSE:
  Bridges the in-process event bus to connected browser sessions over SSE.
  Clients use events purely as cache-invalidation hints; delivery is
  best-effort and a dropped connection loses nothing that a re-fetch
  cannot recover.

PROTOCOL:
  Standard text/event-stream. Each bus envelope becomes one SSE message:

    event: invoice.updated
    data: {"event":"invoice.updated","data":{...},"timestamp":"..."}

  A comment keep-alive is sent every 30 seconds so proxies do not close
  idle connections.

SEE ALSO:
  - events/bus.go: The bus this subscribes to
*/
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const keepAliveInterval = 30 * time.Second

// StreamEvents streams change notifications to the client until it
// disconnects.
func (h *Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	if h.Bus == nil {
		writeError(w, http.StatusServiceUnavailable, "Event streaming is disabled", nil)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming not supported", nil)
		return
	}

	msgs, err := h.Bus.Subscribe(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to subscribe", err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case msg, open := <-msgs:
			if !open {
				return
			}
			// The payload is already an envelope; peek at the event name
			// for the SSE event field.
			var env struct {
				Event string `json:"event"`
			}
			_ = json.Unmarshal(msg.Payload, &env)

			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", env.Event, msg.Payload)
			flusher.Flush()
			msg.Ack()
		}
	}
}
