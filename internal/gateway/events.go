// ABOUTME: Server-Sent Events stream of dashboard Records
// ABOUTME: GET /api/events sends a snapshot, then every change published by the poller

package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/2389/coven-contactcenter/internal/dashboard"
)

// sseKeepalive is how often a comment line is sent on an idle stream.
const sseKeepalive = 15 * time.Second

// handleEvents handles GET /api/events.
// ?supervisor=ADDR limits the stream to that supervisor's agents.
// The stream opens with one "agent" event per current agent, then sends an
// "agent" event for every change.
func (g *Gateway) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		g.logger.Error("streaming not supported")
		g.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	topic := dashboard.AllAgents
	agents := g.directory.ListAgents()
	if sup := r.URL.Query().Get("supervisor"); sup != "" {
		s, ok := g.directory.GetSupervisor(sup)
		if !ok {
			g.sendJSONError(w, http.StatusNotFound, "supervisor not found")
			return
		}
		topic = s.SignInAddress()
		agents = s.Agents()
	}

	// Subscribe before the snapshot so no change falls in between.
	ch, subID := g.broadcaster.Subscribe(r.Context(), topic)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	g.writeSSEEvent(w, "ready", map[string]string{"subscription_id": subID})
	for _, rec := range dashboard.Records(agents, g.sessions) {
		g.writeSSEEvent(w, "agent", rec)
	}
	flusher.Flush()

	keepalive := time.NewTicker(sseKeepalive)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case rec, ok := <-ch:
			if !ok {
				return
			}
			g.writeSSEEvent(w, "agent", rec)
			flusher.Flush()
		case <-keepalive.C:
			_, _ = fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

// writeSSEEvent writes a single SSE event to the response writer.
func (g *Gateway) writeSSEEvent(w http.ResponseWriter, event string, data any) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		g.logger.Error("failed to marshal SSE data", "error", err)
		return
	}

	_, _ = fmt.Fprintf(w, "event: %s\n", event)
	_, _ = fmt.Fprintf(w, "data: %s\n\n", dataJSON)
}
