// ABOUTME: HTTP API handlers for agents, supervisors, sessions, presence and history.
// ABOUTME: JSON in, JSON out; errors are reported as {"error": "..."}.

package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/2389/coven-contactcenter/internal/agent"
	"github.com/2389/coven-contactcenter/internal/dashboard"
	"github.com/2389/coven-contactcenter/internal/presence"
	"github.com/2389/coven-contactcenter/internal/session"
	"github.com/2389/coven-contactcenter/internal/skill"
	"github.com/2389/coven-contactcenter/internal/store"
)

// SupervisorResponse is the JSON response item for GET /api/supervisors.
type SupervisorResponse struct {
	SignInAddress       string   `json:"sign_in_address"`
	PublicName          string   `json:"public_name"`
	InstantMessageColor string   `json:"instant_message_color,omitempty"`
	Agents              []string `json:"agents"`
}

// SkillResponse is the JSON response item for GET /api/skills.
type SkillResponse struct {
	Name    string        `json:"name"`
	Values  []string      `json:"values"`
	Prompts skill.Prompts `json:"prompts"`
}

// StartSessionRequest is the JSON request body for POST /api/sessions.
type StartSessionRequest struct {
	Customer   string   `json:"customer"`
	Skills     []string `json:"skills"` // Name=Value
	MediaTypes []string `json:"media_types,omitempty"`
}

// SessionResponse describes a live session.
type SessionResponse struct {
	SessionID  string           `json:"session_id"`
	Customer   string           `json:"customer"`
	Status     string           `json:"status"`
	StartedAt  string           `json:"started_at"`
	MediaTypes []string         `json:"media_types,omitempty"`
	Agent      dashboard.Record `json:"agent"`
}

// SessionStatusRequest is the JSON request body for POST /api/sessions/{id}/status.
type SessionStatusRequest struct {
	Status string `json:"status"`
}

// PresenceRequest is the JSON request body for POST /api/presence.
type PresenceRequest struct {
	ID           string `json:"id,omitempty"`
	Agent        string `json:"agent"`
	Availability string `json:"availability"`
}

// HistoryEvent is the JSON response item for GET /api/history.
type HistoryEvent struct {
	ID           string   `json:"id"`
	SessionID    string   `json:"session_id"`
	AgentAddress string   `json:"agent,omitempty"`
	Customer     string   `json:"customer,omitempty"`
	Action       string   `json:"action"`
	Status       string   `json:"status"`
	Skills       []string `json:"skills,omitempty"`
	Timestamp    string   `json:"timestamp"`
}

// handleListAgents handles GET /api/agents.
// Supports ?supervisor=ADDR and ?online=true filters.
func (g *Gateway) handleListAgents(w http.ResponseWriter, r *http.Request) {
	agents := g.directory.ListAgents()

	if sup := r.URL.Query().Get("supervisor"); sup != "" {
		s, ok := g.directory.GetSupervisor(sup)
		if !ok {
			g.sendJSONError(w, http.StatusNotFound, "supervisor not found")
			return
		}
		agents = s.Agents()
	}

	records := dashboard.Records(agents, g.sessions)
	if r.URL.Query().Get("online") == "true" {
		filtered := records[:0]
		for _, rec := range records {
			if rec.Online {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}

	g.sendJSON(w, http.StatusOK, records)
}

// handleGetAgent handles GET /api/agents/{address}.
func (g *Gateway) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	a, ok := g.directory.GetAgent(r.PathValue("address"))
	if !ok {
		g.sendJSONError(w, http.StatusNotFound, "agent not found")
		return
	}
	p, _ := g.sessions.Participant(a.SignInAddress())
	g.sendJSON(w, http.StatusOK, dashboard.Convert(a, p))
}

// handleListSupervisors handles GET /api/supervisors.
func (g *Gateway) handleListSupervisors(w http.ResponseWriter, r *http.Request) {
	sups := g.directory.ListSupervisors()
	response := make([]SupervisorResponse, 0, len(sups))
	for _, s := range sups {
		members := s.Agents()
		addrs := make([]string, len(members))
		for i, a := range members {
			addrs[i] = a.SignInAddress()
		}
		response = append(response, SupervisorResponse{
			SignInAddress:       s.SignInAddress(),
			PublicName:          s.PublicName(),
			InstantMessageColor: s.InstantMessageColor(),
			Agents:              addrs,
		})
	}
	g.sendJSON(w, http.StatusOK, response)
}

// handleListSkills handles GET /api/skills.
func (g *Gateway) handleListSkills(w http.ResponseWriter, r *http.Request) {
	response := make([]SkillResponse, len(g.skills))
	for i, s := range g.skills {
		response[i] = SkillResponse{Name: s.Name(), Values: s.Values(), Prompts: s.Prompts()}
	}
	g.sendJSON(w, http.StatusOK, response)
}

// handleListSessions handles GET /api/sessions.
func (g *Gateway) handleListSessions(w http.ResponseWriter, r *http.Request) {
	live := g.sessions.List()
	response := make([]SessionResponse, len(live))
	for i, s := range live {
		response[i] = g.sessionResponse(s)
	}
	g.sendJSON(w, http.StatusOK, response)
}

// handleStartSession handles POST /api/sessions.
// Returns 503 when no agent with the requested skills is free.
func (g *Gateway) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Customer == "" {
		g.sendJSONError(w, http.StatusBadRequest, "customer is required")
		return
	}

	required := make([]skill.AgentSkill, 0, len(req.Skills))
	for _, s := range req.Skills {
		as, err := skill.ParseAgentSkill(s, g.skills)
		if err != nil {
			g.sendJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		required = append(required, as)
	}

	sess, err := g.sessions.Start(r.Context(), session.StartRequest{
		Customer:   req.Customer,
		Required:   required,
		MediaTypes: req.MediaTypes,
	})
	switch {
	case errors.Is(err, agent.ErrNoAgentsAvailable):
		g.sendJSONError(w, http.StatusServiceUnavailable, "no agents available")
		return
	case err != nil:
		g.logger.Error("failed to start session", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	g.sendJSON(w, http.StatusCreated, g.sessionResponse(sess))
}

// handleEndSession handles DELETE /api/sessions/{id}.
func (g *Gateway) handleEndSession(w http.ResponseWriter, r *http.Request) {
	err := g.sessions.End(r.Context(), r.PathValue("id"))
	if errors.Is(err, session.ErrSessionNotFound) {
		g.sendJSONError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		g.logger.Error("failed to end session", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSessionStatus handles POST /api/sessions/{id}/status.
func (g *Gateway) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	var req SessionStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	status, err := agent.ParseAllocationStatus(req.Status)
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := r.PathValue("id")
	err = g.sessions.SetStatus(r.Context(), id, status)
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		g.sendJSONError(w, http.StatusNotFound, "session not found")
		return
	case errors.Is(err, agent.ErrInvalidStatus):
		g.sendJSONError(w, http.StatusBadRequest, "status cannot be set directly")
		return
	case errors.Is(err, agent.ErrNotAllocated), errors.Is(err, agent.ErrNotOwner):
		g.sendJSONError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		g.logger.Error("failed to set session status", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	sess, err := g.sessions.Get(id)
	if err != nil {
		// Ended concurrently.
		g.sendJSONError(w, http.StatusNotFound, "session not found")
		return
	}
	g.sendJSON(w, http.StatusOK, g.sessionResponse(sess))
}

// handlePresence handles POST /api/presence.
// Responds 202 with {"applied": false} for duplicate events.
func (g *Gateway) handlePresence(w http.ResponseWriter, r *http.Request) {
	var req PresenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	applied, err := g.presence.Apply(r.Context(), presence.Event{
		ID:           req.ID,
		Agent:        req.Agent,
		Availability: presence.Availability(req.Availability),
	})
	switch {
	case errors.Is(err, presence.ErrUnknownAgent):
		g.sendJSONError(w, http.StatusNotFound, "agent not found")
		return
	case errors.Is(err, presence.ErrInvalidAvailability):
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		g.logger.Error("failed to apply presence", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	g.sendJSON(w, http.StatusAccepted, map[string]bool{"applied": applied})
}

// handleHistory handles GET /api/history.
// Supports ?agent=ADDR, ?session=ID and ?limit=N (default 100, max 1000).
func (g *Gateway) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.AllocationFilter{SessionID: q.Get("session")}
	if addr := q.Get("agent"); addr != "" {
		filter.AgentAddress = agent.NormalizeURI(addr)
	}
	if limitStr := q.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			g.sendJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}

	events, err := g.store.ListAllocationEvents(r.Context(), filter)
	if err != nil {
		g.logger.Error("failed to list allocation events", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := make([]HistoryEvent, len(events))
	for i, e := range events {
		response[i] = HistoryEvent{
			ID:           e.ID,
			SessionID:    e.SessionID,
			AgentAddress: e.AgentAddress,
			Customer:     e.Customer,
			Action:       string(e.Action),
			Status:       e.Status,
			Skills:       e.Skills,
			Timestamp:    e.Timestamp.Format(time.RFC3339Nano),
		}
	}
	g.sendJSON(w, http.StatusOK, response)
}

func (g *Gateway) sessionResponse(s *session.Session) SessionResponse {
	p, _ := g.sessions.Participant(s.Agent.SignInAddress())
	return SessionResponse{
		SessionID:  s.ID,
		Customer:   s.Customer,
		Status:     s.Status().String(),
		StartedAt:  s.StartedAt.Format(time.RFC3339),
		MediaTypes: s.MediaTypes,
		Agent:      dashboard.Convert(s.Agent, p),
	}
}

// sendJSON writes v as a JSON response.
func (g *Gateway) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Error("failed to encode response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	g.sendJSON(w, status, map[string]string{"error": message})
}
