// Package api exposes the REST query surface: rosters, timelines,
// topics, reports and class session lifecycle. No business logic lives
// here, only HTTP handling and JSON serialization.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"classpulse/internal/analytics"
	"classpulse/internal/hub"
	"classpulse/pkg/interfaces"
	"classpulse/pkg/types"
)

// Server routes REST requests to the hub, the analytics aggregator and
// the session store. sessions and db may be nil when persistence is not
// configured.
type Server struct {
	hub       *hub.Hub
	analytics *analytics.Aggregator
	sessions  interfaces.SessionStore
	db        interfaces.SessionDatabase
	router    *http.ServeMux
}

func NewServer(h *hub.Hub, agg *analytics.Aggregator, sessions interfaces.SessionStore, db interfaces.SessionDatabase) *Server {
	s := &Server{
		hub:       h,
		analytics: agg,
		sessions:  sessions,
		db:        db,
		router:    http.NewServeMux(),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Handle("/api/channels/", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleChannel))))
	s.router.Handle("/api/sessions", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleSessions))))
	s.router.Handle("/health", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.healthCheck))))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type startTopicRequest struct {
	Name string `json:"name"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type healthResponse struct {
	Status       string    `json:"status"`
	Timestamp    time.Time `json:"timestamp"`
	Database     string    `json:"database"`
	Participants int       `json:"participants"`
	Channels     int       `json:"channels"`
}

// handleChannel parses /api/channels/{channel}/{resource} and routes to
// the matching handler.
func (s *Server) handleChannel(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/channels/")
	parts := strings.Split(path, "/")
	if len(parts) < 2 || parts[0] == "" {
		s.sendError(w, "Expected /api/channels/{channel}/{resource}", http.StatusBadRequest)
		return
	}

	channel := parts[0]
	if !types.IsValidChannel(channel) {
		s.sendError(w, "Invalid channel id", http.StatusBadRequest)
		return
	}
	resource := strings.Join(parts[1:], "/")

	switch {
	case resource == "roster" && r.Method == http.MethodGet:
		s.getRoster(w, channel)
	case resource == "timeline" && r.Method == http.MethodGet:
		s.getTimeline(w, channel)
	case resource == "topics" && r.Method == http.MethodGet:
		s.getTopics(w, channel)
	case resource == "topics" && r.Method == http.MethodPost:
		s.startTopic(w, r, channel)
	case resource == "topics/end" && r.Method == http.MethodPost:
		s.endTopic(w, channel)
	case resource == "report" && r.Method == http.MethodGet:
		s.getReport(w, channel)
	case resource == "end" && r.Method == http.MethodPost:
		s.endClassSession(w, r, channel)
	case r.Method == http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	default:
		s.sendError(w, "Not found", http.StatusNotFound)
	}
}

// GET /api/channels/{channel}/roster
func (s *Server) getRoster(w http.ResponseWriter, channel string) {
	roster := s.hub.Roster(channel)
	s.writeJSON(w, map[string]any{
		"channel":      channel,
		"participants": roster,
	})
}

// GET /api/channels/{channel}/timeline
func (s *Server) getTimeline(w http.ResponseWriter, channel string) {
	timeline := s.analytics.Timeline(channel)
	s.writeJSON(w, map[string]any{
		"channel": channel,
		"records": timeline,
	})
}

// GET /api/channels/{channel}/topics
func (s *Server) getTopics(w http.ResponseWriter, channel string) {
	topics := s.analytics.Topics(channel)
	s.writeJSON(w, map[string]any{
		"channel": channel,
		"topics":  topics,
	})
}

// POST /api/channels/{channel}/topics
func (s *Server) startTopic(w http.ResponseWriter, r *http.Request, channel string) {
	var req startTopicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		s.sendError(w, "Topic name is required", http.StatusBadRequest)
		return
	}

	topic := s.analytics.StartTopic(channel, req.Name)
	w.WriteHeader(http.StatusCreated)
	s.writeJSON(w, topic)
}

// POST /api/channels/{channel}/topics/end
func (s *Server) endTopic(w http.ResponseWriter, channel string) {
	topic, ok := s.analytics.EndTopic(channel)
	if !ok {
		s.sendError(w, "No open topic", http.StatusNotFound)
		return
	}
	s.writeJSON(w, topic)
}

// GET /api/channels/{channel}/report
func (s *Server) getReport(w http.ResponseWriter, channel string) {
	s.writeJSON(w, s.analytics.Report(channel))
}

// POST /api/channels/{channel}/end
func (s *Server) endClassSession(w http.ResponseWriter, r *http.Request, channel string) {
	if s.sessions == nil {
		s.sendError(w, "Session persistence not configured", http.StatusServiceUnavailable)
		return
	}

	session, err := s.sessions.End(r.Context(), channel)
	if err != nil {
		if errors.Is(err, interfaces.ErrSessionNotFound) {
			s.sendError(w, "No active session for channel", http.StatusNotFound)
		} else {
			log.Printf("Failed to end session for %s: %v", channel, err)
			s.sendError(w, "Failed to end session", http.StatusInternalServerError)
		}
		return
	}
	s.writeJSON(w, session)
}

// GET /api/sessions
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if s.sessions == nil {
			s.writeJSON(w, map[string]any{"sessions": []*types.ClassSession{}})
			return
		}
		sessions, err := s.sessions.ListActive(r.Context())
		if err != nil {
			log.Printf("Failed to list active sessions: %v", err)
			s.sendError(w, "Failed to list sessions", http.StatusInternalServerError)
			return
		}
		if sessions == nil {
			sessions = []*types.ClassSession{}
		}
		s.writeJSON(w, map[string]any{"sessions": sessions})
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	default:
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// GET /health
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	dbStatus := "healthy"

	if s.db != nil {
		if err := s.db.HealthCheck(ctx); err != nil {
			status = "unhealthy"
			dbStatus = fmt.Sprintf("error: %v", err)
		}
	} else {
		dbStatus = "disabled"
	}

	participants, channels := s.hub.Counts()

	if status == "unhealthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	s.writeJSON(w, healthResponse{
		Status:       status,
		Timestamp:    time.Now(),
		Database:     dbStatus,
		Participants: participants,
		Channels:     channels,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	w.WriteHeader(code)
	s.writeJSON(w, errorResponse{
		Error:   http.StatusText(code),
		Code:    code,
		Message: message,
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
