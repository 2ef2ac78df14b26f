// Package api exposes the pond over HTTP: the JSON operations the
// client kit calls, the static fish images, and the server-sent event
// stream that fans pond transitions out to connected clients.
package api

import (
	"crypto/subtle"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/lcroft/pond/internal/platform/errors"
	"github.com/lcroft/pond/internal/pond/service"
	"github.com/lcroft/pond/internal/pond/session"
)

const (
	defaultStreamPoll      = 2 * time.Second
	defaultStreamHeartbeat = 15 * time.Second
	defaultStreamRetryHint = 3 * time.Second

	// maxUploadBytes bounds the whole multipart body of a fish upload.
	maxUploadBytes = 2 << 20
)

// Config defines the HTTP server inputs.
type Config struct {
	Service          *service.Service
	Session          session.Config
	AssetDir         string
	MaintenanceToken string

	// Stream tuning; zero values take the defaults above.
	StreamPoll      time.Duration
	StreamHeartbeat time.Duration
	StreamRetryHint time.Duration

	Logger *log.Logger
}

// Server handles pond HTTP traffic.
type Server struct {
	svc              *service.Service
	sessionCfg       session.Config
	assetDir         string
	maintenanceToken string

	streamPoll      time.Duration
	streamHeartbeat time.Duration
	streamRetryHint time.Duration

	logger *log.Logger
}

// NewServer builds the HTTP server around a service.
func NewServer(cfg Config) *Server {
	s := &Server{
		svc:              cfg.Service,
		sessionCfg:       cfg.Session,
		assetDir:         cfg.AssetDir,
		maintenanceToken: cfg.MaintenanceToken,
		streamPoll:       cfg.StreamPoll,
		streamHeartbeat:  cfg.StreamHeartbeat,
		streamRetryHint:  cfg.StreamRetryHint,
		logger:           cfg.Logger,
	}
	if s.streamPoll <= 0 {
		s.streamPoll = defaultStreamPoll
	}
	if s.streamHeartbeat <= 0 {
		s.streamHeartbeat = defaultStreamHeartbeat
	}
	if s.streamRetryHint <= 0 {
		s.streamRetryHint = defaultStreamRetryHint
	}
	if s.logger == nil {
		s.logger = log.New(log.Writer(), "api: ", log.LstdFlags)
	}
	return s
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /up", s.handleUp)

	mux.Handle("GET /api/pond", s.authed(s.handlePondSnapshot))
	mux.Handle("POST /api/fish", s.authed(s.handleAddFish))
	mux.Handle("POST /api/fish/{id}/catch", s.authed(s.handleCatch))
	mux.Handle("POST /api/fish/{id}/release", s.authed(s.handleRelease))
	mux.Handle("DELETE /api/fish/{id}", s.authed(s.handleDeleteFish))
	mux.Handle("POST /api/fish/{id}/vote", s.authed(s.handleVote))
	mux.Handle("GET /api/events", s.authed(s.handleRecentEvents))
	mux.Handle("GET /api/stream", s.authed(s.handleStream))

	mux.HandleFunc("POST /internal/maintenance/reset-daily", s.handleResetDaily)

	if s.assetDir != "" {
		mux.Handle("GET /assets/", http.StripPrefix("/assets/", http.FileServer(http.Dir(s.assetDir))))
	}

	return mux
}

func (s *Server) handleUp(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePondSnapshot(w http.ResponseWriter, r *http.Request) {
	views, err := s.svc.Snapshot(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"objects": views})
}

func (s *Server) handleAddFish(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, r, apperrors.Wrap(apperrors.CodeAssetInvalidImage, "parse fish upload", err))
		return
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		s.writeError(w, r, apperrors.Wrap(apperrors.CodeAssetInvalidImage, "fish upload is missing an image part", err))
		return
	}
	defer file.Close()

	obj, err := s.svc.AddObject(r.Context(), r.FormValue("name"), file)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, obj)
}

func (s *Server) handleCatch(w http.ResponseWriter, r *http.Request) {
	catch, event, err := s.svc.Claim(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"catch": catch, "event": event})
}

func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Release(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "released"})
}

func (s *Server) handleDeleteFish(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Value int `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, r, apperrors.Wrap(apperrors.CodeVoteInvalidValue, "decode vote body", err))
		return
	}
	tally, err := s.svc.React(r.Context(), r.PathValue("id"), body.Value)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tally)
}

func (s *Server) handleRecentEvents(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err == nil {
			limit = parsed
		}
	}
	events, err := s.svc.RecentEvents(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *Server) handleResetDaily(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	// A server without a configured token accepts no maintenance calls.
	if s.maintenanceToken == "" || token == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(s.maintenanceToken)) != 1 {
		s.writeError(w, r, apperrors.New(apperrors.CodeMaintenanceUnauthorized, "maintenance token mismatch"))
		return
	}
	affected, err := s.svc.ResetDailyCatches(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Printf("daily catch counters reset for %d users", affected)
	writeJSON(w, http.StatusOK, map[string]int64{"users_reset": affected})
}
