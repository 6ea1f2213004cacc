package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hlsx/internal/player"
	"github.com/desertthunder/hlsx/internal/shared"
)

// Player is the subset of [player.Manager] driven by the control API.
type Player interface {
	LoadTrack(ctx context.Context, trackID string) error
	Play() error
	Pause()
	Seek(offsetMillis int64) error
	SetVolume(level int) error
	SetMuted(muted bool)
	Next(ctx context.Context) error
	Enqueue(trackIDs ...string) error
	Snapshot() player.Snapshot
}

// ControlHandler serves the playback routes for a single [Player].
type ControlHandler struct {
	player Player
	logger *log.Logger
	mux    *http.ServeMux
}

// NewControlHandler creates a [ControlHandler] for p.
func NewControlHandler(p Player, logger *log.Logger) *ControlHandler {
	h := &ControlHandler{player: p, logger: logger, mux: http.NewServeMux()}
	h.mux.HandleFunc("GET /status", h.status)
	h.mux.HandleFunc("POST /load", h.load)
	h.mux.HandleFunc("POST /play", h.play)
	h.mux.HandleFunc("POST /pause", h.pause)
	h.mux.HandleFunc("POST /seek", h.seek)
	h.mux.HandleFunc("POST /volume", h.volume)
	h.mux.HandleFunc("POST /mute", h.mute)
	h.mux.HandleFunc("POST /next", h.next)
	h.mux.HandleFunc("POST /queue", h.queue)
	return h
}

// Routes implements [Handler].
func (h *ControlHandler) Routes() []string {
	return []string{
		"GET /status",
		"POST /load",
		"POST /play",
		"POST /pause",
		"POST /seek",
		"POST /volume",
		"POST /mute",
		"POST /next",
		"POST /queue",
	}
}

// ServeHTTP implements [http.Handler].
func (h *ControlHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *ControlHandler) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(h.logger, w, http.StatusOK, newStatusResponse(h.player.Snapshot()))
}

func (h *ControlHandler) load(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TrackID string `json:"track_id"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if req.TrackID == "" {
		h.fail(w, fmt.Errorf("%w: track_id is required", shared.ErrInvalidInput))
		return
	}
	h.respond(w, h.player.LoadTrack(r.Context(), req.TrackID))
}

func (h *ControlHandler) play(w http.ResponseWriter, _ *http.Request) {
	h.respond(w, h.player.Play())
}

func (h *ControlHandler) pause(w http.ResponseWriter, _ *http.Request) {
	h.player.Pause()
	h.respond(w, nil)
}

func (h *ControlHandler) seek(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OffsetMS *int64 `json:"offset_ms"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if req.OffsetMS == nil {
		h.fail(w, fmt.Errorf("%w: offset_ms is required", shared.ErrInvalidInput))
		return
	}
	h.respond(w, h.player.Seek(*req.OffsetMS))
}

func (h *ControlHandler) volume(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Level *int `json:"level"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if req.Level == nil {
		h.fail(w, fmt.Errorf("%w: level is required", shared.ErrInvalidInput))
		return
	}
	h.respond(w, h.player.SetVolume(*req.Level))
}

func (h *ControlHandler) mute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Muted bool `json:"muted"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	h.player.SetMuted(req.Muted)
	h.respond(w, nil)
}

func (h *ControlHandler) next(w http.ResponseWriter, r *http.Request) {
	h.respond(w, h.player.Next(r.Context()))
}

func (h *ControlHandler) queue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TrackIDs []string `json:"track_ids"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	h.respond(w, h.player.Enqueue(req.TrackIDs...))
}

func (h *ControlHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.fail(w, fmt.Errorf("%w: malformed request body: %v", shared.ErrInvalidInput, err))
		return false
	}
	return true
}

// respond writes the current snapshot, or err when it is non-nil.
func (h *ControlHandler) respond(w http.ResponseWriter, err error) {
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(h.logger, w, http.StatusOK, newStatusResponse(h.player.Snapshot()))
}

func (h *ControlHandler) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= 500 {
		h.logger.Error("control request failed", "error", err)
	} else {
		h.logger.Debug("control request rejected", "error", err)
	}
	writeJSON(h.logger, w, status, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrInvalidInput), errors.Is(err, shared.ErrInvalidArgument),
		errors.Is(err, shared.ErrMissingArgument):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrNoSession), errors.Is(err, shared.ErrQueueEmpty),
		errors.Is(err, shared.ErrSessionExpired):
		return http.StatusConflict
	case errors.Is(err, player.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, shared.ErrSigningFailed), errors.Is(err, shared.ErrRefreshFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

type statusResponse struct {
	SessionID  string   `json:"session_id,omitempty"`
	TrackID    string   `json:"track_id,omitempty"`
	State      string   `json:"state"`
	Refresh    string   `json:"refresh"`
	Loading    bool     `json:"loading"`
	Playing    bool     `json:"playing"`
	PositionMS int64    `json:"position_ms"`
	DurationMS int64    `json:"duration_ms"`
	Volume     int      `json:"volume"`
	Muted      bool     `json:"muted"`
	Error      string   `json:"error,omitempty"`
	Queue      []string `json:"queue"`
}

func newStatusResponse(s player.Snapshot) statusResponse {
	queue := s.Queue
	if queue == nil {
		queue = []string{}
	}
	return statusResponse{
		SessionID:  s.SessionID,
		TrackID:    s.TrackID,
		State:      string(s.State),
		Refresh:    s.Refresh.Phase.String(),
		Loading:    s.Loading,
		Playing:    s.Playing,
		PositionMS: s.Position.Milliseconds(),
		DurationMS: s.Duration.Milliseconds(),
		Volume:     s.Volume,
		Muted:      s.Muted,
		Error:      s.Error,
		Queue:      queue,
	}
}

// writeJSON writes v with status. The header is already sent when encoding fails, so the error is only logged.
func writeJSON(logger *log.Logger, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "status", status, "error", err)
	}
}
