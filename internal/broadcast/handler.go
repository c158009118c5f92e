package broadcast

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"radio-engine/internal/platform/metrics"
)

// Handler exposes the playback surface over HTTP using go-chi. This is the
// read API any client consumes to know what to render and at what offset to
// start; all timeline math happens in the Service and locator beneath it.
type Handler struct {
	svc     *Service
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewHandler returns a Handler that uses the given Service, Logger, and
// optional Metrics. Metrics may be nil to disable recording (e.g. in tests).
func NewHandler(svc *Service, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{svc: svc, log: log, metrics: m}
}

// atTime parses the optional "at" query parameter (RFC 3339), defaulting to
// the current wall clock. ok is false when the parameter is malformed.
func atTime(r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("at")
	if raw == "" {
		return time.Now().UTC(), true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Live handles GET /broadcast/live. It answers "what plays right now" for
// the shared broadcast; every client polling this converges on the same
// position because the session and the wall clock are shared.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	at, ok := atTime(r)
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	status, err := h.svc.Live(r.Context(), at)
	if err != nil {
		h.log.Error("live position failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if h.metrics != nil {
		h.metrics.IncLocateRequests()
	}
	writeJSON(w, http.StatusOK, status)
}

// UpNext handles GET /broadcast/upnext.
func (h *Handler) UpNext(w http.ResponseWriter, r *http.Request) {
	at, ok := atTime(r)
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	limit := 5
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		limit = n
	}

	segments, err := h.svc.UpNext(r.Context(), at, limit)
	if err != nil {
		h.log.Error("upnext failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"segments": segments})
}

// scheduleResponse is the session summary served to schedule views.
type scheduleResponse struct {
	SessionID string         `json:"sessionId"`
	CreatedAt time.Time      `json:"createdAt"`
	ExpiresAt time.Time      `json:"expiresAt"`
	Blocks    []blockSummary `json:"blocks"`
}

type blockSummary struct {
	ID         string     `json:"id"`
	StartTime  time.Time  `json:"startTime"`
	EndTime    time.Time  `json:"endTime"`
	MusicStyle MusicStyle `json:"musicStyle"`
	VoiceCount int        `json:"voiceCount"`
	MusicCount int        `json:"musicCount"`
	Locked     bool       `json:"locked"`
}

func summarize(sess *BroadcastSession) scheduleResponse {
	resp := scheduleResponse{
		SessionID: sess.ID,
		CreatedAt: sess.CreatedAt,
		ExpiresAt: sess.ExpiresAt,
		Blocks:    make([]blockSummary, 0, len(sess.Blocks)),
	}
	for _, b := range sess.Blocks {
		resp.Blocks = append(resp.Blocks, blockSummary{
			ID:         b.ID,
			StartTime:  b.StartTime,
			EndTime:    b.EndTime,
			MusicStyle: b.Strategy.MusicStyle,
			VoiceCount: len(b.VoiceSegments),
			MusicCount: len(b.MusicSegments),
			Locked:     b.Locked,
		})
	}
	return resp
}

// Schedule handles GET /broadcast/schedule.
func (h *Handler) Schedule(w http.ResponseWriter, r *http.Request) {
	sess := h.svc.Session(r.Context())
	if sess == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, summarize(sess))
}

// Regenerate handles POST /broadcast/regenerate.
func (h *Handler) Regenerate(w http.ResponseWriter, r *http.Request) {
	now, ok := atTime(r)
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	sess, err := h.svc.Regenerate(r.Context(), now)
	if err != nil {
		// The fresh session is still served; persistence degraded.
		h.log.Warn("regenerate persisted with errors", slog.String("error", err.Error()))
	}
	h.log.Info("schedule regenerated",
		slog.String("session_id", sess.ID),
		slog.Int("blocks", len(sess.Blocks)))
	writeJSON(w, http.StatusCreated, summarize(sess))
}

// Shuffle handles POST /broadcast/shuffle.
func (h *Handler) Shuffle(w http.ResponseWriter, r *http.Request) {
	at, ok := atTime(r)
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	changed, err := h.svc.Shuffle(r.Context(), at)
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.log.Error("shuffle failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if changed && h.metrics != nil {
		h.metrics.IncShuffles()
	}
	writeJSON(w, http.StatusOK, map[string]bool{"changed": changed})
}
