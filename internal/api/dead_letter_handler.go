package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/taskcore/internal/api/shared"
	"github.com/phrazzld/taskcore/internal/deadletter"
	"github.com/phrazzld/taskcore/internal/platform/logger"
	"github.com/phrazzld/taskcore/internal/redact"
)

// DeadLetterHandler serves the durable dead-letter archive.
type DeadLetterHandler struct {
	archive *deadletter.Queue
	replay  deadletter.ReplayFunc
	logger  *slog.Logger
}

// NewDeadLetterHandler creates a handler over archive. replay re-executes
// entries for POST /api/dead-letters/{id}/replay.
func NewDeadLetterHandler(archive *deadletter.Queue, replay deadletter.ReplayFunc, logger *slog.Logger) *DeadLetterHandler {
	return &DeadLetterHandler{
		archive: archive,
		replay:  replay,
		logger:  logger.With("component", "dead_letter_handler"),
	}
}

// List handles GET /api/dead-letters.
func (h *DeadLetterHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := deadletter.ListOptions{Operation: q.Get("operation")}

	if raw := q.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, "since must be an RFC 3339 timestamp")
			return
		}
		opts.Since = since
	}
	if raw := q.Get("include_replayed"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, "include_replayed must be a boolean")
			return
		}
		opts.IncludeReplayed = v
	}

	entries, err := h.archive.List(r.Context(), opts)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to read dead letters", err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, DeadLetterListResponse{Entries: entries, Count: len(entries)})
}

// Get handles GET /api/dead-letters/{id}.
func (h *DeadLetterHandler) Get(w http.ResponseWriter, r *http.Request) {
	entry, err := h.archive.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, entry)
}

// Replay handles POST /api/dead-letters/{id}/replay. A failed replay returns
// 422 with the redacted failure; the entry stays in the archive.
func (h *DeadLetterHandler) Replay(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	log := h.logger.With("entry_id", id, "trace_id", shared.GetTraceID(r.Context()))

	if _, err := h.archive.Get(r.Context(), id); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	result := h.archive.Replay(r.Context(), id, h.replay)
	if result.Success {
		log.Info("dead letter replayed via API")
		shared.RespondWithJSON(w, r, http.StatusOK, result)
		return
	}

	if strings.Contains(result.Error, deadletter.ErrReplayInProgress.Error()) {
		shared.RespondWithError(w, r, http.StatusConflict, "Replay already in progress")
		return
	}

	log.Warn("dead letter replay failed", "error", redact.String(result.Error))
	result.Error = redact.String(result.Error)
	shared.RespondWithJSON(w, r, http.StatusUnprocessableEntity, result)
}

// Purge handles DELETE /api/dead-letters. Without a before parameter every
// entry is removed.
func (h *DeadLetterHandler) Purge(w http.ResponseWriter, r *http.Request) {
	var before *time.Time
	if raw := r.URL.Query().Get("before"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, "before must be an RFC 3339 timestamp")
			return
		}
		before = &t
	}

	n, err := h.archive.Purge(r.Context(), before)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to purge dead letters", err)
		return
	}

	subject, _ := shared.GetSubject(r.Context())
	logger.FromContext(r.Context()).Info("dead letters purged via API", "removed", n, "subject", subject)
	shared.RespondWithJSON(w, r, http.StatusOK, PurgeResponse{Removed: n})
}

// Routes registers the archive endpoints on r.
func (h *DeadLetterHandler) Routes(r chi.Router) {
	r.Get("/dead-letters", h.List)
	r.Delete("/dead-letters", h.Purge)
	r.Get("/dead-letters/{id}", h.Get)
	r.Post("/dead-letters/{id}/replay", h.Replay)
}
