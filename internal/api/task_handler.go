package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/taskcore/internal/api/shared"
	"github.com/phrazzld/taskcore/internal/platform/logger"
	"github.com/phrazzld/taskcore/internal/task"
)

// TaskHandler serves task submission, queue and result endpoints.
type TaskHandler struct {
	queue             *task.TaskQueue
	router            *task.Router
	aggregator        *task.ResultAggregator
	defaultMaxRetries int
	logger            *slog.Logger
}

// NewTaskHandler creates a TaskHandler. When router is non-nil, submissions
// for task types without a registered handler are rejected.
func NewTaskHandler(
	queue *task.TaskQueue,
	router *task.Router,
	aggregator *task.ResultAggregator,
	defaultMaxRetries int,
	logger *slog.Logger,
) *TaskHandler {
	return &TaskHandler{
		queue:             queue,
		router:            router,
		aggregator:        aggregator,
		defaultMaxRetries: defaultMaxRetries,
		logger:            logger.With("component", "task_handler"),
	}
}

// SubmitTask handles POST /api/tasks.
func (h *TaskHandler) SubmitTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var req SubmitTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+shared.ValidationMessage(err))
		return
	}
	if h.router != nil && !h.router.Has(req.Type) {
		shared.RespondWithError(w, r, http.StatusUnprocessableEntity, "No handler registered for task type")
		return
	}

	opts := []task.Option{task.WithID(req.ID), task.WithMaxRetries(h.defaultMaxRetries)}
	if req.Priority != "" {
		p, err := task.ParsePriority(req.Priority)
		if err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: unknown priority")
			return
		}
		opts = append(opts, task.WithPriority(p))
	}
	if req.Deadline != nil {
		opts = append(opts, task.WithDeadline(req.Deadline.UTC()))
	}
	if req.MaxRetries != nil {
		opts = append(opts, task.WithMaxRetries(*req.MaxRetries))
	}

	t := task.NewTask(req.Type, req.Payload, opts...)
	resp := taskToResponse(*t)
	if !h.queue.Enqueue(t) {
		shared.RespondWithError(w, r, http.StatusConflict, "Task with this ID is already queued or in flight")
		return
	}

	log.Info("task submitted",
		"task_id", resp.ID,
		"task_type", resp.Type,
		"priority", resp.Priority)
	shared.RespondWithJSON(w, r, http.StatusAccepted, resp)
}

// QueueStats handles GET /api/queue/stats.
func (h *TaskHandler) QueueStats(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, h.queue.Stats())
}

// QueueDeadLetters handles GET /api/queue/dead-letters, listing tasks held
// in the queue's in-memory dead-letter list.
func (h *TaskHandler) QueueDeadLetters(w http.ResponseWriter, r *http.Request) {
	tasks := h.queue.DeadLetters()
	resp := TaskListResponse{Tasks: make([]TaskResponse, 0, len(tasks)), Count: len(tasks)}
	for _, t := range tasks {
		resp.Tasks = append(resp.Tasks, taskToResponse(t))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// RequeueDeadLetters handles POST /api/queue/requeue-dead-letters.
func (h *TaskHandler) RequeueDeadLetters(w http.ResponseWriter, r *http.Request) {
	n := h.queue.RequeueDeadLetters()
	h.logger.Info("dead-lettered tasks requeued", "count", n, "trace_id", shared.GetTraceID(r.Context()))
	shared.RespondWithJSON(w, r, http.StatusOK, RequeueResponse{Requeued: n})
}

// ResultsSummary handles GET /api/results/summary. Individual results are
// included only when include_results=true.
func (h *TaskHandler) ResultsSummary(w http.ResponseWriter, r *http.Request) {
	include := false
	if raw := r.URL.Query().Get("include_results"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, "include_results must be a boolean")
			return
		}
		include = v
	}

	summary := h.aggregator.Aggregate()
	if !include {
		summary.Results = nil
	}
	shared.RespondWithJSON(w, r, http.StatusOK, summary)
}

// Routes registers the task and queue endpoints on r.
func (h *TaskHandler) Routes(r chi.Router) {
	r.Post("/tasks", h.SubmitTask)
	r.Get("/queue/stats", h.QueueStats)
	r.Get("/queue/dead-letters", h.QueueDeadLetters)
	r.Post("/queue/requeue-dead-letters", h.RequeueDeadLetters)
	r.Get("/results/summary", h.ResultsSummary)
}
