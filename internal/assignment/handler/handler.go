// Package handler exposes the assignment engine over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"aims/internal/domain"
	dErrors "aims/pkg/domain-errors"
	"aims/pkg/platform/httputil"
	"aims/pkg/platform/middleware/auth"
	"aims/pkg/platform/middleware/request"
)

// Service is the engine surface the transport needs.
type Service interface {
	AssignSeat(ctx context.Context, resourceID, holderID, actorID int64, comment string) (uuid.UUID, error)
	ReleaseAssignment(ctx context.Context, assignmentID uuid.UUID, actorID int64, comment string) error
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the assignment routes. extra middleware (auth, rate
// limiting) is applied by the caller before Register.
func (h *Handler) Register(r chi.Router) {
	r.Post("/assign", h.handleAssign)
	r.Post("/release", h.handleRelease)
}

type assignRequest struct {
	UserID       int64  `json:"userId"`
	ResourceKind string `json:"resourceKind"`
	ResourceID   int64  `json:"resourceId"`
	Comment      string `json:"comment,omitempty"`
}

type assignResponse struct {
	AssignmentID string `json:"assignmentId"`
}

func (h *Handler) handleAssign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	if req.UserID == 0 || req.ResourceID == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "userId and resourceId are required"))
		return
	}
	if _, err := domain.ParseResourceKind(req.ResourceKind); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, err.Error()))
		return
	}

	actorID := auth.GetActorID(ctx)
	id, err := h.service.AssignSeat(ctx, req.ResourceID, req.UserID, actorID, req.Comment)
	if err != nil {
		h.logger.WarnContext(ctx, "assign rejected",
			"request_id", request.GetRequestID(ctx),
			"resource_id", req.ResourceID,
			"holder_id", req.UserID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, assignResponse{AssignmentID: id.String()})
}

func (h *Handler) handleRelease(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	raw := r.URL.Query().Get("assignmentId")
	if raw == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "assignmentId is required"))
		return
	}
	assignmentID, err := uuid.Parse(raw)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "assignmentId must be a UUID"))
		return
	}

	actorID := auth.GetActorID(ctx)
	if err := h.service.ReleaseAssignment(ctx, assignmentID, actorID, r.URL.Query().Get("comment")); err != nil {
		h.logger.WarnContext(ctx, "release rejected",
			"request_id", request.GetRequestID(ctx),
			"assignment_id", assignmentID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "released"})
}
