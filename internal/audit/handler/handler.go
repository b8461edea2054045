// Package handler exposes the audit ledger over HTTP: the upsert endpoint,
// the catch-up poller with ETag revalidation, and the real-time SSE stream.
package handler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"aims/internal/audit"
	"aims/internal/broadcast"
	"aims/internal/clock"
	"aims/internal/directory"
	"aims/internal/domain"
	"aims/internal/platform/metrics"
	dErrors "aims/pkg/domain-errors"
	"aims/pkg/platform/httputil"
	"aims/pkg/platform/middleware/auth"
	"aims/pkg/platform/middleware/request"
)

const (
	defaultTake   = 100
	sseHeartbeat  = 15 * time.Second
	eventsPathFmt = "/audit/events/%s"
)

// Service is the ledger surface the transport needs.
type Service interface {
	Upsert(ctx context.Context, event domain.AuditEvent) (uuid.UUID, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.AuditEvent, error)
	GetSince(ctx context.Context, since time.Time, take int) ([]domain.AuditEvent, error)
}

type Handler struct {
	service       Service
	users         directory.UserDirectory
	hub           *broadcast.Hub
	logger        *slog.Logger
	metrics       *metrics.Metrics
	clock         clock.Clock
	catchupWindow time.Duration
}

func New(
	service Service,
	users directory.UserDirectory,
	hub *broadcast.Hub,
	logger *slog.Logger,
	m *metrics.Metrics,
	clk clock.Clock,
	catchupWindow time.Duration,
) *Handler {
	return &Handler{
		service:       service,
		users:         users,
		hub:           hub,
		logger:        logger,
		metrics:       m,
		clock:         clk,
		catchupWindow: catchupWindow,
	}
}

// RegisterMutations mounts the write route; the caller decides whether it
// sits behind auth.
func (h *Handler) RegisterMutations(r chi.Router) {
	r.Post("/audit/create", h.handleCreate)
}

// RegisterQueries mounts the read routes; the caller decides whether they sit
// behind rate limiting.
func (h *Handler) RegisterQueries(r chi.Router) {
	r.Get("/audit/events", h.handleGetEvents)
	r.Get("/audit/events/{id}", h.handleGetEvent)
	r.Get("/audit/stream", h.handleStream)
}

type createRequest struct {
	ExternalID   string               `json:"externalId"`
	Action       string               `json:"action"`
	Description  string               `json:"description,omitempty"`
	ActorID      int64                `json:"actorId"`
	ResourceKind string               `json:"resourceKind"`
	ResourceID   int64                `json:"resourceId"`
	OccurredAt   time.Time            `json:"occurredAtUtc,omitzero"`
	Changes      []domain.FieldChange `json:"changes,omitempty"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	kind, err := domain.ParseResourceKind(req.ResourceKind)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, err.Error()))
		return
	}

	actorID := req.ActorID
	if actorID == 0 {
		actorID = auth.GetActorID(ctx)
	}

	id, err := h.service.Upsert(ctx, domain.AuditEvent{
		ExternalID:  req.ExternalID,
		ActorID:     actorID,
		Action:      domain.AuditAction(req.Action),
		Resource:    domain.ResourceRef{Kind: kind, ID: req.ResourceID},
		OccurredAt:  req.OccurredAt,
		Description: req.Description,
		Changes:     req.Changes,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "audit create rejected",
			"request_id", request.GetRequestID(ctx),
			"external_id", req.ExternalID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf(eventsPathFmt, id))
	httputil.WriteJSON(w, http.StatusCreated, map[string]string{"id": id.String()})
}

func (h *Handler) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "id must be a UUID"))
		return
	}

	event, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, h.toDTO(r.Context(), event))
}

type eventsResponse struct {
	Items     []audit.EventDTO `json:"items"`
	NextSince time.Time        `json:"nextSince"`
}

func (h *Handler) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	started := h.clock.Now()

	// Missing or unparsable since falls back to the catch-up window rather
	// than failing the poll; a recovering client should always get data.
	since := started.Add(-h.catchupWindow)
	if raw := r.URL.Query().Get("since"); raw != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			since = parsed
		}
	}

	take := defaultTake
	if raw := r.URL.Query().Get("take"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "take must be an integer"))
			return
		}
		take = parsed
	}

	events, err := h.service.GetSince(ctx, since, take)
	if err != nil {
		h.logger.ErrorContext(ctx, "catch-up query failed",
			"request_id", request.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	etag := catchupETag(events)
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	resp := eventsResponse{
		Items:     make([]audit.EventDTO, 0, len(events)),
		NextSince: since,
	}
	for _, event := range events {
		resp.Items = append(resp.Items, h.toDTO(ctx, event))
		if event.OccurredAt.After(resp.NextSince) {
			resp.NextSince = event.OccurredAt
		}
	}

	if h.metrics != nil {
		h.metrics.CatchupLatency.Observe(time.Since(started).Seconds())
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// handleStream pushes every committed event to the client as SSE frames.
// Clients that fall behind lose frames and are expected to reconcile via the
// catch-up endpoint, using the DTO id or hash to deduplicate.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "streaming unsupported"))
		return
	}

	events, cancel := h.hub.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case dto, open := <-events:
			if !open {
				return
			}
			payload, err := json.Marshal(dto)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "id: %s\ndata: %s\n\n", dto.ID, payload)
			flusher.Flush()
		}
	}
}

func (h *Handler) toDTO(ctx context.Context, event domain.AuditEvent) audit.EventDTO {
	var actorName string
	if user, err := h.users.FindUser(ctx, event.ActorID); err == nil {
		actorName = user.DisplayName
	}
	return audit.NewEventDTO(event, actorName)
}

// catchupETag derives a weak validator from the newest event id and the page
// size; any committed write changes one of the two.
func catchupETag(events []domain.AuditEvent) string {
	newest := "none"
	if len(events) > 0 {
		newest = events[0].ID.String()
	}
	sum := sha256.Sum256([]byte(newest + "|" + strconv.Itoa(len(events))))
	return `W/"` + hex.EncodeToString(sum[:8]) + `"`
}
