package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"nuca/internal/erasure"
	"nuca/internal/platform/middleware"
	respond "nuca/internal/transport/http/json"
	"nuca/internal/transport/http/shared"
)

// Service defines the erasure operations the handler needs.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, actor string) (*erasure.Request, error)
	Cancel(ctx context.Context, userID uuid.UUID, actor string) (*erasure.Request, error)
	Active(ctx context.Context, userID uuid.UUID) (*erasure.Request, error)
}

// Handler serves the delete-request endpoints.
type Handler struct {
	erasure Service
	logger  *slog.Logger
}

func New(erasure Service, logger *slog.Logger) *Handler {
	return &Handler{erasure: erasure, logger: logger}
}

// Register registers the erasure routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/v1/user/delete-request", h.handleCreate)
	r.Delete("/api/v1/user/delete-request", h.handleCancel)
	r.Get("/api/v1/user/delete-request", h.handleStatus)
}

type requestResponse struct {
	ID               uuid.UUID  `json:"id"`
	Status           string     `json:"status"`
	RequestedAt      time.Time  `json:"requested_at"`
	ScheduledPurgeAt time.Time  `json:"scheduled_purge_at"`
	CancelledAt      *time.Time `json:"cancelled_at,omitempty"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := shared.CallerID(ctx, w, h.logger)
	if !ok {
		return
	}

	req, err := h.erasure.Create(ctx, userID, "user")
	if err != nil {
		h.logger.WarnContext(ctx, "erasure request rejected",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		shared.WriteError(w, err)
		return
	}

	respond.WriteJSON(w, http.StatusCreated, toRequestResponse(req))
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := shared.CallerID(ctx, w, h.logger)
	if !ok {
		return
	}

	req, err := h.erasure.Cancel(ctx, userID, "user")
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	respond.WriteJSON(w, http.StatusOK, toRequestResponse(req))
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := shared.CallerID(ctx, w, h.logger)
	if !ok {
		return
	}

	req, err := h.erasure.Active(ctx, userID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if req == nil {
		respond.WriteJSON(w, http.StatusOK, map[string]any{"active": false})
		return
	}

	respond.WriteJSON(w, http.StatusOK, toRequestResponse(req))
}

func toRequestResponse(req *erasure.Request) requestResponse {
	return requestResponse{
		ID:               req.ID,
		Status:           string(req.Status),
		RequestedAt:      req.RequestedAt,
		ScheduledPurgeAt: req.ScheduledPurgeAt,
		CancelledAt:      req.CancelledAt,
	}
}
