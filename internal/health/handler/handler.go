package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"nuca/internal/health/service"
	"nuca/internal/platform/middleware"
	respond "nuca/internal/transport/http/json"
	"nuca/internal/transport/http/shared"
	dErrors "nuca/pkg/domain-errors"
)

// Service defines the gated health-domain operations the handler needs.
type Service interface {
	CreateProfile(ctx context.Context, userID uuid.UUID, input service.ProfileInput, actor string) (*service.ProfileView, error)
	GetProfile(ctx context.Context, userID uuid.UUID, actor string) (*service.ProfileView, error)
	AddFamilyMember(ctx context.Context, userID uuid.UUID, input service.FamilyMemberInput, actor string) (*service.FamilyMemberView, error)
	ListFamily(ctx context.Context, userID uuid.UUID) ([]*service.FamilyMemberView, error)
	ExportData(ctx context.Context, userID uuid.UUID, actor string) (*service.Export, error)
}

// Handler serves the profile, family, and export endpoints.
type Handler struct {
	health Service
	logger *slog.Logger
}

func New(health Service, logger *slog.Logger) *Handler {
	return &Handler{health: health, logger: logger}
}

// Register registers the health-domain routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/v1/profiles/", h.handleCreateProfile)
	r.Get("/api/v1/profiles/me", h.handleGetProfile)
	r.Post("/api/v1/family/", h.handleAddFamilyMember)
	r.Get("/api/v1/family/", h.handleListFamily)
	r.Get("/api/v1/user/export", h.handleExport)
}

const dateLayout = "2006-01-02"

type profileRequest struct {
	DateOfBirth   string `json:"date_of_birth"`
	Hypertension  bool   `json:"hypertension"`
	Diabetes      bool   `json:"diabetes"`
	HeartDisease  bool   `json:"heart_disease"`
	KidneyDisease bool   `json:"kidney_disease"`
	Pregnancy     bool   `json:"pregnancy"`
}

func (h *Handler) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := shared.CallerID(ctx, w, h.logger)
	if !ok {
		return
	}

	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	dob, err := time.ParseInLocation(dateLayout, req.DateOfBirth, time.UTC)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "date_of_birth must be YYYY-MM-DD"))
		return
	}

	view, err := h.health.CreateProfile(ctx, userID, service.ProfileInput{
		DateOfBirth:   dob,
		Hypertension:  req.Hypertension,
		Diabetes:      req.Diabetes,
		HeartDisease:  req.HeartDisease,
		KidneyDisease: req.KidneyDisease,
		Pregnancy:     req.Pregnancy,
	}, "user")
	if err != nil {
		h.logger.WarnContext(ctx, "profile creation rejected",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		shared.WriteError(w, err)
		return
	}

	respond.WriteJSON(w, http.StatusCreated, view)
}

func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := shared.CallerID(ctx, w, h.logger)
	if !ok {
		return
	}

	view, err := h.health.GetProfile(ctx, userID, "user")
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	respond.WriteJSON(w, http.StatusOK, view)
}

type familyMemberRequest struct {
	Name         string `json:"name"`
	Relationship string `json:"relationship"`
	DateOfBirth  string `json:"date_of_birth"`
}

func (h *Handler) handleAddFamilyMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := shared.CallerID(ctx, w, h.logger)
	if !ok {
		return
	}

	var req familyMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	dob, err := time.ParseInLocation(dateLayout, req.DateOfBirth, time.UTC)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "date_of_birth must be YYYY-MM-DD"))
		return
	}

	view, err := h.health.AddFamilyMember(ctx, userID, service.FamilyMemberInput{
		Name:         req.Name,
		Relationship: req.Relationship,
		DateOfBirth:  dob,
	}, "user")
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	respond.WriteJSON(w, http.StatusCreated, view)
}

func (h *Handler) handleListFamily(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := shared.CallerID(ctx, w, h.logger)
	if !ok {
		return
	}

	views, err := h.health.ListFamily(ctx, userID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	respond.WriteJSON(w, http.StatusOK, views)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := shared.CallerID(ctx, w, h.logger)
	if !ok {
		return
	}

	export, err := h.health.ExportData(ctx, userID, "user")
	if err != nil {
		h.logger.ErrorContext(ctx, "data export failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		shared.WriteError(w, err)
		return
	}

	respond.WriteJSON(w, http.StatusOK, export)
}
