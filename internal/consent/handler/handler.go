package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"nuca/internal/consent"
	"nuca/internal/platform/middleware"
	respond "nuca/internal/transport/http/json"
	"nuca/internal/transport/http/shared"
	dErrors "nuca/pkg/domain-errors"
)

// Service defines the consent operations the handler needs.
type Service interface {
	Set(ctx context.Context, userID uuid.UUID, t consent.Type, granted bool, version, actor string) (*consent.Record, error)
	Get(ctx context.Context, userID uuid.UUID, t consent.Type) (bool, error)
	Current(ctx context.Context, userID uuid.UUID, defaultVersion string) ([]*consent.Record, error)
}

// Handler serves the consent endpoints.
type Handler struct {
	consent       Service
	logger        *slog.Logger
	policyVersion string
}

func New(consent Service, logger *slog.Logger, policyVersion string) *Handler {
	return &Handler{
		consent:       consent,
		logger:        logger,
		policyVersion: policyVersion,
	}
}

// Register registers the consent routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/v1/consent/", h.handleSetConsent)
	r.Get("/api/v1/consent/", h.handleListConsents)
	r.Get("/api/v1/consent/{type}", h.handleGetConsent)
}

type setConsentRequest struct {
	ConsentType string `json:"consent_type"`
	Granted     bool   `json:"granted"`
}

type recordResponse struct {
	ID          uuid.UUID `json:"id"`
	ConsentType string    `json:"consent_type"`
	Granted     bool      `json:"granted"`
	Version     string    `json:"version"`
	RecordedAt  time.Time `json:"recorded_at"`
}

func (h *Handler) handleSetConsent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := shared.CallerID(ctx, w, h.logger)
	if !ok {
		return
	}

	var req setConsentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	t, err := consent.ParseType(req.ConsentType)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	record, err := h.consent.Set(ctx, userID, t, req.Granted, h.policyVersion, "user")
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to set consent",
			"request_id", middleware.GetRequestID(ctx),
			"consent_type", req.ConsentType,
			"error", err,
		)
		shared.WriteError(w, err)
		return
	}

	respond.WriteJSON(w, http.StatusCreated, toRecordResponse(record))
}

func (h *Handler) handleListConsents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := shared.CallerID(ctx, w, h.logger)
	if !ok {
		return
	}

	records, err := h.consent.Current(ctx, userID, h.policyVersion)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list consents",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		shared.WriteError(w, err)
		return
	}

	out := make([]recordResponse, 0, len(records))
	for _, record := range records {
		out = append(out, toRecordResponse(record))
	}
	respond.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetConsent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := shared.CallerID(ctx, w, h.logger)
	if !ok {
		return
	}

	t, err := consent.ParseType(chi.URLParam(r, "type"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	granted, err := h.consent.Get(ctx, userID, t)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	respond.WriteJSON(w, http.StatusOK, map[string]any{
		"consent_type": string(t),
		"granted":      granted,
	})
}

func toRecordResponse(record *consent.Record) recordResponse {
	return recordResponse{
		ID:          record.ID,
		ConsentType: string(record.Type),
		Granted:     record.Granted,
		Version:     record.Version,
		RecordedAt:  record.RecordedAt,
	}
}
