package shared

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"nuca/internal/platform/middleware"
	dErrors "nuca/pkg/domain-errors"
)

// CallerID extracts the authenticated user id. RequireAuth guarantees it is
// present on gated routes; a miss is a programming error, not a client fault.
func CallerID(ctx context.Context, w http.ResponseWriter, logger *slog.Logger) (uuid.UUID, bool) {
	raw := middleware.GetUserID(ctx)
	if raw == "" {
		logger.ErrorContext(ctx, "userID missing from context despite auth middleware",
			"request_id", middleware.GetRequestID(ctx),
		)
		WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return uuid.Nil, false
	}
	return userID, true
}
