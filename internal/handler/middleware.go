package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/boddenberg/plantao-presenca-go/internal/infra/observability"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const orgIDKey contextKey = "organizationID"

// OrganizationMiddleware reads {orgId} from the route, rejects blank ids
// and injects the organization into the context and the current span.
func OrganizationMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			orgID := strings.TrimSpace(chi.URLParam(r, "orgId"))
			if orgID == "" {
				logger.Warn("missing organization id",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusBadRequest, "orgId is required")
				return
			}

			trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("organization.id", orgID))
			observability.AnnotateRequest(r.Context(), zap.String("organization_id", orgID))
			ctx := context.WithValue(r.Context(), orgIDKey, orgID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OrganizationIDFromContext extracts the organization id set by
// OrganizationMiddleware.
func OrganizationIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(orgIDKey).(string)
	return v
}

// tagRecordKey attaches the shift and professional a request is about to
// the span and to the access-log line. Blank ids are skipped.
func tagRecordKey(ctx context.Context, span trace.Span, shiftID, professionalUserID string) {
	if shiftID != "" {
		span.SetAttributes(attribute.String("shift.id", shiftID))
		observability.AnnotateRequest(ctx, zap.String("shift_id", shiftID))
	}
	if professionalUserID != "" {
		span.SetAttributes(attribute.String("professional.id", professionalUserID))
		observability.AnnotateRequest(ctx, zap.String("professional_id", professionalUserID))
	}
}
