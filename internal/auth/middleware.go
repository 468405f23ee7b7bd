package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/scanix-pos/scanix/internal/platform/httpx"
	"github.com/scanix-pos/scanix/internal/shared"
)

// Middleware guards routes with bearer tokens.
type Middleware struct {
	cfg    Config
	logger *slog.Logger
}

// NewMiddleware constructs Middleware.
func NewMiddleware(cfg Config, logger *slog.Logger) *Middleware {
	return &Middleware{cfg: cfg, logger: logger}
}

// RequireBearer rejects requests without a valid token and stores the
// caller as shared.Actor in the request context.
func (m *Middleware) RequireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			httpx.RespondError(w, m.logger, err)
			return
		}
		claims, err := ParseToken(m.cfg, token)
		if err != nil {
			if m.logger != nil {
				m.logger.Debug("bearer token rejected", slog.Any("error", err))
			}
			httpx.RespondError(w, m.logger, fmt.Errorf("%w: invalid token", shared.ErrUnauthorized))
			return
		}
		ctx := shared.ContextWithActor(r.Context(), shared.Actor{ID: claims.Subject, Name: claims.Name, Role: claims.Role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", fmt.Errorf("%w: no token", shared.ErrUnauthorized)
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", fmt.Errorf("%w: malformed authorization header", shared.ErrUnauthorized)
	}
	return strings.TrimSpace(token), nil
}
