package auth

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/davidleathers/tenant-isolation-core/internal/infrastructure/telemetry"
	"github.com/davidleathers/tenant-isolation-core/internal/service/contextmgr"
)

// Middleware authenticates requests and binds the asserted isolation
// context onto the request context. Downstream handlers read it with
// contextmgr.From; requests without a valid token are rejected before any
// resource access happens.
func Middleware(authenticator *Authenticator, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			ic, err := authenticator.ContextFromToken(token)
			if err != nil {
				telemetry.WithTraceContext(r.Context(), logger).Warn("request authentication failed",
					zap.String("path", r.URL.Path),
					zap.Error(err))
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(contextmgr.With(r.Context(), ic)))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
