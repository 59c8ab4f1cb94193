package auth

import (
	"context"
	"net/http"

	"club-pos/internal/logger"
	"club-pos/internal/utils"
)

type contextKey string

const sessionIDKey contextKey = "session_id"

// Middleware rejects requests without a valid session token and stores the
// session id in the request context.
func Middleware(issuer *TokenIssuer, log *logger.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = logger.Discard()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken, err := ExtractTokenFromRequest(r)
			if err != nil {
				utils.WriteError(w, http.StatusUnauthorized, "Not authenticated", err)
				return
			}

			sessionID, err := issuer.SessionID(rawToken)
			if err != nil {
				log.LogSecurity("TOKEN", "Rejected session token: "+err.Error())
				utils.WriteError(w, http.StatusUnauthorized, "Not authenticated", err)
				return
			}

			ctx := WithSessionID(r.Context(), sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// SessionID returns the session id set by Middleware, or "".
func SessionID(ctx context.Context) string {
	if id, ok := ctx.Value(sessionIDKey).(string); ok {
		return id
	}
	return ""
}
