package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/angelmondragon/marketplace-backend/api/responses"
	"github.com/angelmondragon/marketplace-backend/internal/identity"
	pkgAuth "github.com/angelmondragon/marketplace-backend/pkg/auth"
	"github.com/angelmondragon/marketplace-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

const (
	SessionHeader = "X-Session-Id"
	SessionCookie = "session_id"

	// MaxSessionIDLength bounds the id before it reaches cache keys and the
	// carts.session_id column.
	MaxSessionIDLength = 128
)

// Identity resolves the caller into an identity.Owner. A bearer token makes
// the caller a user; otherwise the session header or cookie makes it an
// anonymous session. Requests with neither pass through with no owner. A
// bearer token that fails validation is rejected outright.
func Identity(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var userID string
			if raw := strings.TrimSpace(r.Header.Get("Authorization")); raw != "" {
				token := raw
				if strings.HasPrefix(strings.ToLower(token), "bearer ") {
					token = strings.TrimSpace(token[7:])
				}
				if token == "" {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
					return
				}
				claims, err := pkgAuth.ParseAccessToken(cfg, token)
				if err != nil {
					msg := "invalid token"
					if errors.Is(err, pkgAuth.ErrTokenExpired) {
						msg = "token expired"
					}
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, msg))
					return
				}
				userID = claims.UserID.String()
			}

			sessionID := sessionIDFromRequest(r)
			if userID == "" && sessionID != "" && !validOpaqueID(sessionID, MaxSessionIDLength) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInvalidRequest, "invalid session id").
					WithDetails(map[string]any{"maxLength": MaxSessionIDLength}))
				return
			}

			owner := identity.Resolve(userID, sessionID)
			ctx := WithOwner(r.Context(), owner)
			if logg != nil {
				switch {
				case owner.IsUser():
					ctx = logg.WithUserID(ctx, owner.ID)
				case !owner.IsZero():
					ctx = logg.WithSessionID(ctx, owner.ID)
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionIDFromRequest(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get(SessionHeader)); v != "" {
		return v
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}

// validOpaqueID accepts tokens of letters, digits and ._:- up to maxLen bytes.
func validOpaqueID(id string, maxLen int) bool {
	if len(id) > maxLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '.', c == '_', c == ':', c == '-':
		default:
			return false
		}
	}
	return true
}

// RequireUser rejects requests that did not authenticate with a bearer token.
func RequireUser(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if UserIDFromContext(r.Context()) == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
