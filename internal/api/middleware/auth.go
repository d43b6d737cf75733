package middleware

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/dom/skillswap/internal/domain"
	"github.com/dom/skillswap/internal/service"
	"github.com/google/uuid"
)

type contextKey string

const (
	UserIDKey contextKey = "userID"
)

// Auth requires a bearer token for a user that still exists. A request that
// names a ?redirect= path is sent to loginPath instead of getting a 401, with
// the original path kept so the login page can send the user back.
func Auth(authService *service.AuthService, loginPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			deny := func(reason string) {
				if target, ok := RedirectTarget(r); ok {
					login := &url.URL{Path: loginPath}
					q := login.Query()
					q.Set("error", domain.CodeNotAuthenticated)
					q.Set("redirect", target.String())
					login.RawQuery = q.Encode()
					http.Redirect(w, r, login.String(), http.StatusSeeOther)
					return
				}
				http.Error(w, reason, http.StatusUnauthorized)
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				deny("Authorization header required")
				return
			}

			token, found := strings.CutPrefix(authHeader, "Bearer ")
			if !found || token == "" {
				log.Printf("WARN [middleware.Auth] invalid authorization header format")
				deny("Invalid authorization header")
				return
			}

			userID, err := authService.Authenticate(r.Context(), token)
			if err != nil {
				log.Printf("WARN [middleware.Auth] rejected token: %v", err)
				deny("Invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetUserID(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(UserIDKey).(uuid.UUID)
	return userID, ok
}

// RedirectTarget returns the request's ?redirect= value when it is a local
// absolute path.
func RedirectTarget(r *http.Request) (*url.URL, bool) {
	raw := r.URL.Query().Get("redirect")
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return nil, false
	}
	target, err := url.Parse(raw)
	if err != nil || target.Host != "" || target.Scheme != "" {
		return nil, false
	}
	return target, true
}
