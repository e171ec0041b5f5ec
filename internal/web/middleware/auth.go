package middleware

import (
	"net/http"
	"strings"

	"github.com/Julianb233/sierra-fred-carey-sub003/internal/web/auth"
	webcontext "github.com/Julianb233/sierra-fred-carey-sub003/internal/web/context"
	"github.com/Julianb233/sierra-fred-carey-sub003/internal/web/response"
)

// Auth requires a valid bearer API key and stores its subject and role in
// the request context
func Auth(authService *auth.AuthService) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				unauthorized(w, "Authorization required")
				return
			}

			scheme, token, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
				unauthorized(w, "Invalid authorization format")
				return
			}

			claims, err := authService.ValidateToken(token)
			if err != nil {
				unauthorized(w, "Invalid token")
				return
			}

			ctx := webcontext.SetRole(r.Context(), claims.Role)
			ctx = webcontext.SetSubject(ctx, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	response.RenderError(w, http.StatusUnauthorized, message)
}
