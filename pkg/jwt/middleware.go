package jwt

import (
	"net/http"
	"strings"

	"github.com/dmitrymomot/billing/pkg/response"
)

// ErrorHandler writes the response for a rejected request.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// MiddlewareConfig configures the authentication middleware.
type MiddlewareConfig struct {
	Service *Service
	// OnError renders rejections. Defaults to a JSON 401.
	OnError ErrorHandler
}

// Middleware requires a valid bearer token whose subject is a user id and
// stores its claims in the request context.
func Middleware(service *Service) func(next http.Handler) http.Handler {
	return MiddlewareWithConfig(MiddlewareConfig{Service: service})
}

// MiddlewareWithConfig is Middleware with a custom error renderer.
func MiddlewareWithConfig(config MiddlewareConfig) func(next http.Handler) http.Handler {
	if config.Service == nil {
		panic("jwt: middleware requires a service")
	}
	if config.OnError == nil {
		config.OnError = unauthorized
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := BearerTokenExtractor(r)
			if err != nil {
				config.OnError(w, r, err)
				return
			}

			claims, err := config.Service.Parse(token)
			if err != nil {
				config.OnError(w, r, err)
				return
			}
			if _, err := claims.UserID(); err != nil {
				config.OnError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(SetClaims(r.Context(), claims)))
		})
	}
}

// BearerTokenExtractor reads the token from "Authorization: Bearer <token>".
// The scheme is matched case-insensitively per RFC 6750.
func BearerTokenExtractor(r *http.Request) (string, error) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrInvalidToken
	}
	return strings.TrimSpace(token), nil
}

func unauthorized(w http.ResponseWriter, _ *http.Request, err error) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="billing"`)
	response.Error(w, http.StatusUnauthorized, "unauthorized", err.Error())
}
