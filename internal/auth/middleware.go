package auth

import (
	"errors"
	"net/http"

	"go.uber.org/zap"
)

// Middleware provides HTTP authentication.
type Middleware struct {
	service    *Service
	jwtManager *JWTManager
	logger     *zap.Logger
}

// NewMiddleware creates a new authentication middleware.
func NewMiddleware(service *Service, jwtManager *JWTManager, logger *zap.Logger) *Middleware {
	return &Middleware{
		service:    service,
		jwtManager: jwtManager,
		logger:     logger,
	}
}

// Handler authenticates the request and stores the principal in the
// request context. Two paths are accepted: a bearer credential, validated
// by the JWT manager, or the trusted X-User-ID header, which skips
// credential decoding but is existence-checked against the user store.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID := r.Header.Get("X-User-ID"); userID != "" {
			principal, err := m.service.ResolveIdentity(r.Context(), userID)
			if err != nil {
				m.logger.Debug("Trusted identity header rejected",
					zap.String("user_id", userID),
					zap.Error(err),
				)
				m.sendUnauthorized(w, "User not found")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			m.sendUnauthorized(w, "Not authenticated")
			return
		}

		token, err := ExtractBearerToken(authHeader)
		if err != nil {
			m.sendUnauthorized(w, "Invalid authorization header")
			return
		}

		principal, err := m.jwtManager.Validate(token)
		if err != nil {
			var authErr *AuthError
			if errors.As(err, &authErr) {
				m.logger.Debug("Credential rejected",
					zap.String("kind", string(authErr.Kind)),
				)
			}
			m.sendUnauthorized(w, "Invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

func (m *Middleware) sendUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="taskagent"`)
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + message + `"}`))
}
