package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"bankcards/internal/common/logging"
)

type contextKey string

const principalKey contextKey = "principal"

// Principal is the authenticated caller attached to a request context.
type Principal struct {
	UserID uuid.UUID
	Role   string
}

// WithPrincipal stores p in the context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the authenticated caller, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

// Middleware authenticates bearer tokens and enforces roles.
type Middleware struct {
	tokens *TokenService
}

// NewMiddleware creates auth middleware backed by the token service.
func NewMiddleware(tokens *TokenService) *Middleware {
	return &Middleware{tokens: tokens}
}

// Authenticate validates the Authorization header and attaches the principal
// to the request context. Requests without a valid token get 401.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			writeAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", err.Error())
			return
		}

		claims, err := m.tokens.Validate(r.Context(), token)
		if err != nil {
			if errors.Is(err, ErrExpiredToken) {
				writeAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", "token expired")
				return
			}
			writeAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token")
			return
		}

		ctx := WithPrincipal(r.Context(), Principal{UserID: claims.UserID, Role: claims.Role})
		ctx = logging.WithUserID(ctx, claims.UserID.String())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole wraps next so that only principals holding one of roles may call it.
// Must run after Authenticate.
func (m *Middleware) RequireRole(next http.Handler, roles ...string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		if !ok {
			writeAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", ErrMissingToken.Error())
			return
		}
		for _, role := range roles {
			if p.Role == role {
				next.ServeHTTP(w, r)
				return
			}
		}
		logging.WarnContext(r.Context(), "role check failed", "role", p.Role, "path", r.URL.Path)
		writeAuthError(w, http.StatusForbidden, "FORBIDDEN", "insufficient role")
	})
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingToken
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrInvalidToken
	}
	return strings.TrimSpace(token), nil
}

type errorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

func writeAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: http.StatusText(status), Code: code, Message: message})
}
