package auth

import (
	"context"
	"fmt"
	"time"
)

// AuthErrorKind classifies credential validation failures.
type AuthErrorKind string

const (
	ErrKindExpired          AuthErrorKind = "expired"
	ErrKindMalformed        AuthErrorKind = "malformed"
	ErrKindSignatureInvalid AuthErrorKind = "signature_invalid"
	ErrKindMissingSubject   AuthErrorKind = "missing_subject"
	ErrKindIdentityNotFound AuthErrorKind = "identity_not_found"
)

// AuthError is a fatal credential failure. It aborts the request before any
// side effect and surfaces as an unauthorized response.
type AuthError struct {
	Kind AuthErrorKind
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("auth: %s", e.Kind)
}

func (e *AuthError) Unwrap() error { return e.Err }

// NewAuthError creates an AuthError of the given kind.
func NewAuthError(kind AuthErrorKind, err error) *AuthError {
	return &AuthError{Kind: kind, Err: err}
}

// User represents a registered account.
type User struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	FirstName    string    `json:"first_name,omitempty" db:"first_name"`
	LastName     string    `json:"last_name,omitempty" db:"last_name"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Principal is the authenticated context for a request. UserID is the
// verified identity and the sole basis for authorization scoping. Token
// carries the raw bearer credential when the request presented one; tool
// executions re-validate it rather than trusting an identity from any
// request parameter.
type Principal struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`

	// Token is empty when the request authenticated via the trusted
	// identity header instead of a bearer credential.
	Token string `json:"-"`
}

// TokenPair is the response payload for login and register.
type TokenPair struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// contextKey is the key type for context values.
type contextKey string

const principalKey contextKey = "principal"

// WithPrincipal returns a context carrying the authenticated principal.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the authenticated principal, if any.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok
}
