package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JWTManager validates and issues signed bearer credentials.
type JWTManager struct {
	signingKey  []byte
	tokenExpiry time.Duration
	issuer      string
}

// NewJWTManager creates a new JWT manager.
func NewJWTManager(signingKey string, tokenExpiry time.Duration) *JWTManager {
	return &JWTManager{
		signingKey:  []byte(signingKey),
		tokenExpiry: tokenExpiry,
		issuer:      "taskagent",
	}
}

// CustomClaims represents the custom JWT claims.
type CustomClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// Generate creates a signed access token for the user.
func (j *JWTManager) Generate(user *User) (string, error) {
	now := time.Now()

	claims := CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.tokenExpiry)),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
		Email: user.Email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.signingKey)
}

// Expiry returns the configured access token lifetime.
func (j *JWTManager) Expiry() time.Duration { return j.tokenExpiry }

// Validate checks the credential's signature, expiry, and subject claim and
// returns the verified principal. Failures are reported as *AuthError; the
// kind distinguishes expired, malformed, and bad-signature credentials.
func (j *JWTManager) Validate(tokenString string) (*Principal, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.signingKey, nil
	})

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, NewAuthError(ErrKindExpired, err)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, NewAuthError(ErrKindSignatureInvalid, err)
		default:
			return nil, NewAuthError(ErrKindMalformed, err)
		}
	}

	if !token.Valid {
		return nil, NewAuthError(ErrKindMalformed, errors.New("invalid token"))
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok {
		return nil, NewAuthError(ErrKindMalformed, errors.New("invalid token claims"))
	}

	if claims.Subject == "" {
		return nil, NewAuthError(ErrKindMissingSubject, errors.New("token missing subject claim"))
	}

	return &Principal{
		UserID: claims.Subject,
		Email:  claims.Email,
		Token:  tokenString,
	}, nil
}

// ExtractBearerToken extracts the token from an Authorization header.
func ExtractBearerToken(authHeader string) (string, error) {
	if len(authHeader) < 7 || authHeader[:7] != "Bearer " {
		return "", fmt.Errorf("invalid authorization header format")
	}
	return authHeader[7:], nil
}
