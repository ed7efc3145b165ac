package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned when login email or password is wrong.
// Both cases share one error so a caller cannot probe which emails exist.
var ErrInvalidCredentials = errors.New("invalid email or password")

// RegisterRequest is the payload for account creation.
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// Service handles account operations against the user store.
type Service struct {
	db         *sqlx.DB
	logger     *zap.Logger
	jwtManager *JWTManager
}

// NewService creates a new authentication service.
func NewService(db *sqlx.DB, logger *zap.Logger, jwtManager *JWTManager) *Service {
	return &Service{
		db:         db,
		logger:     logger,
		jwtManager: jwtManager,
	}
}

// JWTManager exposes the token manager used for issued credentials.
func (s *Service) JWTManager() *JWTManager { return s.jwtManager }

// Register creates a new user account.
func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}
	if len(req.Password) < 8 {
		return nil, fmt.Errorf("password must be at least 8 characters")
	}

	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)", email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email existence: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("email already registered")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hashedPassword),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, first_name, last_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName,
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("Registered new user",
		zap.String("user_id", user.ID),
	)

	return user, nil
}

// Login verifies the password and issues an access token.
func (s *Service) Login(ctx context.Context, email, password string) (*TokenPair, *User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var user User
	err := s.db.GetContext(ctx, &user,
		"SELECT * FROM users WHERE email = $1", email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	accessToken, err := s.jwtManager.Generate(&user)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate token: %w", err)
	}

	s.logger.Info("User logged in",
		zap.String("user_id", user.ID),
	)

	return &TokenPair{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.jwtManager.Expiry().Seconds()),
	}, &user, nil
}

// ResolveIdentity checks that an identity supplied by the trusted header
// refers to an existing user and returns a principal for it. The header
// bypasses credential decoding but never the existence check.
func (s *Service) ResolveIdentity(ctx context.Context, userID string) (*Principal, error) {
	var user User
	err := s.db.GetContext(ctx, &user,
		"SELECT * FROM users WHERE id = $1", userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewAuthError(ErrKindIdentityNotFound, fmt.Errorf("user %s not found", userID))
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	return &Principal{
		UserID: user.ID,
		Email:  user.Email,
	}, nil
}
