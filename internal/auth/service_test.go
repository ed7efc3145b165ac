package auth

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })

	db := sqlx.NewDb(mockDB, "sqlmock")
	return NewService(db, zap.NewNop(), NewJWTManager("test-secret", time.Hour)), mock
}

func userRow(id, email, passwordHash string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "email", "password_hash", "first_name", "last_name", "created_at", "updated_at"}).
		AddRow(id, email, passwordHash, "", "", now, now)
}

func TestRegister(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("alice@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("INSERT INTO users").
		WillReturnResult(sqlmock.NewResult(0, 1))

	user, err := svc.Register(context.Background(), &RegisterRequest{
		Email:    "Alice@Example.com",
		Password: "password123",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Errorf("expected normalized email, got %s", user.Email)
	}
	if user.PasswordHash == "password123" {
		t.Error("password must not be stored in clear")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	tests := []struct {
		name string
		req  RegisterRequest
	}{
		{"empty email", RegisterRequest{Email: "", Password: "password123"}},
		{"short password", RegisterRequest{Email: "a@b.com", Password: "short"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t)
			if _, err := svc.Register(context.Background(), &tt.req); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("alice@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	if _, err := svc.Register(context.Background(), &RegisterRequest{
		Email:    "alice@example.com",
		Password: "password123",
	}); err == nil {
		t.Error("expected duplicate email error")
	}
}

func TestLogin(t *testing.T) {
	svc, mock := newTestService(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	mock.ExpectQuery("SELECT \\* FROM users WHERE email = \\$1").
		WithArgs("alice@example.com").
		WillReturnRows(userRow("user-1", "alice@example.com", string(hash)))

	tokens, user, err := svc.Login(context.Background(), "alice@example.com", "password123")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if user.ID != "user-1" {
		t.Errorf("expected user-1, got %s", user.ID)
	}
	if tokens.TokenType != "Bearer" || tokens.AccessToken == "" {
		t.Errorf("unexpected token pair: %+v", tokens)
	}

	// The issued credential must validate back to the same identity.
	principal, err := svc.JWTManager().Validate(tokens.AccessToken)
	if err != nil {
		t.Fatalf("issued token failed validation: %v", err)
	}
	if principal.UserID != "user-1" {
		t.Errorf("expected user-1 from token, got %s", principal.UserID)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)

	tests := []struct {
		name     string
		password string
		rows     *sqlmock.Rows
		dbErr    error
	}{
		{"unknown email", "password123", nil, sql.ErrNoRows},
		{"wrong password", "wrong", userRow("user-1", "alice@example.com", string(hash)), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mock := newTestService(t)

			q := mock.ExpectQuery("SELECT \\* FROM users WHERE email = \\$1").
				WithArgs("alice@example.com")
			if tt.dbErr != nil {
				q.WillReturnError(tt.dbErr)
			} else {
				q.WillReturnRows(tt.rows)
			}

			_, _, err := svc.Login(context.Background(), "alice@example.com", tt.password)
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Errorf("expected ErrInvalidCredentials, got %v", err)
			}
		})
	}
}
