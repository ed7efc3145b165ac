package auth

import (
	"errors"
	"testing"
	"time"
)

func TestGenerateAndValidate(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Hour)

	user := &User{ID: "user-1", Email: "alice@example.com"}
	token, err := manager.Generate(user)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	principal, err := manager.Validate(token)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if principal.UserID != "user-1" {
		t.Errorf("expected user-1, got %s", principal.UserID)
	}
	if principal.Email != "alice@example.com" {
		t.Errorf("expected alice@example.com, got %s", principal.Email)
	}
	if principal.Token != token {
		t.Errorf("expected principal to carry the raw credential")
	}
}

func TestValidateExpired(t *testing.T) {
	manager := NewJWTManager("test-secret", -time.Minute)

	token, err := manager.Generate(&User{ID: "user-1"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	_, err = manager.Validate(token)
	assertAuthErrorKind(t, err, ErrKindExpired)
}

func TestValidateWrongKey(t *testing.T) {
	issuer := NewJWTManager("secret-a", time.Hour)
	verifier := NewJWTManager("secret-b", time.Hour)

	token, err := issuer.Generate(&User{ID: "user-1"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	_, err = verifier.Validate(token)
	assertAuthErrorKind(t, err, ErrKindSignatureInvalid)
}

func TestValidateMalformed(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Hour)

	for _, token := range []string{"", "garbage", "a.b.c"} {
		_, err := manager.Validate(token)
		assertAuthErrorKind(t, err, ErrKindMalformed)
	}
}

func TestValidateMissingSubject(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Hour)

	token, err := manager.Generate(&User{ID: "", Email: "nobody@example.com"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	_, err = manager.Validate(token)
	assertAuthErrorKind(t, err, ErrKindMissingSubject)
}

func assertAuthErrorKind(t *testing.T, err error, kind AuthErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error of kind %s, got nil", kind)
	}
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected *AuthError, got %T: %v", err, err)
	}
	if authErr.Kind != kind {
		t.Errorf("expected kind %s, got %s", kind, authErr.Kind)
	}
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{"valid", "Bearer abc123", "abc123", false},
		{"empty", "", "", true},
		{"wrong scheme", "Basic abc123", "", true},
		{"missing token", "Bearer", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractBearerToken(tt.header)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ExtractBearerToken(%q) error = %v, wantErr %v", tt.header, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ExtractBearerToken(%q) = %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}
