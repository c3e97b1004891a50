package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestGenerateAndValidate(t *testing.T) {
	manager := NewManager("test-secret-key", time.Hour)
	accountID := uuid.New()

	token, err := manager.Generate(accountID)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	got, err := manager.Validate(token)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if got != accountID {
		t.Errorf("Validate returned %s, want %s", got, accountID)
	}
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	manager := NewManager("test-secret-key", -time.Minute)

	token, err := manager.Generate(uuid.New())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if _, err := manager.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Validate error = %v, want %v", err, ErrInvalidToken)
	}
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	token, err := NewManager("secret-one", time.Hour).Generate(uuid.New())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if _, err := NewManager("secret-two", time.Hour).Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Validate error = %v, want %v", err, ErrInvalidToken)
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	manager := NewManager("test-secret-key", time.Hour)
	if _, err := manager.Validate("not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Validate error = %v, want %v", err, ErrInvalidToken)
	}
}
