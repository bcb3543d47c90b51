package security

import (
	"errors"
	"testing"
)

func TestDefaultPasswordValidatorAcceptsStrongPassword(t *testing.T) {
	validator := DefaultPasswordValidator("nora")

	if err := validator.Validate("quartz-Lantern-42"); err != nil {
		t.Fatalf("expected strong password to pass, got %v", err)
	}
}

func TestDefaultPasswordValidatorRejectsShortPassword(t *testing.T) {
	validator := DefaultPasswordValidator("nora")

	err := validator.Validate("ab1")
	var violation *PasswordValidationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected PasswordValidationError, got %v", err)
	}
	if violation.Code != "min_length" {
		t.Fatalf("expected min_length violation, got %q", violation.Code)
	}
}

func TestDefaultPasswordValidatorRejectsUsernameDerivedPassword(t *testing.T) {
	validator := DefaultPasswordValidator("margaret")

	err := validator.Validate("margaret1")
	var violation *PasswordValidationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected PasswordValidationError, got %v", err)
	}
	if violation.Code != "weak_password" {
		t.Fatalf("expected weak_password violation, got %q", violation.Code)
	}
}

func TestRequireDifferentFrom(t *testing.T) {
	rule := RequireDifferentFrom("old-secret-9")

	if err := rule.Validate("old-secret-9"); err == nil {
		t.Fatal("expected reuse of current password to fail")
	}
	if err := rule.Validate("new-secret-9"); err != nil {
		t.Fatalf("expected distinct password to pass, got %v", err)
	}
}
