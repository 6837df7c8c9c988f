package model

import "testing"

func TestWithoutSecret_ClearsPasswordHash(t *testing.T) {
	user := &User{
		ID:           "user-1",
		Email:        "user@example.com",
		FullName:     "User One",
		PasswordHash: "bcrypt-hash",
	}

	cleaned := user.WithoutSecret()

	if cleaned.PasswordHash != "" {
		t.Error("WithoutSecret() must clear the password hash")
	}
	if cleaned.ID != user.ID || cleaned.Email != user.Email {
		t.Error("WithoutSecret() must preserve non-secret fields")
	}
	// 元のユーザーは変更されないこと
	if user.PasswordHash != "bcrypt-hash" {
		t.Error("WithoutSecret() must not mutate the original user")
	}
}

func TestAPIError_ErrorFormat(t *testing.T) {
	err := NewEmailTakenError()
	if err.Error() == "" {
		t.Fatal("expected non-empty error string")
	}
	if err.Code != ErrCodeEmailTaken {
		t.Errorf("code = %q, want %q", err.Code, ErrCodeEmailTaken)
	}
}
