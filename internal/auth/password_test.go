package auth

import "testing"

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword() failed: %v", err)
	}
	if hash == "" || hash == "hunter2" {
		t.Error("Expected bcrypt hash, got something else")
	}
	if !VerifyAppPassword(hash, "hunter2") {
		t.Error("Hashed password should verify against its plain text")
	}
}

func TestVerifyAppPassword_Plain(t *testing.T) {
	if !VerifyAppPassword("letmein", "letmein") {
		t.Error("Plain configured password should match itself")
	}
	if VerifyAppPassword("letmein", "wrong") {
		t.Error("Wrong password should not verify")
	}
}

func TestVerifyAppPassword_BcryptHash(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword() failed: %v", err)
	}

	if !VerifyAppPassword(hash, "s3cret") {
		t.Error("Correct password should verify against bcrypt hash")
	}
	if VerifyAppPassword(hash, "other") {
		t.Error("Wrong password should not verify against bcrypt hash")
	}
}

func TestVerifyAppPassword_EmptySubmission(t *testing.T) {
	if VerifyAppPassword("configured", "") {
		t.Error("Empty submission should never verify")
	}
}
