package credentials

import (
	"errors"
	"testing"
)

func TestHashAndVerify(t *testing.T) {
	hash, version, err := HashPassword("correct horse")
	if err != nil {
		t.Fatal(err)
	}
	if version != HashVersionBcrypt || hash == "correct horse" {
		t.Fatalf("hash = %q version = %q", hash, version)
	}
	if err := VerifyPassword(hash, "correct horse"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := VerifyPassword(hash, "wrong horse"); err == nil {
		t.Fatal("wrong password verified")
	}
}

func TestHashRejectsShortPassword(t *testing.T) {
	if _, _, err := HashPassword("short"); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("err = %v", err)
	}
}
