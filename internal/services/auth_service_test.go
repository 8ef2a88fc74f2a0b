package services

import (
	"errors"
	"testing"
	"time"

	"edugate/internal/models"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	auth := NewAuthService("test-secret", 15*time.Minute)

	token, expiresAt, err := auth.NewAccessToken(7, models.RoleTeacher)
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	if !expiresAt.After(time.Now()) {
		t.Fatalf("expiresAt = %v, already in the past", expiresAt)
	}

	claims, err := auth.ParseAccessToken(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != 7 || claims.Role != models.RoleTeacher {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestAccessTokenWrongSecret(t *testing.T) {
	auth := NewAuthService("secret-a", 15*time.Minute)
	other := NewAuthService("secret-b", 15*time.Minute)

	token, _, err := auth.NewAccessToken(7, models.RoleStudent)
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	if _, err := other.ParseAccessToken(token); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := auth.ParseAccessToken("not-a-jwt"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("garbage token err = %v", err)
	}
}

func TestAccessTokenExpired(t *testing.T) {
	auth := NewAuthService("test-secret", -time.Minute)
	token, _, err := auth.NewAccessToken(7, models.RoleStudent)
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	if _, err := auth.ParseAccessToken(token); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expired token err = %v, want ErrInvalidCredentials", err)
	}
}

func TestPasswordHashing(t *testing.T) {
	auth := NewAuthService("test-secret", time.Minute)
	hash, err := auth.HashPassword("s3cret!")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !auth.CheckPassword(hash, "s3cret!") {
		t.Fatal("correct password rejected")
	}
	if auth.CheckPassword(hash, "wrong") {
		t.Fatal("wrong password accepted")
	}
}
