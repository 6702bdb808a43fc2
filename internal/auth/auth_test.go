package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"lexcal-scheduler/internal/model"
)

const secret = "test-secret"

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("hunter22")
	if err != nil {
		t.Fatal(err)
	}
	if hash == "hunter22" {
		t.Fatal("password stored in clear")
	}
	if !CheckPassword(hash, "hunter22") {
		t.Error("correct password rejected")
	}
	if CheckPassword(hash, "hunter23") {
		t.Error("wrong password accepted")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	tok, err := MakeToken("u1", model.RoleLawyer, secret)
	if err != nil {
		t.Fatal(err)
	}
	c, err := ParseToken(tok, secret)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.UserID != "u1" || c.Role != model.RoleLawyer {
		t.Errorf("claims = %+v", c)
	}

	if _, err := ParseToken(tok, "other-secret"); err == nil {
		t.Error("token verified with the wrong secret")
	}
}

func TestExpiredToken(t *testing.T) {
	tok, err := makeToken("u1", model.RoleClient, secret, time.Now().Add(-2*TokenTTL))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseToken(tok, secret); err == nil {
		t.Error("expired token accepted")
	}
}

func TestAlgorithmConfusion(t *testing.T) {
	c := Claims{
		UserID: "u1",
		Role:   model.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, c).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseToken(tok, secret); err == nil {
		t.Error("unsigned token accepted")
	}
	if _, err := ParseToken(strings.Repeat("x", 20), secret); err == nil {
		t.Error("garbage accepted")
	}
}
