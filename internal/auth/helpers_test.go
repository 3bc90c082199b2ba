package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

// signTestToken はGoTrue形式のアクセストークンを生成する。
func signTestToken(t *testing.T, secret, sub, email string, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":   sub,
		"email": email,
		"aud":   "authenticated",
		"role":  "authenticated",
		"exp":   exp.Unix(),
		"iat":   exp.Add(-time.Hour).Unix(),
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}
