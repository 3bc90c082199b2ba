package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fibi-app/fibi/internal/model"
)

// authenticatedAudience はGoTrueがログイン済みユーザーのトークンに付与するaud。
const authenticatedAudience = "authenticated"

// accessClaims はGoTrueのアクセストークンから読み取るクレーム。
type accessClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// TokenVerifier はアクセストークンの署名と有効期限をローカルで検証する。
type TokenVerifier struct {
	secret []byte
	now    func() time.Time
}

// NewTokenVerifier はプロジェクトのJWTシークレットでTokenVerifierを生成する。
func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret), now: time.Now}
}

// Verify はトークンを検証してユーザーを返す。
// 有効期限切れの場合はjwt.ErrTokenExpiredをラップしたエラーを返す。
func (v *TokenVerifier) Verify(token string) (*model.User, error) {
	if len(v.secret) == 0 {
		return nil, errors.New("jwt secret is empty")
	}

	claims := &accessClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) { return v.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(authenticatedAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid access token: %w", err)
	}
	if claims.Subject == "" {
		return nil, errors.New("invalid access token: missing sub")
	}

	return &model.User{ID: claims.Subject, Email: claims.Email}, nil
}
