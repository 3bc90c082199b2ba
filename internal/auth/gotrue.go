package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/fibi-app/fibi/internal/model"
)

// defaultHTTPTimeout は認証プロバイダーへのリクエストのタイムアウト。
const defaultHTTPTimeout = 10 * time.Second

// GoTrueConfig はSupabase互換の認証サーバー(GoTrue)への接続設定。
type GoTrueConfig struct {
	// BaseURL はプロジェクトURL（例: https://xyz.supabase.co）。/auth/v1は含めない。
	BaseURL string
	// AnonKey はapikeyヘッダーに付与する公開キー。
	AnonKey string
	// HTTPClient はテスト用に差し替え可能なクライアント。nilの場合は10秒タイムアウトのクライアントを使う。
	HTTPClient *http.Client
}

// GoTrueClient はGoTrueのREST APIクライアント。
type GoTrueClient struct {
	baseURL string
	anonKey string
	client  *http.Client
}

// NewGoTrueClient はGoTrueClientを生成する。
func NewGoTrueClient(config GoTrueConfig) *GoTrueClient {
	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &GoTrueClient{
		baseURL: config.BaseURL + "/auth/v1",
		anonKey: config.AnonKey,
		client:  client,
	}
}

// tokenResponse は/tokenエンドポイントのレスポンス。
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	RefreshToken string `json:"refresh_token"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

// SignInWithPassword はメールアドレスとパスワードでセッションを取得する。
func (c *GoTrueClient) SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error) {
	return c.token(ctx, "password", map[string]string{
		"email":    email,
		"password": password,
	})
}

// ExchangeCode はマジックリンクの認可コードとPKCEのverifierをセッションに交換する。
func (c *GoTrueClient) ExchangeCode(ctx context.Context, code, verifier string) (*model.Session, error) {
	return c.token(ctx, "pkce", map[string]string{
		"auth_code":     code,
		"code_verifier": verifier,
	})
}

// Refresh はリフレッシュトークンで新しいセッションを取得する。
func (c *GoTrueClient) Refresh(ctx context.Context, refreshToken string) (*model.Session, error) {
	return c.token(ctx, "refresh_token", map[string]string{
		"refresh_token": refreshToken,
	})
}

// SendMagicLink はPKCEフローのマジックリンクメールを送信させる。
// redirectToにはメール内リンクの遷移先（/auth/callback）を指定する。
func (c *GoTrueClient) SendMagicLink(ctx context.Context, email, codeChallenge, redirectTo string) error {
	endpoint := c.baseURL + "/otp"
	if redirectTo != "" {
		endpoint += "?" + url.Values{"redirect_to": {redirectTo}}.Encode()
	}

	resp, err := c.do(ctx, http.MethodPost, endpoint, "", map[string]any{
		"email":                 email,
		"create_user":           true,
		"code_challenge":        codeChallenge,
		"code_challenge_method": "s256",
	})
	if err != nil {
		return fmt.Errorf("otp request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError("otp", resp)
	}
	return nil
}

// SignOut はアクセストークンに紐づくセッションを認証サーバー側で失効させる。
func (c *GoTrueClient) SignOut(ctx context.Context, accessToken string) error {
	resp, err := c.do(ctx, http.MethodPost, c.baseURL+"/logout", accessToken, nil)
	if err != nil {
		return fmt.Errorf("logout request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return statusError("logout", resp)
	}
	return nil
}

// token は/token?grant_type=...を呼び出してセッションを返す。
// 400/401/422はErrInvalidCredentialsとして扱う。
func (c *GoTrueClient) token(ctx context.Context, grantType string, body any) (*model.Session, error) {
	endpoint := c.baseURL + "/token?" + url.Values{"grant_type": {grantType}}.Encode()

	resp, err := c.do(ctx, http.MethodPost, endpoint, "", body)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusUnprocessableEntity:
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("grant %s rejected: %w", grantType, ErrInvalidCredentials)
	default:
		return nil, statusError("token", resp)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("empty access token in response")
	}

	expiresAt := time.Unix(tr.ExpiresAt, 0)
	if tr.ExpiresAt == 0 {
		expiresAt = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}

	return &model.Session{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresAt:    expiresAt,
		User:         model.User{ID: tr.User.ID, Email: tr.User.Email},
	}, nil
}

func (c *GoTrueClient) do(ctx context.Context, method, endpoint, bearer string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	return c.client.Do(req)
}

// statusError はレスポンス本文の先頭を含むエラーを生成する。
func statusError(op string, resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("%s failed with status %d: %s", op, resp.StatusCode, bytes.TrimSpace(snippet))
}

// compile-time interface check
var _ Provider = (*GoTrueClient)(nil)
