package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// newTestGoTrue はハンドラーを差し込んだGoTrueClientを返す。
func newTestGoTrue(t *testing.T, handler http.HandlerFunc) *GoTrueClient {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return NewGoTrueClient(GoTrueConfig{BaseURL: ts.URL, AnonKey: "anon-key", HTTPClient: ts.Client()})
}

func writeTokenResponse(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"access_token":  "new-access",
		"token_type":    "bearer",
		"expires_in":    3600,
		"expires_at":    1893456000,
		"refresh_token": "new-refresh",
		"user":          map[string]string{"id": "user-1", "email": "a@example.com"},
	})
}

func TestGoTrueClient_SignInWithPassword(t *testing.T) {
	client := newTestGoTrue(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/auth/v1/token" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.URL.Query().Get("grant_type"); got != "password" {
			t.Errorf("grant_type = %q, want password", got)
		}
		if got := r.Header.Get("apikey"); got != "anon-key" {
			t.Errorf("apikey = %q", got)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["email"] != "a@example.com" || body["password"] != "pw" {
			t.Errorf("unexpected body: %v", body)
		}
		writeTokenResponse(w)
	})

	session, err := client.SignInWithPassword(context.Background(), "a@example.com", "pw")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if session.AccessToken != "new-access" || session.RefreshToken != "new-refresh" {
		t.Errorf("unexpected session tokens: %+v", session)
	}
	if session.User.ID != "user-1" {
		t.Errorf("User.ID = %q", session.User.ID)
	}
	if session.ExpiresAt.Unix() != 1893456000 {
		t.Errorf("ExpiresAt = %v", session.ExpiresAt)
	}
}

func TestGoTrueClient_InvalidCredentials(t *testing.T) {
	client := newTestGoTrue(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid login credentials"}`))
	})

	_, err := client.SignInWithPassword(context.Background(), "a@example.com", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestGoTrueClient_ServerError(t *testing.T) {
	client := newTestGoTrue(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.Refresh(context.Background(), "refresh")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if errors.Is(err, ErrInvalidCredentials) {
		t.Error("5xx must not be reported as invalid credentials")
	}
}

func TestGoTrueClient_RefreshAndExchange(t *testing.T) {
	client := newTestGoTrue(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)

		switch r.URL.Query().Get("grant_type") {
		case "refresh_token":
			if body["refresh_token"] != "old-refresh" {
				t.Errorf("refresh_token = %q", body["refresh_token"])
			}
		case "pkce":
			if body["auth_code"] != "code-1" || body["code_verifier"] != "verifier-1" {
				t.Errorf("unexpected pkce body: %v", body)
			}
		default:
			t.Errorf("unexpected grant_type %q", r.URL.Query().Get("grant_type"))
		}
		writeTokenResponse(w)
	})

	if _, err := client.Refresh(context.Background(), "old-refresh"); err != nil {
		t.Errorf("Refresh() error: %v", err)
	}
	if _, err := client.ExchangeCode(context.Background(), "code-1", "verifier-1"); err != nil {
		t.Errorf("ExchangeCode() error: %v", err)
	}
}

func TestGoTrueClient_SendMagicLink(t *testing.T) {
	client := newTestGoTrue(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/otp" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("redirect_to"); got != "https://fibi.app/auth/callback" {
			t.Errorf("redirect_to = %q", got)
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["code_challenge"] != "challenge" || body["code_challenge_method"] != "s256" {
			t.Errorf("unexpected body: %v", body)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	})

	err := client.SendMagicLink(context.Background(), "a@example.com", "challenge", "https://fibi.app/auth/callback")
	if err != nil {
		t.Fatalf("SendMagicLink() error: %v", err)
	}
}

func TestGoTrueClient_SignOut(t *testing.T) {
	client := newTestGoTrue(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/logout" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer access-1" {
			t.Errorf("Authorization = %q", got)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	if err := client.SignOut(context.Background(), "access-1"); err != nil {
		t.Fatalf("SignOut() error: %v", err)
	}
}
