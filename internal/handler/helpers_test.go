package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/fibi-app/fibi/internal/auth"
	"github.com/fibi-app/fibi/internal/item"
	"github.com/fibi-app/fibi/internal/middleware"
	"github.com/fibi-app/fibi/internal/model"
)

// --- モック定義 ---

type mockAuthService struct {
	signInFn    func(ctx context.Context, email, password string) (*model.Session, error)
	magicLinkFn func(ctx context.Context, email, redirectTo string) (string, error)
	exchangeFn  func(ctx context.Context, code, verifier string) (*model.Session, error)
	signOutFn   func(ctx context.Context, accessToken string) error
}

func (m *mockAuthService) SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error) {
	if m.signInFn != nil {
		return m.signInFn(ctx, email, password)
	}
	return nil, auth.ErrInvalidCredentials
}

func (m *mockAuthService) SendMagicLink(ctx context.Context, email, redirectTo string) (string, error) {
	if m.magicLinkFn != nil {
		return m.magicLinkFn(ctx, email, redirectTo)
	}
	return "verifier", nil
}

func (m *mockAuthService) ExchangeCode(ctx context.Context, code, verifier string) (*model.Session, error) {
	if m.exchangeFn != nil {
		return m.exchangeFn(ctx, code, verifier)
	}
	return nil, auth.ErrInvalidCredentials
}

func (m *mockAuthService) SignOut(ctx context.Context, accessToken string) error {
	if m.signOutFn != nil {
		return m.signOutFn(ctx, accessToken)
	}
	return nil
}

type mockItemService struct {
	listFn   func(ctx context.Context, userID string) ([]*model.Item, error)
	getFn    func(ctx context.Context, userID, id string) (*model.Item, error)
	createFn func(ctx context.Context, userID string, in item.CreateInput) (*model.Item, error)
	deleteFn func(ctx context.Context, userID, id string) error
}

func (m *mockItemService) List(ctx context.Context, userID string) ([]*model.Item, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockItemService) Get(ctx context.Context, userID, id string) (*model.Item, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID, id)
	}
	return nil, model.NewItemNotFoundError(id)
}

func (m *mockItemService) Create(ctx context.Context, userID string, in item.CreateInput) (*model.Item, error) {
	if m.createFn != nil {
		return m.createFn(ctx, userID, in)
	}
	return &model.Item{ID: "new-item", UserID: userID, URL: in.URL}, nil
}

func (m *mockItemService) Delete(ctx context.Context, userID, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, id)
	}
	return nil
}

type mockAutomationService struct {
	listFn func(ctx context.Context) ([]model.AutomationWithLastRun, error)
	runFn  func(ctx context.Context, automationID, triggeredBy string) (*model.AutomationRun, error)
}

func (m *mockAutomationService) List(ctx context.Context) ([]model.AutomationWithLastRun, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockAutomationService) Run(ctx context.Context, automationID, triggeredBy string) (*model.AutomationRun, error) {
	if m.runFn != nil {
		return m.runFn(ctx, automationID, triggeredBy)
	}
	return &model.AutomationRun{ID: "run-1", AutomationID: automationID, TriggeredBy: triggeredBy, Status: model.RunStatusSucceeded}, nil
}

type mockSiteSettings struct {
	gaID   string
	getErr error
	setErr error
	saved  []string
}

func (m *mockSiteSettings) GAMeasurementID(ctx context.Context) (string, error) {
	return m.gaID, m.getErr
}

func (m *mockSiteSettings) SetGAMeasurementID(ctx context.Context, id string) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.saved = append(m.saved, id)
	return nil
}

type mockAdminChecker struct {
	admins map[string]bool
	err    error
	calls  int
}

func (m *mockAdminChecker) IsAdmin(ctx context.Context, userID string) (bool, error) {
	m.calls++
	return m.admins[userID], m.err
}

type mockVersion string

func (v mockVersion) Version() string { return string(v) }

type mockPinger struct{ err error }

func (m mockPinger) PingContext(ctx context.Context) error { return m.err }

// tokenSessionResolver はアクセストークンCookieの値をユーザーIDとして扱うテスト用リゾルバー。
type tokenSessionResolver struct{}

func (tokenSessionResolver) ResolveSession(_ context.Context, accessToken, _ string) (*auth.Resolution, error) {
	if accessToken == "" {
		return nil, auth.ErrNoSession
	}
	return &auth.Resolution{User: model.User{ID: accessToken, Email: accessToken + "@example.com"}}, nil
}

// --- ヘルパー ---

// withUser はテスト用にコンテキストへユーザーを注入するヘルパー。
func withUser(r *http.Request, userID string) *http.Request {
	user := &model.User{ID: userID, Email: userID + "@example.com"}
	return r.WithContext(middleware.ContextWithUser(r.Context(), user))
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// parseErrorResponse はレスポンスボディから {"error": ...} をパースするヘルパー。
func parseErrorResponse(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return body.Error
}

func newTestPages(settings SiteSettings) *pageRenderer {
	if settings == nil {
		settings = &mockSiteSettings{}
	}
	return &pageRenderer{settings: settings, admins: &mockAdminChecker{}}
}
