package item

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fibi-app/fibi/internal/model"
	"github.com/fibi-app/fibi/internal/security"
	"github.com/fibi-app/fibi/internal/unfurl"
)

const (
	testUserID = "11111111-1111-1111-1111-111111111111"
	testItemID = "22222222-2222-2222-2222-222222222222"
)

// --- テスト用モック ---

type mockItemRepo struct {
	listByUserFn        func(ctx context.Context, userID string, limit int) ([]*model.Item, error)
	findByUserAndIDFn   func(ctx context.Context, userID, id string) (*model.Item, error)
	createFn            func(ctx context.Context, item *model.Item) error
	deleteByUserAndIDFn func(ctx context.Context, userID, id string) (bool, error)
}

func (m *mockItemRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*model.Item, error) {
	if m.listByUserFn != nil {
		return m.listByUserFn(ctx, userID, limit)
	}
	return nil, nil
}

func (m *mockItemRepo) FindByUserAndID(ctx context.Context, userID, id string) (*model.Item, error) {
	if m.findByUserAndIDFn != nil {
		return m.findByUserAndIDFn(ctx, userID, id)
	}
	return nil, nil
}

func (m *mockItemRepo) Create(ctx context.Context, item *model.Item) error {
	if m.createFn != nil {
		return m.createFn(ctx, item)
	}
	return nil
}

func (m *mockItemRepo) DeleteByUserAndID(ctx context.Context, userID, id string) (bool, error) {
	if m.deleteByUserAndIDFn != nil {
		return m.deleteByUserAndIDFn(ctx, userID, id)
	}
	return false, nil
}

type mockUnfurler struct {
	calls    int
	unfurlFn func(ctx context.Context, pageURL string) (*unfurl.Metadata, error)
}

func (m *mockUnfurler) Unfurl(ctx context.Context, pageURL string) (*unfurl.Metadata, error) {
	m.calls++
	return m.unfurlFn(ctx, pageURL)
}

type mockRecorder struct {
	successes, failures int
}

func (m *mockRecorder) RecordUnfurl(success bool, _ time.Duration) {
	if success {
		m.successes++
	} else {
		m.failures++
	}
}

func requireAPIError(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	require.True(t, errors.As(err, &apiErr), "expected *model.APIError, got %v", err)
	assert.Equal(t, code, apiErr.Code)
}

// --- List / Get ---

func TestService_List_UsesLimit(t *testing.T) {
	repo := &mockItemRepo{
		listByUserFn: func(_ context.Context, userID string, limit int) ([]*model.Item, error) {
			assert.Equal(t, testUserID, userID)
			assert.Equal(t, ListLimit, limit)
			return []*model.Item{{ID: testItemID}}, nil
		},
	}

	items, err := NewService(repo, security.NewURLGuard()).List(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestService_Get(t *testing.T) {
	repo := &mockItemRepo{
		findByUserAndIDFn: func(_ context.Context, userID, id string) (*model.Item, error) {
			if id == testItemID && userID == testUserID {
				return &model.Item{ID: id, UserID: userID}, nil
			}
			return nil, nil
		},
	}
	svc := NewService(repo, security.NewURLGuard())

	item, err := svc.Get(context.Background(), testUserID, testItemID)
	require.NoError(t, err)
	assert.Equal(t, testItemID, item.ID)

	_, err = svc.Get(context.Background(), "33333333-3333-3333-3333-333333333333", testItemID)
	requireAPIError(t, err, model.ErrCodeItemNotFound)

	_, err = svc.Get(context.Background(), testUserID, "not-a-uuid")
	requireAPIError(t, err, model.ErrCodeItemNotFound)
}

func TestService_Get_RepoError(t *testing.T) {
	repo := &mockItemRepo{
		findByUserAndIDFn: func(context.Context, string, string) (*model.Item, error) {
			return nil, errors.New("connection refused")
		},
	}

	_, err := NewService(repo, security.NewURLGuard()).Get(context.Background(), testUserID, testItemID)
	require.Error(t, err)
	var apiErr *model.APIError
	assert.False(t, errors.As(err, &apiErr))
}

// --- Create ---

func TestService_Create_Validation(t *testing.T) {
	tests := []struct {
		name     string
		in       CreateInput
		wantCode string
	}{
		{"URL未入力", CreateInput{URL: "  "}, model.ErrCodeValidation},
		{"URLが長すぎる", CreateInput{URL: "https://example.com/" + strings.Repeat("a", MaxURLLength)}, model.ErrCodeValidation},
		{"ftpスキーム", CreateInput{URL: "ftp://example.com/file"}, model.ErrCodeInvalidURL},
		{"内部アドレス", CreateInput{URL: "http://169.254.169.254/"}, model.ErrCodeSSRFBlocked},
		{"localhost", CreateInput{URL: "http://localhost:8080/"}, model.ErrCodeSSRFBlocked},
		{"タイトルが長すぎる", CreateInput{URL: "https://example.com", Title: strings.Repeat("あ", MaxTitleLength+1)}, model.ErrCodeValidation},
		{"メモが長すぎる", CreateInput{URL: "https://example.com", Notes: strings.Repeat("x", MaxNotesLength+1)}, model.ErrCodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockItemRepo{
				createFn: func(context.Context, *model.Item) error {
					t.Fatal("Create must not be called for invalid input")
					return nil
				},
			}

			_, err := NewService(repo, security.NewURLGuard()).Create(context.Background(), testUserID, tt.in)
			requireAPIError(t, err, tt.wantCode)
		})
	}
}

func TestService_Create_SanitizesAndPersists(t *testing.T) {
	var saved *model.Item
	repo := &mockItemRepo{
		createFn: func(_ context.Context, item *model.Item) error {
			saved = item
			return nil
		},
	}
	unf := &mockUnfurler{}
	svc := NewService(repo, security.NewURLGuard(), WithUnfurler(unf))
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	item, err := svc.Create(context.Background(), testUserID, CreateInput{
		URL:   " https://shop.example.com/p/1?ref=a&b=c ",
		Title: "<b>Red</b> jacket",
		Notes: "size M\n<script>x()</script>gift",
	})
	require.NoError(t, err)
	require.NotNil(t, saved)

	assert.Equal(t, item, saved)
	assert.NotEmpty(t, item.ID)
	assert.Equal(t, testUserID, item.UserID)
	assert.Equal(t, "https://shop.example.com/p/1?ref=a&b=c", item.URL)
	assert.Equal(t, "Red jacket", item.Title)
	assert.Equal(t, "size M\ngift", item.Notes)
	assert.Equal(t, fixed, item.CreatedAt)
	assert.Equal(t, fixed, item.UpdatedAt)
	assert.Zero(t, unf.calls, "title was provided, unfurl must be skipped")
}

func TestService_Create_UnfurlsWhenTitleEmpty(t *testing.T) {
	repo := &mockItemRepo{}
	rec := &mockRecorder{}
	unf := &mockUnfurler{
		unfurlFn: func(_ context.Context, pageURL string) (*unfurl.Metadata, error) {
			assert.Equal(t, "https://shop.example.com/p/1", pageURL)
			return &unfurl.Metadata{
				Title:    strings.Repeat("t", MaxTitleLength+50),
				ImageURL: "https://cdn.example.com/p1.jpg",
				Price:    "49.00",
			}, nil
		},
	}

	item, err := NewService(repo, security.NewURLGuard(), WithUnfurler(unf), WithUnfurlRecorder(rec)).
		Create(context.Background(), testUserID, CreateInput{URL: "https://shop.example.com/p/1"})
	require.NoError(t, err)

	assert.Len(t, item.Title, MaxTitleLength)
	assert.Equal(t, "https://cdn.example.com/p1.jpg", item.ImageURL)
	assert.Equal(t, "49.00", item.Price)
	assert.Equal(t, 1, rec.successes)
}

func TestService_Create_UnfurlFailureIsIgnored(t *testing.T) {
	rec := &mockRecorder{}
	unf := &mockUnfurler{
		unfurlFn: func(context.Context, string) (*unfurl.Metadata, error) {
			return nil, errors.New("timeout")
		},
	}

	item, err := NewService(&mockItemRepo{}, security.NewURLGuard(), WithUnfurler(unf), WithUnfurlRecorder(rec)).
		Create(context.Background(), testUserID, CreateInput{URL: "https://example.com"})
	require.NoError(t, err)

	assert.Empty(t, item.Title)
	assert.Equal(t, "https://example.com", item.DisplayTitle())
	assert.Equal(t, 1, rec.failures)
}

func TestService_Create_RepoError(t *testing.T) {
	repo := &mockItemRepo{
		createFn: func(context.Context, *model.Item) error { return errors.New("insert failed") },
	}

	_, err := NewService(repo, security.NewURLGuard()).
		Create(context.Background(), testUserID, CreateInput{URL: "https://example.com", Title: "x"})
	assert.EqualError(t, err, "insert failed")
}

// --- Delete ---

func TestService_Delete(t *testing.T) {
	repo := &mockItemRepo{
		deleteByUserAndIDFn: func(_ context.Context, userID, id string) (bool, error) {
			return userID == testUserID && id == testItemID, nil
		},
	}
	svc := NewService(repo, security.NewURLGuard())

	require.NoError(t, svc.Delete(context.Background(), testUserID, testItemID))

	err := svc.Delete(context.Background(), "33333333-3333-3333-3333-333333333333", testItemID)
	requireAPIError(t, err, model.ErrCodeItemNotFound)

	err = svc.Delete(context.Background(), testUserID, "../etc")
	requireAPIError(t, err, model.ErrCodeItemNotFound)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "あい", truncate("あいう", 2))
}
