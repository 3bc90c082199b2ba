// Package item はユーザーが保存したアイテムの管理機能を提供する。
package item

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/fibi-app/fibi/internal/model"
	"github.com/fibi-app/fibi/internal/repository"
	"github.com/fibi-app/fibi/internal/security"
	"github.com/fibi-app/fibi/internal/unfurl"
)

// 入力値の上限（文字数）
const (
	MaxURLLength   = 2048
	MaxTitleLength = 200
	MaxNotesLength = 2000

	maxImageURLLength = 2048
	maxPriceLength    = 64
)

// ListLimit はダッシュボードに表示するアイテムの最大件数。
const ListLimit = 200

// CreateInput はアイテム作成時の入力値。
type CreateInput struct {
	URL   string
	Title string
	Notes string
}

// UnfurlRecorder はメタデータ取得の結果を記録する。
type UnfurlRecorder interface {
	RecordUnfurl(success bool, duration time.Duration)
}

// Service はアイテムのCRUDを提供する。すべての操作はユーザーIDでスコープされる。
type Service struct {
	repo      repository.ItemRepository
	guard     security.URLGuard
	sanitizer *security.TextSanitizer
	unfurler  unfurl.Unfurler
	recorder  UnfurlRecorder
	logger    *slog.Logger
	now       func() time.Time
}

// Option はServiceの任意設定。
type Option func(*Service)

// WithUnfurler はタイトル未入力時にメタデータを補完するUnfurlerを設定する。
func WithUnfurler(u unfurl.Unfurler) Option {
	return func(s *Service) { s.unfurler = u }
}

// WithUnfurlRecorder はメタデータ取得結果の記録先を設定する。
func WithUnfurlRecorder(r UnfurlRecorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithLogger はロガーを設定する。
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService はServiceを生成する。
func NewService(repo repository.ItemRepository, guard security.URLGuard, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		guard:     guard,
		sanitizer: security.NewTextSanitizer(),
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List はユーザーのアイテムを新しい順に返す。
func (s *Service) List(ctx context.Context, userID string) ([]*model.Item, error) {
	return s.repo.ListByUser(ctx, userID, ListLimit)
}

// Get はユーザーのアイテムを取得する。
// 存在しない場合と他ユーザーのアイテムの場合はどちらもITEM_NOT_FOUNDを返す。
func (s *Service) Get(ctx context.Context, userID, id string) (*model.Item, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.NewItemNotFoundError(id)
	}

	item, err := s.repo.FindByUserAndID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, model.NewItemNotFoundError(id)
	}
	return item, nil
}

// Create は入力を検証してアイテムを作成する。
// タイトルが空でUnfurlerが設定されている場合、URLのメタデータで補完する。
// メタデータ取得の失敗はログに残すのみで作成は継続する。
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*model.Item, error) {
	item, err := s.validate(in)
	if err != nil {
		return nil, err
	}

	if item.Title == "" && s.unfurler != nil {
		s.enrich(ctx, item)
	}

	now := s.now().UTC()
	item.ID = uuid.NewString()
	item.UserID = userID
	item.CreatedAt = now
	item.UpdatedAt = now

	if err := s.repo.Create(ctx, item); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "item created",
		slog.String("item_id", item.ID),
		slog.String("user_id", userID),
	)
	return item, nil
}

// Delete はユーザーのアイテムを削除する。
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return model.NewItemNotFoundError(id)
	}

	deleted, err := s.repo.DeleteByUserAndID(ctx, userID, id)
	if err != nil {
		return err
	}
	if !deleted {
		return model.NewItemNotFoundError(id)
	}

	s.logger.InfoContext(ctx, "item deleted",
		slog.String("item_id", id),
		slog.String("user_id", userID),
	)
	return nil
}

func (s *Service) validate(in CreateInput) (*model.Item, error) {
	rawURL := strings.TrimSpace(in.URL)
	if rawURL == "" {
		return nil, model.NewValidationError("url", "is required")
	}
	if utf8.RuneCountInString(rawURL) > MaxURLLength {
		return nil, model.NewValidationError("url", "is too long")
	}
	if err := s.guard.ValidateURL(rawURL); err != nil {
		if errors.Is(err, security.ErrBlockedAddress) {
			return nil, model.NewSSRFBlockedError()
		}
		return nil, model.NewInvalidURLError("only http and https URLs can be saved")
	}

	title := s.sanitizer.Sanitize(in.Title)
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return nil, model.NewValidationError("title", "must be 200 characters or fewer")
	}

	notes := s.sanitizer.SanitizeMultiline(in.Notes)
	if utf8.RuneCountInString(notes) > MaxNotesLength {
		return nil, model.NewValidationError("notes", "must be 2000 characters or fewer")
	}

	return &model.Item{URL: rawURL, Title: title, Notes: notes}, nil
}

func (s *Service) enrich(ctx context.Context, item *model.Item) {
	start := time.Now()
	meta, err := s.unfurler.Unfurl(ctx, item.URL)
	if s.recorder != nil {
		s.recorder.RecordUnfurl(err == nil, time.Since(start))
	}
	if err != nil {
		s.logger.WarnContext(ctx, "unfurl failed",
			slog.String("url", item.URL),
			slog.String("error", err.Error()),
		)
		return
	}

	item.Title = truncate(s.sanitizer.Sanitize(meta.Title), MaxTitleLength)
	if utf8.RuneCountInString(meta.ImageURL) <= maxImageURLLength {
		item.ImageURL = meta.ImageURL
	}
	item.Price = truncate(s.sanitizer.Sanitize(meta.Price), maxPriceLength)
}

// truncate は文字列をmax文字に切り詰める。
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
