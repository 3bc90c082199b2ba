package handler

import (
	"context"

	"github.com/fibi-app/fibi/internal/model"
	"github.com/fibi-app/fibi/internal/repository"
)

// SiteSettingsAdapter は repository.SiteSettingRepository を SiteSettings に適合させるアダプタ。
type SiteSettingsAdapter struct {
	repo repository.SiteSettingRepository
}

// NewSiteSettingsAdapter はSiteSettingsAdapterを生成する。
func NewSiteSettingsAdapter(repo repository.SiteSettingRepository) *SiteSettingsAdapter {
	return &SiteSettingsAdapter{repo: repo}
}

// GAMeasurementID はGA測定IDを返す。未設定の場合は空文字列を返す。
func (a *SiteSettingsAdapter) GAMeasurementID(ctx context.Context) (string, error) {
	setting, err := a.repo.Get(ctx, model.SettingKeyGAMeasurementID)
	if err != nil {
		return "", err
	}
	if setting == nil {
		return "", nil
	}
	return setting.Value, nil
}

// SetGAMeasurementID はGA測定IDを保存する。空文字列は未設定（NULL）として保存される。
func (a *SiteSettingsAdapter) SetGAMeasurementID(ctx context.Context, id string) error {
	return a.repo.Upsert(ctx, model.SettingKeyGAMeasurementID, id)
}

// --- compile-time interface checks ---

var _ SiteSettings = (*SiteSettingsAdapter)(nil)
