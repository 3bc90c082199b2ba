package model

import "time"

// SettingKeyGAMeasurementID はGoogle Analyticsの測定IDを保持するサイト設定キー。
const SettingKeyGAMeasurementID = "ga_measurement_id"

// SiteSetting はsite_settingsテーブルのキー・バリュー行を表す。
type SiteSetting struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}
