// Package version はパッケージマニフェストからアプリケーションのバージョンを読み取る。
package version

import (
	"log/slog"
	"os"
	"strings"

	"sigs.k8s.io/yaml"
)

// Fallback はマニフェストが読めない場合に返すバージョン。
const Fallback = "0.1.0"

type manifest struct {
	Version string `json:"version"`
}

// Reader はリクエストのたびにマニフェストを読み直す。
// デプロイ中にファイルが差し替えられても再起動なしで反映される。
type Reader struct {
	path   string
	logger *slog.Logger
}

// NewReader はReaderを生成する。
func NewReader(path string, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{path: path, logger: logger}
}

// Version はマニフェストのversionを返す。読み取り・解析に失敗した場合や
// versionが空の場合はFallbackを返す。JSONとYAMLの両方を受け付ける。
func (r *Reader) Version() string {
	data, err := os.ReadFile(r.path)
	if err != nil {
		r.logger.Warn("failed to read version manifest",
			slog.String("path", r.path),
			slog.String("error", err.Error()),
		)
		return Fallback
	}

	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		r.logger.Warn("failed to parse version manifest",
			slog.String("path", r.path),
			slog.String("error", err.Error()),
		)
		return Fallback
	}

	v := strings.TrimSpace(m.Version)
	if v == "" {
		return Fallback
	}
	return v
}
