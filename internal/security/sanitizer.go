package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はユーザー入力や外部ページから取得した文字列をプレーンテキストに正規化する。
// 出力はHTMLエスケープされていないテキストであり、表示時にテンプレート側でエスケープされる。
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はすべてのタグを除去するポリシーでTextSanitizerを生成する。
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はタグを除去し、連続する空白を1つにまとめた文字列を返す。
func (s *TextSanitizer) Sanitize(raw string) string {
	stripped := html.UnescapeString(s.policy.Sanitize(raw))
	return strings.Join(strings.Fields(stripped), " ")
}

// SanitizeMultiline はタグを除去し、改行を保持したまま各行の前後の空白を取り除く。
func (s *TextSanitizer) SanitizeMultiline(raw string) string {
	stripped := html.UnescapeString(s.policy.Sanitize(raw))
	lines := strings.Split(strings.ReplaceAll(stripped, "\r\n", "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
