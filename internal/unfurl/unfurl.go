// Package unfurl は保存対象ページのOGPメタデータを取得する。
package unfurl

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// userAgent は取得リクエストに付与するUser-Agent。
const userAgent = "FiBi-Unfurl/1.0 (+https://fibi.app)"

// Metadata はページから抽出したメタデータ。値が見つからない項目は空文字列になる。
type Metadata struct {
	Title    string
	ImageURL string
	Price    string
}

// Unfurler はURLからメタデータを取得するインターフェース。
type Unfurler interface {
	Unfurl(ctx context.Context, pageURL string) (*Metadata, error)
}

// HTTPUnfurler はHTTPでページを取得してメタデータを抽出する。
type HTTPUnfurler struct {
	client  *http.Client
	maxSize int64
	logger  *slog.Logger
}

// NewHTTPUnfurler はHTTPUnfurlerを生成する。
// clientにはSSRF対策済みのクライアントを渡すこと。
func NewHTTPUnfurler(client *http.Client, maxSize int64, logger *slog.Logger) *HTTPUnfurler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPUnfurler{client: client, maxSize: maxSize, logger: logger}
}

// Unfurl はページを取得し、OGPタグと<title>からメタデータを抽出する。
// レスポンスボディはmaxSizeバイトまでしか読まない。
func (u *HTTPUnfurler) Unfurl(ctx context.Context, pageURL string) (*Metadata, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build unfurl request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, pageURL)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.Contains(contentType, "html") {
		return nil, fmt.Errorf("unsupported content type %q from %s", contentType, pageURL)
	}

	body, err := charset.NewReader(io.LimitReader(resp.Body, u.maxSize), contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", pageURL, err)
	}

	meta := Parse(body, resp.Request.URL)

	u.logger.DebugContext(ctx, "page unfurled",
		slog.String("url", pageURL),
		slog.Bool("has_title", meta.Title != ""),
		slog.Bool("has_image", meta.ImageURL != ""),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return meta, nil
}

// Parse はHTMLからメタデータを抽出する。
// og:titleが<title>より優先される。og:imageはbaseに対する絶対URLに解決する。
// </head>に到達した時点で走査を終える。
func Parse(r io.Reader, base *url.URL) *Metadata {
	meta := &Metadata{}
	var docTitle string
	var inTitle bool

	z := html.NewTokenizer(r)
	for {
		switch z.Next() {
		case html.ErrorToken:
			return finish(meta, docTitle, base)

		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			switch string(name) {
			case "title":
				inTitle = docTitle == ""
			case "meta":
				if hasAttr {
					applyMeta(meta, readAttrs(z))
				}
			case "body":
				return finish(meta, docTitle, base)
			}

		case html.TextToken:
			if inTitle {
				docTitle += string(z.Text())
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "title":
				inTitle = false
			case "head":
				return finish(meta, docTitle, base)
			}
		}
	}
}

func readAttrs(z *html.Tokenizer) map[string]string {
	attrs := make(map[string]string)
	for {
		key, val, more := z.TagAttr()
		attrs[strings.ToLower(string(key))] = string(val)
		if !more {
			return attrs
		}
	}
}

func applyMeta(meta *Metadata, attrs map[string]string) {
	prop := attrs["property"]
	if prop == "" {
		prop = attrs["name"]
	}
	content := strings.TrimSpace(attrs["content"])
	if content == "" {
		return
	}

	switch strings.ToLower(prop) {
	case "og:title", "twitter:title":
		if meta.Title == "" {
			meta.Title = content
		}
	case "og:image", "og:image:url", "og:image:secure_url", "twitter:image":
		if meta.ImageURL == "" {
			meta.ImageURL = content
		}
	case "product:price:amount", "og:price:amount":
		if meta.Price == "" {
			meta.Price = content
		}
	}
}

func finish(meta *Metadata, docTitle string, base *url.URL) *Metadata {
	if meta.Title == "" {
		meta.Title = strings.Join(strings.Fields(docTitle), " ")
	}
	if meta.ImageURL != "" {
		meta.ImageURL = resolveImage(meta.ImageURL, base)
	}
	return meta
}

// resolveImage は画像URLを絶対URLにする。http/https以外は捨てる。
func resolveImage(raw string, base *url.URL) string {
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return ""
	}
	return ref.String()
}
