// Package seo はrobots.txtとsitemap.xmlを公開URLから組み立てる。
package seo

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// DisallowedPaths はクローラーに公開しないパス。
var DisallowedPaths = []string{"/app/", "/api/", "/auth/"}

// PublicPaths はサイトマップに載せる公開ページ。
var PublicPaths = []string{"/", "/login"}

// Robots はrobots.txtの本文を返す。
func Robots(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")

	var b strings.Builder
	b.WriteString("User-agent: *\n")
	b.WriteString("Allow: /\n")
	for _, p := range DisallowedPaths {
		fmt.Fprintf(&b, "Disallow: %s\n", p)
	}
	fmt.Fprintf(&b, "\nSitemap: %s/sitemap.xml\n", base)
	return b.String()
}

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc        string `xml:"loc"`
	ChangeFreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority,omitempty"`
}

// Sitemap はsitemap.xmlの本文を返す。
func Sitemap(baseURL string) ([]byte, error) {
	base := strings.TrimRight(baseURL, "/")

	set := urlSet{XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9"}
	for _, p := range PublicPaths {
		u := sitemapURL{Loc: base + p, ChangeFreq: "monthly", Priority: "0.5"}
		if p == "/" {
			u.ChangeFreq = "weekly"
			u.Priority = "1.0"
		}
		set.URLs = append(set.URLs, u)
	}

	out, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode sitemap: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}
