package model

import "time"

// Item はユーザーが保存したアイテム（商品ページやリンク）を表す。
type Item struct {
	ID        string
	UserID    string
	URL       string
	Title     string
	ImageURL  string
	Price     string
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DisplayTitle は表示用のタイトルを返す。タイトルが空の場合はURLを返す。
func (i *Item) DisplayTitle() string {
	if i.Title != "" {
		return i.Title
	}
	return i.URL
}
