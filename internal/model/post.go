// Package model はドメインモデルを定義する。
package model

import (
	"net/url"
	"strconv"
)

// Post はブログ投稿を表す。
// 投稿は作成者に所有され、変更可否の判定はサーバー側で行われる。
// 日時フィールドはサーバーが返すISO 8601文字列をそのまま保持する
// （クライアント側で解釈せず表示にのみ使用する）。
type Post struct {
	ID             int64   `json:"id"`
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	Content        string  `json:"content"`
	CreatedAt      string  `json:"createdAt,omitempty"`
	UpdatedAt      string  `json:"updatedAt,omitempty"`
	AuthorID       int64   `json:"authorId,omitempty"`
	AuthorUsername string  `json:"authorUsername,omitempty"`
	AuthorName     string  `json:"authorName,omitempty"`
	CategoryID     *int64  `json:"categoryId,omitempty"`
	Comments       []Comment `json:"comments,omitempty"`
}

// PostInput は投稿の作成・更新APIのリクエストボディを表す。
// 入力の正規化（トリミング等）は呼び出し側の責務であり、ここでは行わない。
type PostInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Content     string `json:"content"`
	CategoryID  *int64 `json:"categoryId,omitempty"`
}

// Page はサーバー主導のページネーションエンベロープを表す。
// Contentの件数がPageSizeと一致する保証はない。
type Page[T any] struct {
	Content       []T   `json:"content"`
	PageNo        int   `json:"pageNo"`
	PageSize      int   `json:"pageSize"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
	Last          bool  `json:"last"`
}

// PageQuery は一覧取得APIのページングパラメータを表す。
// ゼロ値のフィールドはクエリに含めず、サーバーのデフォルトに委ねる
// （pageNoのみ0が先頭ページを意味するため常に送信する）。
type PageQuery struct {
	PageNo   int
	PageSize int
	SortBy   string
	SortDir  string // "asc" または "desc"
}

// Values はPageQueryをURLクエリパラメータに変換する。
func (q PageQuery) Values() url.Values {
	v := url.Values{}
	v.Set("pageNo", strconv.Itoa(q.PageNo))
	if q.PageSize > 0 {
		v.Set("pageSize", strconv.Itoa(q.PageSize))
	}
	if q.SortBy != "" {
		v.Set("sortBy", q.SortBy)
	}
	if q.SortDir != "" {
		v.Set("sortDir", q.SortDir)
	}
	return v
}
