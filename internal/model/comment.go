// Package model はドメインモデルを定義する。
package model

// Comment は投稿に対するコメントを表す。
// コメントは1つの投稿に属し、作成者のみが変更・削除できる（サーバー側で強制）。
type Comment struct {
	ID             int64  `json:"id"`
	Body           string `json:"body"`
	CreatedAt      string `json:"createdAt,omitempty"`
	UpdatedAt      string `json:"updatedAt,omitempty"`
	AuthorID       int64  `json:"authorId,omitempty"`
	AuthorUsername string `json:"authorUsername,omitempty"`
	AuthorName     string `json:"authorName,omitempty"`
}

// CommentInput はコメントの作成・更新APIのリクエストボディを表す。
type CommentInput struct {
	Body string `json:"body"`
}

// Category は投稿のカテゴリを表す。
// クライアントから見て読み取り専用の参照データ。
type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}
