// Package model はドメインモデルを定義する。
package model

// UserProfile はサーバー側アイデンティティのクライアント側キャッシュを表す。
// 再取得により更新可能だが、クライアント側が正とはならない。
type UserProfile struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
}

// LoginRequest はログインAPIのリクエストボディを表す。
// ユーザー名とメールアドレスのどちらでもログイン可能。
type LoginRequest struct {
	UsernameOrEmail string `json:"usernameOrEmail"`
	Password        string `json:"password"`
}

// RegisterRequest はユーザー登録APIのリクエストボディを表す。
type RegisterRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse はログインAPIのレスポンスを表す。
// アクセストークンに加えて、追加のラウンドトリップなしで
// プロフィールを構築できるだけのユーザー情報を含む。
type AuthResponse struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType,omitempty"` // "Bearer"
	UserID      int64  `json:"userId"`
	Username    string `json:"username"`
	Name        string `json:"name"`
	Email       string `json:"email"`
}

// Profile はログインレスポンスに含まれるユーザー情報からプロフィールを構築する。
func (r *AuthResponse) Profile() *UserProfile {
	return &UserProfile{
		ID:       r.UserID,
		Username: r.Username,
		Name:     r.Name,
		Email:    r.Email,
	}
}
