// Package auth は認証エンドポイント（ログイン・登録）の呼び出しを提供する。
package auth

import (
	"context"

	"github.com/hitoshi/threadspace/internal/model"
	"github.com/hitoshi/threadspace/internal/transport"
)

// Service は認証APIのエンドポイント操作を提供する。
// 各操作はリクエスト/レスポンスの純粋な対応付けであり、リトライや状態管理は行わない。
type Service struct {
	client *transport.Client
}

// NewService はServiceを生成する。
func NewService(client *transport.Client) *Service {
	return &Service{client: client}
}

// Login はユーザー名またはメールアドレスとパスワードでログインする。
// 成功時はアクセストークンとユーザー情報を含むレスポンスを返す。
// 認証情報が誤っている場合は401の正規化エラーを返す。
func (s *Service) Login(ctx context.Context, usernameOrEmail, password string) (*model.AuthResponse, error) {
	req := model.LoginRequest{
		UsernameOrEmail: usernameOrEmail,
		Password:        password,
	}

	var resp model.AuthResponse
	if err := s.client.Post(ctx, "/api/auth/login", req, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// Register は新規ユーザーを登録し、サーバーの確認メッセージを返す。
// ユーザー名またはメールアドレスの重複はサーバーメッセージ付きの
// 正規化エラーとしてそのまま返す（特別扱いしない）。
func (s *Service) Register(ctx context.Context, req model.RegisterRequest) (string, error) {
	var confirmation string
	if err := s.client.Post(ctx, "/api/auth/register", req, &confirmation); err != nil {
		return "", err
	}

	return confirmation, nil
}
