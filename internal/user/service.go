// Package user はログイン中ユーザーのエンドポイント操作を提供する。
package user

import (
	"context"

	"github.com/hitoshi/threadspace/internal/model"
	"github.com/hitoshi/threadspace/internal/transport"
)

// Service はユーザーAPIのエンドポイント操作を提供する。
type Service struct {
	client *transport.Client
}

// NewService はServiceを生成する。
func NewService(client *transport.Client) *Service {
	return &Service{client: client}
}

// Me はログイン中ユーザーのプロフィールを取得する。
// 有効なクレデンシャルが必要で、401は無効・期限切れクレデンシャルを意味する。
func (s *Service) Me(ctx context.Context) (*model.UserProfile, error) {
	var profile model.UserProfile
	if err := s.client.Get(ctx, "/api/users/me", nil, &profile); err != nil {
		return nil, err
	}

	return &profile, nil
}

// MyPosts はログイン中ユーザーの投稿をページング付きで取得する。
func (s *Service) MyPosts(ctx context.Context, query model.PageQuery) (*model.Page[model.Post], error) {
	var page model.Page[model.Post]
	if err := s.client.Get(ctx, "/api/users/me/posts", query.Values(), &page); err != nil {
		return nil, err
	}

	return &page, nil
}
