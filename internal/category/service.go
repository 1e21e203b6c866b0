// Package category は投稿カテゴリのエンドポイント操作を提供する。
package category

import (
	"context"

	"github.com/hitoshi/threadspace/internal/model"
	"github.com/hitoshi/threadspace/internal/transport"
)

// Service はカテゴリAPIのエンドポイント操作を提供する。
// カテゴリはクライアントから見て読み取り専用の参照データで、件数は少ない前提。
type Service struct {
	client *transport.Client
}

// NewService はServiceを生成する。
func NewService(client *transport.Client) *Service {
	return &Service{client: client}
}

// List は全カテゴリを取得する（ページングなし）。
func (s *Service) List(ctx context.Context) ([]model.Category, error) {
	var categories []model.Category
	if err := s.client.Get(ctx, "/api/v1/categories", nil, &categories); err != nil {
		return nil, err
	}

	return categories, nil
}
