// Package post は投稿のエンドポイント操作を提供する。
package post

import (
	"context"
	"fmt"

	"github.com/hitoshi/threadspace/internal/model"
	"github.com/hitoshi/threadspace/internal/transport"
)

// Service は投稿APIのエンドポイント操作を提供する。
// 各操作は対象エンティティ以外を変更しない。deletePostがコメントを
// クライアント側で連鎖削除することはない（サーバー側の責務）。
type Service struct {
	client *transport.Client
}

// NewService はServiceを生成する。
func NewService(client *transport.Client) *Service {
	return &Service{client: client}
}

// List は投稿一覧をページング付きで取得する。
func (s *Service) List(ctx context.Context, query model.PageQuery) (*model.Page[model.Post], error) {
	var page model.Page[model.Post]
	if err := s.client.Get(ctx, "/api/posts", query.Values(), &page); err != nil {
		return nil, err
	}

	return &page, nil
}

// ListByCategory は指定カテゴリの投稿一覧を取得する（ページングなし）。
func (s *Service) ListByCategory(ctx context.Context, categoryID int64) ([]model.Post, error) {
	var posts []model.Post
	path := fmt.Sprintf("/api/posts/category/%d", categoryID)
	if err := s.client.Get(ctx, path, nil, &posts); err != nil {
		return nil, err
	}

	return posts, nil
}

// Get は指定IDの投稿を取得する。
func (s *Service) Get(ctx context.Context, id int64) (*model.Post, error) {
	var post model.Post
	path := fmt.Sprintf("/api/posts/%d", id)
	if err := s.client.Get(ctx, path, nil, &post); err != nil {
		return nil, err
	}

	return &post, nil
}

// Create は投稿を作成する。
// title・contentの空チェックやトリミングは呼び出し側の責務。
func (s *Service) Create(ctx context.Context, input model.PostInput) (*model.Post, error) {
	var post model.Post
	if err := s.client.Post(ctx, "/api/posts", input, &post); err != nil {
		return nil, err
	}

	return &post, nil
}

// Update は指定IDの投稿を更新する。
func (s *Service) Update(ctx context.Context, id int64, input model.PostInput) (*model.Post, error) {
	var post model.Post
	path := fmt.Sprintf("/api/posts/%d", id)
	if err := s.client.Put(ctx, path, input, &post); err != nil {
		return nil, err
	}

	return &post, nil
}

// Delete は指定IDの投稿を削除する。
func (s *Service) Delete(ctx context.Context, id int64) error {
	path := fmt.Sprintf("/api/posts/%d", id)
	return s.client.Delete(ctx, path)
}
