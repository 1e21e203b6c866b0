// Package comment は投稿コメントのエンドポイント操作を提供する。
package comment

import (
	"context"
	"fmt"

	"github.com/hitoshi/threadspace/internal/model"
	"github.com/hitoshi/threadspace/internal/transport"
)

// Service はコメントAPIのエンドポイント操作を提供する。
type Service struct {
	client *transport.Client
}

// NewService はServiceを生成する。
func NewService(client *transport.Client) *Service {
	return &Service{client: client}
}

// List は指定投稿のコメント一覧を取得する。
func (s *Service) List(ctx context.Context, postID int64) ([]model.Comment, error) {
	var comments []model.Comment
	path := fmt.Sprintf("/api/posts/%d/comments", postID)
	if err := s.client.Get(ctx, path, nil, &comments); err != nil {
		return nil, err
	}

	return comments, nil
}

// Add は指定投稿にコメントを追加する。
func (s *Service) Add(ctx context.Context, postID int64, body string) (*model.Comment, error) {
	var c model.Comment
	path := fmt.Sprintf("/api/posts/%d/comments", postID)
	if err := s.client.Post(ctx, path, model.CommentInput{Body: body}, &c); err != nil {
		return nil, err
	}

	return &c, nil
}

// Update は指定コメントの本文を更新する。
func (s *Service) Update(ctx context.Context, postID, commentID int64, body string) (*model.Comment, error) {
	var c model.Comment
	path := fmt.Sprintf("/api/posts/%d/comments/%d", postID, commentID)
	if err := s.client.Put(ctx, path, model.CommentInput{Body: body}, &c); err != nil {
		return nil, err
	}

	return &c, nil
}

// Delete は指定コメントを削除する。
func (s *Service) Delete(ctx context.Context, postID, commentID int64) error {
	path := fmt.Sprintf("/api/posts/%d/comments/%d", postID, commentID)
	return s.client.Delete(ctx, path)
}
