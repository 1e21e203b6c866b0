// Package credstore は認証クレデンシャルのローカル永続化を提供する。
// 端末にはベアラートークンを固定キーで最大1件だけ保存する。
package credstore

import "context"

// credentialKey は認証情報を保存する固定キー。
const credentialKey = "threadspace.credential"

// Store は認証クレデンシャルの永続化ストアのインターフェース。
// Getは不在を空文字列で表し、ストレージ障害はエラーとして区別する
// （障害を不在として扱ってはならない）。
type Store interface {
	// Get は保存されたトークンを返す。不在の場合は空文字列とnilを返す。
	Get(ctx context.Context) (string, error)
	// Set はトークンを保存する。既存のトークンは上書きされる。
	Set(ctx context.Context, token string) error
	// Clear は保存されたトークンを削除する。不在の場合も成功とする。
	Clear(ctx context.Context) error
}
