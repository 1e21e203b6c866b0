package credstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hitoshi/threadspace/internal/model"
)

// SQLiteStore はSQLiteを使用した認証クレデンシャルストア。
// ネットワークアクセスより前（プロセス起動直後）に安全に利用できる。
type SQLiteStore struct {
	db *sql.DB
}

// Open は指定パスのSQLiteデータベースを開き、スキーママイグレーションを適用する。
// 親ディレクトリが存在しない場合は作成する。
func Open(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create credential store directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to credential store: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

// Close はデータベース接続を閉じる。
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get は保存されたトークンを返す。不在の場合は空文字列とnilを返す。
// ストレージ障害はstorageカテゴリのエラーとして返し、不在とは区別する。
func (s *SQLiteStore) Get(ctx context.Context) (string, error) {
	var token string
	err := s.db.QueryRowContext(ctx,
		`SELECT token FROM credentials WHERE key = ?`,
		credentialKey,
	).Scan(&token)

	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", model.NewStorageError(err.Error())
	}

	return token, nil
}

// Set はトークンを保存する。既存のトークンは上書きされる。
func (s *SQLiteStore) Set(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO credentials (key, token, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET token = excluded.token, updated_at = excluded.updated_at`,
		credentialKey, token, time.Now().UTC(),
	)
	if err != nil {
		return model.NewStorageError(err.Error())
	}
	return nil
}

// Clear は保存されたトークンを削除する。不在の場合も成功とする。
func (s *SQLiteStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM credentials WHERE key = ?`,
		credentialKey,
	)
	if err != nil {
		return model.NewStorageError(err.Error())
	}
	return nil
}

// compile-time interface check
var _ Store = (*SQLiteStore)(nil)
