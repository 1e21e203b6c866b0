// Package transport はThreadSpace APIへの全HTTPアクセスを仲介する。
// 認証ヘッダーの付与、タイムアウト、失敗の正規化を一箇所で行う。
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/hitoshi/threadspace/internal/metrics"
	"github.com/hitoshi/threadspace/internal/model"
)

// defaultTimeout は1リクエストあたりの固定タイムアウト。
const defaultTimeout = 15 * time.Second

// CredentialSource は認証クレデンシャルの読み取り専用ビュー。
// トランスポートはリクエストごとに最新の値を読み、決して書き込まない。
type CredentialSource interface {
	Get(ctx context.Context) (string, error)
}

// ClientConfig はClientの生成パラメータ。
type ClientConfig struct {
	BaseURL     string
	Timeout     time.Duration     // 未指定の場合は15秒
	HTTPClient  *http.Client      // テスト用に差し替え可能
	Credentials CredentialSource  // nilの場合は認証ヘッダーを付与しない
	Logger      *slog.Logger      // nilの場合はslog.Default()
	Limiter     *rate.Limiter     // nilの場合はペーシングなし
	Metrics     metrics.MetricsCollector // nilの場合は記録しない
}

// Client はThreadSpace APIの設定済みHTTPクライアント。
// 全ドメイン操作はこのクライアントを経由する。
type Client struct {
	baseURL    string
	httpClient *http.Client
	creds      CredentialSource
	logger     *slog.Logger
	limiter    *rate.Limiter
	metrics    metrics.MetricsCollector
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	collector := cfg.Metrics
	if collector == nil {
		collector = metrics.NopCollector{}
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		creds:      cfg.Credentials,
		logger:     logger,
		limiter:    cfg.Limiter,
		metrics:    collector,
	}
}

// Get はGETリクエストを実行し、レスポンスJSONをoutにデコードする。
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

// Post はPOSTリクエストを実行し、レスポンスをoutにデコードする。
func (c *Client) Post(ctx context.Context, path string, body any, out any) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out)
}

// Put はPUTリクエストを実行し、レスポンスをoutにデコードする。
func (c *Client) Put(ctx context.Context, path string, body any, out any) error {
	return c.do(ctx, http.MethodPut, path, nil, body, out)
}

// Delete はDELETEリクエストを実行する。レスポンスボディは読み捨てる。
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// do は単一のHTTPリクエストを実行する。
// 認証クレデンシャルはリクエスト時点の値をストアから読む（キャッシュしない）。
// 非2xxレスポンスは正規化された失敗オブジェクトとして返す。
// リトライはこの層では行わない（呼び出し側の判断）。
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	var token string
	if c.creds != nil {
		t, err := c.creds.Get(ctx)
		if err != nil {
			// ストレージ障害は「認証情報なし」として握り潰さず伝播する
			return err
		}
		token = t
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("リクエストボディのエンコードに失敗しました: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	requestID := uuid.New().String()

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(start)
	if err != nil {
		// ビューの破棄によるキャンセルはそのまま返す（呼び出し側が結果を破棄する）
		if ctx.Err() != nil {
			return err
		}
		c.metrics.RecordNetworkFailure()
		c.logger.Error("APIリクエストが失敗しました",
			slog.String("request_id", requestID),
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		if isTimeout(err) {
			return model.NewTimeoutError()
		}
		return model.NewNetworkError(err.Error())
	}
	defer resp.Body.Close()

	c.metrics.RecordHTTPStatus(resp.StatusCode)
	c.metrics.RecordRequestLatency(latency)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.RecordNetworkFailure()
		return model.NewNetworkError(fmt.Sprintf("レスポンスボディの読み取りに失敗しました: %v", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		serverMsg := decodeServerMessage(data)
		failure := model.NewRequestFailure(resp.StatusCode, serverMsg)
		c.logger.Warn("APIがエラーステータスを返しました",
			slog.String("request_id", requestID),
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("http_status", resp.StatusCode),
			slog.String("error_code", failure.Code),
		)
		return failure
	}

	c.logger.Debug("APIリクエストが完了しました",
		slog.String("request_id", requestID),
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("http_status", resp.StatusCode),
		slog.Int64("duration_ms", latency.Milliseconds()),
	)

	if out == nil {
		return nil
	}

	// 登録APIなどプレーンテキストを返すエンドポイントに対応する
	if s, ok := out.(*string); ok {
		*s = string(data)
		return nil
	}

	if len(data) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	return nil
}

// decodeServerMessage はエラーレスポンスからサーバー提供メッセージを取り出す。
// JSONの場合はmessageフィールドを、プレーンテキストの場合は本文をそのまま使う。
// 取り出せない場合は空文字列を返す（汎用メッセージにフォールバックされる）。
func decodeServerMessage(data []byte) string {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return ""
	}

	if strings.HasPrefix(trimmed, "{") {
		var payload struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(data, &payload); err == nil {
			return payload.Message
		}
		return ""
	}

	return trimmed
}

// isTimeout はエラーがタイムアウト起因かどうかを判定する。
func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
