// Package session は認証セッションの状態機械を提供する。
// 起動時の保存クレデンシャルとサーバー正の整合、ログイン・登録・
// ログアウト・プロフィール更新の各操作を所有する。
// クレデンシャルストアへの書き込みはこのコントローラのみが行う。
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hitoshi/threadspace/internal/credstore"
	"github.com/hitoshi/threadspace/internal/metrics"
	"github.com/hitoshi/threadspace/internal/model"
)

// Status はセッションの状態を表す。
type Status string

const (
	// StatusLoading は起動時整合中の状態。唯一の初期状態であり、
	// SignedInまたはSignedOutへちょうど1回遷移する。
	StatusLoading Status = "loading"
	// StatusSignedOut は未ログイン状態。
	StatusSignedOut Status = "signed_out"
	// StatusSignedIn はログイン済み状態。クレデンシャルの存在が保証される。
	StatusSignedIn Status = "signed_in"
)

// Authenticator は認証エンドポイントのインターフェース。
type Authenticator interface {
	Login(ctx context.Context, usernameOrEmail, password string) (*model.AuthResponse, error)
	Register(ctx context.Context, req model.RegisterRequest) (string, error)
}

// ProfileFetcher はログイン中ユーザーのプロフィール取得のインターフェース。
type ProfileFetcher interface {
	Me(ctx context.Context) (*model.UserProfile, error)
}

// Snapshot はセッション状態の一貫したビューを表す。
// StatusがSignedInの場合、CredentialとUserは必ず同時に設定されている
// （片方だけが観測されることはない）。
type Snapshot struct {
	Status     Status
	Credential string
	User       *model.UserProfile
}

// Controller は認証セッションの状態機械。
// プロセス起動時に1回生成し、参照で各コンシューマに渡す。
type Controller struct {
	store   credstore.Store
	auth    Authenticator
	users   ProfileFetcher
	logger  *slog.Logger
	metrics metrics.MetricsCollector

	mu         sync.Mutex
	status     Status
	credential string
	user       *model.UserProfile
}

// NewController はControllerを生成する。初期状態はLoading。
func NewController(store credstore.Store, auth Authenticator, users ProfileFetcher, logger *slog.Logger, collector metrics.MetricsCollector) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Controller{
		store:   store,
		auth:    auth,
		users:   users,
		logger:  logger,
		metrics: collector,
		status:  StatusLoading,
	}
}

// Snapshot は現在のセッション状態の一貫したコピーを返す。
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		Status:     c.status,
		Credential: c.credential,
	}
	if c.user != nil {
		u := *c.user
		snap.User = &u
	}
	return snap
}

// commit はクレデンシャルとプロフィールと状態を単一ロック内で更新する。
// 呼び出し側から中間状態が観測されることはない。
func (c *Controller) commit(status Status, credential string, user *model.UserProfile) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = status
	c.credential = credential
	c.user = user
	c.metrics.RecordAuthTransition(string(status))
	return c.snapshotLocked()
}

// Startup は保存クレデンシャルとサーバー正を整合させる。
// 何度実行しても同じサーバー応答に対しては同じ最終状態に到達する。
//   - クレデンシャル不在: SignedOut
//   - クレデンシャルあり + プロフィール取得成功: SignedIn
//   - 401（無効・期限切れ）: ストアを消去してSignedOut（強制再ログイン）
//   - ネットワーク障害: ストアは保持したままSignedOut
//     （接続回復後の再起動でセッションを回復できる）
//
// 失敗時も状態は必ずSignedOutに確定し、エラーは理由の通知として返す。
func (c *Controller) Startup(ctx context.Context) (Snapshot, error) {
	token, err := c.store.Get(ctx)
	if err != nil {
		// ストレージ障害は不在とは区別して通知する
		c.logger.Error("クレデンシャルストアの読み取りに失敗しました",
			slog.String("error", err.Error()),
		)
		return c.commit(StatusSignedOut, "", nil), err
	}

	if token == "" {
		return c.commit(StatusSignedOut, "", nil), nil
	}

	profile, err := c.users.Me(ctx)
	if err != nil {
		if model.IsAuthError(err) {
			// 検証できないトークンを残すと曖昧な認証状態になるため消去する
			if clearErr := c.store.Clear(ctx); clearErr != nil {
				c.logger.Error("無効クレデンシャルの消去に失敗しました",
					slog.String("error", clearErr.Error()),
				)
			}
			c.logger.Info("保存クレデンシャルがサーバーに拒否されたため消去しました")
			return c.commit(StatusSignedOut, "", nil), err
		}

		// ネットワーク障害では実際の認証失敗と区別し、トークンを保持する
		c.logger.Warn("起動時のプロフィール取得に失敗しました（クレデンシャルは保持）",
			slog.String("error", err.Error()),
		)
		return c.commit(StatusSignedOut, "", nil), err
	}

	c.logger.Info("保存クレデンシャルでセッションを復元しました",
		slog.String("username", profile.Username),
	)
	return c.commit(StatusSignedIn, token, profile), nil
}

// SignIn はログインし、成功時にクレデンシャルを永続化してSignedInへ遷移する。
// プロフィールはログインレスポンスから直接構築する（追加のラウンドトリップなし）。
// 失敗時は状態を変更せず、失敗をそのまま返す。
func (c *Controller) SignIn(ctx context.Context, usernameOrEmail, password string) (Snapshot, error) {
	resp, err := c.auth.Login(ctx, usernameOrEmail, password)
	if err != nil {
		return c.Snapshot(), err
	}

	if err := c.store.Set(ctx, resp.AccessToken); err != nil {
		return c.Snapshot(), err
	}

	// 破棄されたビューからの結果は状態に反映しない
	if ctx.Err() != nil {
		return c.Snapshot(), ctx.Err()
	}

	c.logger.Info("ログインしました", slog.String("username", resp.Username))
	return c.commit(StatusSignedIn, resp.AccessToken, resp.Profile()), nil
}

// SignUp はユーザー登録後、同じユーザー名とパスワードで自動ログインする。
// 登録が失敗した場合はログインを試みず、状態も変更しない。
func (c *Controller) SignUp(ctx context.Context, req model.RegisterRequest) (Snapshot, error) {
	confirmation, err := c.auth.Register(ctx, req)
	if err != nil {
		return c.Snapshot(), err
	}

	c.logger.Info("ユーザー登録が完了しました",
		slog.String("username", req.Username),
		slog.String("confirmation", confirmation),
	)

	return c.SignIn(ctx, req.Username, req.Password)
}

// SignOut はクレデンシャルとプロフィールを消去してSignedOutへ遷移する。
// ネットワーク呼び出しを行わないため、接続状態にかかわらず必ず遷移する。
// ストアの消去に失敗した場合も状態遷移は行い、エラーのみ返す。
func (c *Controller) SignOut(ctx context.Context) error {
	clearErr := c.store.Clear(ctx)
	c.commit(StatusSignedOut, "", nil)

	if clearErr != nil {
		c.logger.Error("クレデンシャルストアの消去に失敗しました",
			slog.String("error", clearErr.Error()),
		)
		return clearErr
	}

	c.logger.Info("ログアウトしました")
	return nil
}

// RefreshProfile はプロフィールを再取得してキャッシュを置き換える。
// SignedOutの場合は何もしない。失敗は呼び出し側に通知するが、
// 起動時検証と異なり強制ログアウトは行わない。
func (c *Controller) RefreshProfile(ctx context.Context) (Snapshot, error) {
	if c.Snapshot().Status != StatusSignedIn {
		return c.Snapshot(), nil
	}

	profile, err := c.users.Me(ctx)
	if err != nil {
		return c.Snapshot(), err
	}

	if ctx.Err() != nil {
		return c.Snapshot(), ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// リフレッシュ中にログアウトが完了していた場合は結果を破棄する
	if c.status != StatusSignedIn {
		return c.snapshotLocked(), nil
	}
	c.user = profile
	return c.snapshotLocked(), nil
}
