package session

import (
	"context"
	"sync"
	"testing"

	"github.com/hitoshi/threadspace/internal/model"
)

// memStore はテスト用のインメモリクレデンシャルストア。
type memStore struct {
	mu       sync.Mutex
	token    string
	getErr   error
	setErr   error
	clearErr error
}

func (s *memStore) Get(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return "", s.getErr
	}
	return s.token, nil
}

func (s *memStore) Set(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	s.token = token
	return nil
}

func (s *memStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clearErr != nil {
		return s.clearErr
	}
	s.token = ""
	return nil
}

func (s *memStore) current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

type loginCall struct {
	usernameOrEmail string
	password        string
}

// fakeAuth はテスト用のAuthenticator。
type fakeAuth struct {
	loginResp     *model.AuthResponse
	loginErr      error
	registerResp  string
	registerErr   error
	loginCalls    []loginCall
	registerCalls int
}

func (f *fakeAuth) Login(ctx context.Context, usernameOrEmail, password string) (*model.AuthResponse, error) {
	f.loginCalls = append(f.loginCalls, loginCall{usernameOrEmail, password})
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return f.loginResp, nil
}

func (f *fakeAuth) Register(ctx context.Context, req model.RegisterRequest) (string, error) {
	f.registerCalls++
	if f.registerErr != nil {
		return "", f.registerErr
	}
	return f.registerResp, nil
}

// fakeUsers はテスト用のProfileFetcher。
type fakeUsers struct {
	profile *model.UserProfile
	err     error
	calls   int
}

func (f *fakeUsers) Me(ctx context.Context) (*model.UserProfile, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.profile, nil
}

func bryanAuthResponse() *model.AuthResponse {
	return &model.AuthResponse{
		AccessToken: "abc123",
		TokenType:   "Bearer",
		UserID:      1,
		Username:    "bryanwei",
		Name:        "Bryan Wei",
		Email:       "bryan@example.com",
	}
}

func assertBryanProfile(t *testing.T, u *model.UserProfile) {
	t.Helper()
	if u == nil {
		t.Fatal("user が設定されているべき")
	}
	if u.ID != 1 || u.Username != "bryanwei" || u.Name != "Bryan Wei" || u.Email != "bryan@example.com" {
		t.Errorf("user = %+v, want {1 bryanwei Bryan Wei bryan@example.com}", u)
	}
}

// --- Startup ---

func TestStartup_NoCredential_SignedOut(t *testing.T) {
	store := &memStore{}
	users := &fakeUsers{}
	c := NewController(store, &fakeAuth{}, users, nil, nil)

	snap, err := c.Startup(context.Background())
	if err != nil {
		t.Fatalf("Startup がエラーを返した: %v", err)
	}

	if snap.Status != StatusSignedOut {
		t.Errorf("Status = %q, want %q", snap.Status, StatusSignedOut)
	}
	if users.calls != 0 {
		t.Error("クレデンシャル不在時はプロフィール取得を試みるべきではない")
	}
}

func TestStartup_ValidCredential_SignedIn(t *testing.T) {
	store := &memStore{token: "abc123"}
	users := &fakeUsers{profile: &model.UserProfile{ID: 1, Username: "bryanwei", Name: "Bryan Wei", Email: "bryan@example.com"}}
	c := NewController(store, &fakeAuth{}, users, nil, nil)

	snap, err := c.Startup(context.Background())
	if err != nil {
		t.Fatalf("Startup がエラーを返した: %v", err)
	}

	if snap.Status != StatusSignedIn {
		t.Errorf("Status = %q, want %q", snap.Status, StatusSignedIn)
	}
	if snap.Credential != "abc123" {
		t.Errorf("Credential = %q, want %q", snap.Credential, "abc123")
	}
	assertBryanProfile(t, snap.User)
}

func TestStartup_Idempotent(t *testing.T) {
	// サーバーが受理するクレデンシャルに対し、何度実行してもSignedInに到達する
	store := &memStore{token: "abc123"}
	users := &fakeUsers{profile: &model.UserProfile{ID: 1, Username: "bryanwei"}}
	c := NewController(store, &fakeAuth{}, users, nil, nil)

	for i := 0; i < 3; i++ {
		snap, err := c.Startup(context.Background())
		if err != nil {
			t.Fatalf("%d回目のStartup がエラーを返した: %v", i+1, err)
		}
		if snap.Status != StatusSignedIn {
			t.Errorf("%d回目のStatus = %q, want %q", i+1, snap.Status, StatusSignedIn)
		}
		if snap.User == nil || snap.User.Username != "bryanwei" {
			t.Errorf("%d回目のUser = %+v, want bryanwei", i+1, snap.User)
		}
	}
}

func TestStartup_RejectedCredential_ClearsStore(t *testing.T) {
	// サーバーが401で拒否したトークンは消去され、以後ストアは不在を報告する
	store := &memStore{token: "expired-token"}
	users := &fakeUsers{err: model.NewAuthError("")}
	c := NewController(store, &fakeAuth{}, users, nil, nil)

	snap, err := c.Startup(context.Background())
	if err == nil {
		t.Fatal("拒否されたクレデンシャルの理由が通知されるべき")
	}
	if !model.IsAuthError(err) {
		t.Errorf("authカテゴリのエラーであるべき: %v", err)
	}

	if snap.Status != StatusSignedOut {
		t.Errorf("Status = %q, want %q", snap.Status, StatusSignedOut)
	}
	if store.current() != "" {
		t.Errorf("拒否されたクレデンシャルは消去されるべき: store = %q", store.current())
	}
}

func TestStartup_NetworkFailure_KeepsStoredCredential(t *testing.T) {
	// ネットワーク障害は認証失敗と区別し、トークンを保持したままSignedOutになる
	store := &memStore{token: "abc123"}
	users := &fakeUsers{err: model.NewNetworkError("connection refused")}
	c := NewController(store, &fakeAuth{}, users, nil, nil)

	snap, err := c.Startup(context.Background())
	if err == nil {
		t.Fatal("ネットワーク障害が通知されるべき")
	}
	if !model.IsNetworkError(err) {
		t.Errorf("networkカテゴリのエラーであるべき: %v", err)
	}

	if snap.Status != StatusSignedOut {
		t.Errorf("Status = %q, want %q", snap.Status, StatusSignedOut)
	}
	if store.current() != "abc123" {
		t.Errorf("ネットワーク障害ではクレデンシャルを保持すべき: store = %q", store.current())
	}
}

func TestStartup_StorageFailure_Propagates(t *testing.T) {
	store := &memStore{getErr: model.NewStorageError("disk error")}
	c := NewController(store, &fakeAuth{}, &fakeUsers{}, nil, nil)

	snap, err := c.Startup(context.Background())
	if err == nil {
		t.Fatal("ストレージ障害はエラーとして通知されるべき")
	}
	if !model.IsStorageError(err) {
		t.Errorf("storageカテゴリのエラーであるべき: %v", err)
	}
	if snap.Status != StatusSignedOut {
		t.Errorf("Status = %q, want %q", snap.Status, StatusSignedOut)
	}
}

// --- SignIn ---

func TestSignIn_Success(t *testing.T) {
	store := &memStore{}
	auth := &fakeAuth{loginResp: bryanAuthResponse()}
	c := NewController(store, auth, &fakeUsers{}, nil, nil)

	snap, err := c.SignIn(context.Background(), "bryan@example.com", "secret")
	if err != nil {
		t.Fatalf("SignIn がエラーを返した: %v", err)
	}

	if snap.Status != StatusSignedIn {
		t.Errorf("Status = %q, want %q", snap.Status, StatusSignedIn)
	}
	if snap.Credential != "abc123" {
		t.Errorf("Credential = %q, want %q", snap.Credential, "abc123")
	}
	assertBryanProfile(t, snap.User)

	if store.current() != "abc123" {
		t.Errorf("ストアに保存されたトークン = %q, want %q", store.current(), "abc123")
	}
}

func TestSignIn_Atomicity(t *testing.T) {
	// SignedInのスナップショットはクレデンシャルとユーザーが必ず同時に観測される
	store := &memStore{}
	auth := &fakeAuth{loginResp: bryanAuthResponse()}
	c := NewController(store, auth, &fakeUsers{}, nil, nil)

	if _, err := c.SignIn(context.Background(), "bryanwei", "secret"); err != nil {
		t.Fatalf("SignIn がエラーを返した: %v", err)
	}

	snap := c.Snapshot()
	if snap.Status == StatusSignedIn && (snap.Credential == "" || snap.User == nil) {
		t.Errorf("SignedInの状態でCredentialとUserの片方だけが設定されている: %+v", snap)
	}
	if snap.Credential != "" && snap.User == nil {
		t.Error("Credentialのみが観測される中間状態が露出している")
	}
}

func TestSignIn_Failure_RemainsSignedOut(t *testing.T) {
	store := &memStore{}
	auth := &fakeAuth{loginErr: model.NewAuthError("Bad credentials")}
	c := NewController(store, auth, &fakeUsers{}, nil, nil)
	c.Startup(context.Background())

	snap, err := c.SignIn(context.Background(), "bryanwei", "wrong")
	if err == nil {
		t.Fatal("ログイン失敗はエラーとして返るべき")
	}

	apiErr, ok := model.AsAPIError(err)
	if !ok || apiErr.Message != "Bad credentials" {
		t.Errorf("失敗はそのまま呼び出し側へ返すべき: %v", err)
	}

	if snap.Status != StatusSignedOut {
		t.Errorf("Status = %q, want %q", snap.Status, StatusSignedOut)
	}
	if store.current() != "" {
		t.Errorf("失敗時にストアへ書き込むべきではない: %q", store.current())
	}
}

func TestSignIn_StoragePersistFailure_NoStateChange(t *testing.T) {
	store := &memStore{setErr: model.NewStorageError("disk full")}
	auth := &fakeAuth{loginResp: bryanAuthResponse()}
	c := NewController(store, auth, &fakeUsers{}, nil, nil)
	c.Startup(context.Background())

	snap, err := c.SignIn(context.Background(), "bryanwei", "secret")
	if err == nil {
		t.Fatal("永続化失敗はエラーとして返るべき")
	}
	if !model.IsStorageError(err) {
		t.Errorf("storageカテゴリのエラーであるべき: %v", err)
	}
	if snap.Status != StatusSignedOut {
		t.Errorf("永続化できないクレデンシャルでSignedInになるべきではない: %q", snap.Status)
	}
}

func TestSignIn_CancelledContext_DiscardsResult(t *testing.T) {
	// ビュー破棄後に完了したログインは状態に反映されない
	store := &memStore{}
	auth := &fakeAuth{loginResp: bryanAuthResponse()}
	c := NewController(store, auth, &fakeUsers{}, nil, nil)
	c.Startup(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.SignIn(ctx, "bryanwei", "secret")
	if err == nil {
		t.Fatal("キャンセル済みコンテキストではエラーが返るべき")
	}

	if snap := c.Snapshot(); snap.Status == StatusSignedIn {
		t.Error("破棄されたコンテキストの結果が状態に反映されている")
	}
}

// --- SignUp ---

func TestSignUp_Success_EqualsDirectSignIn(t *testing.T) {
	// 登録成功後の自動ログインは、直接SignInした場合と同じ最終状態になる
	signUpStore := &memStore{}
	signUpAuth := &fakeAuth{registerResp: "User registered successfully!", loginResp: bryanAuthResponse()}
	signUpCtl := NewController(signUpStore, signUpAuth, &fakeUsers{}, nil, nil)

	signUpSnap, err := signUpCtl.SignUp(context.Background(), model.RegisterRequest{
		Name:     "Bryan Wei",
		Username: "bryanwei",
		Email:    "bryan@example.com",
		Password: "secret",
	})
	if err != nil {
		t.Fatalf("SignUp がエラーを返した: %v", err)
	}

	directStore := &memStore{}
	directAuth := &fakeAuth{loginResp: bryanAuthResponse()}
	directCtl := NewController(directStore, directAuth, &fakeUsers{}, nil, nil)

	directSnap, err := directCtl.SignIn(context.Background(), "bryanwei", "secret")
	if err != nil {
		t.Fatalf("SignIn がエラーを返した: %v", err)
	}

	if signUpSnap.Status != directSnap.Status {
		t.Errorf("Status: SignUp経由 = %q, 直接SignIn = %q", signUpSnap.Status, directSnap.Status)
	}
	if signUpSnap.Credential != directSnap.Credential {
		t.Errorf("Credential: SignUp経由 = %q, 直接SignIn = %q", signUpSnap.Credential, directSnap.Credential)
	}
	if *signUpSnap.User != *directSnap.User {
		t.Errorf("User: SignUp経由 = %+v, 直接SignIn = %+v", signUpSnap.User, directSnap.User)
	}

	// 自動ログインは登録時と同じユーザー名・パスワードを使用すること
	if len(signUpAuth.loginCalls) != 1 {
		t.Fatalf("ログイン試行回数 = %d, want 1", len(signUpAuth.loginCalls))
	}
	if signUpAuth.loginCalls[0].usernameOrEmail != "bryanwei" || signUpAuth.loginCalls[0].password != "secret" {
		t.Errorf("自動ログインの認証情報 = %+v, want {bryanwei secret}", signUpAuth.loginCalls[0])
	}
}

func TestSignUp_RegisterFailure_NoSignInAttempt(t *testing.T) {
	store := &memStore{}
	auth := &fakeAuth{registerErr: model.NewValidationError(409, "Username is already exists!")}
	c := NewController(store, auth, &fakeUsers{}, nil, nil)
	c.Startup(context.Background())

	snap, err := c.SignUp(context.Background(), model.RegisterRequest{Username: "bryanwei", Password: "secret"})
	if err == nil {
		t.Fatal("登録失敗はエラーとして返るべき")
	}

	if len(auth.loginCalls) != 0 {
		t.Error("登録失敗時はログインを試みるべきではない")
	}
	if snap.Status != StatusSignedOut {
		t.Errorf("Status = %q, want %q", snap.Status, StatusSignedOut)
	}
	if store.current() != "" {
		t.Errorf("登録失敗時にストアへ書き込むべきではない: %q", store.current())
	}
}

// --- SignOut ---

func TestSignOut_ClearsStoreAndState(t *testing.T) {
	store := &memStore{token: "abc123"}
	users := &fakeUsers{profile: &model.UserProfile{ID: 1, Username: "bryanwei"}}
	c := NewController(store, &fakeAuth{}, users, nil, nil)
	c.Startup(context.Background())

	if err := c.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut がエラーを返した: %v", err)
	}

	snap := c.Snapshot()
	if snap.Status != StatusSignedOut {
		t.Errorf("Status = %q, want %q", snap.Status, StatusSignedOut)
	}
	if snap.Credential != "" || snap.User != nil {
		t.Errorf("ログアウト後にクレデンシャルまたはプロフィールが残っている: %+v", snap)
	}
	if store.current() != "" {
		t.Errorf("ストアが消去されているべき: %q", store.current())
	}
}

func TestSignOut_Unconditional_NoNetworkCall(t *testing.T) {
	// ネットワークが全断していてもログアウトは成功する
	// （Authenticator/ProfileFetcherは呼ばれない）
	store := &memStore{token: "abc123"}
	users := &fakeUsers{profile: &model.UserProfile{ID: 1}}
	auth := &fakeAuth{loginErr: model.NewNetworkError("offline")}
	c := NewController(store, auth, users, nil, nil)
	c.Startup(context.Background())

	usersCallsBefore := users.calls
	if err := c.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut がエラーを返した: %v", err)
	}

	if users.calls != usersCallsBefore {
		t.Error("SignOutはネットワーク呼び出しを行うべきではない")
	}
	if c.Snapshot().Status != StatusSignedOut {
		t.Errorf("Status = %q, want %q", c.Snapshot().Status, StatusSignedOut)
	}
}

func TestSignOut_StorageClearFailure_StillTransitions(t *testing.T) {
	store := &memStore{token: "abc123", clearErr: model.NewStorageError("io error")}
	users := &fakeUsers{profile: &model.UserProfile{ID: 1}}
	c := NewController(store, &fakeAuth{}, users, nil, nil)
	c.Startup(context.Background())

	err := c.SignOut(context.Background())
	if err == nil {
		t.Fatal("ストレージ障害はエラーとして通知されるべき")
	}

	if c.Snapshot().Status != StatusSignedOut {
		t.Error("ストレージ障害でも状態はSignedOutへ遷移すべき")
	}
}

// --- RefreshProfile ---

func TestRefreshProfile_ReplacesCachedProfile(t *testing.T) {
	store := &memStore{token: "abc123"}
	users := &fakeUsers{profile: &model.UserProfile{ID: 1, Username: "bryanwei", Name: "Bryan Wei"}}
	c := NewController(store, &fakeAuth{}, users, nil, nil)
	c.Startup(context.Background())

	users.profile = &model.UserProfile{ID: 1, Username: "bryanwei", Name: "Bryan W."}

	snap, err := c.RefreshProfile(context.Background())
	if err != nil {
		t.Fatalf("RefreshProfile がエラーを返した: %v", err)
	}

	if snap.User == nil || snap.User.Name != "Bryan W." {
		t.Errorf("プロフィールが置き換えられるべき: %+v", snap.User)
	}
	if snap.Status != StatusSignedIn {
		t.Errorf("Status = %q, want %q", snap.Status, StatusSignedIn)
	}
}

func TestRefreshProfile_SignedOut_NoOp(t *testing.T) {
	store := &memStore{}
	users := &fakeUsers{}
	c := NewController(store, &fakeAuth{}, users, nil, nil)
	c.Startup(context.Background())

	snap, err := c.RefreshProfile(context.Background())
	if err != nil {
		t.Fatalf("SignedOutでのRefreshProfileはエラーを返すべきではない: %v", err)
	}
	if snap.Status != StatusSignedOut {
		t.Errorf("Status = %q, want %q", snap.Status, StatusSignedOut)
	}
	if users.calls != 0 {
		t.Error("SignedOutではプロフィール取得を試みるべきではない")
	}
}

func TestRefreshProfile_Failure_DoesNotForceSignOut(t *testing.T) {
	// 起動時検証と異なり、定期リフレッシュの失敗はログアウトを強制しない
	store := &memStore{token: "abc123"}
	users := &fakeUsers{profile: &model.UserProfile{ID: 1, Username: "bryanwei"}}
	c := NewController(store, &fakeAuth{}, users, nil, nil)
	c.Startup(context.Background())

	users.err = model.NewAuthError("")

	snap, err := c.RefreshProfile(context.Background())
	if err == nil {
		t.Fatal("リフレッシュ失敗はエラーとして通知されるべき")
	}

	if snap.Status != StatusSignedIn {
		t.Errorf("リフレッシュ失敗後もSignedInのままであるべき: %q", snap.Status)
	}
	if snap.User == nil || snap.User.Username != "bryanwei" {
		t.Errorf("失敗時は既存プロフィールを保持すべき: %+v", snap.User)
	}
	if store.current() != "abc123" {
		t.Errorf("リフレッシュ失敗でクレデンシャルを消去すべきではない: %q", store.current())
	}
}
