// Package app はCLIのエントリーポイントと依存関係のワイヤリングを提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/threadspace/internal/auth"
	"github.com/hitoshi/threadspace/internal/category"
	"github.com/hitoshi/threadspace/internal/comment"
	"github.com/hitoshi/threadspace/internal/config"
	"github.com/hitoshi/threadspace/internal/credstore"
	"github.com/hitoshi/threadspace/internal/logger"
	"github.com/hitoshi/threadspace/internal/metrics"
	"github.com/hitoshi/threadspace/internal/mockapi"
	"github.com/hitoshi/threadspace/internal/model"
	"github.com/hitoshi/threadspace/internal/post"
	"github.com/hitoshi/threadspace/internal/security"
	"github.com/hitoshi/threadspace/internal/session"
	"github.com/hitoshi/threadspace/internal/transport"
	"github.com/hitoshi/threadspace/internal/user"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// logWriterが指定された場合はログ出力先としてそのwriterを使用する。
func Init(logWriter io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(logWriter)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応する操作を実行する。
// argsにはos.Args[1:]を渡す。表示結果はwに書き込む（ログはstderr）。
func Run(w io.Writer, args []string) error {
	cmd, rest := ParseCommand(args)

	if cmd == CommandHelp {
		printUsage(w)
		return nil
	}

	cfg, err := Init(nil)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting threadspace client",
		slog.String("command", string(cmd)),
		slog.String("base_url", cfg.APIBaseURL),
		slog.Bool("secure", cfg.IsSecure()),
	)
	if !cfg.IsSecure() {
		slog.Warn("APIベースURLがhttpsではありません。クレデンシャルが平文で送信されます",
			slog.String("base_url", cfg.APIBaseURL),
		)
	}

	// mock は軽量サブコマンドのため、クライアントスタックの構築をスキップする
	if cmd == CommandMock {
		return runMock(cfg)
	}

	env, err := buildEnv(cfg)
	if err != nil {
		return err
	}
	defer env.store.Close()

	ctx := context.Background()
	return env.dispatch(ctx, w, cmd, rest)
}

// env はCLIの1回の実行で使う依存関係一式。
type env struct {
	cfg        *config.Config
	store      *credstore.SQLiteStore
	controller *session.Controller
	posts      *post.Service
	comments   *comment.Service
	categories *category.Service
	users      *user.Service
	sanitizer  security.ContentSanitizerService
}

// buildEnv はクレデンシャルストア・トランスポート・各サービスをワイヤリングする。
func buildEnv(cfg *config.Config) (*env, error) {
	store, err := credstore.Open(cfg.CredentialDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store: %w", err)
	}

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	limiter := rate.NewLimiter(
		rate.Limit(float64(cfg.RateLimitPerMinute)/60.0),
		cfg.RateLimitBurst,
	)

	client := transport.NewClient(transport.ClientConfig{
		BaseURL:     cfg.APIBaseURL,
		Timeout:     cfg.RequestTimeout,
		Credentials: store,
		Logger:      slog.Default(),
		Limiter:     limiter,
		Metrics:     collector,
	})

	authService := auth.NewService(client)
	userService := user.NewService(client)

	controller := session.NewController(store, authService, userService, slog.Default(), collector)

	return &env{
		cfg:        cfg,
		store:      store,
		controller: controller,
		posts:      post.NewService(client),
		comments:   comment.NewService(client),
		categories: category.NewService(client),
		users:      userService,
		sanitizer:  security.NewContentSanitizer(),
	}, nil
}

// dispatch はサブコマンドを実行する。
// ログイン・登録以外のコマンドは先に起動時のセッション解決を行う。
func (e *env) dispatch(ctx context.Context, w io.Writer, cmd Command, args []string) error {
	switch cmd {
	case CommandLogin:
		return e.runLogin(ctx, w, args)
	case CommandRegister:
		return e.runRegister(ctx, w, args)
	}

	snap, err := e.controller.Startup(ctx)
	if err != nil {
		if model.IsStorageError(err) {
			return err
		}
		// ネットワーク障害・拒否されたクレデンシャルはサインアウト状態で続行する
		slog.Warn("起動時のセッション解決に失敗しました", slog.String("error", err.Error()))
	}

	switch cmd {
	case CommandLogout:
		return e.runLogout(ctx, w)
	case CommandWhoami:
		return e.runWhoami(w, snap)
	case CommandRefresh:
		return e.runRefresh(ctx, w)
	case CommandPosts:
		return e.runPosts(ctx, w, args)
	case CommandPost:
		return e.runPost(ctx, w, args)
	case CommandPostCreate:
		return e.runPostCreate(ctx, w, args)
	case CommandPostEdit:
		return e.runPostEdit(ctx, w, args)
	case CommandPostDelete:
		return e.runPostDelete(ctx, w, args)
	case CommandComments:
		return e.runComments(ctx, w, args)
	case CommandCommentAdd:
		return e.runCommentAdd(ctx, w, args)
	case CommandCommentEdit:
		return e.runCommentEdit(ctx, w, args)
	case CommandCommentDelete:
		return e.runCommentDelete(ctx, w, args)
	case CommandCategories:
		return e.runCategories(ctx, w)
	default:
		printUsage(w)
		return nil
	}
}

func (e *env) runLogin(ctx context.Context, w io.Writer, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: threadspace login <username-or-email> <password>")
	}

	snap, err := e.controller.SignIn(ctx, args[0], args[1])
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "signed in as %s (%s)\n", snap.User.Username, snap.User.Email)
	return nil
}

func (e *env) runRegister(ctx context.Context, w io.Writer, args []string) error {
	if len(args) != 4 {
		return fmt.Errorf("usage: threadspace register <name> <username> <email> <password>")
	}

	snap, err := e.controller.SignUp(ctx, model.RegisterRequest{
		Name:     args[0],
		Username: args[1],
		Email:    args[2],
		Password: args[3],
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "registered and signed in as %s (%s)\n", snap.User.Username, snap.User.Email)
	return nil
}

func (e *env) runLogout(ctx context.Context, w io.Writer) error {
	if err := e.controller.SignOut(ctx); err != nil {
		return err
	}
	fmt.Fprintln(w, "signed out")
	return nil
}

func (e *env) runWhoami(w io.Writer, snap session.Snapshot) error {
	if snap.Status != session.StatusSignedIn {
		fmt.Fprintln(w, "signed out")
		return nil
	}
	fmt.Fprintf(w, "%s (%s) <%s>\n", snap.User.Username, snap.User.Name, snap.User.Email)
	return nil
}

func (e *env) runRefresh(ctx context.Context, w io.Writer) error {
	snap, err := e.controller.RefreshProfile(ctx)
	if err != nil {
		return err
	}
	if snap.Status != session.StatusSignedIn {
		fmt.Fprintln(w, "signed out")
		return nil
	}
	fmt.Fprintf(w, "%s (%s) <%s>\n", snap.User.Username, snap.User.Name, snap.User.Email)
	return nil
}

// runPosts は投稿一覧を表示する。
// "posts [pageNo]"、"posts mine [pageNo]"、"posts category <id>" の3形式をサポートする。
func (e *env) runPosts(ctx context.Context, w io.Writer, args []string) error {
	query := model.PageQuery{
		PageSize: e.cfg.DefaultPageSize,
		SortBy:   e.cfg.DefaultSortBy,
		SortDir:  e.cfg.DefaultSortDir,
	}

	switch {
	case len(args) >= 1 && args[0] == "category":
		if len(args) != 2 {
			return fmt.Errorf("usage: threadspace posts category <category-id>")
		}
		categoryID, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid category id: %q", args[1])
		}
		posts, err := e.posts.ListByCategory(ctx, categoryID)
		if err != nil {
			return err
		}
		for _, p := range posts {
			printPostLine(w, p)
		}
		return nil

	case len(args) >= 1 && args[0] == "mine":
		pageNo, err := parseOptionalPage(args[1:])
		if err != nil {
			return err
		}
		query.PageNo = pageNo
		page, err := e.users.MyPosts(ctx, query)
		if err != nil {
			return err
		}
		printPage(w, page)
		return nil

	default:
		pageNo, err := parseOptionalPage(args)
		if err != nil {
			return err
		}
		query.PageNo = pageNo
		page, err := e.posts.List(ctx, query)
		if err != nil {
			return err
		}
		printPage(w, page)
		return nil
	}
}

func (e *env) runPost(ctx context.Context, w io.Writer, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: threadspace post <post-id>")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid post id: %q", args[0])
	}

	p, err := e.posts.Get(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "#%d %s\n", p.ID, p.Title)
	if p.AuthorUsername != "" {
		fmt.Fprintf(w, "by %s", p.AuthorUsername)
		if p.CreatedAt != "" {
			fmt.Fprintf(w, " at %s", p.CreatedAt)
		}
		fmt.Fprintln(w)
	}
	if p.Description != "" {
		fmt.Fprintln(w, p.Description)
	}
	fmt.Fprintln(w)
	// 表示前に本文のHTMLをサニタイズする
	fmt.Fprintln(w, e.sanitizer.Sanitize(p.Content))

	comments, err := e.comments.List(ctx, id)
	if err != nil {
		return err
	}
	if len(comments) > 0 {
		fmt.Fprintf(w, "\ncomments (%d):\n", len(comments))
		for _, c := range comments {
			printCommentLine(w, e.sanitizer, c)
		}
	}
	return nil
}

func (e *env) runPostCreate(ctx context.Context, w io.Writer, args []string) error {
	if len(args) < 3 || len(args) > 4 {
		return fmt.Errorf("usage: threadspace post-create <title> <description> <content> [category-id]")
	}

	input := model.PostInput{
		Title:       args[0],
		Description: args[1],
		Content:     args[2],
	}
	if len(args) == 4 {
		categoryID, err := strconv.ParseInt(args[3], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid category id: %q", args[3])
		}
		input.CategoryID = &categoryID
	}

	created, err := e.posts.Create(ctx, input)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "created post #%d: %s\n", created.ID, created.Title)
	return nil
}

func (e *env) runPostEdit(ctx context.Context, w io.Writer, args []string) error {
	if len(args) < 4 || len(args) > 5 {
		return fmt.Errorf("usage: threadspace post-edit <post-id> <title> <description> <content> [category-id]")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid post id: %q", args[0])
	}

	input := model.PostInput{
		Title:       args[1],
		Description: args[2],
		Content:     args[3],
	}
	if len(args) == 5 {
		categoryID, err := strconv.ParseInt(args[4], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid category id: %q", args[4])
		}
		input.CategoryID = &categoryID
	}

	updated, err := e.posts.Update(ctx, id, input)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "updated post #%d: %s\n", updated.ID, updated.Title)
	return nil
}

func (e *env) runPostDelete(ctx context.Context, w io.Writer, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: threadspace post-delete <post-id>")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid post id: %q", args[0])
	}

	if err := e.posts.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(w, "deleted post #%d\n", id)
	return nil
}

func (e *env) runComments(ctx context.Context, w io.Writer, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: threadspace comments <post-id>")
	}
	postID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid post id: %q", args[0])
	}

	comments, err := e.comments.List(ctx, postID)
	if err != nil {
		return err
	}
	for _, c := range comments {
		printCommentLine(w, e.sanitizer, c)
	}
	return nil
}

func (e *env) runCommentAdd(ctx context.Context, w io.Writer, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: threadspace comment-add <post-id> <body>")
	}
	postID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid post id: %q", args[0])
	}

	added, err := e.comments.Add(ctx, postID, args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "added comment #%d\n", added.ID)
	return nil
}

func (e *env) runCommentEdit(ctx context.Context, w io.Writer, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: threadspace comment-edit <post-id> <comment-id> <body>")
	}
	postID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid post id: %q", args[0])
	}
	commentID, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid comment id: %q", args[1])
	}

	updated, err := e.comments.Update(ctx, postID, commentID, args[2])
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "updated comment #%d\n", updated.ID)
	return nil
}

func (e *env) runCommentDelete(ctx context.Context, w io.Writer, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: threadspace comment-delete <post-id> <comment-id>")
	}
	postID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid post id: %q", args[0])
	}
	commentID, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid comment id: %q", args[1])
	}

	if err := e.comments.Delete(ctx, postID, commentID); err != nil {
		return err
	}
	fmt.Fprintf(w, "deleted comment #%d\n", commentID)
	return nil
}

func (e *env) runCategories(ctx context.Context, w io.Writer) error {
	categories, err := e.categories.List(ctx)
	if err != nil {
		return err
	}
	for _, c := range categories {
		fmt.Fprintf(w, "%d\t%s\t%s\n", c.ID, c.Name, c.Description)
	}
	return nil
}

// runMock は開発用のインメモリAPIサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runMock(cfg *config.Config) error {
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	mux := http.NewServeMux()
	mux.Handle("/", instrument(collector, mockapi.NewServer().Handler()))
	mux.Handle("/metrics", metrics.Handler(registry))

	server := &http.Server{
		Addr:         ":" + cfg.MockPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("mock API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down mock API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("mock API server stopped gracefully")
	return nil
}

// instrument はレスポンスのステータスコードとレイテンシを記録するミドルウェア。
func instrument(collector metrics.MetricsCollector, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		collector.RecordHTTPStatus(rec.status)
		collector.RecordRequestLatency(time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// parseOptionalPage は省略可能なページ番号引数を解析する。
func parseOptionalPage(args []string) (int, error) {
	if len(args) == 0 {
		return 0, nil
	}
	pageNo, err := strconv.Atoi(args[0])
	if err != nil || pageNo < 0 {
		return 0, fmt.Errorf("invalid page number: %q", args[0])
	}
	return pageNo, nil
}

func printPage(w io.Writer, page *model.Page[model.Post]) {
	for _, p := range page.Content {
		printPostLine(w, p)
	}
	fmt.Fprintf(w, "page %d/%d (%d posts)\n", page.PageNo+1, page.TotalPages, page.TotalElements)
}

func printPostLine(w io.Writer, p model.Post) {
	fmt.Fprintf(w, "#%d\t%s", p.ID, p.Title)
	if p.AuthorUsername != "" {
		fmt.Fprintf(w, "\tby %s", p.AuthorUsername)
	}
	fmt.Fprintln(w)
}

func printCommentLine(w io.Writer, sanitizer security.ContentSanitizerService, c model.Comment) {
	fmt.Fprintf(w, "#%d\t%s: %s\n", c.ID, c.AuthorUsername, sanitizer.Sanitize(c.Body))
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `usage: threadspace <command> [arguments]

session:
  login <username-or-email> <password>
  register <name> <username> <email> <password>
  logout
  whoami
  refresh

posts:
  posts [page]
  posts mine [page]
  posts category <category-id>
  post <post-id>
  post-create <title> <description> <content> [category-id]
  post-edit <post-id> <title> <description> <content> [category-id]
  post-delete <post-id>

comments:
  comments <post-id>
  comment-add <post-id> <body>
  comment-edit <post-id> <comment-id> <body>
  comment-delete <post-id> <comment-id>

other:
  categories
  mock
  help
`)
}
