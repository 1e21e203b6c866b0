// Package mockapi はThreadSpace APIのインメモリ実装を提供する。
// パッケージテストのフィクスチャ、およびオフライン開発用のmockサブコマンドから
// 使用する。本番サーバーの代替ではなく、クライアントが依存する契約
// （パス・ステータスコード・エラーボディ・ページングエンベロープ）を再現する。
package mockapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/threadspace/internal/model"
)

// presetCategories はサーバー初期化時に投入される既定カテゴリ。
var presetCategories = []model.Category{
	{ID: 1, Name: "General", Description: "Default category for general discussion."},
	{ID: 2, Name: "Announcements", Description: "Official announcements and updates."},
	{ID: 3, Name: "Questions", Description: "Ask for help or clarification."},
	{ID: 4, Name: "Guides", Description: "Tutorials, walkthroughs, and how-tos."},
	{ID: 5, Name: "Showcase", Description: "Share your work, projects, and wins."},
	{ID: 6, Name: "Feedback", Description: "Give/receive feedback and suggestions."},
	{ID: 7, Name: "Bugs", Description: "Report issues and unexpected behavior."},
	{ID: 8, Name: "Off Topic", Description: "Anything that doesn't fit elsewhere."},
	{ID: 9, Name: "Events", Description: "Meetups, deadlines, and community events."},
	{ID: 10, Name: "Resources", Description: "Links, tools, and helpful materials."},
}

type userRecord struct {
	profile  model.UserProfile
	password string
}

// Server はThreadSpace APIのインメモリ実装。
// 全状態はプロセス内に保持され、再起動で消える。
type Server struct {
	mu            sync.Mutex
	users         map[int64]*userRecord
	tokens        map[string]int64 // token -> userID
	posts         map[int64]*model.Post
	comments      map[int64][]*model.Comment // postID -> comments
	categories    []model.Category
	nextUserID    int64
	nextPostID    int64
	nextCommentID int64
}

// NewServer は既定カテゴリを投入した新しいServerを生成する。
func NewServer() *Server {
	return &Server{
		users:      make(map[int64]*userRecord),
		tokens:     make(map[string]int64),
		posts:      make(map[int64]*model.Post),
		comments:   make(map[int64][]*model.Comment),
		categories: append([]model.Category(nil), presetCategories...),
	}
}

// SeedUser はテスト・開発用にユーザーを直接登録し、プロフィールを返す。
func (s *Server) SeedUser(name, username, email, password string) model.UserProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextUserID++
	rec := &userRecord{
		profile: model.UserProfile{
			ID:       s.nextUserID,
			Username: username,
			Name:     name,
			Email:    email,
		},
		password: password,
	}
	s.users[rec.profile.ID] = rec
	return rec.profile
}

// IssueToken は指定ユーザーのトークンを直接発行する。
// ログインを経由せずに認証済み状態を作るテスト用ヘルパー。
func (s *Server) IssueToken(userID int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	token := uuid.NewString()
	s.tokens[token] = userID
	return token
}

// RevokeToken は発行済みトークンを無効化する。期限切れトークンの再現に使う。
func (s *Server) RevokeToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
}

// SeedPost はテスト・開発用に投稿を直接作成する。
func (s *Server) SeedPost(authorID int64, title, description, content string, categoryID *int64) model.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.createPostLocked(authorID, model.PostInput{
		Title:       title,
		Description: description,
		Content:     content,
		CategoryID:  categoryID,
	})
}

// Handler は全ルートを構成したchiルーターを返す。
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(recoveryMiddleware)

	r.Post("/api/auth/login", s.handleLogin)
	r.Post("/api/auth/register", s.handleRegister)

	r.Get("/api/users/me", s.handleMe)
	r.Get("/api/users/me/posts", s.handleMyPosts)

	r.Route("/api/posts", func(r chi.Router) {
		r.Get("/", s.handleListPosts)
		r.Post("/", s.handleCreatePost)
		r.Get("/category/{categoryID}", s.handlePostsByCategory)

		r.Route("/{postID}", func(r chi.Router) {
			r.Get("/", s.handleGetPost)
			r.Put("/", s.handleUpdatePost)
			r.Delete("/", s.handleDeletePost)

			r.Route("/comments", func(r chi.Router) {
				r.Get("/", s.handleListComments)
				r.Post("/", s.handleAddComment)
				r.Put("/{commentID}", s.handleUpdateComment)
				r.Delete("/{commentID}", s.handleDeleteComment)
			})
		})
	})

	r.Get("/api/v1/categories", s.handleListCategories)

	return r
}

// --- 認証 ---

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var rec *userRecord
	for _, u := range s.users {
		if u.profile.Username == req.UsernameOrEmail || u.profile.Email == req.UsernameOrEmail {
			rec = u
			break
		}
	}

	if rec == nil || rec.password != req.Password {
		writeError(w, http.StatusUnauthorized, "Bad credentials")
		return
	}

	token := uuid.NewString()
	s.tokens[token] = rec.profile.ID

	writeJSON(w, http.StatusOK, model.AuthResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		UserID:      rec.profile.ID,
		Username:    rec.profile.Username,
		Name:        rec.profile.Name,
		Email:       rec.profile.Email,
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.profile.Username == req.Username {
			writeError(w, http.StatusConflict, "Username is already exists!")
			return
		}
		if u.profile.Email == req.Email {
			writeError(w, http.StatusConflict, "Email is already exists!")
			return
		}
	}

	s.nextUserID++
	s.users[s.nextUserID] = &userRecord{
		profile: model.UserProfile{
			ID:       s.nextUserID,
			Username: req.Username,
			Name:     req.Name,
			Email:    req.Email,
		},
		password: req.Password,
	}

	// 登録の確認はプレーンテキストで返す
	w.WriteHeader(http.StatusCreated)
	w.Write([]byte("User registered successfully!"))
}

// authedUser はAuthorizationヘッダーのベアラートークンからユーザーを解決する。
func (s *Server) authedUser(r *http.Request) (*userRecord, bool) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := s.tokens[token]
	if !ok {
		return nil, false
	}
	rec, ok := s.users[userID]
	return rec, ok
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.authedUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Full authentication is required to access this resource")
		return
	}
	writeJSON(w, http.StatusOK, rec.profile)
}

// --- 投稿 ---

func (s *Server) handleMyPosts(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.authedUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Full authentication is required to access this resource")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var mine []model.Post
	for _, p := range s.posts {
		if p.AuthorID == rec.profile.ID {
			mine = append(mine, *p)
		}
	}
	writeJSON(w, http.StatusOK, paginate(mine, r))
}

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]model.Post, 0, len(s.posts))
	for _, p := range s.posts {
		all = append(all, *p)
	}
	writeJSON(w, http.StatusOK, paginate(all, r))
}

func (s *Server) handlePostsByCategory(w http.ResponseWriter, r *http.Request) {
	categoryID, err := strconv.ParseInt(chi.URLParam(r, "categoryID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid category id")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	for _, c := range s.categories {
		if c.ID == categoryID {
			found = true
			break
		}
	}
	if !found {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Category not found with id: %d", categoryID))
		return
	}

	posts := []model.Post{}
	for _, p := range s.posts {
		if p.CategoryID != nil && *p.CategoryID == categoryID {
			posts = append(posts, *p)
		}
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].ID < posts[j].ID })
	writeJSON(w, http.StatusOK, posts)
}

func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	postID, ok := parseID(w, r, "postID")
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, exists := s.posts[postID]
	if !exists {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Post not found with id: %d", postID))
		return
	}
	writeJSON(w, http.StatusOK, *p)
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.authedUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Full authentication is required to access this resource")
		return
	}

	var input model.PostInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if input.Title == "" || input.Content == "" {
		writeError(w, http.StatusBadRequest, "title and content must not be empty")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	created := s.createPostLocked(rec.profile.ID, input)
	writeJSON(w, http.StatusCreated, *created)
}

// createPostLocked は投稿を作成する。カテゴリ未指定の場合は既定カテゴリに入る。
// 呼び出し側がmuを保持していること。
func (s *Server) createPostLocked(authorID int64, input model.PostInput) *model.Post {
	s.nextPostID++
	now := time.Now().UTC().Format(time.RFC3339)

	categoryID := input.CategoryID
	if categoryID == nil {
		defaultID := s.categories[0].ID
		categoryID = &defaultID
	}

	author := s.users[authorID]
	p := &model.Post{
		ID:             s.nextPostID,
		Title:          input.Title,
		Description:    input.Description,
		Content:        input.Content,
		CreatedAt:      now,
		UpdatedAt:      now,
		AuthorID:       authorID,
		AuthorUsername: author.profile.Username,
		AuthorName:     author.profile.Name,
		CategoryID:     categoryID,
	}
	s.posts[p.ID] = p
	return p
}

func (s *Server) handleUpdatePost(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.authedUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Full authentication is required to access this resource")
		return
	}
	postID, ok := parseID(w, r, "postID")
	if !ok {
		return
	}

	var input model.PostInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if input.Title == "" || input.Content == "" {
		writeError(w, http.StatusBadRequest, "title and content must not be empty")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, exists := s.posts[postID]
	if !exists {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Post not found with id: %d", postID))
		return
	}
	if p.AuthorID != rec.profile.ID {
		writeError(w, http.StatusForbidden, "You are not allowed to modify this post")
		return
	}

	p.Title = input.Title
	p.Description = input.Description
	p.Content = input.Content
	if input.CategoryID != nil {
		p.CategoryID = input.CategoryID
	}
	p.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	writeJSON(w, http.StatusOK, *p)
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.authedUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Full authentication is required to access this resource")
		return
	}
	postID, ok := parseID(w, r, "postID")
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, exists := s.posts[postID]
	if !exists {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Post not found with id: %d", postID))
		return
	}
	if p.AuthorID != rec.profile.ID {
		writeError(w, http.StatusForbidden, "You are not allowed to modify this post")
		return
	}

	delete(s.posts, postID)
	delete(s.comments, postID)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Post entity deleted successfully."))
}

// --- コメント ---

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	postID, ok := parseID(w, r, "postID")
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.posts[postID]; !exists {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Post not found with id: %d", postID))
		return
	}

	comments := []model.Comment{}
	for _, c := range s.comments[postID] {
		comments = append(comments, *c)
	}
	writeJSON(w, http.StatusOK, comments)
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.authedUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Full authentication is required to access this resource")
		return
	}
	postID, ok := parseID(w, r, "postID")
	if !ok {
		return
	}

	var input model.CommentInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if input.Body == "" {
		writeError(w, http.StatusBadRequest, "body must not be empty")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.posts[postID]; !exists {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Post not found with id: %d", postID))
		return
	}

	s.nextCommentID++
	now := time.Now().UTC().Format(time.RFC3339)
	c := &model.Comment{
		ID:             s.nextCommentID,
		Body:           input.Body,
		CreatedAt:      now,
		UpdatedAt:      now,
		AuthorID:       rec.profile.ID,
		AuthorUsername: rec.profile.Username,
		AuthorName:     rec.profile.Name,
	}
	s.comments[postID] = append(s.comments[postID], c)
	writeJSON(w, http.StatusCreated, *c)
}

func (s *Server) handleUpdateComment(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.authedUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Full authentication is required to access this resource")
		return
	}
	postID, ok := parseID(w, r, "postID")
	if !ok {
		return
	}
	commentID, ok := parseID(w, r, "commentID")
	if !ok {
		return
	}

	var input model.CommentInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if input.Body == "" {
		writeError(w, http.StatusBadRequest, "body must not be empty")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c, status, msg := s.findCommentLocked(postID, commentID)
	if c == nil {
		writeError(w, status, msg)
		return
	}
	if c.AuthorID != rec.profile.ID {
		writeError(w, http.StatusForbidden, "You are not allowed to modify this comment")
		return
	}

	c.Body = input.Body
	c.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	writeJSON(w, http.StatusOK, *c)
}

func (s *Server) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.authedUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Full authentication is required to access this resource")
		return
	}
	postID, ok := parseID(w, r, "postID")
	if !ok {
		return
	}
	commentID, ok := parseID(w, r, "commentID")
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c, status, msg := s.findCommentLocked(postID, commentID)
	if c == nil {
		writeError(w, status, msg)
		return
	}
	if c.AuthorID != rec.profile.ID {
		writeError(w, http.StatusForbidden, "You are not allowed to modify this comment")
		return
	}

	remaining := s.comments[postID][:0]
	for _, existing := range s.comments[postID] {
		if existing.ID != commentID {
			remaining = append(remaining, existing)
		}
	}
	s.comments[postID] = remaining
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Comment deleted successfully"))
}

// findCommentLocked は投稿配下のコメントを検索する。
// 見つからない場合はHTTPステータスとメッセージを返す。
func (s *Server) findCommentLocked(postID, commentID int64) (*model.Comment, int, string) {
	if _, exists := s.posts[postID]; !exists {
		return nil, http.StatusNotFound, fmt.Sprintf("Post not found with id: %d", postID)
	}
	for _, c := range s.comments[postID] {
		if c.ID == commentID {
			return c, 0, ""
		}
	}
	return nil, http.StatusNotFound, fmt.Sprintf("Comment not found with id: %d", commentID)
}

// --- カテゴリ ---

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.categories)
}

// --- ヘルパー ---

// paginate はpageNo/pageSize/sortBy/sortDirクエリに従ってページを切り出す。
func paginate(posts []model.Post, r *http.Request) model.Page[model.Post] {
	pageNo, _ := strconv.Atoi(r.URL.Query().Get("pageNo"))
	if pageNo < 0 {
		pageNo = 0
	}
	pageSize, err := strconv.Atoi(r.URL.Query().Get("pageSize"))
	if err != nil || pageSize <= 0 {
		pageSize = 10
	}
	sortDir := r.URL.Query().Get("sortDir")

	sort.Slice(posts, func(i, j int) bool {
		if sortDir == "desc" {
			return posts[i].ID > posts[j].ID
		}
		return posts[i].ID < posts[j].ID
	})

	total := len(posts)
	totalPages := (total + pageSize - 1) / pageSize

	from := pageNo * pageSize
	if from > total {
		from = total
	}
	to := from + pageSize
	if to > total {
		to = total
	}

	return model.Page[model.Post]{
		Content:       posts[from:to],
		PageNo:        pageNo,
		PageSize:      pageSize,
		TotalElements: int64(total),
		TotalPages:    totalPages,
		Last:          pageNo >= totalPages-1,
	}
}

func parseID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s", param))
		return 0, false
	}
	return id, true
}

// recoveryMiddleware はハンドラ内のpanicでプロセスが落ちるのを防ぎ、
// 500レスポンスを返す。
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("panic recovered",
					slog.Any("panic", rec),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("stack", string(debug.Stack())),
				)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
