package user

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/68Weezky/team-todo/internal/notification"
	"github.com/68Weezky/team-todo/pkg/middleware"
)

// Server はユーザーAPIのハンドラ群。
type Server struct {
	// store はユーザーのクエリ実行オブジェクト。
	store *Store
	// prefStore は通知設定のクエリ実行オブジェクト。
	// ユーザー作成直後に通知設定レコードを明示的に作成するために使用する。
	prefStore *notification.Store
	// jwtSecret はJWT署名用の秘密鍵。
	jwtSecret string
}

// NewServer は新しいユーザーサーバーを生成する。
func NewServer(store *Store, prefStore *notification.Store, jwtSecret string) *Server {
	return &Server{store: store, prefStore: prefStore, jwtSecret: jwtSecret}
}

// RegisterAuthRoutes は認証不要のルーティング（登録・ログイン）を登録する。
func (s *Server) RegisterAuthRoutes(r *gin.RouterGroup) {
	auth := r.Group("/auth")
	{
		// ユーザー登録
		auth.POST("/register", s.handleRegister())
		// ログイン（JWT発行）
		auth.POST("/login", s.handleLogin())
	}
}

// RegisterRoutes は認証必須のルーティングを登録する。
// apiはJWT認証ミドルウェア適用済みのルートグループであること。
func (s *Server) RegisterRoutes(api *gin.RouterGroup) {
	// 自分のプロフィール取得
	api.GET("/me", s.handleGetCurrentUser())
	// 自分のプロフィール更新
	api.PUT("/me", s.handleUpdateProfile())
	// ユーザー一覧取得（チームメンバー選択用）
	api.GET("/users", s.handleListUsers())
}

// registerRequest はユーザー登録リクエストのJSON構造。
type registerRequest struct {
	// Username はログイン用ユーザー名。
	Username string `json:"username" binding:"required"`
	// Email はメールアドレス。
	Email string `json:"email" binding:"required,email"`
	// Password はパスワード（8文字以上）。
	Password string `json:"password" binding:"required,min=8"`
	// FirstName は名。
	FirstName string `json:"first_name"`
	// LastName は姓。
	LastName string `json:"last_name"`
	// Role はロール。省略時はteam_member。adminは指定不可。
	Role string `json:"role"`
}

// handleRegister はユーザーを登録しJWTトークンを発行するハンドラ。
// 登録成功後、通知設定レコードを明示的に作成する。
func (s *Server) handleRegister() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストが不正です"})
			return
		}

		role := Role(req.Role)
		if req.Role == "" {
			role = RoleTeamMember
		}
		// 管理者ロールは自己登録できない
		if !role.Valid() || role == RoleAdmin {
			c.JSON(http.StatusBadRequest, gin.H{"error": "指定できないロールです"})
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "パスワードの処理に失敗しました"})
			log.Printf("パスワードハッシュ化エラー: %v", err)
			return
		}

		now := time.Now().UTC()
		u := User{
			ID:           uuid.New().String(),
			Username:     req.Username,
			Email:        req.Email,
			PasswordHash: string(hash),
			FirstName:    req.FirstName,
			LastName:     req.LastName,
			Role:         role,
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.store.Create(c.Request.Context(), u); err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": "ユーザー名またはメールアドレスが既に使用されています"})
			log.Printf("ユーザー作成エラー: %v", err)
			return
		}

		// 通知設定をユーザー作成の明示的な後処理として作成する
		if err := s.prefStore.EnsurePreference(c.Request.Context(), u.ID); err != nil {
			// 設定がなくても通知はフェイルクローズで動作するため登録自体は成功させる
			log.Printf("通知設定の作成に失敗: %v", err)
		}

		token, err := middleware.GenerateJWT(s.jwtSecret, u.ID, u.Email, string(u.Role))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トークン生成に失敗しました"})
			log.Printf("JWT生成エラー: %v", err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"token": token,
			"user":  u,
		})
	}
}

// loginRequest はログインリクエストのJSON構造。
type loginRequest struct {
	// Username はログイン用ユーザー名。
	Username string `json:"username" binding:"required"`
	// Password はパスワード。
	Password string `json:"password" binding:"required"`
}

// handleLogin はユーザー名とパスワードを検証しJWTトークンを発行するハンドラ。
func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストが不正です"})
			return
		}

		u, err := s.store.GetByUsername(c.Request.Context(), req.Username)
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザー名またはパスワードが正しくありません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ログイン処理に失敗しました"})
			log.Printf("ユーザー取得エラー: %v", err)
			return
		}

		if !u.IsActive {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "アカウントが無効化されています"})
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザー名またはパスワードが正しくありません"})
			return
		}

		token, err := middleware.GenerateJWT(s.jwtSecret, u.ID, u.Email, string(u.Role))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トークン生成に失敗しました"})
			log.Printf("JWT生成エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token": token,
			"user":  u,
		})
	}
}

// handleGetCurrentUser は認証済みユーザー自身のプロフィールを返すハンドラ。
func (s *Server) handleGetCurrentUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		u, err := s.store.GetByID(c.Request.Context(), userID)
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "ユーザーが見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザーの取得に失敗しました"})
			log.Printf("ユーザー取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, u)
	}
}

// updateProfileRequest はプロフィール更新リクエストのJSON構造。
type updateProfileRequest struct {
	// FirstName は名。
	FirstName string `json:"first_name"`
	// LastName は姓。
	LastName string `json:"last_name"`
	// Bio は自己紹介。
	Bio string `json:"bio"`
	// Phone は電話番号。
	Phone string `json:"phone"`
}

// handleUpdateProfile は認証済みユーザー自身のプロフィールを更新するハンドラ。
func (s *Server) handleUpdateProfile() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		var req updateProfileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストが不正です"})
			return
		}

		err := s.store.UpdateProfile(c.Request.Context(), userID, req.FirstName, req.LastName, req.Bio, req.Phone)
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "ユーザーが見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "プロフィールの更新に失敗しました"})
			log.Printf("プロフィール更新エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "プロフィールを更新しました"})
	}
}

// handleListUsers は有効なユーザーの一覧を返すハンドラ。
// クエリパラメータ role でロールを絞り込める（チームメンバー選択用）。
func (s *Server) handleListUsers() gin.HandlerFunc {
	return func(c *gin.Context) {
		role := Role(c.Query("role"))
		if role != "" && !role.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "未定義のロールです"})
			return
		}

		users, err := s.store.List(c.Request.Context(), role)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザー一覧の取得に失敗しました"})
			log.Printf("ユーザー一覧取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, users)
	}
}
