package team

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/68Weezky/team-todo/pkg/middleware"
)

// Server はチームAPIのハンドラ群。
type Server struct {
	// store はチームとメンバーシップのクエリ実行オブジェクト。
	store *Store
}

// NewServer は新しいチームサーバーを生成する。
func NewServer(store *Store) *Server {
	return &Server{store: store}
}

// RegisterRoutes はチームAPIのルーティングを登録する。
// apiはJWT認証ミドルウェア適用済みのルートグループであること。
func (s *Server) RegisterRoutes(api *gin.RouterGroup) {
	teams := api.Group("/teams")
	{
		// チーム作成（リーダー・管理者のみ）
		teams.POST("", s.handleCreate())
		// 表示可能なチーム一覧取得
		teams.GET("", s.handleList())
		// チーム詳細取得（メンバー一覧付き）
		teams.GET("/:team_id", s.handleGet())
		// チーム更新（リーダー・管理者のみ）
		teams.PUT("/:team_id", s.handleUpdate())
		// メンバー追加（リーダー・管理者のみ）
		teams.POST("/:team_id/members", s.handleAddMember())
		// メンバー削除（リーダー・管理者のみ）
		teams.DELETE("/:team_id/members/:member_id", s.handleRemoveMember())
	}
}

// canManage は指定ユーザーがチームを管理できるかどうかを返す。
// チームのリーダー本人または管理者のみ管理できる。
func canManage(c *gin.Context, t Team) bool {
	return t.LeaderID == middleware.GetUserID(c) || middleware.IsAdmin(c)
}

// createTeamRequest はチーム作成リクエストのJSON構造。
type createTeamRequest struct {
	// Name はチーム名（一意）。
	Name string `json:"name" binding:"required"`
	// Description はチームの説明。
	Description string `json:"description"`
}

// handleCreate はチームを作成するハンドラ。
// team_leaderまたはadminロールのユーザーのみ作成できる。
func (s *Server) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		role := middleware.GetRole(c)
		if role != "team_leader" && role != "admin" {
			c.JSON(http.StatusForbidden, gin.H{"error": "チームを作成できるのはリーダーと管理者のみです"})
			return
		}

		var req createTeamRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストが不正です"})
			return
		}

		now := time.Now().UTC()
		t := Team{
			ID:          uuid.New().String(),
			Name:        req.Name,
			Description: req.Description,
			LeaderID:    middleware.GetUserID(c),
			IsActive:    true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.store.Create(c.Request.Context(), t); err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": "同名のチームが既に存在します"})
			log.Printf("チーム作成エラー: %v", err)
			return
		}

		c.JSON(http.StatusCreated, t)
	}
}

// handleList は認証済みユーザーに表示すべきチーム一覧を返すハンドラ。
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		teams, err := s.store.ListVisible(c.Request.Context(), userID, middleware.IsAdmin(c))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "チーム一覧の取得に失敗しました"})
			log.Printf("チーム一覧取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, teams)
	}
}

// handleGet はチーム詳細とメンバー一覧を返すハンドラ。
// チームのメンバー・リーダー・管理者のみ参照できる。
func (s *Server) handleGet() gin.HandlerFunc {
	return func(c *gin.Context) {
		teamID := c.Param("team_id")
		t, err := s.store.GetByID(c.Request.Context(), teamID)
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "チームが見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "チームの取得に失敗しました"})
			log.Printf("チーム取得エラー: %v", err)
			return
		}

		userID := middleware.GetUserID(c)
		if !middleware.IsAdmin(c) {
			ok, err := s.store.HasMember(c.Request.Context(), teamID, userID)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "メンバーシップの確認に失敗しました"})
				log.Printf("メンバーシップ確認エラー: %v", err)
				return
			}
			if !ok {
				c.JSON(http.StatusForbidden, gin.H{"error": "このチームへのアクセス権がありません"})
				return
			}
		}

		members, err := s.store.ListMembers(c.Request.Context(), teamID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "メンバー一覧の取得に失敗しました"})
			log.Printf("メンバー一覧取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"team":    t,
			"members": members,
		})
	}
}

// updateTeamRequest はチーム更新リクエストのJSON構造。
type updateTeamRequest struct {
	// Name はチーム名（一意）。
	Name string `json:"name" binding:"required"`
	// Description はチームの説明。
	Description string `json:"description"`
	// IsActive はチームの有効状態。
	IsActive bool `json:"is_active"`
}

// handleUpdate はチームを更新するハンドラ。リーダー本人と管理者のみ。
func (s *Server) handleUpdate() gin.HandlerFunc {
	return func(c *gin.Context) {
		teamID := c.Param("team_id")
		t, err := s.store.GetByID(c.Request.Context(), teamID)
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "チームが見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "チームの取得に失敗しました"})
			log.Printf("チーム取得エラー: %v", err)
			return
		}

		if !canManage(c, t) {
			c.JSON(http.StatusForbidden, gin.H{"error": "チームを管理する権限がありません"})
			return
		}

		var req updateTeamRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストが不正です"})
			return
		}

		if err := s.store.Update(c.Request.Context(), teamID, req.Name, req.Description, req.IsActive); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "チームの更新に失敗しました"})
			log.Printf("チーム更新エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "チームを更新しました"})
	}
}

// addMemberRequest はメンバー追加リクエストのJSON構造。
type addMemberRequest struct {
	// UserID は追加するユーザーのID。
	UserID string `json:"user_id" binding:"required"`
}

// handleAddMember はチームにメンバーを追加するハンドラ。リーダー本人と管理者のみ。
func (s *Server) handleAddMember() gin.HandlerFunc {
	return func(c *gin.Context) {
		teamID := c.Param("team_id")
		t, err := s.store.GetByID(c.Request.Context(), teamID)
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "チームが見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "チームの取得に失敗しました"})
			log.Printf("チーム取得エラー: %v", err)
			return
		}

		if !canManage(c, t) {
			c.JSON(http.StatusForbidden, gin.H{"error": "チームを管理する権限がありません"})
			return
		}

		var req addMemberRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストが不正です"})
			return
		}

		if err := s.store.AddMember(c.Request.Context(), uuid.New().String(), teamID, req.UserID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "メンバーの追加に失敗しました"})
			log.Printf("メンバー追加エラー: %v", err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"message": "メンバーを追加しました"})
	}
}

// handleRemoveMember はチームからメンバーを外すハンドラ。リーダー本人と管理者のみ。
func (s *Server) handleRemoveMember() gin.HandlerFunc {
	return func(c *gin.Context) {
		teamID := c.Param("team_id")
		t, err := s.store.GetByID(c.Request.Context(), teamID)
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "チームが見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "チームの取得に失敗しました"})
			log.Printf("チーム取得エラー: %v", err)
			return
		}

		if !canManage(c, t) {
			c.JSON(http.StatusForbidden, gin.H{"error": "チームを管理する権限がありません"})
			return
		}

		if err := s.store.RemoveMember(c.Request.Context(), teamID, c.Param("member_id")); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "メンバーの削除に失敗しました"})
			log.Printf("メンバー削除エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "メンバーを削除しました"})
	}
}
