package notification

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/68Weezky/team-todo/pkg/middleware"
)

// Server は通知APIのハンドラ群。
type Server struct {
	// store は通知と通知設定のクエリ実行オブジェクト。
	store *Store
}

// NewServer は新しい通知サーバーを生成する。
func NewServer(store *Store) *Server {
	return &Server{store: store}
}

// RegisterRoutes は通知APIのルーティングを登録する。
// apiはJWT認証ミドルウェア適用済みのルートグループであること。
func (s *Server) RegisterRoutes(api *gin.RouterGroup) {
	notifications := api.Group("/notifications")
	{
		// 通知一覧取得（ページネーション付き）
		notifications.GET("", s.handleList())
		// 未読通知数取得
		notifications.GET("/unread-count", s.handleUnreadCount())
		// 通知設定取得
		notifications.GET("/preferences", s.handleGetPreferences())
		// 通知設定更新
		notifications.PUT("/preferences", s.handleUpdatePreferences())
		// 通知を既読にする
		notifications.PUT("/:id/read", s.handleMarkRead())
		// 全通知を既読にする
		notifications.PUT("/read-all", s.handleMarkAllRead())
	}
}

// inboxItemResponse は通知一覧1件のJSONレスポンス構造。
type inboxItemResponse struct {
	// ID は通知の一意識別子。
	ID string `json:"id"`
	// Kind は通知種別。
	Kind string `json:"kind"`
	// Message は通知メッセージ。
	Message string `json:"message"`
	// TaskID は関連タスクのID（該当なしの場合null）。
	TaskID *string `json:"task_id"`
	// TaskTitle は関連タスクのタイトル（該当なしの場合null）。
	TaskTitle *string `json:"task_title"`
	// IsRead は既読状態。
	IsRead bool `json:"is_read"`
	// CreatedAt は作成日時（RFC3339形式）。
	CreatedAt string `json:"created_at"`
}

// toInboxItemResponse はDB行をJSONレスポンスに変換する。
func toInboxItemResponse(item InboxItem) inboxItemResponse {
	return inboxItemResponse{
		ID:        item.ID,
		Kind:      string(item.Kind),
		Message:   item.Message,
		TaskID:    item.TaskID,
		TaskTitle: item.TaskTitle,
		IsRead:    item.IsRead,
		CreatedAt: item.CreatedAt.Format(time.RFC3339),
	}
}

// handleList は認証済みユーザーの通知一覧を新しい順に返すハンドラ。
// クエリパラメータ page（1始まり、省略時1）でページを指定する。
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
		if err != nil || page < 1 {
			page = 1
		}

		items, err := s.store.ListInbox(c.Request.Context(), userID, page)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知一覧の取得に失敗しました"})
			log.Printf("通知一覧取得エラー: %v", err)
			return
		}

		unread, err := s.store.UnreadCount(c.Request.Context(), userID)
		if err != nil {
			// 未読数は表示用の付加情報のため、取得失敗時は0として返す
			log.Printf("未読通知数取得エラー: %v", err)
			unread = 0
		}

		responses := make([]inboxItemResponse, 0, len(items))
		for _, item := range items {
			responses = append(responses, toInboxItemResponse(item))
		}

		c.JSON(http.StatusOK, gin.H{
			"notifications": responses,
			"page":          page,
			"unread_count":  unread,
		})
	}
}

// handleUnreadCount は認証済みユーザーの未読通知数を返すハンドラ。
func (s *Server) handleUnreadCount() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		count, err := s.store.UnreadCount(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "未読通知数の取得に失敗しました"})
			log.Printf("未読通知数取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"count": count})
	}
}

// handleMarkRead は指定された通知を既読にするハンドラ。
// 他ユーザー宛の通知を指定した場合は404を返す（存在の有無も漏らさない）。
func (s *Server) handleMarkRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		notificationID := c.Param("id")
		n, err := s.store.MarkRead(c.Request.Context(), userID, notificationID)
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "通知が見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知の既読処理に失敗しました"})
			log.Printf("通知既読処理エラー: %v", err)
			return
		}

		// 関連タスクがある場合、UI側はtask_idを使ってタスク詳細へ遷移する
		c.JSON(http.StatusOK, gin.H{
			"message": "通知を既読にしました",
			"task_id": n.TaskID,
		})
	}
}

// handleMarkAllRead は認証済みユーザーの全通知を既読にするハンドラ。
func (s *Server) handleMarkAllRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		affected, err := s.store.MarkAllRead(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "全通知の既読処理に失敗しました"})
			log.Printf("全通知既読処理エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "全通知を既読にしました",
			"count":   affected,
		})
	}
}

// preferenceRequest は通知設定更新リクエストのJSON構造。
type preferenceRequest struct {
	// EmailNotifications はメール通知のマスタースイッチ。
	EmailNotifications bool `json:"email_notifications"`
	// TaskAssigned はタスク割り当て時にメール通知するかどうか。
	TaskAssigned bool `json:"task_assigned"`
	// StatusChanged はステータス変更時にメール通知するかどうか。
	StatusChanged bool `json:"status_changed"`
	// CommentAdded はコメント追加時にメール通知するかどうか。
	CommentAdded bool `json:"comment_added"`
	// DeadlineApproaching は期限接近時にメール通知するかどうか。
	DeadlineApproaching bool `json:"deadline_approaching"`
	// TaskOverdue は期限超過時にメール通知するかどうか。
	TaskOverdue bool `json:"task_overdue"`
}

// handleGetPreferences は認証済みユーザーの通知設定を返すハンドラ。
// レコードが存在しない場合はすべて有効のデフォルト値を返す。
func (s *Server) handleGetPreferences() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		pref, err := s.store.GetPreference(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知設定の取得に失敗しました"})
			log.Printf("通知設定取得エラー: %v", err)
			return
		}
		if pref == nil {
			pref = &Preference{
				UserID:              userID,
				EmailNotifications:  true,
				TaskAssigned:        true,
				StatusChanged:       true,
				CommentAdded:        true,
				DeadlineApproaching: true,
				TaskOverdue:         true,
			}
		}

		c.JSON(http.StatusOK, pref)
	}
}

// handleUpdatePreferences は認証済みユーザーの通知設定を更新するハンドラ。
func (s *Server) handleUpdatePreferences() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		var req preferenceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストが不正です"})
			return
		}

		pref := Preference{
			UserID:              userID,
			EmailNotifications:  req.EmailNotifications,
			TaskAssigned:        req.TaskAssigned,
			StatusChanged:       req.StatusChanged,
			CommentAdded:        req.CommentAdded,
			DeadlineApproaching: req.DeadlineApproaching,
			TaskOverdue:         req.TaskOverdue,
		}
		if err := s.store.UpdatePreference(c.Request.Context(), pref); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知設定の更新に失敗しました"})
			log.Printf("通知設定更新エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "通知設定を更新しました"})
	}
}
