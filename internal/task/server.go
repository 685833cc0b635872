package task

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/68Weezky/team-todo/internal/activity"
	"github.com/68Weezky/team-todo/internal/notification"
	"github.com/68Weezky/team-todo/internal/team"
	"github.com/68Weezky/team-todo/internal/user"
	"github.com/68Weezky/team-todo/pkg/middleware"
)

// Server はタスクAPIのハンドラ群。
// タスクへの変更時に活動履歴の記録と関係者への通知を行う。
type Server struct {
	// store はタスク関連のクエリ実行オブジェクト。
	store *Store
	// teams はチームのクエリ実行オブジェクト。アクセス制御と通知メッセージに使用する。
	teams *team.Store
	// users はユーザーのクエリ実行オブジェクト。通知先の解決に使用する。
	users *user.Store
	// recorder は活動履歴の記録オブジェクト。
	recorder *activity.Recorder
	// notifier は通知の作成・送信オブジェクト。
	notifier *notification.Notifier
}

// NewServer は新しいタスクサーバーを生成する。
func NewServer(store *Store, teams *team.Store, users *user.Store, recorder *activity.Recorder, notifier *notification.Notifier) *Server {
	return &Server{
		store:    store,
		teams:    teams,
		users:    users,
		recorder: recorder,
		notifier: notifier,
	}
}

// RegisterRoutes はタスクAPIのルーティングを登録する。
// apiはJWT認証ミドルウェア適用済みのルートグループであること。
func (s *Server) RegisterRoutes(api *gin.RouterGroup) {
	teamTasks := api.Group("/teams/:team_id/tasks")
	{
		// タスク作成（チームリーダー・管理者のみ）
		teamTasks.POST("", s.handleCreate())
		// チームのタスク一覧取得
		teamTasks.GET("", s.handleListByTeam())
	}

	tasks := api.Group("/tasks")
	{
		// 自分が担当するタスク一覧取得
		tasks.GET("/my", s.handleListMine())
		// タスク詳細取得（コメント・添付・活動履歴付き）
		tasks.GET("/:task_id", s.handleGet())
		// タスク更新（作成者・管理者のみ）
		tasks.PUT("/:task_id", s.handleUpdate())
		// ステータスのみの更新（担当者・作成者・管理者のみ）
		tasks.PUT("/:task_id/status", s.handleUpdateStatus())
		// タスク削除（作成者・管理者のみ）
		tasks.DELETE("/:task_id", s.handleDelete())
		// コメント追加（チームメンバーのみ）
		tasks.POST("/:task_id/comments", s.handleAddComment())
		// 添付ファイルのメタデータ登録（チームメンバーのみ）
		tasks.POST("/:task_id/attachments", s.handleAddAttachment())
	}
}

// loadTask はタスクを取得し、呼び出しユーザーが所属チームにアクセスできるか
// 確認する。失敗時はレスポンスを書き込み、ok=falseを返す。
func (s *Server) loadTask(c *gin.Context) (Task, bool) {
	t, err := s.store.GetByID(c.Request.Context(), c.Param("task_id"))
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "タスクが見つかりません"})
		return Task{}, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "タスクの取得に失敗しました"})
		log.Printf("タスク取得エラー: %v", err)
		return Task{}, false
	}

	if !middleware.IsAdmin(c) {
		ok, err := s.teams.HasMember(c.Request.Context(), t.TeamID, middleware.GetUserID(c))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "メンバーシップの確認に失敗しました"})
			log.Printf("メンバーシップ確認エラー: %v", err)
			return Task{}, false
		}
		if !ok {
			c.JSON(http.StatusForbidden, gin.H{"error": "このタスクへのアクセス権がありません"})
			return Task{}, false
		}
	}

	return t, true
}

// canEdit はタスクの編集・削除権限を返す。作成者本人と管理者のみ。
func canEdit(c *gin.Context, t Task) bool {
	return t.CreatedBy == middleware.GetUserID(c) || middleware.IsAdmin(c)
}

// canUpdateStatus はステータス更新権限を返す。担当者・作成者・管理者のみ。
func canUpdateStatus(c *gin.Context, t Task) bool {
	userID := middleware.GetUserID(c)
	if t.AssignedTo != nil && *t.AssignedTo == userID {
		return true
	}
	return canEdit(c, t)
}

// teamName はチーム名を取得する。通知メッセージの組み立て専用で、
// 取得に失敗した場合は空文字列を返す。
func (s *Server) teamName(ctx context.Context, teamID string) string {
	t, err := s.teams.GetByID(ctx, teamID)
	if err != nil {
		log.Printf("チーム名の取得に失敗: %v", err)
		return ""
	}
	return t.Name
}

// stakeholders はタスクの担当者と作成者をexcludeIDを除いて重複なしで返す。
// ステータス変更とコメント追加の通知先の解決に使用する。
func (s *Server) stakeholders(ctx context.Context, t Task, excludeID string) []user.User {
	ids := []string{t.CreatedBy}
	if t.AssignedTo != nil {
		ids = append(ids, *t.AssignedTo)
	}

	seen := map[string]bool{excludeID: true}
	var recipients []user.User
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		u, err := s.users.GetByID(ctx, id)
		if err != nil {
			log.Printf("通知先ユーザーの取得に失敗: %v", err)
			continue
		}
		recipients = append(recipients, u)
	}
	return recipients
}

// notifyStatusChanged はステータス変更通知を関係者へ送る。
// 通知の失敗はタスク更新の成否に影響させない。
func (s *Server) notifyStatusChanged(ctx context.Context, t Task, actorID string) {
	name := s.teamName(ctx, t.TeamID)
	message := fmt.Sprintf("Status for task %q in team %q changed to %s.", t.Title, name, t.Status.DisplayLabel())
	ref := &notification.TaskRef{ID: t.ID, Title: t.Title}
	for _, u := range s.stakeholders(ctx, t, actorID) {
		recipient := notification.Recipient{ID: u.ID, Email: u.Email}
		if _, err := s.notifier.Notify(ctx, recipient, notification.KindStatusChanged, message, ref); err != nil {
			log.Printf("ステータス変更通知の作成に失敗: %v", err)
		}
	}
}

// notifyAssigned は新しい担当者へタスク割り当て通知を送る。
func (s *Server) notifyAssigned(ctx context.Context, t Task, assigneeID, actorID string) {
	if assigneeID == actorID {
		return
	}
	u, err := s.users.GetByID(ctx, assigneeID)
	if err != nil {
		log.Printf("担当者の取得に失敗: %v", err)
		return
	}

	name := s.teamName(ctx, t.TeamID)
	message := fmt.Sprintf("You have been assigned to task %q in team %q.", t.Title, name)
	recipient := notification.Recipient{ID: u.ID, Email: u.Email}
	ref := &notification.TaskRef{ID: t.ID, Title: t.Title}
	if _, err := s.notifier.Notify(ctx, recipient, notification.KindTaskAssigned, message, ref); err != nil {
		log.Printf("タスク割り当て通知の作成に失敗: %v", err)
	}
}

// createTaskRequest はタスク作成リクエストのJSON構造。
type createTaskRequest struct {
	// Title はタスクのタイトル。
	Title string `json:"title" binding:"required"`
	// Description はタスクの詳細説明。
	Description string `json:"description"`
	// AssignedTo は担当者のユーザーID。未割り当ての場合省略。
	AssignedTo *string `json:"assigned_to"`
	// Priority はタスクの優先度。省略時はmedium。
	Priority Priority `json:"priority"`
	// DueDate は期限日時。
	DueDate *time.Time `json:"due_date"`
	// Tags はカンマ区切りのタグ文字列。
	Tags string `json:"tags"`
	// IsUrgent は緊急フラグ。
	IsUrgent bool `json:"is_urgent"`
}

// handleCreate はタスクを作成するハンドラ。
// チームリーダー本人と管理者のみ作成でき、作成の活動履歴を記録する。
// 担当者が作成者以外の場合はタスク割り当て通知を送る。
func (s *Server) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		teamID := c.Param("team_id")
		tm, err := s.teams.GetActiveByID(c.Request.Context(), teamID)
		if errors.Is(err, team.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "チームが見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "チームの取得に失敗しました"})
			log.Printf("チーム取得エラー: %v", err)
			return
		}

		userID := middleware.GetUserID(c)
		if tm.LeaderID != userID && !middleware.IsAdmin(c) {
			c.JSON(http.StatusForbidden, gin.H{"error": "タスクを作成できるのはチームリーダーと管理者のみです"})
			return
		}

		var req createTaskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストが不正です"})
			return
		}
		if req.Priority == "" {
			req.Priority = PriorityMedium
		}
		if !req.Priority.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "優先度が不正です"})
			return
		}

		now := time.Now().UTC()
		t := Task{
			ID:          uuid.New().String(),
			TeamID:      teamID,
			Title:       req.Title,
			Description: req.Description,
			CreatedBy:   userID,
			AssignedTo:  req.AssignedTo,
			Priority:    req.Priority,
			Status:      StatusNotStarted,
			DueDate:     req.DueDate,
			Tags:        req.Tags,
			IsUrgent:    req.IsUrgent,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.store.Create(c.Request.Context(), t); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "タスクの作成に失敗しました"})
			log.Printf("タスク作成エラー: %v", err)
			return
		}

		description := fmt.Sprintf("Task %q created.", t.Title)
		if _, err := s.recorder.Record(c.Request.Context(), t.ID, userID, activity.KindCreated, description, "", ""); err != nil {
			log.Printf("活動履歴の記録に失敗: %v", err)
		}

		if t.AssignedTo != nil {
			s.notifyAssigned(c.Request.Context(), t, *t.AssignedTo, userID)
		}

		c.JSON(http.StatusCreated, t)
	}
}

// handleListByTeam はチームのタスク一覧を返すハンドラ。
func (s *Server) handleListByTeam() gin.HandlerFunc {
	return func(c *gin.Context) {
		teamID := c.Param("team_id")
		if !middleware.IsAdmin(c) {
			ok, err := s.teams.HasMember(c.Request.Context(), teamID, middleware.GetUserID(c))
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

		tasks, err := s.store.ListByTeam(c.Request.Context(), teamID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "タスク一覧の取得に失敗しました"})
			log.Printf("タスク一覧取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, tasks)
	}
}

// handleListMine は自分が担当するタスク一覧を返すハンドラ。
func (s *Server) handleListMine() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		tasks, err := s.store.ListAssignedTo(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "担当タスク一覧の取得に失敗しました"})
			log.Printf("担当タスク取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, tasks)
	}
}

// handleGet はタスク詳細をコメント・添付・活動履歴付きで返すハンドラ。
func (s *Server) handleGet() gin.HandlerFunc {
	return func(c *gin.Context) {
		t, ok := s.loadTask(c)
		if !ok {
			return
		}

		comments, err := s.store.ListComments(c.Request.Context(), t.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "コメント一覧の取得に失敗しました"})
			log.Printf("コメント取得エラー: %v", err)
			return
		}
		attachments, err := s.store.ListAttachments(c.Request.Context(), t.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "添付ファイル一覧の取得に失敗しました"})
			log.Printf("添付ファイル取得エラー: %v", err)
			return
		}
		activities, err := s.recorder.ListByTask(c.Request.Context(), t.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "活動履歴の取得に失敗しました"})
			log.Printf("活動履歴取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"task":        t,
			"comments":    comments,
			"attachments": attachments,
			"activities":  activities,
		})
	}
}

// updateTaskRequest はタスク更新リクエストのJSON構造。
type updateTaskRequest struct {
	// Title はタスクのタイトル。
	Title string `json:"title" binding:"required"`
	// Description はタスクの詳細説明。
	Description string `json:"description"`
	// AssignedTo は担当者のユーザーID。未割り当ての場合null。
	AssignedTo *string `json:"assigned_to"`
	// Priority はタスクの優先度。
	Priority Priority `json:"priority" binding:"required"`
	// Status はタスクの進行状態。
	Status Status `json:"status" binding:"required"`
	// DueDate は期限日時。
	DueDate *time.Time `json:"due_date"`
	// Tags はカンマ区切りのタグ文字列。
	Tags string `json:"tags"`
	// IsUrgent は緊急フラグ。
	IsUrgent bool `json:"is_urgent"`
}

// assigneeLabel は活動履歴に記録する担当者の表示名を返す。
func (s *Server) assigneeLabel(ctx context.Context, id *string) string {
	if id == nil {
		return "Unassigned"
	}
	u, err := s.users.GetByID(ctx, *id)
	if err != nil {
		log.Printf("担当者の取得に失敗: %v", err)
		return *id
	}
	return u.DisplayName()
}

// handleUpdate はタスクを更新するハンドラ。作成者本人と管理者のみ。
// ステータス・優先度・担当者の変更を個別の活動履歴として記録し、
// ステータスがレビュー・完了へ変わった場合は関係者へ通知、
// 担当者が変わった場合は新しい担当者へ通知を送る。
func (s *Server) handleUpdate() gin.HandlerFunc {
	return func(c *gin.Context) {
		t, ok := s.loadTask(c)
		if !ok {
			return
		}
		if !canEdit(c, t) {
			c.JSON(http.StatusForbidden, gin.H{"error": "タスクを編集する権限がありません"})
			return
		}

		var req updateTaskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストが不正です"})
			return
		}
		if !req.Status.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ステータスが不正です"})
			return
		}
		if !req.Priority.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "優先度が不正です"})
			return
		}

		ctx := c.Request.Context()
		userID := middleware.GetUserID(c)

		statusChanged := req.Status != t.Status
		priorityChanged := req.Priority != t.Priority
		assigneeChanged := !equalAssignee(req.AssignedTo, t.AssignedTo)
		detailsChanged := req.Title != t.Title || req.Description != t.Description ||
			req.Tags != t.Tags || req.IsUrgent != t.IsUrgent || !equalDueDate(req.DueDate, t.DueDate)

		updated := t
		updated.Title = req.Title
		updated.Description = req.Description
		updated.AssignedTo = req.AssignedTo
		updated.Priority = req.Priority
		updated.Status = req.Status
		updated.DueDate = req.DueDate
		updated.Tags = req.Tags
		updated.IsUrgent = req.IsUrgent

		if err := s.store.Update(ctx, updated); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "タスクの更新に失敗しました"})
			log.Printf("タスク更新エラー: %v", err)
			return
		}

		if statusChanged {
			oldLabel := t.Status.DisplayLabel()
			newLabel := updated.Status.DisplayLabel()
			description := fmt.Sprintf("Status changed from %s to %s.", oldLabel, newLabel)
			if _, err := s.recorder.Record(ctx, t.ID, userID, activity.KindStatusChanged, description, oldLabel, newLabel); err != nil {
				log.Printf("活動履歴の記録に失敗: %v", err)
			}
			// レビュー・完了への変更のみ関係者へ通知する
			if updated.Status == StatusReview || updated.Status == StatusCompleted {
				s.notifyStatusChanged(ctx, updated, userID)
			}
		}
		if priorityChanged {
			oldLabel := t.Priority.DisplayLabel()
			newLabel := updated.Priority.DisplayLabel()
			description := fmt.Sprintf("Priority changed from %s to %s.", oldLabel, newLabel)
			if _, err := s.recorder.Record(ctx, t.ID, userID, activity.KindPriorityChanged, description, oldLabel, newLabel); err != nil {
				log.Printf("活動履歴の記録に失敗: %v", err)
			}
		}
		if assigneeChanged {
			oldLabel := s.assigneeLabel(ctx, t.AssignedTo)
			newLabel := s.assigneeLabel(ctx, updated.AssignedTo)
			description := fmt.Sprintf("Assignee changed from %s to %s.", oldLabel, newLabel)
			if _, err := s.recorder.Record(ctx, t.ID, userID, activity.KindAssigned, description, oldLabel, newLabel); err != nil {
				log.Printf("活動履歴の記録に失敗: %v", err)
			}
			if updated.AssignedTo != nil {
				s.notifyAssigned(ctx, updated, *updated.AssignedTo, userID)
			}
		}
		if detailsChanged && !statusChanged && !priorityChanged && !assigneeChanged {
			if _, err := s.recorder.Record(ctx, t.ID, userID, activity.KindEdited, "Task details updated.", "", ""); err != nil {
				log.Printf("活動履歴の記録に失敗: %v", err)
			}
		}

		c.JSON(http.StatusOK, updated)
	}
}

// updateStatusRequest はステータス更新リクエストのJSON構造。
type updateStatusRequest struct {
	// Status は変更後の進行状態。
	Status Status `json:"status" binding:"required"`
}

// handleUpdateStatus はステータスのみを更新するハンドラ。
// 担当者・作成者・管理者のみ。活動履歴と通知は通常の更新と同じ扱い。
func (s *Server) handleUpdateStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		t, ok := s.loadTask(c)
		if !ok {
			return
		}
		if !canUpdateStatus(c, t) {
			c.JSON(http.StatusForbidden, gin.H{"error": "ステータスを更新する権限がありません"})
			return
		}

		var req updateStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストが不正です"})
			return
		}
		if !req.Status.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ステータスが不正です"})
			return
		}

		ctx := c.Request.Context()
		userID := middleware.GetUserID(c)

		if req.Status == t.Status {
			c.JSON(http.StatusOK, t)
			return
		}

		if err := s.store.UpdateStatus(ctx, t.ID, req.Status); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ステータスの更新に失敗しました"})
			log.Printf("ステータス更新エラー: %v", err)
			return
		}

		oldLabel := t.Status.DisplayLabel()
		newLabel := req.Status.DisplayLabel()
		description := fmt.Sprintf("Status changed from %s to %s.", oldLabel, newLabel)
		if _, err := s.recorder.Record(ctx, t.ID, userID, activity.KindStatusChanged, description, oldLabel, newLabel); err != nil {
			log.Printf("活動履歴の記録に失敗: %v", err)
		}

		updated := t
		updated.Status = req.Status
		if updated.Status == StatusReview || updated.Status == StatusCompleted {
			s.notifyStatusChanged(ctx, updated, userID)
		}

		c.JSON(http.StatusOK, updated)
	}
}

// handleDelete はタスクを削除するハンドラ。作成者本人と管理者のみ。
// 関連するコメント・添付・活動履歴・通知も連鎖削除される。
func (s *Server) handleDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		t, ok := s.loadTask(c)
		if !ok {
			return
		}
		if !canEdit(c, t) {
			c.JSON(http.StatusForbidden, gin.H{"error": "タスクを削除する権限がありません"})
			return
		}

		if err := s.store.Delete(c.Request.Context(), t.ID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "タスクの削除に失敗しました"})
			log.Printf("タスク削除エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "タスクを削除しました"})
	}
}

// addCommentRequest はコメント追加リクエストのJSON構造。
type addCommentRequest struct {
	// Comment はコメント本文。
	Comment string `json:"comment" binding:"required"`
}

// handleAddComment はタスクにコメントを追加するハンドラ。
// チームメンバーのみ。活動履歴を記録し、コメントした本人を除く
// 担当者と作成者へ通知を送る。
func (s *Server) handleAddComment() gin.HandlerFunc {
	return func(c *gin.Context) {
		t, ok := s.loadTask(c)
		if !ok {
			return
		}

		var req addCommentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストが不正です"})
			return
		}

		ctx := c.Request.Context()
		userID := middleware.GetUserID(c)

		comment := Comment{
			ID:        uuid.New().String(),
			TaskID:    t.ID,
			UserID:    userID,
			Comment:   req.Comment,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.store.AddComment(ctx, comment); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "コメントの追加に失敗しました"})
			log.Printf("コメント追加エラー: %v", err)
			return
		}

		if _, err := s.recorder.Record(ctx, t.ID, userID, activity.KindCommented, "New comment added to task.", "", req.Comment); err != nil {
			log.Printf("活動履歴の記録に失敗: %v", err)
		}

		actor, err := s.users.GetByID(ctx, userID)
		if err != nil {
			log.Printf("コメント投稿者の取得に失敗: %v", err)
		} else {
			name := s.teamName(ctx, t.TeamID)
			message := fmt.Sprintf("%s commented on task %q in team %q.", actor.DisplayName(), t.Title, name)
			ref := &notification.TaskRef{ID: t.ID, Title: t.Title}
			for _, u := range s.stakeholders(ctx, t, userID) {
				recipient := notification.Recipient{ID: u.ID, Email: u.Email}
				if _, err := s.notifier.Notify(ctx, recipient, notification.KindCommentAdded, message, ref); err != nil {
					log.Printf("コメント通知の作成に失敗: %v", err)
				}
			}
		}

		c.JSON(http.StatusCreated, comment)
	}
}

// addAttachmentRequest は添付ファイル登録リクエストのJSON構造。
// ファイル本体は扱わず、メタデータのみ登録する。
type addAttachmentRequest struct {
	// FileName は添付ファイル名。
	FileName string `json:"file_name" binding:"required"`
}

// handleAddAttachment は添付ファイルのメタデータを登録するハンドラ。
// チームメンバーのみ。活動履歴を記録する。通知は送らない。
func (s *Server) handleAddAttachment() gin.HandlerFunc {
	return func(c *gin.Context) {
		t, ok := s.loadTask(c)
		if !ok {
			return
		}

		var req addAttachmentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストが不正です"})
			return
		}

		ctx := c.Request.Context()
		userID := middleware.GetUserID(c)

		attachment := Attachment{
			ID:         uuid.New().String(),
			TaskID:     t.ID,
			FileName:   req.FileName,
			UploadedBy: userID,
			UploadedAt: time.Now().UTC(),
		}
		if err := s.store.AddAttachment(ctx, attachment); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "添付ファイルの登録に失敗しました"})
			log.Printf("添付ファイル登録エラー: %v", err)
			return
		}

		description := fmt.Sprintf("Attachment %q uploaded.", req.FileName)
		if _, err := s.recorder.Record(ctx, t.ID, userID, activity.KindAttachmentAdded, description, "", req.FileName); err != nil {
			log.Printf("活動履歴の記録に失敗: %v", err)
		}

		c.JSON(http.StatusCreated, attachment)
	}
}

// equalAssignee は担当者IDポインタ同士の等価比較を行う。
func equalAssignee(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// equalDueDate は期限日時ポインタ同士の等価比較を行う。
func equalDueDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
