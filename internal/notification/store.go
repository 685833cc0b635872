package notification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound は対象の通知が存在しないか、リクエストユーザーの所有物でないことを表す。
var ErrNotFound = errors.New("通知が見つかりません")

// pageSize は通知一覧の1ページあたりの件数。
const pageSize = 20

// Store は通知と通知設定のクエリ実行オブジェクト。
type Store struct {
	// db はSQLiteデータベース接続。
	db *sqlx.DB
}

// NewStore は新しいStoreを生成する。
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// create は通知レコードを1件挿入する。重複排除は行わない。
func (s *Store) create(ctx context.Context, n Notification) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, recipient_id, kind, message, task_id, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, 0, ?)`,
		n.ID, n.RecipientID, n.Kind, n.Message, n.TaskID, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("通知の作成に失敗: %w", err)
	}
	return nil
}

// ListInbox は指定ユーザーの通知を新しい順に1ページ分返す。
// 表示用に関連タスクのタイトルをLEFT JOINで付加する。pageは1始まり。
func (s *Store) ListInbox(ctx context.Context, userID string, page int) ([]InboxItem, error) {
	if page < 1 {
		page = 1
	}

	items := []InboxItem{}
	err := s.db.SelectContext(ctx, &items, `
		SELECT n.id, n.recipient_id, n.kind, n.message, n.task_id, n.is_read, n.created_at,
		       t.title AS task_title
		FROM notifications n
		LEFT JOIN tasks t ON t.id = n.task_id
		WHERE n.recipient_id = ?
		ORDER BY n.created_at DESC, n.id DESC
		LIMIT ? OFFSET ?`,
		userID, pageSize, (page-1)*pageSize,
	)
	if err != nil {
		return nil, fmt.Errorf("通知一覧の取得に失敗: %w", err)
	}
	return items, nil
}

// UnreadCount は指定ユーザーの未読通知数を返す。
func (s *Store) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM notifications WHERE recipient_id = ? AND is_read = 0", userID)
	if err != nil {
		return 0, fmt.Errorf("未読通知数の取得に失敗: %w", err)
	}
	return count, nil
}

// MarkRead は指定通知を既読にして返す。
// 通知が存在しない、またはリクエストユーザーの所有物でない場合はErrNotFoundを返す。
func (s *Store) MarkRead(ctx context.Context, userID, notificationID string) (Notification, error) {
	result, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET is_read = 1 WHERE id = ? AND recipient_id = ?",
		notificationID, userID)
	if err != nil {
		return Notification{}, fmt.Errorf("通知の既読処理に失敗: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return Notification{}, fmt.Errorf("更新件数の取得に失敗: %w", err)
	}
	if affected == 0 {
		return Notification{}, ErrNotFound
	}

	var n Notification
	err = s.db.GetContext(ctx, &n,
		"SELECT id, recipient_id, kind, message, task_id, is_read, created_at FROM notifications WHERE id = ?",
		notificationID)
	if err != nil {
		return Notification{}, fmt.Errorf("通知の取得に失敗: %w", err)
	}
	return n, nil
}

// MarkAllRead は指定ユーザーの全未読通知を既読にし、更新件数を返す。
// 条件付き一括更新のため再実行しても安全（冪等）。
func (s *Store) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET is_read = 1 WHERE recipient_id = ? AND is_read = 0", userID)
	if err != nil {
		return 0, fmt.Errorf("全通知の既読処理に失敗: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("更新件数の取得に失敗: %w", err)
	}
	return affected, nil
}

// GetPreference は指定ユーザーの通知設定を返す。
// レコードが存在しない場合はエラーではなく(nil, nil)を返す。
// 呼び出し側はnilを「メールを送らない」として扱う。
func (s *Store) GetPreference(ctx context.Context, userID string) (*Preference, error) {
	var pref Preference
	err := s.db.GetContext(ctx, &pref,
		"SELECT * FROM notification_preferences WHERE user_id = ?", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("通知設定の取得に失敗: %w", err)
	}
	return &pref, nil
}

// EnsurePreference は指定ユーザーの通知設定レコードを存在しなければ作成する。
// ユーザー作成直後に呼び出すこと。既に存在する場合は何もしない。
func (s *Store) EnsurePreference(ctx context.Context, userID string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notification_preferences (user_id, created_at, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO NOTHING`,
		userID, now, now,
	)
	if err != nil {
		return fmt.Errorf("通知設定の作成に失敗: %w", err)
	}
	return nil
}

// UpdatePreference は指定ユーザーの通知設定を更新する。
// レコードが存在しない場合は作成する。
func (s *Store) UpdatePreference(ctx context.Context, pref Preference) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notification_preferences (
			user_id, email_notifications, task_assigned, status_changed,
			comment_added, deadline_approaching, task_overdue, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			email_notifications = excluded.email_notifications,
			task_assigned = excluded.task_assigned,
			status_changed = excluded.status_changed,
			comment_added = excluded.comment_added,
			deadline_approaching = excluded.deadline_approaching,
			task_overdue = excluded.task_overdue,
			updated_at = excluded.updated_at`,
		pref.UserID, pref.EmailNotifications, pref.TaskAssigned, pref.StatusChanged,
		pref.CommentAdded, pref.DeadlineApproaching, pref.TaskOverdue, now, now,
	)
	if err != nil {
		return fmt.Errorf("通知設定の更新に失敗: %w", err)
	}
	return nil
}
