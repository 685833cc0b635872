package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound はタスクが存在しない場合のエラー。
var ErrNotFound = errors.New("タスクが見つかりません")

// Store はタスク関連のクエリ実行オブジェクト。
type Store struct {
	// db はSQLiteデータベース接続。
	db *sqlx.DB
}

// NewStore は新しいタスクストアを生成する。
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Create はタスクを1件登録する。
func (s *Store) Create(ctx context.Context, t Task) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, team_id, title, description, created_by, assigned_to,
		                   priority, status, due_date, tags, is_urgent, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.TeamID, t.Title, t.Description, t.CreatedBy, t.AssignedTo,
		t.Priority, t.Status, t.DueDate, t.Tags, t.IsUrgent, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("タスクの登録に失敗: %w", err)
	}
	return nil
}

// GetByID は指定IDのタスクを取得する。存在しない場合ErrNotFoundを返す。
func (s *Store) GetByID(ctx context.Context, id string) (Task, error) {
	var t Task
	err := s.db.GetContext(ctx, &t, `SELECT * FROM tasks WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	if err != nil {
		return Task{}, fmt.Errorf("タスクの取得に失敗: %w", err)
	}
	return t, nil
}

// ListByTeam は指定チームのタスク一覧を新しい順に返す。
func (s *Store) ListByTeam(ctx context.Context, teamID string) ([]Task, error) {
	tasks := []Task{}
	err := s.db.SelectContext(ctx, &tasks, `
		SELECT * FROM tasks
		WHERE team_id = ?
		ORDER BY created_at DESC, id DESC`, teamID)
	if err != nil {
		return nil, fmt.Errorf("タスク一覧の取得に失敗: %w", err)
	}
	return tasks, nil
}

// ListAssignedTo は指定ユーザーが担当するタスク一覧を期限の近い順に返す。
// 期限未設定のタスクは末尾に並ぶ。
func (s *Store) ListAssignedTo(ctx context.Context, userID string) ([]Task, error) {
	tasks := []Task{}
	err := s.db.SelectContext(ctx, &tasks, `
		SELECT * FROM tasks
		WHERE assigned_to = ?
		ORDER BY due_date IS NULL, due_date ASC, created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("担当タスク一覧の取得に失敗: %w", err)
	}
	return tasks, nil
}

// Update はタスクの編集可能フィールドを更新する。存在しない場合ErrNotFoundを返す。
func (s *Store) Update(ctx context.Context, t Task) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET title = ?, description = ?, assigned_to = ?, priority = ?, status = ?,
		    due_date = ?, tags = ?, is_urgent = ?, updated_at = ?
		WHERE id = ?`,
		t.Title, t.Description, t.AssignedTo, t.Priority, t.Status,
		t.DueDate, t.Tags, t.IsUrgent, time.Now().UTC(), t.ID,
	)
	if err != nil {
		return fmt.Errorf("タスクの更新に失敗: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の確認に失敗: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStatus はタスクのステータスのみを更新する。存在しない場合ErrNotFoundを返す。
func (s *Store) UpdateStatus(ctx context.Context, id string, status Status) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("ステータスの更新に失敗: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の確認に失敗: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete はタスクを物理削除する。コメント・添付・活動履歴・通知は
// 外部キーのCASCADEで連鎖削除される。存在しない場合ErrNotFoundを返す。
func (s *Store) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("タスクの削除に失敗: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除結果の確認に失敗: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// AddComment はタスクにコメントを1件追加する。
func (s *Store) AddComment(ctx context.Context, c Comment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO task_comments (id, task_id, user_id, comment, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.TaskID, c.UserID, c.Comment, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("コメントの登録に失敗: %w", err)
	}
	return nil
}

// ListComments は指定タスクのコメント一覧を古い順に返す。
func (s *Store) ListComments(ctx context.Context, taskID string) ([]Comment, error) {
	comments := []Comment{}
	err := s.db.SelectContext(ctx, &comments, `
		SELECT * FROM task_comments
		WHERE task_id = ?
		ORDER BY created_at ASC, id ASC`, taskID)
	if err != nil {
		return nil, fmt.Errorf("コメント一覧の取得に失敗: %w", err)
	}
	return comments, nil
}

// AddAttachment は添付ファイルのメタデータを1件登録する。
func (s *Store) AddAttachment(ctx context.Context, a Attachment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO task_attachments (id, task_id, file_name, uploaded_by, uploaded_at)
		VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.TaskID, a.FileName, a.UploadedBy, a.UploadedAt,
	)
	if err != nil {
		return fmt.Errorf("添付ファイルの登録に失敗: %w", err)
	}
	return nil
}

// ListAttachments は指定タスクの添付ファイル一覧を新しい順に返す。
func (s *Store) ListAttachments(ctx context.Context, taskID string) ([]Attachment, error) {
	attachments := []Attachment{}
	err := s.db.SelectContext(ctx, &attachments, `
		SELECT * FROM task_attachments
		WHERE task_id = ?
		ORDER BY uploaded_at DESC, id DESC`, taskID)
	if err != nil {
		return nil, fmt.Errorf("添付ファイル一覧の取得に失敗: %w", err)
	}
	return attachments, nil
}
