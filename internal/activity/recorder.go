package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Kind は活動種別を表す列挙型。
type Kind string

const (
	// KindCreated はタスク作成。
	KindCreated Kind = "created"
	// KindStatusChanged はステータス変更。
	KindStatusChanged Kind = "status_changed"
	// KindPriorityChanged は優先度変更。
	KindPriorityChanged Kind = "priority_changed"
	// KindAssigned は担当者変更。
	KindAssigned Kind = "assigned"
	// KindCommented はコメント追加。
	KindCommented Kind = "commented"
	// KindAttachmentAdded は添付ファイル追加。
	KindAttachmentAdded Kind = "attachment_added"
	// KindEdited はタスク編集。
	KindEdited Kind = "edited"
	// KindDeleted はタスク削除。
	KindDeleted Kind = "deleted"
)

// validKinds は定義済みの活動種別。
var validKinds = map[Kind]struct{}{
	KindCreated:         {},
	KindStatusChanged:   {},
	KindPriorityChanged: {},
	KindAssigned:        {},
	KindCommented:       {},
	KindAttachmentAdded: {},
	KindEdited:          {},
	KindDeleted:         {},
}

// Valid は定義済みの活動種別かどうかを返す。
func (k Kind) Valid() bool {
	_, ok := validKinds[k]
	return ok
}

// Activity はタスクの活動履歴レコード。作成後は一切変更されない。
type Activity struct {
	// ID は活動履歴の一意識別子。
	ID string `db:"id" json:"id"`
	// TaskID は対象タスクのID。
	TaskID string `db:"task_id" json:"task_id"`
	// UserID は操作を行ったユーザーのID。
	UserID string `db:"user_id" json:"user_id"`
	// Kind は活動種別。
	Kind Kind `db:"kind" json:"kind"`
	// Description は変更内容の説明。
	Description string `db:"description" json:"description"`
	// OldValue は変更前の値。表示用の不透明な文字列（変更系のみ）。
	OldValue string `db:"old_value" json:"old_value"`
	// NewValue は変更後の値。表示用の不透明な文字列（変更系のみ）。
	NewValue string `db:"new_value" json:"new_value"`
	// CreatedAt は記録日時。
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Recorder はタスク活動履歴の記録と参照を行う。
type Recorder struct {
	// db はSQLiteデータベース接続。
	db *sqlx.DB
}

// NewRecorder は新しいRecorderを生成する。
func NewRecorder(db *sqlx.DB) *Recorder {
	return &Recorder{db: db}
}

// Record は活動履歴レコードを1件追記する。
//
// old/newの値は表示用の不透明な文字列として扱い、数値や日時であっても
// 型付けはしない。直前の同種レコードとのマージも行わない。
// ストレージエラーは呼び出し元へそのまま伝播する。
func (r *Recorder) Record(ctx context.Context, taskID, userID string, kind Kind, description, oldValue, newValue string) (Activity, error) {
	if !kind.Valid() {
		return Activity{}, fmt.Errorf("未定義の活動種別: %q", kind)
	}

	a := Activity{
		ID:          uuid.New().String(),
		TaskID:      taskID,
		UserID:      userID,
		Kind:        kind,
		Description: description,
		OldValue:    oldValue,
		NewValue:    newValue,
		CreatedAt:   time.Now().UTC(),
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO task_activities (id, task_id, user_id, kind, description, old_value, new_value, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.TaskID, a.UserID, a.Kind, a.Description, a.OldValue, a.NewValue, a.CreatedAt,
	)
	if err != nil {
		return Activity{}, fmt.Errorf("活動履歴の記録に失敗: %w", err)
	}
	return a, nil
}

// ListByTask は指定タスクの活動履歴を新しい順に返す。
func (r *Recorder) ListByTask(ctx context.Context, taskID string) ([]Activity, error) {
	activities := []Activity{}
	err := r.db.SelectContext(ctx, &activities, `
		SELECT id, task_id, user_id, kind, description, old_value, new_value, created_at
		FROM task_activities
		WHERE task_id = ?
		ORDER BY created_at DESC, id DESC`,
		taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("活動履歴の取得に失敗: %w", err)
	}
	return activities, nil
}
