package notification

import "time"

// Kind は通知種別を表す列挙型。
type Kind string

const (
	// KindTaskAssigned はタスク割り当て通知。
	KindTaskAssigned Kind = "task_assigned"
	// KindStatusChanged はステータス変更通知。
	KindStatusChanged Kind = "status_changed"
	// KindCommentAdded はコメント追加通知。
	KindCommentAdded Kind = "comment_added"
	// KindDeadlineApproaching は期限接近通知（24時間以内）。
	KindDeadlineApproaching Kind = "deadline_approaching"
	// KindTaskOverdue は期限超過通知。
	KindTaskOverdue Kind = "task_overdue"
)

// kindLabels は通知種別の表示ラベル。メール件名に使用する。
var kindLabels = map[Kind]string{
	KindTaskAssigned:        "Task Assigned",
	KindStatusChanged:       "Status Changed",
	KindCommentAdded:        "Comment Added",
	KindDeadlineApproaching: "Deadline Approaching",
	KindTaskOverdue:         "Task Overdue",
}

// DisplayLabel は通知種別の表示ラベルを返す。未知の種別は空文字列を返す。
func (k Kind) DisplayLabel() string {
	return kindLabels[k]
}

// Valid は定義済みの通知種別かどうかを返す。
func (k Kind) Valid() bool {
	_, ok := kindLabels[k]
	return ok
}

// Notification はアプリ内通知のレコード。
// is_read以外は作成後に変更されない。
type Notification struct {
	// ID は通知の一意識別子。
	ID string `db:"id" json:"id"`
	// RecipientID は通知先のユーザーID。
	RecipientID string `db:"recipient_id" json:"recipient_id"`
	// Kind は通知種別。
	Kind Kind `db:"kind" json:"kind"`
	// Message は通知メッセージ。
	Message string `db:"message" json:"message"`
	// TaskID は関連タスクのID。該当なしの場合nil。
	TaskID *string `db:"task_id" json:"task_id"`
	// IsRead は既読状態。
	IsRead bool `db:"is_read" json:"is_read"`
	// CreatedAt は作成日時。
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// InboxItem は通知一覧の1件。関連タスクのタイトルをLEFT JOINで付加する。
type InboxItem struct {
	Notification
	// TaskTitle は関連タスクのタイトル。タスクがない場合nil。
	TaskTitle *string `db:"task_title" json:"task_title"`
}

// Preference はユーザーごとの通知設定。ユーザーと1:1で対応する。
// レコードが存在しない場合、すべての種別について「メールを送らない」として扱う。
type Preference struct {
	// UserID は設定の持ち主のユーザーID。
	UserID string `db:"user_id" json:"user_id"`
	// EmailNotifications はメール通知のマスタースイッチ。
	EmailNotifications bool `db:"email_notifications" json:"email_notifications"`
	// TaskAssigned はタスク割り当て時にメール通知するかどうか。
	TaskAssigned bool `db:"task_assigned" json:"task_assigned"`
	// StatusChanged はステータス変更時にメール通知するかどうか。
	StatusChanged bool `db:"status_changed" json:"status_changed"`
	// CommentAdded はコメント追加時にメール通知するかどうか。
	CommentAdded bool `db:"comment_added" json:"comment_added"`
	// DeadlineApproaching は期限接近時にメール通知するかどうか。
	DeadlineApproaching bool `db:"deadline_approaching" json:"deadline_approaching"`
	// TaskOverdue は期限超過時にメール通知するかどうか。
	TaskOverdue bool `db:"task_overdue" json:"task_overdue"`
	// CreatedAt は作成日時。
	CreatedAt time.Time `db:"created_at" json:"-"`
	// UpdatedAt は更新日時。
	UpdatedAt time.Time `db:"updated_at" json:"-"`
}

// Recipient は通知先のユーザー。
type Recipient struct {
	// ID は通知先ユーザーの一意識別子。
	ID string
	// Email は通知先のメールアドレス。
	Email string
}

// TaskRef は通知に紐付ける関連タスク。
type TaskRef struct {
	// ID はタスクの一意識別子。
	ID string
	// Title はタスクのタイトル。メール本文に含める。
	Title string
}
