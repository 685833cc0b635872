// Package task はタスクのCRUDとコメント・添付ファイルのAPIを提供する。
// タスクへの変更はすべて活動履歴(internal/activity)に記録され、
// 関係者への通知(internal/notification)を発生させる。
package task

import "time"

// Status はタスクの進行状態を表す列挙型。
type Status string

const (
	// StatusNotStarted は未着手。
	StatusNotStarted Status = "not_started"
	// StatusInProgress は進行中。
	StatusInProgress Status = "in_progress"
	// StatusReview はレビュー中。
	StatusReview Status = "review"
	// StatusCompleted は完了。
	StatusCompleted Status = "completed"
)

// statusLabels はステータスの表示ラベル。活動履歴と通知メッセージに使用する。
var statusLabels = map[Status]string{
	StatusNotStarted: "Not Started",
	StatusInProgress: "In Progress",
	StatusReview:     "Review",
	StatusCompleted:  "Completed",
}

// DisplayLabel はステータスの表示ラベルを返す。未知の値は空文字列を返す。
func (s Status) DisplayLabel() string {
	return statusLabels[s]
}

// Valid は定義済みのステータスかどうかを返す。
func (s Status) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Priority はタスクの優先度を表す列挙型。
type Priority string

const (
	// PriorityLow は低優先度。
	PriorityLow Priority = "low"
	// PriorityMedium は中優先度。
	PriorityMedium Priority = "medium"
	// PriorityHigh は高優先度。
	PriorityHigh Priority = "high"
	// PriorityCritical は最優先。
	PriorityCritical Priority = "critical"
)

// priorityLabels は優先度の表示ラベル。活動履歴に使用する。
var priorityLabels = map[Priority]string{
	PriorityLow:      "Low",
	PriorityMedium:   "Medium",
	PriorityHigh:     "High",
	PriorityCritical: "Critical",
}

// DisplayLabel は優先度の表示ラベルを返す。未知の値は空文字列を返す。
func (p Priority) DisplayLabel() string {
	return priorityLabels[p]
}

// Valid は定義済みの優先度かどうかを返す。
func (p Priority) Valid() bool {
	_, ok := priorityLabels[p]
	return ok
}

// Task はチーム内のタスク。
type Task struct {
	// ID はタスクの一意識別子。
	ID string `db:"id" json:"id"`
	// TeamID は所属チームのID。
	TeamID string `db:"team_id" json:"team_id"`
	// Title はタスクのタイトル。
	Title string `db:"title" json:"title"`
	// Description はタスクの詳細説明。
	Description string `db:"description" json:"description"`
	// CreatedBy は作成者のユーザーID。
	CreatedBy string `db:"created_by" json:"created_by"`
	// AssignedTo は担当者のユーザーID。未割り当ての場合nil。
	AssignedTo *string `db:"assigned_to" json:"assigned_to"`
	// Priority はタスクの優先度。
	Priority Priority `db:"priority" json:"priority"`
	// Status はタスクの進行状態。
	Status Status `db:"status" json:"status"`
	// DueDate は期限日時。未設定の場合nil。
	DueDate *time.Time `db:"due_date" json:"due_date"`
	// Tags はカンマ区切りのタグ文字列。
	Tags string `db:"tags" json:"tags"`
	// IsUrgent は緊急フラグ。
	IsUrgent bool `db:"is_urgent" json:"is_urgent"`
	// CreatedAt は作成日時。
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	// UpdatedAt は更新日時。
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Comment はタスクへのコメント。
type Comment struct {
	// ID はコメントの一意識別子。
	ID string `db:"id" json:"id"`
	// TaskID はコメント先タスクのID。
	TaskID string `db:"task_id" json:"task_id"`
	// UserID はコメントしたユーザーのID。
	UserID string `db:"user_id" json:"user_id"`
	// Comment はコメント本文。
	Comment string `db:"comment" json:"comment"`
	// CreatedAt は作成日時。
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Attachment はタスクに添付されたファイルのメタデータ。
// ファイル本体は管理しない。
type Attachment struct {
	// ID は添付レコードの一意識別子。
	ID string `db:"id" json:"id"`
	// TaskID は添付先タスクのID。
	TaskID string `db:"task_id" json:"task_id"`
	// FileName は添付ファイル名。
	FileName string `db:"file_name" json:"file_name"`
	// UploadedBy はアップロードしたユーザーのID。
	UploadedBy string `db:"uploaded_by" json:"uploaded_by"`
	// UploadedAt はアップロード日時。
	UploadedAt time.Time `db:"uploaded_at" json:"uploaded_at"`
}
