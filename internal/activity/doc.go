// Package activity はタスクの活動履歴（監査ログ）の記録と参照を提供する。
//
// タスクの作成・変更・コメント・添付などの操作を追記専用のレコードとして残す。
// 記録されたレコードは更新も削除もされない（タスク削除時のカスケードを除く）。
package activity
