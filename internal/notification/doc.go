// Package notification はアプリ内通知とメール通知の配信を提供する。
//
// タスクの割り当て・ステータス変更・コメント追加・期限接近/超過をきっかけに
// 通知レコードを作成し、受信者の通知設定に応じてメールを送信する。
// 通知の一覧取得・未読数集計・既読管理と、通知設定の参照・更新も行う。
package notification
