// Package user はユーザーアカウントと認証APIを提供する。
//
// ロール（admin / team_leader / team_member）を持つアカウントの登録・ログイン・
// プロフィール管理を行う。登録成功時には通知設定レコードを明示的に作成する。
package user
