// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// JWT認証トークンの検証、ユーザーIDとロールの伝播、パニックリカバリ、
// CORS設定など、APIサーバー全体で共通して使用するミドルウェアを含む。
package middleware
