package notification

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/68Weezky/team-todo/internal/storage"
)

// newTestDB はテスト用のインメモリSQLiteデータベースを開くヘルパー関数。
func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := storage.OpenInMemory()
	if err != nil {
		t.Fatalf("インメモリDBの作成に失敗: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// seedUser はテスト用ユーザーをDBに直接挿入するヘルパー関数。
func seedUser(t *testing.T, db *sqlx.DB, id, username, email string) {
	t.Helper()

	now := time.Now().UTC()
	_, err := db.Exec(`
		INSERT INTO users (id, username, email, password_hash, role, is_active, created_at, updated_at)
		VALUES (?, ?, ?, 'x', 'team_member', 1, ?, ?)`,
		id, username, email, now, now)
	if err != nil {
		t.Fatalf("テスト用ユーザーの作成に失敗: %v", err)
	}
}

// seedTask はテスト用のチームとタスクをDBに直接挿入するヘルパー関数。
// チームのリーダーとタスクの作成者はcreatorIDとする。
func seedTask(t *testing.T, db *sqlx.DB, taskID, teamID, title, creatorID string) {
	t.Helper()

	now := time.Now().UTC()
	_, err := db.Exec(`
		INSERT OR IGNORE INTO teams (id, name, description, leader_id, is_active, created_at, updated_at)
		VALUES (?, ?, '', ?, 1, ?, ?)`,
		teamID, "team-"+teamID, creatorID, now, now)
	if err != nil {
		t.Fatalf("テスト用チームの作成に失敗: %v", err)
	}

	_, err = db.Exec(`
		INSERT INTO tasks (id, team_id, title, description, created_by, priority, status, tags, is_urgent, created_at, updated_at)
		VALUES (?, ?, ?, '', ?, 'medium', 'not_started', '', 0, ?, ?)`,
		taskID, teamID, title, creatorID, now, now)
	if err != nil {
		t.Fatalf("テスト用タスクの作成に失敗: %v", err)
	}
}

// seedNotification はテスト用通知をDBに直接挿入するヘルパー関数。
func seedNotification(t *testing.T, store *Store, id, recipientID string, kind Kind, message string, createdAt time.Time) {
	t.Helper()

	err := store.create(context.Background(), Notification{
		ID:          id,
		RecipientID: recipientID,
		Kind:        kind,
		Message:     message,
		CreatedAt:   createdAt,
	})
	if err != nil {
		t.Fatalf("テスト用通知の作成に失敗: %v", err)
	}
}

// sentMail はfakeSenderが記録した送信内容。
type sentMail struct {
	to      string
	subject string
	body    string
}

// fakeSender はテスト用のメール送信クライアント。送信内容を記録する。
type fakeSender struct {
	// sent は送信された（とみなす）メールの記録。
	sent []sentMail
	// err が設定されている場合、Sendは常にこのエラーを返す。
	err error
}

// Send は送信内容を記録する。errが設定されている場合は失敗を模倣する。
func (f *fakeSender) Send(_ context.Context, to, subject, body string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}
