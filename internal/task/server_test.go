package task

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/68Weezky/team-todo/internal/activity"
	"github.com/68Weezky/team-todo/internal/notification"
	"github.com/68Weezky/team-todo/internal/storage"
	"github.com/68Weezky/team-todo/internal/team"
	"github.com/68Weezky/team-todo/internal/user"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// nopSender はテスト用のメール送信クライアント。常に成功する。
type nopSender struct{}

func (nopSender) Send(_ context.Context, _, _, _ string) error { return nil }

// testEnv はタスクAPIテストの依存一式。
type testEnv struct {
	db            *sqlx.DB
	router        *gin.Engine
	recorder      *activity.Recorder
	notifications *notification.Store
}

// setupTaskServer はテスト用のタスクサーバーをインメモリSQLiteで構築する。
//
// 事前データ: チームteam-1（リーダーleader-1）、メンバーmember-1、
// チーム外ユーザーoutsider-1。JWTミドルウェアの代わりに
// X-User-ID・X-User-Roleヘッダーでユーザーを指定する。
func setupTaskServer(t *testing.T) *testEnv {
	t.Helper()

	db, err := storage.OpenInMemory()
	if err != nil {
		t.Fatalf("インメモリDBの作成に失敗: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	now := time.Now().UTC()
	users := []struct{ id, username, email, role string }{
		{"leader-1", "alice", "alice@example.com", "team_leader"},
		{"member-1", "bob", "bob@example.com", "team_member"},
		{"outsider-1", "carol", "carol@example.com", "team_member"},
		{"admin-1", "dave", "dave@example.com", "admin"},
	}
	for _, u := range users {
		if _, err := db.Exec(`
			INSERT INTO users (id, username, email, password_hash, role, is_active, created_at, updated_at)
			VALUES (?, ?, ?, 'x', ?, 1, ?, ?)`,
			u.id, u.username, u.email, u.role, now, now); err != nil {
			t.Fatalf("テスト用ユーザーの作成に失敗: %v", err)
		}
	}
	if _, err := db.Exec(`
		INSERT INTO teams (id, name, description, leader_id, is_active, created_at, updated_at)
		VALUES ('team-1', 'Core', '', 'leader-1', 1, ?, ?)`, now, now); err != nil {
		t.Fatalf("テスト用チームの作成に失敗: %v", err)
	}
	if _, err := db.Exec(`
		INSERT INTO team_memberships (id, team_id, member_id, joined_at)
		VALUES ('ms-1', 'team-1', 'member-1', ?)`, now); err != nil {
		t.Fatalf("テスト用メンバーシップの作成に失敗: %v", err)
	}

	notificationStore := notification.NewStore(db)
	notifier := notification.NewNotifier(notificationStore, nopSender{})
	recorder := activity.NewRecorder(db)
	server := NewServer(NewStore(db), team.NewStore(db), user.NewStore(db), recorder, notifier)

	router := gin.New()
	api := router.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		if userID := c.GetHeader("X-User-ID"); userID != "" {
			c.Set("user_id", userID)
		}
		if role := c.GetHeader("X-User-Role"); role != "" {
			c.Set("role", role)
		}
		c.Next()
	})
	server.RegisterRoutes(api)

	return &testEnv{
		db:            db,
		router:        router,
		recorder:      recorder,
		notifications: notificationStore,
	}
}

// do はテスト用のHTTPリクエストを実行し、レスポンスを返すヘルパー関数。
func (e *testEnv) do(method, path, userID, role string, body any) *httptest.ResponseRecorder {
	var reqBody *bytes.Reader
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewReader(jsonBytes)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", userID)
	req.Header.Set("X-User-Role", role)

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// createTask はタスク作成APIを呼び出し、作成されたタスクを返すヘルパー関数。
func (e *testEnv) createTask(t *testing.T, title string, assignedTo *string) Task {
	t.Helper()

	body := map[string]any{"title": title}
	if assignedTo != nil {
		body["assigned_to"] = *assignedTo
	}
	w := e.do(http.MethodPost, "/api/v1/teams/team-1/tasks", "leader-1", "team_leader", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("タスク作成のステータスコード: got %d, want %d, body=%s", w.Code, http.StatusCreated, w.Body.String())
	}

	var created Task
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	return created
}

// inboxMessages は指定ユーザーの通知メッセージ一覧を返すヘルパー関数。
func (e *testEnv) inboxMessages(t *testing.T, userID string) []string {
	t.Helper()

	items, err := e.notifications.ListInbox(context.Background(), userID, 1)
	if err != nil {
		t.Fatalf("ListInbox: %v", err)
	}
	messages := make([]string, 0, len(items))
	for _, item := range items {
		messages = append(messages, item.Message)
	}
	return messages
}

// TestHandleCreate はタスク作成ハンドラのテスト。
func TestHandleCreate(t *testing.T) {
	t.Parallel()

	t.Run("リーダーが担当者付きでタスクを作成すると履歴と通知が残る", func(t *testing.T) {
		t.Parallel()
		env := setupTaskServer(t)

		assignee := "member-1"
		created := env.createTask(t, "Fix login bug", &assignee)
		if created.Status != StatusNotStarted {
			t.Errorf("status: got %s, want %s", created.Status, StatusNotStarted)
		}

		activities, err := env.recorder.ListByTask(context.Background(), created.ID)
		if err != nil {
			t.Fatalf("ListByTask: %v", err)
		}
		if len(activities) != 1 {
			t.Fatalf("活動履歴の件数: got %d, want 1", len(activities))
		}
		if activities[0].Kind != activity.KindCreated {
			t.Errorf("kind: got %s, want %s", activities[0].Kind, activity.KindCreated)
		}
		if activities[0].Description != `Task "Fix login bug" created.` {
			t.Errorf("description: got %q", activities[0].Description)
		}

		messages := env.inboxMessages(t, "member-1")
		if len(messages) != 1 {
			t.Fatalf("担当者の通知件数: got %d, want 1", len(messages))
		}
		want := `You have been assigned to task "Fix login bug" in team "Core".`
		if messages[0] != want {
			t.Errorf("通知メッセージ: got %q, want %q", messages[0], want)
		}
	})

	t.Run("自分自身に割り当てた場合は通知しない", func(t *testing.T) {
		t.Parallel()
		env := setupTaskServer(t)

		self := "leader-1"
		env.createTask(t, "Self task", &self)

		if messages := env.inboxMessages(t, "leader-1"); len(messages) != 0 {
			t.Errorf("通知件数: got %d, want 0", len(messages))
		}
	})

	t.Run("リーダー以外のメンバーはForbidden", func(t *testing.T) {
		t.Parallel()
		env := setupTaskServer(t)

		w := env.do(http.MethodPost, "/api/v1/teams/team-1/tasks", "member-1", "team_member",
			map[string]any{"title": "nope"})
		if w.Code != http.StatusForbidden {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusForbidden)
		}
	})

	t.Run("管理者は任意のチームにタスクを作成できる", func(t *testing.T) {
		t.Parallel()
		env := setupTaskServer(t)

		w := env.do(http.MethodPost, "/api/v1/teams/team-1/tasks", "admin-1", "admin",
			map[string]any{"title": "Admin task"})
		if w.Code != http.StatusCreated {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusCreated)
		}
	})
}

// TestHandleUpdateStatus はステータス更新ハンドラのテスト。
func TestHandleUpdateStatus(t *testing.T) {
	t.Parallel()

	t.Run("担当者が完了へ変更すると履歴と作成者への通知が残る", func(t *testing.T) {
		t.Parallel()
		env := setupTaskServer(t)

		assignee := "member-1"
		created := env.createTask(t, "Ship release", &assignee)

		w := env.do(http.MethodPut, "/api/v1/tasks/"+created.ID+"/status", "member-1", "team_member",
			map[string]any{"status": "completed"})
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d, body=%s", w.Code, http.StatusOK, w.Body.String())
		}

		activities, err := env.recorder.ListByTask(context.Background(), created.ID)
		if err != nil {
			t.Fatalf("ListByTask: %v", err)
		}
		// 作成の履歴 + ステータス変更の履歴
		if len(activities) != 2 {
			t.Fatalf("活動履歴の件数: got %d, want 2", len(activities))
		}
		change := activities[0]
		if change.Kind != activity.KindStatusChanged {
			t.Errorf("kind: got %s, want %s", change.Kind, activity.KindStatusChanged)
		}
		if change.OldValue != "Not Started" || change.NewValue != "Completed" {
			t.Errorf("old/new: got %q/%q", change.OldValue, change.NewValue)
		}

		messages := env.inboxMessages(t, "leader-1")
		if len(messages) != 1 {
			t.Fatalf("作成者の通知件数: got %d, want 1", len(messages))
		}
		want := `Status for task "Ship release" in team "Core" changed to Completed.`
		if messages[0] != want {
			t.Errorf("通知メッセージ: got %q, want %q", messages[0], want)
		}

		// 操作した本人（担当者）には割り当て通知のみでステータス変更通知は届かない
		for _, msg := range env.inboxMessages(t, "member-1") {
			if strings.Contains(msg, "changed to") {
				t.Errorf("操作者本人に通知が届いている: %q", msg)
			}
		}
	})

	t.Run("進行中への変更は履歴のみで通知しない", func(t *testing.T) {
		t.Parallel()
		env := setupTaskServer(t)

		assignee := "member-1"
		created := env.createTask(t, "Quiet task", &assignee)

		w := env.do(http.MethodPut, "/api/v1/tasks/"+created.ID+"/status", "member-1", "team_member",
			map[string]any{"status": "in_progress"})
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
		}

		if messages := env.inboxMessages(t, "leader-1"); len(messages) != 0 {
			t.Errorf("作成者の通知件数: got %d, want 0", len(messages))
		}
	})

	t.Run("チーム外ユーザーはForbidden", func(t *testing.T) {
		t.Parallel()
		env := setupTaskServer(t)
		created := env.createTask(t, "Core only", nil)

		w := env.do(http.MethodPut, "/api/v1/tasks/"+created.ID+"/status", "outsider-1", "team_member",
			map[string]any{"status": "completed"})
		if w.Code != http.StatusForbidden {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusForbidden)
		}
	})

	t.Run("担当者でも作成者でもないメンバーはForbidden", func(t *testing.T) {
		t.Parallel()
		env := setupTaskServer(t)
		created := env.createTask(t, "Leader's own", nil)

		w := env.do(http.MethodPut, "/api/v1/tasks/"+created.ID+"/status", "member-1", "team_member",
			map[string]any{"status": "completed"})
		if w.Code != http.StatusForbidden {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusForbidden)
		}
	})

	t.Run("不正なステータスはBadRequest", func(t *testing.T) {
		t.Parallel()
		env := setupTaskServer(t)
		created := env.createTask(t, "Bad status", nil)

		w := env.do(http.MethodPut, "/api/v1/tasks/"+created.ID+"/status", "leader-1", "team_leader",
			map[string]any{"status": "half_done"})
		if w.Code != http.StatusBadRequest {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusBadRequest)
		}
	})
}

// TestHandleUpdate はタスク更新ハンドラのテスト。
func TestHandleUpdate(t *testing.T) {
	t.Parallel()

	t.Run("優先度と担当者の変更は個別の履歴になる", func(t *testing.T) {
		t.Parallel()
		env := setupTaskServer(t)
		created := env.createTask(t, "Tune index", nil)

		w := env.do(http.MethodPut, "/api/v1/tasks/"+created.ID, "leader-1", "team_leader",
			map[string]any{
				"title":       "Tune index",
				"priority":    "high",
				"status":      "not_started",
				"assigned_to": "member-1",
			})
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d, body=%s", w.Code, http.StatusOK, w.Body.String())
		}

		activities, err := env.recorder.ListByTask(context.Background(), created.ID)
		if err != nil {
			t.Fatalf("ListByTask: %v", err)
		}
		// 作成 + 優先度変更 + 担当者変更
		if len(activities) != 3 {
			t.Fatalf("活動履歴の件数: got %d, want 3", len(activities))
		}

		kinds := map[activity.Kind]bool{}
		for _, a := range activities {
			kinds[a.Kind] = true
		}
		for _, want := range []activity.Kind{activity.KindCreated, activity.KindPriorityChanged, activity.KindAssigned} {
			if !kinds[want] {
				t.Errorf("活動種別%sの履歴がない", want)
			}
		}

		// 新しい担当者に割り当て通知が届く
		messages := env.inboxMessages(t, "member-1")
		if len(messages) != 1 {
			t.Fatalf("担当者の通知件数: got %d, want 1", len(messages))
		}
		if !strings.Contains(messages[0], "assigned to task") {
			t.Errorf("通知メッセージ: got %q", messages[0])
		}
	})

	t.Run("作成者以外のメンバーはForbidden", func(t *testing.T) {
		t.Parallel()
		env := setupTaskServer(t)
		created := env.createTask(t, "Locked", nil)

		w := env.do(http.MethodPut, "/api/v1/tasks/"+created.ID, "member-1", "team_member",
			map[string]any{"title": "Locked", "priority": "low", "status": "not_started"})
		if w.Code != http.StatusForbidden {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusForbidden)
		}
	})
}

// TestHandleAddComment はコメント追加ハンドラのテスト。
func TestHandleAddComment(t *testing.T) {
	t.Parallel()

	t.Run("メンバーのコメントで履歴とコメント者以外への通知が残る", func(t *testing.T) {
		t.Parallel()
		env := setupTaskServer(t)

		assignee := "member-1"
		created := env.createTask(t, "Review docs", &assignee)

		w := env.do(http.MethodPost, "/api/v1/tasks/"+created.ID+"/comments", "member-1", "team_member",
			map[string]any{"comment": "Looks good to me."})
		if w.Code != http.StatusCreated {
			t.Fatalf("ステータスコード: got %d, want %d, body=%s", w.Code, http.StatusCreated, w.Body.String())
		}

		activities, err := env.recorder.ListByTask(context.Background(), created.ID)
		if err != nil {
			t.Fatalf("ListByTask: %v", err)
		}
		if len(activities) != 2 {
			t.Fatalf("活動履歴の件数: got %d, want 2", len(activities))
		}
		if activities[0].Kind != activity.KindCommented {
			t.Errorf("kind: got %s, want %s", activities[0].Kind, activity.KindCommented)
		}
		if activities[0].NewValue != "Looks good to me." {
			t.Errorf("new_value: got %q", activities[0].NewValue)
		}

		// 作成者には通知が届き、コメントした本人には届かない
		messages := env.inboxMessages(t, "leader-1")
		if len(messages) != 1 {
			t.Fatalf("作成者の通知件数: got %d, want 1", len(messages))
		}
		want := `bob commented on task "Review docs" in team "Core".`
		if messages[0] != want {
			t.Errorf("通知メッセージ: got %q, want %q", messages[0], want)
		}
		for _, msg := range env.inboxMessages(t, "member-1") {
			if strings.Contains(msg, "commented on") {
				t.Errorf("コメントした本人に通知が届いている: %q", msg)
			}
		}
	})

	t.Run("チーム外ユーザーはForbidden", func(t *testing.T) {
		t.Parallel()
		env := setupTaskServer(t)
		created := env.createTask(t, "Private", nil)

		w := env.do(http.MethodPost, "/api/v1/tasks/"+created.ID+"/comments", "outsider-1", "team_member",
			map[string]any{"comment": "hi"})
		if w.Code != http.StatusForbidden {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusForbidden)
		}
	})
}

// TestHandleAddAttachment は添付ファイル登録ハンドラのテスト。
func TestHandleAddAttachment(t *testing.T) {
	t.Parallel()

	env := setupTaskServer(t)
	created := env.createTask(t, "Design doc", nil)

	w := env.do(http.MethodPost, "/api/v1/tasks/"+created.ID+"/attachments", "member-1", "team_member",
		map[string]any{"file_name": "design.pdf"})
	if w.Code != http.StatusCreated {
		t.Fatalf("ステータスコード: got %d, want %d, body=%s", w.Code, http.StatusCreated, w.Body.String())
	}

	activities, err := env.recorder.ListByTask(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("ListByTask: %v", err)
	}
	if len(activities) != 2 {
		t.Fatalf("活動履歴の件数: got %d, want 2", len(activities))
	}
	if activities[0].Kind != activity.KindAttachmentAdded {
		t.Errorf("kind: got %s, want %s", activities[0].Kind, activity.KindAttachmentAdded)
	}
	if activities[0].Description != `Attachment "design.pdf" uploaded.` {
		t.Errorf("description: got %q", activities[0].Description)
	}

	// 添付では通知は発生しない
	if messages := env.inboxMessages(t, "leader-1"); len(messages) != 0 {
		t.Errorf("通知件数: got %d, want 0", len(messages))
	}
}

// TestHandleDelete はタスク削除ハンドラのテスト。
func TestHandleDelete(t *testing.T) {
	t.Parallel()

	t.Run("削除すると関連レコードも連鎖削除される", func(t *testing.T) {
		t.Parallel()
		env := setupTaskServer(t)

		assignee := "member-1"
		created := env.createTask(t, "Doomed", &assignee)
		env.do(http.MethodPost, "/api/v1/tasks/"+created.ID+"/comments", "member-1", "team_member",
			map[string]any{"comment": "will vanish"})

		w := env.do(http.MethodDelete, "/api/v1/tasks/"+created.ID, "leader-1", "team_leader", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
		}

		var count int
		for _, table := range []string{"task_comments", "task_activities", "notifications"} {
			if err := env.db.Get(&count, "SELECT COUNT(*) FROM "+table); err != nil {
				t.Fatalf("%sの件数取得に失敗: %v", table, err)
			}
			if count != 0 {
				t.Errorf("%s: got %d, want 0", table, count)
			}
		}
	})

	t.Run("作成者以外のメンバーはForbidden", func(t *testing.T) {
		t.Parallel()
		env := setupTaskServer(t)
		created := env.createTask(t, "Keep", nil)

		w := env.do(http.MethodDelete, "/api/v1/tasks/"+created.ID, "member-1", "team_member", nil)
		if w.Code != http.StatusForbidden {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusForbidden)
		}
	})

	t.Run("存在しないタスクはNotFound", func(t *testing.T) {
		t.Parallel()
		env := setupTaskServer(t)

		w := env.do(http.MethodDelete, "/api/v1/tasks/no-such-id", "leader-1", "team_leader", nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusNotFound)
		}
	})
}

// TestHandleGet はタスク詳細取得ハンドラのテスト。
func TestHandleGet(t *testing.T) {
	t.Parallel()

	env := setupTaskServer(t)
	created := env.createTask(t, "Detail", nil)

	w := env.do(http.MethodGet, "/api/v1/tasks/"+created.ID, "member-1", "team_member", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
	}

	var result map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("JSONのデコードに失敗: %v", err)
	}
	for _, key := range []string{"task", "comments", "attachments", "activities"} {
		if _, ok := result[key]; !ok {
			t.Errorf("レスポンスに%sが含まれない", key)
		}
	}
}

// TestHandleListMine は担当タスク一覧ハンドラのテスト。
func TestHandleListMine(t *testing.T) {
	t.Parallel()

	env := setupTaskServer(t)
	assignee := "member-1"
	env.createTask(t, "Mine", &assignee)
	env.createTask(t, "Not mine", nil)

	w := env.do(http.MethodGet, "/api/v1/tasks/my", "member-1", "team_member", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
	}

	var tasks []Task
	if err := json.Unmarshal(w.Body.Bytes(), &tasks); err != nil {
		t.Fatalf("JSONのデコードに失敗: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("件数: got %d, want 1", len(tasks))
	}
	if tasks[0].Title != "Mine" {
		t.Errorf("title: got %s, want Mine", tasks[0].Title)
	}
}
