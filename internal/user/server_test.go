package user

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/68Weezky/team-todo/internal/notification"
	"github.com/68Weezky/team-todo/internal/storage"
	"github.com/68Weezky/team-todo/pkg/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testJWTSecret = "test-secret"

// setupUserServer はテスト用のユーザーサーバーをインメモリSQLiteで構築する。
func setupUserServer(t *testing.T) (*gin.Engine, *sqlx.DB, *notification.Store) {
	t.Helper()

	db, err := storage.OpenInMemory()
	if err != nil {
		t.Fatalf("インメモリDBの作成に失敗: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	prefStore := notification.NewStore(db)
	server := NewServer(NewStore(db), prefStore, testJWTSecret)

	router := gin.New()
	public := router.Group("/api/v1")
	server.RegisterAuthRoutes(public)

	api := router.Group("/api/v1")
	api.Use(middleware.JWTAuth(testJWTSecret))
	server.RegisterRoutes(api)

	return router, db, prefStore
}

// doJSON はテスト用のHTTPリクエストを実行し、レスポンスを返すヘルパー関数。
func doJSON(router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	var reqBody *bytes.Reader
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewReader(jsonBytes)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// registerUser はユーザー登録APIを呼び出し、トークンとユーザーIDを返すヘルパー関数。
func registerUser(t *testing.T, router *gin.Engine, username, role string) (token, userID string) {
	t.Helper()

	w := doJSON(router, http.MethodPost, "/api/v1/auth/register", "", map[string]any{
		"username": username,
		"email":    username + "@example.com",
		"password": "password123",
		"role":     role,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("登録のステータスコード: got %d, want %d, body=%s", w.Code, http.StatusCreated, w.Body.String())
	}

	var result struct {
		Token string `json:"token"`
		User  User   `json:"user"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	return result.Token, result.User.ID
}

// TestHandleRegister はユーザー登録ハンドラのテスト。
func TestHandleRegister(t *testing.T) {
	t.Parallel()

	t.Run("登録すると通知設定レコードも作成される", func(t *testing.T) {
		t.Parallel()
		router, _, prefStore := setupUserServer(t)

		_, userID := registerUser(t, router, "alice", "team_member")

		pref, err := prefStore.GetPreference(context.Background(), userID)
		if err != nil {
			t.Fatalf("GetPreference: %v", err)
		}
		if pref == nil {
			t.Fatal("通知設定レコードが作成されていない")
		}
		if !pref.EmailNotifications {
			t.Error("email_notifications: got false, want true")
		}
	})

	t.Run("管理者ロールは自己登録できない", func(t *testing.T) {
		t.Parallel()
		router, _, _ := setupUserServer(t)

		w := doJSON(router, http.MethodPost, "/api/v1/auth/register", "", map[string]any{
			"username": "evil",
			"email":    "evil@example.com",
			"password": "password123",
			"role":     "admin",
		})
		if w.Code != http.StatusBadRequest {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("ユーザー名の重複はConflict", func(t *testing.T) {
		t.Parallel()
		router, _, _ := setupUserServer(t)

		registerUser(t, router, "alice", "team_member")
		w := doJSON(router, http.MethodPost, "/api/v1/auth/register", "", map[string]any{
			"username": "alice",
			"email":    "alice2@example.com",
			"password": "password123",
		})
		if w.Code != http.StatusConflict {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusConflict)
		}
	})

	t.Run("短いパスワードはBadRequest", func(t *testing.T) {
		t.Parallel()
		router, _, _ := setupUserServer(t)

		w := doJSON(router, http.MethodPost, "/api/v1/auth/register", "", map[string]any{
			"username": "alice",
			"email":    "alice@example.com",
			"password": "short",
		})
		if w.Code != http.StatusBadRequest {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusBadRequest)
		}
	})
}

// TestHandleLogin はログインハンドラのテスト。
func TestHandleLogin(t *testing.T) {
	t.Parallel()

	t.Run("正しい資格情報でトークンが発行される", func(t *testing.T) {
		t.Parallel()
		router, _, _ := setupUserServer(t)
		registerUser(t, router, "alice", "team_leader")

		w := doJSON(router, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
			"username": "alice",
			"password": "password123",
		})
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d, body=%s", w.Code, http.StatusOK, w.Body.String())
		}

		var result map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
			t.Fatalf("JSONのデコードに失敗: %v", err)
		}
		if result["token"] == "" || result["token"] == nil {
			t.Error("token: got empty, want non-empty")
		}
	})

	t.Run("誤ったパスワードはUnauthorized", func(t *testing.T) {
		t.Parallel()
		router, _, _ := setupUserServer(t)
		registerUser(t, router, "alice", "team_member")

		w := doJSON(router, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
			"username": "alice",
			"password": "wrongpassword",
		})
		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})

	t.Run("無効化されたアカウントはUnauthorized", func(t *testing.T) {
		t.Parallel()
		router, db, _ := setupUserServer(t)
		_, userID := registerUser(t, router, "alice", "team_member")

		if _, err := db.Exec("UPDATE users SET is_active = 0 WHERE id = ?", userID); err != nil {
			t.Fatalf("ユーザーの無効化に失敗: %v", err)
		}

		w := doJSON(router, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
			"username": "alice",
			"password": "password123",
		})
		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})

	t.Run("存在しないユーザーはUnauthorized", func(t *testing.T) {
		t.Parallel()
		router, _, _ := setupUserServer(t)

		w := doJSON(router, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
			"username": "nobody",
			"password": "password123",
		})
		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})
}

// TestHandleGetCurrentUser は自分のプロフィール取得ハンドラのテスト。
func TestHandleGetCurrentUser(t *testing.T) {
	t.Parallel()

	t.Run("発行されたトークンで自分の情報を取得できる", func(t *testing.T) {
		t.Parallel()
		router, _, _ := setupUserServer(t)
		token, userID := registerUser(t, router, "alice", "team_member")

		w := doJSON(router, http.MethodGet, "/api/v1/me", token, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d, body=%s", w.Code, http.StatusOK, w.Body.String())
		}

		var u User
		if err := json.Unmarshal(w.Body.Bytes(), &u); err != nil {
			t.Fatalf("JSONのデコードに失敗: %v", err)
		}
		if u.ID != userID {
			t.Errorf("id: got %s, want %s", u.ID, userID)
		}
		// パスワードハッシュはレスポンスに含まれない
		if bytes.Contains(w.Body.Bytes(), []byte("password_hash")) {
			t.Error("レスポンスにpassword_hashが含まれている")
		}
	})

	t.Run("トークンなしはUnauthorized", func(t *testing.T) {
		t.Parallel()
		router, _, _ := setupUserServer(t)

		w := doJSON(router, http.MethodGet, "/api/v1/me", "", nil)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})
}

// TestHandleUpdateProfile はプロフィール更新ハンドラのテスト。
func TestHandleUpdateProfile(t *testing.T) {
	t.Parallel()

	router, _, _ := setupUserServer(t)
	token, _ := registerUser(t, router, "alice", "team_member")

	w := doJSON(router, http.MethodPut, "/api/v1/me", token, map[string]any{
		"first_name": "Alice",
		"last_name":  "Smith",
		"bio":        "Backend engineer",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("ステータスコード: got %d, want %d, body=%s", w.Code, http.StatusOK, w.Body.String())
	}

	w = doJSON(router, http.MethodGet, "/api/v1/me", token, nil)
	var u User
	if err := json.Unmarshal(w.Body.Bytes(), &u); err != nil {
		t.Fatalf("JSONのデコードに失敗: %v", err)
	}
	if u.FirstName != "Alice" || u.LastName != "Smith" {
		t.Errorf("名前: got %s %s, want Alice Smith", u.FirstName, u.LastName)
	}
	if u.DisplayName() != "Alice Smith" {
		t.Errorf("DisplayName: got %s, want Alice Smith", u.DisplayName())
	}
}

// TestHandleListUsers はユーザー一覧ハンドラのテスト。
func TestHandleListUsers(t *testing.T) {
	t.Parallel()

	router, _, _ := setupUserServer(t)
	token, _ := registerUser(t, router, "alice", "team_leader")
	registerUser(t, router, "bob", "team_member")

	t.Run("ロールで絞り込める", func(t *testing.T) {
		w := doJSON(router, http.MethodGet, "/api/v1/users?role=team_leader", token, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
		}

		var users []User
		if err := json.Unmarshal(w.Body.Bytes(), &users); err != nil {
			t.Fatalf("JSONのデコードに失敗: %v", err)
		}
		if len(users) != 1 {
			t.Fatalf("件数: got %d, want 1", len(users))
		}
		if users[0].Username != "alice" {
			t.Errorf("username: got %s, want alice", users[0].Username)
		}
	})

	t.Run("未定義のロールはBadRequest", func(t *testing.T) {
		w := doJSON(router, http.MethodGet, "/api/v1/users?role=super_user", token, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusBadRequest)
		}
	})
}
