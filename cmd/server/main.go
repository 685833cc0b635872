// Team Todo APIサーバーのエントリポイント。
// ユーザー・チーム・タスク・通知のすべてのAPIを1つのSQLite
// データベースに対して提供する。
package main

import (
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/68Weezky/team-todo/internal/activity"
	"github.com/68Weezky/team-todo/internal/notification"
	"github.com/68Weezky/team-todo/internal/storage"
	"github.com/68Weezky/team-todo/internal/task"
	"github.com/68Weezky/team-todo/internal/team"
	"github.com/68Weezky/team-todo/internal/user"
	"github.com/68Weezky/team-todo/pkg/mail"
	"github.com/68Weezky/team-todo/pkg/middleware"
)

func main() {
	db, err := storage.Open(getEnvOr("DB_PATH", "teamtodo.db"))
	if err != nil {
		log.Fatalf("データベースの初期化に失敗: %v", err)
	}
	defer db.Close()

	jwtSecret := getEnvOr("JWT_SECRET", "dev-secret-key")

	sender := newSender()

	notificationStore := notification.NewStore(db)
	notifier := notification.NewNotifier(notificationStore, sender)
	userStore := user.NewStore(db)
	teamStore := team.NewStore(db)
	taskStore := task.NewStore(db)
	recorder := activity.NewRecorder(db)

	userServer := user.NewServer(userStore, notificationStore, jwtSecret)
	teamServer := team.NewServer(teamStore)
	taskServer := task.NewServer(taskStore, teamStore, userStore, recorder, notifier)
	notificationServer := notification.NewServer(notificationStore)

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORS(strings.Split(getEnvOr("CORS_ORIGINS", "*"), ",")))

	// ヘルスチェック
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "team-todo"})
	})

	public := router.Group("/api/v1")
	userServer.RegisterAuthRoutes(public)

	api := router.Group("/api/v1")
	api.Use(middleware.JWTAuth(jwtSecret))
	{
		userServer.RegisterRoutes(api)
		teamServer.RegisterRoutes(api)
		taskServer.RegisterRoutes(api)
		notificationServer.RegisterRoutes(api)
	}

	port := getEnvOr("PORT", "8080")
	log.Printf("Team Todo APIサーバーを起動します: :%s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("サーバーの起動に失敗: %v", err)
	}
}

// newSender は環境変数からメール送信クライアントを構築する。
// SMTP_HOSTが未設定の場合は送信をスキップするNopSenderを返す。
func newSender() mail.Sender {
	host := os.Getenv("SMTP_HOST")
	if host == "" {
		log.Printf("SMTP_HOSTが未設定のためメール送信を無効化します")
		return mail.NopSender{}
	}

	port, err := strconv.Atoi(getEnvOr("SMTP_PORT", "587"))
	if err != nil {
		log.Fatalf("SMTP_PORTが不正です: %v", err)
	}

	sender, err := mail.NewSMTPSender(mail.SMTPConfig{
		Host:     host,
		Port:     port,
		Username: os.Getenv("SMTP_USERNAME"),
		Password: os.Getenv("SMTP_PASSWORD"),
		From:     getEnvOr("SMTP_FROM", "noreply@teamtodo.example.com"),
	})
	if err != nil {
		log.Fatalf("メール送信クライアントの初期化に失敗: %v", err)
	}
	return sender
}

// getEnvOr は環境変数の値を返す。未設定の場合はフォールバック値を返す。
func getEnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
