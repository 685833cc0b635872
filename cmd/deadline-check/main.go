// 期限チェックジョブのエントリポイント。
// cronなどから定期実行され、1回の巡回で期限接近・期限超過の
// 通知を作成して終了する。
package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/68Weezky/team-todo/internal/deadline"
	"github.com/68Weezky/team-todo/internal/notification"
	"github.com/68Weezky/team-todo/internal/storage"
	"github.com/68Weezky/team-todo/pkg/mail"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	db, err := storage.Open(getEnvOr("DB_PATH", "teamtodo.db"))
	if err != nil {
		logger.WithError(err).Fatal("データベースの初期化に失敗")
	}
	defer db.Close()

	store := notification.NewStore(db)
	notifier := notification.NewNotifier(store, newSender(logger))
	sweeper := deadline.NewSweeper(db, notifier, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	sent, err := sweeper.Run(ctx, time.Now().UTC())
	if err != nil {
		logger.WithError(err).Fatal("期限チェックに失敗")
	}
	logger.WithField("notified", sent).Info("期限チェックジョブ終了")
}

// newSender は環境変数からメール送信クライアントを構築する。
// SMTP_HOSTが未設定の場合は送信をスキップするNopSenderを返す。
func newSender(logger *logrus.Logger) mail.Sender {
	host := os.Getenv("SMTP_HOST")
	if host == "" {
		logger.Info("SMTP_HOSTが未設定のためメール送信を無効化します")
		return mail.NopSender{}
	}

	port, err := strconv.Atoi(getEnvOr("SMTP_PORT", "587"))
	if err != nil {
		logger.WithError(err).Fatal("SMTP_PORTが不正です")
	}

	sender, err := mail.NewSMTPSender(mail.SMTPConfig{
		Host:     host,
		Port:     port,
		Username: os.Getenv("SMTP_USERNAME"),
		Password: os.Getenv("SMTP_PASSWORD"),
		From:     getEnvOr("SMTP_FROM", "noreply@teamtodo.example.com"),
	})
	if err != nil {
		logger.WithError(err).Fatal("メール送信クライアントの初期化に失敗")
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
