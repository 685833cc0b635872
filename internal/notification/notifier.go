package notification

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/68Weezky/team-todo/pkg/mail"
)

// emailFooter はすべての通知メールの末尾に付加する固定文言。
const emailFooter = "\n\nLog in to Team Todo to view more details."

// Notifier はアプリ内通知の作成とメール通知の送信を行う。
type Notifier struct {
	// store は通知と通知設定のクエリ実行オブジェクト。
	store *Store
	// sender はメール送信クライアント。
	sender mail.Sender
}

// NewNotifier は新しいNotifierを生成する。
func NewNotifier(store *Store, sender mail.Sender) *Notifier {
	return &Notifier{store: store, sender: sender}
}

// Notify は通知レコードを1件作成し、受信者の設定に応じてメールを送信する。
//
// 通知レコードの挿入は無条件に行い、挿入エラーは呼び出し元へ伝播する。
// メール送信は設定で許可されている場合のみ行い、送信失敗は握りつぶす
// （ログ出力のみ。リトライも記録もしない）。
// 同一引数で2回呼び出すと2件の通知が作成される（重複排除なし）。
func (n *Notifier) Notify(ctx context.Context, recipient Recipient, kind Kind, message string, task *TaskRef) (Notification, error) {
	if !kind.Valid() {
		return Notification{}, fmt.Errorf("未定義の通知種別: %q", kind)
	}

	notif := Notification{
		ID:          uuid.New().String(),
		RecipientID: recipient.ID,
		Kind:        kind,
		Message:     message,
		CreatedAt:   time.Now().UTC(),
	}
	if task != nil {
		notif.TaskID = &task.ID
	}

	if err := n.store.create(ctx, notif); err != nil {
		return Notification{}, err
	}

	// 設定の取得に失敗した場合もメールは送らない（フェイルクローズ）
	pref, err := n.store.GetPreference(ctx, recipient.ID)
	if err != nil {
		log.Printf("通知設定の取得に失敗したためメール送信をスキップ: %v", err)
		return notif, nil
	}

	if ShouldEmail(pref, kind) {
		subject := fmt.Sprintf("[Team Todo] %s", kind.DisplayLabel())
		if err := n.sender.Send(ctx, recipient.Email, subject, composeBody(message, task)); err != nil {
			// メール送信失敗は通知作成の成否に影響させない
			log.Printf("通知メールの送信に失敗: %v", err)
		}
	}

	return notif, nil
}

// composeBody はメール本文を組み立てる。
// 本文 = メッセージ + 関連タスク行（あれば） + 固定フッター。
func composeBody(message string, task *TaskRef) string {
	var b strings.Builder
	b.WriteString(message)
	if task != nil {
		b.WriteString(fmt.Sprintf("\nTask: %s", task.Title))
	}
	b.WriteString(emailFooter)
	return b.String()
}
