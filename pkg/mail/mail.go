// Package mail は通知メールの送信機能を提供する。
//
// SenderインターフェースをSMTP実装と何もしない実装で提供する。
// メール送信は通知のベストエフォートな副作用であり、
// 送信失敗を呼び出し元に伝播させてはならない。失敗はログに残すだけとする。
package mail

import (
	"context"
	"fmt"
	"log"

	gomail "github.com/wneessen/go-mail"
)

// Sender はメール送信の抽象インターフェース。
type Sender interface {
	// Send は指定アドレスへメールを送信する。
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPSender はSMTP経由でメールを送信するSender実装。
type SMTPSender struct {
	// client はSMTPクライアント。
	client *gomail.Client
	// from は送信元アドレス。
	from string
}

// SMTPConfig はSMTPSenderの接続設定。
type SMTPConfig struct {
	// Host はSMTPサーバーのホスト名。
	Host string
	// Port はSMTPサーバーのポート番号。
	Port int
	// Username はSMTP認証のユーザー名。空の場合は認証なしで接続する。
	Username string
	// Password はSMTP認証のパスワード。
	Password string
	// From は送信元アドレス。
	From string
}

// NewSMTPSender は新しいSMTPSenderを生成する。
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("SMTPクライアントの生成に失敗: %w", err)
	}

	return &SMTPSender{client: client, from: cfg.From}, nil
}

// Send はSMTP経由でプレーンテキストメールを送信する。
func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	msg := gomail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return fmt.Errorf("送信元アドレスの設定に失敗: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("宛先アドレスの設定に失敗: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, body)

	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("メール送信に失敗: %w", err)
	}
	return nil
}

// NopSender は何も送信しないSender実装。
// SMTPが設定されていない環境（開発・テスト）で使用する。
type NopSender struct{}

// Send は何もせずnilを返す。
func (NopSender) Send(_ context.Context, to, subject, _ string) error {
	log.Printf("[Mail] SMTP未設定のため送信をスキップ: to=%s subject=%q", to, subject)
	return nil
}
