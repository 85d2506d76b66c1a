package notify

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"storefront/internal/config"
)

// Sender 发送一封渲染好的邮件。
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// SMTPSender 基于 go-mail 的 SMTP 发送端。465 端口走隐式 TLS，其余端口尝试 STARTTLS。
type SMTPSender struct {
	from   string
	client *mail.Client
}

func NewSMTPSender(cfg config.SMTPConfig) (*SMTPSender, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.User),
		mail.WithPassword(cfg.Pass),
	}
	if cfg.Port == 465 {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	c, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	from := cfg.From
	if from == "" {
		from = cfg.User
	}
	return &SMTPSender{from: from, client: c}, nil
}

func (s *SMTPSender) Send(ctx context.Context, m Message) error {
	msg := mail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(m.To); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(m.Subject)
	msg.SetBodyString(mail.TypeTextPlain, m.Text)
	msg.AddAlternativeString(mail.TypeTextHTML, m.HTML)
	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// LogSender SMTP 未配置时的兜底：只把邮件内容写日志。
type LogSender struct {
	log *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{log: logger.With(zap.String("component", "mail"))}
}

func (s *LogSender) Send(_ context.Context, m Message) error {
	s.log.Info("mock_email",
		zap.String("to", m.To),
		zap.String("subject", m.Subject),
		zap.String("text", m.Text),
	)
	return nil
}

// Mailer 用 Renderer 渲染后交给 Sender 发送，实现 Notifier。
type Mailer struct {
	renderer Renderer
	sender   Sender
}

func NewMailer(store string, sender Sender) *Mailer {
	return &Mailer{renderer: Renderer{Store: store}, sender: sender}
}

func (m *Mailer) NotifyPaid(ctx context.Context, recipient string, o OrderSummary, p ProductSummary) error {
	msg, err := m.renderer.Paid(recipient, o, p)
	if err != nil {
		return err
	}
	return m.sender.Send(ctx, msg)
}

func (m *Mailer) NotifyDelivery(ctx context.Context, recipient string, o OrderSummary, p ProductSummary, items []ItemSummary) error {
	msg, err := m.renderer.Delivery(recipient, o, p, items)
	if err != nil {
		return err
	}
	return m.sender.Send(ctx, msg)
}

// New 根据 SMTP 配置选择真实发送或日志模式。
func New(store string, cfg config.SMTPConfig, logger *zap.Logger) (*Mailer, error) {
	if !cfg.Enabled() {
		return NewMailer(store, NewLogSender(logger)), nil
	}
	s, err := NewSMTPSender(cfg)
	if err != nil {
		return nil, err
	}
	return NewMailer(store, s), nil
}
