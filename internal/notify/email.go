package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	gomail "gopkg.in/mail.v2"

	"github.com/spigell/bidradar/internal/subscriber"
)

// EmailConfig holds SMTP settings for outgoing alerts.
type EmailConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	SMTPServer string        `mapstructure:"smtp-server"`
	SMTPPort   int           `mapstructure:"smtp-port"`
	SMTPUser   string        `mapstructure:"smtp-user"`
	SMTPPass   string        `mapstructure:"-"`
	From       string        `mapstructure:"from"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Email delivers alerts through SMTP with an HTML body and plain text fallback.
type Email struct {
	cfg      EmailConfig
	renderer *Renderer
	sender   mailSender
	logger   *zap.Logger
}

func NewEmail(cfg EmailConfig, logger *zap.Logger) (*Email, error) {
	if strings.TrimSpace(cfg.SMTPServer) == "" {
		return nil, errors.New("smtp server is required")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, errors.New("sender address is required")
	}
	if cfg.SMTPPort == 0 {
		cfg.SMTPPort = 587
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	dialer := gomail.NewDialer(cfg.SMTPServer, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass)
	dialer.Timeout = cfg.Timeout

	return &Email{cfg: cfg, renderer: NewRenderer(), sender: dialer, logger: logger}, nil
}

func (e *Email) Name() string { return "email" }

func (e *Email) Enabled(sub *subscriber.Subscriber) bool {
	return e.cfg.Enabled && sub.Channels.EmailEnabled && strings.TrimSpace(sub.Email) != ""
}

func (e *Email) Send(ctx context.Context, m Match) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rendered, err := e.renderer.Render(m)
	if err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", e.cfg.From)
	msg.SetHeader("To", m.Subscriber.Email)
	msg.SetHeader("Subject", rendered.Subject)
	msg.SetBody("text/plain", rendered.Text)
	msg.AddAlternative("text/html", rendered.HTML)

	// gomail has no context support; the dialer timeout bounds the call.
	done := make(chan error, 1)
	go func() { done <- e.sender.DialAndSend(msg) }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send email to %s: %w", m.Subscriber.Email, err)
		}
	}

	e.logger.Debug("email sent", zap.String("subject", rendered.Subject))
	return nil
}
