package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"auctionhouse/internal/config"

	"gopkg.in/gomail.v2"
)

// EmailNotifier 通过 SMTP 发送验证码邮件。
type EmailNotifier struct {
	cfg    *config.EmailConfig
	logger *slog.Logger
}

// NewEmailNotifier 创建一个新的邮件通知器。
func NewEmailNotifier(cfg *config.EmailConfig, logger *slog.Logger) *EmailNotifier {
	return &EmailNotifier{
		cfg:    cfg,
		logger: logger,
	}
}

// SendOTP 发送验证码邮件。
func (n *EmailNotifier) SendOTP(ctx context.Context, toEmail, code string, purpose Purpose, ttl time.Duration) error {
	if n.cfg == nil || !n.cfg.Configured() {
		return fmt.Errorf("email config missing")
	}
	if strings.TrimSpace(toEmail) == "" {
		return fmt.Errorf("empty recipient")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	subject, body := composeOTP(purpose, code, ttl)
	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.FromEmail)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	d := gomail.NewDialer(n.cfg.SMTPHost, n.cfg.SMTPPort, n.cfg.SMTPUser, n.cfg.SMTPPass)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	if n.logger != nil {
		n.logger.Info("otp email sent", slog.String("to", toEmail), slog.String("purpose", string(purpose)))
	}
	return nil
}

// LogNotifier 只把验证码写入日志，用于未配置 SMTP 的本地环境。
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier 创建日志通知器。
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// SendOTP 记录验证码。
func (n *LogNotifier) SendOTP(_ context.Context, toEmail, code string, purpose Purpose, ttl time.Duration) error {
	if n.logger != nil {
		n.logger.Warn("smtp not configured, otp logged instead of mailed",
			slog.String("to", toEmail),
			slog.String("purpose", string(purpose)),
			slog.String("code", code),
			slog.String("ttl", ttl.String()),
		)
	}
	return nil
}

func composeOTP(purpose Purpose, code string, ttl time.Duration) (string, string) {
	subject := "[Auction] Verify your email"
	intro := "Use the code below to verify your email address."
	if purpose == PurposeReset {
		subject = "[Auction] Password reset code"
		intro = "Use the code below to reset your password. If you did not ask for this, ignore this email."
	}
	minutes := int(ttl.Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}

	body := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
  <div style="max-width: 520px; margin: 0 auto; padding: 16px;">
    <p>%s</p>
    <div style="font-size: 28px; font-weight: bold; letter-spacing: 3px;">%s</div>
    <p>The code expires in %d minutes.</p>
  </div>
</body>
</html>`, intro, code, minutes)
	return subject, body
}
