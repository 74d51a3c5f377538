package notify

import (
	"context"
	"time"
)

// Purpose 表示验证码邮件的用途。
type Purpose string

const (
	PurposeVerify Purpose = "verify" // 注册 / 重新发送的邮箱验证
	PurposeReset  Purpose = "reset"  // 找回密码
)

// Notifier 定义验证码投递接口。
type Notifier interface {
	// SendOTP 发送一次性验证码。
	//
	// 参数:
	//   ctx: 上下文
	//   toEmail: 接收邮箱
	//   code: 验证码
	//   purpose: 用途（决定邮件标题与文案）
	//   ttl: 验证码有效期，用于邮件提示
	SendOTP(ctx context.Context, toEmail, code string, purpose Purpose, ttl time.Duration) error
}
