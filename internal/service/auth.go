package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"auctionhouse/internal/model"
	"auctionhouse/internal/pkg/metrics"
	"auctionhouse/internal/pkg/notify"
	"auctionhouse/internal/pkg/otp"
	"auctionhouse/internal/pkg/token"
	"auctionhouse/internal/store"
)

// UserStore 定义认证流程所需的用户存取接口。
type UserStore interface {
	CreateUser(ctx context.Context, u *model.User) error
	FindUserByEmail(ctx context.Context, email string) (*model.User, error)
	FindUserByID(ctx context.Context, id string) (*model.User, error)
	SaveUser(ctx context.Context, u *model.User) error
}

// Mailer 投递验证码。
type Mailer interface {
	SendOTP(ctx context.Context, toEmail, code string, purpose notify.Purpose, ttl time.Duration) error
}

// Throttle 限制同一邮箱的验证码发送频率。
type Throttle interface {
	Acquire(ctx context.Context, subject string) (bool, time.Duration, error)
	Release(ctx context.Context, subject string) error
}

var (
	_ UserStore = (*store.Gorm)(nil)
	_ UserStore = (*store.Memory)(nil)
)

// RegisterInput 注册参数。
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// Session 登录成功后的身份与令牌。
type Session struct {
	User         *model.User
	AccessToken  string
	RefreshToken string
}

// AuthService 负责注册、邮箱验证、登录与密码找回。
type AuthService struct {
	users    UserStore
	mailer   Mailer
	throttle Throttle
	otp      *otp.Challenge
	tokens   *token.Manager
	logger   *slog.Logger
	now      func() time.Time
}

// NewAuthService 创建认证服务。throttle 可为 nil（不限制重发频率）。
func NewAuthService(users UserStore, mailer Mailer, throttle Throttle, challenge *otp.Challenge, tokens *token.Manager, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:    users,
		mailer:   mailer,
		throttle: throttle,
		otp:      challenge,
		tokens:   tokens,
		logger:   logger,
		now:      time.Now,
	}
}

// AccessTTL 返回访问令牌有效期。
func (s *AuthService) AccessTTL() time.Duration { return s.tokens.AccessTTL() }

// RefreshTTL 返回刷新令牌有效期。
func (s *AuthService) RefreshTTL() time.Duration { return s.tokens.RefreshTTL() }

// Register 创建未验证用户并发送验证码。
//
// 用户先落库再发信，发信失败时返回内部错误但不回滚用户。
func (s *AuthService) Register(ctx context.Context, in RegisterInput) error {
	_, err := s.users.FindUserByEmail(ctx, in.Email)
	if err == nil {
		metrics.AuthEventsTotal.WithLabelValues("register", "duplicate").Inc()
		return ErrEmailTaken
	}
	if !errors.Is(err, store.ErrNotFound) {
		s.logError("query user failed", in.Email, err)
		return wrap(ErrRegisterFailed, err)
	}

	user := &model.User{
		Name:  in.Name,
		Email: in.Email,
		Role:  model.RoleUser,
	}
	if err := user.SetPassword(in.Password); err != nil {
		s.logError("hash password failed", in.Email, err)
		return wrap(ErrRegisterFailed, err)
	}
	code, exp, err := s.otp.Generate(s.now())
	if err != nil {
		s.logError("generate otp failed", in.Email, err)
		return wrap(ErrRegisterFailed, err)
	}
	user.SetOTP(code, exp)

	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return ErrEmailTaken
		}
		s.logError("create user failed", in.Email, err)
		return wrap(ErrRegisterFailed, err)
	}

	if err := s.send(ctx, user.Email, code, notify.PurposeVerify); err != nil {
		return wrap(ErrSendOTPFailed, err)
	}
	metrics.AuthEventsTotal.WithLabelValues("register", "ok").Inc()
	if s.logger != nil {
		s.logger.Info("user registered", slog.String("email", user.Email), slog.String("user_id", user.ID))
	}
	return nil
}

// VerifyOTP 校验注册验证码。已验证的用户直接返回 alreadyVerified=true，不做任何修改。
func (s *AuthService) VerifyOTP(ctx context.Context, email, code string) (alreadyVerified bool, err error) {
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	if user.IsVerified {
		return true, nil
	}
	if err := s.checkOTP(user, code); err != nil {
		metrics.AuthEventsTotal.WithLabelValues("verify", "rejected").Inc()
		return false, err
	}

	user.IsVerified = true
	user.ClearOTP()
	if err := s.users.SaveUser(ctx, user); err != nil {
		s.logError("save verified user failed", email, err)
		return false, wrap(ErrInternal, err)
	}
	metrics.AuthEventsTotal.WithLabelValues("verify", "ok").Inc()
	if s.logger != nil {
		s.logger.Info("email verified", slog.String("email", email))
	}
	return false, nil
}

// Login 校验凭证并签发令牌对。
//
// 用户不存在、未验证、密码错误统一返回 ErrInvalidCredentials。
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			metrics.AuthEventsTotal.WithLabelValues("login", "rejected").Inc()
			return nil, ErrInvalidCredentials
		}
		s.logError("query user failed", email, err)
		return nil, wrap(ErrInternal, err)
	}
	if !user.IsVerified || !user.CheckPassword(password) {
		metrics.AuthEventsTotal.WithLabelValues("login", "rejected").Inc()
		return nil, ErrInvalidCredentials
	}

	access, err := s.tokens.IssueAccess(identityOf(user))
	if err != nil {
		s.logError("sign access token failed", email, err)
		return nil, wrap(ErrInternal, err)
	}
	refresh, err := s.tokens.IssueRefresh(user.ID)
	if err != nil {
		s.logError("sign refresh token failed", email, err)
		return nil, wrap(ErrInternal, err)
	}

	metrics.AuthEventsTotal.WithLabelValues("login", "ok").Inc()
	if s.logger != nil {
		s.logger.Info("user logged in", slog.String("email", email), slog.String("role", string(user.Role)))
	}
	return &Session{User: user, AccessToken: access, RefreshToken: refresh}, nil
}

// ForgotPassword 为用户生成新的验证码并发送找回密码邮件。
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return err
	}
	return s.reissue(ctx, user, notify.PurposeReset)
}

// ResendOTP 为未验证用户重新发送注册验证码。
func (s *AuthService) ResendOTP(ctx context.Context, email string) error {
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user.IsVerified {
		return ErrAlreadyVerified
	}
	return s.reissue(ctx, user, notify.PurposeVerify)
}

// ResetPassword 校验验证码后重置密码，同时视为邮箱已验证。
func (s *AuthService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err := s.checkOTP(user, code); err != nil {
		metrics.AuthEventsTotal.WithLabelValues("reset", "rejected").Inc()
		return err
	}
	if err := user.SetPassword(newPassword); err != nil {
		s.logError("hash password failed", email, err)
		return wrap(ErrInternal, err)
	}
	user.ClearOTP()
	user.IsVerified = true
	if err := s.users.SaveUser(ctx, user); err != nil {
		s.logError("save reset password failed", email, err)
		return wrap(ErrInternal, err)
	}
	metrics.AuthEventsTotal.WithLabelValues("reset", "ok").Inc()
	if s.logger != nil {
		s.logger.Info("password reset", slog.String("email", email))
	}
	return nil
}

// Refresh 用刷新令牌换取新的访问令牌。用户必须仍然存在且已验证。
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, *model.User, error) {
	claims, err := s.tokens.Parse(refreshToken, token.TypeRefresh)
	if err != nil {
		return "", nil, ErrInvalidToken
	}
	user, err := s.findByID(ctx, claims.Subject)
	if err != nil {
		return "", nil, err
	}
	if !user.IsVerified {
		return "", nil, ErrInvalidToken
	}
	access, err := s.tokens.IssueAccess(identityOf(user))
	if err != nil {
		s.logError("sign access token failed", user.Email, err)
		return "", nil, wrap(ErrInternal, err)
	}
	return access, user, nil
}

// Authenticate 校验访问令牌并返回数据库中的当前用户。
//
// 令牌有效但用户已不存在时视为未认证。
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*model.User, error) {
	if accessToken == "" {
		return nil, ErrUnauthenticated
	}
	claims, err := s.tokens.Parse(accessToken, token.TypeAccess)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return s.findByID(ctx, claims.Subject)
}

// EnsureAdmin 确保存在一个已验证的管理员账户，返回是否新建。
func (s *AuthService) EnsureAdmin(ctx context.Context, name, email, password string) (bool, error) {
	user, err := s.users.FindUserByEmail(ctx, email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return false, err
	}
	if err == nil {
		if user.Role == model.RoleAdmin && user.IsVerified {
			return false, nil
		}
		user.Role = model.RoleAdmin
		user.IsVerified = true
		user.ClearOTP()
		return false, s.users.SaveUser(ctx, user)
	}

	user = &model.User{
		Name:       name,
		Email:      email,
		Role:       model.RoleAdmin,
		IsVerified: true,
	}
	if err := user.SetPassword(password); err != nil {
		return false, err
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return false, err
	}
	return true, nil
}

// reissue 生成新验证码、落库并发送；发送失败时释放频控。
func (s *AuthService) reissue(ctx context.Context, user *model.User, purpose notify.Purpose) error {
	if s.throttle != nil {
		ok, wait, err := s.throttle.Acquire(ctx, user.Email)
		if err != nil {
			// Redis 不可用时放行。
			if s.logger != nil {
				s.logger.Warn("otp throttle unavailable", slog.String("email", user.Email), slog.String("error", err.Error()))
			}
		} else if !ok {
			metrics.RateLimitedTotal.WithLabelValues("otp_cooldown").Inc()
			return TooManyRequests(wait)
		}
	}

	code, exp, err := s.otp.Generate(s.now())
	if err != nil {
		s.release(ctx, user.Email)
		s.logError("generate otp failed", user.Email, err)
		return wrap(ErrInternal, err)
	}
	user.SetOTP(code, exp)
	if err := s.users.SaveUser(ctx, user); err != nil {
		s.release(ctx, user.Email)
		s.logError("save otp failed", user.Email, err)
		return wrap(ErrInternal, err)
	}
	if err := s.send(ctx, user.Email, code, purpose); err != nil {
		s.release(ctx, user.Email)
		return wrap(ErrSendOTPFailed, err)
	}
	if s.logger != nil {
		s.logger.Info("otp issued", slog.String("email", user.Email), slog.String("purpose", string(purpose)))
	}
	return nil
}

func (s *AuthService) send(ctx context.Context, email, code string, purpose notify.Purpose) error {
	if s.mailer == nil {
		metrics.OTPSentTotal.WithLabelValues(string(purpose), "error").Inc()
		s.logError("email notifier not configured", email, errors.New("nil mailer"))
		return errors.New("email notifier not configured")
	}
	if err := s.mailer.SendOTP(ctx, email, code, purpose, s.otp.TTL()); err != nil {
		metrics.OTPSentTotal.WithLabelValues(string(purpose), "error").Inc()
		s.logError("send otp email failed", email, err)
		return err
	}
	metrics.OTPSentTotal.WithLabelValues(string(purpose), "ok").Inc()
	return nil
}

func (s *AuthService) release(ctx context.Context, email string) {
	if s.throttle == nil {
		return
	}
	if err := s.throttle.Release(ctx, email); err != nil && s.logger != nil {
		s.logger.Warn("release otp throttle failed", slog.String("email", email), slog.String("error", err.Error()))
	}
}

func (s *AuthService) checkOTP(user *model.User, code string) error {
	switch otp.Validate(user.OTP, user.OTPExpiry, code, s.now()) {
	case otp.Absent:
		return ErrOTPAbsent
	case otp.Mismatched:
		return ErrOTPMismatch
	case otp.Expired:
		return ErrOTPExpired
	}
	return nil
}

func (s *AuthService) findByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := s.users.FindUserByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	s.logError("query user failed", email, err)
	return nil, wrap(ErrInternal, err)
}

func (s *AuthService) findByID(ctx context.Context, id string) (*model.User, error) {
	user, err := s.users.FindUserByID(ctx, id)
	if err == nil {
		return user, nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if s.logger != nil {
		s.logger.Error("query user by id failed", slog.String("user_id", id), slog.String("error", err.Error()))
	}
	return nil, wrap(ErrInternal, err)
}

func (s *AuthService) logError(msg, email string, err error) {
	if s.logger != nil {
		s.logger.Error(msg, slog.String("email", email), slog.String("error", err.Error()))
	}
}

func identityOf(u *model.User) token.Identity {
	return token.Identity{
		ID:         u.ID,
		Email:      u.Email,
		Name:       u.Name,
		Role:       string(u.Role),
		IsVerified: u.IsVerified,
	}
}
