package auth

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"auctionhouse/internal/api/middleware"
	"auctionhouse/internal/api/respond"
	"auctionhouse/internal/model"
	"auctionhouse/internal/service"

	"github.com/gin-gonic/gin"
)

// Service 是认证接口依赖的业务能力。
type Service interface {
	Register(ctx context.Context, in service.RegisterInput) error
	VerifyOTP(ctx context.Context, email, code string) (bool, error)
	Login(ctx context.Context, email, password string) (*service.Session, error)
	ForgotPassword(ctx context.Context, email string) error
	ResendOTP(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, email, code, newPassword string) error
	Refresh(ctx context.Context, refreshToken string) (string, *model.User, error)
	AccessTTL() time.Duration
	RefreshTTL() time.Duration
}

var _ Service = (*service.AuthService)(nil)

// Handler 提供注册、验证、登录与密码找回接口。
type Handler struct {
	svc           Service
	secureCookies bool
	logger        *slog.Logger
}

// NewHandler 创建 Auth Handler。secureCookies 为 true 时 Cookie 带 Secure 标记。
func NewHandler(svc Service, secureCookies bool, logger *slog.Logger) *Handler {
	return &Handler{
		svc:           svc,
		secureCookies: secureCookies,
		logger:        logger,
	}
}

type registerRequest struct {
	Name     string `json:"name" binding:"required,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=30"`
}

type verifyRequest struct {
	Email string `json:"email" binding:"required,email"`
	OTP   string `json:"otp" binding:"required,numeric,min=4,max=10"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type emailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type resetRequest struct {
	Email       string `json:"email" binding:"required,email"`
	OTP         string `json:"otp" binding:"required,numeric,min=4,max=10"`
	NewPassword string `json:"newPassword" binding:"required,min=8,max=30"`
}

// UserResponse 是用户信息的对外结构，不含密码与验证码。
type UserResponse struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Role       model.Role `json:"role"`
	IsVerified bool       `json:"isVerified"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// NewUserResponse 从用户记录构造响应。
func NewUserResponse(u *model.User) UserResponse {
	return UserResponse{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		Role:       u.Role,
		IsVerified: u.IsVerified,
		CreatedAt:  u.CreatedAt,
	}
}

// Register 创建未验证用户并发送验证码。
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BindError(c, err)
		return
	}
	err := h.svc.Register(c.Request.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "registration successful, check your email for the verification code"})
}

// VerifyOTP 校验注册验证码。
func (h *Handler) VerifyOTP(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BindError(c, err)
		return
	}
	already, err := h.svc.VerifyOTP(c.Request.Context(), req.Email, req.OTP)
	if err != nil {
		respond.Error(c, err)
		return
	}
	if already {
		c.JSON(http.StatusOK, gin.H{"message": "email already verified"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "email verified successfully"})
}

// Login 校验凭证，下发令牌并写入 Cookie。
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BindError(c, err)
		return
	}
	session, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respond.Error(c, err)
		return
	}

	h.setCookie(c, middleware.AccessCookie, session.AccessToken, h.svc.AccessTTL())
	h.setCookie(c, middleware.RefreshCookie, session.RefreshToken, h.svc.RefreshTTL())
	c.JSON(http.StatusOK, gin.H{
		"message":      "login successful",
		"user":         NewUserResponse(session.User),
		"accessToken":  session.AccessToken,
		"refreshToken": session.RefreshToken,
	})
}

// Logout 清除会话 Cookie。令牌本身无状态，不做服务端吊销。
func (h *Handler) Logout(c *gin.Context) {
	h.clearCookie(c, middleware.AccessCookie)
	h.clearCookie(c, middleware.RefreshCookie)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// ForgotPassword 发送找回密码验证码。
func (h *Handler) ForgotPassword(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BindError(c, err)
		return
	}
	if err := h.svc.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password reset code sent"})
}

// ResendOTP 重新发送注册验证码。
func (h *Handler) ResendOTP(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BindError(c, err)
		return
	}
	if err := h.svc.ResendOTP(c.Request.Context(), req.Email); err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "verification code sent"})
}

// ResetPassword 校验验证码后重置密码。
func (h *Handler) ResetPassword(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BindError(c, err)
		return
	}
	if err := h.svc.ResetPassword(c.Request.Context(), req.Email, req.OTP, req.NewPassword); err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password reset successful"})
}

// Refresh 用 refreshToken Cookie 换取新的访问令牌。
func (h *Handler) Refresh(c *gin.Context) {
	raw, err := c.Cookie(middleware.RefreshCookie)
	if err != nil || raw == "" {
		respond.Error(c, service.ErrUnauthenticated)
		return
	}
	access, user, err := h.svc.Refresh(c.Request.Context(), raw)
	if err != nil {
		respond.Error(c, err)
		return
	}
	h.setCookie(c, middleware.AccessCookie, access, h.svc.AccessTTL())
	if h.logger != nil {
		h.logger.Info("access token refreshed", slog.String("user_id", user.ID))
	}
	c.JSON(http.StatusOK, gin.H{"message": "token refreshed", "accessToken": access})
}

// Me 返回当前登录用户。
func (h *Handler) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respond.Error(c, service.ErrUnauthenticated)
		return
	}
	c.JSON(http.StatusOK, NewUserResponse(user))
}

func (h *Handler) setCookie(c *gin.Context, name, value string, ttl time.Duration) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, int(ttl.Seconds()), "/", "", h.secureCookies, true)
}

func (h *Handler) clearCookie(c *gin.Context, name string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, "", -1, "/", "", h.secureCookies, true)
}
