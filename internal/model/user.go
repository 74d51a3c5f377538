package model

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Role 表示用户角色。
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// PasswordCost 是 bcrypt 的哈希成本。
var PasswordCost = bcrypt.DefaultCost

// User 表示平台用户。
//
// OTP 与 OTPExpiry 要么同时为空，要么同时有值。
type User struct {
	ID         string     `gorm:"type:char(36);primaryKey"`                // 用户 ID (UUID)
	Name       string     `gorm:"type:varchar(100);not null"`              // 姓名
	Email      string     `gorm:"type:varchar(191);uniqueIndex;not null"`  // 邮箱（唯一）
	Password   string     `gorm:"not null"`                                // bcrypt 哈希
	Role       Role       `gorm:"type:varchar(16);not null;default:USER"`  // 角色: USER / ADMIN
	IsVerified bool       `gorm:"not null;default:false"`                  // 邮箱是否已验证
	OTP        *string    `gorm:"column:otp;type:varchar(16)"`             // 一次性验证码
	OTPExpiry  *time.Time `gorm:"column:otp_expiry"`                       // 验证码过期时间
	CreatedAt  time.Time                                                   // 创建时间
	UpdatedAt  time.Time                                                   // 更新时间
}

// BeforeCreate 为新用户分配 UUID。
func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// SetPassword 对明文密码做 bcrypt 哈希并替换原值。
func (u *User) SetPassword(plain string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), PasswordCost)
	if err != nil {
		return err
	}
	u.Password = string(hash)
	return nil
}

// CheckPassword 校验明文密码是否与哈希一致。
func (u *User) CheckPassword(plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(plain)) == nil
}

// SetOTP 写入验证码及其过期时间。
func (u *User) SetOTP(code string, expiry time.Time) {
	u.OTP = &code
	u.OTPExpiry = &expiry
}

// ClearOTP 清除验证码。
func (u *User) ClearOTP() {
	u.OTP = nil
	u.OTPExpiry = nil
}

// Profile 是对外公开的用户信息。
type Profile struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// PublicProfile 返回用户的公开资料（不含密码与验证码）。
func (u *User) PublicProfile() Profile {
	return Profile{ID: u.ID, Name: u.Name, Email: u.Email}
}
