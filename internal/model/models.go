package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func init() {
	// 价格以数字而非字符串输出。
	decimal.MarshalJSONWithoutQuotes = true
}

// ProductStatus 表示拍品的审核/拍卖状态。
type ProductStatus string

const (
	StatusPending  ProductStatus = "PENDING"  // 用户提交，等待管理员审核
	StatusApproved ProductStatus = "APPROVED" // 管理员已通过，拍卖尚未开始
	StatusRejected ProductStatus = "REJECTED" // 管理员已拒绝
	StatusActive   ProductStatus = "ACTIVE"   // 拍卖进行中
	StatusFinished ProductStatus = "FINISHED" // 拍卖已结束
)

// Valid 判断状态值是否属于已知枚举。
func (s ProductStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusActive, StatusFinished:
		return true
	}
	return false
}

// OwnerMutable 只有 PENDING 与 REJECTED 状态允许所有者修改或删除。
func (s ProductStatus) OwnerMutable() bool {
	return s == StatusPending || s == StatusRejected
}

// IsDecision 判断状态是否为管理员审核结果。
func (s ProductStatus) IsDecision() bool {
	return s == StatusApproved || s == StatusRejected
}

// Product 表示一件拍品。
//
// OwnerID 在创建后不可变；ApprovedByID 仅在管理员审核时写入。
type Product struct {
	ID           string          `gorm:"type:char(36);primaryKey"`          // 拍品 ID (UUID)
	Name         string          `gorm:"type:varchar(100);not null"`        // 名称
	Description  string          `gorm:"type:varchar(500)"`                 // 描述
	ImageURLs    []string        `gorm:"column:image_urls;serializer:json"` // 图片链接
	InitialPrice decimal.Decimal `gorm:"type:decimal(18,2);not null"`       // 起拍价
	CurrentPrice decimal.Decimal `gorm:"type:decimal(18,2);not null"`       // 当前价
	Status       ProductStatus   `gorm:"type:varchar(16);not null;default:PENDING;index"`
	StartDate    time.Time       `gorm:"not null"` // 拍卖开始时间
	EndDate      time.Time       `gorm:"not null"` // 拍卖结束时间

	OwnerID      string  `gorm:"type:char(36);not null;index;<-:create"` // 所有者 ID
	Owner        *User   `gorm:"foreignKey:OwnerID"`
	ApprovedByID *string `gorm:"type:char(36)"` // 审核管理员 ID
	ApprovedBy   *User   `gorm:"foreignKey:ApprovedByID"`

	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

// BeforeCreate 为新拍品分配 UUID。
func (p *Product) BeforeCreate(_ *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// OwnedBy 判断拍品是否属于指定用户。
func (p *Product) OwnedBy(userID string) bool {
	return userID != "" && p.OwnerID == userID
}
