package store

import (
	"context"

	"auctionhouse/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Gorm 基于 gorm 的存储实现，支持 MySQL 与 PostgreSQL。
type Gorm struct {
	db *gorm.DB
}

// NewGorm 创建 gorm 存储。db 需以 TranslateError: true 打开，重复键才能被识别。
func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

// AutoMigrate 自动迁移用户与拍品表。
func (s *Gorm) AutoMigrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&model.User{}, &model.Product{})
}

// Ping 检查数据库连接。
func (s *Gorm) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close 关闭底层连接池。
func (s *Gorm) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Gorm) CreateUser(ctx context.Context, u *model.User) error {
	return translate("create user", s.db.WithContext(ctx).Create(u).Error)
}

func (s *Gorm) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, translate("find user by email", err)
	}
	return &u, nil
}

func (s *Gorm) FindUserByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, translate("find user by id", err)
	}
	return &u, nil
}

func (s *Gorm) SaveUser(ctx context.Context, u *model.User) error {
	return translate("save user", s.update(ctx, &model.User{}, u.ID, u))
}

func (s *Gorm) CreateProduct(ctx context.Context, p *model.Product) error {
	return translate("create product", s.db.WithContext(ctx).Omit(clause.Associations).Create(p).Error)
}

// FindProduct 只加载拍品本身，用于权限判断与写操作。
func (s *Gorm) FindProduct(ctx context.Context, id string) (*model.Product, error) {
	var p model.Product
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, translate("find product", err)
	}
	return &p, nil
}

// FindProductDetailed 加载拍品并附带所有者与审核人的公开资料。
func (s *Gorm) FindProductDetailed(ctx context.Context, id string) (*model.Product, error) {
	var p model.Product
	err := s.db.WithContext(ctx).
		Preload("Owner", selectProfile).
		Preload("ApprovedBy", selectProfile).
		Where("id = ?", id).
		First(&p).Error
	if err != nil {
		return nil, translate("find product", err)
	}
	return &p, nil
}

// ListProducts 按过滤条件查询拍品，并附带所有者公开资料。
func (s *Gorm) ListProducts(ctx context.Context, f ProductFilter) ([]model.Product, error) {
	var out []model.Product
	tx := f.Apply(s.db.WithContext(ctx).Model(&model.Product{}))
	if err := tx.Preload("Owner", selectProfile).Find(&out).Error; err != nil {
		return nil, translate("list products", err)
	}
	return out, nil
}

func (s *Gorm) SaveProduct(ctx context.Context, p *model.Product) error {
	return translate("save product", s.update(ctx, &model.Product{}, p.ID, p))
}

// update 覆盖整行但从不插入：记录已被删除时返回 ErrRecordNotFound，而不是像 Save 那样回写一行。
func (s *Gorm) update(ctx context.Context, table any, id string, value any) error {
	res := updateAll(s.db.WithContext(ctx), value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	// MySQL 在值未变化时也会报告 0 行，需再确认记录是否存在
	var n int64
	if err := s.db.WithContext(ctx).Model(table).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func updateAll(tx *gorm.DB, value any) *gorm.DB {
	return tx.Model(value).Select("*").Omit(clause.Associations).Updates(value)
}

func (s *Gorm) DeleteProduct(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Product{})
	if res.Error != nil {
		return translate("delete product", res.Error)
	}
	if res.RowsAffected == 0 {
		return translate("delete product", gorm.ErrRecordNotFound)
	}
	return nil
}

func selectProfile(tx *gorm.DB) *gorm.DB {
	return tx.Select("id", "name", "email")
}
