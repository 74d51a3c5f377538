package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"auctionhouse/internal/model"
	"auctionhouse/internal/pkg/metrics"
	"auctionhouse/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductStore 定义拍品存取接口。
type ProductStore interface {
	CreateProduct(ctx context.Context, p *model.Product) error
	FindProduct(ctx context.Context, id string) (*model.Product, error)
	FindProductDetailed(ctx context.Context, id string) (*model.Product, error)
	ListProducts(ctx context.Context, f store.ProductFilter) ([]model.Product, error)
	SaveProduct(ctx context.Context, p *model.Product) error
	DeleteProduct(ctx context.Context, id string) error
}

var (
	_ ProductStore = (*store.Gorm)(nil)
	_ ProductStore = (*store.Memory)(nil)
)

// CreateProductInput 创建拍品参数。状态与当前价由服务端决定。
type CreateProductInput struct {
	Name         string
	Description  string
	ImageURLs    []string
	InitialPrice decimal.Decimal
	StartDate    time.Time
	EndDate      time.Time
}

// UpdateProductInput 局部更新参数，nil 表示不修改。
type UpdateProductInput struct {
	Name         *string
	Description  *string
	ImageURLs    []string
	InitialPrice *decimal.Decimal
	StartDate    *time.Time
	EndDate      *time.Time
}

// ProductQuery 列表查询条件，零值表示不过滤。
type ProductQuery struct {
	Search         string
	MinPrice       *decimal.Decimal
	MaxPrice       *decimal.Decimal
	Status         string
	SortBy         string
	StartDateAfter *time.Time
	EndDateBefore  *time.Time
}

// ProductService 负责拍品的增删改查与管理员审核。
type ProductService struct {
	products ProductStore
	logger   *slog.Logger
}

// NewProductService 创建拍品服务。
func NewProductService(products ProductStore, logger *slog.Logger) *ProductService {
	return &ProductService{products: products, logger: logger}
}

// Create 以 PENDING 状态创建拍品，当前价等于起拍价，所有者为 creator。
func (s *ProductService) Create(ctx context.Context, in CreateProductInput, creator *model.User) (*model.Product, error) {
	if in.InitialPrice.IsNegative() {
		return nil, ErrNegativePrice
	}
	if !in.EndDate.After(in.StartDate) {
		return nil, ErrInvalidDateRange
	}

	p := &model.Product{
		Name:         in.Name,
		Description:  in.Description,
		ImageURLs:    in.ImageURLs,
		InitialPrice: in.InitialPrice,
		CurrentPrice: in.InitialPrice,
		Status:       model.StatusPending,
		StartDate:    in.StartDate,
		EndDate:      in.EndDate,
		OwnerID:      creator.ID,
	}
	if err := s.products.CreateProduct(ctx, p); err != nil {
		s.logError("create product failed", "", err)
		return nil, wrap(ErrInternal, err)
	}
	p.Owner = &model.User{ID: creator.ID, Name: creator.Name, Email: creator.Email}

	metrics.ProductsCreatedTotal.Inc()
	if s.logger != nil {
		s.logger.Info("product created", slog.String("product_id", p.ID), slog.String("owner_id", creator.ID))
	}
	return p, nil
}

// List 按条件查询拍品。
func (s *ProductService) List(ctx context.Context, q ProductQuery) ([]model.Product, error) {
	sort, err := store.ParseSort(q.SortBy)
	if err != nil {
		return nil, ErrInvalidSort
	}
	status := model.ProductStatus(q.Status)
	if status != "" && !status.Valid() {
		return nil, ErrInvalidStatusFilter
	}

	filter := store.ProductFilter{
		Search:         q.Search,
		MinPrice:       q.MinPrice,
		MaxPrice:       q.MaxPrice,
		Status:         status,
		StartDateAfter: q.StartDateAfter,
		EndDateBefore:  q.EndDateBefore,
		Sort:           sort,
	}
	items, err := s.products.ListProducts(ctx, filter)
	if err != nil {
		s.logError("list products failed", "", err)
		return nil, wrap(ErrInternal, err)
	}
	return items, nil
}

// Get 返回拍品详情，附带所有者与审核人公开资料。
func (s *ProductService) Get(ctx context.Context, id string) (*model.Product, error) {
	pid, err := parseProductID(id)
	if err != nil {
		return nil, err
	}
	p, err := s.products.FindProductDetailed(ctx, pid)
	if err != nil {
		return nil, s.lookupError(pid, err)
	}
	return p, nil
}

// Update 合并非空字段。仅所有者可修改，且状态须为 PENDING 或 REJECTED。
func (s *ProductService) Update(ctx context.Context, id string, in UpdateProductInput, requester *model.User) (*model.Product, error) {
	p, err := s.loadMutable(ctx, id, requester)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		p.Name = *in.Name
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.ImageURLs != nil {
		p.ImageURLs = in.ImageURLs
	}
	if in.InitialPrice != nil {
		if in.InitialPrice.IsNegative() {
			return nil, ErrNegativePrice
		}
		// 审核通过前没有出价，当前价跟随起拍价。
		p.InitialPrice = *in.InitialPrice
		p.CurrentPrice = *in.InitialPrice
	}
	if in.StartDate != nil {
		p.StartDate = *in.StartDate
	}
	if in.EndDate != nil {
		p.EndDate = *in.EndDate
	}
	if !p.EndDate.After(p.StartDate) {
		return nil, ErrInvalidDateRange
	}

	if err := s.products.SaveProduct(ctx, p); err != nil {
		s.logError("save product failed", p.ID, err)
		return nil, wrap(ErrInternal, err)
	}
	if s.logger != nil {
		s.logger.Info("product updated", slog.String("product_id", p.ID), slog.String("owner_id", requester.ID))
	}
	return s.detailed(ctx, p)
}

// Delete 删除拍品，校验规则与 Update 相同。
func (s *ProductService) Delete(ctx context.Context, id string, requester *model.User) error {
	p, err := s.loadMutable(ctx, id, requester)
	if err != nil {
		return err
	}
	if err := s.products.DeleteProduct(ctx, p.ID); err != nil {
		return s.lookupError(p.ID, err)
	}
	if s.logger != nil {
		s.logger.Info("product deleted", slog.String("product_id", p.ID), slog.String("user_id", requester.ID))
	}
	return nil
}

// Decide 管理员审核 PENDING 拍品，写入结果与审核人。每个拍品只能审核一次。
func (s *ProductService) Decide(ctx context.Context, id string, decision model.ProductStatus, admin *model.User) (*model.Product, error) {
	if !decision.IsDecision() {
		return nil, ErrInvalidDecision
	}
	pid, err := parseProductID(id)
	if err != nil {
		return nil, err
	}
	p, err := s.products.FindProduct(ctx, pid)
	if err != nil {
		return nil, s.lookupError(pid, err)
	}
	if p.Status != model.StatusPending {
		return nil, ErrNotPending
	}

	adminID := admin.ID
	p.Status = decision
	p.ApprovedByID = &adminID
	if err := s.products.SaveProduct(ctx, p); err != nil {
		s.logError("save product decision failed", p.ID, err)
		return nil, wrap(ErrInternal, err)
	}

	metrics.ProductDecisionsTotal.WithLabelValues(string(decision)).Inc()
	if s.logger != nil {
		s.logger.Info("product reviewed",
			slog.String("product_id", p.ID),
			slog.String("status", string(decision)),
			slog.String("admin_id", admin.ID),
		)
	}
	return s.detailed(ctx, p)
}

// loadMutable 依次校验 id 格式、存在性、所有权与状态。
func (s *ProductService) loadMutable(ctx context.Context, id string, requester *model.User) (*model.Product, error) {
	pid, err := parseProductID(id)
	if err != nil {
		return nil, err
	}
	p, err := s.products.FindProduct(ctx, pid)
	if err != nil {
		return nil, s.lookupError(pid, err)
	}
	if requester == nil || !p.OwnedBy(requester.ID) {
		return nil, ErrNotOwner
	}
	if !p.Status.OwnerMutable() {
		return nil, ErrProductImmutable
	}
	return p, nil
}

// detailed 重新读取带关联资料的拍品；读取失败时退回已保存的数据。
func (s *ProductService) detailed(ctx context.Context, p *model.Product) (*model.Product, error) {
	full, err := s.products.FindProductDetailed(ctx, p.ID)
	if err != nil {
		s.logError("reload product failed", p.ID, err)
		return p, nil
	}
	return full, nil
}

func (s *ProductService) lookupError(id string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrProductNotFound
	}
	s.logError("query product failed", id, err)
	return wrap(ErrInternal, err)
}

func (s *ProductService) logError(msg, productID string, err error) {
	if s.logger == nil {
		return
	}
	attrs := []any{slog.String("error", err.Error())}
	if productID != "" {
		attrs = append(attrs, slog.String("product_id", productID))
	}
	s.logger.Error(msg, attrs...)
}

func parseProductID(id string) (string, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", ErrInvalidProductID
	}
	return parsed.String(), nil
}
