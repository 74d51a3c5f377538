package product

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
	"github.com/shopspring/decimal"
)

// Service 是拍品接口依赖的业务能力。
type Service interface {
	Create(ctx context.Context, in service.CreateProductInput, creator *model.User) (*model.Product, error)
	List(ctx context.Context, q service.ProductQuery) ([]model.Product, error)
	Get(ctx context.Context, id string) (*model.Product, error)
	Update(ctx context.Context, id string, in service.UpdateProductInput, requester *model.User) (*model.Product, error)
	Delete(ctx context.Context, id string, requester *model.User) error
	Decide(ctx context.Context, id string, decision model.ProductStatus, admin *model.User) (*model.Product, error)
}

var _ Service = (*service.ProductService)(nil)

// Handler 提供拍品的增删改查与审核接口。
type Handler struct {
	svc    Service
	logger *slog.Logger
}

// NewHandler 创建 Product Handler。
func NewHandler(svc Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

type createRequest struct {
	Name         string     `json:"name" binding:"required,max=100"`
	Description  string     `json:"description" binding:"max=500"`
	ImageURLs    []string   `json:"imageUrls" binding:"required,min=1,dive,url"`
	InitialPrice *price     `json:"initialPrice" binding:"required"`
	StartDate    *time.Time `json:"startDate" binding:"required"`
	EndDate      *time.Time `json:"endDate" binding:"required"`
}

// updateRequest 所有字段可选；imageUrls 一旦提供就不能为空。
type updateRequest struct {
	Name         *string    `json:"name" binding:"omitempty,min=1,max=100"`
	Description  *string    `json:"description" binding:"omitempty,max=500"`
	ImageURLs    []string   `json:"imageUrls" binding:"omitempty,min=1,dive,url"`
	InitialPrice *price     `json:"initialPrice"`
	StartDate    *time.Time `json:"startDate"`
	EndDate      *time.Time `json:"endDate"`
}

// price 解析失败时返回 *respond.NumberError。
type price struct {
	decimal.Decimal
}

func (p *price) UnmarshalJSON(b []byte) error {
	if err := p.Decimal.UnmarshalJSON(b); err != nil {
		return &respond.NumberError{Err: err}
	}
	return nil
}

func (p *price) value() *decimal.Decimal {
	if p == nil {
		return nil
	}
	return &p.Decimal
}

type decideRequest struct {
	Status string `json:"status" binding:"required,oneof=APPROVED REJECTED"`
}

// Response 是拍品的对外结构。
type Response struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	Description  string              `json:"description"`
	ImageURLs    []string            `json:"imageUrls"`
	InitialPrice decimal.Decimal     `json:"initialPrice"`
	CurrentPrice decimal.Decimal     `json:"currentPrice"`
	Status       model.ProductStatus `json:"status"`
	StartDate    time.Time           `json:"startDate"`
	EndDate      time.Time           `json:"endDate"`
	Owner        *model.Profile      `json:"owner"`
	ApprovedBy   *model.Profile      `json:"approvedBy"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
}

// NewResponse 从拍品记录构造响应，关联用户只暴露公开资料。
func NewResponse(p *model.Product) Response {
	images := p.ImageURLs
	if images == nil {
		images = []string{}
	}
	approverID := ""
	if p.ApprovedByID != nil {
		approverID = *p.ApprovedByID
	}
	return Response{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		ImageURLs:    images,
		InitialPrice: p.InitialPrice,
		CurrentPrice: p.CurrentPrice,
		Status:       p.Status,
		StartDate:    p.StartDate,
		EndDate:      p.EndDate,
		Owner:        profileOf(p.Owner, p.OwnerID),
		ApprovedBy:   profileOf(p.ApprovedBy, approverID),
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func profileOf(u *model.User, id string) *model.Profile {
	if u != nil {
		profile := u.PublicProfile()
		return &profile
	}
	if id != "" {
		return &model.Profile{ID: id}
	}
	return nil
}

// Create 创建拍品，状态固定为 PENDING。
// POST /products
func (h *Handler) Create(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respond.Error(c, service.ErrUnauthenticated)
		return
	}
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BindError(c, err)
		return
	}

	p, err := h.svc.Create(c.Request.Context(), service.CreateProductInput{
		Name:         req.Name,
		Description:  req.Description,
		ImageURLs:    req.ImageURLs,
		InitialPrice: req.InitialPrice.Decimal,
		StartDate:    req.StartDate.UTC(),
		EndDate:      req.EndDate.UTC(),
	}, user)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, NewResponse(p))
}

// List 按查询参数过滤拍品。
// GET /products?search=&minPrice=&maxPrice=&status=&sortBy=field:dir&startDateAfter=&endDateBefore=
func (h *Handler) List(c *gin.Context) {
	q, err := parseQuery(c)
	if err != nil {
		respond.BadRequest(c, err.Error())
		return
	}
	items, err := h.svc.List(c.Request.Context(), q)
	if err != nil {
		respond.Error(c, err)
		return
	}
	out := make([]Response, 0, len(items))
	for i := range items {
		out = append(out, NewResponse(&items[i]))
	}
	c.JSON(http.StatusOK, out)
}

// Get 返回拍品详情。
// GET /products/:id
func (h *Handler) Get(c *gin.Context) {
	p, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, NewResponse(p))
}

// Update 局部更新拍品。
// PATCH /products/:id
func (h *Handler) Update(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respond.Error(c, service.ErrUnauthenticated)
		return
	}
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BindError(c, err)
		return
	}

	in := service.UpdateProductInput{
		Name:         req.Name,
		Description:  req.Description,
		ImageURLs:    req.ImageURLs,
		InitialPrice: req.InitialPrice.value(),
		StartDate:    utcPtr(req.StartDate),
		EndDate:      utcPtr(req.EndDate),
	}
	p, err := h.svc.Update(c.Request.Context(), c.Param("id"), in, user)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, NewResponse(p))
}

// Delete 删除拍品。
// DELETE /products/:id
func (h *Handler) Delete(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respond.Error(c, service.ErrUnauthenticated)
		return
	}
	if err := h.svc.Delete(c.Request.Context(), c.Param("id"), user); err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "product deleted successfully"})
}

// Decide 管理员审核拍品。
// PATCH /products/admin/:id/status
func (h *Handler) Decide(c *gin.Context) {
	admin, ok := middleware.CurrentUser(c)
	if !ok {
		respond.Error(c, service.ErrUnauthenticated)
		return
	}
	var req decideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BindError(c, err)
		return
	}
	p, err := h.svc.Decide(c.Request.Context(), c.Param("id"), model.ProductStatus(req.Status), admin)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, NewResponse(p))
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
