package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"auctionhouse/internal/model"

	"github.com/google/uuid"
)

// Memory keeps users and products in process memory. Reads return copies.
type Memory struct {
	mu       sync.RWMutex
	users    map[string]model.User
	byEmail  map[string]string
	products map[string]model.Product
	now      func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		users:    make(map[string]model.User),
		byEmail:  make(map[string]string),
		products: make(map[string]model.Product),
		now:      time.Now,
	}
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) CreateUser(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[u.Email]; ok {
		return translate("create user", ErrDuplicate)
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if _, ok := m.users[u.ID]; ok {
		return translate("create user", ErrDuplicate)
	}
	if u.Role == "" {
		u.Role = model.RoleUser
	}
	now := m.now()
	u.CreatedAt, u.UpdatedAt = now, now
	m.users[u.ID] = cloneUser(*u)
	m.byEmail[u.Email] = u.ID
	return nil
}

func (m *Memory) FindUserByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byEmail[email]
	if !ok {
		return nil, translate("find user by email", ErrNotFound)
	}
	u := cloneUser(m.users[id])
	return &u, nil
}

func (m *Memory) FindUserByID(_ context.Context, id string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, translate("find user by id", ErrNotFound)
	}
	u = cloneUser(u)
	return &u, nil
}

func (m *Memory) SaveUser(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.users[u.ID]
	if !ok {
		return translate("save user", ErrNotFound)
	}
	if prev.Email != u.Email {
		if _, taken := m.byEmail[u.Email]; taken {
			return translate("save user", ErrDuplicate)
		}
		delete(m.byEmail, prev.Email)
		m.byEmail[u.Email] = u.ID
	}
	u.CreatedAt = prev.CreatedAt
	u.UpdatedAt = m.now()
	m.users[u.ID] = cloneUser(*u)
	return nil
}

func (m *Memory) CreateProduct(_ context.Context, p *model.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if _, ok := m.products[p.ID]; ok {
		return translate("create product", ErrDuplicate)
	}
	if p.Status == "" {
		p.Status = model.StatusPending
	}
	now := m.now()
	p.CreatedAt, p.UpdatedAt = now, now
	stored := cloneProduct(*p)
	stored.Owner, stored.ApprovedBy = nil, nil
	m.products[p.ID] = stored
	return nil
}

func (m *Memory) FindProduct(_ context.Context, id string) (*model.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return nil, translate("find product", ErrNotFound)
	}
	p = cloneProduct(p)
	return &p, nil
}

func (m *Memory) FindProductDetailed(_ context.Context, id string) (*model.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return nil, translate("find product", ErrNotFound)
	}
	p = cloneProduct(p)
	p.Owner = m.profile(&p.OwnerID)
	p.ApprovedBy = m.profile(p.ApprovedByID)
	return &p, nil
}

func (m *Memory) ListProducts(_ context.Context, f ProductFilter) ([]model.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Product, 0, len(m.products))
	for _, p := range m.products {
		if !f.Match(&p) {
			continue
		}
		p = cloneProduct(p)
		p.Owner = m.profile(&p.OwnerID)
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return f.Less(&out[i], &out[j])
	})
	return out, nil
}

func (m *Memory) SaveProduct(_ context.Context, p *model.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.products[p.ID]
	if !ok {
		return translate("save product", ErrNotFound)
	}
	next := cloneProduct(*p)
	next.OwnerID = prev.OwnerID
	next.CreatedAt = prev.CreatedAt
	next.UpdatedAt = m.now()
	next.Owner, next.ApprovedBy = nil, nil
	p.UpdatedAt = next.UpdatedAt
	m.products[p.ID] = next
	return nil
}

func (m *Memory) DeleteProduct(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return translate("delete product", ErrNotFound)
	}
	delete(m.products, id)
	return nil
}

// profile returns the public columns of a user, mirroring the gorm preload select.
func (m *Memory) profile(id *string) *model.User {
	if id == nil {
		return nil
	}
	u, ok := m.users[*id]
	if !ok {
		return nil
	}
	return &model.User{ID: u.ID, Name: u.Name, Email: u.Email}
}

func cloneUser(u model.User) model.User {
	if u.OTP != nil {
		code := *u.OTP
		u.OTP = &code
	}
	if u.OTPExpiry != nil {
		exp := *u.OTPExpiry
		u.OTPExpiry = &exp
	}
	return u
}

func cloneProduct(p model.Product) model.Product {
	if p.ImageURLs != nil {
		p.ImageURLs = append([]string(nil), p.ImageURLs...)
	}
	if p.ApprovedByID != nil {
		id := *p.ApprovedByID
		p.ApprovedByID = &id
	}
	return p
}
