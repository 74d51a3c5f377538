package product

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"auctionhouse/internal/api/middleware"
	"auctionhouse/internal/model"
	"auctionhouse/internal/service"
	"auctionhouse/internal/store"

	"github.com/gin-gonic/gin"
)

type cookieAuth map[string]*model.User

func (a cookieAuth) Authenticate(_ context.Context, raw string) (*model.User, error) {
	if u, ok := a[raw]; ok {
		return u, nil
	}
	return nil, service.ErrInvalidToken
}

type harness struct {
	router *gin.Engine
	mem    *store.Memory
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mem := store.NewMemory()
	users := cookieAuth{}
	for token, u := range map[string]*model.User{
		"owner": {Name: "A", Email: "a@x.com", Role: model.RoleUser, IsVerified: true},
		"other": {Name: "B", Email: "b@x.com", Role: model.RoleUser, IsVerified: true},
		"admin": {Name: "Root", Email: "root@x.com", Role: model.RoleAdmin, IsVerified: true},
	} {
		if err := mem.CreateUser(context.Background(), u); err != nil {
			t.Fatalf("create user: %v", err)
		}
		users[token] = u
	}

	h := NewHandler(service.NewProductService(mem, nil), nil)
	authn := middleware.AuthMiddleware(users)
	r := gin.New()
	products := r.Group("/products")
	products.GET("", h.List)
	products.GET("/:id", h.Get)
	products.POST("", authn, middleware.RequireRoles(model.RoleUser), h.Create)
	products.PATCH("/:id", authn, middleware.RequireRoles(model.RoleUser), h.Update)
	products.DELETE("/:id", authn, middleware.RequireRoles(model.RoleUser, model.RoleAdmin), h.Delete)
	products.PATCH("/admin/:id/status", authn, middleware.RequireRoles(model.RoleAdmin), h.Decide)
	return &harness{router: r, mem: mem}
}

func (h *harness) do(t *testing.T, method, path, as string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if as != "" {
		req.AddCookie(&http.Cookie{Name: middleware.AccessCookie, Value: as})
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func lamp() map[string]any {
	return map[string]any{
		"name":         "Vintage Lamp",
		"description":  "brass",
		"imageUrls":    []string{"https://img.example.com/lamp.jpg"},
		"initialPrice": 120.5,
		"startDate":    "2025-09-01T09:00:00Z",
		"endDate":      "2025-09-04T09:00:00Z",
	}
}

func decodeProduct(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var p Response
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return p
}

func (h *harness) create(t *testing.T, body map[string]any) Response {
	t.Helper()
	rec := h.do(t, http.MethodPost, "/products", "owner", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	return decodeProduct(t, rec)
}

func TestCreate(t *testing.T) {
	h := newHarness(t)

	body := lamp()
	body["status"] = "APPROVED"
	body["currentPrice"] = 9999
	p := h.create(t, body)
	if p.Status != model.StatusPending {
		t.Fatalf("caller-supplied status must be ignored, got %s", p.Status)
	}
	if p.CurrentPrice.String() != "120.5" || !p.CurrentPrice.Equal(p.InitialPrice) {
		t.Fatalf("expected currentPrice == initialPrice, got %s", p.CurrentPrice)
	}
	if p.Owner == nil || p.Owner.Email != "a@x.com" || p.ApprovedBy != nil {
		t.Fatalf("unexpected owner/approver: %+v / %+v", p.Owner, p.ApprovedBy)
	}

	if rec := h.do(t, http.MethodPost, "/products", "", lamp()); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous create: expected 401, got %d", rec.Code)
	}
	if rec := h.do(t, http.MethodPost, "/products", "admin", lamp()); rec.Code != http.StatusForbidden {
		t.Fatalf("admin create: expected 403, got %d", rec.Code)
	}
}

func TestCreate_Validation(t *testing.T) {
	h := newHarness(t)
	mutations := map[string]func(map[string]any){
		"empty images":     func(b map[string]any) { b["imageUrls"] = []string{} },
		"bad image url":    func(b map[string]any) { b["imageUrls"] = []string{"lamp.jpg"} },
		"missing price":    func(b map[string]any) { delete(b, "initialPrice") },
		"negative price":   func(b map[string]any) { b["initialPrice"] = -1 },
		"bad date":         func(b map[string]any) { b["startDate"] = "tomorrow" },
		"end before start": func(b map[string]any) { b["endDate"] = "2025-08-01T09:00:00Z" },
		"long name":        func(b map[string]any) { b["name"] = string(bytes.Repeat([]byte("x"), 101)) },
		"missing name":     func(b map[string]any) { delete(b, "name") },
	}
	for name, mutate := range mutations {
		body := lamp()
		mutate(body)
		if rec := h.do(t, http.MethodPost, "/products", "owner", body); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d: %s", name, rec.Code, rec.Body.String())
		}
	}
}

func TestCreate_NonNumericPrice(t *testing.T) {
	h := newHarness(t)
	for _, bad := range []any{"abc", true} {
		body := lamp()
		body["initialPrice"] = bad
		rec := h.do(t, http.MethodPost, "/products", "owner", body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("price %v: expected 400, got %d", bad, rec.Code)
		}
		var resp map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp["error"] != "prices must be numbers" {
			t.Fatalf("price %v: unexpected error %q", bad, resp["error"])
		}
	}

	p := h.create(t, lamp())
	rec := h.do(t, http.MethodPatch, "/products/"+p.ID, "owner", map[string]any{"initialPrice": "12,50"})
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "prices must be numbers") {
		t.Fatalf("update with bad price: got %d %s", rec.Code, rec.Body.String())
	}
}

func TestReviewScenario(t *testing.T) {
	h := newHarness(t)
	p := h.create(t, lamp())
	path := "/products/" + p.ID

	if rec := h.do(t, http.MethodPatch, path, "other", map[string]any{"name": "Stolen"}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("non-owner update: expected 401, got %d", rec.Code)
	}
	if rec := h.do(t, http.MethodPatch, "/products/admin/"+p.ID+"/status", "owner", map[string]any{"status": "APPROVED"}); rec.Code != http.StatusForbidden {
		t.Fatalf("user deciding: expected 403, got %d", rec.Code)
	}
	if rec := h.do(t, http.MethodPatch, "/products/admin/"+p.ID+"/status", "admin", map[string]any{"status": "ACTIVE"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid decision: expected 400, got %d", rec.Code)
	}

	rec := h.do(t, http.MethodPatch, "/products/admin/"+p.ID+"/status", "admin", map[string]any{"status": "REJECTED"})
	if rec.Code != http.StatusOK {
		t.Fatalf("decide: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	decided := decodeProduct(t, rec)
	if decided.Status != model.StatusRejected || decided.ApprovedBy == nil || decided.ApprovedBy.Email != "root@x.com" {
		t.Fatalf("expected REJECTED with approver, got %+v", decided)
	}
	if rec := h.do(t, http.MethodPatch, "/products/admin/"+p.ID+"/status", "admin", map[string]any{"status": "APPROVED"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("second decision: expected 400, got %d", rec.Code)
	}

	rec = h.do(t, http.MethodPatch, path, "owner", map[string]any{"description": "polished brass"})
	if rec.Code != http.StatusOK {
		t.Fatalf("owner update: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := decodeProduct(t, rec); got.Description != "polished brass" || got.Name != "Vintage Lamp" {
		t.Fatalf("expected merged update, got %+v", got)
	}
	if rec := h.do(t, http.MethodPatch, path, "owner", map[string]any{"imageUrls": []string{}}); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty imageUrls patch: expected 400, got %d", rec.Code)
	}

	rec = h.do(t, http.MethodGet, path, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rec.Code)
	}
	if got := decodeProduct(t, rec); got.Owner == nil || got.Owner.Name != "A" || got.ApprovedBy == nil {
		t.Fatalf("expected owner and approver profiles, got %+v", got)
	}

	if rec := h.do(t, http.MethodDelete, path, "admin", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("admin delete without ownership: expected 401, got %d", rec.Code)
	}
	if rec := h.do(t, http.MethodDelete, path, "owner", nil); rec.Code != http.StatusOK {
		t.Fatalf("owner delete: expected 200, got %d", rec.Code)
	}
	if rec := h.do(t, http.MethodGet, path, "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete: expected 404, got %d", rec.Code)
	}
}

func TestGet_InvalidID(t *testing.T) {
	h := newHarness(t)
	if rec := h.do(t, http.MethodGet, "/products/123", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id, got %d", rec.Code)
	}
	if rec := h.do(t, http.MethodPatch, "/products/123", "owner", map[string]any{"name": "x"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("patch: expected 400 for malformed id, got %d", rec.Code)
	}
}

func TestList(t *testing.T) {
	h := newHarness(t)
	h.create(t, lamp())
	chair := lamp()
	chair["name"] = "Oak Chair"
	chair["description"] = "sturdy"
	chair["initialPrice"] = 15
	h.create(t, chair)

	rec := h.do(t, http.MethodGet, "/products?search=LAMP&minPrice=100", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var items []Response
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(items) != 1 || items[0].Name != "Vintage Lamp" || items[0].Owner == nil {
		t.Fatalf("expected the lamp with its owner, got %+v", items)
	}

	rec = h.do(t, http.MethodGet, "/products?sortBy=currentPrice:asc&startDateAfter=2025-08-01", "", nil)
	items = nil
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil || len(items) != 2 || items[0].Name != "Oak Chair" {
		t.Fatalf("expected ascending price order, got %s", rec.Body.String())
	}

	for _, query := range []string{"minPrice=abc", "minPrice=-5", "status=SOLD", "sortBy=password:asc", "endDateBefore=soon"} {
		if rec := h.do(t, http.MethodGet, "/products?"+query, "", nil); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", query, rec.Code)
		}
	}

	rec = h.do(t, http.MethodGet, "/products?status=APPROVED", "", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "[]" {
		t.Fatalf("expected empty array, got %d %s", rec.Code, rec.Body.String())
	}
}
