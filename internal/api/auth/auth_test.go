package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"auctionhouse/internal/api/middleware"
	"auctionhouse/internal/model"
	"auctionhouse/internal/pkg/notify"
	"auctionhouse/internal/pkg/otp"
	"auctionhouse/internal/pkg/token"
	"auctionhouse/internal/service"
	"auctionhouse/internal/store"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	model.PasswordCost = bcrypt.MinCost
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type captureMailer struct {
	codes map[string]string
}

func (m *captureMailer) SendOTP(_ context.Context, to, code string, _ notify.Purpose, _ time.Duration) error {
	m.codes[to] = code
	return nil
}

type harness struct {
	router *gin.Engine
	mailer *captureMailer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mailer := &captureMailer{codes: map[string]string{}}
	svc := service.NewAuthService(
		store.NewMemory(),
		mailer,
		nil,
		otp.NewChallenge(6, 5*time.Minute),
		token.NewManager("test-secret", time.Hour, 7*24*time.Hour),
		nil,
	)
	h := NewHandler(svc, true, nil)

	r := gin.New()
	user := r.Group("/user")
	user.POST("/register", h.Register)
	user.POST("/verify", h.VerifyOTP)
	user.POST("/login", h.Login)
	user.POST("/logout", h.Logout)
	user.POST("/forgot-password", h.ForgotPassword)
	user.POST("/reset-password", h.ResetPassword)
	user.POST("/resend-otp", h.ResendOTP)
	user.POST("/refresh", h.Refresh)
	user.GET("/me", middleware.AuthMiddleware(svc), h.Me)
	return &harness{router: r, mailer: mailer}
}

func (h *harness) post(t *testing.T, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestRegisterVerifyLogin(t *testing.T) {
	h := newHarness(t)
	creds := map[string]string{"name": "A", "email": "a@x.com", "password": "secret123"}

	if rec := h.post(t, "/user/register", creds); rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	rec := h.post(t, "/user/register", creds)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("duplicate register: expected 400, got %d", rec.Code)
	}
	if decode(t, rec)["error"] != service.ErrEmailTaken.Message {
		t.Fatalf("unexpected duplicate message: %s", rec.Body.String())
	}

	login := map[string]string{"email": "a@x.com", "password": "secret123"}
	if rec := h.post(t, "/user/login", login); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unverified login: expected 401, got %d", rec.Code)
	}

	code := h.mailer.codes["a@x.com"]
	if len(code) != 6 {
		t.Fatalf("expected a 6 digit code, got %q", code)
	}
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	if rec := h.post(t, "/user/verify", map[string]string{"email": "a@x.com", "otp": wrong}); rec.Code != http.StatusBadRequest {
		t.Fatalf("wrong otp: expected 400, got %d", rec.Code)
	}
	if rec := h.post(t, "/user/verify", map[string]string{"email": "ghost@x.com", "otp": code}); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown user: expected 404, got %d", rec.Code)
	}
	if rec := h.post(t, "/user/verify", map[string]string{"email": "a@x.com", "otp": code}); rec.Code != http.StatusOK {
		t.Fatalf("verify: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = h.post(t, "/user/verify", map[string]string{"email": "a@x.com", "otp": code})
	if rec.Code != http.StatusOK || decode(t, rec)["message"] != "email already verified" {
		t.Fatalf("second verify: expected already verified, got %d %s", rec.Code, rec.Body.String())
	}

	rec = h.post(t, "/user/login", login)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["accessToken"] == "" || body["refreshToken"] == "" {
		t.Fatalf("expected tokens in body: %v", body)
	}
	user, _ := body["user"].(map[string]any)
	if user["email"] != "a@x.com" || user["role"] != "USER" || user["isVerified"] != true {
		t.Fatalf("unexpected user payload: %v", user)
	}
	if _, leaked := user["password"]; leaked {
		t.Fatalf("password must not be serialized")
	}

	access := findCookie(rec, middleware.AccessCookie)
	refresh := findCookie(rec, middleware.RefreshCookie)
	if access == nil || refresh == nil {
		t.Fatalf("expected both session cookies")
	}
	if !access.HttpOnly || !access.Secure || access.MaxAge != 3600 {
		t.Fatalf("unexpected access cookie: %+v", access)
	}
	if refresh.MaxAge != 7*24*3600 {
		t.Fatalf("unexpected refresh max-age: %d", refresh.MaxAge)
	}

	req := httptest.NewRequest(http.MethodGet, "/user/me", nil)
	req.AddCookie(access)
	me := httptest.NewRecorder()
	h.router.ServeHTTP(me, req)
	if me.Code != http.StatusOK || decode(t, me)["email"] != "a@x.com" {
		t.Fatalf("me: expected current user, got %d %s", me.Code, me.Body.String())
	}

	rec = h.post(t, "/user/refresh", nil, refresh)
	if rec.Code != http.StatusOK || findCookie(rec, middleware.AccessCookie) == nil {
		t.Fatalf("refresh: expected new access cookie, got %d %s", rec.Code, rec.Body.String())
	}
	if rec := h.post(t, "/user/refresh", nil, &http.Cookie{Name: middleware.RefreshCookie, Value: access.Value}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("access token used as refresh: expected 401, got %d", rec.Code)
	}

	rec = h.post(t, "/user/logout", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", rec.Code)
	}
	if c := findCookie(rec, middleware.AccessCookie); c == nil || c.MaxAge >= 0 {
		t.Fatalf("logout must expire the access cookie, got %+v", c)
	}
}

func TestValidation(t *testing.T) {
	h := newHarness(t)

	cases := []struct {
		path string
		body map[string]string
	}{
		{"/user/register", map[string]string{"name": "A", "email": "a@x.com", "password": "short"}},
		{"/user/register", map[string]string{"name": "A", "email": "not-an-email", "password": "secret123"}},
		{"/user/register", map[string]string{"email": "a@x.com", "password": "secret123"}},
		{"/user/verify", map[string]string{"email": "a@x.com", "otp": "123"}},
		{"/user/verify", map[string]string{"email": "a@x.com", "otp": "abcdef"}},
		{"/user/reset-password", map[string]string{"email": "a@x.com", "otp": "123456", "newPassword": "1234567"}},
		{"/user/forgot-password", map[string]string{}},
	}
	for _, tc := range cases {
		rec := h.post(t, tc.path, tc.body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s %v: expected 400, got %d", tc.path, tc.body, rec.Code)
		}
		if msg, _ := decode(t, rec)["error"].(string); msg == "" {
			t.Fatalf("%s: expected an error message", tc.path)
		}
	}
}

func TestForgotAndResetPassword(t *testing.T) {
	h := newHarness(t)
	h.post(t, "/user/register", map[string]string{"name": "A", "email": "a@x.com", "password": "secret123"})

	if rec := h.post(t, "/user/forgot-password", map[string]string{"email": "ghost@x.com"}); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown email: expected 404, got %d", rec.Code)
	}
	if rec := h.post(t, "/user/forgot-password", map[string]string{"email": "a@x.com"}); rec.Code != http.StatusOK {
		t.Fatalf("forgot: expected 200, got %d", rec.Code)
	}
	code := h.mailer.codes["a@x.com"]
	rec := h.post(t, "/user/reset-password", map[string]string{"email": "a@x.com", "otp": code, "newPassword": "brandnew99"})
	if rec.Code != http.StatusOK {
		t.Fatalf("reset: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	if rec := h.post(t, "/user/login", map[string]string{"email": "a@x.com", "password": "brandnew99"}); rec.Code != http.StatusOK {
		t.Fatalf("login with new password: expected 200, got %d", rec.Code)
	}
	if rec := h.post(t, "/user/resend-otp", map[string]string{"email": "a@x.com"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("resend for verified user: expected 400, got %d", rec.Code)
	}
}
