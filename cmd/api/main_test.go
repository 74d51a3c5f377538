package main

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"auctionhouse/internal/config"

	"github.com/alicebob/miniredis/v2"
)

func testConfig(redisAddr string) *config.Config {
	return &config.Config{
		App:      config.AppConfig{Env: "local", HTTPAddr: "127.0.0.1:0"},
		Database: config.DatabaseConfig{Driver: config.DriverMemory},
		Redis:    config.RedisConfig{Addr: redisAddr},
		Security: config.SecurityConfig{
			JWTSecret:       "test-secret",
			AccessTokenTTL:  time.Hour,
			RefreshTokenTTL: 24 * time.Hour,
			OTPTTL:          5 * time.Minute,
			OTPDigits:       6,
			OTPCooldown:     time.Minute,
		},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRun_SeedFailureReleasesResources(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(mr.Addr())
	cfg.Security.AdminEmail = "root@x.com"
	// bcrypt 拒绝超过 72 字节的密码
	cfg.Security.AdminPassword = strings.Repeat("p", 80)
	cfg.Security.AdminName = "Root"

	err := run(context.Background(), cfg, discardLogger())
	if err == nil || !strings.Contains(err.Error(), "seed admin") {
		t.Fatalf("expected seed admin error, got %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for mr.CurrentConnectionCount() > 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected redis connections to be closed, still %d open", mr.CurrentConnectionCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRun_ListenFailureReturnsError(t *testing.T) {
	cfg := testConfig("")
	cfg.App.HTTPAddr = "127.0.0.1:-1"

	done := make(chan error, 1)
	go func() { done <- run(context.Background(), cfg, discardLogger()) }()

	select {
	case err := <-done:
		if err == nil || !strings.Contains(err.Error(), "serve") {
			t.Fatalf("expected serve error, got %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("run did not return after listen failure")
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, testConfig(""), discardLogger()) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("run did not return after cancel")
	}
}
