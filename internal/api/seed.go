package api

import (
	"context"
	"log/slog"
)

// SeedAdmin 在配置了管理员账号时确保其存在且已验证。
func (s *Server) SeedAdmin(ctx context.Context) error {
	sec := s.cfg.Security
	if sec.AdminEmail == "" || sec.AdminPassword == "" {
		return nil
	}
	created, err := s.authSvc.EnsureAdmin(ctx, sec.AdminName, sec.AdminEmail, sec.AdminPassword)
	if err != nil {
		return err
	}
	if s.logger != nil {
		s.logger.Info("admin account ready", slog.String("email", sec.AdminEmail), slog.Bool("created", created))
	}
	return nil
}
