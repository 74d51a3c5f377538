package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"auctionhouse/internal/api/auth"
	"auctionhouse/internal/api/middleware"
	"auctionhouse/internal/api/product"
	"auctionhouse/internal/config"
	"auctionhouse/internal/model"
	"auctionhouse/internal/pkg/cooldown"
	"auctionhouse/internal/pkg/notify"
	"auctionhouse/internal/pkg/otp"
	"auctionhouse/internal/pkg/ratelimit"
	"auctionhouse/internal/pkg/token"
	"auctionhouse/internal/service"
	"auctionhouse/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// Store 是服务所需的全部持久化能力。
type Store interface {
	service.UserStore
	service.ProductStore
	Ping(ctx context.Context) error
}

// Server 封装了 API 服务所需的依赖和路由处理。
//
// 它持有存储、Redis 客户端、业务服务以及 Gin 路由引擎。
type Server struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    Store
	rdb      *redis.Client
	router   *gin.Engine
	authSvc  *service.AuthService
	auth     *auth.Handler
	products *product.Handler
	limiter  *ratelimit.Limiter
}

// NewServer 初始化 API 服务器。
//
// 它负责：
// 1. 按配置打开 MySQL / PostgreSQL / 内存存储并执行自动迁移
// 2. 连接 Redis（地址为空时跳过，频控与限流随之关闭）
// 3. 组装业务服务与 Gin 路由引擎
//
// 参数:
//
//	ctx: 上下文
//	cfg: 配置对象
//	logger: 日志记录器
//
// 返回值:
//
//	*Server: 初始化完成的服务器实例
//	error: 初始化失败返回错误
func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	st, err := openStore(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			closeStore(st)
			return nil, fmt.Errorf("connect redis: %w", err)
		}
	} else if logger != nil {
		logger.Warn("redis not configured, otp cooldown and rate limiting disabled")
	}

	var mailer service.Mailer
	if cfg.Email.Configured() {
		mailer = notify.NewEmailNotifier(&cfg.Email, logger)
	} else {
		if logger != nil {
			logger.Warn("smtp not configured, otp codes will be written to the log")
		}
		mailer = notify.NewLogNotifier(logger)
	}

	return New(cfg, logger, st, rdb, mailer), nil
}

// New 用已就绪的依赖组装服务器，rdb 可为 nil。
func New(cfg *config.Config, logger *slog.Logger, st Store, rdb *redis.Client, mailer service.Mailer) *Server {
	authSvc := service.NewAuthService(
		st,
		mailer,
		cooldown.New(rdb, "otp", cfg.Security.OTPCooldown),
		otp.NewChallenge(cfg.Security.OTPDigits, cfg.Security.OTPTTL),
		token.NewManager(cfg.Security.JWTSecret, cfg.Security.AccessTokenTTL, cfg.Security.RefreshTokenTTL),
		logger,
	)
	productSvc := service.NewProductService(st, logger)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		rdb:      rdb,
		router:   r,
		authSvc:  authSvc,
		auth:     auth.NewHandler(authSvc, cfg.App.IsProduction(), logger),
		products: product.NewHandler(productSvc, logger),
		limiter:  ratelimit.NewRedisRateLimiter(rdb, logger, "", cfg.RateLimit.Rate, cfg.RateLimit.Burst),
	}
	s.registerRoutes()
	return s
}

// Router 返回 HTTP 路由处理器。
func (s *Server) Router() http.Handler {
	return s.router
}

// Close 关闭数据库与缓存连接。
func (s *Server) Close() error {
	var firstErr error
	if s.rdb != nil {
		if err := s.rdb.Close(); err != nil {
			firstErr = err
		}
	}
	if closer, ok := s.store.(io.Closer); ok {
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// registerRoutes 注册所有的 API 路由。
func (s *Server) registerRoutes() {
	// Prometheus metrics 端点
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.GET("/healthz", s.handleHealthz)

	authn := middleware.AuthMiddleware(s.authSvc)

	user := s.router.Group("/user")
	user.GET("/me", authn, s.auth.Me)

	// 未登录即可访问的认证接口按客户端 IP 限流。
	public := user.Group("", middleware.RateLimit(s.limiter, "auth", s.logger))
	public.POST("/register", s.auth.Register)
	public.POST("/verify", s.auth.VerifyOTP)
	public.POST("/login", s.auth.Login)
	public.POST("/logout", s.auth.Logout)
	public.POST("/forgot-password", s.auth.ForgotPassword)
	public.POST("/reset-password", s.auth.ResetPassword)
	public.POST("/resend-otp", s.auth.ResendOTP)
	public.POST("/refresh", s.auth.Refresh)

	products := s.router.Group("/products")
	products.GET("", s.products.List)
	products.GET("/:id", s.products.Get)
	products.POST("", authn, middleware.RequireRoles(model.RoleUser), s.products.Create)
	products.PATCH("/:id", authn, middleware.RequireRoles(model.RoleUser), s.products.Update)
	products.DELETE("/:id", authn, middleware.RequireRoles(model.RoleUser, model.RoleAdmin), s.products.Delete)
	products.PATCH("/admin/:id/status", authn, middleware.RequireRoles(model.RoleAdmin), s.products.Decide)
}

func (s *Server) handleHealthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		s.logHealth("store", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}
	if s.rdb != nil {
		if err := s.rdb.Ping(ctx).Err(); err != nil {
			s.logHealth("redis", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) logHealth(component string, err error) {
	if s.logger != nil {
		s.logger.Warn("health check failed", slog.String("component", component), slog.String("error", err.Error()))
	}
}

// openStore 按驱动打开存储，SQL 存储会执行自动迁移。
func openStore(ctx context.Context, cfg config.DatabaseConfig) (Store, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DriverMemory:
		return store.NewMemory(), nil
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	case config.DriverMySQL:
		dialector = mysql.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormLogger.Default.LogMode(gormLogger.Silent), // 关闭GORM调试日志
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	st := store.NewGorm(db)
	if err := st.AutoMigrate(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return st, nil
}

func closeStore(st Store) {
	if closer, ok := st.(io.Closer); ok {
		_ = closer.Close()
	}
}
