package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/spf13/viper"
)

// 支持的存储驱动。
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config 保存应用程序配置。
type Config struct {
	App       AppConfig       `json:"app"`
	Database  DatabaseConfig  `json:"database"`
	Redis     RedisConfig     `json:"redis"`
	Email     EmailConfig     `json:"email"`
	Security  SecurityConfig  `json:"security"`
	RateLimit RateLimitConfig `json:"rate_limit"`
}

// AppConfig 应用程序基础配置。
type AppConfig struct {
	Env      string `json:"env"`       // 运行环境: local / production
	LogLevel string `json:"log_level"` // 日志级别: debug / info / warn / error
	HTTPAddr string `json:"http_addr"` // API 服务监听地址
}

// IsProduction 判断是否为生产环境（决定 Cookie 是否带 Secure）。
func (a AppConfig) IsProduction() bool {
	switch strings.ToLower(strings.TrimSpace(a.Env)) {
	case "production", "prod":
		return true
	}
	return false
}

// DatabaseConfig 数据库配置。
type DatabaseConfig struct {
	Driver string `json:"driver"` // mysql / postgres / memory
	DSN    string `json:"dsn"`    // 数据库连接字符串
}

// RedisConfig Redis 配置。
type RedisConfig struct {
	Addr     string `json:"addr"`     // Redis 地址 (host:port)，为空表示不使用 Redis
	Password string `json:"password"` // Redis 密码
	DB       int    `json:"db"`       // Redis 库编号
}

// EmailConfig 邮件发送配置。
type EmailConfig struct {
	SMTPHost  string `json:"smtp_host"`
	SMTPPort  int    `json:"smtp_port"`
	SMTPUser  string `json:"smtp_user"`
	SMTPPass  string `json:"smtp_pass"`
	FromEmail string `json:"from_email"`
}

// Configured 判断 SMTP 是否已配置。
func (e EmailConfig) Configured() bool {
	return e.SMTPHost != "" && e.SMTPUser != "" && e.FromEmail != ""
}

// SecurityConfig 认证与验证码相关配置。
type SecurityConfig struct {
	JWTSecret       string        `json:"jwt_secret"`        // JWT 签名密钥
	AccessTokenTTL  time.Duration `json:"access_token_ttl"`  // 访问令牌有效期（如 "1h"）
	RefreshTokenTTL time.Duration `json:"refresh_token_ttl"` // 刷新令牌有效期（如 "168h"）
	OTPTTL          time.Duration `json:"otp_ttl"`           // 验证码有效期（如 "5m"）
	OTPDigits       int           `json:"otp_digits"`        // 验证码位数
	OTPCooldown     time.Duration `json:"otp_cooldown"`      // 同一邮箱重发验证码的最小间隔
	AdminEmail      string        `json:"admin_email"`       // 启动时确保存在的管理员邮箱
	AdminPassword   string        `json:"admin_password"`    // 管理员初始密码
	AdminName       string        `json:"admin_name"`        // 管理员名称
}

// RateLimitConfig 认证接口按客户端 IP 限流，Rate 为 0 表示关闭。
type RateLimitConfig struct {
	Rate  float64 `json:"rate"`  // 令牌补充速率（token/s）
	Burst float64 `json:"burst"` // 桶容量
}

// Load 从 JSON 文件加载配置。
//
// 它会尝试读取 configs/config.json 文件，如果不存在则使用默认值。
//
// 参数:
//
//	configPath: 配置文件路径（如果为空则使用默认路径 "configs/config.json")
//
// 返回值:
//
//	*Config: 加载完成的配置对象
//	error: 加载失败返回错误
func Load(configPath ...string) (*Config, error) {
	path := "configs/config.json"
	if len(configPath) > 0 && configPath[0] != "" {
		path = configPath[0]
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := getDefaultConfig()
		// 即使没有配置文件，也允许环境变量覆盖默认值
		applyEnvOverrides(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查配置组合是否可用。
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverMySQL, DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.Driver != DriverMemory && c.Database.DSN == "" {
		return fmt.Errorf("database dsn is required for driver %q", c.Database.Driver)
	}
	if c.Database.Driver == DriverPostgres && isMySQLDSN(c.Database.DSN) {
		return fmt.Errorf("database dsn looks like a mysql dsn but driver is %q", c.Database.Driver)
	}
	if c.Security.JWTSecret == "" {
		return fmt.Errorf("security.jwt_secret is required")
	}
	if c.App.IsProduction() && c.Security.JWTSecret == defaultJWTSecret {
		return fmt.Errorf("security.jwt_secret must be changed in production")
	}
	if c.Security.OTPDigits < 4 || c.Security.OTPDigits > 10 {
		return fmt.Errorf("security.otp_digits must be between 4 and 10")
	}
	return nil
}

const defaultJWTSecret = "dev_secret_change_me"

// getDefaultConfig 返回默认配置。
func getDefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Env:      "local",
			LogLevel: "info",
			HTTPAddr: ":8080",
		},
		Database: DatabaseConfig{
			Driver: DriverMySQL,
			DSN:    "root:password@tcp(localhost:3306)/auction?parseTime=true&loc=UTC",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Email: EmailConfig{
			SMTPHost: "smtp.gmail.com",
			SMTPPort: 587,
		},
		Security: SecurityConfig{
			JWTSecret:       defaultJWTSecret,
			AccessTokenTTL:  time.Hour,
			RefreshTokenTTL: 7 * 24 * time.Hour,
			OTPTTL:          5 * time.Minute,
			OTPDigits:       6,
			OTPCooldown:     60 * time.Second,
			AdminName:       "Administrator",
		},
		RateLimit: RateLimitConfig{
			Rate:  1,
			Burst: 10,
		},
	}
}

// applyDefaults 对未设置的字段应用默认值。
func applyDefaults(cfg *Config) {
	defaults := getDefaultConfig()

	if cfg.App.Env == "" {
		cfg.App.Env = defaults.App.Env
	}
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = defaults.App.LogLevel
	}
	if cfg.App.HTTPAddr == "" {
		cfg.App.HTTPAddr = defaults.App.HTTPAddr
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = defaults.Database.Driver
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == DriverMySQL {
		cfg.Database.DSN = defaults.Database.DSN
	}
	if cfg.Email.SMTPPort == 0 {
		cfg.Email.SMTPPort = defaults.Email.SMTPPort
	}
	if cfg.Security.JWTSecret == "" {
		cfg.Security.JWTSecret = defaults.Security.JWTSecret
	}
	if cfg.Security.AccessTokenTTL == 0 {
		cfg.Security.AccessTokenTTL = defaults.Security.AccessTokenTTL
	}
	if cfg.Security.RefreshTokenTTL == 0 {
		cfg.Security.RefreshTokenTTL = defaults.Security.RefreshTokenTTL
	}
	if cfg.Security.OTPTTL == 0 {
		cfg.Security.OTPTTL = defaults.Security.OTPTTL
	}
	if cfg.Security.OTPDigits == 0 {
		cfg.Security.OTPDigits = defaults.Security.OTPDigits
	}
	if cfg.Security.OTPCooldown == 0 {
		cfg.Security.OTPCooldown = defaults.Security.OTPCooldown
	}
	if cfg.Security.AdminName == "" {
		cfg.Security.AdminName = defaults.Security.AdminName
	}
	if cfg.RateLimit.Burst == 0 && cfg.RateLimit.Rate > 0 {
		cfg.RateLimit.Burst = defaults.RateLimit.Burst
	}
}

func applyEnvOverrides(cfg *Config) {
	viper.AutomaticEnv()

	_ = viper.BindEnv("db_host", "DB_HOST")
	_ = viper.BindEnv("db_password", "DB_PASSWORD")
	_ = viper.BindEnv("redis_addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis_password", "REDIS_PASSWORD")
	_ = viper.BindEnv("smtp_pass", "SMTP_PASS")
	_ = viper.BindEnv("jwt_secret", "JWT_SECRET")
	_ = viper.BindEnv("admin_password", "ADMIN_PASSWORD")

	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.App.Env = v
	}
	if v := os.Getenv("APP_LOG_LEVEL"); v != "" {
		cfg.App.LogLevel = v
	}
	if v := os.Getenv("APP_HTTP_ADDR"); v != "" {
		cfg.App.HTTPAddr = v
	}

	if v := os.Getenv("DB_DRIVER"); v != "" {
		cfg.Database.Driver = strings.ToLower(v)
	}
	if v := os.Getenv("DB_DSN"); v != "" {
		cfg.Database.DSN = v
	} else if cfg.Database.Driver == DriverMySQL && (hasAnyEnv("DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME") || viper.GetString("db_host") != "" || viper.GetString("db_password") != "") {
		parsed := parseMySQLDSN(cfg.Database.DSN)
		if v := viper.GetString("db_host"); v != "" {
			port := getenvDefault("DB_PORT", parsed.Addr, "3306")
			parsed.Addr = v + ":" + port
		} else if v := os.Getenv("DB_PORT"); v != "" {
			host := parsed.Addr
			if strings.Contains(host, ":") {
				host = strings.Split(host, ":")[0]
			}
			parsed.Addr = host + ":" + v
		}
		if v := os.Getenv("DB_USER"); v != "" {
			parsed.User = v
		}
		if v := viper.GetString("db_password"); v != "" {
			parsed.Passwd = v
		}
		if v := os.Getenv("DB_NAME"); v != "" {
			parsed.DBName = v
		}
		cfg.Database.DSN = parsed.FormatDSN()
	} else if cfg.Database.Driver == DriverPostgres && (cfg.Database.DSN == "" || isMySQLDSN(cfg.Database.DSN)) {
		cfg.Database.DSN = postgresDSNFromEnv()
	}

	// REDIS_ADDR 显式设为空时关闭 Redis（验证码冷却与限流随之关闭）
	if _, ok := os.LookupEnv("REDIS_ADDR"); ok {
		cfg.Redis.Addr = viper.GetString("redis_addr")
	}
	if v := viper.GetString("redis_password"); v != "" {
		cfg.Redis.Password = v
	}
	envInt("REDIS_DB", &cfg.Redis.DB)

	if v := os.Getenv("SMTP_HOST"); v != "" {
		cfg.Email.SMTPHost = v
	}
	envInt("SMTP_PORT", &cfg.Email.SMTPPort)
	if v := os.Getenv("SMTP_USER"); v != "" {
		cfg.Email.SMTPUser = v
	}
	if v := viper.GetString("smtp_pass"); v != "" {
		cfg.Email.SMTPPass = v
	}
	if v := os.Getenv("SMTP_FROM"); v != "" {
		cfg.Email.FromEmail = v
	}

	if v := viper.GetString("jwt_secret"); v != "" {
		cfg.Security.JWTSecret = v
	}
	envDuration("ACCESS_TOKEN_TTL", &cfg.Security.AccessTokenTTL)
	envDuration("REFRESH_TOKEN_TTL", &cfg.Security.RefreshTokenTTL)
	envDuration("OTP_TTL", &cfg.Security.OTPTTL)
	envDuration("OTP_COOLDOWN", &cfg.Security.OTPCooldown)
	if v := os.Getenv("ADMIN_EMAIL"); v != "" {
		cfg.Security.AdminEmail = v
	}
	if v := viper.GetString("admin_password"); v != "" {
		cfg.Security.AdminPassword = v
	}
	if v := os.Getenv("ADMIN_NAME"); v != "" {
		cfg.Security.AdminName = v
	}

	envFloat("RATE_LIMIT", &cfg.RateLimit.Rate)
	envFloat("RATE_BURST", &cfg.RateLimit.Burst)
}

// envDuration/envInt/envFloat 仅在环境变量存在且可解析时覆盖目标值。
func envDuration(key string, dst *time.Duration) {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		*dst = d
	}
}

func envInt(key string, dst *int) {
	if i, err := strconv.Atoi(os.Getenv(key)); err == nil {
		*dst = i
	}
}

func envFloat(key string, dst *float64) {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		*dst = f
	}
}

func hasAnyEnv(keys ...string) bool {
	for _, key := range keys {
		if os.Getenv(key) != "" {
			return true
		}
	}
	return false
}

func getenvDefault(envKey, fallbackAddr, defaultValue string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	if fallbackAddr == "" {
		return defaultValue
	}
	if strings.Contains(fallbackAddr, ":") {
		parts := strings.Split(fallbackAddr, ":")
		if len(parts) == 2 && parts[1] != "" {
			return parts[1]
		}
	}
	return defaultValue
}

// isMySQLDSN 判断 DSN 是否为 go-sql-driver 格式（user:pass@tcp(host:port)/db）。
func isMySQLDSN(dsn string) bool {
	return strings.Contains(dsn, "@tcp(") || strings.Contains(dsn, "@unix(")
}

// postgresDSNFromEnv 由 DB_* 环境变量拼出 postgres 的 key=value DSN。
func postgresDSNFromEnv() string {
	host := viper.GetString("db_host")
	if host == "" {
		host = "localhost"
	}
	port := os.Getenv("DB_PORT")
	if port == "" {
		port = "5432"
	}
	user := os.Getenv("DB_USER")
	if user == "" {
		user = "postgres"
	}
	name := os.Getenv("DB_NAME")
	if name == "" {
		name = "auction"
	}
	parts := []string{
		"host=" + host,
		"port=" + port,
		"user=" + user,
	}
	if pw := viper.GetString("db_password"); pw != "" {
		parts = append(parts, "password="+pw)
	}
	parts = append(parts, "dbname="+name, "sslmode=disable", "TimeZone=UTC")
	return strings.Join(parts, " ")
}

func parseMySQLDSN(dsn string) *mysql.Config {
	if dsn != "" {
		if parsed, err := mysql.ParseDSN(dsn); err == nil {
			return parsed
		}
	}
	cfg := mysql.NewConfig()
	cfg.User = "root"
	cfg.Net = "tcp"
	cfg.Addr = "localhost:3306"
	cfg.DBName = "auction"
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg
}

// UnmarshalJSON 自定义 JSON 解析，支持时间Duration字符串。
func (s *SecurityConfig) UnmarshalJSON(data []byte) error {
	type Alias SecurityConfig
	aux := &struct {
		AccessTokenTTL  string `json:"access_token_ttl"`
		RefreshTokenTTL string `json:"refresh_token_ttl"`
		OTPTTL          string `json:"otp_ttl"`
		OTPCooldown     string `json:"otp_cooldown"`
		*Alias
	}{
		Alias: (*Alias)(s),
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"access_token_ttl", aux.AccessTokenTTL, &s.AccessTokenTTL},
		{"refresh_token_ttl", aux.RefreshTokenTTL, &s.RefreshTokenTTL},
		{"otp_ttl", aux.OTPTTL, &s.OTPTTL},
		{"otp_cooldown", aux.OTPCooldown, &s.OTPCooldown},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("invalid %s format: %w", f.name, err)
		}
		*f.dst = d
	}
	return nil
}

// MarshalJSON 自定义 JSON 序列化，将 Duration 转为字符串。
func (s SecurityConfig) MarshalJSON() ([]byte, error) {
	type Alias SecurityConfig
	return json.Marshal(&struct {
		AccessTokenTTL  string `json:"access_token_ttl"`
		RefreshTokenTTL string `json:"refresh_token_ttl"`
		OTPTTL          string `json:"otp_ttl"`
		OTPCooldown     string `json:"otp_cooldown"`
		*Alias
	}{
		AccessTokenTTL:  s.AccessTokenTTL.String(),
		RefreshTokenTTL: s.RefreshTokenTTL.String(),
		OTPTTL:          s.OTPTTL.String(),
		OTPCooldown:     s.OTPCooldown.String(),
		Alias:           (*Alias)(&s),
	})
}
