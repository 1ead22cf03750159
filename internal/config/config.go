package config

import (
	"errors"
	"fmt"
	"net/netip"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	// Environment ("development" or "production")
	Env string

	// Server
	ServerAddr          string
	ServerPort          int
	MaxRequestBodyBytes int64
	ShutdownTimeout     time.Duration

	// Reverse proxies (IPs or CIDRs) whose forwarding headers are trusted
	// for the client address. Empty means the TCP peer is the client.
	TrustedProxies []string

	// Database
	DatabaseURL string
	DBHost      string
	DBPort      int
	DBUser      string
	DBPassword  string
	DBName      string
	DBSSLMode   string
	AutoMigrate bool

	// Redis (optional). When set, attempt trackers and password OTPs live in
	// Redis instead of process memory and Postgres.
	RedisURL string

	// JWT
	AccessTokenSecret  string
	RefreshTokenSecret string
	JWTIssuer          string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration

	// Client
	AppBaseURL         string
	CORSAllowedOrigins []string
	CookieDomain       string

	// SMTP (optional; emails are logged when no host is set)
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string

	// Background maintenance
	SweepInterval time.Duration

	RateLimit       RateLimitConfig
	SecurityHeaders SecurityHeadersConfig
	Validation      ValidationConfig
	PasswordPolicy  PasswordPolicyConfig
	Captcha         CaptchaConfig
	Audit           AuditConfig
	Lockout         LockoutConfig
}

// RateLimitConfig holds the coarse per-IP route limits applied by the router.
type RateLimitConfig struct {
	Enabled                  bool
	AuthRequestsPerMinute    int
	AuthWindowMinutes        int
	ResetRequestsPerWindow   int
	ResetWindowMinutes       int
	VerifyRequestsPerWindow  int
	VerifyWindowMinutes      int
	RefreshRequestsPerMinute int
	RefreshWindowMinutes     int
	ProfileRequestsPerMinute int
	ProfileWindowMinutes     int
}

// SecurityHeadersConfig holds response security header values.
type SecurityHeadersConfig struct {
	Enabled            bool
	CSP                string
	HSTSMaxAge         int
	FrameOptions       string
	ContentTypeOptions string
	XSSProtection      string
	ReferrerPolicy     string
	PermissionsPolicy  string
}

// ValidationConfig controls email validation strictness.
type ValidationConfig struct {
	StrictEmailValidation bool
	BlockDisposableEmail  bool
}

// PasswordPolicyConfig holds password requirements.
type PasswordPolicyConfig struct {
	MinLength        int
	MinScore         int
	RequireUppercase bool
	RequireLowercase bool
	RequireNumber    bool
	RequireSpecial   bool
}

// CaptchaConfig holds reCAPTCHA settings. Verification only runs in production.
type CaptchaConfig struct {
	Enabled       bool
	SecretKey     string
	MinScore      float64
	OAuthMinScore float64
}

// AuditConfig selects where audit events go.
type AuditConfig struct {
	Sinks        []string
	BufferSize   int
	DropIfFull   bool
	AMQPURL      string
	AMQPQueue    string
	KafkaBrokers []string
	KafkaTopic   string
}

// LockoutConfig holds account lockout settings.
type LockoutConfig struct {
	MaxLoginAttempts int
	LockoutDuration  time.Duration
	MaxOTPAttempts   int
}

// Audit sink names.
const (
	AuditSinkPostgres = "postgres"
	AuditSinkLog      = "log"
	AuditSinkAMQP     = "amqp"
	AuditSinkKafka    = "kafka"
)

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	env := getEnv("APP_ENV", "development")

	cfg := &Config{
		Env: env,

		// Server defaults
		ServerAddr:          getEnv("SERVER_ADDR", "0.0.0.0"),
		ServerPort:          getEnvInt("SERVER_PORT", 8080),
		MaxRequestBodyBytes: getEnvInt64("MAX_REQUEST_BODY_BYTES", 1<<20),
		ShutdownTimeout:     getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),

		// Database defaults
		DatabaseURL: getEnv("DATABASE_URL", ""),
		DBHost:      getEnv("DB_HOST", "localhost"),
		DBPort:      getEnvInt("DB_PORT", 5432),
		DBUser:      getEnv("DB_USER", "postgres"),
		DBPassword:  getEnv("DB_PASSWORD", "postgres"),
		DBName:      getEnv("DB_NAME", "blog"),
		DBSSLMode:   getEnv("DB_SSLMODE", "disable"),
		AutoMigrate: getEnvBool("DB_AUTO_MIGRATE", true),

		RedisURL: getEnv("REDIS_URL", ""),

		// JWT defaults
		AccessTokenSecret:  getEnv("ACCESS_TOKEN_SECRET", ""),
		RefreshTokenSecret: getEnv("REFRESH_TOKEN_SECRET", ""),
		JWTIssuer:          getEnv("JWT_ISSUER", "blog-auth"),
		AccessTokenTTL:     getEnvDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL:    getEnvDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),

		TrustedProxies: getEnvList("TRUSTED_PROXIES", nil),

		AppBaseURL:         getEnv("APP_BASE_URL", "http://localhost:5173"),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		CookieDomain:       getEnv("COOKIE_DOMAIN", ""),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@localhost"),
		SMTPFromName: getEnv("SMTP_FROM_NAME", "Blog"),

		SweepInterval: getEnvDuration("SWEEP_INTERVAL", time.Hour),

		RateLimit: RateLimitConfig{
			Enabled:                  getEnvBool("RATE_LIMIT_ENABLED", true),
			AuthRequestsPerMinute:    getEnvInt("RATE_LIMIT_AUTH_REQUESTS", 20),
			AuthWindowMinutes:        getEnvInt("RATE_LIMIT_AUTH_WINDOW_MINUTES", 1),
			ResetRequestsPerWindow:   getEnvInt("RATE_LIMIT_RESET_REQUESTS", 10),
			ResetWindowMinutes:       getEnvInt("RATE_LIMIT_RESET_WINDOW_MINUTES", 15),
			VerifyRequestsPerWindow:  getEnvInt("RATE_LIMIT_VERIFY_REQUESTS", 10),
			VerifyWindowMinutes:      getEnvInt("RATE_LIMIT_VERIFY_WINDOW_MINUTES", 15),
			RefreshRequestsPerMinute: getEnvInt("RATE_LIMIT_REFRESH_REQUESTS", 30),
			RefreshWindowMinutes:     getEnvInt("RATE_LIMIT_REFRESH_WINDOW_MINUTES", 1),
			ProfileRequestsPerMinute: getEnvInt("RATE_LIMIT_PROFILE_REQUESTS", 10),
			ProfileWindowMinutes:     getEnvInt("RATE_LIMIT_PROFILE_WINDOW_MINUTES", 1),
		},

		SecurityHeaders: SecurityHeadersConfig{
			Enabled:            getEnvBool("SECURITY_HEADERS_ENABLED", true),
			CSP:                getEnv("SECURITY_HEADERS_CSP", "default-src 'none'; frame-ancestors 'none'"),
			HSTSMaxAge:         getEnvInt("SECURITY_HEADERS_HSTS_MAX_AGE", 0),
			FrameOptions:       getEnv("SECURITY_HEADERS_FRAME_OPTIONS", "DENY"),
			ContentTypeOptions: getEnv("SECURITY_HEADERS_CONTENT_TYPE_OPTIONS", "nosniff"),
			XSSProtection:      getEnv("SECURITY_HEADERS_XSS_PROTECTION", "0"),
			ReferrerPolicy:     getEnv("SECURITY_HEADERS_REFERRER_POLICY", "strict-origin-when-cross-origin"),
			PermissionsPolicy:  getEnv("SECURITY_HEADERS_PERMISSIONS_POLICY", ""),
		},

		Validation: ValidationConfig{
			StrictEmailValidation: getEnvBool("STRICT_EMAIL_VALIDATION", false),
			BlockDisposableEmail:  getEnvBool("BLOCK_DISPOSABLE_EMAIL", false),
		},

		PasswordPolicy: PasswordPolicyConfig{
			MinLength:        getEnvInt("PASSWORD_MIN_LENGTH", 8),
			MinScore:         getEnvInt("PASSWORD_MIN_SCORE", 3),
			RequireUppercase: getEnvBool("PASSWORD_REQUIRE_UPPERCASE", false),
			RequireLowercase: getEnvBool("PASSWORD_REQUIRE_LOWERCASE", false),
			RequireNumber:    getEnvBool("PASSWORD_REQUIRE_NUMBER", false),
			RequireSpecial:   getEnvBool("PASSWORD_REQUIRE_SPECIAL", false),
		},

		Captcha: CaptchaConfig{
			Enabled:       env == "production",
			SecretKey:     getEnv("RECAPTCHA_SECRET_KEY", ""),
			MinScore:      getEnvFloat("RECAPTCHA_MIN_SCORE", 0.5),
			OAuthMinScore: getEnvFloat("RECAPTCHA_OAUTH_MIN_SCORE", 0.7),
		},

		Audit: AuditConfig{
			Sinks:        getEnvList("AUDIT_SINK", []string{AuditSinkPostgres}),
			BufferSize:   getEnvInt("AUDIT_BUFFER_SIZE", 1024),
			DropIfFull:   getEnvBool("AUDIT_DROP_IF_FULL", true),
			AMQPURL:      getEnv("AMQP_URL", ""),
			AMQPQueue:    getEnv("AMQP_AUDIT_QUEUE", "auth.audit"),
			KafkaBrokers: getEnvList("KAFKA_BROKERS", nil),
			KafkaTopic:   getEnv("KAFKA_AUDIT_TOPIC", "auth.audit"),
		},

		Lockout: LockoutConfig{
			MaxLoginAttempts: getEnvInt("MAX_LOGIN_ATTEMPTS", 5),
			LockoutDuration:  getEnvDuration("LOCKOUT_DURATION", 15*time.Minute),
			MaxOTPAttempts:   getEnvInt("MAX_OTP_ATTEMPTS", 5),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error

	if c.AccessTokenSecret == "" {
		errs = append(errs, errors.New("ACCESS_TOKEN_SECRET is required"))
	}
	if c.RefreshTokenSecret == "" {
		errs = append(errs, errors.New("REFRESH_TOKEN_SECRET is required"))
	}
	if c.AccessTokenSecret != "" && c.AccessTokenSecret == c.RefreshTokenSecret {
		errs = append(errs, errors.New("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ"))
	}
	if c.Captcha.Enabled && c.Captcha.SecretKey == "" {
		errs = append(errs, errors.New("RECAPTCHA_SECRET_KEY is required in production"))
	}
	if c.Lockout.MaxLoginAttempts < 1 {
		errs = append(errs, errors.New("MAX_LOGIN_ATTEMPTS must be at least 1"))
	}
	if c.PasswordPolicy.MinScore < 0 || c.PasswordPolicy.MinScore > 4 {
		errs = append(errs, errors.New("PASSWORD_MIN_SCORE must be between 0 and 4"))
	}

	if _, err := ParseTrustedProxies(c.TrustedProxies); err != nil {
		errs = append(errs, err)
	}

	for _, sink := range c.Audit.Sinks {
		switch sink {
		case AuditSinkPostgres, AuditSinkLog:
		case AuditSinkAMQP:
			if c.Audit.AMQPURL == "" {
				errs = append(errs, errors.New("AMQP_URL is required for the amqp audit sink"))
			}
		case AuditSinkKafka:
			if len(c.Audit.KafkaBrokers) == 0 {
				errs = append(errs, errors.New("KAFKA_BROKERS is required for the kafka audit sink"))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown AUDIT_SINK %q", sink))
		}
	}

	return errors.Join(errs...)
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// TrustedProxyPrefixes returns the parsed TRUSTED_PROXIES entries. Load has
// already rejected invalid entries.
func (c *Config) TrustedProxyPrefixes() []netip.Prefix {
	prefixes, _ := ParseTrustedProxies(c.TrustedProxies)
	return prefixes
}

// ParseTrustedProxies parses IP addresses and CIDR ranges. A bare address
// stands for itself.
func ParseTrustedProxies(entries []string) ([]netip.Prefix, error) {
	var prefixes []netip.Prefix
	for _, entry := range entries {
		if prefix, err := netip.ParsePrefix(entry); err == nil {
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid TRUSTED_PROXIES entry %q", entry)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// HasRedis reports whether a Redis URL is configured.
func (c *Config) HasRedis() bool {
	return c.RedisURL != ""
}

// DSN returns the Postgres connection string. DATABASE_URL wins over the
// individual DB_* settings.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.DBSSLMode),
	}
	return u.String()
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.ServerAddr, c.ServerPort)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
