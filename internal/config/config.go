package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Email provider names accepted by EMAIL_PROVIDER.
const (
	EmailProviderResend = "resend"
	EmailProviderSMTP   = "smtp"
)

// Config holds all runtime configuration loaded from environment variables.
// It is built once in main and passed explicitly to every constructor.
// Nothing is strictly required: missing credentials disable the feature
// that needs them and the affected endpoints report which variable is unset.
type Config struct {
	// Server
	HTTPPort        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	LogLevel        string

	// Admin
	AdminKey string

	// Resend (remote contacts store + email API)
	ResendAPIKey     string
	ResendAudienceID string
	ResendBaseURL    string
	FromEmail        string
	ProviderTimeout  time.Duration

	// Email delivery
	EmailProvider string
	SMTPHost      string
	SMTPPort      int
	SMTPUser      string
	SMTPPass      string

	// Local store: JSON file unless DATABASE_URL is set
	SubscribersFile string
	ReadOnlyFS      bool
	DatabaseURL     string
	DBMaxConns      int32
	DBMinConns      int32

	// Content
	ContentDir string
	SiteURL    string

	// Newsletter batching
	BatchSize  int
	BatchDelay time.Duration

	// Per-client throttling of public write endpoints
	PublicRateLimit float64
	PublicRateBurst int
	// Honour X-Forwarded-For / X-Real-IP. Only safe behind a proxy that
	// overwrites them.
	TrustProxy bool

	// Market data upstreams
	NewsAPIKey       string
	CoinGeckoURL     string
	LlamaURL         string
	BinanceURL       string
	NewsAPIURL       string
	CryptoCompareURL string
}

// Load reads .env files (process variables win) and then the environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env", ".env.local"}
	}
	if err := loadEnvFiles(envFiles); err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPPort:        getEnv("HTTP_PORT", getEnv("PORT", "8080")),
		ReadTimeout:     getDuration("READ_TIMEOUT", 5*time.Second),
		WriteTimeout:    getDuration("WRITE_TIMEOUT", 5*time.Minute),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		LogLevel:        getEnv("LOG_LEVEL", "info"),

		AdminKey: strings.TrimSpace(os.Getenv("ADMIN_KEY")),

		ResendAPIKey:     strings.TrimSpace(os.Getenv("RESEND_API_KEY")),
		ResendAudienceID: strings.TrimSpace(os.Getenv("RESEND_AUDIENCE_ID")),
		ResendBaseURL:    getEnv("RESEND_BASE_URL", "https://api.resend.com"),
		FromEmail:        getEnv("RESEND_FROM_EMAIL", "Solana Weekly <newsletter@solweekly.xyz>"),
		ProviderTimeout:  getDuration("PROVIDER_TIMEOUT", 10*time.Second),

		EmailProvider: strings.ToLower(getEnv("EMAIL_PROVIDER", EmailProviderResend)),
		SMTPHost:      os.Getenv("SMTP_HOST"),
		SMTPPort:      getInt("SMTP_PORT", 587),
		SMTPUser:      os.Getenv("SMTP_USER"),
		SMTPPass:      os.Getenv("SMTP_PASS"),

		SubscribersFile: getEnv("SUBSCRIBERS_FILE", "data/subscribers.json"),
		ReadOnlyFS:      getBool("READ_ONLY_FS", false) || os.Getenv("VERCEL") != "" || os.Getenv("VERCEL_ENV") != "",
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		DBMaxConns:      int32(getInt("DB_MAX_CONNS", 10)),
		DBMinConns:      int32(getInt("DB_MIN_CONNS", 1)),

		ContentDir: getEnv("CONTENT_DIR", "content/roundups"),
		SiteURL:    strings.TrimRight(getEnv("SITE_URL", getEnv("NEXT_PUBLIC_SITE_URL", "https://www.solweekly.xyz")), "/"),

		BatchSize:  getInt("NEWSLETTER_BATCH_SIZE", 10),
		BatchDelay: getDuration("NEWSLETTER_BATCH_DELAY", time.Second),

		PublicRateLimit: getFloat("PUBLIC_RATE_LIMIT", 2),
		PublicRateBurst: getInt("PUBLIC_RATE_BURST", 5),
		TrustProxy:      getBool("TRUST_PROXY", false),

		NewsAPIKey:       os.Getenv("NEWS_API_KEY"),
		CoinGeckoURL:     getEnv("COINGECKO_URL", "https://api.coingecko.com/api/v3"),
		LlamaURL:         getEnv("LLAMA_URL", "https://api.llama.fi"),
		BinanceURL:       getEnv("BINANCE_URL", "https://fapi.binance.com"),
		NewsAPIURL:       getEnv("NEWSAPI_URL", "https://newsapi.org/v2"),
		CryptoCompareURL: getEnv("CRYPTOCOMPARE_URL", "https://min-api.cryptocompare.com"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.EmailProvider {
	case EmailProviderResend:
	case EmailProviderSMTP:
		if c.SMTPHost == "" {
			return fmt.Errorf("EMAIL_PROVIDER=smtp requires SMTP_HOST")
		}
	default:
		return fmt.Errorf("EMAIL_PROVIDER must be %q or %q, got %q", EmailProviderResend, EmailProviderSMTP, c.EmailProvider)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("NEWSLETTER_BATCH_SIZE must be at least 1, got %d", c.BatchSize)
	}
	if c.BatchDelay < 0 {
		return fmt.Errorf("NEWSLETTER_BATCH_DELAY must not be negative")
	}
	return nil
}

// RemoteStoreConfigured reports whether the Resend audience can be used as
// the remote subscriber store.
func (c *Config) RemoteStoreConfigured() bool {
	return c.ResendAPIKey != "" && c.ResendAudienceID != ""
}

// MissingRemoteStoreVars names the variables that still need to be set for
// the remote store to be enabled.
func (c *Config) MissingRemoteStoreVars() []string {
	var missing []string
	if c.ResendAPIKey == "" {
		missing = append(missing, "RESEND_API_KEY")
	}
	if c.ResendAudienceID == "" {
		missing = append(missing, "RESEND_AUDIENCE_ID")
	}
	return missing
}

// SenderConfigured reports whether newsletter delivery is possible.
func (c *Config) SenderConfigured() bool {
	if c.EmailProvider == EmailProviderSMTP {
		return c.SMTPHost != ""
	}
	return c.ResendAPIKey != ""
}

// MissingSenderVars names the variables required by the selected email provider.
func (c *Config) MissingSenderVars() []string {
	if c.SenderConfigured() {
		return nil
	}
	if c.EmailProvider == EmailProviderSMTP {
		return []string{"SMTP_HOST"}
	}
	return []string{"RESEND_API_KEY"}
}

// loadEnvFiles loads each file that exists. godotenv.Load never overrides
// variables already present in the process environment.
func loadEnvFiles(files []string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("stat %s: %w", f, err)
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
