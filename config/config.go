package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config carries every process-wide setting. Secrets are read once here and
// injected into the components that need them, never looked up ambiently.
type Config struct {
	Addr        string
	DatabaseDSN string

	// Session tokens
	SigningKey string
	Issuer     string
	TokenTTL   time.Duration

	// Verification links
	BaseURL string

	// Avatar storage
	AvatarDir          string
	TmpDir             string
	AvatarPublicPrefix string

	// Outbound mail
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MailFrom     string

	LogLevel string
	Debug    bool
}

// Load reads configuration from the environment. The signing key has no safe
// default and aborts startup when missing.
func Load() (Config, error) {
	key := os.Getenv("SIGNING_KEY")
	if key == "" {
		return Config{}, fmt.Errorf("missing required env SIGNING_KEY")
	}

	return Config{
		Addr:        getenv("ADDR", ":3000"),
		DatabaseDSN: getenv("DATABASE_DSN", "file:go-contacts.db?cache=shared"),

		SigningKey: key,
		Issuer:     getenv("ISSUER", "go-contacts"),
		TokenTTL:   getdur("TOKEN_TTL", time.Hour),

		BaseURL: getenv("BASE_URL", "http://localhost:3000"),

		AvatarDir:          getenv("AVATAR_DIR", "public/avatars"),
		TmpDir:             getenv("TMP_DIR", "tmp"),
		AvatarPublicPrefix: getenv("AVATAR_PUBLIC_PREFIX", "/avatars"),

		SMTPHost:     getenv("SMTP_HOST", "localhost"),
		SMTPPort:     getint("SMTP_PORT", 587),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		MailFrom:     getenv("MAIL_FROM", "noreply@go-contacts.local"),

		LogLevel: getenv("LOG_LEVEL", "info"),
		Debug:    getbool("DEBUG", false),
	}, nil
}

// Sanitized returns a copy safe for debug dumps.
func (c Config) Sanitized() Config {
	c.SigningKey = "[redacted]"
	c.SMTPPassword = "[redacted]"
	return c
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
