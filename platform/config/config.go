// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for the admin middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// EmailConfig provides settings for outbound SMTP delivery.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
}

// MailboxConfig provides settings for the IMAP inbox poller.
type MailboxConfig interface {
	GetIMAPHost() string
	GetIMAPPort() int
	GetIMAPUsername() string
	GetIMAPPassword() string
	GetIMAPFolder() string
	GetMailboxPollInterval() time.Duration
	IsMailboxEnabled() bool
}

// SchedulerConfig provides settings for the background schedulers and the
// asynq task transport.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetRecurringTickInterval() time.Duration
	GetReminderTickInterval() time.Duration
	GetReminderThresholdDays() int
}

// InvoiceConfig provides tuning for the invoice engine.
type InvoiceConfig interface {
	GetInvoiceNumberPrefix() string
	GetTransferChargeCents() int64
	GetChatFuzzyThreshold() int
	GetAPIFuzzyThreshold() int
	GetDefaultPaymentTerm() string
}

// AIConfig provides settings for the AI extraction strategy.
type AIConfig interface {
	GetGeminiAPIKey() string
	GetGeminiModel() string
	IsAIExtractionEnabled() bool
}

// StorageConfig provides settings for MinIO document storage.
type StorageConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinioBucketInvoiceDocuments() string
	IsMinIOEnabled() bool
}

// PDFConfig provides settings for the Gotenberg HTML-to-PDF service.
type PDFConfig interface {
	GetGotenbergURL() string
	GetGotenbergUsername() string
	GetGotenbergPassword() string
	IsGotenbergEnabled() bool
}

// SessionStoreConfig provides settings for the chat session store.
type SessionStoreConfig interface {
	GetSessionRedisURL() string
	GetSessionTTL() time.Duration
}

// ProfileConfig locates the YAML company/bank profile rendered on documents.
type ProfileConfig interface {
	GetCompanyProfilePath() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                   string
	HTTPAddr              string
	DatabaseURL           string
	JWTAccessSecret       string
	CORSAllowAll          bool
	CORSOrigins           []string
	CORSAllowCreds        bool
	EmailEnabled          bool
	SMTPHost              string
	SMTPPort              int
	SMTPUsername          string
	SMTPPassword          string
	EmailFromName         string
	EmailFromAddress      string
	IMAPHost              string
	IMAPPort              int
	IMAPUsername          string
	IMAPPassword          string
	IMAPFolder            string
	MailboxPollInterval   time.Duration
	RedisURL              string
	RedisTLSInsecure      bool
	AsynqQueueName        string
	AsynqConcurrency      int
	RecurringTickInterval time.Duration
	ReminderTickInterval  time.Duration
	ReminderThresholdDays int
	InvoiceNumberPrefix   string
	TransferChargeCents   int64
	ChatFuzzyThreshold    int
	APIFuzzyThreshold     int
	DefaultPaymentTerm    string
	GeminiAPIKey          string
	GeminiModel           string
	MinIOEndpoint         string
	MinIOAccessKey        string
	MinIOSecretKey        string
	MinIOUseSSL           bool
	BucketInvoiceDocs     string
	GotenbergURL          string
	GotenbergUsername     string
	GotenbergPassword     string
	SessionRedisURL       string
	SessionTTL            time.Duration
	CompanyProfilePath    string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// EmailConfig implementation
func (c *Config) GetEmailEnabled() bool       { return c.EmailEnabled }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }

// MailboxConfig implementation
func (c *Config) GetIMAPHost() string                    { return c.IMAPHost }
func (c *Config) GetIMAPPort() int                       { return c.IMAPPort }
func (c *Config) GetIMAPUsername() string                { return c.IMAPUsername }
func (c *Config) GetIMAPPassword() string                { return c.IMAPPassword }
func (c *Config) GetIMAPFolder() string                  { return c.IMAPFolder }
func (c *Config) GetMailboxPollInterval() time.Duration  { return c.MailboxPollInterval }
func (c *Config) IsMailboxEnabled() bool                 { return c.IMAPHost != "" }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string                      { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool                { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string                { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int                 { return c.AsynqConcurrency }
func (c *Config) GetRecurringTickInterval() time.Duration  { return c.RecurringTickInterval }
func (c *Config) GetReminderTickInterval() time.Duration   { return c.ReminderTickInterval }
func (c *Config) GetReminderThresholdDays() int            { return c.ReminderThresholdDays }

// InvoiceConfig implementation
func (c *Config) GetInvoiceNumberPrefix() string { return c.InvoiceNumberPrefix }
func (c *Config) GetTransferChargeCents() int64  { return c.TransferChargeCents }
func (c *Config) GetChatFuzzyThreshold() int     { return c.ChatFuzzyThreshold }
func (c *Config) GetAPIFuzzyThreshold() int      { return c.APIFuzzyThreshold }
func (c *Config) GetDefaultPaymentTerm() string  { return c.DefaultPaymentTerm }

// AIConfig implementation
func (c *Config) GetGeminiAPIKey() string     { return c.GeminiAPIKey }
func (c *Config) GetGeminiModel() string      { return c.GeminiModel }
func (c *Config) IsAIExtractionEnabled() bool { return c.GeminiAPIKey != "" }

// StorageConfig implementation
func (c *Config) GetMinIOEndpoint() string               { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string              { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string              { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool                   { return c.MinIOUseSSL }
func (c *Config) GetMinioBucketInvoiceDocuments() string { return c.BucketInvoiceDocs }
func (c *Config) IsMinIOEnabled() bool                   { return c.MinIOEndpoint != "" }

// PDFConfig implementation
func (c *Config) GetGotenbergURL() string      { return c.GotenbergURL }
func (c *Config) GetGotenbergUsername() string { return c.GotenbergUsername }
func (c *Config) GetGotenbergPassword() string { return c.GotenbergPassword }
func (c *Config) IsGotenbergEnabled() bool     { return c.GotenbergURL != "" }

// SessionStoreConfig implementation
func (c *Config) GetSessionRedisURL() string    { return c.SessionRedisURL }
func (c *Config) GetSessionTTL() time.Duration  { return c.SessionTTL }

// ProfileConfig implementation
func (c *Config) GetCompanyProfilePath() string { return c.CompanyProfilePath }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	emailEnabled := strings.EqualFold(getEnv("EMAIL_ENABLED", "true"), "true")
	smtpHost := getEnv("SMTP_HOST", "")

	cfg := &Config{
		Env:                   getEnv("APP_ENV", "development"),
		HTTPAddr:              getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		JWTAccessSecret:       getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:          corsAllowAll,
		CORSOrigins:           corsOrigins,
		CORSAllowCreds:        strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		EmailEnabled:          emailEnabled && smtpHost != "",
		SMTPHost:              smtpHost,
		SMTPPort:              mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:          getEnv("SMTP_USERNAME", ""),
		SMTPPassword:          getEnv("SMTP_PASSWORD", ""),
		EmailFromName:         getEnv("EMAIL_FROM_NAME", "Back Office"),
		EmailFromAddress:      getEnv("EMAIL_FROM_ADDRESS", ""),
		IMAPHost:              getEnv("IMAP_HOST", ""),
		IMAPPort:              mustInt(getEnv("IMAP_PORT", "993")),
		IMAPUsername:          getEnv("IMAP_USERNAME", ""),
		IMAPPassword:          getEnv("IMAP_PASSWORD", ""),
		IMAPFolder:            getEnv("IMAP_FOLDER", "INBOX"),
		MailboxPollInterval:   mustDuration(getEnv("MAILBOX_POLL_INTERVAL", "1m")),
		RedisURL:              getEnv("REDIS_URL", ""),
		RedisTLSInsecure:      strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:        getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:      mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		RecurringTickInterval: mustDuration(getEnv("RECURRING_TICK_INTERVAL", "1m")),
		ReminderTickInterval:  mustDuration(getEnv("REMINDER_TICK_INTERVAL", "1m")),
		ReminderThresholdDays: mustInt(getEnv("REMINDER_THRESHOLD_DAYS", "14")),
		InvoiceNumberPrefix:   getEnv("INVOICE_NUMBER_PREFIX", "INV-"),
		TransferChargeCents:   mustInt64(getEnv("TRANSFER_CHARGE_CENTS", "3500")),
		ChatFuzzyThreshold:    mustInt(getEnv("CHAT_FUZZY_THRESHOLD", "4")),
		APIFuzzyThreshold:     mustInt(getEnv("API_FUZZY_THRESHOLD", "2")),
		DefaultPaymentTerm:    getEnv("DEFAULT_PAYMENT_TERM", "14 days"),
		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		GeminiModel:           getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		MinIOEndpoint:         getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:        getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:        getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:           strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		BucketInvoiceDocs:     getEnv("MINIO_BUCKET_INVOICE_DOCUMENTS", "invoice-documents"),
		GotenbergURL:          getEnv("GOTENBERG_URL", ""),
		GotenbergUsername:     getEnv("GOTENBERG_USERNAME", ""),
		GotenbergPassword:     getEnv("GOTENBERG_PASSWORD", ""),
		SessionRedisURL:       getEnv("SESSION_REDIS_URL", ""),
		SessionTTL:            mustDuration(getEnv("SESSION_TTL", "24h")),
		CompanyProfilePath:    getEnv("COMPANY_PROFILE_PATH", "company.yaml"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.EmailEnabled && cfg.EmailFromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when email is enabled")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if cfg.ReminderThresholdDays < 1 {
		return nil, fmt.Errorf("REMINDER_THRESHOLD_DAYS must be at least 1")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func mustInt64(value string) int64 {
	result, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
