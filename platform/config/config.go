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

// JWTConfig provides JWT validation settings for middleware.
// Tokens are issued by the upstream auth gateway; this service only verifies.
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

// SchedulerConfig provides settings for the asynq task scheduler.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// EmailConfig provides settings for SMTP email sending.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
}

// WhatsAppConfig provides settings for the WhatsApp HTTP gateway.
type WhatsAppConfig interface {
	GetWhatsAppURL() string
	GetWhatsAppKey() string
}

// NotificationConfig provides settings for operator-facing notifications.
type NotificationConfig interface {
	GetOperatorEmail() string
}

// CalendarConfig provides settings for the calendar/video-meeting service.
type CalendarConfig interface {
	GetCalendarBaseURL() string
	GetCalendarAPIKey() string
	GetCalendarRequestsPerSecond() float64
}

// PaymentGatewayConfig provides settings for the payment gateway client.
type PaymentGatewayConfig interface {
	GetPaymentGatewayBaseURL() string
	GetPaymentGatewayKeyID() string
	GetPaymentGatewayKeySecret() string
}

// BotConfig provides settings for the meeting-recording bot service.
type BotConfig interface {
	GetBotBaseURL() string
	GetBotAPIKey() string
}

// JobsConfig provides settings for the external-scheduler trigger surface.
type JobsConfig interface {
	GetJobsTriggerSecret() string
	GetJobsAllowed() []string
}

// StorageConfig provides settings for MinIO S3-compatible storage.
type StorageConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinioBucketReconReports() string
	IsMinIOEnabled() bool
}

// OrchestratorConfig provides tuning for the scheduling orchestrator.
type OrchestratorConfig interface {
	GetAdapterTimeout() time.Duration
	GetNudgeLeadTime() time.Duration
}

// ReconciliationConfig provides tuning for the payment reconciliation worker.
type ReconciliationConfig interface {
	GetReconWindow() time.Duration
	GetReconConcurrency() int
	GetReconInterval() time.Duration
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                     string
	HTTPAddr                string
	DatabaseURL             string
	JWTAccessSecret         string
	CORSAllowAll            bool
	CORSOrigins             []string
	CORSAllowCreds          bool
	RedisURL                string
	RedisTLSInsecure        bool
	AsynqQueueName          string
	AsynqConcurrency        int
	EmailEnabled            bool
	SMTPHost                string
	SMTPPort                int
	SMTPUsername            string
	SMTPPassword            string
	EmailFromName           string
	EmailFromAddress        string
	WhatsAppURL             string
	WhatsAppKey             string
	OperatorEmail           string
	CalendarBaseURL         string
	CalendarAPIKey          string
	CalendarRPS             float64
	PaymentGatewayBaseURL   string
	PaymentGatewayKeyID     string
	PaymentGatewayKeySecret string
	BotBaseURL              string
	BotAPIKey               string
	JobsTriggerSecret       string
	JobsAllowed             []string
	MinIOEndpoint           string
	MinIOAccessKey          string
	MinIOSecretKey          string
	MinIOUseSSL             bool
	MinioBucketReconReports string
	AdapterTimeout          time.Duration
	NudgeLeadTime           time.Duration
	ReconWindow             time.Duration
	ReconConcurrency        int
	ReconInterval           time.Duration
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

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// EmailConfig implementation
func (c *Config) GetEmailEnabled() bool       { return c.EmailEnabled }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }

// WhatsAppConfig implementation
func (c *Config) GetWhatsAppURL() string { return c.WhatsAppURL }
func (c *Config) GetWhatsAppKey() string { return c.WhatsAppKey }

// NotificationConfig implementation
func (c *Config) GetOperatorEmail() string { return c.OperatorEmail }

// CalendarConfig implementation
func (c *Config) GetCalendarBaseURL() string            { return c.CalendarBaseURL }
func (c *Config) GetCalendarAPIKey() string             { return c.CalendarAPIKey }
func (c *Config) GetCalendarRequestsPerSecond() float64 { return c.CalendarRPS }

// PaymentGatewayConfig implementation
func (c *Config) GetPaymentGatewayBaseURL() string   { return c.PaymentGatewayBaseURL }
func (c *Config) GetPaymentGatewayKeyID() string     { return c.PaymentGatewayKeyID }
func (c *Config) GetPaymentGatewayKeySecret() string { return c.PaymentGatewayKeySecret }

// BotConfig implementation
func (c *Config) GetBotBaseURL() string { return c.BotBaseURL }
func (c *Config) GetBotAPIKey() string  { return c.BotAPIKey }

// JobsConfig implementation
func (c *Config) GetJobsTriggerSecret() string { return c.JobsTriggerSecret }
func (c *Config) GetJobsAllowed() []string     { return c.JobsAllowed }

// StorageConfig implementation
func (c *Config) GetMinIOEndpoint() string  { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool      { return c.MinIOUseSSL }
func (c *Config) GetMinioBucketReconReports() string {
	return c.MinioBucketReconReports
}
func (c *Config) IsMinIOEnabled() bool { return c.MinIOEndpoint != "" }

// OrchestratorConfig implementation
func (c *Config) GetAdapterTimeout() time.Duration { return c.AdapterTimeout }
func (c *Config) GetNudgeLeadTime() time.Duration  { return c.NudgeLeadTime }

// ReconciliationConfig implementation
func (c *Config) GetReconWindow() time.Duration   { return c.ReconWindow }
func (c *Config) GetReconConcurrency() int        { return c.ReconConcurrency }
func (c *Config) GetReconInterval() time.Duration { return c.ReconInterval }

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
		Env:                     getEnv("APP_ENV", "development"),
		HTTPAddr:                getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:             getEnv("DATABASE_URL", ""),
		JWTAccessSecret:         getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:            corsAllowAll,
		CORSOrigins:             corsOrigins,
		CORSAllowCreds:          strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		RedisURL:                getEnv("REDIS_URL", ""),
		RedisTLSInsecure:        strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:          getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:        mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		EmailEnabled:            emailEnabled && smtpHost != "",
		SMTPHost:                smtpHost,
		SMTPPort:                mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:            getEnv("SMTP_USERNAME", ""),
		SMTPPassword:            getEnv("SMTP_PASSWORD", ""),
		EmailFromName:           getEnv("EMAIL_FROM_NAME", "TutorCoach"),
		EmailFromAddress:        getEnv("EMAIL_FROM_ADDRESS", ""),
		WhatsAppURL:             getEnv("WHATSAPP_URL", ""),
		WhatsAppKey:             getEnv("WHATSAPP_KEY", ""),
		OperatorEmail:           getEnv("OPERATOR_EMAIL", ""),
		CalendarBaseURL:         getEnv("CALENDAR_BASE_URL", ""),
		CalendarAPIKey:          getEnv("CALENDAR_API_KEY", ""),
		CalendarRPS:             mustFloat(getEnv("CALENDAR_RPS", "5")),
		PaymentGatewayBaseURL:   getEnv("PAYMENT_GATEWAY_BASE_URL", ""),
		PaymentGatewayKeyID:     getEnv("PAYMENT_GATEWAY_KEY_ID", ""),
		PaymentGatewayKeySecret: getEnv("PAYMENT_GATEWAY_KEY_SECRET", ""),
		BotBaseURL:              getEnv("BOT_BASE_URL", ""),
		BotAPIKey:               getEnv("BOT_API_KEY", ""),
		JobsTriggerSecret:       getEnv("JOBS_TRIGGER_SECRET", ""),
		JobsAllowed:             splitCSV(getEnv("JOBS_ALLOWED", "reconcile-payments,session-nudges")),
		MinIOEndpoint:           getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:          getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:          getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:             strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinioBucketReconReports: getEnv("MINIO_BUCKET_RECON_REPORTS", "recon-reports"),
		AdapterTimeout:          mustDuration(getEnv("ADAPTER_TIMEOUT", "15s")),
		NudgeLeadTime:           mustDuration(getEnv("NUDGE_LEAD_TIME", "24h")),
		ReconWindow:             mustDuration(getEnv("RECON_WINDOW", "168h")),
		ReconConcurrency:        mustInt(getEnv("RECON_CONCURRENCY", "4")),
		ReconInterval:           mustDuration(getEnv("RECON_INTERVAL", "24h")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if emailEnabled && cfg.SMTPHost != "" && cfg.EmailFromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when email is enabled")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
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

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(value, 64)
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
