package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	App         AppConfig
	Log         LogConfig
	CORS        CORSConfig
	Email       EmailConfig
	SMS         SMSConfig
	Spreadsheet SpreadsheetConfig
	Dispatch    DispatchConfig
}

// AppConfig holds application-level configuration
type AppConfig struct {
	Name    string
	Version string
	Env     string
	Debug   bool
	Port    string
	Host    string
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level string
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         int
}

// EmailConfig holds SMTP configuration for the email channel
type EmailConfig struct {
	SMTPHost   string
	SMTPPort   int
	Username   string
	Password   string
	FromName   string
	AdminEmail string
}

// SMSConfig holds Twilio configuration for the SMS channel
type SMSConfig struct {
	TwilioSID          string
	TwilioAuth         string
	TwilioFrom         string
	APIBaseURL         string
	StaffNumber        string
	NotifyCustomer     bool
	DefaultCountryCode string
}

// SpreadsheetConfig holds the spreadsheet webhook configuration
type SpreadsheetConfig struct {
	WebhookURL    string
	WebhookSecret string
}

// DispatchConfig holds the dispatcher policy
type DispatchConfig struct {
	ChannelTimeout     time.Duration
	RequireAllChannels bool
	// MaxConcurrent caps parallel channel sends; 0 is unlimited.
	MaxConcurrent int
}

// Load loads configuration from environment variables. Missing channel
// credentials are not an error: the affected channel reports itself as
// unconfigured.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		App: AppConfig{
			Name:    getEnv("APP_NAME", "Oikos Forms API"),
			Version: getEnv("APP_VERSION", "1.0.0"),
			Env:     getEnv("APP_ENV", "production"),
			Debug:   getEnvAsBool("DEBUG", false),
			Port:    getEnv("PORT", "8000"),
			Host:    getEnv("HOST", "0.0.0.0"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Accept", "X-Request-ID"},
			MaxAge:         86400,
		},
		Email: EmailConfig{
			SMTPHost:   getEnv("SMTP_HOST", "smtp.gmail.com"),
			SMTPPort:   getEnvAsInt("SMTP_PORT", 587),
			Username:   getEnv("GMAIL_USER", ""),
			Password:   stripSpaces(getEnv("GMAIL_APP_PASSWORD", "")),
			FromName:   getEnv("EMAIL_FROM_NAME", "Oikos Orchard & Farm"),
			AdminEmail: getEnv("ADMIN_EMAIL", ""),
		},
		SMS: SMSConfig{
			TwilioSID:          getEnv("TWILIO_ACCOUNT_SID", ""),
			TwilioAuth:         getEnv("TWILIO_AUTH_TOKEN", ""),
			TwilioFrom:         getEnv("TWILIO_PHONE_NUMBER", ""),
			APIBaseURL:         getEnv("TWILIO_API_BASE_URL", "https://api.twilio.com"),
			StaffNumber:        getEnv("NOTIFY_PHONE_NUMBER", ""),
			NotifyCustomer:     getEnvAsBool("SMS_NOTIFY_CUSTOMER", true),
			DefaultCountryCode: getEnv("SMS_DEFAULT_COUNTRY_CODE", "+63"),
		},
		Spreadsheet: SpreadsheetConfig{
			WebhookURL:    getEnv("SPREADSHEET_WEBHOOK_URL", ""),
			WebhookSecret: getEnv("SPREADSHEET_WEBHOOK_SECRET", ""),
		},
		Dispatch: DispatchConfig{
			ChannelTimeout:     getEnvAsDuration("CHANNEL_TIMEOUT", 10*time.Second),
			RequireAllChannels: getEnvAsBool("REQUIRE_ALL_CHANNELS", false),
			MaxConcurrent:      getEnvAsInt("DISPATCH_MAX_CONCURRENCY", 0),
		},
	}

	// Admin notifications default to the sending Gmail account
	if config.Email.AdminEmail == "" {
		config.Email.AdminEmail = config.Email.Username
	}
	if config.Dispatch.ChannelTimeout <= 0 {
		config.Dispatch.ChannelTimeout = 10 * time.Second
	}
	if config.Dispatch.MaxConcurrent < 0 {
		config.Dispatch.MaxConcurrent = 0
	}

	return config, nil
}

// Enabled reports whether the email channel has credentials
func (c EmailConfig) Enabled() bool {
	return c.SMTPHost != "" && c.Username != "" && c.Password != "" && c.AdminEmail != ""
}

// FromEmail is the sender identity, which for Gmail is the account itself
func (c EmailConfig) FromEmail() string {
	return c.Username
}

// Enabled reports whether the SMS channel has credentials and a staff recipient
func (c SMSConfig) Enabled() bool {
	return c.TwilioSID != "" && c.TwilioAuth != "" && c.TwilioFrom != "" && c.StaffNumber != ""
}

// Enabled reports whether the spreadsheet webhook is set
func (c SpreadsheetConfig) Enabled() bool {
	return c.WebhookURL != ""
}

// IsDevelopment reports whether the app runs in a development environment
func (c AppConfig) IsDevelopment() bool {
	env := strings.ToLower(c.Env)
	return env == "development" || env == "dev" || env == "local"
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func stripSpaces(s string) string {
	return strings.Join(strings.Fields(s), "")
}
