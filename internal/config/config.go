package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store kinds accepted by CONTEXT_STORE and APPOINTMENT_STORE.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StoreDynamoDB = "dynamodb"
	StorePostgres = "postgres"
	StoreSheets   = "sheets"
)

// Config holds application configuration
type Config struct {
	Port      string
	Env       string
	LogLevel  string
	LogFormat string

	// Clinic
	ClinicName                 string
	ClinicTimezone             string
	ClinicOpenHour             int
	ClinicCloseHour            int
	AppointmentDurationMinutes int
	DoctorIDs                  []string
	DoctorNotifyID             string

	// Dialogue
	MaxParseFailures   int
	ContextTTL         time.Duration
	ContextStore       string
	ContextTable       string
	PauseLookaheadDays int

	// Appointment store
	AppointmentStore      string
	DatabaseURL           string
	GoogleCredentialsFile string
	GoogleSheetID         string
	GoogleSheetRange      string
	GoogleCalendarID      string

	// LLM
	GeminiAPIKey   string
	GeminiModel    string
	BedrockModelID string

	// AWS
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Twilio
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	// Ops alerts
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string
	OpsAlertEmail     string

	RateLimitPerSecond float64
	RateLimitBurst     int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:      getEnv("PORT", "8080"),
		Env:       getEnv("ENV", "development"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		ClinicName:                 getEnv("CLINIC_NAME", "the clinic"),
		ClinicTimezone:             getEnv("CLINIC_TIMEZONE", "UTC"),
		ClinicOpenHour:             getEnvAsInt("CLINIC_OPEN_HOUR", 9),
		ClinicCloseHour:            getEnvAsInt("CLINIC_CLOSE_HOUR", 17),
		AppointmentDurationMinutes: getEnvAsInt("APPOINTMENT_DURATION_MINUTES", 60),
		DoctorIDs:                  getEnvAsList("DOCTOR_IDS"),
		DoctorNotifyID:             getEnv("DOCTOR_NOTIFY_ID", ""),

		MaxParseFailures:   getEnvAsInt("MAX_PARSE_FAILURES", 3),
		ContextTTL:         getEnvAsDuration("CONTEXT_TTL", 30*time.Minute),
		ContextStore:       strings.ToLower(getEnv("CONTEXT_STORE", StoreMemory)),
		ContextTable:       getEnv("CONTEXT_TABLE", "conversation_contexts"),
		PauseLookaheadDays: getEnvAsInt("PAUSE_LOOKAHEAD_DAYS", 30),

		AppointmentStore:      strings.ToLower(getEnv("APPOINTMENT_STORE", StoreMemory)),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		GoogleCredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", ""),
		GoogleSheetID:         getEnv("GOOGLE_SHEET_ID", ""),
		GoogleSheetRange:      getEnv("GOOGLE_SHEET_RANGE", "Appointments!A:J"),
		GoogleCalendarID:      getEnv("GOOGLE_CALENDAR_ID", ""),

		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		BedrockModelID: getEnv("BEDROCK_MODEL_ID", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		TwilioAccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber: getEnv("TWILIO_FROM_NUMBER", ""),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Clinic Scheduler"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
		OpsAlertEmail:     getEnv("OPS_ALERT_EMAIL", ""),

		RateLimitPerSecond: getEnvAsFloat("RATE_LIMIT_PER_SECOND", 5),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),
	}
}

// Validate reports configuration combinations the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.ClinicOpenHour < 0 || c.ClinicCloseHour > 24 || c.ClinicOpenHour >= c.ClinicCloseHour {
		errs = append(errs, fmt.Errorf("config: clinic hours [%d, %d) are invalid", c.ClinicOpenHour, c.ClinicCloseHour))
	}
	if c.AppointmentDurationMinutes <= 0 {
		errs = append(errs, errors.New("config: APPOINTMENT_DURATION_MINUTES must be positive"))
	}
	if c.MaxParseFailures <= 0 {
		errs = append(errs, errors.New("config: MAX_PARSE_FAILURES must be positive"))
	}
	switch c.ContextStore {
	case StoreMemory, StoreRedis, StoreDynamoDB:
	default:
		errs = append(errs, fmt.Errorf("config: unknown CONTEXT_STORE %q", c.ContextStore))
	}
	switch c.AppointmentStore {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("config: DATABASE_URL is required for the postgres appointment store"))
		}
	case StoreSheets:
		if c.GoogleSheetID == "" {
			errs = append(errs, errors.New("config: GOOGLE_SHEET_ID is required for the sheets appointment store"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown APPOINTMENT_STORE %q", c.AppointmentStore))
	}
	if _, err := time.LoadLocation(c.ClinicTimezone); err != nil {
		errs = append(errs, fmt.Errorf("config: invalid CLINIC_TIMEZONE: %w", err))
	}
	return errors.Join(errs...)
}

// IsDoctor reports whether senderID belongs to the doctor.
func (c *Config) IsDoctor(senderID string) bool {
	for _, id := range c.DoctorIDs {
		if id == senderID {
			return true
		}
	}
	return false
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping blanks.
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
