package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	// Storage. DBHost selects PostgreSQL; otherwise SQLite at DBPath.
	DBPath     string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Messaging provider (Twilio WhatsApp)
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioAPIBaseURL  string
	WhatsAppFrom      string
	StatusCallbackURL string
	WebhookURL        string
	ValidateSignature bool
	SendTimeout       time.Duration

	// Reply generator
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	OpenAIModel     string
	PromptPath      string
	GenerateTimeout time.Duration

	// Disposition rules
	ReplyDelay        time.Duration
	AgentWindow       time.Duration
	DailyInboundLimit int
	HistoryTurns      int
	CountryCode       string
	Timezone          string
	FollowUpMessage   string

	// Background work
	SweepToken        string
	SweepInterval     time.Duration
	JobPollInterval   time.Duration
	WorkerConcurrency int
}

const defaultFollowUpMessage = "Hi {{name}}, following up on the delivery you told us had not arrived. " +
	"Has your package reached you yet? Reply here and our team will sort it out."

func LoadConfig() *Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: Error loading .env file")
	}

	return &Config{
		Port: getEnv("PORT", "8080"),

		DBPath:     getEnv("DB_PATH", "./assistant.db"),
		DBHost:     getEnv("DB_HOST", ""),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", ""),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "assistant"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		TwilioAccountSID:  getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:   getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioAPIBaseURL:  getEnv("TWILIO_API_BASE_URL", "https://api.twilio.com"),
		WhatsAppFrom:      getEnv("WHATSAPP_FROM", ""),
		StatusCallbackURL: getEnv("STATUS_CALLBACK_URL", ""),
		WebhookURL:        getEnv("WEBHOOK_URL", ""),
		ValidateSignature: getEnvBool("VALIDATE_SIGNATURE", false),
		SendTimeout:       getEnvDuration("SEND_TIMEOUT", 15*time.Second),

		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:     getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		PromptPath:      getEnv("PROMPT_PATH", ""),
		GenerateTimeout: getEnvDuration("GENERATE_TIMEOUT", 30*time.Second),

		ReplyDelay:        getEnvDuration("REPLY_DELAY", 30*time.Second),
		AgentWindow:       getEnvDuration("AGENT_WINDOW", 5*time.Minute),
		DailyInboundLimit: getEnvInt("DAILY_INBOUND_LIMIT", 20),
		HistoryTurns:      getEnvInt("HISTORY_TURNS", 5),
		CountryCode:       strings.TrimPrefix(getEnv("COUNTRY_CODE", "254"), "+"),
		Timezone:          getEnv("TIMEZONE", ""),
		FollowUpMessage:   getEnv("FOLLOW_UP_MESSAGE", defaultFollowUpMessage),

		SweepToken:        getEnv("SWEEP_TOKEN", ""),
		SweepInterval:     getEnvDuration("SWEEP_INTERVAL", 0),
		JobPollInterval:   getEnvDuration("JOB_POLL_INTERVAL", 2*time.Second),
		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 8),
	}
}

// Location resolves Timezone, falling back to the process local zone.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		log.Printf("Warning: unknown TIMEZONE %q, using local time: %v", c.Timezone, err)
		return time.Local
	}
	return loc
}

// UsePostgres reports whether the store should connect to PostgreSQL.
func (c *Config) UsePostgres() bool {
	return c.DBHost != ""
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Warning: invalid integer for %s: %q", key, value)
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("Warning: invalid boolean for %s: %q", key, value)
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Warning: invalid duration for %s: %q", key, value)
		return fallback
	}
	return d
}
