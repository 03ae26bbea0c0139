package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
)

var AppEnv Config

type Config struct {
	Port      string
	MongoURI  string
	DBName    string
	JWTSecret string
	TokenTTL  time.Duration

	FrontendURL   string
	PublicBaseURL string
	UploadDir     string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	MailFrom     string

	RabbitMQURL string
	MailQueue   string
	KafkaBroker string
	KafkaTopic  string

	GoogleClientID string

	RateLimitRPS   float64
	RateLimitBurst int

	OutboxPollInterval time.Duration
	OutboxMaxAttempts  int
	DevisTTL           time.Duration

	LogLevel string
}

// Load reads .env (when present) and the process environment into AppEnv.
func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not loaded:", err)
	}
	AppEnv = FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() Config {
	return Config{
		Port:      getEnvOrDefault("PORT", "5000"),
		MongoURI:  getEnvOrDefault("MONGO_URI", "mongodb://localhost:27017"),
		DBName:    getEnvOrDefault("DB_NAME", "senfret"),
		JWTSecret: getEnvOrDefault("JWT_SECRET", ""),
		TokenTTL:  getDurationEnv("ACCESS_TOKEN_TTL", 24, time.Hour),

		FrontendURL:   getEnvOrDefault("FRONTEND_URL", "http://localhost:3000"),
		PublicBaseURL: getEnvOrDefault("PUBLIC_BASE_URL", "http://localhost:5000"),
		UploadDir:     getEnvOrDefault("UPLOAD_DIR", "./public/uploads"),

		SMTPHost:     getEnvOrDefault("SMTP_HOST", ""),
		SMTPPort:     getIntEnv("SMTP_PORT", 587),
		SMTPUser:     getEnvOrDefault("SMTP_USER", ""),
		SMTPPassword: getEnvOrDefault("SMTP_PASSWORD", ""),
		MailFrom:     getEnvOrDefault("MAIL_FROM", "no-reply@senfret.sn"),

		RabbitMQURL: getEnvOrDefault("RABBITMQ_URL", ""),
		MailQueue:   getEnvOrDefault("MAIL_QUEUE", "email_jobs"),
		KafkaBroker: getEnvOrDefault("KAFKA_BROKER", ""),
		KafkaTopic:  getEnvOrDefault("KAFKA_TOPIC", "devis.events"),

		GoogleClientID: getEnvOrDefault("GOOGLE_CLIENT_ID", ""),

		RateLimitRPS:   getFloatEnv("RATE_LIMIT_RPS", 10),
		RateLimitBurst: getIntEnv("RATE_LIMIT_BURST", 30),

		OutboxPollInterval: getDurationEnv("OUTBOX_POLL_INTERVAL", 2, time.Second),
		OutboxMaxAttempts:  getIntEnv("OUTBOX_MAX_ATTEMPTS", 8),
		DevisTTL:           getDurationEnv("DEVIS_TTL_DAYS", 7, 24*time.Hour),

		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
	}
}
