package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the sync engine process.
// Environment variables win over values from an optional .env file.
type Config struct {
	Server    ServerConfig
	Relay     RelayConfig
	Sync      SyncConfig
	Transport TransportConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	S3        S3Config
}

type ServerConfig struct {
	Port        string
	Environment string
}

// RelayConfig is used by the relay subcommand only.
type RelayConfig struct {
	Port          string
	MessageLimit  int
	CommandLimit  int
	LimiterWindow time.Duration
}

// SyncConfig tunes the engine itself.
type SyncConfig struct {
	UserID          string
	EchoTolerance   time.Duration
	TypingIdle      time.Duration
	MaxSendAttempts int
	InboxSize       int
	HistoryLimit    int
}

type TransportConfig struct {
	Kind      string // "websocket" or "redis"
	URL       string
	JWTSecret string
	TokenTTL  time.Duration
}

type DatabaseConfig struct {
	URL string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type S3Config struct {
	Region     string
	Bucket     string
	AccessKey  string
	SecretKey  string
	Endpoint   string
	PublicBase string
	MaxSize    int64
}

// LoadConfig loads configuration from the environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8090"),
			Environment: getEnv("APP_ENV", "development"),
		},
		Relay: RelayConfig{
			Port:          getEnv("RELAY_PORT", "8080"),
			MessageLimit:  getEnvAsInt("RELAY_MESSAGE_LIMIT", 60),
			CommandLimit:  getEnvAsInt("RELAY_COMMAND_LIMIT", 120),
			LimiterWindow: getEnvAsDuration("RELAY_LIMIT_WINDOW", time.Minute),
		},
		Sync: SyncConfig{
			UserID:          getEnv("CHAT_USER_ID", ""),
			EchoTolerance:   getEnvAsDuration("CHAT_ECHO_TOLERANCE", 5*time.Second),
			TypingIdle:      getEnvAsDuration("CHAT_TYPING_IDLE", 2*time.Second),
			MaxSendAttempts: getEnvAsInt("CHAT_MAX_SEND_ATTEMPTS", 3),
			InboxSize:       getEnvAsInt("CHAT_INBOX_SIZE", 256),
			HistoryLimit:    getEnvAsInt("CHAT_HISTORY_LIMIT", 50),
		},
		Transport: TransportConfig{
			Kind:      getEnv("TRANSPORT_KIND", "websocket"),
			URL:       getEnv("TRANSPORT_URL", "ws://localhost:8080/ws"),
			JWTSecret: getEnv("JWT_SECRET", "change-me"),
			TokenTTL:  getEnvAsDuration("JWT_TTL", 15*time.Minute),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		S3: S3Config{
			Region:     getEnv("S3_REGION", ""),
			Bucket:     getEnv("S3_BUCKET", ""),
			AccessKey:  getEnv("S3_ACCESS_KEY", ""),
			SecretKey:  getEnv("S3_SECRET_KEY", ""),
			Endpoint:   getEnv("S3_ENDPOINT", ""),
			PublicBase: getEnv("S3_PUBLIC_BASE", ""),
			MaxSize:    int64(getEnvAsInt("S3_MAX_UPLOAD_BYTES", 25<<20)),
		},
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
