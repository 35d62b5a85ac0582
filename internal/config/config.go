package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	MigrateOnStart bool

	ServerPort string

	JWTSecret string

	RedisURL            string
	WorkerCount         int
	DeliveryMaxAttempts int

	DefaultLocale string

	PushProvider   string
	ExpoPushURL    string
	FCMProjectID   string
	FCMClientEmail string
	FCMPrivateKey  string

	StreamMaxLen int64
}

func LoadConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found or error loading it, relying on environment variables")
	}

	serverPort := os.Getenv("SERVER_PORT")
	if serverPort == "" {
		serverPort = "8080"
	}

	sslMode := os.Getenv("DB_SSLMODE")
	if sslMode == "" {
		sslMode = "require"
	}

	workerCount, err := strconv.Atoi(os.Getenv("WORKER_COUNT"))
	if err != nil || workerCount < 0 {
		workerCount = 2
	}

	maxAttempts, err := strconv.Atoi(os.Getenv("DELIVERY_MAX_ATTEMPTS"))
	if err != nil || maxAttempts <= 0 {
		maxAttempts = 5
	}

	migrateOnStart, err := strconv.ParseBool(os.Getenv("MIGRATE_ON_START"))
	if err != nil {
		migrateOnStart = true
	}

	defaultLocale := os.Getenv("DEFAULT_LOCALE")
	if defaultLocale == "" {
		defaultLocale = "en"
	}

	pushProvider := strings.ToLower(os.Getenv("PUSH_PROVIDER"))
	switch pushProvider {
	case "expo", "fcm", "none":
	case "":
		pushProvider = "none"
	default:
		return nil, fmt.Errorf("unknown PUSH_PROVIDER %q", pushProvider)
	}

	streamMaxLen, err := strconv.ParseInt(os.Getenv("STREAM_MAX_LEN"), 10, 64)
	if err != nil || streamMaxLen <= 0 {
		streamMaxLen = 10000
	}

	return &Config{
		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     os.Getenv("DB_PORT"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBSSLMode:  sslMode,

		MigrateOnStart: migrateOnStart,

		ServerPort: serverPort,

		JWTSecret: os.Getenv("JWT_SECRET"),

		// Empty disables event publishing and the delivery worker
		RedisURL:            os.Getenv("REDIS_URL"),
		WorkerCount:         workerCount,
		DeliveryMaxAttempts: maxAttempts,

		DefaultLocale: defaultLocale,

		PushProvider:   pushProvider,
		ExpoPushURL:    os.Getenv("EXPO_PUSH_URL"),
		FCMProjectID:   os.Getenv("FCM_PROJECT_ID"),
		FCMClientEmail: os.Getenv("FCM_CLIENT_EMAIL"),
		FCMPrivateKey:  os.Getenv("FCM_PRIVATE_KEY"),

		StreamMaxLen: streamMaxLen,
	}, nil
}
