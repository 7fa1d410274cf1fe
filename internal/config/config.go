package config

import (
	"os"
	"strconv"
	"time"
)

const (
	BackendSQL       = "sql"
	BackendFirestore = "firestore"
)

type Config struct {
	DatabaseURL         string
	JWTSecret           string
	Port                string
	StoreBackend        string
	FirestoreProjectID  string
	FirebaseCredentials string
	FCMServiceAccount   string
	RedisURL            string
	SyncSettle          time.Duration
	LogLevel            string
	LogFormat           string
}

func Load() *Config {
	return &Config{
		DatabaseURL:         getEnv("DATABASE_URL", "taskflow.db"),
		JWTSecret:           getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		Port:                getEnv("PORT", "8080"),
		StoreBackend:        getEnv("STORE_BACKEND", BackendSQL),
		FirestoreProjectID:  getEnv("FIRESTORE_PROJECT_ID", ""),
		FirebaseCredentials: getEnv("FIREBASE_CREDENTIALS", ""),
		FCMServiceAccount:   getEnv("FCM_SERVICE_ACCOUNT", ""),
		RedisURL:            getEnv("REDIS_URL", ""),
		SyncSettle:          time.Duration(getEnvInt("SYNC_SETTLE_MS", 500)) * time.Millisecond,
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFormat:           getEnv("LOG_FORMAT", "text"),
	}
}

// FirebaseEnabled reports whether Firebase ID tokens should be accepted.
func (c *Config) FirebaseEnabled() bool {
	return c.FirestoreProjectID != "" || c.FirebaseCredentials != ""
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil && n >= 0 {
			return n
		}
	}
	return fallback
}
