package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config agrupa todo lo que el proceso lee del entorno.
type Config struct {
	Port    string
	AppName string

	LogLevel  string
	LogFormat string

	// Vacío = repos in-memory (modo dev).
	DBDSN string
	// Crea tablas faltantes al arrancar.
	DBAutoMigrate bool

	// Vacío = sin lock distribuido.
	RedisURL string
	LockTTL  time.Duration

	// Vacío = modo dev con X-Debug-User-ID.
	JWTSecret string

	Storage StorageConfig

	ShutdownTimeout time.Duration
}

type StorageConfig struct {
	Driver string // memory | gcs | cloudinary

	GCSBucket          string
	GCSCredentialsFile string
	GCSSignerEmail     string
	GCSSignerKeyFile   string

	CloudinaryURL       string
	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	CloudinaryFolder    string
}

// Load carga .env si existe (no es error si falta) y luego lee variables con defaults.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:          getenv("PORT", "8080"),
		AppName:       getenv("APP_NAME", "petcare"),
		LogLevel:      getenv("LOG_LEVEL", "info"),
		LogFormat:     getenv("LOG_FORMAT", "text"),
		DBDSN:         getenv("DB_DSN", ""),
		DBAutoMigrate: getenvBool("DB_AUTO_MIGRATE", true),
		RedisURL:      getenv("REDIS_URL", ""),
		LockTTL:       getenvDuration("LOCK_TTL", 10*time.Second),
		JWTSecret:     getenv("JWT_SECRET", ""),
		Storage: StorageConfig{
			Driver:              strings.ToLower(getenv("STORAGE_DRIVER", "memory")),
			GCSBucket:           getenv("GCS_BUCKET", ""),
			GCSCredentialsFile:  getenv("GCS_CREDENTIALS_FILE", ""),
			GCSSignerEmail:      getenv("GCS_SIGNER_EMAIL", ""),
			GCSSignerKeyFile:    getenv("GCS_SIGNER_KEY_FILE", ""),
			CloudinaryURL:       getenv("CLOUDINARY_URL", ""),
			CloudinaryCloudName: getenv("CLOUDINARY_CLOUD_NAME", ""),
			CloudinaryAPIKey:    getenv("CLOUDINARY_API_KEY", ""),
			CloudinaryAPISecret: getenv("CLOUDINARY_API_SECRET", ""),
			CloudinaryFolder:    getenv("CLOUDINARY_FOLDER", "petcare"),
		},
		ShutdownTimeout: getenvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
	}
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// getenvDuration acepta "10s", "2m" o un entero en segundos.
func getenvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return def
}

func getenvBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
