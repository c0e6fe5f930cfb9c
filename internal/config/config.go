package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	ListenAddr string
	AuthToken  string

	DBDriver string // sqlite | postgres
	DBDSN    string

	StorageBackend string // fs | s3
	StoragePath    string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3Bucket       string
	S3Region       string
	S3UseSSL       bool

	// RedisAddr enables the shared vehicle lock; empty keeps it in-process.
	RedisAddr     string
	RedisPassword string
	// LockTTL is how long a crashed holder can block a vehicle. Held locks
	// renew every LockTTL/3.
	LockTTL time.Duration

	MaxUploadBytes int64
	// MaxImagePixels bounds width*height of an accepted original.
	MaxImagePixels int64
	WriteRetries   int

	// ReconcileSchedule is a cron spec with seconds; empty disables the job.
	ReconcileSchedule string
	ReconcileRepair   bool

	ShutdownTimeout time.Duration
}

func Load() *Config {
	return &Config{
		ListenAddr: getEnv("VG_LISTEN_ADDR", ":8080"),
		AuthToken:  getEnv("VG_AUTH_TOKEN", ""),

		DBDriver: getEnv("VG_DB_DRIVER", "sqlite"),
		DBDSN:    getEnv("VG_DB_DSN", "/data/db/gallery.db"),

		StorageBackend: getEnv("VG_STORAGE_BACKEND", "fs"),
		StoragePath:    getEnv("VG_STORAGE_PATH", "/data/images"),
		S3Endpoint:     getEnv("VG_S3_ENDPOINT", ""),
		S3AccessKey:    getEnv("VG_S3_ACCESS_KEY", ""),
		S3SecretKey:    getEnv("VG_S3_SECRET_KEY", ""),
		S3Bucket:       getEnv("VG_S3_BUCKET", "vehicle-gallery"),
		S3Region:       getEnv("VG_S3_REGION", "us-east-1"),
		S3UseSSL:       getEnvBool("VG_S3_USE_SSL", false),

		RedisAddr:     getEnv("VG_REDIS_ADDR", ""),
		RedisPassword: getEnv("VG_REDIS_PASSWORD", ""),
		LockTTL:       getEnvDuration("VG_LOCK_TTL", 30*time.Second),

		MaxUploadBytes: int64(getEnvInt("VG_MAX_UPLOAD_BYTES", 10<<20)),
		MaxImagePixels: int64(getEnvInt("VG_MAX_IMAGE_PIXELS", 50_000_000)),
		WriteRetries:   getEnvInt("VG_WRITE_RETRIES", 3),

		ReconcileSchedule: getEnv("VG_RECONCILE_SCHEDULE", ""),
		ReconcileRepair:   getEnvBool("VG_RECONCILE_REPAIR", false),

		ShutdownTimeout: getEnvDuration("VG_SHUTDOWN_TIMEOUT", 15*time.Second),
	}
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("VG_DB_DRIVER: unknown driver %q", c.DBDriver)
	}
	switch c.StorageBackend {
	case "fs":
	case "s3":
		if c.S3Endpoint == "" || c.S3Bucket == "" {
			return fmt.Errorf("VG_STORAGE_BACKEND=s3 requires VG_S3_ENDPOINT and VG_S3_BUCKET")
		}
	default:
		return fmt.Errorf("VG_STORAGE_BACKEND: unknown backend %q", c.StorageBackend)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("VG_MAX_UPLOAD_BYTES must be positive")
	}
	if c.MaxImagePixels <= 0 {
		return fmt.Errorf("VG_MAX_IMAGE_PIXELS must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	var result int
	for _, c := range v {
		if c < '0' || c > '9' {
			return defaultValue
		}
		result = result*10 + int(c-'0')
	}
	return result
}

func getEnvBool(key string, defaultValue bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultValue
	}
	return b
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultValue
	}
	return d
}
