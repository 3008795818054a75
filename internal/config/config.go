package config

import (
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr    string
	StorageDriver string
	S3Bucket      string
	S3Region      string
	S3Endpoint    string
	RedisAddr     string
	TimeZone      string
	OTLPEndpoint  string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	return &Config{
		ListenAddr:    getenv("LISTEN_ADDR", ":8080"),
		StorageDriver: getenv("STORAGE_DRIVER", "s3"),
		S3Bucket:      getenv("S3_BUCKET", "reservations"),
		S3Region:      getenv("S3_REGION", "ap-northeast-1"),
		S3Endpoint:    os.Getenv("S3_ENDPOINT"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		TimeZone:      getenv("TIME_ZONE", "Asia/Tokyo"),
		OTLPEndpoint:  os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
