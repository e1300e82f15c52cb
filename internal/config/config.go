package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/anasbld/pos_system/internal/models"
)

type Config struct {
	HTTP_ADDR   string
	DB_DRIVER   string
	SQLITE_PATH string
	DB_HOST     string
	DB_PORT     string
	DB_USER     string
	DB_PASSWORD string
	DB_NAME     string

	LOG_LEVEL string

	SESSION_TTL          time.Duration
	SESSION_SINGLE_LOGIN bool

	ADMIN_USERNAME string
	ADMIN_PASSWORD string
	SEED_DEMO_DATA bool

	KAFKA_ADDRESS string
	ES_URL        string
	ES_USER       string
	ES_PASSWORD   string

	LOGIN_RATE_PER_SECOND float64
	LOGIN_RATE_BURST      int
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	config := &Config{
		HTTP_ADDR:   getDefault("HTTP_ADDR", ":8080"),
		DB_DRIVER:   getDefault("DB_DRIVER", "sqlite"),
		SQLITE_PATH: getDefault("SQLITE_PATH", "pos.db"),
		DB_HOST:     os.Getenv("DB_HOST"),
		DB_PORT:     os.Getenv("DB_PORT"),
		DB_USER:     os.Getenv("DB_USER"),
		DB_PASSWORD: os.Getenv("DB_PASSWORD"),
		DB_NAME:     os.Getenv("DB_NAME"),

		LOG_LEVEL: getDefault("LOG_LEVEL", "info"),

		SESSION_TTL:          time.Duration(getInt("SESSION_TTL_MINUTES", 30)) * time.Minute,
		SESSION_SINGLE_LOGIN: getBool("SESSION_SINGLE_LOGIN", false),

		ADMIN_USERNAME: getDefault("ADMIN_USERNAME", "admin"),
		ADMIN_PASSWORD: getDefault("ADMIN_PASSWORD", "admin123"),
		SEED_DEMO_DATA: getBool("SEED_DEMO_DATA", true),

		KAFKA_ADDRESS: os.Getenv("KAFKA_ADDRESS"),
		ES_URL:        os.Getenv("ES_URL"),
		ES_USER:       os.Getenv("ES_USER"),
		ES_PASSWORD:   os.Getenv("ES_PASSWORD"),

		LOGIN_RATE_PER_SECOND: getFloat("LOGIN_RATE_PER_SECOND", 2),
		LOGIN_RATE_BURST:      getInt("LOGIN_RATE_BURST", 5),
	}

	return config, nil
}

func getDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)
	switch cfg.DB_DRIVER {
	case "postgres":
		dsn := fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s?sslmode=disable",
			cfg.DB_USER, cfg.DB_PASSWORD, cfg.DB_HOST, cfg.DB_PORT, cfg.DB_NAME,
		)
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	default:
		db, err = gorm.Open(sqlite.Open(cfg.SQLITE_PATH), &gorm.Config{})
	}
	if err != nil {
		return nil, fmt.Errorf("cannot connect to database: %w", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Product{}, &models.Transaction{}); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return db, nil
}
