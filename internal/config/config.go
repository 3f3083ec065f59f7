package config

import (
	"os"
	"strconv"
)

type Config struct {
	Addr        string
	DBDriver    string // sqlite, postgres or memory
	SQLiteDSN   string
	PostgresDSN string
	JWTSecret   string
	JWTTTLMin   int
	// SendGrid config for the offline notification fallback
	SendGridAPIKey string
	SendGridFrom   string
}

func getenv(key, def string) string {
	val := os.Getenv(key)
	if val != "" {
		return val
	}
	return def
}

func MustLoad() Config {
	jwtttl, _ := strconv.Atoi(getenv("JWT_TTL_MIN", "1440"))

	cfg := Config{
		Addr:           getenv("HTTP_ADDR", ":8080"),
		DBDriver:       getenv("DB_DRIVER", "sqlite"),
		SQLiteDSN:      getenv("SQLITE_DSN", "file:subhive.db?_pragma=foreign_keys(ON)"),
		PostgresDSN:    getenv("POSTGRES_DSN", ""),
		JWTSecret:      getenv("JWT_SECRET", ""),
		JWTTTLMin:      jwtttl,
		SendGridAPIKey: getenv("SENDGRID_API_KEY", ""),
		SendGridFrom:   getenv("SENDGRID_FROM", ""),
	}
	return cfg
}
