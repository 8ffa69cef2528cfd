package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAccounts       = "Livelo,Esfera,Smiles,Latam Pass,TudoAzul"
	defaultClubsAndStores = "Clube Livelo / Apple Store,Clube Esfera / Magazine Luiza,Clube Smiles / Amazon,Casas Bahia,Fast Shop"
)

type Config struct {
	Port                   string
	AllowedOrigin          string
	DatabaseURL            string
	SQLitePath             string
	RedisAddr              string
	RedisPassword          string
	RedisDB                int
	StockCacheTTLSeconds   int
	AuthSecret             string
	AccessTokenTTLMinutes  int
	LoginRate              string
	BootstrapUsername      string
	BootstrapPassword      string
	MonthLocale            string
	Timezone               string
	Accounts               []string
	ClubsAndStores         []string
	ShutdownTimeoutSeconds int
}

// Load reads an optional .env file, then the process environment. Variables
// already set in the environment win over the file.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[config] WARN: failed to read .env: %v", err)
	}

	cfg := Config{
		Port:                   getEnv("PORT", "8080"),
		AllowedOrigin:          getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:            strings.TrimSpace(os.Getenv("DATABASE_URL")),
		SQLitePath:             strings.TrimSpace(os.Getenv("SQLITE_PATH")),
		RedisAddr:              strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:                getInt("REDIS_DB", 0, 0),
		StockCacheTTLSeconds:   getInt("STOCK_CACHE_TTL_SECONDS", 30, 1),
		AuthSecret:             strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes:  getInt("ACCESS_TOKEN_TTL_MINUTES", 480, 1),
		LoginRate:              getEnv("LOGIN_RATE", "5-M"),
		BootstrapUsername:      strings.TrimSpace(os.Getenv("BOOTSTRAP_USERNAME")),
		BootstrapPassword:      os.Getenv("BOOTSTRAP_PASSWORD"),
		MonthLocale:            getEnv("MONTH_LOCALE", "pt-BR"),
		Timezone:               getEnv("TIMEZONE", "America/Sao_Paulo"),
		Accounts:               splitList(getEnv("ACCOUNTS", defaultAccounts)),
		ClubsAndStores:         splitList(getEnv("CLUBS_AND_STORES", defaultClubsAndStores)),
		ShutdownTimeoutSeconds: getInt("SHUTDOWN_TIMEOUT_SECONDS", 10, 1),
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) StockCacheTTL() time.Duration {
	return time.Duration(c.StockCacheTTLSeconds) * time.Second
}

func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// Location resolves the configured timezone, falling back to UTC when the
// zone database does not know it.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		log.Printf("[config] WARN: unknown TIMEZONE %q, using UTC: %v", c.Timezone, err)
		return time.UTC
	}
	return loc
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getInt(key string, fallback int, min int) int {
	val, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || val < min {
		return fallback
	}
	return val
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
