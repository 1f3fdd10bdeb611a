// Package config loads runtime configuration from environment variables.
// A .env file in the working directory, when present, is read first;
// variables already set in the environment win.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the core settings of the ordering server.
type Config struct {
	Env        string // application environment (dev, prod)
	Port       string // HTTP port to listen on
	LogLevel   string // debug, info, warn or error
	InstanceID string // identifies this process on broker events; random when empty

	DBUser   string
	DBPass   string // may be empty
	DBHost   string
	DBPort   string
	DBName   string
	LockWait time.Duration // innodb_lock_wait_timeout for order transactions

	JWTSecret      string
	AccessTTLMin   int // access token lifetime in minutes
	RefreshTTLDays int // refresh token lifetime in days
	BcryptCost     int

	// Initial admin account, created only when no staff user exists.
	AdminEmail    string
	AdminPassword string

	PaidRetention time.Duration // age after which paid orders may be cleaned up
}

// LoadDotEnv reads .env if it exists.  Missing files are fine.
func LoadDotEnv() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: reading .env: %v", err)
	}
}

// Load reads the core configuration.  Missing required variables stop the
// process.
func Load() Config {
	LoadDotEnv()
	return Config{
		Env:        envStr("APP_ENV", "dev"),
		Port:       must("APP_PORT"),
		LogLevel:   envStr("LOG_LEVEL", "info"),
		InstanceID: os.Getenv("INSTANCE_ID"),

		DBUser:   must("DB_USER"),
		DBPass:   os.Getenv("DB_PASS"),
		DBHost:   must("DB_HOST"),
		DBPort:   envStr("DB_PORT", "3306"),
		DBName:   must("DB_NAME"),
		LockWait: envDur("DB_LOCK_WAIT_TIMEOUT", 3*time.Second),

		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     envInt("BCRYPT_COST", 10),

		AdminEmail:    os.Getenv("ADMIN_EMAIL"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),

		PaidRetention: envDur("PAID_ORDER_RETENTION", 30*24*time.Hour),
	}
}

// must retrieves a required variable or exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is must plus integer conversion.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	if n, err := strconv.Atoi(os.Getenv(k)); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	if dur, err := time.ParseDuration(os.Getenv(k)); err == nil {
		return dur
	}
	return d
}
