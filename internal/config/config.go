package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	DatabaseURL           string
	RunMigrations         bool
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	AuthSecret            string
	AccessTokenTTLMinutes int
	LogLevel              string
	LastTransactionsLimit int
	LoginMaxAttempts      int
	BootstrapAdminPhone   string
	BootstrapAdminName    string
	BootstrapAdminPass    string
}

// Load reads configuration from the environment, after merging an optional .env
// file from the working directory. Variables already set in the environment win.
func Load() Config {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ALLOWED_ORIGIN", "*")
	v.SetDefault("RUN_MIGRATIONS", true)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("ACCESS_TOKEN_TTL_MINUTES", 480)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LAST_TRANSACTIONS_LIMIT", 3)
	v.SetDefault("LOGIN_MAX_ATTEMPTS", 5)
	v.SetDefault("BOOTSTRAP_ADMIN_NAME", "Admin")

	cfg := Config{
		Port:                  strings.TrimSpace(v.GetString("PORT")),
		AllowedOrigin:         strings.TrimSpace(v.GetString("ALLOWED_ORIGIN")),
		DatabaseURL:           strings.TrimSpace(v.GetString("DATABASE_URL")),
		RunMigrations:         v.GetBool("RUN_MIGRATIONS"),
		RedisAddr:             strings.TrimSpace(v.GetString("REDIS_ADDR")),
		RedisPassword:         v.GetString("REDIS_PASSWORD"),
		RedisDB:               v.GetInt("REDIS_DB"),
		AuthSecret:            strings.TrimSpace(v.GetString("AUTH_SECRET")),
		AccessTokenTTLMinutes: v.GetInt("ACCESS_TOKEN_TTL_MINUTES"),
		LogLevel:              strings.ToLower(strings.TrimSpace(v.GetString("LOG_LEVEL"))),
		LastTransactionsLimit: v.GetInt("LAST_TRANSACTIONS_LIMIT"),
		LoginMaxAttempts:      v.GetInt("LOGIN_MAX_ATTEMPTS"),
		BootstrapAdminPhone:   strings.TrimSpace(v.GetString("BOOTSTRAP_ADMIN_PHONE")),
		BootstrapAdminName:    strings.TrimSpace(v.GetString("BOOTSTRAP_ADMIN_NAME")),
		BootstrapAdminPass:    v.GetString("BOOTSTRAP_ADMIN_PASSWORD"),
	}

	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.AccessTokenTTLMinutes < 1 {
		cfg.AccessTokenTTLMinutes = 480
	}
	if cfg.LastTransactionsLimit < 1 {
		cfg.LastTransactionsLimit = 3
	}
	if cfg.LoginMaxAttempts < 1 {
		cfg.LoginMaxAttempts = 5
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}
