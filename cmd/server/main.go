package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"pawnshop/backend/internal/config"
	"pawnshop/backend/internal/httpapi"
	"pawnshop/backend/internal/limiter"
	"pawnshop/backend/internal/service"
	"pawnshop/backend/internal/store"
	"pawnshop/backend/internal/store/memory"
	pgstore "pawnshop/backend/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	logger := newLogger(cfg.LogLevel)

	if err := validateSecurityConfig(cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid security configuration")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		if cfg.RunMigrations {
			if err := pgstore.Migrate(cfg.DatabaseURL); err != nil {
				logger.Fatal().Err(err).Msg("schema migration failed")
			}
			logger.Info().Msg("schema: up to date")
		}
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback")
		}
		repo = pg
		closers = append(closers, pg.Close)
		logger.Info().Msg("repository: postgres")
	} else {
		repo = memory.NewSeeded()
		logger.Info().Msg("repository: in-memory")
	}

	var loginLimiter limiter.Limiter = limiter.NewMemory(cfg.LoginMaxAttempts, time.Minute)
	if cfg.RedisAddr != "" {
		redisLimiter := limiter.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.LoginMaxAttempts, time.Minute)
		if err := redisLimiter.Ping(ctx); err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, using in-process login limiter")
			_ = redisLimiter.Close()
		} else {
			loginLimiter = redisLimiter
			closers = append(closers, redisLimiter.Close)
			logger.Info().Msg("login limiter: redis")
		}
	} else {
		logger.Info().Msg("login limiter: in-process")
	}

	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo)
	created, err := auth.EnsureAdmin(ctx, cfg.BootstrapAdminPhone, cfg.BootstrapAdminName, cfg.BootstrapAdminPass)
	if err != nil {
		logger.Fatal().Err(err).Msg("bootstrap admin failed")
	}
	if created {
		logger.Info().Str("phone_number", cfg.BootstrapAdminPhone).Msg("bootstrap admin created")
	}

	svc := service.New(repo, logger, cfg.LastTransactionsLimit)
	api := httpapi.New(svc, auth, loginLimiter, cfg.AllowedOrigin, logger)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.Address()).Msg("pawnshop backend listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Error().Err(err).Msg("close error")
		}
	}

	logger.Info().Msg("server stopped")
}

func newLogger(level string) zerolog.Logger {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		parsed = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(parsed).With().Timestamp().Logger()
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.BootstrapAdminPhone == "" {
		return nil
	}
	if len(cfg.BootstrapAdminPass) < 8 {
		return fmt.Errorf("BOOTSTRAP_ADMIN_PASSWORD must be at least 8 characters when BOOTSTRAP_ADMIN_PHONE is set")
	}
	if err := validatePasswordStrength(cfg.BootstrapAdminPass); err != nil {
		return fmt.Errorf("BOOTSTRAP_ADMIN_PASSWORD is too weak: %w", err)
	}
	return nil
}

// validatePasswordStrength rejects passwords that repeat one character, run
// sequentially (ascending or descending), or appear on a known-weak list.
func validatePasswordStrength(password string) error {
	known := map[string]bool{
		"password": true, "password1": true, "12345678": true, "123456789": true,
		"qwertyui": true, "iloveyou": true, "admin123": true, "admin1234": true,
		"00000000": true, "87654321": true,
	}
	if known[strings.ToLower(password)] {
		return fmt.Errorf("common password not allowed")
	}

	allSame := true
	for i := 1; i < len(password); i++ {
		if password[i] != password[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return fmt.Errorf("single-character password not allowed")
	}

	ascending, descending := true, true
	for i := 1; i < len(password); i++ {
		diff := int(password[i]) - int(password[i-1])
		if diff != 1 {
			ascending = false
		}
		if diff != -1 {
			descending = false
		}
	}
	if ascending || descending {
		return fmt.Errorf("sequential password not allowed")
	}

	return nil
}
