package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/samburke97/bord-business-sub001/internal/auth"
	"github.com/samburke97/bord-business-sub001/internal/config"
	"github.com/samburke97/bord-business-sub001/internal/email"
	"github.com/samburke97/bord-business-sub001/internal/httpapi"
	"github.com/samburke97/bord-business-sub001/internal/journey"
	"github.com/samburke97/bord-business-sub001/internal/service"
	"github.com/samburke97/bord-business-sub001/internal/store/postgres"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	logger := newLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pgPool, err := postgres.Open(ctx, cfg.DBDSN)
	if err != nil {
		logger.Error("db open failed", "err", err)
		os.Exit(1)
	}
	defer pgPool.Close()

	var journeyCache *journey.Cache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			// The cache is advisory; run without it rather than refuse
			// to start.
			logger.Warn("redis unreachable, journey cache disabled", "err", err)
		} else {
			journeyCache = journey.NewCache(rdb, cfg.JourneyCacheTTL)
		}
	}

	users := postgres.NewUsersStore(pgPool)
	credentials := postgres.NewCredentialsStore(pgPool)
	accounts := postgres.NewAccountsStore(pgPool)
	tokens := postgres.NewTokensStore(pgPool)
	events := postgres.NewSecurityEventsStore(pgPool)
	businesses := postgres.NewBusinessLinksStore(pgPool)

	mailer := &service.EmailService{
		Settings: email.SMTPSettings{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
		},
		FromName:  cfg.SMTPFromName,
		FromEmail: cfg.SMTPFromEmail,
	}

	authSvc := &service.AuthService{
		Users:        users,
		Credentials:  credentials,
		Accounts:     accounts,
		Events:       events,
		EventsReader: events,
		Journey:      journeyCache,
	}
	oauthSvc := &service.OAuthService{
		Users:             users,
		Accounts:          accounts,
		Credentials:       credentials,
		Events:            events,
		Journey:           journeyCache,
		GoogleWebClientID: cfg.GoogleWebClientID,
		AppleServiceID:    cfg.AppleServiceID,
	}
	verificationSvc := &service.VerificationService{
		Tokens:  tokens,
		Users:   users,
		Sender:  mailer,
		Journey: journeyCache,
	}
	resetSvc := &service.ResetService{
		Tokens:      tokens,
		Users:       users,
		Credentials: credentials,
		Events:      events,
		Journey:     journeyCache,
	}
	profileSvc := &service.ProfileService{
		Users:   users,
		Events:  events,
		Journey: journeyCache,
	}
	journeySvc := &service.JourneyService{
		Users:       users,
		Credentials: credentials,
		Accounts:    accounts,
		Businesses:  businesses,
		Cache:       journeyCache,
	}

	cleanupSvc := &service.CleanupService{
		Store:  cleanupStore{users, tokens},
		Logger: logger,
	}
	go cleanupSvc.Run(ctx, cfg.CleanupInterval)

	router := httpapi.NewRouter(httpapi.RouterOpts{
		Logger:       logger,
		IsProd:       cfg.IsProd(),
		DBPing:       pgPool.Ping,
		Auth:         authSvc,
		OAuth:        oauthSvc,
		Verification: verificationSvc,
		Reset:        resetSvc,
		Profile:      profileSvc,
		Journey:      journeySvc,
		Mailer:       mailer,
		PublicURL:    cfg.PublicURLString(),
		SessionCodec: auth.NewSessionCodec([]byte(cfg.SessionSecret)),
		CookieSecure: cfg.CookieSecure(),
		SessionTTL:   cfg.SessionTTL,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "env", cfg.Env, "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}
}

// cleanupStore joins the two stores the sweep touches.
type cleanupStore struct {
	*postgres.UsersStore
	*postgres.TokensStore
}

func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.IsProd() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
