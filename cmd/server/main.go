// Package main is the entry point for the accounts service. It loads
// configuration, opens the account store and Redis, wires the services and
// serves the HTTP API until SIGINT or SIGTERM.
//
// @title                       Accounts API
// @version                     1.0
// @description                 Account registration, login sessions and password recovery.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/policynav/accounts/internal/api"
	"github.com/policynav/accounts/internal/core/ports"
	"github.com/policynav/accounts/internal/core/service"
	"github.com/policynav/accounts/internal/infrastructure/config"
	mongostore "github.com/policynav/accounts/internal/infrastructure/db/mongo"
	redisstore "github.com/policynav/accounts/internal/infrastructure/db/redis"
	"github.com/policynav/accounts/internal/infrastructure/db/sqlite"
	"github.com/policynav/accounts/internal/infrastructure/http/handlers"
	"github.com/policynav/accounts/internal/infrastructure/notify"
	"github.com/policynav/accounts/internal/infrastructure/queue"
	"github.com/policynav/accounts/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

// mailer delivers both recovery codes and account notices.
type mailer interface {
	ports.CodeSender
	ports.NoticeSender
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "accounts: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// --- Load Configuration ---
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "accounts",
	})
	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Str("store", cfg.StoreDriver).
		Str("recovery_method", string(cfg.RecoveryMethod())).
		Msg("starting accounts service")

	readiness := map[string]handlers.Checker{}

	// --- Account store ---
	repo, closeStore, err := openAccountStore(ctx, cfg, readiness)
	if err != nil {
		return err
	}
	defer closeStore()

	// --- Connect to Redis ---
	rdb, err := redisstore.Connect(ctx, redisstore.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer rdb.Close()
	readiness["redis"] = redisstore.Pinger(rdb)
	log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to Redis")

	// --- Mail and notice workers ---
	sender, err := newMailer(cfg)
	if err != nil {
		return err
	}
	dispatcher := queue.NewDispatcher(cfg.Mail.NotifyWorkers, sender, logger.Component("notices"))
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	dispatcher.Start(workerCtx)
	defer func() {
		dispatcher.Close()
		cancelWorkers()
	}()

	// --- Services ---
	policy := cfg.Policy()
	credentials := service.NewCredentialService(repo, service.CredentialOptions{
		Policy:      policy,
		BcryptCost:  cfg.Accounts.BcryptCost,
		AdminEmails: cfg.Accounts.AdminEmails,
	}, logger.Component("credentials"))
	sessions := service.NewSessionService(
		redisstore.NewSessionStore(rdb),
		credentials,
		cfg.SigningSecret(),
		cfg.SessionTTL,
		logger.Component("sessions"),
	)
	recovery := service.NewRecoveryService(
		credentials,
		sender,
		redisstore.NewRecoveryLockout(rdb),
		dispatcher,
		service.RecoveryOptions{
			Method:          cfg.RecoveryMethod(),
			CodeTTL:         cfg.Recovery.OTPTTL,
			MaxCodeAttempts: cfg.Recovery.OTPMaxAttempts,
			Lockout:         cfg.Recovery.OTPLockout,
			Policy:          policy,
		},
		logger.Component("recovery"),
	)

	e := api.NewRouter(api.Deps{
		Log:         logger.Component("http"),
		Sessions:    sessions,
		Credentials: credentials,
		Recovery:    recovery,
		Policy:      policy,
		Readiness:   readiness,
	})

	// --- Start Server ---
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", ":"+cfg.Port).Msg("listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	// --- Graceful Shutdown ---
	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced shutdown")
	}
	return nil
}

// openAccountStore opens the configured account repository and registers its
// readiness check. The returned func releases the connection.
func openAccountStore(ctx context.Context, cfg *config.Config, readiness map[string]handlers.Checker) (ports.AccountRepository, func(), error) {
	log := logger.Get()

	switch cfg.StoreDriver {
	case config.StoreMongo:
		client, db, err := mongostore.Connect(ctx, mongostore.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return nil, nil, fmt.Errorf("connect mongo: %w", err)
		}
		repo := mongostore.NewAccountRepository(db)
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, err
		}
		readiness["mongo"] = mongostore.Pinger(client)
		log.Info().Str("database", cfg.Mongo.Database).Msg("connected to MongoDB")

		return repo, func() {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := client.Disconnect(ctx); err != nil {
				log.Error().Err(err).Msg("mongo disconnect")
			}
		}, nil

	default:
		db, err := sqlite.Open(ctx, cfg.SQLitePath, logger.Component("sqlite"))
		if err != nil {
			return nil, nil, err
		}
		readiness["sqlite"] = db.PingContext
		log.Info().Str("path", cfg.SQLitePath).Msg("opened SQLite account store")

		return sqlite.NewAccountRepository(db), func() {
			if err := db.Close(); err != nil {
				log.Error().Err(err).Msg("sqlite close")
			}
		}, nil
	}
}

func newMailer(cfg *config.Config) (mailer, error) {
	if cfg.Mail.Provider == config.MailResend {
		s, err := notify.NewResendSender(notify.ResendConfig{
			APIKey:  cfg.Mail.ResendAPIKey,
			From:    cfg.Mail.From,
			Timeout: cfg.Mail.Timeout,
		}, logger.Component("mail"))
		if err != nil {
			return nil, fmt.Errorf("resend sender: %w", err)
		}
		return s, nil
	}
	return notify.NewLogSender(logger.Component("mail")), nil
}
