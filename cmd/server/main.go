package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goliatone/go-print"
	"github.com/joho/godotenv"

	"github.com/goliatone/go-contacts/auth"
	"github.com/goliatone/go-contacts/avatar"
	"github.com/goliatone/go-contacts/config"
	"github.com/goliatone/go-contacts/contacts"
	"github.com/goliatone/go-contacts/persistence"
	"github.com/goliatone/go-contacts/server"
)

func main() {
	// Missing .env is fine, the environment may be set by the runtime.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)

	if cfg.Debug {
		logger.Debug("loaded configuration\n" + print.MaybePrettyJSON(cfg.Sanitized()))
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := persistence.Open(cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := persistence.Init(ctx, db); err != nil {
		return err
	}

	for _, dir := range []string{cfg.AvatarDir, cfg.TmpDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	repo := auth.NewRepositoryManager(db)
	repo.MustValidate()

	tokens := auth.NewTokenService([]byte(cfg.SigningKey), cfg.TokenTTL, cfg.Issuer, logger)

	mailer := auth.NewSMTPMailer(auth.SMTPMailerConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
		BaseURL:  cfg.BaseURL,
	}, logger)

	avatars := avatar.New(cfg.AvatarDir, cfg.AvatarPublicPrefix,
		avatar.WithLogger(logger),
	)

	accounts := auth.NewAccounts(repo, tokens, mailer,
		auth.WithLogger(logger),
		auth.WithAvatarStore(avatars),
	)

	srv := server.New(server.Config{
		Addr:               cfg.Addr,
		TmpDir:             cfg.TmpDir,
		AvatarDir:          cfg.AvatarDir,
		AvatarPublicPrefix: cfg.AvatarPublicPrefix,
	}, accounts, contacts.NewContactsRepository(db), server.WithLogger(logger))

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Listen()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

func newLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if cfg.Debug {
		level = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}
