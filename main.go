package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/example/hoaxify/internal/api"
	cfg "github.com/example/hoaxify/internal/config"
	"github.com/example/hoaxify/internal/email"
	"github.com/example/hoaxify/internal/store"
	"github.com/example/hoaxify/internal/token"
	"github.com/example/hoaxify/internal/user"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	if err := run(log); err != nil {
		log.WithError(err).Fatal("hoaxify exited")
	}
}

func newLogger(log *logrus.Logger, c *cfg.Config) {
	if c.IsProduction() {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		log.WithField("level", c.LogLevel).Warn("unknown LOG_LEVEL, using info")
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
}

func openStore(c *cfg.Config, log logrus.FieldLogger) (store.Store, error) {
	switch c.DBAdapter {
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(c.SQLiteFile), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite data dir: %w", err)
		}
		s, err := store.NewSQLiteDB(c.SQLiteFile)
		if err != nil {
			return nil, fmt.Errorf("sqlite init: %w", err)
		}
		log.WithField("file", c.SQLiteFile).Info("using sqlite database")
		return s, nil
	case "postgres":
		log.Info("applying database migrations")
		if err := store.ApplyMigrations(c.MigrationsDir, c.PostgresDSN, log); err != nil {
			return nil, fmt.Errorf("migrations: %w", err)
		}
		p, err := store.NewPostgresDB(c.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("postgres init: %w", err)
		}
		log.Info("connected to PostgreSQL database")
		return p, nil
	case "memory":
		log.Warn("using in-memory database (not recommended for production)")
		return store.NewMemoryDB(), nil
	default:
		return nil, fmt.Errorf("unsupported DB_ADAPTER: %s (supported: postgres, sqlite, memory)", c.DBAdapter)
	}
}

func newMailer(c *cfg.Config, log logrus.FieldLogger) email.Sender {
	if c.SMTP.Host == "" {
		log.Warn("SMTP_HOST not set, activation links will only be logged")
		return email.NewLogSender(c.SMTP.ActivationURL, log)
	}
	return email.NewSMTPSender(email.SMTPConfig{
		Host:          c.SMTP.Host,
		Port:          c.SMTP.Port,
		User:          c.SMTP.User,
		Password:      c.SMTP.Password,
		From:          c.SMTP.From,
		ActivationURL: c.SMTP.ActivationURL,
	}, log)
}

func run(log *logrus.Logger) error {
	c, err := cfg.New()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	newLogger(log, c)

	st, err := openStore(c, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.WithError(err).Warn("closing store")
		}
	}()

	tokens := token.NewService(st.Tokens(), st.Users(), token.Config{Expiry: c.TokenExpiry}, log)
	// flush pending lastUsedAt refreshes before the store closes
	defer tokens.Wait()

	users := user.NewService(st, tokens, newMailer(c, log), user.Config{}, log)

	sweeper, err := tokens.StartSweeper(c.TokenSweepSchedule)
	if err != nil {
		return err
	}
	defer func() { <-sweeper.Stop().Done() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	server := api.NewServer(users, tokens, st, api.Options{
		LoginRatePerMinute: c.LoginRatePerMinute,
		Registry:           reg,
	}, log)

	srv := &http.Server{
		Handler:      server.Router(),
		Addr:         ":" + c.Port,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithFields(logrus.Fields{"port": c.Port, "db": c.DBAdapter}).Info("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server exited properly")
	return nil
}
