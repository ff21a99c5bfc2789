package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/example/hoaxify/internal/config"
	"github.com/example/hoaxify/internal/store"
	"github.com/golang-migrate/migrate/v4"
	"github.com/sirupsen/logrus"
)

func main() {
	var (
		command = flag.String("command", "up", "Migration command: up, down, version, force")
		steps   = flag.Int("steps", 0, "Number of migration steps (for up/down)")
		version = flag.Uint("version", 0, "Target version (for force command)")
		dir     = flag.String("dir", "", "Migrations directory (defaults to MIGRATIONS_DIR)")
	)
	flag.Parse()

	log := logrus.New()

	cfg, err := config.New()
	if err != nil {
		log.WithError(err).Fatal("config error")
	}

	if cfg.DBAdapter != "postgres" {
		log.Fatalf("migrations only work with PostgreSQL; current adapter: %s", cfg.DBAdapter)
	}

	migrationsDir := cfg.MigrationsDir
	if *dir != "" {
		migrationsDir = *dir
	}

	m, err := store.NewMigrator(migrationsDir, cfg.PostgresDSN)
	if err != nil {
		log.WithError(err).Fatal("opening migrator")
	}
	defer m.Close()

	if err := execute(m, *command, *steps, *version, log); err != nil {
		log.WithError(err).WithField("command", *command).Error("migration failed")
		m.Close()
		os.Exit(1)
	}
}

// migrator is the subset of *migrate.Migrate the CLI drives.
type migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Force(v int) error
	Version() (uint, bool, error)
}

func execute(m migrator, command string, steps int, version uint, log logrus.FieldLogger) error {
	switch command {
	case "up":
		if err := runMigration(m, true, steps); err != nil {
			return err
		}
		log.Info("migrations applied successfully")
	case "down":
		if err := runMigration(m, false, steps); err != nil {
			return err
		}
		log.Info("migrations rolled back successfully")
	case "version":
		v, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			log.Info("no migrations applied yet")
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading version: %w", err)
		}
		if dirty {
			return fmt.Errorf("database is in a dirty state (version %d)", v)
		}
		log.WithField("version", v).Info("current migration version")
	case "force":
		if version == 0 {
			return errors.New("version required for force command (use -version flag)")
		}
		if err := m.Force(int(version)); err != nil {
			return fmt.Errorf("forcing version: %w", err)
		}
		log.WithField("version", version).Info("forced database version")
	default:
		return fmt.Errorf("unknown command: %s (supported: up, down, version, force)", command)
	}
	return nil
}

func runMigration(m migrator, up bool, steps int) error {
	var err error
	switch {
	case steps > 0 && up:
		err = m.Steps(steps)
	case steps > 0:
		err = m.Steps(-steps)
	case up:
		err = m.Up()
	default:
		err = m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		if up {
			return fmt.Errorf("applying migrations: %w", err)
		}
		return fmt.Errorf("rolling back migrations: %w", err)
	}
	return nil
}
