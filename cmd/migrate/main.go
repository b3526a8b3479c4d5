// Command migrate manages the database schema: applying and rolling back
// SQL migrations, and scaffolding new migration file pairs.
package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/shopsync/backend/internal/infrastructure/config"
	"github.com/shopsync/backend/internal/infrastructure/logger"
	"github.com/shopsync/backend/internal/infrastructure/migration"
)

const usageText = `ShopSync schema migration tool

Usage:
  migrate [flags] <command> [args]

Commands:
  up                    Apply all pending migrations
  down                  Roll back all migrations
  step <n>              Move n migrations; negative n rolls back
  goto <version>        Migrate up or down to an exact version
  version               Print the current schema version
  force <version>       Overwrite the recorded version without running SQL
  drop                  Drop every object in the database (needs -confirm)
  create <name> [desc]  Scaffold an up/down SQL file pair
  list                  List migration versions on disk

Flags:
  -path string       Migrations directory (default "migrations")
  -log-level string  debug, info, warn or error (default "info")
  -confirm           Acknowledge a destructive command

Database settings come from the SYNC_DATABASE_* environment variables.`

// errUsage asks main to print usage instead of a failure log.
var errUsage = errors.New("bad usage")

func main() {
	var (
		path     = flag.String("path", "migrations", "migrations directory")
		logLevel = flag.String("log-level", "info", "log level")
		confirm  = flag.Bool("confirm", false, "acknowledge a destructive command")
	)
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usageText) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	log, err := logger.New(&logger.Config{
		Level:      *logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	cmd := flag.Arg(0)
	if err := run(cmd, flag.Args()[1:], *path, *confirm, log); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, err)
			flag.Usage()
			os.Exit(2)
		}
		log.Fatal("Migration command failed",
			zap.String("command", cmd),
			zap.Error(err),
		)
	}
}

func run(cmd string, args []string, path string, confirm bool, log *zap.Logger) error {
	dir, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	// create and list only touch the migrations directory.
	switch cmd {
	case "create":
		return runCreate(dir, args, log)
	case "list":
		return runList(dir, log)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	m, err := migration.New(db, dir, log)
	if err != nil {
		return err
	}
	defer m.Close()

	switch cmd {
	case "up":
		return m.Up()
	case "down":
		return m.Down()
	case "step":
		n, err := intArg(args, "step <n>")
		if err != nil {
			return err
		}
		return m.Steps(n)
	case "goto":
		v, err := intArg(args, "goto <version>")
		if err != nil {
			return err
		}
		if v < 0 {
			return fmt.Errorf("version cannot be negative: %w", errUsage)
		}
		return m.GoTo(uint(v))
	case "version":
		return runVersion(m, log)
	case "force":
		v, err := intArg(args, "force <version>")
		if err != nil {
			return err
		}
		log.Warn("Overwriting the recorded schema version",
			zap.Int("version", v),
		)
		return m.Force(v)
	case "drop":
		if !confirm {
			return errors.New("drop removes every database object; rerun with -confirm")
		}
		return m.Drop()
	default:
		return fmt.Errorf("unknown command %q: %w", cmd, errUsage)
	}
}

func runCreate(dir string, args []string, log *zap.Logger) error {
	if len(args) == 0 {
		return fmt.Errorf("create needs a migration name: %w", errUsage)
	}
	description := strings.Join(args[1:], " ")

	mf, err := migration.CreateMigration(dir, args[0], description)
	if err != nil {
		return err
	}
	log.Info("Migration pair created",
		zap.String("version", mf.Version),
		zap.String("up", mf.UpPath),
		zap.String("down", mf.DownPath),
	)
	return nil
}

func runList(dir string, log *zap.Logger) error {
	versions, err := migration.ListMigrations(dir)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		log.Info("No migrations on disk", zap.String("path", dir))
		return nil
	}
	for _, v := range versions {
		fmt.Println(v)
	}
	return nil
}

func runVersion(m *migration.Migrator, log *zap.Logger) error {
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	if version == 0 {
		log.Info("Schema has no applied migrations")
		return nil
	}
	log.Info("Current schema version",
		zap.Uint("version", version),
		zap.Bool("dirty", dirty),
	)
	return nil
}

func intArg(args []string, hint string) (int, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("missing argument, expected %s: %w", hint, errUsage)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("argument %q is not a number: %w", args[0], errUsage)
	}
	return n, nil
}
