// Command migrate applies the identity schema in migrations/ to Postgres.
//
//	migrate [flags] up [N]
//	migrate [flags] down [N]
//	migrate [flags] version
//	migrate [flags] force VERSION
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/af-corp/appgen-gateway/internal/config"
)

func main() {
	dbURL := flag.String("db-url", "", "database URL (default: DATABASE_URL or DB_* variables)")
	dir := flag.String("path", "migrations", "migrations directory")
	envFile := flag.String("env", ".env", "optional .env file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := run(*dbURL, *dir, *envFile, flag.Args()); err != nil {
		logger.Error("migrate failed", "error", err)
		os.Exit(1)
	}
}

func run(dbURL, dir, envFile string, args []string) error {
	if err := config.LoadDotEnv(envFile); err != nil {
		return err
	}
	if dbURL == "" {
		dbURL = config.DatabaseFromEnv().DSN()
	}

	cmd, n, err := parseArgs(args)
	if err != nil {
		return err
	}

	m, err := migrate.New("file://"+dir, dbURL)
	if err != nil {
		return fmt.Errorf("open migrator: %w", err)
	}
	defer m.Close()

	switch cmd {
	case "up":
		err = stepsOr(m, n, m.Up)
	case "down":
		err = stepsOr(m, -n, m.Down)
	case "force":
		err = m.Force(n)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%s: %w", cmd, err)
	}

	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		fmt.Println("no migrations applied")
		return nil
	}
	if err != nil {
		return fmt.Errorf("read version: %w", err)
	}
	fmt.Printf("schema version %d (dirty: %v)\n", v, dirty)
	return nil
}

func parseArgs(args []string) (string, int, error) {
	if len(args) == 0 {
		return "up", 0, nil
	}
	cmd := args[0]
	n := 0
	if len(args) > 1 {
		v, err := strconv.Atoi(args[1])
		if err != nil || v < 0 {
			return "", 0, fmt.Errorf("invalid count %q", args[1])
		}
		n = v
	}
	switch cmd {
	case "up", "down", "version":
	case "force":
		if len(args) < 2 {
			return "", 0, errors.New("force requires a version")
		}
	default:
		return "", 0, fmt.Errorf("unknown command %q (want up, down, version or force)", cmd)
	}
	return cmd, n, nil
}

// stepsOr migrates n steps, or runs all when n is zero.
func stepsOr(m *migrate.Migrate, n int, all func() error) error {
	if n == 0 {
		return all()
	}
	return m.Steps(n)
}
