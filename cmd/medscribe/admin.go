package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/Strob0t/MedScribe/internal/adapter/postgres"
	"github.com/Strob0t/MedScribe/internal/config"
)

// runAdmin dispatches admin subcommands (migrate, rollback, version, hash-key).
func runAdmin(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printAdminHelp()
		return nil
	}

	switch args[0] {
	case "migrate":
		return runAdminMigrate(args[1:])
	case "rollback":
		return runAdminRollback(args[1:])
	case "version":
		return runAdminVersion(args[1:])
	case "hash-key":
		return runAdminHashKey(args[1:])
	default:
		printAdminHelp()
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
}

func printAdminHelp() {
	fmt.Fprintf(os.Stderr, `Usage: medscribe admin <command> [options]

Commands:
  migrate      Apply all pending database migrations
  rollback     Roll back the most recent migrations
  version      Print the current schema version
  hash-key     Hash an API key for auth.api_key_hashes
  help         Show this help message

Examples:
  medscribe admin migrate --dsn postgres://localhost/medscribe
  medscribe admin rollback --steps 2
  medscribe admin hash-key
`)
}

// adminDSN resolves the DSN from --dsn or the regular config hierarchy.
func adminDSN(flagDSN string) (string, error) {
	if flagDSN != "" {
		return flagDSN, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return "", fmt.Errorf("load config: %w", err)
	}
	return cfg.Postgres.DSN, nil
}

func runAdminMigrate(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	dsn := fs.String("dsn", "", "PostgreSQL DSN (default: from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	d, err := adminDSN(*dsn)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if err := postgres.RunMigrations(ctx, d); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	v, err := postgres.MigrationVersion(ctx, d)
	if err != nil {
		return fmt.Errorf("version: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Migrations applied, schema version %d\n", v)
	return nil
}

func runAdminRollback(args []string) error {
	fs := flag.NewFlagSet("rollback", flag.ContinueOnError)
	dsn := fs.String("dsn", "", "PostgreSQL DSN (default: from config)")
	steps := fs.Int("steps", 1, "number of migrations to roll back")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *steps < 1 {
		return fmt.Errorf("--steps must be >= 1")
	}
	d, err := adminDSN(*dsn)
	if err != nil {
		return err
	}

	if err := postgres.RollbackMigrations(context.Background(), d, *steps); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Rolled back %d migration(s)\n", *steps)
	return nil
}

func runAdminVersion(args []string) error {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	dsn := fs.String("dsn", "", "PostgreSQL DSN (default: from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	d, err := adminDSN(*dsn)
	if err != nil {
		return err
	}

	v, err := postgres.MigrationVersion(context.Background(), d)
	if err != nil {
		return fmt.Errorf("version: %w", err)
	}
	fmt.Println(v)
	return nil
}

func runAdminHashKey(args []string) error {
	fs := flag.NewFlagSet("hash-key", flag.ContinueOnError)
	key := fs.String("key", "", "API key to hash (prompted if not provided)") //nolint:gosec // CLI flag
	cost := fs.Int("cost", bcrypt.DefaultCost, "bcrypt cost")
	if err := fs.Parse(args); err != nil {
		return err
	}

	raw := *key
	if raw == "" {
		var err error
		raw, err = promptPassword("API key: ")
		if err != nil {
			return fmt.Errorf("read key: %w", err)
		}
		confirm, err := promptPassword("Confirm API key: ")
		if err != nil {
			return fmt.Errorf("read key: %w", err)
		}
		if raw != confirm {
			return fmt.Errorf("keys do not match")
		}
	}
	if len(raw) < 16 {
		return fmt.Errorf("API key must be at least 16 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(raw), *cost)
	if err != nil {
		return fmt.Errorf("hash key: %w", err)
	}
	fmt.Println(string(hash))
	return nil
}

// promptPassword reads a secret from the terminal without echoing.
func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(syscall.Stdin)) //nolint:unconvert // int conversion needed on some platforms
	fmt.Fprintln(os.Stderr)                         // newline after input
	if err != nil {
		return "", err
	}
	return string(b), nil
}
