package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/af-corp/appgen-gateway/internal/config"
	"github.com/af-corp/appgen-gateway/internal/identity"
)

func main() {
	email := flag.String("email", "", "user email (required)")
	env := flag.String("env", "prod", "environment prefix")
	expires := flag.String("expires", "90d", "expiry duration (e.g., 90d, 720h)")
	withRefresh := flag.Bool("refresh", false, "also issue a new refresh token for the user")
	dbURL := flag.String("db-url", "", "database URL (overrides env)")
	envFile := flag.String("env-file", ".env", "path to an optional .env file")
	flag.Parse()

	if *email == "" {
		flag.Usage()
		fmt.Fprintln(os.Stderr, "\nerror: -email is required")
		os.Exit(1)
	}
	if err := config.LoadDotEnv(*envFile); err != nil {
		log.Fatalf("%v", err)
	}

	rawToken, err := identity.GenerateToken(*env)
	if err != nil {
		log.Fatalf("failed to generate token: %v", err)
	}

	dur, err := identity.ParseDuration(*expires)
	if err != nil {
		log.Fatalf("invalid expires: %v", err)
	}
	expiresAt := time.Now().Add(dur)

	dsn := *dbURL
	if dsn == "" {
		dsn = config.DatabaseFromEnv().DSN()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer conn.Close(ctx)

	tx, err := conn.Begin(ctx)
	if err != nil {
		log.Fatalf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	var userID string
	err = tx.QueryRow(ctx, `
		INSERT INTO users (email) VALUES ($1)
		ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		RETURNING id
	`, *email).Scan(&userID)
	if err != nil {
		log.Fatalf("failed to upsert user: %v", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO access_tokens (token_hash, token_prefix, user_id, expires_at)
		VALUES ($1, $2, $3, $4)
	`, identity.HashToken(rawToken), identity.DisplayPrefix(rawToken), userID, expiresAt)
	if err != nil {
		log.Fatalf("failed to insert token: %v", err)
	}

	var refreshToken string
	if *withRefresh {
		refreshToken, err = identity.GenerateToken("refresh")
		if err != nil {
			log.Fatalf("failed to generate refresh token: %v", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE users SET refresh_token_hash = $1 WHERE id = $2`, identity.HashToken(refreshToken), userID); err != nil {
			log.Fatalf("failed to store refresh token: %v", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		log.Fatalf("failed to commit: %v", err)
	}

	fmt.Println("=== Appgen Access Token Issued ===")
	fmt.Println()
	fmt.Printf("  User ID:  %s\n", userID)
	fmt.Printf("  Email:    %s\n", *email)
	fmt.Printf("  Prefix:   %s\n", identity.DisplayPrefix(rawToken))
	fmt.Printf("  Expires:  %s\n", expiresAt.Format(time.RFC3339))
	fmt.Println()
	fmt.Println("  Access token (save this, it will NOT be shown again):")
	fmt.Printf("  %s\n", rawToken)
	if refreshToken != "" {
		fmt.Println()
		fmt.Println("  Refresh token:")
		fmt.Printf("  %s\n", refreshToken)
	}
	fmt.Println()
	fmt.Println("==================================")
}
