// seed is a one-shot tool that installs the baseline reference data a fresh
// deployment needs: the role catalog, an administrator account, and the
// product code counter.
//
// Usage: go run ./cmd/seed
package main

import (
	"context"
	"log"
	"os"

	"retail-backoffice/internal/config"
	"retail-backoffice/internal/db"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	adminPassword := os.Getenv("ADMIN_PASSWORD")
	if adminPassword == "" {
		log.Fatal("ADMIN_PASSWORD must be set to seed the administrator account")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Failed to hash admin password: %v", err)
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer pool.Close()

	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatalf("Failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	log.Println("Seeding roles...")
	_, err = tx.Exec(ctx, `
		INSERT INTO roles (name, description, is_active) VALUES
		('administrator', 'Full access, including historical sale corrections', true),
		('seller',        'Point of sale access, same-day corrections only',    true)
		ON CONFLICT (name) DO NOTHING;
	`)
	if err != nil {
		log.Fatalf("Failed to seed roles: %v", err)
	}

	log.Println("Seeding administrator account...")
	_, err = tx.Exec(ctx, `
		INSERT INTO users (username, password_hash, full_name, email, is_active)
		VALUES ('admin', $1, 'Administrator', '', true)
		ON CONFLICT (username) DO NOTHING
	`, string(hash))
	if err != nil {
		log.Fatalf("Failed to seed administrator: %v", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO user_roles (user_id, role_id, is_active)
		SELECT u.id, r.id, true
		FROM users u, roles r
		WHERE u.username = 'admin' AND r.name = 'administrator'
		ON CONFLICT (user_id, role_id) DO UPDATE SET is_active = true
	`)
	if err != nil {
		log.Fatalf("Failed to grant administrator role: %v", err)
	}

	log.Println("Seeding product code counter...")
	_, err = tx.Exec(ctx, `
		INSERT INTO product_code_counters (id, count) VALUES (1, 0)
		ON CONFLICT (id) DO NOTHING;
	`)
	if err != nil {
		log.Fatalf("Failed to seed product code counter: %v", err)
	}

	if err := tx.Commit(ctx); err != nil {
		log.Fatalf("Failed to commit: %v", err)
	}
	log.Println("Seed complete.")
}
