package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/campuslink/account-service/config"
	"github.com/campuslink/account-service/pkg/helpers"
)

// Seeds the initial administrator account. The admin flag can never be set
// through the public API, so the first admin has to enter the database from
// here (or by hand). Prints a short-lived access token for smoke testing.
func main() {
	var (
		email    = flag.String("email", "admin@campuslink.local", "admin email")
		name     = flag.String("name", "Administrator", "admin display name")
		password = flag.String("password", "changeme123", "admin password")
	)
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()

	db, err := sql.Open("pgx", cfg.PostgresDSN())
	if err != nil {
		log.Fatalf("failed to open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	hash, err := helpers.HashPassword(*password)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	var id int64
	err = db.QueryRow(`
		INSERT INTO users (name, email, password_hash, is_admin)
		VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (email) DO UPDATE SET is_admin = TRUE
		RETURNING id
	`, *name, *email, hash).Scan(&id)
	if err != nil {
		log.Fatalf("failed to seed admin: %v", err)
	}
	fmt.Printf("seeded admin: id=%d email=%s\n", id, *email)

	jwtManager := helpers.NewJWTManager(cfg.JWTAccessSecret, cfg.AccessTTL)
	token, exp, err := jwtManager.GenerateAccessToken(id)
	if err != nil {
		log.Fatalf("failed to generate token: %v", err)
	}
	fmt.Printf("access token (expires %s):\n%s\n", exp.Format("2006-01-02 15:04:05"), token)
}
