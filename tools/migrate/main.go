// Command migrate applies the embedded schema for one service database.
//
//	DATABASE_URL=postgres://... migrate booking [force <version>]
package main

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"

	bookingmigrations "github.com/zapislab/zapis/migrations/booking"
	businessmigrations "github.com/zapislab/zapis/migrations/business"
	notificationmigrations "github.com/zapislab/zapis/migrations/notification"
)

var schemas = map[string]embed.FS{
	"booking":      bookingmigrations.FS,
	"business":     businessmigrations.FS,
	"notification": notificationmigrations.FS,
}

func main() {
	if len(os.Args) < 2 {
		log.Fatalf("usage: migrate <booking|business|notification> [force <version>]")
	}
	fs, ok := schemas[strings.TrimSpace(os.Args[1])]
	if !ok {
		log.Fatalf("unknown schema %q", os.Args[1])
	}

	databaseURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		log.Fatalf("ping db: %v", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		log.Fatalf("db driver: %v", err)
	}

	srcDriver, err := iofs.New(fs, ".")
	if err != nil {
		log.Fatalf("source driver: %v", err)
	}

	m, err := migrate.NewWithInstance("iofs", srcDriver, "postgres", dbDriver)
	if err != nil {
		log.Fatalf("create migrator: %v", err)
	}
	defer func() { _, _ = m.Close() }()

	if len(os.Args) >= 4 && os.Args[2] == "force" {
		version, err := strconv.Atoi(os.Args[3])
		if err != nil {
			log.Fatalf("invalid version: %v", err)
		}
		if err := m.Force(version); err != nil {
			log.Fatalf("force version: %v", err)
		}
		fmt.Printf("forced version to %d\n", version)
		return
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("migrate up: %v", err)
	}

	fmt.Println("migrations complete")
}
