package main

import (
	"errors"
	"flag"
	"log"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/example/ec-backend/internal/config"
)

func main() {
	var (
		dir  = flag.String("dir", "migrations", "migrations directory")
		down = flag.Bool("down", false, "roll back one migration instead of migrating up")
	)
	flag.Parse()

	cfg := config.Load()

	m, err := migrate.New("file://"+*dir, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[Migrate] Failed to initialize: %v", err)
	}
	defer m.Close()

	if *down {
		err = m.Steps(-1)
	} else {
		err = m.Up()
	}
	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Println("[Migrate] No changes to apply")
			return
		}
		log.Fatalf("[Migrate] Migration failed: %v", err)
	}
	log.Println("[Migrate] Migrations applied")
}
