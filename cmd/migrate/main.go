// migrate applies the schema for the configured STORE_BACKEND.
// postgres runs the embedded golang-migrate files in either direction; sqlite applies its
// embedded migrations on open (up only); memory and redis have no schema.
package main

import (
	"flag"
	"fmt"
	"os"

	"alumni-tracker/internal/config"
	"alumni-tracker/internal/db/migrate"
	"alumni-tracker/internal/kv/sqlite"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down (postgres only)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	switch cfg.StoreBackend {
	case config.BackendPostgres:
		if err := migrate.Run(cfg.DatabaseURL, *direction); err != nil {
			fmt.Fprintln(os.Stderr, "migrate:", err)
			os.Exit(1)
		}
	case config.BackendSQLite:
		if *direction != "up" {
			fmt.Fprintln(os.Stderr, "migrate: sqlite supports only -direction=up")
			os.Exit(1)
		}
		s, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "migrate:", err)
			os.Exit(1)
		}
		_ = s.Close()
	default:
		fmt.Printf("STORE_BACKEND=%s has no schema; nothing to do\n", cfg.StoreBackend)
		return
	}
	fmt.Printf("%s migrations applied (%s)\n", cfg.StoreBackend, *direction)
}
