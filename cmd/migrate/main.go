package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/gioe/aiq-sub010/internal/config"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func main() {
	dir := flag.String("path", "migrations", "directory holding the migration files")
	flag.Parse()

	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	m, err := migrate.New("file://"+*dir, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("migrate init: %v", err)
	}

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	switch cmd := flag.Arg(0); cmd {
	case "up":
		run(m.Up, "schema is up to date")
	case "down":
		if flag.NArg() > 1 {
			n := mustAtoi(flag.Arg(1))
			run(func() error { return m.Steps(-n) }, fmt.Sprintf("rolled back %d migration(s)", n))
		} else {
			run(m.Down, "rolled everything back")
		}
	case "version":
		v, dirty, err := m.Version()
		if err != nil {
			log.Fatalf("version: %v", err)
		}
		fmt.Printf("version=%d dirty=%t\n", v, dirty)
	case "force":
		if flag.NArg() < 2 {
			log.Fatal("force needs a version argument")
		}
		v := mustAtoi(flag.Arg(1))
		run(func() error { return m.Force(v) }, fmt.Sprintf("forced version to %d", v))
	default:
		usage()
		os.Exit(2)
	}
}

func run(step func() error, okMsg string) {
	if err := step(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("migration: %v", err)
	}
	fmt.Println(okMsg)
}

func mustAtoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("not a number: %q", s)
	}
	return n
}

func usage() {
	fmt.Println("Usage: migrate [-path dir] <up | down [n] | version | force <v>>")
	flag.PrintDefaults()
}
