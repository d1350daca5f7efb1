package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/lib/pq"
)

var ingestTables = []string{"jobs", "staging", "issues", "issue_items", "contacts"}

func main() {
	dir := flag.String("dir", "migrations", "directory holding .sql migration files")
	list := flag.Bool("list", false, "print ingest tables and row counts instead of migrating")
	flag.Parse()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is required")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("ping: %v", err)
	}
	log.Println("Connected to database")

	if *list {
		listTables(db)
		return
	}

	if err := applyDir(db, *dir); err != nil {
		log.Fatal(err)
	}
}

func listTables(db *sql.DB) {
	for _, t := range ingestTables {
		var n int64
		if err := db.QueryRow("SELECT COUNT(*) FROM " + t).Scan(&n); err != nil {
			fmt.Printf("  %-12s missing (%v)\n", t, err)
			continue
		}
		fmt.Printf("  %-12s %d rows\n", t, n)
	}
}

// applyDir runs every .sql file in dir in name order, one transaction per
// file. The files are written to be rerunnable, so a second pass reports
// OK for everything already in place.
func applyDir(db *sql.DB, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read migrations dir %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	var okCount, errCount int
	for _, f := range files {
		data, err := os.ReadFile(filepath.Join(dir, f))
		if err != nil {
			return fmt.Errorf("read %s: %w", f, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		fmt.Printf("  %s ... ", f)

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin %s: %w", f, err)
		}
		if _, err := tx.Exec(string(data)); err != nil {
			tx.Rollback()
			fmt.Printf("ERROR: %v\n", err)
			errCount++
			continue
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", f, err)
		}
		fmt.Println("OK")
		okCount++
	}

	log.Printf("Done: %d OK, %d errors", okCount, errCount)
	if errCount > 0 {
		return fmt.Errorf("%d migrations failed", errCount)
	}
	return nil
}
