// README: Postgres test harness; applies migrations and truncates tables per test.
package testutil

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DSNEnv names the variable that enables DB-backed tests.
const DSNEnv = "LAUNDRY_TEST_DSN"

// Postgres connects to LAUNDRY_TEST_DSN, applies every migration and
// truncates the given tables. The test is skipped when the DSN is unset.
func Postgres(t *testing.T, truncate ...string) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv(DSNEnv)
	if dsn == "" {
		t.Skip(DSNEnv + " not set; skipping DB-backed tests")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := ApplyMigrations(ctx, db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if len(truncate) > 0 {
		if _, err := db.Exec(ctx, "TRUNCATE TABLE "+strings.Join(truncate, ", ")+" CASCADE"); err != nil {
			t.Fatalf("truncate: %v", err)
		}
	}
	return db
}

// ApplyMigrations runs migrations/*.sql in name order.
func ApplyMigrations(ctx context.Context, db *pgxpool.Pool) error {
	root, err := RepoRoot()
	if err != nil {
		return err
	}
	files, err := filepath.Glob(filepath.Join(root, "migrations", "*.sql"))
	if err != nil {
		return err
	}
	sort.Strings(files)
	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		for _, stmt := range SplitSQL(StripSQLComments(string(content))) {
			if _, err := db.Exec(ctx, stmt); err != nil {
				return err
			}
		}
	}
	return nil
}

// RepoRoot walks up from the working directory to the go.mod.
func RepoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 6; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}

func StripSQLComments(input string) string {
	var b strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(input))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		b.WriteString(scanner.Text())
		b.WriteString("\n")
	}
	return b.String()
}

func SplitSQL(input string) []string {
	parts := strings.Split(input, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		stmt := strings.TrimSpace(p)
		if stmt == "" {
			continue
		}
		out = append(out, stmt)
	}
	return out
}
