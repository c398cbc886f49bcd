// README: Smoke and load runner against a running laundry API; executes HTTP/DB/Redis checks and prints results.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"laundry/internal/config"
)

// Config holds the runner knobs. Connection settings come from the same
// environment the API reads; flags cover what only the runner needs.
type Config struct {
	BaseURL        string
	Token          string
	DSN            string
	RedisAddr      string
	MigrationPath  string
	ApplyMigration bool
	Strict         bool
	Timeout        time.Duration
	Concurrency    int
	Duration       time.Duration
}

func main() {
	appCfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	cfg := benchConfig(appCfg, flag.CommandLine, os.Args[1:])

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	counts := tally(NewRunner(cfg).RunAll(ctx))
	fmt.Println("\n== Summary ==")
	fmt.Printf("PASS=%d FAIL=%d PENDING=%d SKIP=%d\n",
		counts[StatusPass], counts[StatusFail], counts[StatusPending], counts[StatusSkip])

	if counts[StatusFail] > 0 || (cfg.Strict && counts[StatusPending] > 0) {
		os.Exit(1)
	}
}

// benchConfig derives runner defaults from the API config and lets flags
// override them. Redis checks are skipped when the API has Redis disabled.
func benchConfig(app config.Config, fs *flag.FlagSet, args []string) Config {
	redisAddr := ""
	if app.Redis.Enabled {
		redisAddr = app.Redis.Addr
	}
	var cfg Config
	fs.StringVar(&cfg.BaseURL, "base-url", baseURLFor(app.HTTP.Addr), "API base URL")
	fs.StringVar(&cfg.Token, "token", "", "Bearer token for session routes (optional)")
	fs.StringVar(&cfg.DSN, "dsn", app.DB.DSN, "Postgres DSN, empty to skip DB checks")
	fs.StringVar(&cfg.RedisAddr, "redis", redisAddr, "Redis address, empty to skip Redis checks")
	fs.StringVar(&cfg.MigrationPath, "migration", "migrations/0001_init.sql", "Migration SQL path")
	fs.BoolVar(&cfg.ApplyMigration, "apply-migration", false, "Apply migration SQL before tests")
	fs.BoolVar(&cfg.Strict, "strict", false, "Fail on pending checks")
	fs.DurationVar(&cfg.Timeout, "timeout", 60*time.Second, "Total timeout")
	fs.IntVar(&cfg.Concurrency, "concurrency", 20, "Concurrency for load checks")
	fs.DurationVar(&cfg.Duration, "duration", 10*time.Second, "Duration for load checks")
	_ = fs.Parse(args)
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return cfg
}

// baseURLFor turns a listen address such as ":8080" into a dialable URL.
func baseURLFor(addr string) string {
	host := addr
	if strings.HasPrefix(addr, ":") {
		host = "localhost" + addr
	} else if strings.HasPrefix(addr, "0.0.0.0:") {
		host = "localhost" + strings.TrimPrefix(addr, "0.0.0.0")
	}
	return "http://" + host
}

func tally(results []Result) map[string]int {
	counts := make(map[string]int, 4)
	for _, r := range results {
		counts[r.Status]++
	}
	return counts
}
