// README: Smoke cases for slot availability, order placement and cancellation, plus load checks.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"laundry/internal/civil"
)

const (
	StatusPass    = "PASS"
	StatusFail    = "FAIL"
	StatusPending = "PENDING"
	StatusSkip    = "SKIP"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client
	today string
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name  string
	Focus string
	Run   func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 10 * time.Second},
		today: civil.Now(civil.SystemClock{}).Date,
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))
	for _, tc := range tests {
		res := tc.Run(ctx, r)
		res.Name = tc.Name
		results = append(results, res)
		fmt.Printf("%-7s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}
	return results
}

func (r *Runner) cases() []TestCase {
	base := r.cfg.BaseURL
	tomorrow := civil.AddDays(r.today, 1)
	dayAfter := civil.AddDays(r.today, 2)

	return []TestCase{
		{
			Name:  "Env: Postgres connect",
			Focus: "DB reachable",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: StatusSkip, Note: "dsn not set"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.db.Ping(ctx); err != nil {
					return Result{Status: StatusFail, Note: err.Error()}
				}
				return Result{Status: StatusPass}
			},
		},
		{
			Name:  "Env: Redis connect",
			Focus: "Redis reachable",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.redis == nil {
					return Result{Status: StatusSkip, Note: "redis not set"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.redis.Ping(ctx).Err(); err != nil {
					return Result{Status: StatusFail, Note: err.Error()}
				}
				return Result{Status: StatusPass}
			},
		},
		{
			Name:  "Migration: apply (optional)",
			Focus: "apply migration SQL",
			Run: func(ctx context.Context, r *Runner) Result {
				if !r.cfg.ApplyMigration {
					return Result{Status: StatusSkip, Note: "apply-migration=false"}
				}
				if r.db == nil {
					return Result{Status: StatusFail, Note: "db not configured"}
				}
				sql, err := os.ReadFile(r.cfg.MigrationPath)
				if err != nil {
					return Result{Status: StatusFail, Note: err.Error()}
				}
				for _, s := range splitSQL(string(sql)) {
					if _, err := r.db.Exec(ctx, s); err != nil {
						return Result{Status: StatusFail, Note: err.Error()}
					}
				}
				return Result{Status: StatusPass}
			},
		},
		{
			Name:  "Migration: tables exist",
			Focus: "tables in migrations/0001_init.sql",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: StatusSkip, Note: "dsn not set"}
				}
				tables, err := extractTables(r.cfg.MigrationPath)
				if err != nil {
					return Result{Status: StatusFail, Note: err.Error()}
				}
				for _, t := range tables {
					var exists bool
					err := r.db.QueryRow(ctx,
						"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)",
						t,
					).Scan(&exists)
					if err != nil {
						return Result{Status: StatusFail, Note: err.Error()}
					}
					if !exists {
						return Result{Status: StatusFail, Note: "missing table: " + t}
					}
				}
				return Result{Status: StatusPass}
			},
		},
		httpCaseMethod("API: liveness", http.MethodGet, base+"/healthz", nil, "", []int{200}, nil),
		httpCaseMethod("API: readiness", http.MethodGet, base+"/readyz", nil, "", []int{200}, []int{503}),

		// Availability
		httpCase("Slots: pickup today", base+"/api/slots", map[string]any{
			"date": r.today,
			"kind": "pickup",
		}, "", []int{200}, nil),
		httpCase("Slots: delivery standard", base+"/api/slots", map[string]any{
			"date":         dayAfter,
			"kind":         "delivery",
			"serviceType":  "standard",
			"pickupDate":   tomorrow,
			"pickupEndMin": 600,
		}, "", []int{200}, nil),
		httpCase("Slots: delivery without serviceType -> 400", base+"/api/slots", map[string]any{
			"date": tomorrow,
			"kind": "delivery",
		}, "", []int{400}, nil),
		httpCase("Slots: bad date -> 400", base+"/api/slots", map[string]any{
			"date": "10/03/2025",
			"kind": "pickup",
		}, "", []int{400}, nil),
		httpCaseMethod("Slots: date selector", http.MethodGet,
			base+"/api/slots/dates?pickupDate="+tomorrow+"&serviceType=express", nil, "", []int{200}, nil),

		// Orders
		httpCase("Order: place without identity -> 401", base+"/api/orders", orderPayload(tomorrow, dayAfter, ""), "", []int{401}, nil),
		httpCase("Order: place with user_id", base+"/api/orders", orderPayload(tomorrow, dayAfter, "bench-user"), "", []int{200}, nil),
		httpCase("Order: delivery before pickup -> 400", base+"/api/orders", orderPayload(dayAfter, tomorrow, "bench-user"), "", []int{400}, nil),
		httpCaseMethod("Order: history requires session", http.MethodGet, base+"/api/orders", nil, "", []int{401}, nil),
		{
			Name:  "Order: place then cancel with session",
			Focus: "cancel window",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.cfg.Token == "" {
					return Result{Status: StatusSkip, Note: "token not set"}
				}
				return placeAndCancel(ctx, r, orderPayload(dayAfter, civil.AddDays(dayAfter, 1), ""))
			},
		},
		httpCase("Cancel: without session -> 401", base+"/api/orders/cancel", map[string]any{"order_id": "ORD0"}, "", []int{401}, nil),
		manualCase("Cancel: after cutoff -> 400", "needs an order whose pickup starts within the lead time"),
		manualCase("Cancel: other user's order -> 403", "needs two signed-in users"),

		// Concurrency
		{
			Name:  "Concurrency: placements on one slot",
			Focus: "reservation never oversells",
			Run: func(ctx context.Context, r *Runner) Result {
				return concurrentPlace(ctx, r, orderPayload(dayAfter, civil.AddDays(dayAfter, 1), "bench-user"))
			},
		},

		// Load
		{
			Name:  "Perf: availability throughput",
			Focus: "POST /api/slots under load",
			Run: func(ctx context.Context, r *Runner) Result {
				return perfLoad(ctx, r, base+"/api/slots", map[string]any{
					"date":        dayAfter,
					"kind":        "delivery",
					"serviceType": "express",
					"pickupDate":  tomorrow,
				})
			},
		},
	}
}

func orderPayload(pickupDate, deliveryDate, userID string) map[string]any {
	p := map[string]any{
		"pickup":      map[string]any{"date": pickupDate, "label": "10:00 AM - 12:00 PM", "slotId": "2"},
		"delivery":    map[string]any{"date": deliveryDate, "label": "06:00 PM - 08:00 PM", "slotId": "6"},
		"serviceType": "standard",
		"total":       299,
	}
	if userID != "" {
		p["user_id"] = userID
	}
	return p
}

func httpCase(name, url string, body any, token string, okStatuses, pendingStatuses []int) TestCase {
	return httpCaseMethod(name, http.MethodPost, url, body, token, okStatuses, pendingStatuses)
}

func httpCaseMethod(name, method, url string, body any, token string, okStatuses, pendingStatuses []int) TestCase {
	return TestCase{
		Name:  name,
		Focus: "HTTP API",
		Run: func(ctx context.Context, r *Runner) Result {
			start := time.Now()
			status, _, err := r.do(ctx, method, url, body, token)
			if err != nil {
				return Result{Status: StatusFail, Note: err.Error()}
			}
			latency := time.Since(start)
			note := fmt.Sprintf("status=%d", status)
			switch {
			case contains(okStatuses, status):
				return Result{Status: StatusPass, Latency: latency, Note: note}
			case contains(pendingStatuses, status):
				return Result{Status: StatusPending, Latency: latency, Note: note}
			}
			return Result{Status: StatusFail, Latency: latency, Note: note}
		},
	}
}

func (r *Runner) do(ctx context.Context, method, url string, body any, token string) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = strings.NewReader(string(b))
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	return resp.StatusCode, out, err
}

func manualCase(name, note string) TestCase {
	return TestCase{
		Name:  name,
		Focus: "Manual",
		Run: func(ctx context.Context, r *Runner) Result {
			return Result{Status: StatusSkip, Note: note}
		},
	}
}

func placeAndCancel(ctx context.Context, r *Runner, payload map[string]any) Result {
	start := time.Now()
	status, body, err := r.do(ctx, http.MethodPost, r.cfg.BaseURL+"/api/orders", payload, r.cfg.Token)
	if err != nil {
		return Result{Status: StatusFail, Note: err.Error()}
	}
	if status != http.StatusOK {
		return Result{Status: StatusFail, Note: fmt.Sprintf("place status=%d", status)}
	}
	var placed struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &placed); err != nil || placed.ID == "" {
		return Result{Status: StatusFail, Note: "place returned no id"}
	}
	status, _, err = r.do(ctx, http.MethodPost, r.cfg.BaseURL+"/api/orders/cancel", map[string]any{"order_id": placed.ID}, r.cfg.Token)
	if err != nil {
		return Result{Status: StatusFail, Note: err.Error()}
	}
	if status != http.StatusOK {
		return Result{Status: StatusFail, Note: fmt.Sprintf("cancel status=%d", status)}
	}
	return Result{Status: StatusPass, Latency: time.Since(start), Note: "order " + placed.ID}
}

// concurrentPlace fires the same placement in parallel. Every response must
// be 200 or 409; anything else means the guard misbehaved.
func concurrentPlace(ctx context.Context, r *Runner, payload map[string]any) Result {
	var (
		wg       sync.WaitGroup
		ok, full atomic.Int64
		other    atomic.Int64
	)
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := make(map[string]any, len(payload)+1)
			for k, v := range payload {
				p[k] = v
			}
			p["orderId"] = fmt.Sprintf("BENCH%d-%d", time.Now().UnixNano(), i)
			status, _, err := r.do(ctx, http.MethodPost, r.cfg.BaseURL+"/api/orders", p, "")
			switch {
			case err != nil:
				other.Add(1)
			case status == http.StatusOK:
				ok.Add(1)
			case status == http.StatusConflict:
				full.Add(1)
			default:
				other.Add(1)
			}
		}(i)
	}
	wg.Wait()

	note := fmt.Sprintf("ok=%d full=%d other=%d", ok.Load(), full.Load(), other.Load())
	if other.Load() > 0 {
		return Result{Status: StatusFail, Note: note}
	}
	return Result{Status: StatusPass, Note: note}
}

func perfLoad(ctx context.Context, r *Runner, url string, payload any) Result {
	end := time.Now().Add(r.cfg.Duration)
	var (
		count, errCount atomic.Int64
		wg              sync.WaitGroup
	)
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				if _, _, err := r.do(ctx, http.MethodPost, url, payload, ""); err != nil {
					errCount.Add(1)
					continue
				}
				count.Add(1)
			}
		}()
	}
	wg.Wait()

	if count.Load() == 0 {
		return Result{Status: StatusFail, Note: "no requests completed"}
	}
	rps := float64(count.Load()) / r.cfg.Duration.Seconds()
	return Result{Status: StatusPass, Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount.Load())}
}

func contains(list []int, v int) bool {
	for _, i := range list {
		if i == v {
			return true
		}
	}
	return false
}

var createTableRe = regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_]+)`)

func extractTables(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	matches := createTableRe.FindAllStringSubmatch(string(b), -1)
	tables := make([]string, 0, len(matches))
	for _, m := range matches {
		tables = append(tables, m[1])
	}
	return tables, nil
}

func splitSQL(sql string) []string {
	lines := strings.Split(sql, "\n")
	filtered := make([]string, 0, len(lines))
	for _, line := range lines {
		l := strings.TrimSpace(line)
		if strings.HasPrefix(l, "--") || l == "" {
			continue
		}
		filtered = append(filtered, line)
	}
	parts := strings.Split(strings.Join(filtered, "\n"), ";")
	stmts := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}
