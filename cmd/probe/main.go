package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hackgods/coach-slot-availability/internal/availability"
	"github.com/hackgods/coach-slot-availability/internal/config"
	"github.com/hackgods/coach-slot-availability/internal/db"
)

type ProbeConfig struct {
	APIBaseURL  string
	Duration    time.Duration
	Workers     int
	MonthRatio  float64
	HorizonDays int
	TargetLimit int
	PostgresDSN string
	Zone        string
}

type OperationMetrics struct {
	Total       int64
	Success     int64
	ClientError int64
	Error       int64
	Latencies   []time.Duration
	mu          sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, status int, err error) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case err == nil && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case err == nil && status < 500:
		atomic.AddInt64(&om.ClientError, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]
	return avg, min, max, p50, p95
}

func percentileIndex(n, pct int) int {
	idx := n * pct / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Slots OperationMetrics
	Month OperationMetrics
}

type Prober struct {
	config  ProbeConfig
	targets []availability.WarmTarget
	today   availability.Date
	client  *http.Client
	metrics Metrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("probe starting")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("config: duration=%s workers=%d month=%.2f horizon=%dd",
		cfg.Duration, cfg.Workers, cfg.MonthRatio, cfg.HorizonDays)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.DefaultPoolOptions(), zap.NewNop())
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	targets, err := loadTargets(ctx, pgPool, cfg.TargetLimit)
	if err != nil {
		log.Fatalf("load targets: %v", err)
	}
	log.Printf("loaded: %d coach/service targets", len(targets))

	zone, err := availability.LoadZone(cfg.Zone)
	if err != nil {
		log.Fatalf("zone: %v", err)
	}

	p := &Prober{
		config:  cfg,
		targets: targets,
		today:   availability.DateOf(time.Now(), zone),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	p.Run()
	p.PrintReport()
}

func loadConfig() ProbeConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}

	return ProbeConfig{
		APIBaseURL:  getEnv("PROBE_API_BASE_URL", "http://localhost:8080"),
		Duration:    getDuration("PROBE_DURATION", 30*time.Second),
		Workers:     getInt("PROBE_WORKERS", 10),
		MonthRatio:  getFloat("PROBE_MONTH_RATIO", 0.1),
		HorizonDays: getInt("PROBE_HORIZON_DAYS", 28),
		TargetLimit: getInt("PROBE_TARGET_LIMIT", 500),
		PostgresDSN: baseCfg.PostgresDSN,
		Zone:        baseCfg.BusinessZone,
	}
}

func validateConfig(cfg ProbeConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("PROBE_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("PROBE_DURATION must be > 0")
	}
	if cfg.HorizonDays <= 0 {
		return fmt.Errorf("PROBE_HORIZON_DAYS must be > 0")
	}
	if cfg.MonthRatio < 0 || cfg.MonthRatio > 1 {
		return fmt.Errorf("PROBE_MONTH_RATIO must be within [0,1]")
	}
	return nil
}

// loadTargets reads every coach offering, not only the ones flagged for warming.
func loadTargets(ctx context.Context, pool *pgxpool.Pool, limit int) ([]availability.WarmTarget, error) {
	rows, err := pool.Query(ctx, `
		SELECT service_id, coach_id, location_id
		FROM coach_services
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var targets []availability.WarmTarget
	for rows.Next() {
		var t availability.WarmTarget
		if err := rows.Scan(&t.ServiceID, &t.CoachID, &t.LocationID); err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("no coach_services rows, run the seed first")
	}
	return targets, nil
}

func (p *Prober) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.Duration)
	defer cancel()

	log.Printf("probing for %s with %d workers", p.config.Duration, p.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < p.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			p.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	log.Println("probe complete")
}

func (p *Prober) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			t := p.targets[rng.Intn(len(p.targets))]
			if rng.Float64() < p.config.MonthRatio {
				p.doMonth(ctx, rng, t)
			} else {
				p.doSlots(ctx, rng, t)
			}
		}
	}
}

func targetValues(t availability.WarmTarget) url.Values {
	v := url.Values{}
	v.Set("service_id", t.ServiceID)
	v.Set("coach_id", t.CoachID)
	v.Set("location_id", t.LocationID)
	return v
}

func (p *Prober) doSlots(ctx context.Context, rng *rand.Rand, t availability.WarmTarget) {
	v := targetValues(t)
	v.Set("date", p.today.AddDays(rng.Intn(p.config.HorizonDays)).String())
	p.get(ctx, "/availability/slots?"+v.Encode(), &p.metrics.Slots)
}

func (p *Prober) doMonth(ctx context.Context, rng *rand.Rand, t availability.WarmTarget) {
	v := targetValues(t)
	v.Set("month", p.today.AddDays(rng.Intn(p.config.HorizonDays)).String()[:7])
	p.get(ctx, "/availability/month?"+v.Encode(), &p.metrics.Month)
}

func (p *Prober) get(ctx context.Context, path string, om *OperationMetrics) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.APIBaseURL+path, nil)
	if err != nil {
		return
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	latency := time.Since(start)

	// Requests cut off by the end of the run are not counted.
	if ctx.Err() != nil {
		if err == nil {
			resp.Body.Close()
		}
		return
	}

	status := 0
	if err == nil {
		status = resp.StatusCode
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
	om.Record(latency, status, err)
}

func (p *Prober) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("AVAILABILITY PROBE REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", p.config.Duration)
	fmt.Printf("Workers: %d\n", p.config.Workers)
	fmt.Printf("Targets: %d\n", len(p.targets))
	fmt.Println()

	printOperationReport("Day slots", &p.metrics.Slots)
	printOperationReport("Month overview", &p.metrics.Month)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	clientErr := atomic.LoadInt64(&om.ClientError)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if clientErr > 0 {
		fmt.Printf("  4xx: %d (%.1f%%)\n", clientErr, float64(clientErr)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
