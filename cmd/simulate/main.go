package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hackgods/provider-scheduling-engine/internal/appointment"
	"github.com/hackgods/provider-scheduling-engine/internal/bootstrap"
	"github.com/hackgods/provider-scheduling-engine/internal/config"
	"github.com/hackgods/provider-scheduling-engine/internal/db"
)

type SimConfig struct {
	APIBaseURL    string
	Duration      time.Duration
	Workers       int
	BookingRatio  float64
	CancelRatio   float64
	ConfirmRatio  float64
	ReadRatio     float64
	Days          int
	PatientLimit  int
	ProviderLimit int
}

type DataPool struct {
	Patients  []uuid.UUID
	Providers []uuid.UUID
	Days      []time.Time

	mu           sync.RWMutex
	appointments []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) GetRandomAppointment(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Busy      int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeConflict
	outcomeBusy
	outcomeError
)

func (om *OperationMetrics) Record(latency time.Duration, o outcome) {
	atomic.AddInt64(&om.Total, 1)
	switch o {
	case outcomeSuccess:
		atomic.AddInt64(&om.Success, 1)
	case outcomeConflict:
		atomic.AddInt64(&om.Conflict, 1)
	case outcomeBusy:
		atomic.AddInt64(&om.Busy, 1)
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
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	percentile := func(p int) time.Duration {
		idx := len(latencies) * p / 100
		if idx >= len(latencies) {
			idx = len(latencies) - 1
		}
		return latencies[idx]
	}

	return sum / time.Duration(len(latencies)), latencies[0], latencies[len(latencies)-1], percentile(50), percentile(95)
}

type Metrics struct {
	Booking  OperationMetrics
	Cancel   OperationMetrics
	Confirm  OperationMetrics
	ReadByID OperationMetrics
	Schedule OperationMetrics
}

type Simulator struct {
	config  SimConfig
	policy  appointment.Policy
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	log     zerolog.Logger
}

func main() {
	var sim SimConfig

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Drive concurrent booking traffic at a running api-server and verify no provider is double booked",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(sim)
		},
	}

	f := cmd.Flags()
	f.StringVar(&sim.APIBaseURL, "api", "http://localhost:8080", "API base URL")
	f.DurationVar(&sim.Duration, "duration", 30*time.Second, "How long to generate load")
	f.IntVar(&sim.Workers, "workers", 20, "Concurrent clients")
	f.Float64Var(&sim.BookingRatio, "booking-ratio", 0.5, "Share of booking requests")
	f.Float64Var(&sim.CancelRatio, "cancel-ratio", 0.1, "Share of cancellations")
	f.Float64Var(&sim.ConfirmRatio, "confirm-ratio", 0.1, "Share of confirmations")
	f.Float64Var(&sim.ReadRatio, "read-ratio", 0.3, "Share of reads")
	f.IntVar(&sim.Days, "days", 3, "Number of upcoming working days to book into")
	f.IntVar(&sim.PatientLimit, "patients", 2000, "Patients to load from Postgres")
	f.IntVar(&sim.ProviderLimit, "providers", 5, "Providers to load from Postgres; few providers means heavy contention")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(simCfg SimConfig) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load base config: %w", err)
	}
	logger := bootstrap.NewLogger(cfg, "simulate")

	if err := normalize(&simCfg); err != nil {
		return err
	}
	if cfg.StorageDriver != config.StorageDriverPostgres {
		return fmt.Errorf("simulate reads patients and providers from Postgres, set STORAGE_DRIVER=postgres")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, cfg.DBMaxConns)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pgPool.Close()

	policy := cfg.Policy()
	dataPool, err := loadDataPool(ctx, pgPool, simCfg, policy)
	if err != nil {
		return fmt.Errorf("load data pool: %w", err)
	}

	logger.Info().
		Int("patients", len(dataPool.Patients)).
		Int("providers", len(dataPool.Providers)).
		Int("days", len(dataPool.Days)).
		Msg("data pool loaded")

	s := &Simulator{
		config: simCfg,
		policy: policy,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    logger,
	}

	s.Run()
	s.PrintReport()

	verifyCtx, cancelVerify := context.WithTimeout(context.Background(), time.Minute)
	defer cancelVerify()
	violations, err := s.VerifyNoOverlaps(verifyCtx)
	if err != nil {
		return fmt.Errorf("verify schedules: %w", err)
	}
	if violations > 0 {
		return fmt.Errorf("found %d overlapping bookings", violations)
	}
	logger.Info().Msg("no overlapping bookings found")
	return nil
}

func normalize(cfg *SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("--workers must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("--duration must be > 0")
	}
	if cfg.Days <= 0 {
		return fmt.Errorf("--days must be > 0")
	}

	total := cfg.BookingRatio + cfg.CancelRatio + cfg.ConfirmRatio + cfg.ReadRatio
	if total <= 0 {
		return fmt.Errorf("at least one ratio must be positive")
	}
	cfg.BookingRatio /= total
	cfg.CancelRatio /= total
	cfg.ConfirmRatio /= total
	cfg.ReadRatio /= total
	return nil
}

func loadIDs(ctx context.Context, pool *pgxpool.Pool, query string, limit int) ([]uuid.UUID, error) {
	rows, err := pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig, policy appointment.Policy) (*DataPool, error) {
	dataPool := &DataPool{}

	var err error
	if dataPool.Patients, err = loadIDs(ctx, pool, `SELECT id FROM patients ORDER BY created_at LIMIT $1`, cfg.PatientLimit); err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	if dataPool.Providers, err = loadIDs(ctx, pool, `SELECT id FROM providers ORDER BY created_at LIMIT $1`, cfg.ProviderLimit); err != nil {
		return nil, fmt.Errorf("load providers: %w", err)
	}

	if len(dataPool.Patients) == 0 {
		return nil, fmt.Errorf("no patients loaded, run cmd/seed first")
	}
	if len(dataPool.Providers) == 0 {
		return nil, fmt.Errorf("no providers loaded, run cmd/seed first")
	}

	dataPool.Days = upcomingWorkdays(time.Now(), policy, cfg.Days)
	return dataPool, nil
}

// upcomingWorkdays returns midnight of the next n allowed weekdays, starting
// tomorrow in the policy location.
func upcomingWorkdays(now time.Time, policy appointment.Policy, n int) []time.Time {
	loc := policy.Location
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	allowed := make(map[time.Weekday]bool, len(policy.AllowedWeekdays))
	for _, wd := range policy.AllowedWeekdays {
		allowed[wd] = true
	}

	var days []time.Time
	for len(days) < n {
		day = day.AddDate(0, 0, 1)
		if allowed[day.Weekday()] {
			days = append(days, day)
		}
	}
	return days
}

// randomStart picks a granularity aligned start that leaves room for the
// duration before closing.
func (s *Simulator) randomStart(rng *rand.Rand, minutes int) time.Time {
	day := s.pool.Days[rng.Intn(len(s.pool.Days))]
	step := s.policy.SlotGranularityMinutes
	if step <= 0 {
		step = 15
	}
	open := s.policy.OpenHour * 60
	last := s.policy.CloseHour*60 - minutes
	choices := (last-open)/step + 1
	if choices < 1 {
		choices = 1
	}
	offset := open + rng.Intn(choices)*step
	return day.Add(time.Duration(offset) * time.Minute)
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.log.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.log.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		r := rng.Float64()
		switch {
		case r < s.config.BookingRatio:
			s.doBooking(ctx, rng)
		case r < s.config.BookingRatio+s.config.CancelRatio:
			s.doTransition(ctx, rng, "cancel", []byte(`{"reason":"simulated cancellation"}`), &s.metrics.Cancel)
		case r < s.config.BookingRatio+s.config.CancelRatio+s.config.ConfirmRatio:
			s.doTransition(ctx, rng, "confirm", nil, &s.metrics.Confirm)
		default:
			if rng.Intn(2) == 0 {
				s.doReadByID(ctx, rng)
			} else {
				s.doSchedule(ctx, rng)
			}
		}
	}
}

func classify(status int) outcome {
	switch status {
	case http.StatusOK, http.StatusCreated:
		return outcomeSuccess
	case http.StatusConflict:
		return outcomeConflict
	default:
		return outcomeError
	}
}

func (s *Simulator) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Actor-ID", "simulator")
	return s.client.Do(req)
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	durations := []int{15, 30, 45, 60}
	minutes := durations[rng.Intn(len(durations))]

	body, _ := json.Marshal(map[string]any{
		"patient_id":       s.pool.Patients[rng.Intn(len(s.pool.Patients))].String(),
		"provider_id":      s.pool.Providers[rng.Intn(len(s.pool.Providers))].String(),
		"type":             "consultation",
		"scheduled_at":     s.randomStart(rng, minutes),
		"duration_minutes": minutes,
	})

	start := time.Now()
	resp, err := s.do(ctx, http.MethodPost, "/appointments", body)
	latency := time.Since(start)
	if err != nil {
		if ctx.Err() == nil {
			s.metrics.Booking.Record(latency, outcomeError)
		}
		return
	}
	defer resp.Body.Close()

	o := classify(resp.StatusCode)
	switch o {
	case outcomeSuccess:
		var created struct {
			Appointment struct {
				ID uuid.UUID `json:"id"`
			} `json:"appointment"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&created); err == nil && created.Appointment.ID != uuid.Nil {
			s.pool.AddAppointment(created.Appointment.ID)
		}
	case outcomeConflict:
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error == "provider_busy" {
			o = outcomeBusy
		}
	}
	s.metrics.Booking.Record(latency, o)
}

func (s *Simulator) doTransition(ctx context.Context, rng *rand.Rand, action string, body []byte, om *OperationMetrics) {
	apptID, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	resp, err := s.do(ctx, http.MethodPost, fmt.Sprintf("/appointments/%s/%s", apptID, action), body)
	latency := time.Since(start)
	if err != nil {
		if ctx.Err() == nil {
			om.Record(latency, outcomeError)
		}
		return
	}
	resp.Body.Close()
	om.Record(latency, classify(resp.StatusCode))
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	resp, err := s.do(ctx, http.MethodGet, "/appointments/"+apptID.String(), nil)
	latency := time.Since(start)
	if err != nil {
		if ctx.Err() == nil {
			s.metrics.ReadByID.Record(latency, outcomeError)
		}
		return
	}
	resp.Body.Close()
	s.metrics.ReadByID.Record(latency, classify(resp.StatusCode))
}

func (s *Simulator) doSchedule(ctx context.Context, rng *rand.Rand) {
	providerID := s.pool.Providers[rng.Intn(len(s.pool.Providers))]
	day := s.pool.Days[rng.Intn(len(s.pool.Days))]

	start := time.Now()
	resp, err := s.do(ctx, http.MethodGet,
		fmt.Sprintf("/providers/%s/schedule?date=%s", providerID, day.Format("2006-01-02")), nil)
	latency := time.Since(start)
	if err != nil {
		if ctx.Err() == nil {
			s.metrics.Schedule.Record(latency, outcomeError)
		}
		return
	}
	resp.Body.Close()
	s.metrics.Schedule.Record(latency, classify(resp.StatusCode))
}

// VerifyNoOverlaps fetches every provider day the run touched and counts
// slots held by more than one booking.
func (s *Simulator) VerifyNoOverlaps(ctx context.Context) (int, error) {
	violations := 0
	for _, providerID := range s.pool.Providers {
		for _, day := range s.pool.Days {
			resp, err := s.do(ctx, http.MethodGet,
				fmt.Sprintf("/providers/%s/schedule?date=%s", providerID, day.Format("2006-01-02")), nil)
			if err != nil {
				return violations, err
			}

			var sched appointment.ProviderSchedule
			err = json.NewDecoder(resp.Body).Decode(&sched)
			resp.Body.Close()
			if err != nil {
				return violations, fmt.Errorf("decode schedule: %w", err)
			}

			for _, slot := range sched.Booked {
				if len(slot.OverlappingIDs) == 0 {
					continue
				}
				violations++
				s.log.Error().
					Str("provider_id", providerID.String()).
					Time("slot_start", slot.Start).
					Int("extra_occupants", len(slot.OverlappingIDs)).
					Msg("overlapping bookings")
			}
		}
	}
	return violations, nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Providers: %d\n", len(s.pool.Providers))
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Confirm", &s.metrics.Confirm)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
	printOperationReport("Provider schedule", &s.metrics.Schedule)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	pct := func(n int64) float64 { return float64(n) / float64(total) * 100 }
	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	busy := atomic.LoadInt64(&om.Busy)
	errs := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, pct(success))
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, pct(conflict))
	}
	if busy > 0 {
		fmt.Printf("  Provider busy: %d (%.1f%%)\n", busy, pct(busy))
	}
	if errs > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", errs, pct(errs))
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}
