package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/medisched/clinic-scheduling/internal/db"
)

// Booking storm: many workers race to book slots of a handful of doctors
// through the API, then the appointments table is checked for overlapping
// active intervals. Any overlap means the per-doctor critical section failed.

type simConfig struct {
	APIBaseURL  string
	PostgresDSN string
	Workers     int
	Duration    time.Duration
	DoctorLimit int
}

type stats struct {
	booked    atomic.Int64
	conflicts atomic.Int64
	busy      atomic.Int64
	failures  atomic.Int64
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	_ = godotenv.Load()

	cfg := simConfig{
		APIBaseURL:  getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
		Workers:     getEnvInt("SIM_WORKERS", 16),
		Duration:    getEnvDuration("SIM_DURATION", 30*time.Second),
		DoctorLimit: getEnvInt("SIM_DOCTOR_LIMIT", 5),
	}
	if cfg.PostgresDSN == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration+2*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	doctors, err := loadIDs(ctx, pool, `SELECT id FROM doctors LIMIT $1`, cfg.DoctorLimit)
	if err != nil || len(doctors) == 0 {
		log.Fatalf("load doctors (run cmd/seed first): %v", err)
	}
	patients, err := loadIDs(ctx, pool, `SELECT id FROM patients LIMIT $1`, 500)
	if err != nil || len(patients) == 0 {
		log.Fatalf("load patients (run cmd/seed first): %v", err)
	}

	log.Printf("simulating: workers=%d duration=%s doctors=%d", cfg.Workers, cfg.Duration, len(doctors))

	day := time.Now().UTC().AddDate(0, 0, 1).Format("2006-01-02")
	client := &http.Client{Timeout: 10 * time.Second}
	deadline := time.Now().Add(cfg.Duration)

	var st stats
	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for time.Now().Before(deadline) {
				doctor := doctors[rng.Intn(len(doctors))]
				patient := patients[rng.Intn(len(patients))]
				runBooking(client, cfg.APIBaseURL, doctor, patient, day, rng, &st)
			}
		}(time.Now().UnixNano() + int64(w))
	}
	wg.Wait()

	log.Printf("done: booked=%d slot_conflicts=%d schedule_busy=%d failures=%d",
		st.booked.Load(), st.conflicts.Load(), st.busy.Load(), st.failures.Load())

	overlaps, err := countOverlaps(ctx, pool)
	if err != nil {
		log.Fatalf("verify overlaps: %v", err)
	}
	if overlaps > 0 {
		log.Fatalf("INVARIANT VIOLATED: %d overlapping active appointment pairs", overlaps)
	}
	log.Println("no overlapping active appointments, invariant holds")
}

type slotDTO struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

func runBooking(client *http.Client, baseURL string, doctor, patient uuid.UUID, day string, rng *rand.Rand, st *stats) {
	slots, err := fetchSlots(client, baseURL, doctor, day)
	if err != nil || len(slots) == 0 {
		st.failures.Add(1)
		return
	}

	slot := slots[rng.Intn(len(slots))]
	body, _ := json.Marshal(map[string]any{
		"doctor_id":  doctor.String(),
		"patient_id": patient.String(),
		"start_time": slot.StartTime,
		"end_time":   slot.EndTime,
	})

	resp, err := client.Post(baseURL+"/appointments", "application/json", bytes.NewReader(body))
	if err != nil {
		st.failures.Add(1)
		return
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		st.booked.Add(1)
	case http.StatusConflict:
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "schedule_busy" {
			st.busy.Add(1)
		} else {
			st.conflicts.Add(1)
		}
	default:
		st.failures.Add(1)
	}
}

func fetchSlots(client *http.Client, baseURL string, doctor uuid.UUID, day string) ([]slotDTO, error) {
	url := fmt.Sprintf("%s/doctors/%s/slots?day=%s", baseURL, doctor, day)
	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("slots request: status %d", resp.StatusCode)
	}

	var slots []slotDTO
	if err := json.NewDecoder(resp.Body).Decode(&slots); err != nil {
		return nil, err
	}
	return slots, nil
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

func countOverlaps(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	var count int
	err := pool.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments a
		JOIN appointments b
		  ON a.doctor_id = b.doctor_id
		 AND a.id < b.id
		 AND a.start_time < b.end_time
		 AND b.start_time < a.end_time
		WHERE a.status IN ('confirmed', 'in_progress')
		  AND b.status IN ('confirmed', 'in_progress')
	`).Scan(&count)
	return count, err
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
