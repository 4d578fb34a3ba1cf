package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"go.uber.org/zap"

	"github.com/hackgods/student-eservices/internal/app"
	"github.com/hackgods/student-eservices/internal/config"
	"github.com/hackgods/student-eservices/internal/db"
	"github.com/hackgods/student-eservices/internal/identity"
	"github.com/hackgods/student-eservices/internal/logger"
	"github.com/hackgods/student-eservices/internal/slot"
)

type location struct {
	kind     slot.LocationType
	name     string
	room     string
	apptType string
	start    time.Duration
	end      time.Duration
	capacity int
}

var locations = []location{
	{slot.LocationMedicalClinic, "Clinic-A", "G-01", "MEDICAL", 9 * time.Hour, 17 * time.Hour, 1},
	{slot.LocationMedicalClinic, "Clinic-B", "G-02", "MEDICAL", 9 * time.Hour, 13 * time.Hour, 1},
	{slot.LocationInternationalOffice, "Office-1", "B-102", "", 9 * time.Hour, 16 * time.Hour, 2},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	zlog, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	students := envInt("SEED_STUDENTS", 500)
	days := envInt("SEED_DAYS", 14)
	zlog.Info("seed starting", zap.Int("students", students), zap.Int("days", days))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, "seed")
	if err != nil {
		zlog.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		zlog.Fatal("migrate", zap.Error(err))
	}

	st := app.PostgresStorage(pool)

	if err := seedStudents(ctx, st.Students, students, zlog); err != nil {
		zlog.Fatal("seed students", zap.Error(err))
	}

	slots := slot.NewPool(st.Slots, st.Tx, cfg.CampusTimezone, zlog.Named("slots"))
	if err := seedSlots(ctx, slots, days); err != nil {
		zlog.Fatal("seed slots", zap.Error(err))
	}

	zlog.Info("seed complete")
}

func seedStudents(ctx context.Context, reg identity.Registry, count int, log *zap.Logger) error {
	faker := gofakeit.New(0)

	for i := 1; i <= count; i++ {
		first, last := faker.FirstName(), faker.LastName()
		s := identity.StudentRecord{
			ID:       fmt.Sprintf("TP%06d", i),
			FullName: first + " " + last,
			Email:    strings.ToLower(fmt.Sprintf("%s.%s%d@mail.example.edu", first, last, i)),
		}
		if err := reg.Upsert(ctx, s); err != nil {
			return err
		}
		if i%100 == 0 {
			log.Info("students seeded", zap.Int("done", i), zap.Int("total", count))
		}
	}
	return nil
}

func seedSlots(ctx context.Context, pool *slot.Pool, days int) error {
	tomorrow := slot.Midnight(time.Now(), pool.Location()).AddDate(0, 0, 1)
	last := tomorrow.AddDate(0, 0, days-1)

	for _, l := range locations {
		_, err := pool.Generate(ctx, slot.GenerateRequest{
			LocationType:    l.kind,
			LocationName:    l.name,
			RoomNumber:      l.room,
			AppointmentType: l.apptType,
			FromDate:        tomorrow,
			ToDate:          last,
			DayStart:        l.start,
			DayEnd:          l.end,
			SlotDuration:    30 * time.Minute,
			Capacity:        l.capacity,
		})
		if err != nil {
			return fmt.Errorf("%s: %w", l.name, err)
		}
	}
	return nil
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
