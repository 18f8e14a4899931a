package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/provider-scheduling-engine/internal/appointment"
	"github.com/hackgods/provider-scheduling-engine/internal/config"
)

func memoryConfig() config.Config {
	return config.Config{
		Env:           "test",
		LogLevel:      "debug",
		StorageDriver: config.StorageDriverMemory,
		LockDriver:    config.LockDriverLocal,
		LockWait:      time.Second,
		WorkOpenHour:  9,
		WorkCloseHour: 17,
		WorkDays:      []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		SlotMinutes:   15,
		WorkTimezone:  time.UTC,
	}
}

func TestOpen_MemoryAndLocal(t *testing.T) {
	log := zerolog.Nop()
	d, err := Open(context.Background(), memoryConfig(), log)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close(log)

	if d.Pool != nil || d.Redis != nil || d.Reminders != nil {
		t.Errorf("expected no external connections, got %+v", d)
	}
	if _, ok := d.Repo.(*appointment.MemoryRepository); !ok {
		t.Errorf("expected memory repository, got %T", d.Repo)
	}
	if d.Service == nil {
		t.Fatal("expected a service")
	}
}

func TestSeedDirectory(t *testing.T) {
	repo := appointment.NewMemoryRepository()
	ctx := context.Background()

	seeded, err := SeedDirectory(ctx, repo, 3, 5, zerolog.Nop())
	if err != nil {
		t.Fatalf("SeedDirectory: %v", err)
	}
	if len(seeded.Providers) != 3 || len(seeded.Patients) != 5 {
		t.Fatalf("unexpected counts %d providers %d patients", len(seeded.Providers), len(seeded.Patients))
	}

	for _, id := range seeded.Providers {
		p, err := repo.GetProviderByID(ctx, id)
		if err != nil {
			t.Fatalf("provider %s missing: %v", id, err)
		}
		if p.Specialty == nil || *p.Specialty == "" {
			t.Errorf("provider %s has no specialty", id)
		}
	}
	for _, id := range seeded.Patients {
		if _, err := repo.GetPatientByID(ctx, id); err != nil {
			t.Fatalf("patient %s missing: %v", id, err)
		}
	}
}

func TestNewLogger_Level(t *testing.T) {
	cfg := memoryConfig()
	cfg.LogLevel = "warn"
	if got := NewLogger(cfg, "test").GetLevel(); got != zerolog.WarnLevel {
		t.Errorf("expected warn level, got %s", got)
	}

	cfg.LogLevel = "nonsense"
	if got := NewLogger(cfg, "test").GetLevel(); got != zerolog.InfoLevel {
		t.Errorf("expected info fallback, got %s", got)
	}
}
