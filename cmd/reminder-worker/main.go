package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/provider-scheduling-engine/internal/appointment"
	"github.com/hackgods/provider-scheduling-engine/internal/bootstrap"
	"github.com/hackgods/provider-scheduling-engine/internal/config"
	redisclient "github.com/hackgods/provider-scheduling-engine/internal/redis"
)

const reminderBatch = 100

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("config load error")
	}

	logger := bootstrap.NewLogger(cfg, "reminder-worker")
	logger.Info().
		Str("env", cfg.Env).
		Dur("interval", cfg.WorkerInterval).
		Dur("no_show_grace", cfg.NoShowGrace).
		Msg("reminder-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := bootstrap.Open(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}
	defer deps.Close(logger)

	if deps.Reminders == nil {
		logger.Warn().Msg("no reminder queue configured, only no-shows will be swept")
	}

	w := &worker{svc: deps.Service, queue: deps.Reminders, log: logger}

	// Run once at startup
	w.runOnce(rootCtx)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info().Msg("shutdown signal received, stopping reminder worker")
			return
		case <-ticker.C:
			w.runOnce(rootCtx)
		}
	}
}

type worker struct {
	svc   *appointment.Service
	queue *redisclient.ReminderQueue
	log   zerolog.Logger
}

func (w *worker) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	sent := w.dispatchReminders(runCtx)

	marked, err := w.svc.MarkNoShows(runCtx)
	if err != nil {
		w.log.Error().Err(err).Msg("no-show sweep failed")
	}

	w.log.Info().
		Int("reminders", sent).
		Int("no_shows", marked).
		Dur("took", time.Since(start)).
		Msg("worker run complete")
}

// dispatchReminders drains due reminders in batches until none are left.
func (w *worker) dispatchReminders(ctx context.Context) int {
	if w.queue == nil {
		return 0
	}

	sent := 0
	for {
		ids, err := w.queue.PopDue(ctx, time.Now(), reminderBatch)
		if err != nil {
			w.log.Error().Err(err).Msg("failed to pop due reminders")
			return sent
		}

		for _, id := range ids {
			ok, err := w.svc.ProcessReminder(ctx, id)
			switch {
			case err != nil:
				w.log.Warn().Err(err).Str("appointment_id", id.String()).Msg("reminder dropped")
			case ok:
				sent++
			default:
				w.log.Debug().Str("appointment_id", id.String()).Msg("reminder skipped for closed appointment")
			}
		}

		if len(ids) < reminderBatch {
			return sent
		}
	}
}
