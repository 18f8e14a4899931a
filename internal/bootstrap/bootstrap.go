package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/provider-scheduling-engine/internal/appointment"
	"github.com/hackgods/provider-scheduling-engine/internal/config"
	"github.com/hackgods/provider-scheduling-engine/internal/db"
	redisclient "github.com/hackgods/provider-scheduling-engine/internal/redis"
)

// NewLogger builds the process logger. Development gets the console writer.
func NewLogger(cfg config.Config, component string) zerolog.Logger {
	var out io.Writer = os.Stdout
	if cfg.IsDev() {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}

	return zerolog.New(out).Level(level).With().
		Timestamp().
		Str("service", component).
		Logger()
}

// Deps holds the connections and the service shared by the binaries.
type Deps struct {
	Pool      *pgxpool.Pool
	Redis     *redis.Client
	Repo      appointment.Repository
	Reminders *redisclient.ReminderQueue
	Service   *appointment.Service
}

// Open connects to the configured backends and builds the scheduling
// service. Redis is dialled when it is the lock driver; otherwise reminders
// are disabled.
func Open(ctx context.Context, cfg config.Config, log zerolog.Logger) (*Deps, error) {
	d := &Deps{}

	switch cfg.StorageDriver {
	case config.StorageDriverPostgres:
		pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, cfg.DBMaxConns)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("postgres connection error: %w", err)
		}
		d.Pool = pool
		d.Repo = appointment.NewPgRepository(pool)
		log.Info().Msg("connected to Postgres")
	default:
		d.Repo = appointment.NewMemoryRepository()
		log.Warn().Msg("using in-memory storage, data is lost on restart")
	}

	var locker appointment.ProviderLocker
	var opts []appointment.Option
	switch cfg.LockDriver {
	case config.LockDriverRedis:
		rdb, err := redisclient.NewRedisClient(ctx, redisclient.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			d.Close(log)
			return nil, fmt.Errorf("redis connection error: %w", err)
		}
		d.Redis = rdb
		d.Reminders = redisclient.NewReminderQueue(rdb)
		locker = redisclient.NewProviderLocker(rdb, cfg.LockTTL, cfg.LockWait)
		opts = append(opts, appointment.WithReminders(d.Reminders))
		log.Info().Str("addr", cfg.RedisAddr).Msg("connected to Redis")
	default:
		locker = appointment.NewLocalLocker(cfg.LockWait)
		log.Warn().Msg("using in-process provider locks, run a single instance only")
	}

	d.Service = appointment.NewService(d.Repo, locker, cfg.Settings(), log, opts...)
	return d, nil
}

func (d *Deps) Close(log zerolog.Logger) {
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			log.Error().Err(err).Msg("error closing redis")
		}
	}
	if d.Pool != nil {
		d.Pool.Close()
	}
}
