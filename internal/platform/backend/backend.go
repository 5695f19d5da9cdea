// Package backend chooses the storage the service runs on. The choice is
// made once at startup: PostgreSQL when a connection string is configured
// and reachable, otherwise process memory.
package backend

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/patient360/portal/internal/domain/patient"
	"github.com/patient360/portal/internal/platform/auth"
	"github.com/patient360/portal/internal/platform/db"
	"github.com/patient360/portal/internal/platform/db/migrations"
)

// Mode identifies the active patient storage.
type Mode string

const (
	ModeDatabase Mode = "database"
	ModeMemory   Mode = "memory"
)

const defaultConnectTimeout = 5 * time.Second

// Options carries the configuration Select reads.
type Options struct {
	DatabaseURL    string
	MaxConns       int32
	MinConns       int32
	ConnectTimeout time.Duration
	AutoMigrate    bool
	SeedDemoData   bool

	RedisURL             string
	SessionSweepInterval time.Duration
}

// Handle is the selected backend. Exactly one patient repository is bound;
// Pool is nil in memory mode.
type Handle struct {
	Mode           Mode
	Patients       patient.Repository
	Sessions       auth.SessionStore
	SessionBackend string
	Pool           *pgxpool.Pool

	closers []func() error
}

// DBConnected reports whether patient data lives in PostgreSQL.
func (h *Handle) DBConnected() bool {
	return h.Mode == ModeDatabase && h.Pool != nil
}

// Close releases the session store and the pool, in that order.
func (h *Handle) Close() error {
	var errs []error
	for i := len(h.closers) - 1; i >= 0; i-- {
		if err := h.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	h.closers = nil
	return errors.Join(errs...)
}

// Select never fails. Connection, migration or Redis errors are logged at
// warn level and the next option is used; nothing is retried.
func Select(ctx context.Context, opts Options, logger zerolog.Logger) *Handle {
	log := logger.With().Str("component", "backend").Logger()
	h := &Handle{Mode: ModeMemory}

	if opts.DatabaseURL != "" {
		if pool, err := openDatabase(ctx, opts, log); err != nil {
			log.Warn().Err(err).Msg("database unavailable; falling back to in-memory storage")
		} else {
			h.Mode = ModeDatabase
			h.Pool = pool
			h.closers = append(h.closers, func() error { pool.Close(); return nil })
		}
	}

	if h.Pool != nil {
		h.Patients = patient.NewPGRepo(h.Pool)
	} else {
		h.Patients = patient.NewMemoryRepo()
	}

	if opts.SeedDemoData {
		n, err := patient.SeedDemoData(ctx, h.Patients)
		if err != nil {
			log.Warn().Err(err).Msg("failed to seed demo patients")
		} else if n > 0 {
			log.Info().Int("count", n).Msg("seeded demo patients")
		}
	}

	h.selectSessions(ctx, opts, log)

	log.Info().
		Str("mode", string(h.Mode)).
		Str("sessions", h.SessionBackend).
		Msg("storage backend selected")
	return h
}

func openDatabase(ctx context.Context, opts Options, log zerolog.Logger) (*pgxpool.Pool, error) {
	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	pool, err := db.NewPool(ctx, opts.DatabaseURL, db.PoolOptions{
		MaxConns:       opts.MaxConns,
		MinConns:       opts.MinConns,
		ConnectTimeout: timeout,
	})
	if err != nil {
		return nil, err
	}

	if opts.AutoMigrate {
		n, err := db.NewMigrator(pool, migrations.FS, ".").Up(ctx)
		if err != nil {
			pool.Close()
			return nil, err
		}
		if n > 0 {
			log.Info().Int("applied", n).Msg("database migrations applied")
		}
	}
	return pool, nil
}

func (h *Handle) selectSessions(ctx context.Context, opts Options, log zerolog.Logger) {
	if opts.RedisURL != "" {
		timeout := opts.ConnectTimeout
		if timeout <= 0 {
			timeout = defaultConnectTimeout
		}
		rctx, cancel := context.WithTimeout(ctx, timeout)
		store, err := auth.NewRedisSessionStore(rctx, opts.RedisURL)
		cancel()
		if err == nil {
			h.useSessions(store, "redis")
			return
		}
		log.Warn().Err(err).Msg("redis unavailable; sessions fall back to the next store")
	}

	if h.Pool != nil {
		store, err := auth.NewSQLSessionStore(db.SQLDB(h.Pool))
		if err == nil {
			if n, err := store.DeleteExpired(ctx, time.Now()); err != nil {
				log.Warn().Err(err).Msg("failed to purge expired sessions")
			} else if n > 0 {
				log.Info().Int64("count", n).Msg("purged expired sessions")
			}
			h.useSessions(store, "database")
			return
		}
		log.Warn().Err(err).Msg("database session store unavailable")
	}

	h.useSessions(auth.NewMemorySessionStore(opts.SessionSweepInterval), "memory")
}

func (h *Handle) useSessions(store auth.SessionStore, name string) {
	h.Sessions = store
	h.SessionBackend = name
	h.closers = append(h.closers, store.Close)
}
