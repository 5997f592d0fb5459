// Package server wires the reference records server: PostgreSQL storage,
// redis idempotency keys and the gRPC endpoint.
package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/vaxsync/internal/logging"
	"github.com/dmitrijs2005/vaxsync/internal/server/config"
	gs "github.com/dmitrijs2005/vaxsync/internal/server/grpc"
	"github.com/dmitrijs2005/vaxsync/internal/server/idempotency"
	"github.com/dmitrijs2005/vaxsync/internal/server/models"
	"github.com/dmitrijs2005/vaxsync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/vaxsync/internal/server/services"
	"github.com/dmitrijs2005/vaxsync/internal/timex"
	"github.com/go-redis/redis/v8"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	manager repomanager.RepositoryManager
	redis   *redis.Client
	keys    *idempotency.RedisStore
	records *services.RecordService
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.New(c.LogBackend, c.LogLevel, "json", "vaxsync-server")
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	db, err := repomanager.OpenDatabase(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rc := idempotency.NewRedisClient(c.RedisAddr, c.RedisDB)
	keys := idempotency.NewRedisStore(rc, c.IdempotencyTTL)
	m := repomanager.NewPostgresRepositoryManager()

	return &App{
		config:  c,
		logger:  logger,
		db:      db,
		manager: m,
		redis:   rc,
		keys:    keys,
		records: services.NewRecordService(db, m, keys, timex.RealClock{}, logger),
	}, nil
}

// Migrate brings the schema up to date.
func (app *App) Migrate(ctx context.Context) error {
	if err := app.manager.RunMigrations(ctx, app.db); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}
	app.logger.Info(ctx, "Migrations applied")
	return nil
}

// Run migrates and serves gRPC until ctx is done.
func (app *App) Run(ctx context.Context) error {
	app.logger.Info(ctx, "Starting app...")

	if err := app.Migrate(ctx); err != nil {
		return err
	}

	if err := app.keys.Ping(ctx); err != nil {
		// the database still rejects duplicate messages
		app.logger.Warn(ctx, "redis unavailable, idempotency falls back to the database", "error", err)
	}

	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.records, app.config.SecretKey)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		return err
	}

	app.logger.Info(ctx, "Stopped")
	return nil
}

// SeedFile is the JSON layout accepted by Seed.
type SeedFile struct {
	Guardians []map[string]json.RawMessage `json:"guardians"`
	Patients  []map[string]json.RawMessage `json:"patients"`
	FAQs      []map[string]json.RawMessage `json:"faqs"`
}

// Seed loads entities from r. Guardians go first so patient rows can
// reference them.
func (app *App) Seed(ctx context.Context, r io.Reader) (map[models.Collection]int, error) {
	var f SeedFile
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	return seed(ctx, app.records, f)
}

type seeder interface {
	Seed(ctx context.Context, c models.Collection, bodies []map[string]json.RawMessage) (int, error)
}

func seed(ctx context.Context, s seeder, f SeedFile) (map[models.Collection]int, error) {
	counts := map[models.Collection]int{}
	for _, batch := range []struct {
		c      models.Collection
		bodies []map[string]json.RawMessage
	}{
		{models.CollectionGuardians, f.Guardians},
		{models.CollectionPatients, f.Patients},
		{models.CollectionFAQs, f.FAQs},
	} {
		if len(batch.bodies) == 0 {
			continue
		}
		n, err := s.Seed(ctx, batch.c, batch.bodies)
		if err != nil {
			return counts, err
		}
		counts[batch.c] = n
	}
	return counts, nil
}

func (app *App) Close() error {
	return errors.Join(app.redis.Close(), app.db.Close())
}
