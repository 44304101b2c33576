package cli

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"trivia-quiz-service/internal/app"
	"trivia-quiz-service/internal/config"
	"trivia-quiz-service/internal/domain"
	"trivia-quiz-service/internal/infra/file"
	"trivia-quiz-service/internal/infra/memory"
	"trivia-quiz-service/internal/infra/postgres"
	redisstore "trivia-quiz-service/internal/infra/redis"
)

// backends holds the connections a process opened from its config.
type backends struct {
	redis *redis.Client
	pool  *pgxpool.Pool
	db    *bun.DB
}

func openBackends(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (*backends, error) {
	b := &backends{}
	if cfg.Redis.Addr != "" {
		b.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := b.redis.Ping(ctx).Err(); err != nil {
			b.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		log.WithField("addr", cfg.Redis.Addr).Info("connected to redis")
	}
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("postgres: %w", err)
		}
		b.pool = pool
		b.db = openBunDB(cfg.Postgres.URL)
		log.Info("connected to postgres")
	}
	return b, nil
}

func openBunDB(url string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(url)))
	return bun.NewDB(sqldb, pgdialect.New())
}

func (b *backends) Close() {
	if b.redis != nil {
		_ = b.redis.Close()
	}
	if b.pool != nil {
		b.pool.Close()
	}
	if b.db != nil {
		_ = b.db.Close()
	}
}

// stores picks the snapshot and user stores for the configured driver. An
// empty driver prefers postgres, then redis, then memory.
func (b *backends) stores(cfg config.Config) (snapshots, users app.KVStore, err error) {
	driver := cfg.Storage.Driver
	if driver == "" {
		switch {
		case b.pool != nil:
			driver = "postgres"
		case b.redis != nil:
			driver = "redis"
		default:
			driver = "memory"
		}
	}

	switch driver {
	case "memory":
		store := memory.NewKVStore()
		return store, store, nil
	case "file":
		path := cfg.Storage.Path
		if path == "" {
			path = defaultStorePath()
		}
		store, err := file.NewKVStore(path)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	case "redis":
		if b.redis == nil {
			return nil, nil, fmt.Errorf("storage driver redis needs redis.addr")
		}
		ttl := config.TTLDuration(cfg.Redis.TTL, 30*time.Minute)
		return redisstore.NewKVStore(b.redis, ttl), redisstore.NewKVStore(b.redis, 0), nil
	case "postgres":
		if b.pool == nil {
			return nil, nil, fmt.Errorf("storage driver postgres needs postgres.url")
		}
		return postgres.NewKVStore(b.pool, postgres.SnapshotsTable), postgres.NewKVStore(b.pool, postgres.UsersTable), nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}

type resultStore interface {
	app.ResultRecorder
	Recent(ctx context.Context, userID string, limit int) ([]domain.RecordedResult, error)
}

// results records finished quizzes in postgres when available.
func (b *backends) results() resultStore {
	if b.db != nil {
		return postgres.NewResultStore(b.db)
	}
	return memory.NewResultStore()
}
