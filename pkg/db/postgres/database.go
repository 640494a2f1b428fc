package postgres

import (
	"context"

	kdb "github.com/eosc4cancer/cbiobridge/pkg/db"
	kpgjobs "github.com/eosc4cancer/cbiobridge/pkg/db/postgres/jobs"
	kpgschema "github.com/eosc4cancer/cbiobridge/pkg/db/postgres/schema"
	xe "github.com/eosc4cancer/cbiobridge/pkg/errors"
	"github.com/jackc/pgx/v4/pgxpool"
)

type bridgeDBPostgres struct {
	pool *pgxpool.Pool
	jobs kdb.ImportJobInterface
}

type Config struct {
	// create tables on connect
	EnsureSchema bool
}

func DefaultConfig() Config {
	return Config{EnsureSchema: true}
}

type Option func(*Config) *Config

func WithoutSchemaSetup() Option {
	return func(c *Config) *Config {
		c.EnsureSchema = false
		return c
	}
}

func New(ctx context.Context, url string, options ...Option) (kdb.BridgeDatabase, error) {
	c := DefaultConfig()
	for _, option := range options {
		c = *option(&c)
	}

	pool, err := pgxpool.Connect(ctx, url)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	if c.EnsureSchema {
		if err := kpgschema.Ensure(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
	}

	return &bridgeDBPostgres{
		pool: pool,
		jobs: kpgjobs.New(pool),
	}, nil
}

func (b *bridgeDBPostgres) ImportJobs() kdb.ImportJobInterface {
	return b.jobs
}

func (b *bridgeDBPostgres) Close() error {
	b.pool.Close()
	return nil
}
