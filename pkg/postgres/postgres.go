package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Config struct {
	URL            string `split_words:"true" required:"true"`
	MaxConns       int    `split_words:"true" default:"10"`
	ConnectTimeout int    `split_words:"true" default:"5"`
}

func (p *Config) New(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(p.URL)
	if err != nil {
		return nil, err
	}

	if p.MaxConns > 0 {
		cfg.MaxConns = int32(p.MaxConns)
	}
	cfg.ConnConfig.ConnectTimeout = time.Duration(p.ConnectTimeout) * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

func (p *Config) MustNew(ctx context.Context) *pgxpool.Pool {
	pool, err := p.New(ctx)
	if err != nil {
		panic(err)
	}

	return pool
}
