package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/gestaofinanceira/tesouraria/internal/config"
	"github.com/gestaofinanceira/tesouraria/internal/db"
)

// Open cria o backend configurado em STORE_BACKEND. Close libera as conexões abertas aqui.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.StoreBackend {
	case config.StorePostgres:
		pool, err := db.NewPool(ctx, cfg.DBDSN)
		if err != nil {
			return nil, fmt.Errorf("db: %w", err)
		}
		pg := &Postgres{pool: pool, proprio: true}
		if err := pg.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return pg, nil
	case config.StoreRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis parse: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		return NewRedis(client, cfg.RedisPrefix), nil
	case config.StoreMemory, "":
		return NewMemory(), nil
	}
	return nil, fmt.Errorf("backend %q não suportado", cfg.StoreBackend)
}
