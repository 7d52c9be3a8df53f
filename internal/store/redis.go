package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const maxTentativasRedis = 5

// Redis persiste coleções como strings JSON usando transações otimistas.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis cria o backend com prefixo de chave.
func NewRedis(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) key(k string) string {
	return r.prefix + k
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// Update usa WATCH/MULTI; repete quando outra escrita invalida as chaves observadas.
func (r *Redis) Update(ctx context.Context, keys []string, fn func(tx Tx) error) error {
	keys = normalizeKeys(keys)
	if len(keys) == 0 {
		return fn(newStaging(nil))
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(k)
	}

	txf := func(rtx *redis.Tx) error {
		vals, err := rtx.MGet(ctx, full...).Result()
		if err != nil {
			return fmt.Errorf("mget: %w", err)
		}
		st := newStaging(keys)
		for i, k := range keys {
			if s, ok := vals[i].(string); ok {
				st.values[k] = []byte(s)
			}
		}
		if err := fn(st); err != nil {
			return err
		}
		if len(st.dirty) == 0 {
			return nil
		}
		_, err = rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for k, v := range st.dirty {
				pipe.Set(ctx, r.key(k), v, 0)
			}
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxTentativasRedis; attempt++ {
		err := r.client.Watch(ctx, txf, full...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrConflito
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
