package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gestaofinanceira/tesouraria/internal/db"
)

const schemaColecoes = `
CREATE TABLE IF NOT EXISTS colecoes (
	chave TEXT PRIMARY KEY,
	valor JSONB NOT NULL,
	atualizado_em TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Postgres persiste cada coleção como uma linha JSONB.
type Postgres struct {
	pool    *pgxpool.Pool
	proprio bool
}

// NewPostgres cria o backend sobre um pool existente.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// EnsureSchema cria a tabela de coleções quando ausente.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schemaColecoes); err != nil {
		return fmt.Errorf("criar tabela colecoes: %w", err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	var raw []byte
	err := p.pool.QueryRow(ctx, `SELECT valor FROM colecoes WHERE chave = $1`, key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// Update serializa escritores por chave com advisory locks de transação.
func (p *Postgres) Update(ctx context.Context, keys []string, fn func(tx Tx) error) error {
	keys = normalizeKeys(keys)
	return db.WithTx(ctx, p.pool, func(ctx context.Context, tx pgx.Tx) error {
		for _, k := range keys {
			if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, k); err != nil {
				return fmt.Errorf("lock %s: %w", k, err)
			}
		}

		st := newStaging(keys)
		for _, k := range keys {
			var raw []byte
			err := tx.QueryRow(ctx, `SELECT valor FROM colecoes WHERE chave = $1`, k).Scan(&raw)
			if err != nil && !errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("ler %s: %w", k, err)
			}
			st.values[k] = raw
		}

		if err := fn(st); err != nil {
			return err
		}

		for k, v := range st.dirty {
			_, err := tx.Exec(ctx, `
				INSERT INTO colecoes (chave, valor, atualizado_em)
				VALUES ($1, $2::jsonb, now())
				ON CONFLICT (chave) DO UPDATE SET valor = EXCLUDED.valor, atualizado_em = now()`,
				k, string(v))
			if err != nil {
				return fmt.Errorf("gravar %s: %w", k, err)
			}
		}
		return nil
	})
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close só encerra o pool aberto por Open; um pool recebido de fora é do chamador.
func (p *Postgres) Close() error {
	if p.proprio {
		p.pool.Close()
	}
	return nil
}
