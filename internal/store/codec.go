package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// Decode interpreta o valor bruto de uma chave. Valor ausente devolve o zero de T.
func Decode[T any](key string, raw []byte) (T, error) {
	var out T
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("%w: chave %s: %v", ErrEstadoCorrompido, key, err)
	}
	return out, nil
}

// Load lê e decodifica uma chave fora de transação.
func Load[T any](ctx context.Context, s Store, key string) (T, error) {
	raw, err := s.Get(ctx, key)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("ler %s: %w", key, err)
	}
	return Decode[T](key, raw)
}

// Read decodifica uma chave dentro de Update.
func Read[T any](tx Tx, key string) (T, error) {
	raw, err := tx.Get(key)
	if err != nil {
		var zero T
		return zero, err
	}
	return Decode[T](key, raw)
}

// Write codifica e agenda a gravação de uma chave dentro de Update.
func Write[T any](tx Tx, key string, value T) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("codificar %s: %w", key, err)
	}
	return tx.Put(key, raw)
}

// Modify é o atalho para ler, alterar e gravar uma única coleção.
func Modify[T any](ctx context.Context, s Store, key string, fn func(cur T) (T, error)) error {
	return s.Update(ctx, []string{key}, func(tx Tx) error {
		cur, err := Read[T](tx, key)
		if err != nil {
			return err
		}
		next, err := fn(cur)
		if err != nil {
			return err
		}
		return Write(tx, key, next)
	})
}
