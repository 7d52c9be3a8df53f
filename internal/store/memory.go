package store

import (
	"context"
	"sync"
)

// Memory mantém as coleções em memória. Usado em desenvolvimento e testes.
type Memory struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMemory cria store vazio.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, nil
}

func (m *Memory) Update(ctx context.Context, keys []string, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	keys = normalizeKeys(keys)

	m.mu.Lock()
	defer m.mu.Unlock()

	st := newStaging(keys)
	for _, k := range keys {
		st.values[k] = m.data[k]
	}
	if err := fn(st); err != nil {
		return err
	}
	for k, v := range st.dirty {
		m.data[k] = v
	}
	return nil
}

// Set grava valor bruto diretamente; útil para semear estado.
func (m *Memory) Set(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
