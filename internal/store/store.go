// Package store guarda as coleções da tesouraria como documentos JSON por chave.
//
// Toda alteração passa por Update, que lê as chaves declaradas, aplica a função
// do chamador sobre um snapshot consistente e grava tudo ou nada.
package store

import (
	"context"
	"errors"
	"sort"
)

var (
	// ErrEstadoCorrompido indica valor persistido que não pôde ser interpretado.
	ErrEstadoCorrompido = errors.New("estado persistido corrompido")
	// ErrChaveNaoDeclarada é retornado quando Tx acessa chave fora do Update.
	ErrChaveNaoDeclarada = errors.New("chave não declarada na transação")
	// ErrConflito sinaliza que a escrita concorrente não convergiu.
	ErrConflito = errors.New("conflito de escrita concorrente")
)

// Tx expõe leitura e escrita das chaves declaradas em Update.
type Tx interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
}

// Store define o contrato comum aos backends.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Update(ctx context.Context, keys []string, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
	Close() error
}

// staging acumula leituras e escritas de uma transação antes do commit.
type staging struct {
	values map[string][]byte
	dirty  map[string][]byte
}

func newStaging(keys []string) *staging {
	st := &staging{
		values: make(map[string][]byte, len(keys)),
		dirty:  make(map[string][]byte),
	}
	for _, k := range keys {
		st.values[k] = nil
	}
	return st
}

func (s *staging) Get(key string) ([]byte, error) {
	if v, ok := s.dirty[key]; ok {
		return v, nil
	}
	v, ok := s.values[key]
	if !ok {
		return nil, ErrChaveNaoDeclarada
	}
	return v, nil
}

func (s *staging) Put(key string, value []byte) error {
	if _, ok := s.values[key]; !ok {
		return ErrChaveNaoDeclarada
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	s.dirty[key] = cp
	return nil
}

// normalizeKeys remove duplicadas e ordena, garantindo ordem estável de bloqueio.
func normalizeKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok || k == "" {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
