package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestRepetivel(t *testing.T) {
	casos := []struct {
		err      error
		esperado bool
	}{
		{&pgconn.PgError{Code: "40001"}, true},
		{fmt.Errorf("gravar: %w", &pgconn.PgError{Code: "40P01"}), true},
		{&pgconn.PgError{Code: "23505"}, false},
		{errors.New("conexão recusada"), false},
		{nil, false},
	}
	for _, c := range casos {
		if got := repetivel(c.err); got != c.esperado {
			t.Fatalf("expected %v for %v, got %v", c.esperado, c.err, got)
		}
	}
}
