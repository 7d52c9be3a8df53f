package util

import (
	"time"

	"github.com/google/uuid"
)

// NewID gera identificador aleatório (UUID v4).
func NewID() string {
	return uuid.NewString()
}

// Clock devolve a hora atual; substituível em testes.
type Clock func() time.Time

// Now usa o relógio informado ou time.Now.
func (c Clock) Now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}
