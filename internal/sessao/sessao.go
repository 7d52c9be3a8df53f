// Package sessao transporta o usuário autenticado pelo contexto da requisição.
package sessao

import (
	"context"
	"errors"
	"strings"
)

// ErrNaoAutenticado indica operação sem usuário autenticado.
var ErrNaoAutenticado = errors.New("usuário não autenticado")

type contextKey struct{}

// Ator identifica quem executa uma operação.
type Ator struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Nome     string `json:"nome"`
	Email    string `json:"email"`
	Papel    string `json:"papel"`
}

// NomeExibicao devolve o nome completo ou, na falta, o username.
func (a Ator) NomeExibicao() string {
	if strings.TrimSpace(a.Nome) != "" {
		return a.Nome
	}
	return a.Username
}

// NoContexto injeta o ator no contexto.
func NoContexto(ctx context.Context, a Ator) context.Context {
	return context.WithValue(ctx, contextKey{}, a)
}

// DoContexto recupera o ator, se houver.
func DoContexto(ctx context.Context) (Ator, bool) {
	a, ok := ctx.Value(contextKey{}).(Ator)
	return a, ok
}

// Exigir devolve o ator ou ErrNaoAutenticado.
func Exigir(ctx context.Context) (Ator, error) {
	a, ok := DoContexto(ctx)
	if !ok || strings.TrimSpace(a.ID) == "" {
		return Ator{}, ErrNaoAutenticado
	}
	return a, nil
}
