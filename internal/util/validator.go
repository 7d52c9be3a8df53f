package util

import (
	"errors"
	"net/mail"
	"strings"
	"time"
)

// ErrValidacao é a causa comum de toda falha de validação de entrada.
var ErrValidacao = errors.New("dados inválidos")

type validationError struct {
	msg string
}

func (e validationError) Error() string { return e.msg }

func (e validationError) Unwrap() error { return ErrValidacao }

// Invalido cria erro de validação com mensagem própria.
func Invalido(msg string) error {
	return validationError{msg: msg}
}

// ValidateEmail retorna erro para e-mails inválidos.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return Invalido("email obrigatório")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return Invalido("email inválido")
	}
	return nil
}

// ValidatePassword verifica requisitos mínimos de senha.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return Invalido("senha deve ter pelo menos 8 caracteres")
	}
	return nil
}

// RequireString garante string não vazia.
func RequireString(value, field string) error {
	if strings.TrimSpace(value) == "" {
		return Invalido(field + " obrigatório")
	}
	return nil
}

// FormatDate formata data no padrão dd/MM/yyyy.
func FormatDate(t time.Time) string {
	return t.Format("02/01/2006")
}

// MonthStart devolve o primeiro instante do mês de t, no fuso de t.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// SameMonth compara ano e mês.
func SameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}
