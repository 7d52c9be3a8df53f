package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gestaofinanceira/tesouraria/internal/store"
)

func TestHashAndVerify(t *testing.T) {
	hash, err := Hash("segredo-forte")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	ok, err := Verify("segredo-forte", hash)
	if err != nil || !ok {
		t.Fatalf("expected match, got ok=%v err=%v", ok, err)
	}
	ok, _ = Verify("outra", hash)
	if ok {
		t.Fatalf("expected mismatch")
	}
}

func TestJWTRoundTrip(t *testing.T) {
	m := NewJWTManager("0123456789abcdef0123456789abcdef", time.Minute)
	tok, err := m.Emitir("u1", "ana", "tesoureira")
	if err != nil {
		t.Fatalf("emitir: %v", err)
	}
	if tok.ID == "" || tok.Token == "" {
		t.Fatalf("expected token and jti, got %+v", tok)
	}
	claims, err := m.ParseAndValidate(tok.Token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "u1" || claims.Username != "ana" || claims.Papel != "tesoureira" {
		t.Fatalf("unexpected claims %+v", claims)
	}

	other := NewJWTManager("ffffffffffffffffffffffffffffffff", time.Minute)
	if _, err := other.ParseAndValidate(tok.Token); !errors.Is(err, ErrTokenInvalido) {
		t.Fatalf("expected ErrTokenInvalido, got %v", err)
	}
}

func TestJWTExpirado(t *testing.T) {
	agora := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	m := NewJWTManager("0123456789abcdef0123456789abcdef", time.Minute)
	m.now = func() time.Time { return agora }
	tok, err := m.Emitir("u1", "ana", "tesoureira")
	if err != nil {
		t.Fatalf("emitir: %v", err)
	}
	agora = agora.Add(2 * time.Minute)
	if _, err := m.ParseAndValidate(tok.Token); !errors.Is(err, ErrTokenInvalido) {
		t.Fatalf("expected expired token to fail, got %v", err)
	}
}

func TestRefreshRotation(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	m := NewRefreshManager(store.NewMemory(), time.Hour, func() time.Time { return now })

	raw, err := m.Emitir(ctx, "u1")
	if err != nil {
		t.Fatalf("emitir: %v", err)
	}

	uid, novo, err := m.Rotacionar(ctx, raw)
	if err != nil || uid != "u1" || novo == "" {
		t.Fatalf("expected rotation, got uid=%s err=%v", uid, err)
	}

	if _, _, err := m.Rotacionar(ctx, raw); !errors.Is(err, ErrInvalidRefresh) {
		t.Fatalf("expected old token rejected, got %v", err)
	}

	if err := m.Revogar(ctx, novo); err != nil {
		t.Fatalf("revogar: %v", err)
	}
	if _, _, err := m.Rotacionar(ctx, novo); !errors.Is(err, ErrInvalidRefresh) {
		t.Fatalf("expected revoked token rejected, got %v", err)
	}
}

func TestRefreshExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	m := NewRefreshManager(store.NewMemory(), time.Hour, func() time.Time { return now })

	raw, _ := m.Emitir(ctx, "u1")
	now = now.Add(2 * time.Hour)
	if _, _, err := m.Rotacionar(ctx, raw); !errors.Is(err, ErrInvalidRefresh) {
		t.Fatalf("expected expired token rejected, got %v", err)
	}
}
