package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"time"

	"github.com/gestaofinanceira/tesouraria/internal/store"
	"github.com/gestaofinanceira/tesouraria/internal/util"
)

var (
	// ErrInvalidRefresh é retornado quando o token de refresh é inválido ou expirado.
	ErrInvalidRefresh = errors.New("refresh token inválido")
)

// GenerateRefreshToken cria token aleatório seguro e seu hash persistível.
func GenerateRefreshToken() (raw string, hashed string, err error) {
	buf := make([]byte, 32)
	if _, err = rand.Read(buf); err != nil {
		return "", "", err
	}

	raw = base64.RawURLEncoding.EncodeToString(buf)
	hashed = HashRefreshToken(raw)
	return raw, hashed, nil
}

// HashRefreshToken produz hash SHA-256 base64.
func HashRefreshToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// RefreshRecord é o estado guardado por token, indexado pelo hash.
type RefreshRecord struct {
	UsuarioID string    `json:"usuarioId"`
	ExpiraEm  time.Time `json:"expiraEm"`
}

// RefreshManager emite, rotaciona e revoga tokens de refresh na coleção refreshTokens.
type RefreshManager struct {
	store store.Store
	ttl   time.Duration
	clock util.Clock
}

// NewRefreshManager cria o gerenciador com TTL configurado.
func NewRefreshManager(s store.Store, ttl time.Duration, clock util.Clock) *RefreshManager {
	return &RefreshManager{store: s, ttl: ttl, clock: clock}
}

// Emitir cria novo token de refresh para o usuário.
func (m *RefreshManager) Emitir(ctx context.Context, usuarioID string) (string, error) {
	raw, hashed, err := GenerateRefreshToken()
	if err != nil {
		return "", err
	}
	now := m.clock.Now()
	err = store.Modify(ctx, m.store, store.KeyRefreshTokens, func(cur map[string]RefreshRecord) (map[string]RefreshRecord, error) {
		cur = m.prune(cur, now)
		cur[hashed] = RefreshRecord{UsuarioID: usuarioID, ExpiraEm: now.Add(m.ttl)}
		return cur, nil
	})
	if err != nil {
		return "", err
	}
	return raw, nil
}

// Rotacionar invalida o token atual e devolve o usuário e um novo token.
func (m *RefreshManager) Rotacionar(ctx context.Context, raw string) (string, string, error) {
	novoRaw, novoHash, err := GenerateRefreshToken()
	if err != nil {
		return "", "", err
	}
	hashed := HashRefreshToken(raw)
	now := m.clock.Now()

	var usuarioID string
	err = store.Modify(ctx, m.store, store.KeyRefreshTokens, func(cur map[string]RefreshRecord) (map[string]RefreshRecord, error) {
		cur = m.prune(cur, now)
		rec, ok := cur[hashed]
		if !ok {
			return nil, ErrInvalidRefresh
		}
		delete(cur, hashed)
		usuarioID = rec.UsuarioID
		cur[novoHash] = RefreshRecord{UsuarioID: rec.UsuarioID, ExpiraEm: now.Add(m.ttl)}
		return cur, nil
	})
	if err != nil {
		return "", "", err
	}
	return usuarioID, novoRaw, nil
}

// Revogar remove o token; token desconhecido não é erro.
func (m *RefreshManager) Revogar(ctx context.Context, raw string) error {
	hashed := HashRefreshToken(raw)
	return store.Modify(ctx, m.store, store.KeyRefreshTokens, func(cur map[string]RefreshRecord) (map[string]RefreshRecord, error) {
		cur = m.prune(cur, m.clock.Now())
		delete(cur, hashed)
		return cur, nil
	})
}

func (m *RefreshManager) prune(cur map[string]RefreshRecord, now time.Time) map[string]RefreshRecord {
	if cur == nil {
		return make(map[string]RefreshRecord)
	}
	for k, rec := range cur {
		if !rec.ExpiraEm.After(now) {
			delete(cur, k)
		}
	}
	return cur
}
