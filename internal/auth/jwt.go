package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// AudienceTesouraria identifica tokens emitidos para a API da tesouraria.
	AudienceTesouraria = "tesouraria"
	emissor            = "tesouraria-api"
)

// ErrTokenInvalido cobre assinatura, expiração, audience e subject ausente.
var ErrTokenInvalido = errors.New("token inválido")

// Claims carrega o papel do usuário além das claims registradas.
type Claims struct {
	Papel    string `json:"papel"`
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// AccessToken é o JWT assinado e seus metadados.
type AccessToken struct {
	Token    string
	ID       string
	ExpiraEm time.Time
}

// JWTManager assina e valida tokens de acesso HS256.
type JWTManager struct {
	secret    []byte
	accessTTL time.Duration
	now       func() time.Time
}

func NewJWTManager(secret string, accessTTL time.Duration) *JWTManager {
	return &JWTManager{secret: []byte(secret), accessTTL: accessTTL, now: time.Now}
}

func (m *JWTManager) AccessTTL() time.Duration {
	return m.accessTTL
}

// Emitir assina um token curto para o usuário; o papel vai nas claims apenas
// para o cliente, as permissões são sempre relidas do store.
func (m *JWTManager) Emitir(usuarioID, username, papel string) (AccessToken, error) {
	agora := m.now().UTC()
	out := AccessToken{ID: uuid.NewString(), ExpiraEm: agora.Add(m.accessTTL)}

	claims := Claims{
		Papel:    papel,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    emissor,
			Subject:   usuarioID,
			Audience:  jwt.ClaimStrings{AudienceTesouraria},
			ExpiresAt: jwt.NewNumericDate(out.ExpiraEm),
			IssuedAt:  jwt.NewNumericDate(agora),
			ID:        out.ID,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return AccessToken{}, fmt.Errorf("assinar token: %w", err)
	}
	out.Token = signed
	return out, nil
}

// ParseAndValidate devolve ErrTokenInvalido para qualquer falha de validação.
func (m *JWTManager) ParseAndValidate(tokenString string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(AudienceTesouraria),
		jwt.WithIssuer(emissor),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, errors.Join(ErrTokenInvalido, err)
	}
	if claims.Subject == "" {
		return nil, ErrTokenInvalido
	}
	return &claims, nil
}
