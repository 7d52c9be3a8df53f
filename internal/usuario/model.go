package usuario

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound             = errors.New("usuário não encontrado")
	ErrDuplicado            = errors.New("username ou email já cadastrado")
	ErrPapelInvalido        = errors.New("papel inválido")
	ErrPermissaoInvalida    = errors.New("permissão desconhecida")
	ErrSemPermissao         = errors.New("operação restrita a administradores")
	ErrAutoRemocao          = errors.New("não é possível remover o próprio usuário")
	ErrProtegido            = errors.New("administrador inicial não pode ser removido ou rebaixado")
	ErrCredenciaisInvalidas = errors.New("credenciais inválidas")
	ErrInativo              = errors.New("usuário inativo")
)

const (
	PapelUser                = "user"
	PapelAdmin               = "admin"
	PapelReitor              = "reitor"
	PapelDirectoraFinanceira = "directora_financeira"
	PapelTesoureira          = "tesoureira"
)

var validPapeis = map[string]struct{}{
	PapelUser:                {},
	PapelAdmin:               {},
	PapelReitor:              {},
	PapelDirectoraFinanceira: {},
	PapelTesoureira:          {},
}

// Usuario é o registro persistido na coleção usuarios.
type Usuario struct {
	ID                       string    `json:"id"`
	Username                 string    `json:"username"`
	NomeCompleto             string    `json:"fullName"`
	Email                    string    `json:"email"`
	Papel                    string    `json:"role"`
	SenhaHash                string    `json:"passwordHash"`
	Ativo                    bool      `json:"isActive"`
	ForcarTrocaSenha         bool      `json:"forcePasswordChange"`
	PermissoesPersonalizadas []string  `json:"customPermissions,omitempty"`
	Protegido                bool      `json:"protected,omitempty"`
	CriadoEm                 time.Time `json:"createdAt"`
}

// Publico é a visão do usuário exposta pela API (sem hash de senha).
type Publico struct {
	ID                       string    `json:"id"`
	Username                 string    `json:"username"`
	NomeCompleto             string    `json:"fullName"`
	Email                    string    `json:"email"`
	Papel                    string    `json:"role"`
	Ativo                    bool      `json:"isActive"`
	ForcarTrocaSenha         bool      `json:"forcePasswordChange"`
	PermissoesPersonalizadas []string  `json:"customPermissions,omitempty"`
	Protegido                bool      `json:"protected,omitempty"`
	Permissoes               []string  `json:"permissions"`
	CriadoEm                 time.Time `json:"createdAt"`
}

// Publico converte para a visão sem segredo.
func (u Usuario) Publico() Publico {
	return Publico{
		ID:                       u.ID,
		Username:                 u.Username,
		NomeCompleto:             u.NomeCompleto,
		Email:                    u.Email,
		Papel:                    u.Papel,
		Ativo:                    u.Ativo,
		ForcarTrocaSenha:         u.ForcarTrocaSenha,
		PermissoesPersonalizadas: u.PermissoesPersonalizadas,
		Protegido:                u.Protegido,
		Permissoes:               Permissoes(u),
		CriadoEm:                 u.CriadoEm,
	}
}

// NovoUsuario agrupa os dados de cadastro.
type NovoUsuario struct {
	Username                 string   `json:"username"`
	NomeCompleto             string   `json:"fullName"`
	Email                    string   `json:"email"`
	Papel                    string   `json:"role"`
	Senha                    string   `json:"password"`
	Ativo                    *bool    `json:"isActive"`
	ForcarTrocaSenha         bool     `json:"forcePasswordChange"`
	PermissoesPersonalizadas []string `json:"customPermissions"`
}

// Atualizacao contém apenas os campos informados.
type Atualizacao struct {
	NomeCompleto             *string   `json:"fullName"`
	Email                    *string   `json:"email"`
	Papel                    *string   `json:"role"`
	Ativo                    *bool     `json:"isActive"`
	ForcarTrocaSenha         *bool     `json:"forcePasswordChange"`
	PermissoesPersonalizadas *[]string `json:"customPermissions"`
}

// BootstrapAdmin descreve o administrador garantido na inicialização.
type BootstrapAdmin struct {
	Email     string
	Nome      string
	Username  string
	SenhaHash string
}

func NormalizePapel(p string) string {
	return strings.ToLower(strings.TrimSpace(p))
}

func IsValidPapel(p string) bool {
	_, ok := validPapeis[p]
	return ok
}

func normalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}
