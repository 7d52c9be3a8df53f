package notificacao

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound         = errors.New("notificação não encontrada")
	ErrTituloVazio      = errors.New("título obrigatório")
	ErrTipoInvalido     = errors.New("tipo de notificação inválido")
	ErrEmailObrigatorio = errors.New("email do fornecedor obrigatório")
	ErrNotifierAusente  = errors.New("notifier não configurado")
)

const (
	TipoAprovacao = "approval"
	TipoInfo      = "info"
	TipoAviso     = "warning"

	PrioridadeAlta   = "high"
	PrioridadeNormal = "normal"

	// AlvoTodos entrega a todos os papéis, tal como um alvo vazio.
	AlvoTodos = "all"
)

// Notificacao é um item do feed consumido pelo painel.
type Notificacao struct {
	ID         string    `json:"id"`
	Titulo     string    `json:"title"`
	Mensagem   string    `json:"message"`
	PapelAlvo  string    `json:"targetRole,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Lida       bool      `json:"read"`
	Prioridade string    `json:"priority"`
	Tipo       string    `json:"type"`
}

// Nova descreve uma notificação a publicar.
type Nova struct {
	Titulo    string `json:"title"`
	Mensagem  string `json:"message"`
	PapelAlvo string `json:"targetRole"`
	Tipo      string `json:"type"`
}

// Despachante publica notificações. Quem chama trata falhas como não fatais.
type Despachante interface {
	Enviar(ctx context.Context, n Nova) (*Notificacao, error)
}

// Contagem resume o feed visível para um papel.
type Contagem struct {
	NaoLidas       int  `json:"unread"`
	AltaPrioridade int  `json:"highPriority"`
	Urgente        bool `json:"hasHighPriority"`
}

// NotificacaoFornecedor regista um lembrete de pagamento enviado ao fornecedor.
type NotificacaoFornecedor struct {
	ID             string    `json:"id"`
	FornecedorID   string    `json:"fornecedorId"`
	FornecedorNome string    `json:"fornecedorNome"`
	PagamentoID    string    `json:"pagamentoId"`
	Referencia     string    `json:"referenciaPagamento"`
	Email          string    `json:"email"`
	Mensagem       string    `json:"mensagem"`
	EnviadoEm      time.Time `json:"dataEnvio"`
	EnviadoPor     string    `json:"enviadoPor"`
}

// PedidoFornecedor são os dados do lembrete; vazios assumem os do cadastro.
type PedidoFornecedor struct {
	FornecedorID string `json:"fornecedorId"`
	PagamentoID  string `json:"pagamentoId"`
	Email        string `json:"email"`
	Mensagem     string `json:"mensagem"`
}

// VisivelPara aplica a regra de alvo: vazio, "all" ou o próprio papel.
func (n Notificacao) VisivelPara(papel string) bool {
	return n.PapelAlvo == "" || n.PapelAlvo == AlvoTodos || n.PapelAlvo == papel
}

// Importante indica notificação de alta prioridade ou de aprovação.
func (n Notificacao) Importante() bool {
	return n.Prioridade == PrioridadeAlta || n.Tipo == TipoAprovacao
}

func tipoValido(t string) bool {
	return t == TipoAprovacao || t == TipoInfo || t == TipoAviso
}

// PrioridadeDoTipo devolve alta exatamente para aprovações.
func PrioridadeDoTipo(tipo string) string {
	if tipo == TipoAprovacao {
		return PrioridadeAlta
	}
	return PrioridadeNormal
}
