// Package workflow implementa o circuito de aprovação de pagamentos por nível
// hierárquico: tesoureira, directora financeira e reitor.
package workflow

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gestaofinanceira/tesouraria/internal/usuario"
)

var (
	ErrNotFound              = errors.New("workflow não encontrado")
	ErrTipoInvalido          = errors.New("tipo de aprovação inválido")
	ErrDecisaoInvalida       = errors.New("decisão inválida")
	ErrEstadoFinal           = errors.New("workflow já foi concluído")
	ErrNivelIncorreto        = errors.New("usuário não pode decidir neste nível")
	ErrNaoAprovado           = errors.New("workflow ainda não foi aprovado")
	ErrPagamentoJaConfirmado = errors.New("pagamento do workflow já foi confirmado")
	ErrWorkflowAtivo         = errors.New("pagamento já possui workflow em curso")
)

const (
	TipoOperacaoBancaria = "bank_operation"
	TipoFundoManeio      = "petty_cash"
	TipoOutro            = "other"

	NivelTesoureira          = "treasurer"
	NivelDirectoraFinanceira = "financial_director"
	NivelReitor              = "rector"

	StatusPendente          = "pending"
	StatusAguardandoProximo = "waiting_next_level"
	StatusAprovado          = "approved"
	StatusRejeitado         = "rejected"

	DecisaoAprovar  = "approve"
	DecisaoRejeitar = "reject"
)

// Workflow acompanha a aprovação de um pagamento.
type Workflow struct {
	ID                 string          `json:"id"`
	PagamentoID        string          `json:"paymentId"`
	FornecedorID       string          `json:"fornecedorId"`
	FornecedorNome     string          `json:"fornecedorNome"`
	Referencia         string          `json:"referencia"`
	Valor              decimal.Decimal `json:"valor"`
	Tipo               string          `json:"tipo"`
	Metodo             string          `json:"metodo"`
	Descricao          string          `json:"descricao"`
	DataCriacao        time.Time       `json:"dataCriacao"`
	DataVencimento     time.Time       `json:"dataVencimento"`
	CriadoPor          string          `json:"createdBy"`
	NivelAtual         string          `json:"currentLevel"`
	Status             string          `json:"status"`
	Passos             []Passo         `json:"steps"`
	NotificacoesAtivas bool            `json:"notificationsEnabled"`
	Documentos         []string        `json:"documentos,omitempty"`
	Confirmacao        *Confirmacao    `json:"confirmacao,omitempty"`
}

// Passo é uma decisão registada; nunca é alterado depois de criado.
type Passo struct {
	ID          string    `json:"id"`
	Nivel       string    `json:"level"`
	Estado      string    `json:"status"`
	AprovadoPor string    `json:"approvedBy"`
	AprovadoEm  time.Time `json:"approvedAt"`
	Comentario  string    `json:"comments,omitempty"`
}

// Confirmacao regista a escolha feita após a aprovação final.
type Confirmacao struct {
	MarcadoPago bool      `json:"marcadoPago"`
	Em          time.Time `json:"em"`
	Por         string    `json:"por"`
}

// Submissao pede a aprovação de um pagamento existente.
type Submissao struct {
	FornecedorID       string   `json:"fornecedorId"`
	PagamentoID        string   `json:"pagamentoId"`
	Tipo               string   `json:"tipo"`
	DescricaoExtra     string   `json:"descricaoAdicional"`
	NotificacoesAtivas bool     `json:"notificationsEnabled"`
	Documentos         []string `json:"documentos"`
}

// Resultado devolve o workflow decidido. ConfirmarPagamento indica que a
// aprovação final foi concedida e resta escolher se o pagamento fica pago.
type Resultado struct {
	Workflow           Workflow `json:"workflow"`
	ConfirmarPagamento bool     `json:"confirmarPagamento"`
}

type Filtro struct {
	Status      string
	Busca       string
	PagamentoID string
}

// Terminal indica workflow aprovado ou rejeitado.
func (w Workflow) Terminal() bool {
	return w.Status == StatusAprovado || w.Status == StatusRejeitado
}

func tipoValido(t string) bool {
	return t == TipoOperacaoBancaria || t == TipoFundoManeio || t == TipoOutro
}

// NivelInicial aplica a tabela de encaminhamento.
func NivelInicial(tipo string) string {
	if tipo == TipoFundoManeio {
		return NivelTesoureira
	}
	return NivelDirectoraFinanceira
}

// NivelDoPapel deriva o nível de aprovação do papel. Admin decide como
// directora financeira; os restantes papéis não aprovam.
func NivelDoPapel(papel string) string {
	switch papel {
	case usuario.PapelTesoureira:
		return NivelTesoureira
	case usuario.PapelDirectoraFinanceira, usuario.PapelAdmin:
		return NivelDirectoraFinanceira
	case usuario.PapelReitor:
		return NivelReitor
	}
	return ""
}

// PapelDoNivel é o papel notificado quando o workflow chega ao nível.
func PapelDoNivel(nivel string) string {
	switch nivel {
	case NivelTesoureira:
		return usuario.PapelTesoureira
	case NivelReitor:
		return usuario.PapelReitor
	}
	return usuario.PapelDirectoraFinanceira
}

// PodeDecidir exige o nível atual, salvo o reitor em operações bancárias.
func PodeDecidir(w Workflow, nivel string) bool {
	if nivel == "" || w.Terminal() {
		return false
	}
	if w.NivelAtual == nivel {
		return true
	}
	return nivel == NivelReitor && w.Tipo == TipoOperacaoBancaria
}

// proximo calcula status e nível depois da aprovação dada no nível.
func proximo(w Workflow, nivel string) (status, nivelAtual string) {
	switch nivel {
	case NivelTesoureira:
		if w.Tipo == TipoFundoManeio {
			return StatusAprovado, w.NivelAtual
		}
	case NivelDirectoraFinanceira:
		if w.Tipo == TipoOperacaoBancaria {
			return StatusAguardandoProximo, NivelReitor
		}
		return StatusAprovado, w.NivelAtual
	case NivelReitor:
		return StatusAprovado, w.NivelAtual
	}
	return StatusAguardandoProximo, w.NivelAtual
}
