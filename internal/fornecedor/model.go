package fornecedor

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gestaofinanceira/tesouraria/internal/util"
)

var (
	ErrNotFound                = errors.New("fornecedor não encontrado")
	ErrPagamentoNotFound       = errors.New("pagamento não encontrado")
	ErrEstadoInvalido          = errors.New("estado de pagamento inválido")
	ErrMetodoInvalido          = errors.New("método de pagamento inválido")
	ErrTipoInvalido            = errors.New("tipo de pagamento inválido")
	ErrDocumentoInvalido       = errors.New("documento requerido inválido")
	ErrValorInvalido           = errors.New("valor deve ser maior que zero")
	ErrMesmoFornecedor         = errors.New("origem e destino são o mesmo fornecedor")
	ErrJaPago                  = errors.New("pagamento já está pago")
	ErrAprovacaoNecessaria     = errors.New("pagamento requer aprovação antes de ser marcado como pago")
	ErrFornecedorDuplicado     = errors.New("já existe fornecedor com este nome")
	ErrFornecedorComPagamentos = errors.New("fornecedor possui pagamentos")
)

const (
	EstadoPendente  = "pendente"
	EstadoPago      = "pago"
	EstadoAtrasado  = "atrasado"
	EstadoCancelado = "cancelado"

	MetodoTransferencia = "transferência"
	MetodoCheque        = "cheque"
	MetodoDebitoDireto  = "débito direto"
	MetodoFundoManeio   = "fundo de maneio"
	MetodoOutro         = "outro"

	TipoFatura  = "fatura"
	TipoCotacao = "cotacao"

	DocumentoFactura = "factura"
	DocumentoVD      = "vd"
	DocumentoNenhum  = "nenhum"

	AcaoCriar      = "create"
	AcaoAtualizar  = "update"
	AcaoRemover    = "delete"
	AcaoTransferir = "transferred"
)

// LimiteAprovacao é o valor acima do qual o pagamento exige aprovação.
var LimiteAprovacao = decimal.NewFromInt(10000)

var (
	validEstados    = map[string]struct{}{EstadoPendente: {}, EstadoPago: {}, EstadoAtrasado: {}, EstadoCancelado: {}}
	validMetodos    = map[string]struct{}{MetodoTransferencia: {}, MetodoCheque: {}, MetodoDebitoDireto: {}, MetodoFundoManeio: {}, MetodoOutro: {}}
	validTipos      = map[string]struct{}{TipoFatura: {}, TipoCotacao: {}}
	validDocumentos = map[string]struct{}{DocumentoFactura: {}, DocumentoVD: {}, DocumentoNenhum: {}}
)

// Fornecedor agrupa os pagamentos devidos a um credor.
type Fornecedor struct {
	ID         string      `json:"id"`
	Nome       string      `json:"nome"`
	Email      string      `json:"email,omitempty"`
	Pagamentos []Pagamento `json:"pagamentos"`
}

// Pagamento é uma obrigação a pagar, com histórico próprio de alterações.
type Pagamento struct {
	ID                  string             `json:"id"`
	Referencia          string             `json:"referencia"`
	Valor               decimal.Decimal    `json:"valor"`
	DataVencimento      time.Time          `json:"dataVencimento"`
	DataPagamento       *time.Time         `json:"dataPagamento"`
	Estado              string             `json:"estado"`
	Metodo              string             `json:"metodo"`
	Departamento        string             `json:"departamento"`
	Observacoes         string             `json:"observacoes"`
	Descricao           string             `json:"descricao"`
	Tipo                string             `json:"tipo"`
	Reconciliado        bool               `json:"reconciliado,omitempty"`
	TransacaoBancariaID string             `json:"transacaoBancariaId,omitempty"`
	FacturaRecebida     *bool              `json:"facturaRecebida,omitempty"`
	ReciboRecebido      *bool              `json:"reciboRecebido,omitempty"`
	VDRecebido          *bool              `json:"vdRecebido,omitempty"`
	LembreteEnviado     bool               `json:"lembreteEnviado,omitempty"`
	FundoManeioID       string             `json:"fundoManeioId,omitempty"`
	DocumentoRequerido  string             `json:"documentoRequerido,omitempty"`
	Historico           []EntradaHistorico `json:"historico,omitempty"`
}

// EntradaHistorico registra uma alteração; os snapshots não carregam o histórico.
type EntradaHistorico struct {
	ID             string     `json:"id"`
	Timestamp      time.Time  `json:"timestamp"`
	UsuarioID      string     `json:"userId"`
	UsuarioNome    string     `json:"username"`
	Acao           string     `json:"action"`
	Detalhes       string     `json:"details"`
	EstadoAnterior *Pagamento `json:"previousState,omitempty"`
	EstadoNovo     *Pagamento `json:"newState,omitempty"`
}

// PagamentoRemovido preserva um pagamento excluído com todo o seu histórico.
type PagamentoRemovido struct {
	FornecedorID   string    `json:"fornecedorId"`
	FornecedorNome string    `json:"fornecedorNome"`
	RemovidoEm     time.Time `json:"removidoEm"`
	Pagamento      Pagamento `json:"pagamento"`
}

// PagamentoComFornecedor é a visão achatada usada em listagens e conciliação.
type PagamentoComFornecedor struct {
	Pagamento
	FornecedorID   string `json:"fornecedorId"`
	FornecedorNome string `json:"fornecedorNome"`
}

// Documentos altera as flags de documentos recebidos.
type Documentos struct {
	FacturaRecebida *bool `json:"facturaRecebida"`
	ReciboRecebido  *bool `json:"reciboRecebido"`
	VDRecebido      *bool `json:"vdRecebido"`
}

// PendenciaDocumento lista um pagamento pago com documentos em falta.
type PendenciaDocumento struct {
	PagamentoComFornecedor
	Faltando []string `json:"faltando"`
}

func (p Pagamento) snapshot() *Pagamento {
	cp := p
	cp.Historico = nil
	return &cp
}

// EmAberto indica pagamento ainda não liquidado.
func (p Pagamento) EmAberto() bool {
	return p.Estado != EstadoPago && p.Estado != EstadoCancelado
}

// RequerAprovacao aplica a regra de valor alto ou método bancário.
func (p Pagamento) RequerAprovacao() bool {
	return p.Valor.GreaterThan(LimiteAprovacao) || p.Metodo == MetodoTransferencia || p.Metodo == MetodoCheque
}

// DocumentosEmFalta devolve os documentos ainda não recebidos de um pagamento pago.
func (p Pagamento) DocumentosEmFalta() []string {
	var out []string
	switch p.DocumentoRequerido {
	case DocumentoFactura:
		if p.FacturaRecebida != nil && !*p.FacturaRecebida {
			out = append(out, "factura")
		}
		if p.ReciboRecebido != nil && !*p.ReciboRecebido {
			out = append(out, "recibo")
		}
	case DocumentoVD:
		if p.VDRecebido != nil && !*p.VDRecebido {
			out = append(out, "vd")
		}
	}
	return out
}

// IsTransferencia aceita a grafia com e sem acento.
func IsTransferencia(metodo string) bool {
	m := strings.ToLower(strings.TrimSpace(metodo))
	return m == MetodoTransferencia || m == "transferencia"
}

func NormalizeEstado(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return EstadoPendente
	}
	return v
}

func NormalizeMetodo(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	switch v {
	case "":
		return MetodoTransferencia
	case "transferencia":
		return MetodoTransferencia
	case "debito direto":
		return MetodoDebitoDireto
	}
	return v
}

func NormalizeTipo(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return TipoFatura
	}
	return v
}

func NormalizeDocumento(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return DocumentoNenhum
	}
	return v
}

func IsValidEstado(v string) bool {
	_, ok := validEstados[v]
	return ok
}

func IsValidMetodo(v string) bool {
	_, ok := validMetodos[v]
	return ok
}

func IsValidTipo(v string) bool {
	_, ok := validTipos[v]
	return ok
}

func IsValidDocumento(v string) bool {
	_, ok := validDocumentos[v]
	return ok
}

func boolPtr(v bool) *bool {
	return &v
}

// DadosPagamento são os campos editáveis de um pagamento.
type DadosPagamento struct {
	Referencia         string          `json:"referencia"`
	Valor              decimal.Decimal `json:"valor"`
	DataVencimento     time.Time       `json:"dataVencimento"`
	DataPagamento      *time.Time      `json:"dataPagamento"`
	Estado             string          `json:"estado"`
	Metodo             string          `json:"metodo"`
	Departamento       string          `json:"departamento"`
	Observacoes        string          `json:"observacoes"`
	Descricao          string          `json:"descricao"`
	Tipo               string          `json:"tipo"`
	DocumentoRequerido string          `json:"documentoRequerido"`
}

func (d *DadosPagamento) normalizar() error {
	d.Referencia = strings.TrimSpace(d.Referencia)
	d.Departamento = strings.TrimSpace(d.Departamento)
	d.Estado = NormalizeEstado(d.Estado)
	d.Metodo = NormalizeMetodo(d.Metodo)
	d.Tipo = NormalizeTipo(d.Tipo)
	d.DocumentoRequerido = NormalizeDocumento(d.DocumentoRequerido)

	if d.Referencia == "" {
		return util.Invalido("referência obrigatória")
	}
	if !d.Valor.IsPositive() {
		return ErrValorInvalido
	}
	if d.DataVencimento.IsZero() {
		return util.Invalido("data de vencimento obrigatória")
	}
	if !IsValidEstado(d.Estado) {
		return ErrEstadoInvalido
	}
	if !IsValidMetodo(d.Metodo) {
		return ErrMetodoInvalido
	}
	if !IsValidTipo(d.Tipo) {
		return ErrTipoInvalido
	}
	if !IsValidDocumento(d.DocumentoRequerido) {
		return ErrDocumentoInvalido
	}
	return nil
}

func (d DadosPagamento) aplicar(p *Pagamento) {
	p.Referencia = d.Referencia
	p.Valor = d.Valor
	p.DataVencimento = d.DataVencimento
	p.Estado = d.Estado
	p.Metodo = d.Metodo
	p.Departamento = d.Departamento
	p.Observacoes = d.Observacoes
	p.Descricao = d.Descricao
	p.Tipo = d.Tipo
	p.DocumentoRequerido = d.DocumentoRequerido
	if d.Estado == EstadoPago {
		if d.DataPagamento != nil {
			dt := *d.DataPagamento
			p.DataPagamento = &dt
		}
	} else {
		p.DataPagamento = nil
	}
}

// camposAlterados lista os campos que mudaram, para o resumo do histórico.
func camposAlterados(antes, depois Pagamento) []string {
	var out []string
	if antes.Referencia != depois.Referencia {
		out = append(out, "referência")
	}
	if !antes.Valor.Equal(depois.Valor) {
		out = append(out, "valor")
	}
	if !antes.DataVencimento.Equal(depois.DataVencimento) {
		out = append(out, "data de vencimento")
	}
	if antes.Estado != depois.Estado {
		out = append(out, "estado")
	}
	if antes.Metodo != depois.Metodo {
		out = append(out, "método")
	}
	if antes.Departamento != depois.Departamento {
		out = append(out, "departamento")
	}
	if antes.Observacoes != depois.Observacoes {
		out = append(out, "observações")
	}
	if antes.Descricao != depois.Descricao {
		out = append(out, "descrição")
	}
	if antes.Tipo != depois.Tipo {
		out = append(out, "tipo")
	}
	if antes.DocumentoRequerido != depois.DocumentoRequerido {
		out = append(out, "documento requerido")
	}
	return out
}
