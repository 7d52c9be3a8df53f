package cheque

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("cheque não encontrado")
	ErrNumeroDuplicado   = errors.New("já existe cheque com este número")
	ErrChequeExistente   = errors.New("pagamento já possui cheque emitido")
	ErrTransicaoInvalida = errors.New("transição de estado do cheque inválida")
)

const (
	EstadoPendente   = "pendente"
	EstadoCompensado = "compensado"
	EstadoCancelado  = "cancelado"
)

// Cheque é um cheque emitido, normalmente ligado a um pagamento.
type Cheque struct {
	ID                  string          `json:"id"`
	Numero              string          `json:"numero"`
	Valor               decimal.Decimal `json:"valor"`
	Beneficiario        string          `json:"beneficiario"`
	DataEmissao         time.Time       `json:"dataEmissao"`
	DataCompensacao     *time.Time      `json:"dataCompensacao"`
	Estado              string          `json:"estado"`
	PagamentoID         string          `json:"pagamentoId,omitempty"`
	PagamentoReferencia string          `json:"pagamentoReferencia,omitempty"`
	FornecedorID        string          `json:"fornecedorId,omitempty"`
	FornecedorNome      string          `json:"fornecedorNome,omitempty"`
}

// Emissao descreve um novo cheque. Com PagamentoID, valor e beneficiário vêm do pagamento.
type Emissao struct {
	Numero       string          `json:"numero"`
	DataEmissao  *time.Time      `json:"dataEmissao"`
	FornecedorID string          `json:"fornecedorId"`
	PagamentoID  string          `json:"pagamentoId"`
	Valor        decimal.Decimal `json:"valor"`
	Beneficiario string          `json:"beneficiario"`
}

// NormalizarNumero remove espaços e zeros à esquerda.
func NormalizarNumero(n string) string {
	n = strings.TrimSpace(n)
	trimmed := strings.TrimLeft(n, "0")
	if trimmed == "" && n != "" {
		return "0"
	}
	return trimmed
}

// Indice indexa os cheques pelo número normalizado.
func Indice(cheques []Cheque) map[string]Cheque {
	out := make(map[string]Cheque, len(cheques))
	for _, c := range cheques {
		out[NormalizarNumero(c.Numero)] = c
	}
	return out
}

// Compensar marca o cheque como compensado na lista. Cheques cancelados são recusados.
func Compensar(cheques []Cheque, id string, data time.Time) error {
	for i := range cheques {
		if cheques[i].ID != id {
			continue
		}
		if cheques[i].Estado == EstadoCancelado {
			return ErrTransicaoInvalida
		}
		d := data
		cheques[i].Estado = EstadoCompensado
		cheques[i].DataCompensacao = &d
		return nil
	}
	return ErrNotFound
}
