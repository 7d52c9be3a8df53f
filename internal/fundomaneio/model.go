package fundomaneio

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("fundo de maneio não encontrado")
	ErrMovimentoNotFound = errors.New("movimento não encontrado")
	ErrSaldoInsuficiente = errors.New("saldo insuficiente no fundo de maneio")
	ErrValorInvalido     = errors.New("valor deve ser maior que zero")
	ErrTipoInvalido      = errors.New("tipo de movimento inválido")
)

const (
	TipoEntrada = "entrada"
	TipoSaida   = "saida"

	DescricaoPadrao = "Movimento automático"
)

// FundoManeio é o balde mensal de movimentos de caixa.
type FundoManeio struct {
	ID           string          `json:"id"`
	Mes          time.Time       `json:"mes"`
	Movimentos   []Movimento     `json:"movimentos"`
	SaldoInicial decimal.Decimal `json:"saldoInicial"`
	SaldoFinal   decimal.Decimal `json:"saldoFinal"`
}

// Movimento é uma entrada ou saída de caixa.
type Movimento struct {
	ID                  string          `json:"id"`
	Data                time.Time       `json:"data"`
	Tipo                string          `json:"tipo"`
	Valor               decimal.Decimal `json:"valor"`
	Descricao           string          `json:"descricao"`
	PagamentoID         string          `json:"pagamentoId,omitempty"`
	PagamentoReferencia string          `json:"pagamentoReferencia,omitempty"`
	FornecedorNome      string          `json:"fornecedorNome,omitempty"`
	CriadoPor           string          `json:"criadoPor,omitempty"`
}

// NovoMovimento são os dados de entrada; Data e Descricao têm default.
type NovoMovimento struct {
	Tipo                string          `json:"tipo"`
	Valor               decimal.Decimal `json:"valor"`
	Descricao           string          `json:"descricao"`
	Data                *time.Time      `json:"data"`
	PagamentoID         string          `json:"pagamentoId"`
	PagamentoReferencia string          `json:"pagamentoReferencia"`
	FornecedorNome      string          `json:"fornecedorNome"`
}

func NormalizeTipo(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "saída" {
		return TipoSaida
	}
	return v
}

func IsValidTipo(v string) bool {
	return v == TipoEntrada || v == TipoSaida
}

func (f FundoManeio) recalcular() decimal.Decimal {
	saldo := f.SaldoInicial
	for _, m := range f.Movimentos {
		if m.Tipo == TipoEntrada {
			saldo = saldo.Add(m.Valor)
		} else {
			saldo = saldo.Sub(m.Valor)
		}
	}
	return saldo
}
