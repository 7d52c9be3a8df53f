package orcamento

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("orçamento não encontrado")
	ErrItemNotFound      = errors.New("item de orçamento não encontrado")
	ErrDepartamentoVazio = errors.New("departamento obrigatório")
	ErrValorInvalido     = errors.New("valor previsto deve ser maior que zero")
	ErrMesInvalido       = errors.New("mês inválido")
)

// Orcamento guarda a previsão de despesa de um mês por departamento.
type Orcamento struct {
	ID    string     `json:"id"`
	Ano   int        `json:"ano"`
	Mes   time.Month `json:"mes"`
	Itens []Item     `json:"itens"`
}

type Item struct {
	ID            string          `json:"id"`
	Departamento  string          `json:"departamento"`
	ValorPrevisto decimal.Decimal `json:"valorPrevisto"`
	Descricao     string          `json:"descricao,omitempty"`
}

// DadosItem são os campos aceitos ao criar ou editar um item.
type DadosItem struct {
	Departamento  string          `json:"departamento"`
	ValorPrevisto decimal.Decimal `json:"valorPrevisto"`
	Descricao     string          `json:"descricao"`
}

// LinhaExecucao compara previsto e realizado de um departamento.
type LinhaExecucao struct {
	ItemID       string          `json:"itemId,omitempty"`
	Departamento string          `json:"departamento"`
	Descricao    string          `json:"descricao,omitempty"`
	Previsto     decimal.Decimal `json:"previsto"`
	Realizado    decimal.Decimal `json:"realizado"`
	Percentual   int64           `json:"percentual"`
}

// Execucao é a visão mensal do orçamento contra os pagamentos.
type Execucao struct {
	Ano            int             `json:"ano"`
	Mes            time.Month      `json:"mes"`
	Linhas         []LinhaExecucao `json:"linhas"`
	NaoOrcado      []LinhaExecucao `json:"naoOrcado,omitempty"`
	TotalPrevisto  decimal.Decimal `json:"totalPrevisto"`
	TotalRealizado decimal.Decimal `json:"totalRealizado"`
	Percentual     int64           `json:"percentual"`
}

var cem = decimal.NewFromInt(100)

// percentual arredonda realizado/previsto; previsão zero dá zero.
func percentual(realizado, previsto decimal.Decimal) int64 {
	if !previsto.IsPositive() {
		return 0
	}
	return realizado.Div(previsto).Mul(cem).Round(0).IntPart()
}
