package demonstracao

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrPeriodoInvalido = errors.New("período inválido")
	ErrIntervaloVazio  = errors.New("período personalizado exige início e fim, com início antes do fim")
)

// Tipos de período aceites.
const (
	PeriodoMes           = "mes"
	PeriodoTrimestre     = "trimestre"
	PeriodoSemestre      = "semestre"
	PeriodoAno           = "ano"
	PeriodoPersonalizado = "personalizado"
)

// MesesTendencia é a janela da tendência mensal.
const MesesTendencia = 12

// Periodo pede a demonstração. Inicio e Fim só contam no personalizado e
// são datas inclusivas.
type Periodo struct {
	Tipo   string
	Inicio time.Time
	Fim    time.Time
}

// Intervalo é o período resolvido, fechado nos dois extremos.
type Intervalo struct {
	Tipo   string    `json:"tipo"`
	Inicio time.Time `json:"inicio"`
	Fim    time.Time `json:"fim"`
}

type ValorCategoria struct {
	Categoria string          `json:"categoria"`
	Valor     decimal.Decimal `json:"valor"`
}

type ValorDepartamento struct {
	Departamento string          `json:"departamento"`
	Valor        decimal.Decimal `json:"valor"`
}

// Mes é um ponto da tendência.
type Mes struct {
	Ano       int             `json:"ano"`
	Mes       time.Month      `json:"mes"`
	Receitas  decimal.Decimal `json:"receitas"`
	Despesas  decimal.Decimal `json:"despesas"`
	Resultado decimal.Decimal `json:"resultado"`
}

// Indicadores derivados dos totais; percentagens com uma casa decimal.
type Indicadores struct {
	MargemResultado       decimal.Decimal `json:"margemResultado"`
	RelacaoDespesaReceita decimal.Decimal `json:"relacaoDespesaReceita"`
	ReceitasPendentes     decimal.Decimal `json:"receitasPendentes"`
	DespesasPendentes     decimal.Decimal `json:"despesasPendentes"`
	ResultadoProjetado    decimal.Decimal `json:"resultadoProjetado"`
}

// Demonstracao é a demonstração de resultados do período.
type Demonstracao struct {
	Periodo                 Intervalo           `json:"periodo"`
	TotalReceitas           decimal.Decimal     `json:"totalReceitas"`
	TotalDespesas           decimal.Decimal     `json:"totalDespesas"`
	Resultado               decimal.Decimal     `json:"resultado"`
	ReceitasPorCategoria    []ValorCategoria    `json:"receitasPorCategoria"`
	DespesasPorDepartamento []ValorDepartamento `json:"despesasPorDepartamento"`
	Tendencia               []Mes               `json:"tendencia"`
	Indicadores             Indicadores         `json:"indicadores"`
}
