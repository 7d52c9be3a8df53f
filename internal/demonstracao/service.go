// Package demonstracao calcula a demonstração de resultados: receitas
// recebidas contra pagamentos liquidados num período.
package demonstracao

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/gestaofinanceira/tesouraria/internal/fornecedor"
	"github.com/gestaofinanceira/tesouraria/internal/receita"
	"github.com/gestaofinanceira/tesouraria/internal/store"
	"github.com/gestaofinanceira/tesouraria/internal/util"
)

var cem = decimal.NewFromInt(100)

type Service struct {
	store  store.Store
	logger zerolog.Logger
	clock  util.Clock
	loc    *time.Location
}

func NewService(s store.Store, logger zerolog.Logger, clock util.Clock, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{store: s, logger: logger, clock: clock, loc: loc}
}

func fimDoDia(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}

// diaCivil reinterpreta a data no fuso da tesouraria, mantendo dia, mês e ano.
func diaCivil(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// Resolver converte o período pedido em datas. Trimestre e semestre são
// janelas móveis que terminam agora; mês e ano são os de calendário.
func Resolver(p Periodo, now time.Time) (Intervalo, error) {
	loc := now.Location()
	if p.Tipo == "" {
		p.Tipo = PeriodoMes
	}
	iv := Intervalo{Tipo: p.Tipo}
	switch p.Tipo {
	case PeriodoMes:
		iv.Inicio = util.MonthStart(now)
		iv.Fim = iv.Inicio.AddDate(0, 1, 0).Add(-time.Nanosecond)
	case PeriodoTrimestre:
		iv.Inicio, iv.Fim = now.AddDate(0, -3, 0), now
	case PeriodoSemestre:
		iv.Inicio, iv.Fim = now.AddDate(0, -6, 0), now
	case PeriodoAno:
		iv.Inicio = time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, loc)
		iv.Fim = fimDoDia(time.Date(now.Year(), time.December, 31, 0, 0, 0, 0, loc))
	case PeriodoPersonalizado:
		if p.Inicio.IsZero() || p.Fim.IsZero() {
			return Intervalo{}, ErrIntervaloVazio
		}
		iv.Inicio = diaCivil(p.Inicio, loc)
		iv.Fim = fimDoDia(diaCivil(p.Fim, loc))
		if iv.Fim.Before(iv.Inicio) {
			return Intervalo{}, ErrIntervaloVazio
		}
	default:
		return Intervalo{}, ErrPeriodoInvalido
	}
	return iv, nil
}

func (iv Intervalo) contem(t time.Time) bool {
	return !t.Before(iv.Inicio) && !t.After(iv.Fim)
}

// dataDespesa segue a data de pagamento e, sem ela, o vencimento.
func dataDespesa(p fornecedor.Pagamento) time.Time {
	if p.DataPagamento != nil {
		return *p.DataPagamento
	}
	return p.DataVencimento
}

// Demonstracao lê receitas e fornecedores e monta o relatório do período.
func (s *Service) Demonstracao(ctx context.Context, p Periodo) (*Demonstracao, error) {
	iv, err := Resolver(p, s.clock.Now().In(s.loc))
	if err != nil {
		return nil, err
	}
	receitas, err := store.Load[[]receita.Receita](ctx, s.store, store.KeyReceitas)
	if err != nil {
		return nil, err
	}
	fornecedores, err := store.Load[[]fornecedor.Fornecedor](ctx, s.store, store.KeyFornecedores)
	if err != nil {
		return nil, err
	}
	d := Calcular(iv, receitas, fornecedores, s.loc)
	s.logger.Debug().
		Str("periodo", iv.Tipo).
		Str("resultado", d.Resultado.StringFixed(2)).
		Msg("demonstração de resultados")
	return &d, nil
}

// Calcular é o núcleo puro da demonstração.
func Calcular(iv Intervalo, receitas []receita.Receita, fornecedores []fornecedor.Fornecedor, loc *time.Location) Demonstracao {
	d := Demonstracao{
		Periodo:       iv,
		TotalReceitas: decimal.Zero,
		TotalDespesas: decimal.Zero,
	}
	ind := Indicadores{ReceitasPendentes: decimal.Zero, DespesasPendentes: decimal.Zero}
	porCategoria := make(map[string]decimal.Decimal)
	porDepartamento := make(map[string]decimal.Decimal)

	tendencia := make([]Mes, MesesTendencia)
	base := util.MonthStart(iv.Fim.In(loc)).AddDate(0, -(MesesTendencia - 1), 0)
	for i := range tendencia {
		m := base.AddDate(0, i, 0)
		tendencia[i] = Mes{Ano: m.Year(), Mes: m.Month(), Receitas: decimal.Zero, Despesas: decimal.Zero}
	}
	mesDe := func(t time.Time) *Mes {
		t = t.In(loc)
		for i := range tendencia {
			if tendencia[i].Ano == t.Year() && tendencia[i].Mes == t.Month() {
				return &tendencia[i]
			}
		}
		return nil
	}

	for _, r := range receitas {
		data := r.DataEfetiva()
		if r.Status == receita.StatusRecebido {
			if m := mesDe(data); m != nil {
				m.Receitas = m.Receitas.Add(r.Valor)
			}
		}
		if !iv.contem(data) {
			continue
		}
		switch r.Status {
		case receita.StatusRecebido:
			d.TotalReceitas = d.TotalReceitas.Add(r.Valor)
			porCategoria[r.Categoria] = porCategoria[r.Categoria].Add(r.Valor)
		case receita.StatusPendente, receita.StatusAtrasado:
			ind.ReceitasPendentes = ind.ReceitasPendentes.Add(r.Valor)
		}
	}

	for _, f := range fornecedores {
		for _, p := range f.Pagamentos {
			data := dataDespesa(p)
			if p.Estado == fornecedor.EstadoPago {
				if m := mesDe(data); m != nil {
					m.Despesas = m.Despesas.Add(p.Valor)
				}
			}
			if !iv.contem(data) {
				continue
			}
			switch p.Estado {
			case fornecedor.EstadoPago:
				d.TotalDespesas = d.TotalDespesas.Add(p.Valor)
				porDepartamento[p.Departamento] = porDepartamento[p.Departamento].Add(p.Valor)
			case fornecedor.EstadoPendente, fornecedor.EstadoAtrasado:
				ind.DespesasPendentes = ind.DespesasPendentes.Add(p.Valor)
			}
		}
	}

	for i := range tendencia {
		tendencia[i].Resultado = tendencia[i].Receitas.Sub(tendencia[i].Despesas)
	}
	d.Tendencia = tendencia
	d.Resultado = d.TotalReceitas.Sub(d.TotalDespesas)

	d.ReceitasPorCategoria = make([]ValorCategoria, 0, len(porCategoria))
	for c, v := range porCategoria {
		d.ReceitasPorCategoria = append(d.ReceitasPorCategoria, ValorCategoria{Categoria: c, Valor: v})
	}
	sort.Slice(d.ReceitasPorCategoria, func(i, j int) bool {
		a, b := d.ReceitasPorCategoria[i], d.ReceitasPorCategoria[j]
		if !a.Valor.Equal(b.Valor) {
			return a.Valor.GreaterThan(b.Valor)
		}
		return a.Categoria < b.Categoria
	})
	d.DespesasPorDepartamento = make([]ValorDepartamento, 0, len(porDepartamento))
	for dep, v := range porDepartamento {
		d.DespesasPorDepartamento = append(d.DespesasPorDepartamento, ValorDepartamento{Departamento: dep, Valor: v})
	}
	sort.Slice(d.DespesasPorDepartamento, func(i, j int) bool {
		a, b := d.DespesasPorDepartamento[i], d.DespesasPorDepartamento[j]
		if !a.Valor.Equal(b.Valor) {
			return a.Valor.GreaterThan(b.Valor)
		}
		return a.Departamento < b.Departamento
	})

	ind.MargemResultado = percentagem(d.Resultado, d.TotalReceitas)
	ind.RelacaoDespesaReceita = percentagem(d.TotalDespesas, d.TotalReceitas)
	ind.ResultadoProjetado = d.TotalReceitas.Add(ind.ReceitasPendentes).Sub(d.TotalDespesas.Add(ind.DespesasPendentes))
	d.Indicadores = ind
	return d
}

// percentagem com uma casa; sem receitas o indicador fica em zero.
func percentagem(v, base decimal.Decimal) decimal.Decimal {
	if !base.IsPositive() {
		return decimal.Zero
	}
	return v.Div(base).Mul(cem).Round(1)
}
