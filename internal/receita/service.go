package receita

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/gestaofinanceira/tesouraria/internal/sessao"
	"github.com/gestaofinanceira/tesouraria/internal/store"
	"github.com/gestaofinanceira/tesouraria/internal/util"
)

const (
	DirecaoCrescimento = "crescimento"
	DirecaoQueda       = "queda"
	DirecaoEstavel     = "estavel"
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

func validar(d *DadosReceita) error {
	if err := util.RequireString(d.Descricao, "descricao"); err != nil {
		return err
	}
	if !d.Valor.IsPositive() {
		return ErrValorInvalido
	}
	d.Categoria = strings.TrimSpace(d.Categoria)
	if d.Categoria == "" {
		return ErrCategoriaVazia
	}
	d.Fonte = strings.TrimSpace(d.Fonte)
	if d.Fonte == "" {
		return ErrFonteVazia
	}
	d.Status = normalizarStatus(d.Status)
	if !statusValido(d.Status) {
		return ErrStatusInvalido
	}
	return nil
}

func (s *Service) evento(ator sessao.Ator, acao, detalhes string) Evento {
	usuario := ator.Username
	if usuario == "" {
		usuario = "Sistema"
	}
	return Evento{
		ID:       util.NewID(),
		Data:     s.clock.Now(),
		Usuario:  usuario,
		Acao:     acao,
		Detalhes: detalhes,
	}
}

// Adicionar registra a receita; recebida sem data assume agora.
func (s *Service) Adicionar(ctx context.Context, in DadosReceita) (*Receita, error) {
	ator, err := sessao.Exigir(ctx)
	if err != nil {
		return nil, err
	}
	if err := validar(&in); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if in.Data.IsZero() {
		in.Data = now
	}
	r := Receita{
		ID:              util.NewID(),
		Data:            in.Data.In(s.loc),
		Descricao:       strings.TrimSpace(in.Descricao),
		Valor:           in.Valor,
		Categoria:       in.Categoria,
		Fonte:           in.Fonte,
		Observacoes:     in.Observacoes,
		Status:          in.Status,
		MetodoPagamento: in.MetodoPagamento,
		Comprovante:     in.Comprovante,
	}
	if r.Status == StatusRecebido {
		d := now
		if in.DataRecebimento != nil {
			d = *in.DataRecebimento
		}
		r.DataRecebimento = &d
	}
	r.Historico = []Evento{s.evento(ator, "Criação", "Receita criada")}

	err = store.Modify(ctx, s.store, store.KeyReceitas, func(cur []Receita) ([]Receita, error) {
		return append(cur, r), nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("receita", r.ID).Str("valor", r.Valor.StringFixed(2)).Str("status", r.Status).Msg("receita registrada")
	return &r, nil
}

// Atualizar substitui os campos editáveis e mantém o histórico.
func (s *Service) Atualizar(ctx context.Context, id string, in DadosReceita) (*Receita, error) {
	ator, err := sessao.Exigir(ctx)
	if err != nil {
		return nil, err
	}
	if err := validar(&in); err != nil {
		return nil, err
	}

	var out Receita
	err = store.Modify(ctx, s.store, store.KeyReceitas, func(cur []Receita) ([]Receita, error) {
		i := indice(cur, id)
		if i < 0 {
			return nil, ErrNotFound
		}
		r := cur[i]
		if !in.Data.IsZero() {
			r.Data = in.Data.In(s.loc)
		}
		r.Descricao = strings.TrimSpace(in.Descricao)
		r.Valor = in.Valor
		r.Categoria = in.Categoria
		r.Fonte = in.Fonte
		r.Observacoes = in.Observacoes
		r.MetodoPagamento = in.MetodoPagamento
		r.Comprovante = in.Comprovante
		switch {
		case in.Status != StatusRecebido:
			r.DataRecebimento = nil
		case in.DataRecebimento != nil:
			d := *in.DataRecebimento
			r.DataRecebimento = &d
		case r.DataRecebimento == nil:
			d := s.clock.Now()
			r.DataRecebimento = &d
		}
		r.Status = in.Status
		r.Historico = append(append([]Evento(nil), r.Historico...), s.evento(ator, "Edição", "Receita atualizada"))
		cur[i] = r
		out = r
		return cur, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// MarcarRecebida fecha a receita em aberto; data nula usa o relógio.
func (s *Service) MarcarRecebida(ctx context.Context, id string, data *time.Time, metodo string) (*Receita, error) {
	ator, err := sessao.Exigir(ctx)
	if err != nil {
		return nil, err
	}

	var out Receita
	err = store.Modify(ctx, s.store, store.KeyReceitas, func(cur []Receita) ([]Receita, error) {
		i := indice(cur, id)
		if i < 0 {
			return nil, ErrNotFound
		}
		r := cur[i]
		if !r.EmAberto() {
			return nil, ErrJaRecebida
		}
		d := s.clock.Now()
		if data != nil {
			d = *data
		}
		r.Status = StatusRecebido
		r.DataRecebimento = &d
		if metodo = strings.TrimSpace(metodo); metodo != "" {
			r.MetodoPagamento = metodo
		}
		r.Historico = append(append([]Evento(nil), r.Historico...), s.evento(ator, "Status", "Marcada como recebida"))
		cur[i] = r
		out = r
		return cur, nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("receita", id).Msg("receita recebida")
	return &out, nil
}

func (s *Service) Remover(ctx context.Context, id string) error {
	if _, err := sessao.Exigir(ctx); err != nil {
		return err
	}
	return store.Modify(ctx, s.store, store.KeyReceitas, func(cur []Receita) ([]Receita, error) {
		i := indice(cur, id)
		if i < 0 {
			return nil, ErrNotFound
		}
		return append(cur[:i:i], cur[i+1:]...), nil
	})
}

func (s *Service) Obter(ctx context.Context, id string) (*Receita, error) {
	receitas, err := store.Load[[]Receita](ctx, s.store, store.KeyReceitas)
	if err != nil {
		return nil, err
	}
	if i := indice(receitas, id); i >= 0 {
		return &receitas[i], nil
	}
	return nil, ErrNotFound
}

// Listar filtra por mês da data prevista, status e texto; mais recentes primeiro.
func (s *Service) Listar(ctx context.Context, f Filtro) ([]Receita, error) {
	receitas, err := store.Load[[]Receita](ctx, s.store, store.KeyReceitas)
	if err != nil {
		return nil, err
	}
	busca := strings.ToLower(strings.TrimSpace(f.Busca))
	status := strings.ToLower(strings.TrimSpace(f.Status))
	out := make([]Receita, 0, len(receitas))
	for _, r := range receitas {
		d := r.Data.In(s.loc)
		if f.Ano != 0 && d.Year() != f.Ano {
			continue
		}
		if f.Mes != 0 && d.Month() != f.Mes {
			continue
		}
		if status != "" && r.Status != status {
			continue
		}
		if busca != "" && !contem(r, busca) {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Data.After(out[j].Data) })
	return out, nil
}

// ResumoMensal devolve os doze meses do ano pela data prevista.
func (s *Service) ResumoMensal(ctx context.Context, ano int) ([]TotalMensal, error) {
	receitas, err := store.Load[[]Receita](ctx, s.store, store.KeyReceitas)
	if err != nil {
		return nil, err
	}
	meses := make([]TotalMensal, 12)
	for i := range meses {
		meses[i] = TotalMensal{Mes: time.Month(i + 1), Total: decimal.Zero, Recebido: decimal.Zero, Pendente: decimal.Zero}
	}
	for _, r := range receitas {
		d := r.Data.In(s.loc)
		if d.Year() != ano {
			continue
		}
		m := &meses[d.Month()-1]
		m.Total = m.Total.Add(r.Valor)
		if r.Status == StatusRecebido {
			m.Recebido = m.Recebido.Add(r.Valor)
		} else {
			m.Pendente = m.Pendente.Add(r.Valor)
		}
	}
	return meses, nil
}

// Tendencia compara o recebido no mês com o mês anterior, pela data de recebimento.
func (s *Service) Tendencia(ctx context.Context, ano int, mes time.Month) (*Tendencia, error) {
	receitas, err := store.Load[[]Receita](ctx, s.store, store.KeyReceitas)
	if err != nil {
		return nil, err
	}
	atual := time.Date(ano, mes, 1, 0, 0, 0, 0, s.loc)
	anterior := atual.AddDate(0, -1, 0)
	t := Tendencia{Ano: ano, Mes: mes, Atual: decimal.Zero, Anterior: decimal.Zero}
	for _, r := range receitas {
		if r.Status != StatusRecebido {
			continue
		}
		d := r.DataEfetiva().In(s.loc)
		switch {
		case util.SameMonth(d, atual):
			t.Atual = t.Atual.Add(r.Valor)
		case util.SameMonth(d, anterior):
			t.Anterior = t.Anterior.Add(r.Valor)
		}
	}
	t.Variacao = variacao(t.Atual, t.Anterior)
	switch t.Variacao.Sign() {
	case 1:
		t.Direcao = DirecaoCrescimento
	case -1:
		t.Direcao = DirecaoQueda
	default:
		t.Direcao = DirecaoEstavel
	}
	return &t, nil
}

// variacao em pontos percentuais com uma casa; sem base, qualquer recebido vale 100%.
func variacao(atual, anterior decimal.Decimal) decimal.Decimal {
	if anterior.IsZero() {
		if atual.IsPositive() {
			return cem
		}
		return decimal.Zero
	}
	return atual.Sub(anterior).Div(anterior).Mul(cem).Round(1)
}

func indice(receitas []Receita, id string) int {
	for i := range receitas {
		if receitas[i].ID == id {
			return i
		}
	}
	return -1
}

func contem(r Receita, busca string) bool {
	return strings.Contains(strings.ToLower(r.Descricao), busca) ||
		strings.Contains(strings.ToLower(r.Categoria), busca) ||
		strings.Contains(strings.ToLower(r.Fonte), busca)
}
