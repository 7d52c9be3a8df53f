package orcamento

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/gestaofinanceira/tesouraria/internal/fornecedor"
	"github.com/gestaofinanceira/tesouraria/internal/planilha"
	"github.com/gestaofinanceira/tesouraria/internal/sessao"
	"github.com/gestaofinanceira/tesouraria/internal/storage"
	"github.com/gestaofinanceira/tesouraria/internal/store"
	"github.com/gestaofinanceira/tesouraria/internal/util"
)

// Service mantém as previsões mensais e calcula a execução contra os pagamentos.
type Service struct {
	store   store.Store
	arquivo storage.Uploader
	logger  zerolog.Logger
	clock   util.Clock
	loc     *time.Location
}

func NewService(s store.Store, logger zerolog.Logger, clock util.Clock, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{store: s, arquivo: storage.NoopUploader{}, logger: logger, clock: clock, loc: loc}
}

func (s *Service) ComArquivo(u storage.Uploader) {
	if u != nil {
		s.arquivo = u
	}
}

func validarMes(ano int, mes time.Month) error {
	if ano < 1 || mes < time.January || mes > time.December {
		return ErrMesInvalido
	}
	return nil
}

func (d *DadosItem) normalizar() error {
	d.Departamento = strings.TrimSpace(d.Departamento)
	if d.Departamento == "" {
		return ErrDepartamentoVazio
	}
	if !d.ValorPrevisto.IsPositive() {
		return ErrValorInvalido
	}
	d.Descricao = strings.TrimSpace(d.Descricao)
	return nil
}

func localizar(orcamentos []Orcamento, ano int, mes time.Month) int {
	for i := range orcamentos {
		if orcamentos[i].Ano == ano && orcamentos[i].Mes == mes {
			return i
		}
	}
	return -1
}

func localizarItem(o Orcamento, id string) int {
	for i := range o.Itens {
		if o.Itens[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Service) Listar(ctx context.Context) ([]Orcamento, error) {
	orcamentos, err := store.Load[[]Orcamento](ctx, s.store, store.KeyOrcamentos)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(orcamentos, func(i, j int) bool {
		if orcamentos[i].Ano != orcamentos[j].Ano {
			return orcamentos[i].Ano < orcamentos[j].Ano
		}
		return orcamentos[i].Mes < orcamentos[j].Mes
	})
	return orcamentos, nil
}

func (s *Service) Obter(ctx context.Context, ano int, mes time.Month) (*Orcamento, error) {
	orcamentos, err := store.Load[[]Orcamento](ctx, s.store, store.KeyOrcamentos)
	if err != nil {
		return nil, err
	}
	if i := localizar(orcamentos, ano, mes); i >= 0 {
		return &orcamentos[i], nil
	}
	return nil, ErrNotFound
}

// AdicionarItem cria o orçamento do mês quando ainda não existe.
func (s *Service) AdicionarItem(ctx context.Context, ano int, mes time.Month, in DadosItem) (*Item, error) {
	if _, err := sessao.Exigir(ctx); err != nil {
		return nil, err
	}
	if err := validarMes(ano, mes); err != nil {
		return nil, err
	}
	if err := in.normalizar(); err != nil {
		return nil, err
	}
	item := Item{ID: util.NewID(), Departamento: in.Departamento, ValorPrevisto: in.ValorPrevisto, Descricao: in.Descricao}
	err := store.Modify(ctx, s.store, store.KeyOrcamentos, func(cur []Orcamento) ([]Orcamento, error) {
		i := localizar(cur, ano, mes)
		if i < 0 {
			return append(cur, Orcamento{ID: util.NewID(), Ano: ano, Mes: mes, Itens: []Item{item}}), nil
		}
		cur[i].Itens = append(cur[i].Itens, item)
		return cur, nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int("ano", ano).Int("mes", int(mes)).Str("departamento", item.Departamento).Msg("item de orçamento adicionado")
	return &item, nil
}

func (s *Service) AtualizarItem(ctx context.Context, ano int, mes time.Month, id string, in DadosItem) (*Item, error) {
	if _, err := sessao.Exigir(ctx); err != nil {
		return nil, err
	}
	if err := in.normalizar(); err != nil {
		return nil, err
	}
	var out Item
	err := store.Modify(ctx, s.store, store.KeyOrcamentos, func(cur []Orcamento) ([]Orcamento, error) {
		i := localizar(cur, ano, mes)
		if i < 0 {
			return nil, ErrNotFound
		}
		j := localizarItem(cur[i], id)
		if j < 0 {
			return nil, ErrItemNotFound
		}
		it := &cur[i].Itens[j]
		it.Departamento = in.Departamento
		it.ValorPrevisto = in.ValorPrevisto
		it.Descricao = in.Descricao
		out = *it
		return cur, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// RemoverItem descarta o mês quando fica sem itens.
func (s *Service) RemoverItem(ctx context.Context, ano int, mes time.Month, id string) error {
	if _, err := sessao.Exigir(ctx); err != nil {
		return err
	}
	return store.Modify(ctx, s.store, store.KeyOrcamentos, func(cur []Orcamento) ([]Orcamento, error) {
		i := localizar(cur, ano, mes)
		if i < 0 {
			return nil, ErrNotFound
		}
		j := localizarItem(cur[i], id)
		if j < 0 {
			return nil, ErrItemNotFound
		}
		itens := append(cur[i].Itens[:j:j], cur[i].Itens[j+1:]...)
		if len(itens) == 0 {
			return append(cur[:i:i], cur[i+1:]...), nil
		}
		cur[i].Itens = itens
		return cur, nil
	})
}

// Realizado soma por departamento as faturas do mês, pagas pela data de
// pagamento e as restantes pelo vencimento.
func Realizado(fornecedores []fornecedor.Fornecedor, ano int, mes time.Month, loc *time.Location) map[string]decimal.Decimal {
	alvo := time.Date(ano, mes, 1, 0, 0, 0, 0, loc)
	out := make(map[string]decimal.Decimal)
	for _, f := range fornecedores {
		for _, p := range f.Pagamentos {
			if p.Tipo != fornecedor.TipoFatura {
				continue
			}
			data := p.DataVencimento
			if p.DataPagamento != nil {
				data = *p.DataPagamento
			}
			if !util.SameMonth(data.In(loc), alvo) {
				continue
			}
			out[p.Departamento] = out[p.Departamento].Add(p.Valor)
		}
	}
	return out
}

// Execucao cruza o orçamento do mês com os pagamentos. Sem orçamento, as
// linhas ficam vazias e o realizado aparece como não orçado.
func (s *Service) Execucao(ctx context.Context, ano int, mes time.Month) (*Execucao, error) {
	if err := validarMes(ano, mes); err != nil {
		return nil, err
	}
	orcamentos, err := store.Load[[]Orcamento](ctx, s.store, store.KeyOrcamentos)
	if err != nil {
		return nil, err
	}
	fornecedores, err := store.Load[[]fornecedor.Fornecedor](ctx, s.store, store.KeyFornecedores)
	if err != nil {
		return nil, err
	}

	realizado := Realizado(fornecedores, ano, mes, s.loc)
	ex := Execucao{Ano: ano, Mes: mes, Linhas: []LinhaExecucao{}, TotalPrevisto: decimal.Zero, TotalRealizado: decimal.Zero}
	orcados := make(map[string]bool)
	if i := localizar(orcamentos, ano, mes); i >= 0 {
		for _, it := range orcamentos[i].Itens {
			r := realizado[it.Departamento]
			ex.Linhas = append(ex.Linhas, LinhaExecucao{
				ItemID:       it.ID,
				Departamento: it.Departamento,
				Descricao:    it.Descricao,
				Previsto:     it.ValorPrevisto,
				Realizado:    r,
				Percentual:   percentual(r, it.ValorPrevisto),
			})
			ex.TotalPrevisto = ex.TotalPrevisto.Add(it.ValorPrevisto)
			orcados[it.Departamento] = true
		}
	}
	for dep, v := range realizado {
		ex.TotalRealizado = ex.TotalRealizado.Add(v)
		if !orcados[dep] {
			ex.NaoOrcado = append(ex.NaoOrcado, LinhaExecucao{Departamento: dep, Previsto: decimal.Zero, Realizado: v})
		}
	}
	sort.Slice(ex.NaoOrcado, func(i, j int) bool { return ex.NaoOrcado[i].Departamento < ex.NaoOrcado[j].Departamento })
	ex.Percentual = percentual(ex.TotalRealizado, ex.TotalPrevisto)
	return &ex, nil
}

// NomeExportacao devolve o nome do ficheiro do mês.
func NomeExportacao(ano int, mes time.Month) string {
	return fmt.Sprintf("orcamento-%04d-%02d.xlsx", ano, int(mes))
}

// Exportar gera a folha "Orçamento" do mês com a linha de total.
func (s *Service) Exportar(ctx context.Context, ano int, mes time.Month) ([]byte, error) {
	ex, err := s.Execucao(ctx, ano, mes)
	if err != nil {
		return nil, err
	}
	if len(ex.Linhas) == 0 {
		return nil, ErrNotFound
	}
	linhas := make([][]any, 0, len(ex.Linhas)+1)
	for _, l := range ex.Linhas {
		linhas = append(linhas, []any{
			l.Departamento,
			l.Previsto.StringFixed(2),
			l.Realizado.StringFixed(2),
			fmt.Sprintf("%d%%", l.Percentual),
			l.Descricao,
		})
	}
	linhas = append(linhas, []any{
		"TOTAL",
		ex.TotalPrevisto.StringFixed(2),
		ex.TotalRealizado.StringFixed(2),
		fmt.Sprintf("%d%%", ex.Percentual),
		"",
	})
	cabecalho := []string{"Departamento", "Valor Previsto", "Valor Realizado", "% Execução", "Descrição"}
	out, err := planilha.NovaFolha("Orçamento", cabecalho, linhas)
	if err != nil {
		return nil, err
	}
	storage.Arquivar(ctx, s.arquivo, s.logger, storage.Objeto{
		Chave:       storage.Chave("exportacoes", s.clock.Now().In(s.loc), NomeExportacao(ano, mes)),
		Corpo:       out,
		ContentType: planilha.ContentType,
	})
	return out, nil
}
