package orcamento

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/gestaofinanceira/tesouraria/internal/fornecedor"
	"github.com/gestaofinanceira/tesouraria/internal/planilha"
	"github.com/gestaofinanceira/tesouraria/internal/sessao"
	"github.com/gestaofinanceira/tesouraria/internal/store"
)

func fixedClock() time.Time { return time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC) }

func newTestService(t *testing.T) (*Service, *store.Memory, context.Context) {
	t.Helper()
	mem := store.NewMemory()
	svc := NewService(mem, zerolog.Nop(), fixedClock, time.UTC)
	ctx := sessao.NoContexto(context.Background(), sessao.Ator{ID: "u1", Username: "gestor"})
	return svc, mem, ctx
}

func item(dep string, valor int64) DadosItem {
	return DadosItem{Departamento: dep, ValorPrevisto: decimal.NewFromInt(valor)}
}

func dia(m time.Month, d int) time.Time { return time.Date(2024, m, d, 0, 0, 0, 0, time.UTC) }

func semearPagamentos(t *testing.T, mem *store.Memory) {
	t.Helper()
	pagoMaio := dia(time.May, 28)
	pagoJunho := dia(time.June, 2)
	fornecedores := []fornecedor.Fornecedor{{
		ID:   "f1",
		Nome: "Papelaria",
		Pagamentos: []fornecedor.Pagamento{
			{ID: "p1", Valor: decimal.NewFromInt(300), Departamento: "Administração", Tipo: fornecedor.TipoFatura, DataVencimento: dia(time.May, 10), Estado: fornecedor.EstadoPendente},
			{ID: "p2", Valor: decimal.NewFromInt(200), Departamento: "Administração", Tipo: fornecedor.TipoFatura, DataVencimento: dia(time.April, 30), DataPagamento: &pagoMaio, Estado: fornecedor.EstadoPago},
			{ID: "p3", Valor: decimal.NewFromInt(999), Departamento: "Administração", Tipo: fornecedor.TipoFatura, DataVencimento: dia(time.May, 15), DataPagamento: &pagoJunho, Estado: fornecedor.EstadoPago},
			{ID: "p4", Valor: decimal.NewFromInt(50), Departamento: "Administração", Tipo: fornecedor.TipoCotacao, DataVencimento: dia(time.May, 12), Estado: fornecedor.EstadoPendente},
			{ID: "p5", Valor: decimal.NewFromInt(80), Departamento: "Cantina", Tipo: fornecedor.TipoFatura, DataVencimento: dia(time.May, 20), Estado: fornecedor.EstadoPendente},
		},
	}}
	err := mem.Update(context.Background(), []string{store.KeyFornecedores}, func(tx store.Tx) error {
		return store.Write(tx, store.KeyFornecedores, fornecedores)
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestItensCriamERemovemMes(t *testing.T) {
	svc, _, ctx := newTestService(t)

	a, err := svc.AdicionarItem(ctx, 2024, time.May, item("Administração", 1000))
	if err != nil {
		t.Fatalf("adicionar: %v", err)
	}
	b, _ := svc.AdicionarItem(ctx, 2024, time.May, item("Cantina", 100))
	o, err := svc.Obter(ctx, 2024, time.May)
	if err != nil || len(o.Itens) != 2 {
		t.Fatalf("expected month with 2 items, got %+v %v", o, err)
	}

	upd, err := svc.AtualizarItem(ctx, 2024, time.May, b.ID, DadosItem{Departamento: "Cantina", ValorPrevisto: decimal.NewFromInt(160), Descricao: "Refeições"})
	if err != nil || !upd.ValorPrevisto.Equal(decimal.NewFromInt(160)) {
		t.Fatalf("expected updated item, got %+v %v", upd, err)
	}

	if err := svc.RemoverItem(ctx, 2024, time.May, a.ID); err != nil {
		t.Fatalf("remover: %v", err)
	}
	if err := svc.RemoverItem(ctx, 2024, time.May, b.ID); err != nil {
		t.Fatalf("remover: %v", err)
	}
	if _, err := svc.Obter(ctx, 2024, time.May); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected empty month to be dropped, got %v", err)
	}
}

func TestAdicionarItemValida(t *testing.T) {
	svc, _, ctx := newTestService(t)
	if _, err := svc.AdicionarItem(ctx, 2024, time.May, item(" ", 10)); !errors.Is(err, ErrDepartamentoVazio) {
		t.Fatalf("expected ErrDepartamentoVazio, got %v", err)
	}
	if _, err := svc.AdicionarItem(ctx, 2024, time.May, item("TI", 0)); !errors.Is(err, ErrValorInvalido) {
		t.Fatalf("expected ErrValorInvalido, got %v", err)
	}
	if _, err := svc.AdicionarItem(ctx, 2024, 13, item("TI", 10)); !errors.Is(err, ErrMesInvalido) {
		t.Fatalf("expected ErrMesInvalido, got %v", err)
	}
	if _, err := svc.AdicionarItem(context.Background(), 2024, time.May, item("TI", 10)); !errors.Is(err, sessao.ErrNaoAutenticado) {
		t.Fatalf("expected ErrNaoAutenticado, got %v", err)
	}
}

func TestExecucao(t *testing.T) {
	svc, mem, ctx := newTestService(t)
	semearPagamentos(t, mem)
	_, _ = svc.AdicionarItem(ctx, 2024, time.May, item("Administração", 1000))
	_, _ = svc.AdicionarItem(ctx, 2024, time.May, item("Informática", 400))

	ex, err := svc.Execucao(ctx, 2024, time.May)
	if err != nil {
		t.Fatalf("execucao: %v", err)
	}
	adm := ex.Linhas[0]
	if !adm.Realizado.Equal(decimal.NewFromInt(500)) || adm.Percentual != 50 {
		t.Fatalf("expected 500 realized at 50%%, got %s %d", adm.Realizado, adm.Percentual)
	}
	if ti := ex.Linhas[1]; !ti.Realizado.IsZero() || ti.Percentual != 0 {
		t.Fatalf("expected nothing realized for TI, got %+v", ti)
	}
	if len(ex.NaoOrcado) != 1 || ex.NaoOrcado[0].Departamento != "Cantina" {
		t.Fatalf("expected Cantina as unbudgeted, got %+v", ex.NaoOrcado)
	}
	if !ex.TotalPrevisto.Equal(decimal.NewFromInt(1400)) || !ex.TotalRealizado.Equal(decimal.NewFromInt(580)) || ex.Percentual != 41 {
		t.Fatalf("unexpected totals %s %s %d", ex.TotalPrevisto, ex.TotalRealizado, ex.Percentual)
	}
}

type somenteLeitura struct {
	*store.Memory
}

func (somenteLeitura) Update(context.Context, []string, func(tx store.Tx) error) error {
	return errors.New("escrita não permitida")
}

func TestExecucaoSemEscrita(t *testing.T) {
	svc, mem, ctx := newTestService(t)
	semearPagamentos(t, mem)
	_, _ = svc.AdicionarItem(ctx, 2024, time.May, item("Administração", 1000))

	leitura := NewService(somenteLeitura{mem}, zerolog.Nop(), fixedClock, time.UTC)
	ex, err := leitura.Execucao(ctx, 2024, time.May)
	if err != nil {
		t.Fatalf("execucao must only read, got %v", err)
	}
	if len(ex.Linhas) != 1 || !ex.Linhas[0].Realizado.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("unexpected execution %+v", ex.Linhas)
	}
}

func TestPercentualPrevisaoZero(t *testing.T) {
	if got := percentual(decimal.NewFromInt(10), decimal.Zero); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if got := percentual(decimal.NewFromInt(2), decimal.NewFromInt(3)); got != 67 {
		t.Fatalf("expected 67, got %d", got)
	}
}

func TestExportar(t *testing.T) {
	svc, mem, ctx := newTestService(t)
	semearPagamentos(t, mem)

	if _, err := svc.Exportar(ctx, 2024, time.May); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound without budget, got %v", err)
	}
	_, _ = svc.AdicionarItem(ctx, 2024, time.May, item("Administração", 1000))

	out, err := svc.Exportar(ctx, 2024, time.May)
	if err != nil {
		t.Fatalf("exportar: %v", err)
	}
	linhas, err := planilha.LerLinhas(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("ler: %v", err)
	}
	if len(linhas) != 2 {
		t.Fatalf("expected item and total rows, got %d", len(linhas))
	}
	if linhas[0]["% Execução"] != "50%" || linhas[1]["Departamento"] != "TOTAL" || linhas[1]["Valor Realizado"] != "580.00" {
		t.Fatalf("unexpected sheet %+v", linhas)
	}
}
