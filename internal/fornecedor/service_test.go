package fornecedor

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/gestaofinanceira/tesouraria/internal/fundomaneio"
	"github.com/gestaofinanceira/tesouraria/internal/sessao"
	"github.com/gestaofinanceira/tesouraria/internal/store"
)

var agora = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return agora }

type aprovacaoStub map[string]bool

func (a aprovacaoStub) AprovacaoConcedida(_ context.Context, pagamentoID string) (bool, error) {
	return a[pagamentoID], nil
}

type permissaoStub bool

func (p permissaoStub) TemPermissao(context.Context, string, string) (bool, error) {
	return bool(p), nil
}

func newTestService(t *testing.T) (*Service, *store.Memory, context.Context) {
	t.Helper()
	mem := store.NewMemory()
	svc := NewService(mem, zerolog.Nop(), fixedClock, time.UTC)
	ctx := sessao.NoContexto(context.Background(), sessao.Ator{ID: "u1", Username: "tes", Nome: "Tesoureira"})
	return svc, mem, ctx
}

func dados(ref string, valor int64) DadosPagamento {
	return DadosPagamento{
		Referencia:     ref,
		Valor:          decimal.NewFromInt(valor),
		DataVencimento: agora.AddDate(0, 0, 10),
		Metodo:         MetodoOutro,
		Departamento:   "Administração",
	}
}

func TestMutationsRequireActor(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.AdicionarFornecedor(context.Background(), "Papelaria", ""); !errors.Is(err, sessao.ErrNaoAutenticado) {
		t.Fatalf("expected ErrNaoAutenticado, got %v", err)
	}
}

func TestAdicionarPagamentoPorNomeCriaFornecedor(t *testing.T) {
	svc, _, ctx := newTestService(t)

	p, err := svc.AdicionarPagamentoPorNome(ctx, "Papelaria Central", dados("F-001", 500))
	if err != nil {
		t.Fatalf("adicionar: %v", err)
	}
	if p.Estado != EstadoPendente || p.Tipo != TipoFatura || p.DocumentoRequerido != DocumentoNenhum {
		t.Fatalf("expected defaults, got %+v", p.Pagamento)
	}
	if len(p.Historico) != 1 || p.Historico[0].Acao != AcaoCriar || p.Historico[0].EstadoAnterior != nil {
		t.Fatalf("expected single create entry without before snapshot, got %+v", p.Historico)
	}

	again, err := svc.AdicionarPagamentoPorNome(ctx, "papelaria central", dados("F-002", 700))
	if err != nil {
		t.Fatalf("adicionar: %v", err)
	}
	if again.FornecedorID != p.FornecedorID {
		t.Fatalf("expected same supplier, got %s and %s", again.FornecedorID, p.FornecedorID)
	}
	fornecedores, _ := svc.Listar(ctx)
	if len(fornecedores) != 1 {
		t.Fatalf("expected 1 supplier, got %d", len(fornecedores))
	}
}

func TestAtualizarPagamentoRegistraSnapshots(t *testing.T) {
	svc, _, ctx := newTestService(t)
	p, _ := svc.AdicionarPagamentoPorNome(ctx, "Gráfica", dados("F-010", 1000))

	in := dados("F-010", 1200)
	in.Observacoes = "revisto"
	got, err := svc.AtualizarPagamento(ctx, p.FornecedorID, p.ID, in)
	if err != nil {
		t.Fatalf("atualizar: %v", err)
	}
	if len(got.Historico) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(got.Historico))
	}
	h := got.Historico[1]
	if h.Acao != AcaoAtualizar || h.EstadoAnterior == nil || h.EstadoNovo == nil {
		t.Fatalf("expected update entry with both snapshots, got %+v", h)
	}
	if !h.EstadoAnterior.Valor.Equal(decimal.NewFromInt(1000)) || !h.EstadoNovo.Valor.Equal(decimal.NewFromInt(1200)) {
		t.Fatalf("unexpected snapshots %s -> %s", h.EstadoAnterior.Valor, h.EstadoNovo.Valor)
	}
	if h.EstadoNovo.Historico != nil {
		t.Fatalf("snapshots must not carry history")
	}
	if h.UsuarioID != "u1" || h.UsuarioNome != "Tesoureira" {
		t.Fatalf("unexpected actor %s/%s", h.UsuarioID, h.UsuarioNome)
	}
}

func TestMoverPagamentoEAtomico(t *testing.T) {
	svc, _, ctx := newTestService(t)
	p, _ := svc.AdicionarPagamentoPorNome(ctx, "Origem", dados("F-020", 300))
	destino, err := svc.AdicionarFornecedor(ctx, "Destino", "")
	if err != nil {
		t.Fatalf("fornecedor: %v", err)
	}

	moved, err := svc.MoverPagamento(ctx, p.ID, p.FornecedorID, destino.ID)
	if err != nil {
		t.Fatalf("mover: %v", err)
	}
	last := moved.Historico[len(moved.Historico)-1]
	if last.Acao != AcaoTransferir {
		t.Fatalf("expected transferred entry, got %s", last.Acao)
	}

	origem, _ := svc.Obter(ctx, p.FornecedorID)
	if len(origem.Pagamentos) != 0 {
		t.Fatalf("expected origin empty, got %d", len(origem.Pagamentos))
	}
	dest, _ := svc.Obter(ctx, destino.ID)
	if len(dest.Pagamentos) != 1 || dest.Pagamentos[0].ID != p.ID {
		t.Fatalf("expected payment in destination, got %+v", dest.Pagamentos)
	}

	if _, err := svc.MoverPagamento(ctx, p.ID, destino.ID, destino.ID); !errors.Is(err, ErrMesmoFornecedor) {
		t.Fatalf("expected ErrMesmoFornecedor, got %v", err)
	}
	if _, err := svc.MoverPagamento(ctx, p.ID, destino.ID, "inexistente"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMoverPagamentoLevaReferencias(t *testing.T) {
	svc, mem, ctx := newTestService(t)
	p, _ := svc.AdicionarPagamentoPorNome(ctx, "Origem", dados("F-021", 300))
	destino, _ := svc.AdicionarFornecedor(ctx, "Destino", "")

	type doc = map[string]any
	semente := map[string][]doc{
		store.KeyCheques: {
			{"id": "c1", "pagamentoId": p.ID, "fornecedorId": p.FornecedorID, "fornecedorNome": "Origem", "valor": "300"},
			{"id": "c2", "pagamentoId": "outro", "fornecedorId": p.FornecedorID, "fornecedorNome": "Origem"},
		},
		store.KeyWorkflows: {
			{"id": "w1", "paymentId": p.ID, "fornecedorId": p.FornecedorID, "fornecedorNome": "Origem"},
		},
		store.KeyTransacoesBancarias: {
			{"id": "t1", "pagamentoId": p.ID, "fornecedorId": p.FornecedorID, "reconciliado": true},
		},
	}
	err := mem.Update(ctx, chavesReferencias(), func(tx store.Tx) error {
		for k, v := range semente {
			if err := store.Write(tx, k, v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := svc.MoverPagamento(ctx, p.ID, p.FornecedorID, destino.ID); err != nil {
		t.Fatalf("mover: %v", err)
	}

	cheques, _ := store.Load[[]doc](ctx, mem, store.KeyCheques)
	if cheques[0]["fornecedorId"] != destino.ID || cheques[0]["fornecedorNome"] != "Destino" || cheques[0]["valor"] != "300" {
		t.Fatalf("expected linked cheque rewritten, got %+v", cheques[0])
	}
	if cheques[1]["fornecedorId"] != p.FornecedorID {
		t.Fatalf("unrelated cheque must keep its supplier, got %+v", cheques[1])
	}
	workflows, _ := store.Load[[]doc](ctx, mem, store.KeyWorkflows)
	if workflows[0]["fornecedorId"] != destino.ID || workflows[0]["fornecedorNome"] != "Destino" {
		t.Fatalf("expected workflow rewritten, got %+v", workflows[0])
	}
	raw, _ := mem.Get(ctx, store.KeyTransacoesBancarias)
	var transacoes []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &transacoes); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := transacoes[0]["fornecedorNome"]; ok {
		t.Fatalf("transactions carry no supplier name, got %s", raw)
	}
	if string(transacoes[0]["fornecedorId"]) != `"`+destino.ID+`"` {
		t.Fatalf("expected transaction rewritten, got %s", raw)
	}
}

func TestRemoverPagamentoArquivaHistorico(t *testing.T) {
	svc, _, ctx := newTestService(t)
	p, _ := svc.AdicionarPagamentoPorNome(ctx, "Limpeza", dados("F-030", 150))

	if err := svc.RemoverPagamento(ctx, p.FornecedorID, p.ID); err != nil {
		t.Fatalf("remover: %v", err)
	}
	removidos, err := svc.HistoricoRemovidos(ctx)
	if err != nil {
		t.Fatalf("removidos: %v", err)
	}
	if len(removidos) != 1 || removidos[0].FornecedorNome != "Limpeza" {
		t.Fatalf("expected archived payment, got %+v", removidos)
	}
	h := removidos[0].Pagamento.Historico
	if len(h) != 2 || h[1].Acao != AcaoRemover || h[1].EstadoNovo != nil {
		t.Fatalf("expected delete entry without after snapshot, got %+v", h)
	}

	hist, err := svc.Historico(ctx, p.ID)
	if err != nil || len(hist) != 2 {
		t.Fatalf("expected history of removed payment, got %v (%v)", hist, err)
	}
}

func TestMarcarComoPagoExigeAprovacao(t *testing.T) {
	svc, _, ctx := newTestService(t)
	in := dados("F-040", 15000)
	in.DocumentoRequerido = DocumentoFactura
	p, _ := svc.AdicionarPagamentoPorNome(ctx, "Construtora", in)

	svc.ComAprovacao(aprovacaoStub{}, permissaoStub(false))
	if _, err := svc.MarcarComoPago(ctx, p.FornecedorID, p.ID, nil); !errors.Is(err, ErrAprovacaoNecessaria) {
		t.Fatalf("expected ErrAprovacaoNecessaria, got %v", err)
	}

	svc.ComAprovacao(aprovacaoStub{p.ID: true}, permissaoStub(false))
	got, err := svc.MarcarComoPago(ctx, p.FornecedorID, p.ID, nil)
	if err != nil {
		t.Fatalf("marcar: %v", err)
	}
	if got.Estado != EstadoPago || got.DataPagamento == nil || !got.DataPagamento.Equal(agora) {
		t.Fatalf("expected paid now, got %+v", got)
	}
	if got.FacturaRecebida == nil || *got.FacturaRecebida || got.ReciboRecebido == nil || *got.ReciboRecebido {
		t.Fatalf("expected document flags initialised to false")
	}

	pend, _ := svc.DocumentosPendentes(ctx)
	if len(pend) != 1 || len(pend[0].Faltando) != 2 {
		t.Fatalf("expected 2 missing documents, got %+v", pend)
	}

	sim := true
	if _, err := svc.AtualizarDocumentos(ctx, p.FornecedorID, p.ID, Documentos{FacturaRecebida: &sim, ReciboRecebido: &sim}); err != nil {
		t.Fatalf("documentos: %v", err)
	}
	pend, _ = svc.DocumentosPendentes(ctx)
	if len(pend) != 0 {
		t.Fatalf("expected no pending documents, got %d", len(pend))
	}

	if _, err := svc.MarcarComoPago(ctx, p.FornecedorID, p.ID, nil); !errors.Is(err, ErrJaPago) {
		t.Fatalf("expected ErrJaPago, got %v", err)
	}
}

func TestMarcarComoPagoComPermissao(t *testing.T) {
	svc, _, ctx := newTestService(t)
	in := dados("F-041", 200)
	in.Metodo = MetodoCheque
	p, _ := svc.AdicionarPagamentoPorNome(ctx, "Eléctrica", in)

	svc.ComAprovacao(aprovacaoStub{}, permissaoStub(true))
	if _, err := svc.MarcarComoPago(ctx, p.FornecedorID, p.ID, nil); err != nil {
		t.Fatalf("expected permission override, got %v", err)
	}
}

func TestPagarComFundoManeio(t *testing.T) {
	svc, mem, ctx := newTestService(t)
	p, _ := svc.AdicionarPagamentoPorNome(ctx, "Cantina", dados("F-050", 800))

	if _, _, err := svc.PagarComFundoManeio(ctx, p.FornecedorID, p.ID, ""); !errors.Is(err, fundomaneio.ErrSaldoInsuficiente) {
		t.Fatalf("expected ErrSaldoInsuficiente, got %v", err)
	}
	unchanged, _ := svc.ObterPagamento(ctx, p.FornecedorID, p.ID)
	if unchanged.Estado != EstadoPendente || len(unchanged.Historico) != 1 {
		t.Fatalf("payment must stay untouched, got %+v", unchanged.Pagamento)
	}

	fundos, _, err := fundomaneio.Aplicar(nil, fundomaneio.NovoMovimento{Tipo: fundomaneio.TipoEntrada, Valor: decimal.NewFromInt(1000)}, agora, "tes")
	if err != nil {
		t.Fatalf("aplicar: %v", err)
	}
	if err := store.Modify(ctx, mem, store.KeyFundosManeio, func([]fundomaneio.FundoManeio) ([]fundomaneio.FundoManeio, error) {
		return fundos, nil
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, mov, err := svc.PagarComFundoManeio(ctx, p.FornecedorID, p.ID, "")
	if err != nil {
		t.Fatalf("pagar: %v", err)
	}
	if got.Metodo != MetodoFundoManeio || got.FundoManeioID != mov.ID || got.Estado != EstadoPago {
		t.Fatalf("unexpected payment %+v", got)
	}
	if mov.Descricao != "Pagamento a Cantina - Ref: F-050" {
		t.Fatalf("unexpected description %q", mov.Descricao)
	}
	if got.Observacoes != "Pago com Fundo de Maneio em 15/03/2024" {
		t.Fatalf("unexpected observacoes %q", got.Observacoes)
	}

	saldo, _ := store.Load[[]fundomaneio.FundoManeio](ctx, mem, store.KeyFundosManeio)
	if !saldo[0].SaldoFinal.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("expected saldo 200, got %s", saldo[0].SaldoFinal)
	}
}

func TestAtualizarAtrasados(t *testing.T) {
	svc, _, ctx := newTestService(t)
	vencido := dados("F-060", 100)
	vencido.DataVencimento = agora.AddDate(0, 0, -3)
	p, _ := svc.AdicionarPagamentoPorNome(ctx, "Transportes", vencido)
	_, _ = svc.AdicionarPagamentoPorNome(ctx, "Transportes", dados("F-061", 100))

	total, err := svc.AtualizarAtrasados(ctx)
	if err != nil {
		t.Fatalf("atrasados: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected 1 overdue payment, got %d", total)
	}
	got, _ := svc.ObterPagamento(ctx, p.FornecedorID, p.ID)
	if got.Estado != EstadoAtrasado {
		t.Fatalf("expected atrasado, got %s", got.Estado)
	}
}

func TestEmAbertoIgnoraCotacoes(t *testing.T) {
	svc, _, ctx := newTestService(t)
	_, _ = svc.AdicionarPagamentoPorNome(ctx, "Informática", dados("F-070", 100))
	cot := dados("C-001", 100)
	cot.Tipo = TipoCotacao
	_, _ = svc.AdicionarPagamentoPorNome(ctx, "Informática", cot)

	abertos, err := svc.EmAberto(ctx)
	if err != nil {
		t.Fatalf("em aberto: %v", err)
	}
	if len(abertos) != 1 || abertos[0].Referencia != "F-070" {
		t.Fatalf("expected only the invoice, got %+v", abertos)
	}
}
