package reconciliacao

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/gestaofinanceira/tesouraria/internal/cheque"
	"github.com/gestaofinanceira/tesouraria/internal/fornecedor"
	"github.com/gestaofinanceira/tesouraria/internal/planilha"
	"github.com/gestaofinanceira/tesouraria/internal/sessao"
	"github.com/gestaofinanceira/tesouraria/internal/storage"
	"github.com/gestaofinanceira/tesouraria/internal/store"
)

var agora = time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC)

func clock() time.Time { return agora }

type fixture struct {
	svc          *Service
	fornecedores *fornecedor.Service
	cheques      *cheque.Service
	ctx          context.Context
}

func setup(t *testing.T) fixture {
	t.Helper()
	mem := store.NewMemory()
	return fixture{
		svc:          NewService(mem, zerolog.Nop(), clock, time.UTC),
		fornecedores: fornecedor.NewService(mem, zerolog.Nop(), clock, time.UTC),
		cheques:      cheque.NewService(mem, zerolog.Nop(), clock, time.UTC),
		ctx:          sessao.NoContexto(context.Background(), sessao.Ator{ID: "u1", Username: "tes"}),
	}
}

func (f fixture) pagamento(t *testing.T, nome, ref string, valor int64, metodo string) *fornecedor.PagamentoComFornecedor {
	t.Helper()
	p, err := f.fornecedores.AdicionarPagamentoPorNome(f.ctx, nome, fornecedor.DadosPagamento{
		Referencia:     ref,
		Valor:          decimal.NewFromInt(valor),
		DataVencimento: agora.AddDate(0, 0, 10),
		Metodo:         metodo,
	})
	if err != nil {
		t.Fatalf("pagamento %s: %v", ref, err)
	}
	return p
}

func TestReconciliarAutomaticoComChequeETransferencia(t *testing.T) {
	f := setup(t)
	pc := f.pagamento(t, "Gráfica Lda", "F-1", 2500, fornecedor.MetodoOutro)
	pt := f.pagamento(t, "Limpeza SA", "F-2", 300, fornecedor.MetodoTransferencia)
	f.pagamento(t, "Outro", "F-3", 999, fornecedor.MetodoOutro)

	c, err := f.cheques.Emitir(f.ctx, cheque.Emissao{Numero: "004512", FornecedorID: pc.FornecedorID, PagamentoID: pc.ID})
	if err != nil {
		t.Fatalf("emitir: %v", err)
	}

	dataExtrato := time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC)
	for _, in := range []NovaTransacao{
		{Data: dataExtrato, Descricao: "CHEQUE Nº 004512", Valor: decimal.NewFromInt(2500), Tipo: TipoDebito},
		{Data: dataExtrato, Descricao: "TRANSF LIMPEZA", Valor: decimal.RequireFromString("300.004"), Tipo: TipoDebito},
		{Data: dataExtrato, Descricao: "Comissão", Valor: decimal.NewFromInt(12), Tipo: TipoDebito},
	} {
		if _, err := f.svc.AdicionarManual(f.ctx, in); err != nil {
			t.Fatalf("adicionar: %v", err)
		}
	}

	resumo, err := f.svc.ReconciliarAutomatico(f.ctx)
	if err != nil {
		t.Fatalf("reconciliar: %v", err)
	}
	if resumo.Analisadas != 3 || resumo.Reconciliadas != 2 {
		t.Fatalf("unexpected summary %+v", resumo)
	}

	gotCheque, _ := f.fornecedores.ObterPagamento(f.ctx, pc.FornecedorID, pc.ID)
	if gotCheque.Estado != fornecedor.EstadoPago || !gotCheque.DataPagamento.Equal(dataExtrato) || !gotCheque.Reconciliado {
		t.Fatalf("expected cheque payment paid on statement date, got %+v", gotCheque.Pagamento)
	}
	if !strings.HasSuffix(gotCheque.Observacoes, " | Reconciliado com cheque nº 004512") {
		t.Fatalf("unexpected observacoes %q", gotCheque.Observacoes)
	}

	gotTransf, _ := f.fornecedores.ObterPagamento(f.ctx, pt.FornecedorID, pt.ID)
	if gotTransf.Estado != fornecedor.EstadoPago || gotTransf.Observacoes != "Reconciliado com extrato bancário" {
		t.Fatalf("unexpected transfer payment %+v", gotTransf.Pagamento)
	}

	compensado, _ := f.cheques.ObterPorNumero(f.ctx, "4512")
	if compensado.ID != c.ID || compensado.Estado != cheque.EstadoCompensado || !compensado.DataCompensacao.Equal(dataExtrato) {
		t.Fatalf("expected cheque cleared on statement date, got %+v", compensado)
	}

	reconciliadas := true
	lista, _ := f.svc.Listar(f.ctx, Filtro{Reconciliado: &reconciliadas})
	if len(lista) != 2 {
		t.Fatalf("expected 2 reconciled transactions, got %d", len(lista))
	}
	for _, tr := range lista {
		if tr.PagamentoID == "" || tr.FornecedorID == "" {
			t.Fatalf("reconciled transaction without payment link %+v", tr)
		}
	}
}

func TestReconciliarDesreconciliarIdaEVolta(t *testing.T) {
	f := setup(t)
	p := f.pagamento(t, "Gráfica Lda", "F-9", 500, fornecedor.MetodoOutro)
	tr, err := f.svc.AdicionarManual(f.ctx, NovaTransacao{Data: agora, Descricao: "Transf 500", Valor: decimal.NewFromInt(500), Tipo: TipoDebito})
	if err != nil {
		t.Fatalf("adicionar: %v", err)
	}

	primeira, err := f.svc.ReconciliarManual(f.ctx, tr.ID, p.ID, p.FornecedorID)
	if err != nil {
		t.Fatalf("reconciliar: %v", err)
	}
	if _, err := f.svc.ReconciliarManual(f.ctx, tr.ID, p.ID, p.FornecedorID); !errors.Is(err, ErrJaReconciliada) {
		t.Fatalf("expected ErrJaReconciliada, got %v", err)
	}
	pago, _ := f.fornecedores.ObterPagamento(f.ctx, p.FornecedorID, p.ID)
	if pago.Metodo != fornecedor.MetodoTransferencia || pago.Observacoes != "Reconciliado com transferência bancária" {
		t.Fatalf("unexpected manual reconcile effects %+v", pago.Pagamento)
	}

	desfeita, err := f.svc.Desreconciliar(f.ctx, tr.ID)
	if err != nil {
		t.Fatalf("desreconciliar: %v", err)
	}
	if desfeita.Reconciliado || desfeita.PagamentoID != "" {
		t.Fatalf("expected link cleared, got %+v", desfeita)
	}
	pendente, _ := f.fornecedores.ObterPagamento(f.ctx, p.FornecedorID, p.ID)
	if pendente.Estado != fornecedor.EstadoPendente || pendente.DataPagamento != nil || pendente.Reconciliado {
		t.Fatalf("expected payment back to pendente, got %+v", pendente.Pagamento)
	}
	if _, err := f.svc.Desreconciliar(f.ctx, tr.ID); !errors.Is(err, ErrNaoReconciliada) {
		t.Fatalf("expected ErrNaoReconciliada, got %v", err)
	}

	segunda, err := f.svc.ReconciliarManual(f.ctx, tr.ID, p.ID, p.FornecedorID)
	if err != nil {
		t.Fatalf("reconciliar again: %v", err)
	}
	if segunda.PagamentoID != primeira.PagamentoID || segunda.FornecedorID != primeira.FornecedorID || !segunda.Reconciliado {
		t.Fatalf("expected same linked state, got %+v vs %+v", segunda, primeira)
	}
	novamente, _ := f.fornecedores.ObterPagamento(f.ctx, p.FornecedorID, p.ID)
	if novamente.Estado != fornecedor.EstadoPago || !novamente.DataPagamento.Equal(*pago.DataPagamento) {
		t.Fatalf("expected payment paid again on same date, got %+v", novamente.Pagamento)
	}
}

func TestRemoverDesfazReconciliacao(t *testing.T) {
	f := setup(t)
	p := f.pagamento(t, "Gráfica Lda", "F-5", 80, fornecedor.MetodoOutro)
	tr, _ := f.svc.AdicionarManual(f.ctx, NovaTransacao{Descricao: "Pagamento", Valor: decimal.NewFromInt(80)})
	if tr.Tipo != TipoDebito || !tr.Data.Equal(agora) || tr.Origem != OrigemManual {
		t.Fatalf("unexpected defaults %+v", tr)
	}
	if _, err := f.svc.ReconciliarManual(f.ctx, tr.ID, p.ID, ""); err != nil {
		t.Fatalf("reconciliar: %v", err)
	}
	if err := f.svc.Remover(f.ctx, tr.ID); err != nil {
		t.Fatalf("remover: %v", err)
	}
	got, _ := f.fornecedores.ObterPagamento(f.ctx, p.FornecedorID, p.ID)
	if got.Estado != fornecedor.EstadoPendente {
		t.Fatalf("expected pendente after removal, got %s", got.Estado)
	}
	lista, _ := f.svc.Listar(f.ctx, Filtro{})
	if len(lista) != 0 {
		t.Fatalf("expected empty list, got %d", len(lista))
	}
	if err := f.svc.Remover(f.ctx, tr.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAdicionarManualValida(t *testing.T) {
	f := setup(t)
	if _, err := f.svc.AdicionarManual(context.Background(), NovaTransacao{Descricao: "x", Valor: decimal.NewFromInt(1)}); !errors.Is(err, sessao.ErrNaoAutenticado) {
		t.Fatalf("expected ErrNaoAutenticado, got %v", err)
	}
	if _, err := f.svc.AdicionarManual(f.ctx, NovaTransacao{Descricao: "x"}); !errors.Is(err, ErrValorInvalido) {
		t.Fatalf("expected ErrValorInvalido, got %v", err)
	}
	if _, err := f.svc.AdicionarManual(f.ctx, NovaTransacao{Descricao: "x", Valor: decimal.NewFromInt(1), Tipo: "outro"}); !errors.Is(err, ErrTipoInvalido) {
		t.Fatalf("expected ErrTipoInvalido, got %v", err)
	}
}

type uploaderStub struct {
	objetos []storage.Objeto
}

func (u *uploaderStub) Upload(ctx context.Context, obj storage.Objeto) (*storage.Resultado, error) {
	u.objetos = append(u.objetos, obj)
	return &storage.Resultado{URL: "s3://extratos/" + obj.Chave}, nil
}

func extratoBIM(t *testing.T) []byte {
	t.Helper()
	raw, err := planilha.NovaFolha("Extrato", []string{"Data Mov.", "Descrição", "Crédito", "Débito"}, [][]any{
		{"15/03/2024", "Transf. Gráfica Lda", "", "1.500,00"},
		{"16/03/2024", "Depósito numerário", "2000", ""},
		{"data errada", "Linha inválida", "", "10"},
		{"17/03/2024", "Taxa", "", "0"},
	})
	if err != nil {
		t.Fatalf("extrato: %v", err)
	}
	return raw
}

func TestImportarExtratoBIM(t *testing.T) {
	f := setup(t)
	up := &uploaderStub{}
	f.svc.ComArquivo(up)
	p := f.pagamento(t, "Gráfica Lda", "F-7", 1500, fornecedor.MetodoTransferencia)

	raw := extratoBIM(t)
	res, err := f.svc.Importar(f.ctx, ArquivoExtrato{Nome: "marco.xlsx", Conteudo: raw, Perfil: "BIM", Reconciliar: true})
	if err != nil {
		t.Fatalf("importar: %v", err)
	}
	if res.Importadas != 2 || res.Ignoradas != 2 {
		t.Fatalf("unexpected import result %+v", res)
	}
	if res.Reconciliacao == nil || res.Reconciliacao.Reconciliadas != 1 {
		t.Fatalf("expected one auto reconciliation, got %+v", res.Reconciliacao)
	}
	if len(up.objetos) != 1 || !strings.HasPrefix(up.objetos[0].Chave, "extratos/2024/03/") || !strings.HasPrefix(res.Arquivo, "s3://") {
		t.Fatalf("expected archived statement, got %+v %q", up.objetos, res.Arquivo)
	}

	got, _ := f.fornecedores.ObterPagamento(f.ctx, p.FornecedorID, p.ID)
	if got.Estado != fornecedor.EstadoPago || !got.DataPagamento.Equal(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected payment paid on 15/03, got %+v", got.Pagamento)
	}

	lista, _ := f.svc.Listar(f.ctx, Filtro{Ano: 2024, Mes: time.March})
	if len(lista) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(lista))
	}
	if lista[0].Tipo != TipoCredito || lista[0].Metodo != MetodoDeposito || lista[1].Tipo != TipoDebito || lista[1].Metodo != MetodoTransferencia {
		t.Fatalf("unexpected parsed transactions %+v", lista)
	}

	again, err := f.svc.Importar(f.ctx, ArquivoExtrato{Nome: "marco.xlsx", Conteudo: raw, Perfil: "bim"})
	if err != nil {
		t.Fatalf("reimport: %v", err)
	}
	if again.Importadas != 0 || again.Ignoradas != 4 {
		t.Fatalf("expected duplicates ignored, got %+v", again)
	}

	if _, err := f.svc.Importar(f.ctx, ArquivoExtrato{Conteudo: raw, Perfil: "millennium"}); !errors.Is(err, ErrPerfilInvalido) {
		t.Fatalf("expected ErrPerfilInvalido, got %v", err)
	}
}

func TestConverterPerfis(t *testing.T) {
	linhas := []map[string]string{
		{"Data": "01/03/2024", "Descrição": "Cheque nº 10", "Valor": "-250,50"},
		{"Data": "02/03/2024", "Descrição": "Depósito", "Valor": "100"},
	}
	got, ignoradas, err := Converter(linhas, PerfilBCI, time.UTC)
	if err != nil || ignoradas != 0 || len(got) != 2 {
		t.Fatalf("bci: %v %d %+v", err, ignoradas, got)
	}
	if got[0].Tipo != TipoDebito || !got[0].Valor.Equal(decimal.RequireFromString("250.5")) {
		t.Fatalf("expected signed debit, got %+v", got[0])
	}

	standard := []map[string]string{
		{"Data Valor": "05/03/2024", "Descritivo": "TRF 77", "Montante": "1.000,00", "D/C": "D"},
		{"Data Valor": "06/03/2024", "Descritivo": "Juros", "Montante": "3,10", "D/C": "c"},
	}
	got, _, err = Converter(standard, "Standard", time.UTC)
	if err != nil || len(got) != 2 || got[0].Tipo != TipoDebito || got[1].Tipo != TipoCredito {
		t.Fatalf("standard: %v %+v", err, got)
	}

	generico := []map[string]string{{"Date": "2024-03-07", "Description": "Fee", "Amount": "-5"}}
	got, _, err = Converter(generico, "", time.UTC)
	if err != nil || len(got) != 1 || got[0].Descricao != "Fee" || got[0].Tipo != TipoDebito {
		t.Fatalf("generic: %v %+v", err, got)
	}
}

func TestSincronizarCheques(t *testing.T) {
	f := setup(t)
	p := f.pagamento(t, "Gráfica Lda", "F-3", 640, fornecedor.MetodoOutro)
	c, err := f.cheques.Emitir(f.ctx, cheque.Emissao{Numero: "321", FornecedorID: p.FornecedorID, PagamentoID: p.ID})
	if err != nil {
		t.Fatalf("emitir: %v", err)
	}
	if _, err := f.cheques.Emitir(f.ctx, cheque.Emissao{Numero: "322", Valor: decimal.NewFromInt(10), Beneficiario: "Avulso"}); err != nil {
		t.Fatalf("emitir avulso: %v", err)
	}
	compensacao := time.Date(2024, 3, 19, 0, 0, 0, 0, time.UTC)
	if _, err := f.cheques.Compensar(f.ctx, c.ID, &compensacao); err != nil {
		t.Fatalf("compensar: %v", err)
	}

	n, err := f.svc.SincronizarCheques(f.ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 synced cheque, got %d %v", n, err)
	}
	lista, _ := f.svc.Listar(f.ctx, Filtro{})
	if len(lista) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(lista))
	}
	tr := lista[0]
	if tr.Descricao != "Cheque nº 321 - Gráfica Lda" || tr.Origem != OrigemCheque || !tr.Reconciliado || tr.PagamentoID != p.ID {
		t.Fatalf("unexpected synced transaction %+v", tr)
	}
	got, _ := f.fornecedores.ObterPagamento(f.ctx, p.FornecedorID, p.ID)
	if got.Estado != fornecedor.EstadoPago || !got.DataPagamento.Equal(compensacao) {
		t.Fatalf("expected payment paid on clearing date, got %+v", got.Pagamento)
	}

	if n, _ := f.svc.SincronizarCheques(f.ctx); n != 0 {
		t.Fatalf("expected idempotent sync, got %d", n)
	}
}

func TestExportar(t *testing.T) {
	f := setup(t)
	p := f.pagamento(t, "Gráfica Lda", "F-8", 90, fornecedor.MetodoOutro)
	tr, _ := f.svc.AdicionarManual(f.ctx, NovaTransacao{Data: agora, Descricao: "Pagamento F-8", Valor: decimal.NewFromInt(90)})
	if _, err := f.svc.ReconciliarManual(f.ctx, tr.ID, p.ID, p.FornecedorID); err != nil {
		t.Fatalf("reconciliar: %v", err)
	}

	raw, err := f.svc.Exportar(f.ctx, Filtro{})
	if err != nil {
		t.Fatalf("exportar: %v", err)
	}
	linhas, err := planilha.LerLinhas(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("ler: %v", err)
	}
	if len(linhas) != 1 {
		t.Fatalf("expected 1 row, got %d", len(linhas))
	}
	row := linhas[0]
	if row["Data"] != "20/03/2024" || row["Valor"] != "90.00" || row["Tipo"] != "Débito" || row["Reconciliado"] != "Sim" ||
		row["Pagamento Ref."] != "F-8" || row["Fornecedor"] != "Gráfica Lda" {
		t.Fatalf("unexpected export row %+v", row)
	}
}

// escritaRepetida executa cada função de Update duas vezes sobre o mesmo
// snapshot, descartando a primeira, como acontece quando o backend repete a
// transação depois de um conflito.
type escritaRepetida struct {
	*store.Memory
}

func (s escritaRepetida) Update(ctx context.Context, keys []string, fn func(tx store.Tx) error) error {
	return s.Memory.Update(ctx, keys, func(tx store.Tx) error {
		if err := fn(&rascunho{base: tx, puts: map[string][]byte{}}); err != nil {
			return err
		}
		return fn(tx)
	})
}

type rascunho struct {
	base store.Tx
	puts map[string][]byte
}

func (r *rascunho) Get(key string) ([]byte, error) {
	if v, ok := r.puts[key]; ok {
		return v, nil
	}
	return r.base.Get(key)
}

func (r *rascunho) Put(key string, value []byte) error {
	if _, err := r.base.Get(key); err != nil {
		return err
	}
	r.puts[key] = value
	return nil
}

func setupRepetido(t *testing.T) (fixture, *Service) {
	t.Helper()
	mem := store.NewMemory()
	f := fixture{
		svc:          NewService(mem, zerolog.Nop(), clock, time.UTC),
		fornecedores: fornecedor.NewService(mem, zerolog.Nop(), clock, time.UTC),
		cheques:      cheque.NewService(mem, zerolog.Nop(), clock, time.UTC),
		ctx:          sessao.NoContexto(context.Background(), sessao.Ator{ID: "u1", Username: "tes"}),
	}
	return f, NewService(escritaRepetida{mem}, zerolog.Nop(), clock, time.UTC)
}

func TestDesreconciliarDepoisDeMoverPagamento(t *testing.T) {
	f := setup(t)
	p := f.pagamento(t, "Gráfica Lda", "F-11", 700, fornecedor.MetodoOutro)
	destino, err := f.fornecedores.AdicionarFornecedor(f.ctx, "Gráfica Nova", "")
	if err != nil {
		t.Fatalf("fornecedor: %v", err)
	}
	tr, _ := f.svc.AdicionarManual(f.ctx, NovaTransacao{Data: agora, Descricao: "Transf 700", Valor: decimal.NewFromInt(700)})
	if _, err := f.svc.ReconciliarManual(f.ctx, tr.ID, p.ID, p.FornecedorID); err != nil {
		t.Fatalf("reconciliar: %v", err)
	}
	if _, err := f.fornecedores.MoverPagamento(f.ctx, p.ID, p.FornecedorID, destino.ID); err != nil {
		t.Fatalf("mover: %v", err)
	}
	lista, _ := f.svc.Listar(f.ctx, Filtro{})
	if len(lista) != 1 || lista[0].FornecedorID != destino.ID {
		t.Fatalf("expected transaction to follow the payment, got %+v", lista)
	}

	if _, err := f.svc.Desreconciliar(f.ctx, tr.ID); err != nil {
		t.Fatalf("desreconciliar: %v", err)
	}
	got, err := f.fornecedores.ObterPagamento(f.ctx, destino.ID, p.ID)
	if err != nil {
		t.Fatalf("obter: %v", err)
	}
	if got.Estado != fornecedor.EstadoPendente || got.Reconciliado || got.DataPagamento != nil {
		t.Fatalf("expected moved payment back to pendente, got %+v", got.Pagamento)
	}
}

func TestDesreconciliarSemPagamentoFalha(t *testing.T) {
	f := setup(t)
	tr, _ := f.svc.AdicionarManual(f.ctx, NovaTransacao{Data: agora, Descricao: "Transf", Valor: decimal.NewFromInt(5)})
	err := f.svc.store.Update(f.ctx, []string{store.KeyTransacoesBancarias}, func(tx store.Tx) error {
		transacoes, err := store.Read[[]TransacaoBancaria](tx, store.KeyTransacoesBancarias)
		if err != nil {
			return err
		}
		transacoes[0].Reconciliado = true
		transacoes[0].PagamentoID = "apagado"
		return store.Write(tx, store.KeyTransacoesBancarias, transacoes)
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := f.svc.Desreconciliar(f.ctx, tr.ID); !errors.Is(err, fornecedor.ErrPagamentoNotFound) {
		t.Fatalf("expected ErrPagamentoNotFound, got %v", err)
	}
	lista, _ := f.svc.Listar(f.ctx, Filtro{})
	if !lista[0].Reconciliado {
		t.Fatalf("failed unlink must not be persisted, got %+v", lista[0])
	}
}

func TestPagamentoReconciliadoProtegido(t *testing.T) {
	f := setup(t)
	p := f.pagamento(t, "Gráfica Lda", "F-12", 450, fornecedor.MetodoTransferencia)
	tr, _ := f.svc.AdicionarManual(f.ctx, NovaTransacao{Data: agora, Descricao: "Transf 450", Valor: decimal.NewFromInt(450)})
	if _, err := f.svc.ReconciliarManual(f.ctx, tr.ID, p.ID, p.FornecedorID); err != nil {
		t.Fatalf("reconciliar: %v", err)
	}

	if err := f.fornecedores.RemoverPagamento(f.ctx, p.FornecedorID, p.ID); !errors.Is(err, fornecedor.ErrPagamentoReconciliado) {
		t.Fatalf("expected ErrPagamentoReconciliado on remove, got %v", err)
	}
	dados := fornecedor.DadosPagamento{
		Referencia:     "F-12",
		Valor:          decimal.NewFromInt(450),
		DataVencimento: agora.AddDate(0, 0, 10),
		Metodo:         fornecedor.MetodoTransferencia,
		Estado:         fornecedor.EstadoPendente,
	}
	if _, err := f.fornecedores.AtualizarPagamento(f.ctx, p.FornecedorID, p.ID, dados); !errors.Is(err, fornecedor.ErrPagamentoReconciliado) {
		t.Fatalf("expected ErrPagamentoReconciliado on estado change, got %v", err)
	}
	dados.Estado = fornecedor.EstadoPago
	dados.Observacoes = "conferido"
	if _, err := f.fornecedores.AtualizarPagamento(f.ctx, p.FornecedorID, p.ID, dados); err != nil {
		t.Fatalf("editing a paid reconciled payment must work, got %v", err)
	}

	if _, err := f.svc.Desreconciliar(f.ctx, tr.ID); err != nil {
		t.Fatalf("desreconciliar: %v", err)
	}
	if err := f.fornecedores.RemoverPagamento(f.ctx, p.FornecedorID, p.ID); err != nil {
		t.Fatalf("expected removal after unlink, got %v", err)
	}
}

func TestReconciliarManualComChequeCancelado(t *testing.T) {
	f := setup(t)
	p := f.pagamento(t, "Gráfica Lda", "F-13", 120, fornecedor.MetodoOutro)
	c, err := f.cheques.Emitir(f.ctx, cheque.Emissao{Numero: "777", FornecedorID: p.FornecedorID, PagamentoID: p.ID})
	if err != nil {
		t.Fatalf("emitir: %v", err)
	}
	tr, _ := f.svc.AdicionarManual(f.ctx, NovaTransacao{Data: agora, Descricao: "Cheque 777", Valor: decimal.NewFromInt(120), Metodo: MetodoCheque, ChequeNumero: "777"})
	if tr.ChequeID != c.ID {
		t.Fatalf("expected cheque linked on creation, got %+v", tr)
	}
	if _, err := f.cheques.Cancelar(f.ctx, c.ID); err != nil {
		t.Fatalf("cancelar: %v", err)
	}

	if _, err := f.svc.ReconciliarManual(f.ctx, tr.ID, p.ID, p.FornecedorID); err != nil {
		t.Fatalf("reconciliar: %v", err)
	}
	got, _ := f.fornecedores.ObterPagamento(f.ctx, p.FornecedorID, p.ID)
	if got.Estado != fornecedor.EstadoPago {
		t.Fatalf("expected payment paid, got %s", got.Estado)
	}
	cancelados, _ := f.cheques.Listar(f.ctx, cheque.EstadoCancelado)
	if len(cancelados) != 1 || cancelados[0].DataCompensacao != nil {
		t.Fatalf("cancelled cheque must stay untouched, got %+v", cancelados)
	}
}

func TestContadoresComEscritaRepetida(t *testing.T) {
	f, repetido := setupRepetido(t)
	p := f.pagamento(t, "Gráfica Lda", "F-14", 640, fornecedor.MetodoOutro)
	c, _ := f.cheques.Emitir(f.ctx, cheque.Emissao{Numero: "900", FornecedorID: p.FornecedorID, PagamentoID: p.ID})
	compensacao := time.Date(2024, 3, 19, 0, 0, 0, 0, time.UTC)
	if _, err := f.cheques.Compensar(f.ctx, c.ID, &compensacao); err != nil {
		t.Fatalf("compensar: %v", err)
	}

	n, err := repetido.SincronizarCheques(f.ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 synced cheque, got %d %v", n, err)
	}
	if lista, _ := f.svc.Listar(f.ctx, Filtro{}); len(lista) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(lista))
	}

	raw := extratoBIM(t)
	if _, err := f.svc.Importar(f.ctx, ArquivoExtrato{Conteudo: raw, Perfil: "BIM"}); err != nil {
		t.Fatalf("importar: %v", err)
	}
	res, err := repetido.Importar(f.ctx, ArquivoExtrato{Conteudo: raw, Perfil: "BIM", Reconciliar: true})
	if err != nil {
		t.Fatalf("reimportar: %v", err)
	}
	if res.Importadas != 0 || res.Ignoradas != 4 || res.Reconciliacao != nil {
		t.Fatalf("expected counters from a single attempt, got %+v", res)
	}
}
