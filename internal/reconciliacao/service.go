package reconciliacao

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/gestaofinanceira/tesouraria/internal/cheque"
	"github.com/gestaofinanceira/tesouraria/internal/fornecedor"
	"github.com/gestaofinanceira/tesouraria/internal/planilha"
	"github.com/gestaofinanceira/tesouraria/internal/sessao"
	"github.com/gestaofinanceira/tesouraria/internal/storage"
	"github.com/gestaofinanceira/tesouraria/internal/store"
	"github.com/gestaofinanceira/tesouraria/internal/util"
)

// NomeExportacao é o nome do ficheiro gerado por Exportar.
const NomeExportacao = "reconciliacao-bancaria.xlsx"

// ArquivoExtrato é um extrato bancário enviado para importação.
type ArquivoExtrato struct {
	Nome        string
	Conteudo    []byte
	Perfil      string
	Reconciliar bool
}

// Service mantém as transações bancárias e a sua ligação aos pagamentos.
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

// ComArquivo define onde são guardados os extratos importados e as exportações.
func (s *Service) ComArquivo(u storage.Uploader) {
	if u != nil {
		s.arquivo = u
	}
}

func (s *Service) now() time.Time {
	return s.clock.Now().In(s.loc)
}

// estado reúne as três coleções alteradas pela reconciliação.
type estado struct {
	transacoes []TransacaoBancaria
	cheques    []cheque.Cheque
	ledger     *fornecedor.Ledger
}

var chavesReconciliacao = []string{store.KeyTransacoesBancarias, store.KeyCheques, store.KeyFornecedores}

func (s *Service) update(ctx context.Context, fn func(e *estado) error) error {
	ator, err := sessao.Exigir(ctx)
	if err != nil {
		return err
	}
	now := s.now()
	return s.store.Update(ctx, chavesReconciliacao, func(tx store.Tx) error {
		transacoes, err := store.Read[[]TransacaoBancaria](tx, store.KeyTransacoesBancarias)
		if err != nil {
			return err
		}
		cheques, err := store.Read[[]cheque.Cheque](tx, store.KeyCheques)
		if err != nil {
			return err
		}
		l, err := fornecedor.Abrir(tx, ator, now)
		if err != nil {
			return err
		}
		e := &estado{transacoes: transacoes, cheques: cheques, ledger: l}
		if err := fn(e); err != nil {
			return err
		}
		if e.transacoes == nil {
			e.transacoes = []TransacaoBancaria{}
		}
		if err := store.Write(tx, store.KeyTransacoesBancarias, e.transacoes); err != nil {
			return err
		}
		if e.cheques == nil {
			e.cheques = []cheque.Cheque{}
		}
		if err := store.Write(tx, store.KeyCheques, e.cheques); err != nil {
			return err
		}
		return l.Salvar(tx)
	})
}

func (e *estado) indice(id string) int {
	for i := range e.transacoes {
		if e.transacoes[i].ID == id {
			return i
		}
	}
	return -1
}

// chequeRegistado procura um cheque ativo com o número citado na transação.
func (e *estado) chequeRegistado(numero string) *cheque.Cheque {
	if numero == "" {
		return nil
	}
	if c, ok := indiceAtivo(e.cheques)[cheque.NormalizarNumero(numero)]; ok {
		return &c
	}
	return nil
}

func (e *estado) chequeCancelado(id string) bool {
	for _, c := range e.cheques {
		if c.ID == id {
			return c.Estado == cheque.EstadoCancelado
		}
	}
	return false
}

// vincular liquida o pagamento pela transação, compensando o cheque quando houver.
// O pagamento é procurado só pelo ID, porque pode ter mudado de fornecedor.
// Cheques cancelados não são compensados.
func (e *estado) vincular(i int, pagamentoID, chequeID string, manual bool) error {
	t := &e.transacoes[i]
	metodo := ""
	if manual {
		switch {
		case t.Metodo == MetodoCheque && t.ChequeNumero != "":
			metodo = fornecedor.MetodoCheque
		case t.Metodo == MetodoTransferencia:
			metodo = fornecedor.MetodoTransferencia
		}
	}
	p, err := e.ledger.Conciliar("", pagamentoID, t.ID, t.Data, metodo, NotaReconciliacao(*t, manual))
	if err != nil {
		return err
	}
	pf, err := e.ledger.Obter("", p.ID)
	if err != nil {
		return err
	}
	if chequeID != "" && !e.chequeCancelado(chequeID) {
		if err := cheque.Compensar(e.cheques, chequeID, t.Data); err != nil {
			return err
		}
		t.ChequeID = chequeID
	}
	t.Reconciliado = true
	t.PagamentoID = p.ID
	t.FornecedorID = pf.FornecedorID
	if !manual {
		t.Metodo = metodoTransacao(p.Metodo, t.Metodo)
	}
	return nil
}

// desvincular devolve o pagamento a pendente. O cheque mantém o estado.
func (e *estado) desvincular(i int) error {
	t := &e.transacoes[i]
	if !t.Reconciliado {
		return ErrNaoReconciliada
	}
	if t.PagamentoID != "" {
		if _, err := e.ledger.Reabrir("", t.PagamentoID, "Reconciliação bancária removida"); err != nil {
			return err
		}
	}
	t.Reconciliado = false
	t.PagamentoID = ""
	t.FornecedorID = ""
	return nil
}

func (e *estado) conciliar(alvo []TransacaoBancaria) (Resumo, error) {
	resumo := Resumo{Correspondencias: []Correspondencia{}}
	for _, t := range alvo {
		if t.Tipo == TipoDebito && !t.Reconciliado {
			resumo.Analisadas++
		}
	}
	for _, c := range Conciliar(alvo, e.ledger.PagamentosEmAberto(), e.cheques) {
		i := e.indice(c.TransacaoID)
		if i < 0 {
			continue
		}
		if err := e.vincular(i, c.PagamentoID, c.ChequeID, false); err != nil {
			return Resumo{}, fmt.Errorf("reconciliar %s: %w", c.TransacaoID, err)
		}
		resumo.Correspondencias = append(resumo.Correspondencias, c)
	}
	resumo.Reconciliadas = len(resumo.Correspondencias)
	return resumo, nil
}

func chaveDuplicado(data time.Time, valor decimal.Decimal, tipo, descricao string) string {
	return strings.Join([]string{
		data.Format("2006-01-02"),
		valor.StringFixed(2),
		tipo,
		strings.ToLower(strings.TrimSpace(descricao)),
	}, "|")
}

func (e *estado) novaTransacao(in NovaTransacao, origem, arquivo string, now time.Time) TransacaoBancaria {
	t := TransacaoBancaria{
		ID:           util.NewID(),
		Data:         in.Data,
		Descricao:    in.Descricao,
		Valor:        in.Valor,
		Tipo:         in.Tipo,
		Metodo:       in.Metodo,
		ChequeNumero: strings.TrimSpace(in.ChequeNumero),
		Origem:       origem,
		Arquivo:      arquivo,
		CriadoEm:     now,
	}
	if t.Metodo == "" {
		t.Metodo = DetectarMetodo(t.Descricao)
	}
	if t.Metodo == MetodoCheque && t.ChequeNumero == "" {
		t.ChequeNumero = ExtrairNumeroCheque(t.Descricao)
	}
	if c := e.chequeRegistado(t.ChequeNumero); c != nil {
		t.ChequeID = c.ID
	}
	return t
}

// Importar lê o extrato com o perfil do banco e grava as transações novas.
// Linhas já importadas são ignoradas. O ficheiro original é arquivado sem
// bloquear a importação.
func (s *Service) Importar(ctx context.Context, arq ArquivoExtrato) (*ResultadoImportacao, error) {
	if _, err := sessao.Exigir(ctx); err != nil {
		return nil, err
	}
	linhas, err := planilha.LerLinhas(bytes.NewReader(arq.Conteudo))
	if err != nil {
		if errors.Is(err, planilha.ErrPlanilhaVazia) {
			return nil, ErrSemTransacoes
		}
		return nil, util.Invalido(err.Error())
	}
	novas, ignoradas, err := Converter(linhas, arq.Perfil, s.loc)
	if err != nil {
		return nil, err
	}
	if len(novas) == 0 {
		return nil, ErrSemTransacoes
	}

	now := s.now()
	nome := strings.TrimSpace(arq.Nome)
	if nome == "" {
		nome = "extrato.xlsx"
	}
	res := &ResultadoImportacao{}
	if r := storage.Arquivar(ctx, s.arquivo, s.logger, storage.Objeto{
		Chave:       storage.Chave("extratos", now, nome),
		Corpo:       arq.Conteudo,
		ContentType: planilha.ContentType,
	}); r != nil {
		res.Arquivo = r.URL
	}

	err = s.update(ctx, func(e *estado) error {
		// A escrita pode ser repetida em conflito; os contadores recomeçam.
		res.Ignoradas, res.Importadas, res.Reconciliacao = ignoradas, 0, nil
		existentes := make(map[string]bool, len(e.transacoes))
		for _, t := range e.transacoes {
			existentes[chaveDuplicado(t.Data, t.Valor, t.Tipo, t.Descricao)] = true
		}
		var lote []TransacaoBancaria
		for _, in := range novas {
			k := chaveDuplicado(in.Data, in.Valor, in.Tipo, in.Descricao)
			if existentes[k] {
				res.Ignoradas++
				continue
			}
			existentes[k] = true
			lote = append(lote, e.novaTransacao(in, OrigemImportado, nome, now))
		}
		e.transacoes = append(e.transacoes, lote...)
		res.Importadas = len(lote)
		if arq.Reconciliar && len(lote) > 0 {
			resumo, err := e.conciliar(lote)
			if err != nil {
				return err
			}
			res.Reconciliacao = &resumo
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("arquivo", nome).
		Int("importadas", res.Importadas).
		Int("ignoradas", res.Ignoradas).
		Msg("extrato importado")
	return res, nil
}

// AdicionarManual regista uma transação digitada pelo utilizador.
func (s *Service) AdicionarManual(ctx context.Context, in NovaTransacao) (*TransacaoBancaria, error) {
	in.Descricao = strings.TrimSpace(in.Descricao)
	in.Tipo = strings.ToLower(strings.TrimSpace(in.Tipo))
	in.Metodo = strings.ToLower(strings.TrimSpace(in.Metodo))
	if err := util.RequireString(in.Descricao, "descrição"); err != nil {
		return nil, err
	}
	if !in.Valor.IsPositive() {
		return nil, ErrValorInvalido
	}
	if in.Tipo == "" {
		in.Tipo = TipoDebito
	}
	if in.Tipo != TipoCredito && in.Tipo != TipoDebito {
		return nil, ErrTipoInvalido
	}
	switch in.Metodo {
	case "", MetodoCheque, MetodoTransferencia, MetodoDeposito, MetodoOutro:
	default:
		return nil, util.Invalido("método de transação inválido")
	}
	now := s.now()
	if in.Data.IsZero() {
		in.Data = now
	}

	var result TransacaoBancaria
	err := s.update(ctx, func(e *estado) error {
		result = e.novaTransacao(in, OrigemManual, "", now)
		e.transacoes = append(e.transacoes, result)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ReconciliarAutomatico procura correspondência para todos os débitos em aberto.
func (s *Service) ReconciliarAutomatico(ctx context.Context) (*Resumo, error) {
	var resumo Resumo
	err := s.update(ctx, func(e *estado) error {
		var err error
		resumo, err = e.conciliar(e.transacoes)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int("analisadas", resumo.Analisadas).Int("reconciliadas", resumo.Reconciliadas).Msg("reconciliação automática")
	return &resumo, nil
}

// ReconciliarManual liga a transação ao pagamento indicado, sem comparar valores.
func (s *Service) ReconciliarManual(ctx context.Context, transacaoID, pagamentoID, fornecedorID string) (*TransacaoBancaria, error) {
	if strings.TrimSpace(pagamentoID) == "" {
		return nil, util.Invalido("pagamento obrigatório")
	}
	var result TransacaoBancaria
	err := s.update(ctx, func(e *estado) error {
		i := e.indice(transacaoID)
		if i < 0 {
			return ErrNotFound
		}
		t := e.transacoes[i]
		if t.Reconciliado {
			return ErrJaReconciliada
		}
		chequeID := ""
		if t.Metodo == MetodoCheque && t.ChequeNumero != "" {
			chequeID = t.ChequeID
		}
		if fornecedorID != "" {
			if _, err := e.ledger.Obter(fornecedorID, pagamentoID); err != nil {
				return err
			}
		}
		if err := e.vincular(i, pagamentoID, chequeID, true); err != nil {
			return err
		}
		result = e.transacoes[i]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Desreconciliar desfaz a ligação e devolve o pagamento a pendente.
func (s *Service) Desreconciliar(ctx context.Context, transacaoID string) (*TransacaoBancaria, error) {
	var result TransacaoBancaria
	err := s.update(ctx, func(e *estado) error {
		i := e.indice(transacaoID)
		if i < 0 {
			return ErrNotFound
		}
		if err := e.desvincular(i); err != nil {
			return err
		}
		result = e.transacoes[i]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Remover apaga a transação, desfazendo antes a reconciliação.
func (s *Service) Remover(ctx context.Context, transacaoID string) error {
	return s.update(ctx, func(e *estado) error {
		i := e.indice(transacaoID)
		if i < 0 {
			return ErrNotFound
		}
		if e.transacoes[i].Reconciliado {
			if err := e.desvincular(i); err != nil {
				return err
			}
		}
		e.transacoes = append(e.transacoes[:i], e.transacoes[i+1:]...)
		return nil
	})
}

// SincronizarCheques cria débitos para cheques compensados que ainda não
// aparecem no extrato. Cheques ligados a pagamento deixam o pagamento liquidado.
func (s *Service) SincronizarCheques(ctx context.Context) (int, error) {
	now := s.now()
	var criadas int
	err := s.update(ctx, func(e *estado) error {
		criadas = 0
		comTransacao := make(map[string]bool)
		for _, t := range e.transacoes {
			if t.ChequeID != "" {
				comTransacao[t.ChequeID] = true
			}
		}
		for _, c := range e.cheques {
			if c.Estado != cheque.EstadoCompensado || c.DataCompensacao == nil || comTransacao[c.ID] {
				continue
			}
			t := TransacaoBancaria{
				ID:           util.NewID(),
				Data:         *c.DataCompensacao,
				Descricao:    fmt.Sprintf("Cheque nº %s - %s", c.Numero, c.Beneficiario),
				Valor:        c.Valor,
				Tipo:         TipoDebito,
				ChequeID:     c.ID,
				ChequeNumero: c.Numero,
				Metodo:       MetodoCheque,
				Origem:       OrigemCheque,
				CriadoEm:     now,
			}
			e.transacoes = append(e.transacoes, t)
			criadas++
			if c.PagamentoID == "" {
				continue
			}
			if _, err := e.ledger.Obter("", c.PagamentoID); err != nil {
				s.logger.Warn().Str("cheque", c.Numero).Msg("pagamento do cheque não encontrado")
				continue
			}
			if err := e.vincular(len(e.transacoes)-1, c.PagamentoID, "", false); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return criadas, nil
}

// Listar devolve as transações do filtro, mais recentes primeiro.
func (s *Service) Listar(ctx context.Context, f Filtro) ([]TransacaoBancaria, error) {
	transacoes, err := store.Load[[]TransacaoBancaria](ctx, s.store, store.KeyTransacoesBancarias)
	if err != nil {
		return nil, err
	}
	busca := strings.ToLower(strings.TrimSpace(f.Busca))
	out := make([]TransacaoBancaria, 0, len(transacoes))
	for _, t := range transacoes {
		data := t.Data.In(s.loc)
		if f.Ano != 0 && data.Year() != f.Ano {
			continue
		}
		if f.Mes != 0 && data.Month() != f.Mes {
			continue
		}
		if busca != "" && !strings.Contains(strings.ToLower(t.Descricao), busca) {
			continue
		}
		if f.Reconciliado != nil && t.Reconciliado != *f.Reconciliado {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Data.After(out[j].Data) })
	return out, nil
}

// Exportar gera a folha "Reconciliação" com as transações do filtro.
func (s *Service) Exportar(ctx context.Context, f Filtro) ([]byte, error) {
	transacoes, err := s.Listar(ctx, f)
	if err != nil {
		return nil, err
	}
	fornecedores, err := store.Load[[]fornecedor.Fornecedor](ctx, s.store, store.KeyFornecedores)
	if err != nil {
		return nil, err
	}
	type ref struct{ referencia, fornecedor string }
	refs := make(map[string]ref)
	for _, forn := range fornecedores {
		for _, p := range forn.Pagamentos {
			refs[p.ID] = ref{referencia: p.Referencia, fornecedor: forn.Nome}
		}
	}

	linhas := make([][]any, 0, len(transacoes))
	for _, t := range transacoes {
		tipo := "Débito"
		if t.Tipo == TipoCredito {
			tipo = "Crédito"
		}
		reconciliado := "Não"
		if t.Reconciliado {
			reconciliado = "Sim"
		}
		r := refs[t.PagamentoID]
		linhas = append(linhas, []any{
			util.FormatDate(t.Data.In(s.loc)),
			t.Descricao,
			t.Valor.StringFixed(2),
			tipo,
			reconciliado,
			r.referencia,
			r.fornecedor,
		})
	}
	cabecalho := []string{"Data", "Descrição", "Valor", "Tipo", "Reconciliado", "Pagamento Ref.", "Fornecedor"}
	out, err := planilha.NovaFolha("Reconciliação", cabecalho, linhas)
	if err != nil {
		return nil, err
	}
	storage.Arquivar(ctx, s.arquivo, s.logger, storage.Objeto{
		Chave:       storage.Chave("exportacoes", s.now(), NomeExportacao),
		Corpo:       out,
		ContentType: planilha.ContentType,
	})
	return out, nil
}
