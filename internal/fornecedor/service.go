package fornecedor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gestaofinanceira/tesouraria/internal/fundomaneio"
	"github.com/gestaofinanceira/tesouraria/internal/sessao"
	"github.com/gestaofinanceira/tesouraria/internal/store"
	"github.com/gestaofinanceira/tesouraria/internal/usuario"
	"github.com/gestaofinanceira/tesouraria/internal/util"
)

// VerificadorAprovacao informa se o pagamento tem workflow aprovado.
type VerificadorAprovacao interface {
	AprovacaoConcedida(ctx context.Context, pagamentoID string) (bool, error)
}

// PermissionChecker resolve permissões do ator.
type PermissionChecker interface {
	TemPermissao(ctx context.Context, usuarioID, permissao string) (bool, error)
}

// Service mantém fornecedores e o livro de pagamentos.
type Service struct {
	store      store.Store
	logger     zerolog.Logger
	clock      util.Clock
	loc        *time.Location
	aprovacoes VerificadorAprovacao
	permissoes PermissionChecker
}

// NewService cria uma nova instância do serviço.
func NewService(s store.Store, logger zerolog.Logger, clock util.Clock, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{store: s, logger: logger, clock: clock, loc: loc}
}

// ComAprovacao liga a verificação de aprovação usada por MarcarComoPago.
func (s *Service) ComAprovacao(v VerificadorAprovacao, p PermissionChecker) {
	s.aprovacoes = v
	s.permissoes = p
}

func (s *Service) now() time.Time {
	return s.clock.Now().In(s.loc)
}

// update abre o livro na transação das chaves pedidas e grava no fim.
func (s *Service) update(ctx context.Context, keys []string, fn func(tx store.Tx, l *Ledger) error) error {
	ator, err := sessao.Exigir(ctx)
	if err != nil {
		return err
	}
	now := s.now()
	return s.store.Update(ctx, append([]string{store.KeyFornecedores}, keys...), func(tx store.Tx) error {
		l, err := Abrir(tx, ator, now)
		if err != nil {
			return err
		}
		if err := fn(tx, l); err != nil {
			return err
		}
		return l.Salvar(tx)
	})
}

func (s *Service) carregar(ctx context.Context) ([]Fornecedor, error) {
	return store.Load[[]Fornecedor](ctx, s.store, store.KeyFornecedores)
}

// Listar devolve todos os fornecedores ordenados por nome.
func (s *Service) Listar(ctx context.Context) ([]Fornecedor, error) {
	fornecedores, err := s.carregar(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(fornecedores, func(i, j int) bool {
		return strings.ToLower(fornecedores[i].Nome) < strings.ToLower(fornecedores[j].Nome)
	})
	return fornecedores, nil
}

// Obter busca fornecedor pelo id.
func (s *Service) Obter(ctx context.Context, id string) (*Fornecedor, error) {
	fornecedores, err := s.carregar(ctx)
	if err != nil {
		return nil, err
	}
	for _, f := range fornecedores {
		if f.ID == id {
			return &f, nil
		}
	}
	return nil, ErrNotFound
}

// ObterPagamento devolve o pagamento com os dados do fornecedor.
func (s *Service) ObterPagamento(ctx context.Context, fornecedorID, pagamentoID string) (*PagamentoComFornecedor, error) {
	fornecedores, err := s.carregar(ctx)
	if err != nil {
		return nil, err
	}
	l := &Ledger{Fornecedores: fornecedores}
	p, err := l.Obter(fornecedorID, pagamentoID)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Pagamentos devolve a visão achatada de todos os pagamentos.
func (s *Service) Pagamentos(ctx context.Context) ([]PagamentoComFornecedor, error) {
	fornecedores, err := s.carregar(ctx)
	if err != nil {
		return nil, err
	}
	var out []PagamentoComFornecedor
	for _, f := range fornecedores {
		for _, p := range f.Pagamentos {
			out = append(out, PagamentoComFornecedor{Pagamento: p, FornecedorID: f.ID, FornecedorNome: f.Nome})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DataVencimento.Before(out[j].DataVencimento)
	})
	return out, nil
}

// EmAberto devolve as faturas ainda não pagas.
func (s *Service) EmAberto(ctx context.Context) ([]PagamentoComFornecedor, error) {
	fornecedores, err := s.carregar(ctx)
	if err != nil {
		return nil, err
	}
	l := &Ledger{Fornecedores: fornecedores}
	return l.PagamentosEmAberto(), nil
}

// AdicionarFornecedor cadastra um fornecedor sem pagamentos.
func (s *Service) AdicionarFornecedor(ctx context.Context, nome, email string) (*Fornecedor, error) {
	nome = strings.TrimSpace(nome)
	if err := util.RequireString(nome, "nome"); err != nil {
		return nil, err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email != "" {
		if err := util.ValidateEmail(email); err != nil {
			return nil, err
		}
	}

	var result Fornecedor
	err := s.update(ctx, nil, func(_ store.Tx, l *Ledger) error {
		if l.fornecedorPorNome(nome) >= 0 {
			return ErrFornecedorDuplicado
		}
		result = Fornecedor{ID: util.NewID(), Nome: nome, Email: email, Pagamentos: []Pagamento{}}
		l.Fornecedores = append(l.Fornecedores, result)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("fornecedor", result.ID).Msg("fornecedor criado")
	return &result, nil
}

// AtualizarFornecedor altera nome e email de contacto.
func (s *Service) AtualizarFornecedor(ctx context.Context, id string, nome, email *string) (*Fornecedor, error) {
	var result Fornecedor
	err := s.update(ctx, nil, func(_ store.Tx, l *Ledger) error {
		i := l.fornecedorIndex(id)
		if i < 0 {
			return ErrNotFound
		}
		if nome != nil {
			n := strings.TrimSpace(*nome)
			if err := util.RequireString(n, "nome"); err != nil {
				return err
			}
			if j := l.fornecedorPorNome(n); j >= 0 && j != i {
				return ErrFornecedorDuplicado
			}
			l.Fornecedores[i].Nome = n
		}
		if email != nil {
			e := strings.ToLower(strings.TrimSpace(*email))
			if e != "" {
				if err := util.ValidateEmail(e); err != nil {
					return err
				}
			}
			l.Fornecedores[i].Email = e
		}
		result = l.Fornecedores[i]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// RemoverFornecedor exclui fornecedor sem pagamentos.
func (s *Service) RemoverFornecedor(ctx context.Context, id string) error {
	return s.update(ctx, nil, func(_ store.Tx, l *Ledger) error {
		i := l.fornecedorIndex(id)
		if i < 0 {
			return ErrNotFound
		}
		if len(l.Fornecedores[i].Pagamentos) > 0 {
			return ErrFornecedorComPagamentos
		}
		l.Fornecedores = append(l.Fornecedores[:i], l.Fornecedores[i+1:]...)
		return nil
	})
}

func (l *Ledger) criarPagamento(fi int, in DadosPagamento) Pagamento {
	p := Pagamento{ID: util.NewID()}
	in.aplicar(&p)
	if p.Estado == EstadoPago {
		data := l.now
		if p.DataPagamento != nil {
			data = *p.DataPagamento
		}
		p.marcarPago(data)
	}
	l.registrar(&p, AcaoCriar, "Pagamento criado: "+p.Referencia, nil, p.snapshot())
	l.Fornecedores[fi].Pagamentos = append(l.Fornecedores[fi].Pagamentos, p)
	return p
}

// AdicionarPagamento acrescenta pagamento a um fornecedor existente.
func (s *Service) AdicionarPagamento(ctx context.Context, fornecedorID string, in DadosPagamento) (*Pagamento, error) {
	if err := in.normalizar(); err != nil {
		return nil, err
	}
	var result Pagamento
	err := s.update(ctx, nil, func(_ store.Tx, l *Ledger) error {
		fi := l.fornecedorIndex(fornecedorID)
		if fi < 0 {
			return ErrNotFound
		}
		result = l.criarPagamento(fi, in)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// AdicionarPagamentoPorNome cria o fornecedor quando o nome ainda não existe.
func (s *Service) AdicionarPagamentoPorNome(ctx context.Context, nome string, in DadosPagamento) (*PagamentoComFornecedor, error) {
	nome = strings.TrimSpace(nome)
	if err := util.RequireString(nome, "fornecedor"); err != nil {
		return nil, err
	}
	if err := in.normalizar(); err != nil {
		return nil, err
	}
	var result PagamentoComFornecedor
	err := s.update(ctx, nil, func(_ store.Tx, l *Ledger) error {
		fi := l.fornecedorPorNome(nome)
		if fi < 0 {
			l.Fornecedores = append(l.Fornecedores, Fornecedor{ID: util.NewID(), Nome: nome, Pagamentos: []Pagamento{}})
			fi = len(l.Fornecedores) - 1
		}
		p := l.criarPagamento(fi, in)
		result = PagamentoComFornecedor{Pagamento: p, FornecedorID: l.Fornecedores[fi].ID, FornecedorNome: l.Fornecedores[fi].Nome}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// AtualizarPagamento substitui os campos editáveis e registra o resumo da alteração.
// Mudar para fundo de maneio já pago lança a saída; sair de fundo de maneio
// desvincula o movimento.
func (s *Service) AtualizarPagamento(ctx context.Context, fornecedorID, pagamentoID string, in DadosPagamento) (*Pagamento, error) {
	if err := in.normalizar(); err != nil {
		return nil, err
	}
	var result Pagamento
	err := s.update(ctx, []string{store.KeyFundosManeio, store.KeyTransacoesBancarias}, func(tx store.Tx, l *Ledger) error {
		fi, pi, err := l.Localizar(fornecedorID, pagamentoID)
		if err != nil {
			return err
		}
		f := l.Fornecedores[fi]
		atual := f.Pagamentos[pi]

		next := atual
		in.aplicar(&next)
		if next.Estado != EstadoPago {
			ok, err := reconciliado(tx, atual)
			if err != nil {
				return err
			}
			if ok {
				return ErrPagamentoReconciliado
			}
		}
		if next.Estado == EstadoPago {
			data := l.now
			if next.DataPagamento != nil {
				data = *next.DataPagamento
			}
			next.marcarPago(data)
		}

		if next.Metodo == MetodoFundoManeio || atual.FundoManeioID != "" {
			fundos, err := store.Read[[]fundomaneio.FundoManeio](tx, store.KeyFundosManeio)
			if err != nil {
				return err
			}
			switch {
			case next.Metodo == MetodoFundoManeio && next.Estado == EstadoPago && atual.FundoManeioID == "":
				atualizados, mov, err := fundomaneio.Aplicar(fundos, fundomaneio.NovoMovimento{
					Tipo:                fundomaneio.TipoSaida,
					Valor:               next.Valor,
					Descricao:           fmt.Sprintf("Pagamento a %s - Ref: %s", f.Nome, next.Referencia),
					Data:                next.DataPagamento,
					PagamentoID:         next.ID,
					PagamentoReferencia: next.Referencia,
					FornecedorNome:      f.Nome,
				}, l.now, l.ator.Username)
				if errors.Is(err, fundomaneio.ErrSaldoInsuficiente) {
					s.logger.Warn().Str("pagamento", next.ID).Msg("saldo insuficiente no fundo de maneio; pagamento atualizado sem movimento")
					break
				}
				if err != nil {
					return err
				}
				next.FundoManeioID = mov.ID
				fundos = atualizados
			case next.Metodo != MetodoFundoManeio && atual.FundoManeioID != "":
				fundos = fundomaneio.Desvincular(fundos, atual.FundoManeioID)
				next.FundoManeioID = ""
			}
			if err := store.Write(tx, store.KeyFundosManeio, fundos); err != nil {
				return err
			}
		}

		detalhes := "Pagamento atualizado: " + next.Referencia
		if campos := camposAlterados(atual, next); len(campos) > 0 {
			detalhes += " (" + strings.Join(campos, ", ") + ")"
		}
		l.registrar(&next, AcaoAtualizar, detalhes, atual.snapshot(), next.snapshot())
		l.Fornecedores[fi].Pagamentos[pi] = next
		result = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// RemoverPagamento exclui o pagamento e arquiva-o com o histórico completo.
func (s *Service) RemoverPagamento(ctx context.Context, fornecedorID, pagamentoID string) error {
	return s.update(ctx, []string{store.KeyPagamentosRemovidos, store.KeyTransacoesBancarias}, func(tx store.Tx, l *Ledger) error {
		fi, pi, err := l.Localizar(fornecedorID, pagamentoID)
		if err != nil {
			return err
		}
		f := &l.Fornecedores[fi]
		p := f.Pagamentos[pi]
		if ok, err := reconciliado(tx, p); err != nil {
			return err
		} else if ok {
			return ErrPagamentoReconciliado
		}
		l.registrar(&p, AcaoRemover, "Pagamento removido: "+p.Referencia, p.snapshot(), nil)

		removidos, err := store.Read[[]PagamentoRemovido](tx, store.KeyPagamentosRemovidos)
		if err != nil {
			return err
		}
		removidos = append(removidos, PagamentoRemovido{
			FornecedorID:   f.ID,
			FornecedorNome: f.Nome,
			RemovidoEm:     l.now,
			Pagamento:      p,
		})
		if err := store.Write(tx, store.KeyPagamentosRemovidos, removidos); err != nil {
			return err
		}

		f.Pagamentos = append(f.Pagamentos[:pi:pi], f.Pagamentos[pi+1:]...)
		return nil
	})
}

// HistoricoRemovidos devolve os pagamentos excluídos, mais recentes primeiro.
func (s *Service) HistoricoRemovidos(ctx context.Context) ([]PagamentoRemovido, error) {
	removidos, err := store.Load[[]PagamentoRemovido](ctx, s.store, store.KeyPagamentosRemovidos)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(removidos, func(i, j int) bool {
		return removidos[i].RemovidoEm.After(removidos[j].RemovidoEm)
	})
	return removidos, nil
}

// MoverPagamento transfere o pagamento entre fornecedores numa única escrita,
// levando junto as transações bancárias, cheques e workflows que o referenciam.
func (s *Service) MoverPagamento(ctx context.Context, pagamentoID, origemID, destinoID string) (*Pagamento, error) {
	if origemID == destinoID {
		return nil, ErrMesmoFornecedor
	}
	var result Pagamento
	err := s.update(ctx, chavesReferencias(), func(tx store.Tx, l *Ledger) error {
		fi, pi, err := l.Localizar(origemID, pagamentoID)
		if err != nil {
			return err
		}
		di := l.fornecedorIndex(destinoID)
		if di < 0 {
			return ErrNotFound
		}
		origem := &l.Fornecedores[fi]
		p := origem.Pagamentos[pi]
		antes := p.snapshot()
		detalhes := fmt.Sprintf("Pagamento %s transferido de %s para %s", p.Referencia, origem.Nome, l.Fornecedores[di].Nome)
		l.registrar(&p, AcaoTransferir, detalhes, antes, p.snapshot())

		origem.Pagamentos = append(origem.Pagamentos[:pi:pi], origem.Pagamentos[pi+1:]...)
		l.Fornecedores[di].Pagamentos = append(l.Fornecedores[di].Pagamentos, p)
		result = p
		return realocar(tx, p.ID, l.Fornecedores[di])
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// MarcarComoPago liquida o pagamento. Pagamentos que exigem aprovação precisam
// de workflow aprovado ou de permissão para aprovar operações bancárias.
func (s *Service) MarcarComoPago(ctx context.Context, fornecedorID, pagamentoID string, data *time.Time) (*Pagamento, error) {
	ator, err := sessao.Exigir(ctx)
	if err != nil {
		return nil, err
	}
	atual, err := s.ObterPagamento(ctx, fornecedorID, pagamentoID)
	if err != nil {
		return nil, err
	}
	if atual.Estado == EstadoPago {
		return nil, ErrJaPago
	}
	if atual.RequerAprovacao() {
		if err := s.verificarAprovacao(ctx, ator, pagamentoID); err != nil {
			return nil, err
		}
	}

	var result Pagamento
	err = s.update(ctx, nil, func(_ store.Tx, l *Ledger) error {
		quando := l.now
		if data != nil && !data.IsZero() {
			quando = *data
		}
		p, err := l.Alterar(fornecedorID, pagamentoID, "Pagamento marcado como pago", func(p *Pagamento) error {
			if p.Estado == EstadoPago {
				return ErrJaPago
			}
			p.marcarPago(quando)
			return nil
		})
		result = p
		return err
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *Service) verificarAprovacao(ctx context.Context, ator sessao.Ator, pagamentoID string) error {
	if s.aprovacoes != nil {
		ok, err := s.aprovacoes.AprovacaoConcedida(ctx, pagamentoID)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	if s.permissoes != nil {
		ok, err := s.permissoes.TemPermissao(ctx, ator.ID, usuario.PermApproveBankOperations)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return ErrAprovacaoNecessaria
}

// AtualizarDocumentos altera as flags de documentos recebidos.
func (s *Service) AtualizarDocumentos(ctx context.Context, fornecedorID, pagamentoID string, docs Documentos) (*Pagamento, error) {
	var result Pagamento
	err := s.update(ctx, nil, func(_ store.Tx, l *Ledger) error {
		p, err := l.Alterar(fornecedorID, pagamentoID, "Documentos atualizados", func(p *Pagamento) error {
			if docs.FacturaRecebida != nil {
				p.FacturaRecebida = boolPtr(*docs.FacturaRecebida)
			}
			if docs.ReciboRecebido != nil {
				p.ReciboRecebido = boolPtr(*docs.ReciboRecebido)
			}
			if docs.VDRecebido != nil {
				p.VDRecebido = boolPtr(*docs.VDRecebido)
			}
			return nil
		})
		result = p
		return err
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// DocumentosPendentes lista pagamentos pagos com documentos em falta.
func (s *Service) DocumentosPendentes(ctx context.Context) ([]PendenciaDocumento, error) {
	fornecedores, err := s.carregar(ctx)
	if err != nil {
		return nil, err
	}
	var out []PendenciaDocumento
	for _, f := range fornecedores {
		for _, p := range f.Pagamentos {
			if p.Estado != EstadoPago {
				continue
			}
			faltando := p.DocumentosEmFalta()
			if len(faltando) == 0 {
				continue
			}
			out = append(out, PendenciaDocumento{
				PagamentoComFornecedor: PagamentoComFornecedor{Pagamento: p, FornecedorID: f.ID, FornecedorNome: f.Nome},
				Faltando:               faltando,
			})
		}
	}
	return out, nil
}

// PagarComFundoManeio lança a saída no fundo e liquida o pagamento na mesma escrita.
func (s *Service) PagarComFundoManeio(ctx context.Context, fornecedorID, pagamentoID, descricao string) (*Pagamento, *fundomaneio.Movimento, error) {
	var (
		result Pagamento
		mov    fundomaneio.Movimento
	)
	err := s.update(ctx, []string{store.KeyFundosManeio}, func(tx store.Tx, l *Ledger) error {
		fi, pi, err := l.Localizar(fornecedorID, pagamentoID)
		if err != nil {
			return err
		}
		f := l.Fornecedores[fi]
		p := f.Pagamentos[pi]
		if p.Estado == EstadoPago {
			return ErrJaPago
		}

		if strings.TrimSpace(descricao) == "" {
			descricao = fmt.Sprintf("Pagamento a %s - Ref: %s", f.Nome, p.Referencia)
		}
		fundos, err := store.Read[[]fundomaneio.FundoManeio](tx, store.KeyFundosManeio)
		if err != nil {
			return err
		}
		fundos, mov, err = fundomaneio.Aplicar(fundos, fundomaneio.NovoMovimento{
			Tipo:                fundomaneio.TipoSaida,
			Valor:               p.Valor,
			Descricao:           descricao,
			PagamentoID:         p.ID,
			PagamentoReferencia: p.Referencia,
			FornecedorNome:      f.Nome,
		}, l.now, l.ator.Username)
		if err != nil {
			return err
		}
		if err := store.Write(tx, store.KeyFundosManeio, fundos); err != nil {
			return err
		}

		result, err = l.Alterar(f.ID, p.ID, "Pago com Fundo de Maneio", func(p *Pagamento) error {
			p.marcarPago(l.now)
			p.Metodo = MetodoFundoManeio
			p.FundoManeioID = mov.ID
			p.Observacoes = AnexarObservacao(p.Observacoes, "Pago com Fundo de Maneio em "+util.FormatDate(l.now))
			return nil
		})
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return &result, &mov, nil
}

// Historico devolve as entradas de histórico do pagamento, a mais recente primeiro.
func (s *Service) Historico(ctx context.Context, pagamentoID string) ([]EntradaHistorico, error) {
	fornecedores, err := s.carregar(ctx)
	if err != nil {
		return nil, err
	}
	l := &Ledger{Fornecedores: fornecedores}
	p, err := l.Obter("", pagamentoID)
	if errors.Is(err, ErrPagamentoNotFound) {
		removidos, rerr := s.HistoricoRemovidos(ctx)
		if rerr != nil {
			return nil, rerr
		}
		for _, r := range removidos {
			if r.Pagamento.ID == pagamentoID {
				return ordenarHistorico(r.Pagamento.Historico), nil
			}
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	return ordenarHistorico(p.Historico), nil
}

func ordenarHistorico(h []EntradaHistorico) []EntradaHistorico {
	out := make([]EntradaHistorico, len(h))
	copy(out, h)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// AtualizarAtrasados passa a atrasado os pendentes com vencimento anterior a hoje.
// Devolve quantos pagamentos mudaram.
func (s *Service) AtualizarAtrasados(ctx context.Context) (int, error) {
	hoje := s.now()
	inicio := time.Date(hoje.Year(), hoje.Month(), hoje.Day(), 0, 0, 0, 0, s.loc)
	total := 0
	err := s.update(ctx, nil, func(_ store.Tx, l *Ledger) error {
		total = 0
		for fi := range l.Fornecedores {
			for _, p := range l.Fornecedores[fi].Pagamentos {
				if p.Estado != EstadoPendente || !p.DataVencimento.Before(inicio) {
					continue
				}
				if _, err := l.Alterar(l.Fornecedores[fi].ID, p.ID, "Pagamento em atraso", func(p *Pagamento) error {
					p.Estado = EstadoAtrasado
					return nil
				}); err != nil {
					return err
				}
				total++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if total > 0 {
		s.logger.Info().Int("total", total).Msg("pagamentos marcados como atrasados")
	}
	return total, nil
}
