package workflow

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gestaofinanceira/tesouraria/internal/fornecedor"
	"github.com/gestaofinanceira/tesouraria/internal/notificacao"
	"github.com/gestaofinanceira/tesouraria/internal/sessao"
	"github.com/gestaofinanceira/tesouraria/internal/store"
	"github.com/gestaofinanceira/tesouraria/internal/util"
)

// Service conduz os workflows de aprovação e liquida o pagamento aprovado.
type Service struct {
	store       store.Store
	despachante notificacao.Despachante
	logger      zerolog.Logger
	clock       util.Clock
	loc         *time.Location
}

// NewService aceita despachante nil; as notificações são então descartadas.
func NewService(s store.Store, d notificacao.Despachante, logger zerolog.Logger, clock util.Clock, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{store: s, despachante: d, logger: logger, clock: clock, loc: loc}
}

func (s *Service) notificar(ctx context.Context, w Workflow, n notificacao.Nova) {
	if !w.NotificacoesAtivas || s.despachante == nil {
		return
	}
	if _, err := s.despachante.Enviar(ctx, n); err != nil {
		s.logger.Warn().Err(err).Str("workflow", w.ID).Msg("falha ao enviar notificação do workflow")
	}
}

func indice(workflows []Workflow, id string) int {
	for i := range workflows {
		if workflows[i].ID == id {
			return i
		}
	}
	return -1
}

// Submeter abre o workflow do pagamento no nível inicial do tipo.
func (s *Service) Submeter(ctx context.Context, in Submissao) (*Workflow, error) {
	ator, err := sessao.Exigir(ctx)
	if err != nil {
		return nil, err
	}
	if !tipoValido(in.Tipo) {
		return nil, ErrTipoInvalido
	}
	now := s.clock.Now()

	var w Workflow
	err = s.store.Update(ctx, []string{store.KeyWorkflows, store.KeyFornecedores}, func(tx store.Tx) error {
		l, err := fornecedor.Abrir(tx, ator, now)
		if err != nil {
			return err
		}
		p, err := l.Obter(in.FornecedorID, in.PagamentoID)
		if err != nil {
			return err
		}
		workflows, err := store.Read[[]Workflow](tx, store.KeyWorkflows)
		if err != nil {
			return err
		}
		for _, existente := range workflows {
			if existente.PagamentoID == p.ID && !existente.Terminal() {
				return ErrWorkflowAtivo
			}
		}

		descricao := p.Descricao
		if extra := strings.TrimSpace(in.DescricaoExtra); extra != "" {
			descricao += "\n\nInformações adicionais: " + extra
		}
		w = Workflow{
			ID:                 util.NewID(),
			PagamentoID:        p.ID,
			FornecedorID:       p.FornecedorID,
			FornecedorNome:     p.FornecedorNome,
			Referencia:         p.Referencia,
			Valor:              p.Valor,
			Tipo:               in.Tipo,
			Metodo:             p.Metodo,
			Descricao:          descricao,
			DataCriacao:        now,
			DataVencimento:     p.DataVencimento,
			CriadoPor:          ator.Username,
			NivelAtual:         NivelInicial(in.Tipo),
			Status:             StatusPendente,
			Passos:             []Passo{},
			NotificacoesAtivas: in.NotificacoesAtivas,
			Documentos:         in.Documentos,
		}
		return store.Write(tx, store.KeyWorkflows, append(workflows, w))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("workflow", w.ID).Str("pagamento", w.PagamentoID).Str("tipo", w.Tipo).Str("nivel", w.NivelAtual).Msg("workflow submetido")
	s.notificar(ctx, w, notificacao.Nova{
		Titulo:    "Aprovação Pendente",
		Mensagem:  fmt.Sprintf("Novo pagamento aguardando aprovação: %s para %s.", w.Referencia, w.FornecedorNome),
		PapelAlvo: PapelDoNivel(w.NivelAtual),
		Tipo:      notificacao.TipoAprovacao,
	})
	return &w, nil
}

// Decidir regista a decisão do ator no nível atual. O passo e a mudança de
// status são gravados na mesma escrita.
func (s *Service) Decidir(ctx context.Context, id, decisao, comentario string) (*Resultado, error) {
	ator, err := sessao.Exigir(ctx)
	if err != nil {
		return nil, err
	}
	if decisao != DecisaoAprovar && decisao != DecisaoRejeitar {
		return nil, ErrDecisaoInvalida
	}
	nivel := NivelDoPapel(ator.Papel)

	var w Workflow
	err = store.Modify(ctx, s.store, store.KeyWorkflows, func(cur []Workflow) ([]Workflow, error) {
		i := indice(cur, id)
		if i < 0 {
			return nil, ErrNotFound
		}
		w = cur[i]
		if w.Terminal() {
			return nil, ErrEstadoFinal
		}
		if !PodeDecidir(w, nivel) {
			return nil, ErrNivelIncorreto
		}
		passo := Passo{
			ID:          util.NewID(),
			Nivel:       nivel,
			AprovadoPor: ator.Username,
			AprovadoEm:  s.clock.Now(),
			Comentario:  strings.TrimSpace(comentario),
		}
		if decisao == DecisaoRejeitar {
			passo.Estado = StatusRejeitado
			w.Status = StatusRejeitado
		} else {
			passo.Estado = StatusAprovado
			w.Status, w.NivelAtual = proximo(w, nivel)
		}
		w.Passos = append(append([]Passo(nil), w.Passos...), passo)
		cur[i] = w
		return cur, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("workflow", w.ID).Str("decisao", decisao).Str("nivel", nivel).Str("status", w.Status).Msg("workflow decidido")
	switch w.Status {
	case StatusRejeitado:
		s.notificar(ctx, w, notificacao.Nova{
			Titulo:    "Pagamento Rejeitado",
			Mensagem:  fmt.Sprintf("O pagamento %s para %s foi rejeitado.", w.Referencia, w.FornecedorNome),
			PapelAlvo: notificacao.AlvoTodos,
			Tipo:      notificacao.TipoAviso,
		})
	case StatusAguardandoProximo:
		s.notificar(ctx, w, notificacao.Nova{
			Titulo:    "Aprovação Pendente",
			Mensagem:  fmt.Sprintf("Um pagamento aguarda sua aprovação: %s para %s.", w.Referencia, w.FornecedorNome),
			PapelAlvo: PapelDoNivel(w.NivelAtual),
			Tipo:      notificacao.TipoAprovacao,
		})
	}
	return &Resultado{Workflow: w, ConfirmarPagamento: w.Status == StatusAprovado}, nil
}

// ConfirmarPagamento fecha a escolha pós-aprovação. Com marcarPago o
// pagamento é liquidado na mesma escrita que regista a confirmação.
func (s *Service) ConfirmarPagamento(ctx context.Context, id string, marcarPago bool) (*Workflow, error) {
	ator, err := sessao.Exigir(ctx)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()

	var w Workflow
	err = s.store.Update(ctx, []string{store.KeyWorkflows, store.KeyFornecedores}, func(tx store.Tx) error {
		workflows, err := store.Read[[]Workflow](tx, store.KeyWorkflows)
		if err != nil {
			return err
		}
		i := indice(workflows, id)
		if i < 0 {
			return ErrNotFound
		}
		w = workflows[i]
		if w.Status != StatusAprovado {
			return ErrNaoAprovado
		}
		if w.Confirmacao != nil {
			return ErrPagamentoJaConfirmado
		}

		if marcarPago {
			l, err := fornecedor.Abrir(tx, ator, now)
			if err != nil {
				return err
			}
			// O pagamento pode ter sido transferido depois da aprovação.
			p, err := l.Obter("", w.PagamentoID)
			if err != nil {
				return err
			}
			w.FornecedorID, w.FornecedorNome = p.FornecedorID, p.FornecedorNome
			if p.Estado != fornecedor.EstadoPago {
				nota := "Aprovado por workflow em " + util.FormatDate(now.In(s.loc))
				if _, err := l.Liquidar(p.FornecedorID, w.PagamentoID, now, nota, "Pagamento aprovado por workflow"); err != nil {
					return err
				}
				if err := l.Salvar(tx); err != nil {
					return err
				}
			}
		}

		w.Confirmacao = &Confirmacao{MarcadoPago: marcarPago, Em: now, Por: ator.Username}
		workflows[i] = w
		return store.Write(tx, store.KeyWorkflows, workflows)
	})
	if err != nil {
		return nil, err
	}

	if marcarPago {
		s.notificar(ctx, w, notificacao.Nova{
			Titulo:    "Pagamento Aprovado e Marcado como Pago",
			Mensagem:  fmt.Sprintf("O pagamento %s para %s foi aprovado e marcado como pago.", w.Referencia, w.FornecedorNome),
			PapelAlvo: notificacao.AlvoTodos,
			Tipo:      notificacao.TipoInfo,
		})
	} else {
		s.notificar(ctx, w, notificacao.Nova{
			Titulo:    "Pagamento Aprovado",
			Mensagem:  fmt.Sprintf("O pagamento %s para %s foi aprovado, mas o status não foi alterado.", w.Referencia, w.FornecedorNome),
			PapelAlvo: notificacao.AlvoTodos,
			Tipo:      notificacao.TipoInfo,
		})
	}
	return &w, nil
}

// AlternarNotificacoes inverte o envio de notificações do workflow.
func (s *Service) AlternarNotificacoes(ctx context.Context, id string) (*Workflow, error) {
	if _, err := sessao.Exigir(ctx); err != nil {
		return nil, err
	}
	var w Workflow
	err := store.Modify(ctx, s.store, store.KeyWorkflows, func(cur []Workflow) ([]Workflow, error) {
		i := indice(cur, id)
		if i < 0 {
			return nil, ErrNotFound
		}
		cur[i].NotificacoesAtivas = !cur[i].NotificacoesAtivas
		w = cur[i]
		return cur, nil
	})
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (s *Service) Obter(ctx context.Context, id string) (*Workflow, error) {
	workflows, err := store.Load[[]Workflow](ctx, s.store, store.KeyWorkflows)
	if err != nil {
		return nil, err
	}
	if i := indice(workflows, id); i >= 0 {
		return &workflows[i], nil
	}
	return nil, ErrNotFound
}

// Listar filtra por status, pagamento e texto na referência ou fornecedor.
func (s *Service) Listar(ctx context.Context, f Filtro) ([]Workflow, error) {
	workflows, err := store.Load[[]Workflow](ctx, s.store, store.KeyWorkflows)
	if err != nil {
		return nil, err
	}
	busca := strings.ToLower(strings.TrimSpace(f.Busca))
	out := make([]Workflow, 0, len(workflows))
	for _, w := range workflows {
		if f.Status != "" && w.Status != f.Status {
			continue
		}
		if f.PagamentoID != "" && w.PagamentoID != f.PagamentoID {
			continue
		}
		if busca != "" &&
			!strings.Contains(strings.ToLower(w.Referencia), busca) &&
			!strings.Contains(strings.ToLower(w.FornecedorNome), busca) {
			continue
		}
		out = append(out, w)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DataCriacao.After(out[j].DataCriacao) })
	return out, nil
}

// Pendentes lista os workflows em curso que o papel pode decidir.
func (s *Service) Pendentes(ctx context.Context, papel string) ([]Workflow, error) {
	todos, err := s.Listar(ctx, Filtro{})
	if err != nil {
		return nil, err
	}
	nivel := NivelDoPapel(papel)
	out := make([]Workflow, 0, len(todos))
	for _, w := range todos {
		if PodeDecidir(w, nivel) {
			out = append(out, w)
		}
	}
	return out, nil
}

// AprovacaoConcedida informa se algum workflow do pagamento foi aprovado.
func (s *Service) AprovacaoConcedida(ctx context.Context, pagamentoID string) (bool, error) {
	workflows, err := store.Load[[]Workflow](ctx, s.store, store.KeyWorkflows)
	if err != nil {
		return false, err
	}
	for _, w := range workflows {
		if w.PagamentoID == pagamentoID && w.Status == StatusAprovado {
			return true, nil
		}
	}
	return false, nil
}
