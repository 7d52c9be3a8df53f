package notificacao

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gestaofinanceira/tesouraria/internal/fornecedor"
	"github.com/gestaofinanceira/tesouraria/internal/sessao"
	"github.com/gestaofinanceira/tesouraria/internal/store"
	"github.com/gestaofinanceira/tesouraria/internal/util"
)

// Service mantém o feed de notificações e os lembretes a fornecedores.
type Service struct {
	store    store.Store
	notifier Notifier
	logger   zerolog.Logger
	clock    util.Clock
	loc      *time.Location
}

func NewService(s store.Store, logger zerolog.Logger, clock util.Clock, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{store: s, logger: logger, clock: clock, loc: loc}
}

// ComNotifier liga o canal externo usado para alertas importantes e lembretes.
func (s *Service) ComNotifier(n Notifier) {
	s.notifier = n
}

// Enviar publica a notificação no topo do feed. Aprovações seguem também
// para o canal externo, sem afetar o resultado.
func (s *Service) Enviar(ctx context.Context, in Nova) (*Notificacao, error) {
	in.Titulo = strings.TrimSpace(in.Titulo)
	if in.Titulo == "" {
		return nil, ErrTituloVazio
	}
	if in.Tipo == "" {
		in.Tipo = TipoInfo
	}
	if !tipoValido(in.Tipo) {
		return nil, ErrTipoInvalido
	}
	n := Notificacao{
		ID:         util.NewID(),
		Titulo:     in.Titulo,
		Mensagem:   in.Mensagem,
		PapelAlvo:  strings.TrimSpace(in.PapelAlvo),
		Timestamp:  s.clock.Now(),
		Prioridade: PrioridadeDoTipo(in.Tipo),
		Tipo:       in.Tipo,
	}
	err := store.Modify(ctx, s.store, store.KeyNotificacoes, func(cur []Notificacao) ([]Notificacao, error) {
		return append([]Notificacao{n}, cur...), nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug().Str("notificacao", n.ID).Str("alvo", n.PapelAlvo).Str("tipo", n.Tipo).Msg("notificação publicada")

	if n.Prioridade == PrioridadeAlta && s.notifier != nil {
		alerta := Alerta{Titulo: n.Titulo, Texto: n.Mensagem, Severidade: n.Tipo}
		if err := s.notifier.Notify(ctx, alerta); err != nil {
			s.logger.Warn().Err(err).Str("notificacao", n.ID).Msg("falha ao entregar alerta externo")
		}
	}
	return &n, nil
}

func (s *Service) Listar(ctx context.Context) ([]Notificacao, error) {
	return store.Load[[]Notificacao](ctx, s.store, store.KeyNotificacoes)
}

// ParaPapel devolve o feed visível para o papel, mais recentes primeiro.
func (s *Service) ParaPapel(ctx context.Context, papel string) ([]Notificacao, error) {
	todas, err := s.Listar(ctx)
	if err != nil {
		return nil, err
	}
	return filtrar(todas, papel), nil
}

func filtrar(todas []Notificacao, papel string) []Notificacao {
	out := make([]Notificacao, 0, len(todas))
	for _, n := range todas {
		if n.VisivelPara(papel) {
			out = append(out, n)
		}
	}
	return out
}

func contar(visiveis []Notificacao) Contagem {
	var c Contagem
	for _, n := range visiveis {
		if n.Lida {
			continue
		}
		c.NaoLidas++
		if n.Importante() {
			c.AltaPrioridade++
		}
	}
	c.Urgente = c.AltaPrioridade > 0
	return c
}

func (s *Service) Contagem(ctx context.Context, papel string) (Contagem, error) {
	visiveis, err := s.ParaPapel(ctx, papel)
	if err != nil {
		return Contagem{}, err
	}
	return contar(visiveis), nil
}

func (s *Service) MarcarLida(ctx context.Context, id string) error {
	return store.Modify(ctx, s.store, store.KeyNotificacoes, func(cur []Notificacao) ([]Notificacao, error) {
		for i := range cur {
			if cur[i].ID == id {
				cur[i].Lida = true
				return cur, nil
			}
		}
		return nil, ErrNotFound
	})
}

// MarcarTodasLidas marca como lidas as notificações visíveis para o papel.
func (s *Service) MarcarTodasLidas(ctx context.Context, papel string) (int, error) {
	var n int
	err := store.Modify(ctx, s.store, store.KeyNotificacoes, func(cur []Notificacao) ([]Notificacao, error) {
		n = 0
		for i := range cur {
			if !cur[i].Lida && cur[i].VisivelPara(papel) {
				cur[i].Lida = true
				n++
			}
		}
		return cur, nil
	})
	return n, err
}

func (s *Service) Remover(ctx context.Context, id string) error {
	return store.Modify(ctx, s.store, store.KeyNotificacoes, func(cur []Notificacao) ([]Notificacao, error) {
		for i := range cur {
			if cur[i].ID == id {
				return append(cur[:i:i], cur[i+1:]...), nil
			}
		}
		return nil, ErrNotFound
	})
}

// MensagemPadrao é o texto do lembrete de pagamento próximo.
func MensagemPadrao(fornecedorNome, referencia string, vencimento time.Time, valor string) string {
	return fmt.Sprintf(`Prezado %s,

Gostaríamos de lembrá-lo sobre o pagamento próximo:

Referência: %s
Data de Vencimento: %s
Valor: %s MT

Por favor, certifique-se de que o pagamento seja efetuado até a data de vencimento.

Atenciosamente,
Departamento Financeiro`, fornecedorNome, referencia, util.FormatDate(vencimento), valor)
}

// NotificarFornecedor regista o lembrete, marca o pagamento e entrega pelo
// notifier quando houver um configurado.
func (s *Service) NotificarFornecedor(ctx context.Context, in PedidoFornecedor) (*NotificacaoFornecedor, error) {
	ator, err := sessao.Exigir(ctx)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()

	var registro NotificacaoFornecedor
	keys := []string{store.KeyFornecedores, store.KeyNotificacoesFornecedores}
	err = s.store.Update(ctx, keys, func(tx store.Tx) error {
		l, err := fornecedor.Abrir(tx, ator, now)
		if err != nil {
			return err
		}
		p, err := l.Obter(in.FornecedorID, in.PagamentoID)
		if err != nil {
			return err
		}
		email := strings.TrimSpace(in.Email)
		if email == "" {
			email = emailDoFornecedor(l.Fornecedores, p.FornecedorID)
		}
		if email == "" {
			return ErrEmailObrigatorio
		}
		if err := util.ValidateEmail(email); err != nil {
			return err
		}
		mensagem := strings.TrimSpace(in.Mensagem)
		if mensagem == "" {
			mensagem = MensagemPadrao(p.FornecedorNome, p.Referencia, p.DataVencimento.In(s.loc), p.Valor.StringFixed(2))
		}

		if _, err := l.Alterar(p.FornecedorID, p.ID, "Lembrete enviado para "+email, func(pg *fornecedor.Pagamento) error {
			pg.LembreteEnviado = true
			return nil
		}); err != nil {
			return err
		}
		if err := l.Salvar(tx); err != nil {
			return err
		}

		historico, err := store.Read[[]NotificacaoFornecedor](tx, store.KeyNotificacoesFornecedores)
		if err != nil {
			return err
		}
		registro = NotificacaoFornecedor{
			ID:             util.NewID(),
			FornecedorID:   p.FornecedorID,
			FornecedorNome: p.FornecedorNome,
			PagamentoID:    p.ID,
			Referencia:     p.Referencia,
			Email:          email,
			Mensagem:       mensagem,
			EnviadoEm:      now,
			EnviadoPor:     ator.NomeExibicao(),
		}
		return store.Write(tx, store.KeyNotificacoesFornecedores, append(historico, registro))
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		alerta := Alerta{
			Titulo:     "Lembrete de pagamento " + registro.Referencia,
			Texto:      registro.Mensagem,
			Severidade: TipoInfo,
			Destino:    registro.Email,
		}
		if err := s.notifier.Notify(ctx, alerta); err != nil {
			s.logger.Warn().Err(err).Str("fornecedor", registro.FornecedorID).Msg("falha ao entregar lembrete")
		}
	}
	s.logger.Info().Str("fornecedor", registro.FornecedorID).Str("pagamento", registro.PagamentoID).Msg("fornecedor notificado")
	return &registro, nil
}

// HistoricoFornecedores lista os lembretes enviados, mais recentes primeiro.
func (s *Service) HistoricoFornecedores(ctx context.Context, fornecedorID string) ([]NotificacaoFornecedor, error) {
	todos, err := store.Load[[]NotificacaoFornecedor](ctx, s.store, store.KeyNotificacoesFornecedores)
	if err != nil {
		return nil, err
	}
	out := make([]NotificacaoFornecedor, 0, len(todos))
	for i := len(todos) - 1; i >= 0; i-- {
		if fornecedorID == "" || todos[i].FornecedorID == fornecedorID {
			out = append(out, todos[i])
		}
	}
	return out, nil
}

func emailDoFornecedor(fornecedores []fornecedor.Fornecedor, id string) string {
	for _, f := range fornecedores {
		if f.ID == id {
			return strings.TrimSpace(f.Email)
		}
	}
	return ""
}
