package cheque

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gestaofinanceira/tesouraria/internal/fornecedor"
	"github.com/gestaofinanceira/tesouraria/internal/sessao"
	"github.com/gestaofinanceira/tesouraria/internal/store"
	"github.com/gestaofinanceira/tesouraria/internal/util"
)

// Service mantém o registo de cheques.
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

// Emitir regista o cheque e, havendo pagamento, passa-o a método cheque
// com a nota de emissão, tudo na mesma escrita.
func (s *Service) Emitir(ctx context.Context, in Emissao) (*Cheque, error) {
	ator, err := sessao.Exigir(ctx)
	if err != nil {
		return nil, err
	}
	numero := NormalizarNumero(in.Numero)
	if numero == "" {
		return nil, util.Invalido("número do cheque obrigatório")
	}
	now := s.clock.Now().In(s.loc)
	emissao := now
	if in.DataEmissao != nil && !in.DataEmissao.IsZero() {
		emissao = in.DataEmissao.In(s.loc)
	}

	var result Cheque
	err = s.store.Update(ctx, []string{store.KeyCheques, store.KeyFornecedores}, func(tx store.Tx) error {
		cheques, err := store.Read[[]Cheque](tx, store.KeyCheques)
		if err != nil {
			return err
		}
		if _, ok := Indice(cheques)[numero]; ok {
			return ErrNumeroDuplicado
		}

		c := Cheque{
			ID:           util.NewID(),
			Numero:       strings.TrimSpace(in.Numero),
			Valor:        in.Valor,
			Beneficiario: strings.TrimSpace(in.Beneficiario),
			DataEmissao:  emissao,
			Estado:       EstadoPendente,
		}

		if in.PagamentoID != "" {
			for _, existente := range cheques {
				if existente.PagamentoID == in.PagamentoID && existente.Estado != EstadoCancelado {
					return ErrChequeExistente
				}
			}
			l, err := fornecedor.Abrir(tx, ator, now)
			if err != nil {
				return err
			}
			nota := fmt.Sprintf("Cheque nº %s emitido em %s", c.Numero, util.FormatDate(emissao))
			p, err := l.Alterar(in.FornecedorID, in.PagamentoID, nota, func(p *fornecedor.Pagamento) error {
				p.Metodo = fornecedor.MetodoCheque
				p.Observacoes = fornecedor.AnexarObservacao(p.Observacoes, nota)
				return nil
			})
			if err != nil {
				return err
			}
			pf, err := l.Obter(in.FornecedorID, in.PagamentoID)
			if err != nil {
				return err
			}
			c.Valor = p.Valor
			c.Beneficiario = pf.FornecedorNome
			c.PagamentoID = p.ID
			c.PagamentoReferencia = p.Referencia
			c.FornecedorID = pf.FornecedorID
			c.FornecedorNome = pf.FornecedorNome
			if err := l.Salvar(tx); err != nil {
				return err
			}
		} else {
			if !c.Valor.IsPositive() {
				return util.Invalido("valor do cheque deve ser maior que zero")
			}
			if c.Beneficiario == "" {
				return util.Invalido("beneficiário obrigatório")
			}
		}

		result = c
		return store.Write(tx, store.KeyCheques, append(cheques, c))
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("cheque", result.Numero).Str("pagamento", result.PagamentoID).Msg("cheque emitido")
	return &result, nil
}

// Listar devolve os cheques, filtrando por estado quando informado.
func (s *Service) Listar(ctx context.Context, estado string) ([]Cheque, error) {
	cheques, err := store.Load[[]Cheque](ctx, s.store, store.KeyCheques)
	if err != nil {
		return nil, err
	}
	estado = strings.ToLower(strings.TrimSpace(estado))
	out := make([]Cheque, 0, len(cheques))
	for _, c := range cheques {
		if estado == "" || c.Estado == estado {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DataEmissao.After(out[j].DataEmissao) })
	return out, nil
}

// ObterPorNumero procura o cheque pelo número.
func (s *Service) ObterPorNumero(ctx context.Context, numero string) (*Cheque, error) {
	cheques, err := store.Load[[]Cheque](ctx, s.store, store.KeyCheques)
	if err != nil {
		return nil, err
	}
	if c, ok := Indice(cheques)[NormalizarNumero(numero)]; ok {
		return &c, nil
	}
	return nil, ErrNotFound
}

// Compensar marca o cheque como compensado na data informada.
func (s *Service) Compensar(ctx context.Context, id string, data *time.Time) (*Cheque, error) {
	if _, err := sessao.Exigir(ctx); err != nil {
		return nil, err
	}
	quando := s.clock.Now().In(s.loc)
	if data != nil && !data.IsZero() {
		quando = *data
	}
	return s.alterar(ctx, id, func(cheques []Cheque, i int) error {
		return Compensar(cheques, cheques[i].ID, quando)
	})
}

// Cancelar anula um cheque ainda pendente.
func (s *Service) Cancelar(ctx context.Context, id string) (*Cheque, error) {
	if _, err := sessao.Exigir(ctx); err != nil {
		return nil, err
	}
	return s.alterar(ctx, id, func(cheques []Cheque, i int) error {
		if cheques[i].Estado != EstadoPendente {
			return ErrTransicaoInvalida
		}
		cheques[i].Estado = EstadoCancelado
		return nil
	})
}

func (s *Service) alterar(ctx context.Context, id string, fn func(cheques []Cheque, i int) error) (*Cheque, error) {
	var result Cheque
	err := store.Modify(ctx, s.store, store.KeyCheques, func(cheques []Cheque) ([]Cheque, error) {
		for i := range cheques {
			if cheques[i].ID != id {
				continue
			}
			if err := fn(cheques, i); err != nil {
				return nil, err
			}
			result = cheques[i]
			return cheques, nil
		}
		return nil, ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}
