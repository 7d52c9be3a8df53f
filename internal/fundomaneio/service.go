package fundomaneio

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/gestaofinanceira/tesouraria/internal/sessao"
	"github.com/gestaofinanceira/tesouraria/internal/store"
	"github.com/gestaofinanceira/tesouraria/internal/util"
)

// Service mantém os baldes mensais do fundo de maneio.
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

// Listar devolve os baldes do mais antigo para o mais recente.
func (s *Service) Listar(ctx context.Context) ([]FundoManeio, error) {
	fundos, err := store.Load[[]FundoManeio](ctx, s.store, store.KeyFundosManeio)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(fundos, func(i, j int) bool { return fundos[i].Mes.Before(fundos[j].Mes) })
	return fundos, nil
}

// Obter devolve o balde do mês informado.
func (s *Service) Obter(ctx context.Context, ano int, mes time.Month) (*FundoManeio, error) {
	fundos, err := s.Listar(ctx)
	if err != nil {
		return nil, err
	}
	alvo := time.Date(ano, mes, 1, 0, 0, 0, 0, s.loc)
	for _, f := range fundos {
		if util.SameMonth(f.Mes.In(s.loc), alvo) {
			return &f, nil
		}
	}
	return nil, ErrNotFound
}

// AdicionarMovimento lança entrada ou saída no balde do mês do movimento.
func (s *Service) AdicionarMovimento(ctx context.Context, in NovoMovimento) (*Movimento, error) {
	ator, err := sessao.Exigir(ctx)
	if err != nil {
		return nil, err
	}
	if in.Data != nil {
		d := in.Data.In(s.loc)
		in.Data = &d
	}
	now := s.clock.Now().In(s.loc)

	var mov Movimento
	err = store.Modify(ctx, s.store, store.KeyFundosManeio, func(fundos []FundoManeio) ([]FundoManeio, error) {
		out, m, err := Aplicar(fundos, in, now, ator.Username)
		if err != nil {
			return nil, err
		}
		mov = m
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("movimento", mov.ID).Str("tipo", mov.Tipo).Str("valor", mov.Valor.StringFixed(2)).Msg("movimento registrado")
	return &mov, nil
}

// RemoverMovimento exclui o movimento e recalcula o saldo do balde.
func (s *Service) RemoverMovimento(ctx context.Context, id string) error {
	if _, err := sessao.Exigir(ctx); err != nil {
		return err
	}
	return store.Modify(ctx, s.store, store.KeyFundosManeio, func(fundos []FundoManeio) ([]FundoManeio, error) {
		out, _, err := Remover(fundos, id)
		return out, err
	})
}
