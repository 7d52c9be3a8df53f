package fundomaneio

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gestaofinanceira/tesouraria/internal/util"
)

// Aplicar adiciona o movimento ao balde do mês, criando-o quando preciso.
// Uma saída acima do saldo final devolve ErrSaldoInsuficiente e não altera fundos.
func Aplicar(fundos []FundoManeio, in NovoMovimento, now time.Time, autor string) ([]FundoManeio, Movimento, error) {
	in.Tipo = NormalizeTipo(in.Tipo)
	if !IsValidTipo(in.Tipo) {
		return fundos, Movimento{}, ErrTipoInvalido
	}
	if !in.Valor.IsPositive() {
		return fundos, Movimento{}, ErrValorInvalido
	}

	data := now
	if in.Data != nil && !in.Data.IsZero() {
		data = *in.Data
	}
	descricao := strings.TrimSpace(in.Descricao)
	if descricao == "" {
		descricao = DescricaoPadrao
	}

	mes := util.MonthStart(data)
	idx := -1
	for i := range fundos {
		if util.SameMonth(fundos[i].Mes.In(data.Location()), mes) {
			idx = i
			break
		}
	}

	var fundo FundoManeio
	if idx >= 0 {
		fundo = fundos[idx]
	} else {
		fundo = FundoManeio{ID: util.NewID(), Mes: mes, SaldoInicial: decimal.Zero, SaldoFinal: decimal.Zero}
	}

	if in.Tipo == TipoSaida && in.Valor.GreaterThan(fundo.SaldoFinal) {
		return fundos, Movimento{}, ErrSaldoInsuficiente
	}

	mov := Movimento{
		ID:                  util.NewID(),
		Data:                data,
		Tipo:                in.Tipo,
		Valor:               in.Valor,
		Descricao:           descricao,
		PagamentoID:         in.PagamentoID,
		PagamentoReferencia: in.PagamentoReferencia,
		FornecedorNome:      in.FornecedorNome,
		CriadoPor:           autor,
	}

	movs := make([]Movimento, len(fundo.Movimentos), len(fundo.Movimentos)+1)
	copy(movs, fundo.Movimentos)
	fundo.Movimentos = append(movs, mov)
	if in.Tipo == TipoEntrada {
		fundo.SaldoFinal = fundo.SaldoFinal.Add(in.Valor)
	} else {
		fundo.SaldoFinal = fundo.SaldoFinal.Sub(in.Valor)
	}

	out := make([]FundoManeio, len(fundos), len(fundos)+1)
	copy(out, fundos)
	if idx >= 0 {
		out[idx] = fundo
	} else {
		out = append(out, fundo)
	}
	return out, mov, nil
}

// Remover retira um movimento e recalcula o saldo; recusa saldo final negativo.
func Remover(fundos []FundoManeio, movimentoID string) ([]FundoManeio, Movimento, error) {
	for i := range fundos {
		for j, m := range fundos[i].Movimentos {
			if m.ID != movimentoID {
				continue
			}
			fundo := fundos[i]
			movs := make([]Movimento, 0, len(fundo.Movimentos)-1)
			movs = append(movs, fundo.Movimentos[:j]...)
			movs = append(movs, fundo.Movimentos[j+1:]...)
			fundo.Movimentos = movs
			saldo := fundo.recalcular()
			if saldo.IsNegative() {
				return fundos, Movimento{}, ErrSaldoInsuficiente
			}
			fundo.SaldoFinal = saldo

			out := make([]FundoManeio, len(fundos))
			copy(out, fundos)
			out[i] = fundo
			return out, m, nil
		}
	}
	return fundos, Movimento{}, ErrMovimentoNotFound
}

// Desvincular remove a referência a pagamento mantendo o movimento.
func Desvincular(fundos []FundoManeio, movimentoID string) []FundoManeio {
	for i := range fundos {
		for j := range fundos[i].Movimentos {
			if fundos[i].Movimentos[j].ID == movimentoID {
				fundos[i].Movimentos[j].PagamentoID = ""
				fundos[i].Movimentos[j].PagamentoReferencia = ""
				return fundos
			}
		}
	}
	return fundos
}
