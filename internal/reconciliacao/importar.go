package reconciliacao

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gestaofinanceira/tesouraria/internal/planilha"
)

// perfil descreve como as colunas de um banco viram uma transação.
type perfil struct {
	data      []string
	descricao []string
	converter func(row map[string]string) (decimal.Decimal, string, bool)
}

var perfis = map[string]perfil{
	PerfilBCI: {
		data:      []string{"Data", "DATA", "data"},
		descricao: []string{"Descrição", "DESCRIÇÃO", "Descricao", "descricao"},
		converter: valorComSinal("Valor", "VALOR", "valor"),
	},
	PerfilBIM: {
		data:      []string{"Data Mov.", "DATA", "Data"},
		descricao: []string{"Descrição", "Descricao"},
		converter: func(row map[string]string) (decimal.Decimal, string, bool) {
			credito, _ := planilha.ParseValor(coluna(row, "Crédito", "Credito"))
			if credito.IsPositive() {
				return credito, TipoCredito, true
			}
			debito, err := planilha.ParseValor(coluna(row, "Débito", "Debito"))
			if err != nil {
				return decimal.Zero, "", false
			}
			return debito.Abs(), TipoDebito, true
		},
	},
	PerfilStandard: {
		data:      []string{"Data Valor", "Data Mov.", "Data"},
		descricao: []string{"Descritivo", "Descrição", "Descricao"},
		converter: func(row map[string]string) (decimal.Decimal, string, bool) {
			montante, err := planilha.ParseValor(coluna(row, "Montante", "Valor"))
			if err != nil {
				return decimal.Zero, "", false
			}
			switch strings.ToUpper(strings.TrimSpace(coluna(row, "D/C", "DC"))) {
			case "D":
				return montante.Abs(), TipoDebito, true
			case "C":
				return montante.Abs(), TipoCredito, true
			}
			return comSinal(montante)
		},
	},
	PerfilGenerico: {
		data:      []string{"Data", "Date"},
		descricao: []string{"Descrição", "Descricao", "Description"},
		converter: valorComSinal("Valor", "Amount"),
	},
}

// NormalizarPerfil aceita o nome do banco em qualquer caixa; vazio é genérico.
func NormalizarPerfil(p string) (string, error) {
	p = strings.ToLower(strings.TrimSpace(p))
	switch p {
	case "", "generic":
		return PerfilGenerico, nil
	}
	if _, ok := perfis[p]; !ok {
		return "", ErrPerfilInvalido
	}
	return p, nil
}

// Converter transforma as linhas da folha em lançamentos segundo o perfil.
// Linhas sem data válida ou com valor nulo são contadas como ignoradas.
func Converter(linhas []map[string]string, nomePerfil string, loc *time.Location) ([]NovaTransacao, int, error) {
	nomePerfil, err := NormalizarPerfil(nomePerfil)
	if err != nil {
		return nil, 0, err
	}
	pf := perfis[nomePerfil]

	var (
		out       []NovaTransacao
		ignoradas int
	)
	for _, row := range linhas {
		data, err := planilha.ParseData(coluna(row, pf.data...), loc)
		if err != nil {
			ignoradas++
			continue
		}
		valor, tipo, ok := pf.converter(row)
		if !ok || !valor.IsPositive() {
			ignoradas++
			continue
		}
		out = append(out, NovaTransacao{
			Data:      data,
			Descricao: strings.TrimSpace(coluna(row, pf.descricao...)),
			Valor:     valor,
			Tipo:      tipo,
		})
	}
	return out, ignoradas, nil
}

func valorComSinal(nomes ...string) func(row map[string]string) (decimal.Decimal, string, bool) {
	return func(row map[string]string) (decimal.Decimal, string, bool) {
		v, err := planilha.ParseValor(coluna(row, nomes...))
		if err != nil {
			return decimal.Zero, "", false
		}
		return comSinal(v)
	}
}

func comSinal(v decimal.Decimal) (decimal.Decimal, string, bool) {
	if v.IsNegative() {
		return v.Abs(), TipoDebito, true
	}
	return v, TipoCredito, true
}

// coluna devolve o primeiro valor não vazio entre os nomes, ignorando a caixa.
func coluna(row map[string]string, nomes ...string) string {
	for _, n := range nomes {
		if v := strings.TrimSpace(row[n]); v != "" {
			return v
		}
	}
	for _, n := range nomes {
		for k, v := range row {
			if strings.EqualFold(k, n) && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
	}
	return ""
}
