package reconciliacao

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/gestaofinanceira/tesouraria/internal/cheque"
	"github.com/gestaofinanceira/tesouraria/internal/fornecedor"
)

// Critérios de correspondência, por ordem de prioridade.
const (
	CriterioCheque        = "cheque"
	CriterioTransferencia = "transferencia"
	CriterioValor         = "valor"
)

// Tolerancia é a diferença máxima entre valores considerados iguais.
var Tolerancia = decimal.NewFromFloat(0.01)

var padroesCheque = []*regexp.Regexp{
	regexp.MustCompile(`(?i)cheque\s+n[º°]?\s*(\d+)`),
	regexp.MustCompile(`(?i)ch\s+n[º°]?\s*(\d+)`),
	regexp.MustCompile(`(?i)ch\s*(\d+)`),
}

// Correspondencia liga uma transação ao pagamento que ela liquida.
type Correspondencia struct {
	TransacaoID  string `json:"transacaoId"`
	PagamentoID  string `json:"pagamentoId"`
	FornecedorID string `json:"fornecedorId"`
	Referencia   string `json:"referencia"`
	ChequeID     string `json:"chequeId,omitempty"`
	ChequeNumero string `json:"chequeNumero,omitempty"`
	Criterio     string `json:"criterio"`
}

// DetectarMetodo classifica a transação pela descrição do extrato.
func DetectarMetodo(descricao string) string {
	d := strings.ToLower(descricao)
	switch {
	case strings.Contains(d, "cheque") || strings.Contains(d, "ch "):
		return MetodoCheque
	case strings.Contains(d, "transf") || strings.Contains(d, "trf"):
		return MetodoTransferencia
	case strings.Contains(d, "depósito") || strings.Contains(d, "deposito"):
		return MetodoDeposito
	}
	return MetodoOutro
}

// ExtrairNumeroCheque devolve o número do cheque citado na descrição, ou "".
func ExtrairNumeroCheque(descricao string) string {
	for _, re := range padroesCheque {
		if m := re.FindStringSubmatch(descricao); len(m) > 1 {
			return m[1]
		}
	}
	return ""
}

// ValoresIguais compara dois montantes com a tolerância de um cêntimo.
func ValoresIguais(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThan(Tolerancia)
}

func pareceTransferencia(descricao string) bool {
	d := strings.ToLower(descricao)
	return strings.Contains(d, "transf") || strings.Contains(d, "transfer")
}

// Conciliar procura, para cada débito não reconciliado, um pagamento em aberto:
// primeiro pelo número do cheque, depois por transferência de igual valor e,
// por fim, por qualquer pagamento de igual valor. Cada pagamento é usado uma
// única vez no lote.
func Conciliar(transacoes []TransacaoBancaria, pagamentos []fornecedor.PagamentoComFornecedor, cheques []cheque.Cheque) []Correspondencia {
	registo := indiceAtivo(cheques)
	usados := make(map[string]bool)
	var out []Correspondencia

	for _, t := range transacoes {
		if t.Tipo != TipoDebito || t.Reconciliado {
			continue
		}

		var (
			p        *fornecedor.PagamentoComFornecedor
			criterio string
			c        *cheque.Cheque
		)

		if t.Metodo == MetodoCheque && t.ChequeNumero != "" {
			c = localizarCheque(registo, cheques, t)
			if c != nil && c.PagamentoID != "" {
				p = procurar(pagamentos, usados, func(pg fornecedor.PagamentoComFornecedor) bool {
					return pg.ID == c.PagamentoID
				})
			}
			if p == nil {
				notas := notasCheque(t.ChequeNumero, c)
				p = procurar(pagamentos, usados, func(pg fornecedor.PagamentoComFornecedor) bool {
					if pg.Metodo != fornecedor.MetodoCheque {
						return false
					}
					for _, n := range notas {
						if strings.Contains(pg.Observacoes, n) {
							return true
						}
					}
					return false
				})
			}
			if p != nil {
				criterio = CriterioCheque
			}
		} else if pareceTransferencia(t.Descricao) {
			p = procurar(pagamentos, usados, func(pg fornecedor.PagamentoComFornecedor) bool {
				return fornecedor.IsTransferencia(pg.Metodo) && ValoresIguais(pg.Valor, t.Valor)
			})
			if p != nil {
				criterio = CriterioTransferencia
			}
		}

		if p == nil {
			p = procurar(pagamentos, usados, func(pg fornecedor.PagamentoComFornecedor) bool {
				return ValoresIguais(pg.Valor, t.Valor)
			})
			if p != nil {
				criterio = CriterioValor
			}
		}
		if p == nil {
			continue
		}

		usados[p.ID] = true
		corr := Correspondencia{
			TransacaoID:  t.ID,
			PagamentoID:  p.ID,
			FornecedorID: p.FornecedorID,
			Referencia:   p.Referencia,
			ChequeNumero: t.ChequeNumero,
			Criterio:     criterio,
		}
		if c != nil && (c.PagamentoID == "" || c.PagamentoID == p.ID) {
			corr.ChequeID = c.ID
		}
		out = append(out, corr)
	}
	return out
}

func procurar(pagamentos []fornecedor.PagamentoComFornecedor, usados map[string]bool, match func(fornecedor.PagamentoComFornecedor) bool) *fornecedor.PagamentoComFornecedor {
	for i := range pagamentos {
		pg := pagamentos[i]
		if usados[pg.ID] || pg.Estado == fornecedor.EstadoPago || pg.Tipo != fornecedor.TipoFatura {
			continue
		}
		if match(pg) {
			return &pagamentos[i]
		}
	}
	return nil
}

// indiceAtivo indexa os cheques não cancelados.
func indiceAtivo(cheques []cheque.Cheque) map[string]cheque.Cheque {
	ativos := make([]cheque.Cheque, 0, len(cheques))
	for _, c := range cheques {
		if c.Estado != cheque.EstadoCancelado {
			ativos = append(ativos, c)
		}
	}
	return cheque.Indice(ativos)
}

func localizarCheque(registo map[string]cheque.Cheque, cheques []cheque.Cheque, t TransacaoBancaria) *cheque.Cheque {
	if t.ChequeID != "" {
		for i := range cheques {
			if cheques[i].ID == t.ChequeID && cheques[i].Estado != cheque.EstadoCancelado {
				return &cheques[i]
			}
		}
	}
	if c, ok := registo[cheque.NormalizarNumero(t.ChequeNumero)]; ok {
		return &c
	}
	return nil
}

// notasCheque são as formas em que o número aparece nas observações do pagamento.
func notasCheque(numero string, c *cheque.Cheque) []string {
	notas := []string{fmt.Sprintf("Cheque nº %s", numero)}
	if c != nil && c.Numero != numero {
		notas = append(notas, fmt.Sprintf("Cheque nº %s", c.Numero))
	}
	return notas
}

// NotaReconciliacao é o texto acrescentado às observações do pagamento.
func NotaReconciliacao(t TransacaoBancaria, manual bool) string {
	if t.ChequeNumero != "" && (!manual || t.Metodo == MetodoCheque) {
		return "Reconciliado com cheque nº " + t.ChequeNumero
	}
	if manual && t.Metodo == MetodoTransferencia {
		return "Reconciliado com transferência bancária"
	}
	return "Reconciliado com extrato bancário"
}

// metodoTransacao traduz o método do pagamento para o da transação.
func metodoTransacao(doPagamento, atual string) string {
	switch {
	case doPagamento == fornecedor.MetodoCheque:
		return MetodoCheque
	case fornecedor.IsTransferencia(doPagamento):
		return MetodoTransferencia
	}
	return atual
}
