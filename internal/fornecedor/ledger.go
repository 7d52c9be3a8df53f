package fornecedor

import (
	"strings"
	"time"

	"github.com/gestaofinanceira/tesouraria/internal/sessao"
	"github.com/gestaofinanceira/tesouraria/internal/store"
	"github.com/gestaofinanceira/tesouraria/internal/util"
)

// Ledger é a coleção de fornecedores aberta dentro de um store.Update.
// Outros pacotes usam-no para alterar pagamentos na mesma transação em que
// gravam as suas próprias coleções, sempre com entrada de histórico.
type Ledger struct {
	Fornecedores []Fornecedor

	ator sessao.Ator
	now  time.Time
}

// Abrir lê a coleção de fornecedores da transação.
func Abrir(tx store.Tx, ator sessao.Ator, now time.Time) (*Ledger, error) {
	fornecedores, err := store.Read[[]Fornecedor](tx, store.KeyFornecedores)
	if err != nil {
		return nil, err
	}
	return &Ledger{Fornecedores: fornecedores, ator: ator, now: now}, nil
}

// Salvar agenda a gravação da coleção.
func (l *Ledger) Salvar(tx store.Tx) error {
	if l.Fornecedores == nil {
		l.Fornecedores = []Fornecedor{}
	}
	return store.Write(tx, store.KeyFornecedores, l.Fornecedores)
}

func (l *Ledger) fornecedorIndex(id string) int {
	for i := range l.Fornecedores {
		if l.Fornecedores[i].ID == id {
			return i
		}
	}
	return -1
}

func (l *Ledger) fornecedorPorNome(nome string) int {
	nome = strings.ToLower(strings.TrimSpace(nome))
	for i := range l.Fornecedores {
		if strings.ToLower(strings.TrimSpace(l.Fornecedores[i].Nome)) == nome {
			return i
		}
	}
	return -1
}

// Localizar encontra o pagamento. Com fornecedorID vazio procura em todos.
func (l *Ledger) Localizar(fornecedorID, pagamentoID string) (fi, pi int, err error) {
	for i := range l.Fornecedores {
		if fornecedorID != "" && l.Fornecedores[i].ID != fornecedorID {
			continue
		}
		for j := range l.Fornecedores[i].Pagamentos {
			if l.Fornecedores[i].Pagamentos[j].ID == pagamentoID {
				return i, j, nil
			}
		}
		if fornecedorID != "" {
			return -1, -1, ErrPagamentoNotFound
		}
	}
	if fornecedorID != "" && l.fornecedorIndex(fornecedorID) < 0 {
		return -1, -1, ErrNotFound
	}
	return -1, -1, ErrPagamentoNotFound
}

// Obter devolve uma cópia do pagamento com o fornecedor.
func (l *Ledger) Obter(fornecedorID, pagamentoID string) (PagamentoComFornecedor, error) {
	fi, pi, err := l.Localizar(fornecedorID, pagamentoID)
	if err != nil {
		return PagamentoComFornecedor{}, err
	}
	f := l.Fornecedores[fi]
	return PagamentoComFornecedor{Pagamento: f.Pagamentos[pi], FornecedorID: f.ID, FornecedorNome: f.Nome}, nil
}

// Alterar aplica fn ao pagamento e registra entrada de atualização com os dois snapshots.
func (l *Ledger) Alterar(fornecedorID, pagamentoID, detalhes string, fn func(p *Pagamento) error) (Pagamento, error) {
	fi, pi, err := l.Localizar(fornecedorID, pagamentoID)
	if err != nil {
		return Pagamento{}, err
	}
	p := l.Fornecedores[fi].Pagamentos[pi]
	antes := p.snapshot()
	if err := fn(&p); err != nil {
		return Pagamento{}, err
	}
	l.registrar(&p, AcaoAtualizar, detalhes, antes, p.snapshot())
	l.Fornecedores[fi].Pagamentos[pi] = p
	return p, nil
}

// Liquidar marca o pagamento como pago na data e acrescenta a nota às observações.
func (l *Ledger) Liquidar(fornecedorID, pagamentoID string, data time.Time, nota, detalhes string) (Pagamento, error) {
	return l.Alterar(fornecedorID, pagamentoID, detalhes, func(p *Pagamento) error {
		p.marcarPago(data)
		if nota != "" {
			p.Observacoes = AnexarObservacao(p.Observacoes, nota)
		}
		return nil
	})
}

// Reabrir devolve o pagamento a pendente e desfaz a ligação bancária.
func (l *Ledger) Reabrir(fornecedorID, pagamentoID, detalhes string) (Pagamento, error) {
	return l.Alterar(fornecedorID, pagamentoID, detalhes, func(p *Pagamento) error {
		p.Estado = EstadoPendente
		p.DataPagamento = nil
		p.Reconciliado = false
		p.TransacaoBancariaID = ""
		return nil
	})
}

// Conciliar liquida o pagamento pela transação bancária e guarda a ligação.
// Um metodo vazio mantém o método do pagamento.
func (l *Ledger) Conciliar(fornecedorID, pagamentoID, transacaoID string, data time.Time, metodo, nota string) (Pagamento, error) {
	return l.Alterar(fornecedorID, pagamentoID, "Pagamento reconciliado: "+nota, func(p *Pagamento) error {
		if p.Estado != EstadoPago || p.DataPagamento == nil {
			p.marcarPago(data)
		}
		p.Reconciliado = true
		p.TransacaoBancariaID = transacaoID
		if metodo != "" {
			p.Metodo = metodo
		}
		if nota != "" {
			p.Observacoes = AnexarObservacao(p.Observacoes, nota)
		}
		return nil
	})
}

func (l *Ledger) registrar(p *Pagamento, acao, detalhes string, antes, depois *Pagamento) {
	p.Historico = append(p.Historico, EntradaHistorico{
		ID:             util.NewID(),
		Timestamp:      l.now,
		UsuarioID:      l.ator.ID,
		UsuarioNome:    l.ator.NomeExibicao(),
		Acao:           acao,
		Detalhes:       detalhes,
		EstadoAnterior: antes,
		EstadoNovo:     depois,
	})
}

// PagamentosEmAberto devolve as faturas não pagas, entrada da conciliação.
func (l *Ledger) PagamentosEmAberto() []PagamentoComFornecedor {
	var out []PagamentoComFornecedor
	for _, f := range l.Fornecedores {
		for _, p := range f.Pagamentos {
			if p.Estado != EstadoPago && p.Tipo == TipoFatura {
				out = append(out, PagamentoComFornecedor{Pagamento: p, FornecedorID: f.ID, FornecedorNome: f.Nome})
			}
		}
	}
	return out
}

func (p *Pagamento) marcarPago(data time.Time) {
	p.Estado = EstadoPago
	d := data
	p.DataPagamento = &d
	switch p.DocumentoRequerido {
	case DocumentoFactura:
		if p.FacturaRecebida == nil {
			p.FacturaRecebida = boolPtr(false)
		}
		if p.ReciboRecebido == nil {
			p.ReciboRecebido = boolPtr(false)
		}
	case DocumentoVD:
		if p.VDRecebido == nil {
			p.VDRecebido = boolPtr(false)
		}
	}
}

// AnexarObservacao junta a nota às observações existentes com " | ".
func AnexarObservacao(obs, nota string) string {
	if strings.TrimSpace(obs) == "" {
		return nota
	}
	return obs + " | " + nota
}
