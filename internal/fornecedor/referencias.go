package fornecedor

import (
	"encoding/json"
	"errors"

	"github.com/gestaofinanceira/tesouraria/internal/store"
)

// ErrPagamentoReconciliado bloqueia alterações que deixariam uma transação
// bancária reconciliada sem pagamento pago correspondente.
var ErrPagamentoReconciliado = errors.New("pagamento reconciliado com transação bancária; desfaça a reconciliação primeiro")

// referencias são as coleções que guardam o fornecedor dono de um pagamento,
// com o nome do campo do pagamento em cada uma.
var referencias = []struct{ chave, campo string }{
	{store.KeyTransacoesBancarias, "pagamentoId"},
	{store.KeyCheques, "pagamentoId"},
	{store.KeyWorkflows, "paymentId"},
}

func chavesReferencias() []string {
	out := make([]string, 0, len(referencias))
	for _, r := range referencias {
		out = append(out, r.chave)
	}
	return out
}

// realocar reescreve fornecedorId (e fornecedorNome, quando existe) nos
// documentos que apontam para o pagamento. Os documentos são tratados como
// JSON bruto para não acoplar este pacote aos modelos de quem os grava.
func realocar(tx store.Tx, pagamentoID string, destino Fornecedor) error {
	id, err := json.Marshal(destino.ID)
	if err != nil {
		return err
	}
	nome, err := json.Marshal(destino.Nome)
	if err != nil {
		return err
	}
	for _, r := range referencias {
		docs, err := store.Read[[]map[string]json.RawMessage](tx, r.chave)
		if err != nil {
			return err
		}
		alterado := false
		for _, d := range docs {
			var ref string
			if raw, ok := d[r.campo]; !ok || json.Unmarshal(raw, &ref) != nil || ref != pagamentoID {
				continue
			}
			d["fornecedorId"] = id
			if _, ok := d["fornecedorNome"]; ok {
				d["fornecedorNome"] = nome
			}
			alterado = true
		}
		if alterado {
			if err := store.Write(tx, r.chave, docs); err != nil {
				return err
			}
		}
	}
	return nil
}

type vinculoBancario struct {
	PagamentoID  string `json:"pagamentoId"`
	Reconciliado bool   `json:"reconciliado"`
}

// reconciliado consulta o próprio pagamento e as transações bancárias.
func reconciliado(tx store.Tx, p Pagamento) (bool, error) {
	if p.Reconciliado {
		return true, nil
	}
	vinculos, err := store.Read[[]vinculoBancario](tx, store.KeyTransacoesBancarias)
	if err != nil {
		return false, err
	}
	for _, v := range vinculos {
		if v.Reconciliado && v.PagamentoID == p.ID {
			return true, nil
		}
	}
	return false, nil
}
