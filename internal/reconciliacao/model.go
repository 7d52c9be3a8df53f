package reconciliacao

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound        = errors.New("transação não encontrada")
	ErrJaReconciliada  = errors.New("transação já reconciliada")
	ErrNaoReconciliada = errors.New("transação não está reconciliada")
	ErrPerfilInvalido  = errors.New("perfil de banco inválido")
	ErrTipoInvalido    = errors.New("tipo de transação inválido")
	ErrValorInvalido   = errors.New("valor deve ser maior que zero")
	ErrSemTransacoes   = errors.New("extrato sem transações válidas")
)

const (
	TipoCredito = "credito"
	TipoDebito  = "debito"

	MetodoCheque        = "cheque"
	MetodoTransferencia = "transferencia"
	MetodoDeposito      = "deposito"
	MetodoOutro         = "outro"

	OrigemImportado = "importado"
	OrigemManual    = "manual"
	OrigemCheque    = "cheque"
)

// Perfis de extrato aceitos na importação.
const (
	PerfilBCI      = "bci"
	PerfilBIM      = "bim"
	PerfilStandard = "standard"
	PerfilGenerico = "generico"
)

// TransacaoBancaria é uma linha de extrato, importada ou lançada à mão.
type TransacaoBancaria struct {
	ID           string          `json:"id"`
	Data         time.Time       `json:"data"`
	Descricao    string          `json:"descricao"`
	Valor        decimal.Decimal `json:"valor"`
	Tipo         string          `json:"tipo"`
	Reconciliado bool            `json:"reconciliado"`
	PagamentoID  string          `json:"pagamentoId,omitempty"`
	FornecedorID string          `json:"fornecedorId,omitempty"`
	ChequeID     string          `json:"chequeId,omitempty"`
	ChequeNumero string          `json:"chequeNumero,omitempty"`
	Metodo       string          `json:"metodo"`
	Origem       string          `json:"origem"`
	Arquivo      string          `json:"arquivo,omitempty"`
	CriadoEm     time.Time       `json:"criadoEm"`
}

// NovaTransacao são os dados do lançamento manual. Metodo e ChequeNumero
// vazios são deduzidos da descrição.
type NovaTransacao struct {
	Data         time.Time       `json:"data"`
	Descricao    string          `json:"descricao"`
	Valor        decimal.Decimal `json:"valor"`
	Tipo         string          `json:"tipo"`
	Metodo       string          `json:"metodo"`
	ChequeNumero string          `json:"chequeNumero"`
}

// Filtro restringe a listagem; campos vazios não filtram.
type Filtro struct {
	Ano          int
	Mes          time.Month
	Busca        string
	Reconciliado *bool
}

// Resumo conta o resultado de uma reconciliação automática.
type Resumo struct {
	Analisadas       int               `json:"analisadas"`
	Reconciliadas    int               `json:"reconciliadas"`
	Correspondencias []Correspondencia `json:"correspondencias"`
}

// ResultadoImportacao descreve um extrato importado.
type ResultadoImportacao struct {
	Importadas    int     `json:"importadas"`
	Ignoradas     int     `json:"ignoradas"`
	Arquivo       string  `json:"arquivo,omitempty"`
	Reconciliacao *Resumo `json:"reconciliacao,omitempty"`
}
