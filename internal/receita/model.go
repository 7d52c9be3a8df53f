package receita

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound       = errors.New("receita não encontrada")
	ErrStatusInvalido = errors.New("status de receita inválido")
	ErrValorInvalido  = errors.New("valor deve ser maior que zero")
	ErrCategoriaVazia = errors.New("categoria obrigatória")
	ErrFonteVazia     = errors.New("fonte obrigatória")
	ErrJaRecebida     = errors.New("receita já recebida")
)

const (
	StatusRecebido = "recebido"
	StatusPendente = "pendente"
	StatusAtrasado = "atrasado"
)

// Categorias e Fontes são as listas oferecidas no registo de receitas.
var (
	Categorias = []string{"Mensalidades", "Matrículas", "Taxas", "Doações", "Subsídios", "Eventos", "Serviços", "Outras"}
	Fontes     = []string{"Alunos", "Governo", "Empresas", "ONGs", "Fundações", "Comunidade", "Internacional", "Outras"}
)

// Receita é uma entrada de dinheiro prevista ou recebida.
type Receita struct {
	ID              string          `json:"id"`
	Data            time.Time       `json:"data"`
	Descricao       string          `json:"descricao"`
	Valor           decimal.Decimal `json:"valor"`
	Categoria       string          `json:"categoria"`
	Fonte           string          `json:"fonte"`
	Observacoes     string          `json:"observacoes,omitempty"`
	Status          string          `json:"status"`
	DataRecebimento *time.Time      `json:"dataRecebimento"`
	MetodoPagamento string          `json:"metodoPagamento,omitempty"`
	Comprovante     string          `json:"comprovante,omitempty"`
	Historico       []Evento        `json:"historico,omitempty"`
}

// Evento registra quem alterou a receita.
type Evento struct {
	ID       string    `json:"id"`
	Data     time.Time `json:"data"`
	Usuario  string    `json:"usuario"`
	Acao     string    `json:"acao"`
	Detalhes string    `json:"detalhes"`
}

// DadosReceita são os campos editáveis.
type DadosReceita struct {
	Data            time.Time       `json:"data"`
	Descricao       string          `json:"descricao"`
	Valor           decimal.Decimal `json:"valor"`
	Categoria       string          `json:"categoria"`
	Fonte           string          `json:"fonte"`
	Observacoes     string          `json:"observacoes"`
	Status          string          `json:"status"`
	DataRecebimento *time.Time      `json:"dataRecebimento"`
	MetodoPagamento string          `json:"metodoPagamento"`
	Comprovante     string          `json:"comprovante"`
}

// Filtro restringe a listagem; zero não filtra.
type Filtro struct {
	Ano    int
	Mes    time.Month
	Busca  string
	Status string
}

// TotalMensal agrega as receitas de um mês.
type TotalMensal struct {
	Mes      time.Month      `json:"mes"`
	Total    decimal.Decimal `json:"total"`
	Recebido decimal.Decimal `json:"recebido"`
	Pendente decimal.Decimal `json:"pendente"`
}

// Tendencia compara o recebido no mês com o mês anterior.
type Tendencia struct {
	Ano      int             `json:"ano"`
	Mes      time.Month      `json:"mes"`
	Atual    decimal.Decimal `json:"atual"`
	Anterior decimal.Decimal `json:"anterior"`
	Variacao decimal.Decimal `json:"variacao"`
	Direcao  string          `json:"direcao"`
}

func normalizarStatus(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return StatusPendente
	}
	return s
}

func statusValido(s string) bool {
	return s == StatusRecebido || s == StatusPendente || s == StatusAtrasado
}

// EmAberto indica receita ainda por receber, atrasada ou não.
func (r Receita) EmAberto() bool {
	return r.Status == StatusPendente || r.Status == StatusAtrasado
}

// DataEfetiva é a data de recebimento quando houver, senão a data prevista.
func (r Receita) DataEfetiva() time.Time {
	if r.Status == StatusRecebido && r.DataRecebimento != nil {
		return *r.DataRecebimento
	}
	return r.Data
}
