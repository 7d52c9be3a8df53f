package notificacao

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/gestaofinanceira/tesouraria/internal/config"
	"github.com/gestaofinanceira/tesouraria/internal/fornecedor"
	"github.com/gestaofinanceira/tesouraria/internal/sessao"
	"github.com/gestaofinanceira/tesouraria/internal/store"
	"github.com/gestaofinanceira/tesouraria/internal/usuario"
)

var agora = time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC)

type notifierStub struct {
	mu       sync.Mutex
	enviados []Alerta
	err      error
}

func (n *notifierStub) Notify(_ context.Context, msg Alerta) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enviados = append(n.enviados, msg)
	return n.err
}

func newTestService(t *testing.T) (*Service, *store.Memory, *notifierStub) {
	t.Helper()
	mem := store.NewMemory()
	svc := NewService(mem, zerolog.Nop(), func() time.Time { return agora }, time.UTC)
	stub := &notifierStub{}
	svc.ComNotifier(stub)
	return svc, mem, stub
}

func TestEnviarPrioridadeSegueTipo(t *testing.T) {
	svc, _, stub := newTestService(t)
	ctx := context.Background()

	info, err := svc.Enviar(ctx, Nova{Titulo: "Pagamento confirmado", PapelAlvo: AlvoTodos})
	if err != nil {
		t.Fatalf("enviar: %v", err)
	}
	if info.Prioridade != PrioridadeNormal || info.Tipo != TipoInfo {
		t.Fatalf("expected normal info, got %+v", info)
	}
	apr, err := svc.Enviar(ctx, Nova{Titulo: "Nova aprovação", PapelAlvo: usuario.PapelTesoureira, Tipo: TipoAprovacao})
	if err != nil {
		t.Fatalf("enviar: %v", err)
	}
	if apr.Prioridade != PrioridadeAlta {
		t.Fatalf("expected high priority for approval, got %s", apr.Prioridade)
	}
	if len(stub.enviados) != 1 || stub.enviados[0].Titulo != "Nova aprovação" {
		t.Fatalf("expected only the approval to reach the notifier, got %+v", stub.enviados)
	}

	todas, _ := svc.Listar(ctx)
	if len(todas) != 2 || todas[0].ID != apr.ID {
		t.Fatalf("expected newest first, got %+v", todas)
	}

	if _, err := svc.Enviar(ctx, Nova{Titulo: " "}); !errors.Is(err, ErrTituloVazio) {
		t.Fatalf("expected ErrTituloVazio, got %v", err)
	}
	if _, err := svc.Enviar(ctx, Nova{Titulo: "x", Tipo: "urgent"}); !errors.Is(err, ErrTipoInvalido) {
		t.Fatalf("expected ErrTipoInvalido, got %v", err)
	}
}

func TestEnviarIgnoraFalhaDoNotifier(t *testing.T) {
	svc, _, stub := newTestService(t)
	stub.err = errors.New("webhook fora do ar")
	if _, err := svc.Enviar(context.Background(), Nova{Titulo: "Aprovar", Tipo: TipoAprovacao}); err != nil {
		t.Fatalf("notifier failure must not fail Enviar, got %v", err)
	}
}

func TestFeedPorPapelEContagem(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	_, _ = svc.Enviar(ctx, Nova{Titulo: "geral"})
	_, _ = svc.Enviar(ctx, Nova{Titulo: "todos", PapelAlvo: AlvoTodos, Tipo: TipoAviso})
	apr, _ := svc.Enviar(ctx, Nova{Titulo: "aprovar", PapelAlvo: usuario.PapelReitor, Tipo: TipoAprovacao})
	_, _ = svc.Enviar(ctx, Nova{Titulo: "tesouraria", PapelAlvo: usuario.PapelTesoureira})

	reitor, _ := svc.ParaPapel(ctx, usuario.PapelReitor)
	if len(reitor) != 3 {
		t.Fatalf("expected 3 visible to reitor, got %d", len(reitor))
	}
	c, _ := svc.Contagem(ctx, usuario.PapelReitor)
	if c.NaoLidas != 3 || c.AltaPrioridade != 1 || !c.Urgente {
		t.Fatalf("unexpected count %+v", c)
	}

	if err := svc.MarcarLida(ctx, apr.ID); err != nil {
		t.Fatalf("marcar: %v", err)
	}
	c, _ = svc.Contagem(ctx, usuario.PapelReitor)
	if c.NaoLidas != 2 || c.Urgente {
		t.Fatalf("expected approval read, got %+v", c)
	}

	n, err := svc.MarcarTodasLidas(ctx, usuario.PapelReitor)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 marked, got %d %v", n, err)
	}
	tes, _ := svc.Contagem(ctx, usuario.PapelTesoureira)
	if tes.NaoLidas != 1 {
		t.Fatalf("treasurer notification must stay unread, got %+v", tes)
	}

	if err := svc.Remover(ctx, apr.ID); err != nil {
		t.Fatalf("remover: %v", err)
	}
	if err := svc.Remover(ctx, apr.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func semearFornecedor(t *testing.T, mem *store.Memory, email string) {
	t.Helper()
	fornecedores := []fornecedor.Fornecedor{{
		ID:    "f1",
		Nome:  "Gráfica Central",
		Email: email,
		Pagamentos: []fornecedor.Pagamento{{
			ID:             "p1",
			Referencia:     "FT-2024/031",
			Valor:          decimal.RequireFromString("1250.5"),
			DataVencimento: time.Date(2024, 3, 28, 0, 0, 0, 0, time.UTC),
			Estado:         fornecedor.EstadoPendente,
			Tipo:           fornecedor.TipoFatura,
		}},
	}}
	err := mem.Update(context.Background(), []string{store.KeyFornecedores}, func(tx store.Tx) error {
		return store.Write(tx, store.KeyFornecedores, fornecedores)
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestNotificarFornecedor(t *testing.T) {
	svc, mem, stub := newTestService(t)
	semearFornecedor(t, mem, "contas@grafica.co.mz")
	ctx := sessao.NoContexto(context.Background(), sessao.Ator{ID: "u1", Username: "tes", Nome: "Ana Tesoureira"})

	reg, err := svc.NotificarFornecedor(ctx, PedidoFornecedor{PagamentoID: "p1"})
	if err != nil {
		t.Fatalf("notificar: %v", err)
	}
	if reg.Email != "contas@grafica.co.mz" || reg.FornecedorNome != "Gráfica Central" {
		t.Fatalf("expected supplier defaults, got %+v", reg)
	}
	for _, frag := range []string{"Prezado Gráfica Central,", "Referência: FT-2024/031", "Data de Vencimento: 28/03/2024", "Valor: 1250.50 MT", "Departamento Financeiro"} {
		if !strings.Contains(reg.Mensagem, frag) {
			t.Fatalf("expected message to contain %q, got %q", frag, reg.Mensagem)
		}
	}
	if len(stub.enviados) != 1 || stub.enviados[0].Destino != reg.Email {
		t.Fatalf("expected delivery to supplier email, got %+v", stub.enviados)
	}

	fornecedores, _ := store.Load[[]fornecedor.Fornecedor](context.Background(), mem, store.KeyFornecedores)
	if p := fornecedores[0].Pagamentos[0]; !p.LembreteEnviado || len(p.Historico) != 1 {
		t.Fatalf("expected reminder flag and history entry, got %+v", p)
	}
	hist, _ := svc.HistoricoFornecedores(context.Background(), "f1")
	if len(hist) != 1 || hist[0].EnviadoPor == "" {
		t.Fatalf("expected recorded notice, got %+v", hist)
	}
}

func TestNotificarFornecedorExigeEmail(t *testing.T) {
	svc, mem, _ := newTestService(t)
	semearFornecedor(t, mem, "")
	ctx := sessao.NoContexto(context.Background(), sessao.Ator{ID: "u1", Username: "tes"})

	if _, err := svc.NotificarFornecedor(ctx, PedidoFornecedor{PagamentoID: "p1"}); !errors.Is(err, ErrEmailObrigatorio) {
		t.Fatalf("expected ErrEmailObrigatorio, got %v", err)
	}
	if _, err := svc.NotificarFornecedor(ctx, PedidoFornecedor{PagamentoID: "nada", Email: "a@b.co"}); !errors.Is(err, fornecedor.ErrPagamentoNotFound) {
		t.Fatalf("expected ErrPagamentoNotFound, got %v", err)
	}
	hist, _ := svc.HistoricoFornecedores(context.Background(), "")
	if len(hist) != 0 {
		t.Fatalf("failed notices must not be recorded, got %d", len(hist))
	}
}

func TestMonitorAlertaQuandoPendenciasCrescem(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	digest := &notifierStub{}
	mon := NewMonitor(svc, config.NotificacoesConfig{Enabled: true}, zerolog.Nop(), digest)

	if err := mon.RunOnce(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(digest.enviados) != 0 {
		t.Fatalf("expected no digest on empty feed, got %+v", digest.enviados)
	}

	_, _ = svc.Enviar(ctx, Nova{Titulo: "aprovar", PapelAlvo: usuario.PapelDirectoraFinanceira, Tipo: TipoAprovacao})
	_ = mon.RunOnce(ctx)
	if len(digest.enviados) != 1 {
		t.Fatalf("expected one digest for the director, got %+v", digest.enviados)
	}
	if c := mon.Ultimo().Papeis[usuario.PapelDirectoraFinanceira]; c.AltaPrioridade != 1 {
		t.Fatalf("unexpected snapshot %+v", c)
	}

	_ = mon.RunOnce(ctx)
	if len(digest.enviados) != 1 {
		t.Fatalf("unchanged counts must not alert again, got %d", len(digest.enviados))
	}
}
