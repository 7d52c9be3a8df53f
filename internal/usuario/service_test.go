package usuario

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/gestaofinanceira/tesouraria/internal/auth"
	"github.com/gestaofinanceira/tesouraria/internal/sessao"
	"github.com/gestaofinanceira/tesouraria/internal/store"
)

func fixedClock() time.Time {
	return time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
}

func newTestService(t *testing.T) (*Service, *Usuario) {
	t.Helper()
	svc := NewService(store.NewMemory(), zerolog.Nop(), fixedClock)
	hash, err := auth.Hash("senha-inicial")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	admin, err := svc.Bootstrap(context.Background(), BootstrapAdmin{
		Email:     "Admin@Exemplo.ac.mz",
		Nome:      "Administrador",
		Username:  "admin",
		SenhaHash: hash,
	})
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	return svc, admin
}

func asAtor(u *Usuario) context.Context {
	return sessao.NoContexto(context.Background(), AtorDe(*u))
}

func TestBootstrapIsIdempotent(t *testing.T) {
	svc, admin := newTestService(t)
	if admin.Papel != PapelAdmin || !admin.Protegido {
		t.Fatalf("expected protected admin, got %+v", admin)
	}

	again, err := svc.Bootstrap(context.Background(), BootstrapAdmin{Email: "admin@exemplo.ac.mz", SenhaHash: admin.SenhaHash})
	if err != nil {
		t.Fatalf("second bootstrap: %v", err)
	}
	if again.ID != admin.ID {
		t.Fatalf("expected same admin, got %s vs %s", again.ID, admin.ID)
	}

	users, _ := svc.Listar(context.Background())
	if len(users) != 1 {
		t.Fatalf("expected 1 user, got %d", len(users))
	}
}

func TestBootstrapPromotesExistingUser(t *testing.T) {
	svc, admin := newTestService(t)
	ctx := asAtor(admin)

	u, err := svc.Adicionar(ctx, NovoUsuario{Username: "ana", Email: "ana@exemplo.ac.mz", Senha: "12345678", Papel: PapelTesoureira})
	if err != nil {
		t.Fatalf("adicionar: %v", err)
	}

	promoted, err := svc.Bootstrap(context.Background(), BootstrapAdmin{Email: "ana@exemplo.ac.mz", SenhaHash: admin.SenhaHash})
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if promoted.ID != u.ID || promoted.Papel != PapelAdmin || !promoted.Protegido {
		t.Fatalf("expected promotion of existing user, got %+v", promoted)
	}
}

func TestAdminOnlyMutations(t *testing.T) {
	svc, admin := newTestService(t)
	ctx := asAtor(admin)

	tes, err := svc.Adicionar(ctx, NovoUsuario{Username: "tes", Email: "tes@exemplo.ac.mz", Senha: "12345678", Papel: PapelTesoureira})
	if err != nil {
		t.Fatalf("adicionar: %v", err)
	}

	tesCtx := asAtor(tes)
	if _, err := svc.Adicionar(tesCtx, NovoUsuario{Username: "x", Email: "x@exemplo.ac.mz", Senha: "12345678"}); !errors.Is(err, ErrSemPermissao) {
		t.Fatalf("expected ErrSemPermissao, got %v", err)
	}
	if err := svc.Remover(tesCtx, admin.ID); !errors.Is(err, ErrSemPermissao) {
		t.Fatalf("expected ErrSemPermissao on remove, got %v", err)
	}
	if _, err := svc.Adicionar(context.Background(), NovoUsuario{Username: "y", Email: "y@exemplo.ac.mz", Senha: "12345678"}); !errors.Is(err, sessao.ErrNaoAutenticado) {
		t.Fatalf("expected ErrNaoAutenticado, got %v", err)
	}
}

func TestAdicionarRejectsDuplicates(t *testing.T) {
	svc, admin := newTestService(t)
	ctx := asAtor(admin)

	if _, err := svc.Adicionar(ctx, NovoUsuario{Username: "ADMIN", Email: "outro@exemplo.ac.mz", Senha: "12345678"}); !errors.Is(err, ErrDuplicado) {
		t.Fatalf("expected duplicate username, got %v", err)
	}
	if _, err := svc.Adicionar(ctx, NovoUsuario{Username: "novo", Email: "admin@exemplo.ac.mz", Senha: "12345678"}); !errors.Is(err, ErrDuplicado) {
		t.Fatalf("expected duplicate email, got %v", err)
	}
	if _, err := svc.Adicionar(ctx, NovoUsuario{Username: "novo", Email: "novo@exemplo.ac.mz", Senha: "12345678", Papel: "gerente"}); !errors.Is(err, ErrPapelInvalido) {
		t.Fatalf("expected ErrPapelInvalido, got %v", err)
	}
}

func TestRemoverGuards(t *testing.T) {
	svc, admin := newTestService(t)
	ctx := asAtor(admin)

	if err := svc.Remover(ctx, admin.ID); !errors.Is(err, ErrAutoRemocao) {
		t.Fatalf("expected ErrAutoRemocao, got %v", err)
	}

	outro, err := svc.Adicionar(ctx, NovoUsuario{Username: "outro", Email: "outro@exemplo.ac.mz", Senha: "12345678", Papel: PapelAdmin})
	if err != nil {
		t.Fatalf("adicionar: %v", err)
	}
	if err := svc.Remover(asAtor(outro), admin.ID); !errors.Is(err, ErrProtegido) {
		t.Fatalf("expected ErrProtegido, got %v", err)
	}
	papel := PapelUser
	if _, err := svc.Atualizar(asAtor(outro), admin.ID, Atualizacao{Papel: &papel}); !errors.Is(err, ErrProtegido) {
		t.Fatalf("expected ErrProtegido on demote, got %v", err)
	}
	if err := svc.Remover(ctx, outro.ID); err != nil {
		t.Fatalf("expected removal, got %v", err)
	}
}

func TestPermissionTable(t *testing.T) {
	reitor := Usuario{Papel: PapelReitor, Ativo: true}
	if !TemPermissao(reitor, PermApproveBankOperations) {
		t.Fatalf("reitor should approve bank operations")
	}
	if TemPermissao(reitor, PermApprovePettyCash) {
		t.Fatalf("reitor should not approve petty cash")
	}

	tes := Usuario{Papel: PapelTesoureira, Ativo: true}
	if !TemPermissao(tes, PermManageFundoManeio) || TemPermissao(tes, PermDeletePagamento) {
		t.Fatalf("unexpected tesoureira permissions %v", Permissoes(tes))
	}

	user := Usuario{Papel: PapelUser, Ativo: true, PermissoesPersonalizadas: []string{PermNotificarFornecedor, "inexistente"}}
	if !TemPermissao(user, PermNotificarFornecedor) {
		t.Fatalf("custom permission should be honored")
	}
	if TemPermissao(user, "inexistente") {
		t.Fatalf("unknown permission must be ignored")
	}

	admin := Usuario{Papel: PapelAdmin, Ativo: true}
	if len(Permissoes(admin)) != len(TodasPermissoes) {
		t.Fatalf("admin should have all permissions")
	}

	inativo := Usuario{Papel: PapelAdmin, Ativo: false}
	if TemPermissao(inativo, PermViewPagamentos) {
		t.Fatalf("inactive user must have no permission")
	}
}

func TestAutenticar(t *testing.T) {
	svc, admin := newTestService(t)

	if _, err := svc.Autenticar(context.Background(), "admin", "senha-inicial"); err != nil {
		t.Fatalf("expected login by username, got %v", err)
	}
	if _, err := svc.Autenticar(context.Background(), "ADMIN@exemplo.ac.mz", "senha-inicial"); err != nil {
		t.Fatalf("expected login by email, got %v", err)
	}
	if _, err := svc.Autenticar(context.Background(), "admin", "errada"); !errors.Is(err, ErrCredenciaisInvalidas) {
		t.Fatalf("expected ErrCredenciaisInvalidas, got %v", err)
	}

	ctx := asAtor(admin)
	u, err := svc.Adicionar(ctx, NovoUsuario{Username: "ina", Email: "ina@exemplo.ac.mz", Senha: "12345678", ForcarTrocaSenha: true})
	if err != nil {
		t.Fatalf("adicionar: %v", err)
	}
	if err := svc.DefinirSenha(asAtor(u), u.ID, "nova-senha-1"); err != nil {
		t.Fatalf("definir senha: %v", err)
	}
	got, err := svc.Autenticar(context.Background(), "ina", "nova-senha-1")
	if err != nil {
		t.Fatalf("login after password change: %v", err)
	}
	if got.ForcarTrocaSenha {
		t.Fatalf("expected force flag cleared")
	}

	inativo := false
	if _, err := svc.Atualizar(ctx, u.ID, Atualizacao{Ativo: &inativo}); err != nil {
		t.Fatalf("desativar: %v", err)
	}
	if _, err := svc.Autenticar(context.Background(), "ina", "nova-senha-1"); !errors.Is(err, ErrCredenciaisInvalidas) {
		t.Fatalf("inactive user must not log in, got %v", err)
	}
	if _, err := svc.Ator(context.Background(), u.ID); !errors.Is(err, ErrInativo) {
		t.Fatalf("expected ErrInativo, got %v", err)
	}
}
