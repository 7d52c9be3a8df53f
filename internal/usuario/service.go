package usuario

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/gestaofinanceira/tesouraria/internal/auth"
	"github.com/gestaofinanceira/tesouraria/internal/sessao"
	"github.com/gestaofinanceira/tesouraria/internal/store"
	"github.com/gestaofinanceira/tesouraria/internal/util"
)

// Service reúne regras de cadastro, papéis e autenticação de usuários.
type Service struct {
	store  store.Store
	logger zerolog.Logger
	clock  util.Clock
}

// NewService cria uma nova instância do serviço.
func NewService(s store.Store, logger zerolog.Logger, clock util.Clock) *Service {
	return &Service{store: s, logger: logger, clock: clock}
}

func (s *Service) carregar(ctx context.Context) ([]Usuario, error) {
	return store.Load[[]Usuario](ctx, s.store, store.KeyUsuarios)
}

// Listar devolve todos os usuários.
func (s *Service) Listar(ctx context.Context) ([]Usuario, error) {
	return s.carregar(ctx)
}

// Obter busca usuário pelo id.
func (s *Service) Obter(ctx context.Context, id string) (*Usuario, error) {
	users, err := s.carregar(ctx)
	if err != nil {
		return nil, err
	}
	if i := indexByID(users, id); i >= 0 {
		u := users[i]
		return &u, nil
	}
	return nil, ErrNotFound
}

// ObterPorEmail busca usuário pelo email, sem diferenciar maiúsculas.
func (s *Service) ObterPorEmail(ctx context.Context, email string) (*Usuario, error) {
	users, err := s.carregar(ctx)
	if err != nil {
		return nil, err
	}
	email = normalizeEmail(email)
	for _, u := range users {
		if normalizeEmail(u.Email) == email {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

// Ator resolve o ator de sessão; usuários inativos são recusados.
func (s *Service) Ator(ctx context.Context, id string) (sessao.Ator, error) {
	u, err := s.Obter(ctx, id)
	if err != nil {
		return sessao.Ator{}, err
	}
	if !u.Ativo {
		return sessao.Ator{}, ErrInativo
	}
	return AtorDe(*u), nil
}

// AtorDe converte o usuário em ator de sessão.
func AtorDe(u Usuario) sessao.Ator {
	return sessao.Ator{ID: u.ID, Username: u.Username, Nome: u.NomeCompleto, Email: u.Email, Papel: u.Papel}
}

// TemPermissao verifica a permissão do usuário persistido.
func (s *Service) TemPermissao(ctx context.Context, usuarioID, permissao string) (bool, error) {
	u, err := s.Obter(ctx, usuarioID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return TemPermissao(*u, permissao), nil
}

// Bootstrap garante o administrador inicial. Idempotente.
func (s *Service) Bootstrap(ctx context.Context, in BootstrapAdmin) (*Usuario, error) {
	email := normalizeEmail(in.Email)
	if err := util.ValidateEmail(email); err != nil {
		return nil, err
	}
	if !auth.ValidHash(in.SenhaHash) {
		return nil, auth.ErrHashInvalido
	}
	username := strings.TrimSpace(in.Username)
	if username == "" {
		username = strings.SplitN(email, "@", 2)[0]
	}

	var result Usuario
	err := store.Modify(ctx, s.store, store.KeyUsuarios, func(users []Usuario) ([]Usuario, error) {
		for i := range users {
			if normalizeEmail(users[i].Email) != email {
				continue
			}
			if users[i].Papel != PapelAdmin || !users[i].Protegido || !users[i].Ativo {
				s.logger.Info().Str("email", email).Msg("bootstrap: promovendo administrador inicial")
			}
			users[i].Papel = PapelAdmin
			users[i].Protegido = true
			users[i].Ativo = true
			result = users[i]
			return users, nil
		}

		if conflitoUsername(users, username, "") {
			return nil, fmt.Errorf("bootstrap: %w", ErrDuplicado)
		}

		u := Usuario{
			ID:           util.NewID(),
			Username:     username,
			NomeCompleto: strings.TrimSpace(in.Nome),
			Email:        email,
			Papel:        PapelAdmin,
			SenhaHash:    in.SenhaHash,
			Ativo:        true,
			Protegido:    true,
			CriadoEm:     s.clock.Now(),
		}
		s.logger.Info().Str("email", email).Msg("bootstrap: administrador inicial criado")
		result = u
		return append(users, u), nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Adicionar cadastra usuário. Restrito a administradores.
func (s *Service) Adicionar(ctx context.Context, in NovoUsuario) (*Usuario, error) {
	ator, err := sessao.Exigir(ctx)
	if err != nil {
		return nil, err
	}

	in.Username = strings.TrimSpace(in.Username)
	in.NomeCompleto = strings.TrimSpace(in.NomeCompleto)
	in.Email = normalizeEmail(in.Email)
	in.Papel = NormalizePapel(in.Papel)
	if in.Papel == "" {
		in.Papel = PapelUser
	}

	if err := util.RequireString(in.Username, "username"); err != nil {
		return nil, err
	}
	if err := util.ValidateEmail(in.Email); err != nil {
		return nil, err
	}
	if err := util.ValidatePassword(in.Senha); err != nil {
		return nil, err
	}
	if !IsValidPapel(in.Papel) {
		return nil, ErrPapelInvalido
	}
	if err := validarPermissoes(in.PermissoesPersonalizadas); err != nil {
		return nil, err
	}

	hash, err := auth.Hash(in.Senha)
	if err != nil {
		return nil, fmt.Errorf("hash senha: %w", err)
	}

	ativo := true
	if in.Ativo != nil {
		ativo = *in.Ativo
	}

	var created Usuario
	err = store.Modify(ctx, s.store, store.KeyUsuarios, func(users []Usuario) ([]Usuario, error) {
		if err := exigirAdmin(users, ator.ID); err != nil {
			s.logger.Warn().Str("actor", ator.Username).Msg("tentativa de criar usuário sem ser admin")
			return nil, err
		}
		if conflitoUsername(users, in.Username, "") || conflitoEmail(users, in.Email, "") {
			return nil, ErrDuplicado
		}
		created = Usuario{
			ID:                       util.NewID(),
			Username:                 in.Username,
			NomeCompleto:             in.NomeCompleto,
			Email:                    in.Email,
			Papel:                    in.Papel,
			SenhaHash:                hash,
			Ativo:                    ativo,
			ForcarTrocaSenha:         in.ForcarTrocaSenha,
			PermissoesPersonalizadas: in.PermissoesPersonalizadas,
			CriadoEm:                 s.clock.Now(),
		}
		return append(users, created), nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// Atualizar altera campos informados. Restrito a administradores.
func (s *Service) Atualizar(ctx context.Context, id string, in Atualizacao) (*Usuario, error) {
	ator, err := sessao.Exigir(ctx)
	if err != nil {
		return nil, err
	}
	if in.Papel != nil {
		p := NormalizePapel(*in.Papel)
		if !IsValidPapel(p) {
			return nil, ErrPapelInvalido
		}
		in.Papel = &p
	}
	if in.Email != nil {
		e := normalizeEmail(*in.Email)
		if err := util.ValidateEmail(e); err != nil {
			return nil, err
		}
		in.Email = &e
	}
	if in.PermissoesPersonalizadas != nil {
		if err := validarPermissoes(*in.PermissoesPersonalizadas); err != nil {
			return nil, err
		}
	}

	var updated Usuario
	err = store.Modify(ctx, s.store, store.KeyUsuarios, func(users []Usuario) ([]Usuario, error) {
		if err := exigirAdmin(users, ator.ID); err != nil {
			s.logger.Warn().Str("actor", ator.Username).Msg("tentativa de editar usuário sem ser admin")
			return nil, err
		}
		i := indexByID(users, id)
		if i < 0 {
			return nil, ErrNotFound
		}
		u := users[i]
		if u.Protegido {
			if (in.Papel != nil && *in.Papel != PapelAdmin) || (in.Ativo != nil && !*in.Ativo) {
				return nil, ErrProtegido
			}
		}
		if in.Email != nil && conflitoEmail(users, *in.Email, id) {
			return nil, ErrDuplicado
		}
		if in.NomeCompleto != nil {
			u.NomeCompleto = strings.TrimSpace(*in.NomeCompleto)
		}
		if in.Email != nil {
			u.Email = *in.Email
		}
		if in.Papel != nil {
			u.Papel = *in.Papel
		}
		if in.Ativo != nil {
			u.Ativo = *in.Ativo
		}
		if in.ForcarTrocaSenha != nil {
			u.ForcarTrocaSenha = *in.ForcarTrocaSenha
		}
		if in.PermissoesPersonalizadas != nil {
			u.PermissoesPersonalizadas = *in.PermissoesPersonalizadas
		}
		users[i] = u
		updated = u
		return users, nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Remover exclui usuário. Admin não remove a si próprio nem o administrador inicial.
func (s *Service) Remover(ctx context.Context, id string) error {
	ator, err := sessao.Exigir(ctx)
	if err != nil {
		return err
	}
	return store.Modify(ctx, s.store, store.KeyUsuarios, func(users []Usuario) ([]Usuario, error) {
		if err := exigirAdmin(users, ator.ID); err != nil {
			s.logger.Warn().Str("actor", ator.Username).Msg("tentativa de remover usuário sem ser admin")
			return nil, err
		}
		if id == ator.ID {
			return nil, ErrAutoRemocao
		}
		i := indexByID(users, id)
		if i < 0 {
			return nil, ErrNotFound
		}
		if users[i].Protegido {
			return nil, ErrProtegido
		}
		return append(users[:i], users[i+1:]...), nil
	})
}

// DefinirSenha troca a senha. Permitido ao próprio usuário ou a um admin.
func (s *Service) DefinirSenha(ctx context.Context, id, senha string) error {
	ator, err := sessao.Exigir(ctx)
	if err != nil {
		return err
	}
	if err := util.ValidatePassword(senha); err != nil {
		return err
	}
	hash, err := auth.Hash(senha)
	if err != nil {
		return fmt.Errorf("hash senha: %w", err)
	}
	return store.Modify(ctx, s.store, store.KeyUsuarios, func(users []Usuario) ([]Usuario, error) {
		if ator.ID != id {
			if err := exigirAdmin(users, ator.ID); err != nil {
				return nil, err
			}
		}
		i := indexByID(users, id)
		if i < 0 {
			return nil, ErrNotFound
		}
		users[i].SenhaHash = hash
		users[i].ForcarTrocaSenha = false
		return users, nil
	})
}

// Autenticar valida login (username ou email) e senha.
func (s *Service) Autenticar(ctx context.Context, login, senha string) (*Usuario, error) {
	login = strings.TrimSpace(login)
	if login == "" || senha == "" {
		return nil, ErrCredenciaisInvalidas
	}
	users, err := s.carregar(ctx)
	if err != nil {
		return nil, err
	}
	var found *Usuario
	for i := range users {
		if strings.EqualFold(users[i].Username, login) || normalizeEmail(users[i].Email) == normalizeEmail(login) {
			found = &users[i]
			break
		}
	}
	if found == nil || !found.Ativo {
		return nil, ErrCredenciaisInvalidas
	}
	ok, err := auth.Verify(senha, found.SenhaHash)
	if err != nil {
		s.logger.Warn().Err(err).Str("usuario", found.Username).Msg("hash de senha ilegível")
		return nil, ErrCredenciaisInvalidas
	}
	if !ok {
		return nil, ErrCredenciaisInvalidas
	}
	u := *found
	return &u, nil
}

func exigirAdmin(users []Usuario, atorID string) error {
	i := indexByID(users, atorID)
	if i < 0 || users[i].Papel != PapelAdmin || !users[i].Ativo {
		return ErrSemPermissao
	}
	return nil
}

func indexByID(users []Usuario, id string) int {
	for i := range users {
		if users[i].ID == id {
			return i
		}
	}
	return -1
}

func conflitoUsername(users []Usuario, username, exceto string) bool {
	for _, u := range users {
		if u.ID != exceto && strings.EqualFold(u.Username, username) {
			return true
		}
	}
	return false
}

func conflitoEmail(users []Usuario, email, exceto string) bool {
	for _, u := range users {
		if u.ID != exceto && normalizeEmail(u.Email) == email {
			return true
		}
	}
	return false
}

func validarPermissoes(perms []string) error {
	for _, p := range perms {
		if !IsValidPermissao(p) {
			return fmt.Errorf("%w: %s", ErrPermissaoInvalida, p)
		}
	}
	return nil
}
