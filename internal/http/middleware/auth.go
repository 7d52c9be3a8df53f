package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/gestaofinanceira/tesouraria/internal/auth"
	"github.com/gestaofinanceira/tesouraria/internal/http/render"
	"github.com/gestaofinanceira/tesouraria/internal/sessao"
)

// AtorResolver carrega o usuário atual a partir do subject do token.
type AtorResolver interface {
	Ator(ctx context.Context, id string) (sessao.Ator, error)
}

// PermissionChecker responde se um usuário possui determinada permissão.
type PermissionChecker interface {
	TemPermissao(ctx context.Context, usuarioID, permissao string) (bool, error)
}

// Guard constrói middleware que exige uma permissão.
type Guard func(permissao string) func(http.Handler) http.Handler

func bearer(r *http.Request) string {
	esquema, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(esquema, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Auth valida o JWT de acesso e recarrega o ator do store, de modo que um
// usuário desativado perde o acesso antes do token expirar.
func Auth(jwtManager *auth.JWTManager, resolver AtorResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearer(r)
			if token == "" {
				render.WriteError(w, http.StatusUnauthorized, render.CodeAuth, "token ausente", nil)
				return
			}

			claims, err := jwtManager.ParseAndValidate(token)
			if err != nil {
				render.WriteError(w, http.StatusUnauthorized, render.CodeAuth, "token inválido", nil)
				return
			}

			ator, err := resolver.Ator(r.Context(), claims.Subject)
			if err != nil {
				render.WriteError(w, http.StatusUnauthorized, render.CodeAuth, "usuário inválido ou inativo", nil)
				return
			}

			next.ServeHTTP(w, r.WithContext(sessao.NoContexto(r.Context(), ator)))
		})
	}
}

// RequirePermission consulta as permissões efetivas do ator em cada requisição.
func RequirePermission(checker PermissionChecker) Guard {
	return func(permissao string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				ator, err := sessao.Exigir(r.Context())
				if err != nil {
					render.WriteError(w, http.StatusUnauthorized, render.CodeAuth, err.Error(), nil)
					return
				}
				permitido, err := checker.TemPermissao(r.Context(), ator.ID, permissao)
				if err != nil {
					log.Error().Err(err).Str("permissao", permissao).Str("usuario", ator.ID).Msg("falha ao verificar permissão")
					render.WriteError(w, http.StatusInternalServerError, render.CodeInternal, "não foi possível verificar permissões", nil)
					return
				}
				if !permitido {
					render.WriteError(w, http.StatusForbidden, render.CodeForbidden, "sem permissão: "+permissao, nil)
					return
				}
				next.ServeHTTP(w, r)
			})
		}
	}
}
