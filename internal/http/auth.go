package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gestaofinanceira/tesouraria/internal/auth"
	"github.com/gestaofinanceira/tesouraria/internal/http/render"
	"github.com/gestaofinanceira/tesouraria/internal/sessao"
	"github.com/gestaofinanceira/tesouraria/internal/usuario"
)

const refreshCookie = "tesouraria_refresh"

// Login autentica por username ou email.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Login string `json:"login"`
		Email string `json:"email"`
		Senha string `json:"senha"`
	}
	if !render.DecodeJSON(w, r, &payload) {
		return
	}

	login := strings.TrimSpace(payload.Login)
	if login == "" {
		login = strings.TrimSpace(payload.Email)
	}
	if login == "" || strings.TrimSpace(payload.Senha) == "" {
		render.WriteError(w, http.StatusBadRequest, render.CodeValidation, "login e senha são obrigatórios", nil)
		return
	}

	u, err := h.usuarios.Autenticar(r.Context(), login, payload.Senha)
	if err != nil {
		h.handleAuthError(w, err)
		return
	}

	token, err := h.refresh.Emitir(r.Context(), u.ID)
	if err != nil {
		h.handleAuthError(w, err)
		return
	}
	h.writeLoginSuccess(w, *u, token)
}

// Refresh rotaciona o refresh token e emite novo token de acesso.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	raw := refreshFromRequest(r)
	if raw == "" {
		render.WriteError(w, http.StatusUnauthorized, render.CodeAuth, "refresh ausente", nil)
		return
	}

	usuarioID, novo, err := h.refresh.Rotacionar(r.Context(), raw)
	if err != nil {
		h.handleAuthError(w, err)
		return
	}
	u, err := h.usuarios.Obter(r.Context(), usuarioID)
	if err == nil && !u.Ativo {
		err = usuario.ErrInativo
	}
	if err != nil {
		_ = h.refresh.Revogar(r.Context(), novo)
		h.clearRefreshCookie(w)
		h.handleAuthError(w, err)
		return
	}
	h.writeLoginSuccess(w, *u, novo)
}

// Logout revoga refresh token atual.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if raw := refreshFromRequest(r); raw != "" {
		if err := h.refresh.Revogar(r.Context(), raw); err != nil {
			log.Warn().Err(err).Msg("falha ao revogar refresh token")
		}
	}
	h.clearRefreshCookie(w)
	render.WriteJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// Me retorna o usuário autenticado com as permissões efetivas.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	ator, err := sessao.Exigir(r.Context())
	if err != nil {
		render.Error(w, err)
		return
	}
	u, err := h.usuarios.Obter(r.Context(), ator.ID)
	if err != nil {
		h.handleAuthError(w, err)
		return
	}
	pub := u.Publico()
	render.WriteJSON(w, http.StatusOK, map[string]any{
		"user":        pub,
		"permissions": pub.Permissoes,
	})
}

func (h *Handler) handleAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, usuario.ErrCredenciaisInvalidas):
		render.WriteError(w, http.StatusUnauthorized, render.CodeAuth, err.Error(), nil)
	case errors.Is(err, auth.ErrInvalidRefresh):
		render.WriteError(w, http.StatusUnauthorized, render.CodeAuth, "refresh inválido", nil)
	case errors.Is(err, usuario.ErrInativo):
		render.WriteError(w, http.StatusForbidden, render.CodeForbidden, err.Error(), nil)
	case errors.Is(err, usuario.ErrNotFound):
		render.WriteError(w, http.StatusUnauthorized, render.CodeAuth, "usuário inválido", nil)
	default:
		render.Error(w, err)
	}
}

func (h *Handler) writeLoginSuccess(w http.ResponseWriter, u usuario.Usuario, refresh string) {
	access, err := h.jwt.Emitir(u.ID, u.Username, u.Papel)
	if err != nil {
		log.Error().Err(err).Str("usuario", u.ID).Msg("falha ao emitir token de acesso")
		render.WriteError(w, http.StatusInternalServerError, render.CodeInternal, "erro ao autenticar", nil)
		return
	}
	h.setRefreshCookie(w, refresh, time.Now().Add(h.refreshTTL))

	render.WriteJSON(w, http.StatusOK, map[string]any{
		"access_token":  access.Token,
		"refresh_token": refresh,
		"expires_in":    int(h.jwt.AccessTTL().Seconds()),
		"user":          u.Publico(),
	})
}

// refreshFromRequest aceita o cookie ou o header X-Refresh-Token, usado pelos clientes CLI.
func refreshFromRequest(r *http.Request) string {
	if c, err := r.Cookie(refreshCookie); err == nil && c.Value != "" {
		return c.Value
	}
	return strings.TrimSpace(r.Header.Get("X-Refresh-Token"))
}

func (h *Handler) cookieFlags() (bool, http.SameSite) {
	if h.devCookies {
		return false, http.SameSiteLaxMode
	}
	return true, http.SameSiteNoneMode
}

func (h *Handler) setRefreshCookie(w http.ResponseWriter, token string, expires time.Time) {
	secure, sameSite := h.cookieFlags()
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    token,
		Path:     "/auth",
		Expires:  expires,
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
	})
}

func (h *Handler) clearRefreshCookie(w http.ResponseWriter) {
	secure, sameSite := h.cookieFlags()
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    "",
		Path:     "/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
	})
}
