package usuario

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	httpmiddleware "github.com/gestaofinanceira/tesouraria/internal/http/middleware"
	"github.com/gestaofinanceira/tesouraria/internal/http/render"
)

// Handler expõe a administração de usuários.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router, guard httpmiddleware.Guard) {
	r.Get("/permissoes", h.handlePermissoes)
	r.Route("/usuarios", func(r chi.Router) {
		r.With(guard(PermViewUsers)).Get("/", h.handleListar)
		r.Post("/", h.handleAdicionar)
		r.With(guard(PermViewUsers)).Get("/{id}", h.handleObter)
		r.Patch("/{id}", h.handleAtualizar)
		r.Delete("/{id}", h.handleRemover)
		r.Put("/{id}/senha", h.handleSenha)
	})
}

var errMappings = []render.Mapping{
	{Err: ErrNotFound, Status: http.StatusNotFound, Code: render.CodeNotFound},
	{Err: ErrDuplicado, Status: http.StatusConflict, Code: render.CodeConflict},
	{Err: ErrPapelInvalido, Status: http.StatusBadRequest, Code: render.CodeValidation},
	{Err: ErrPermissaoInvalida, Status: http.StatusBadRequest, Code: render.CodeValidation},
	{Err: ErrSemPermissao, Status: http.StatusForbidden, Code: render.CodeForbidden},
	{Err: ErrAutoRemocao, Status: http.StatusUnprocessableEntity, Code: render.CodeBusinessRule},
	{Err: ErrProtegido, Status: http.StatusUnprocessableEntity, Code: render.CodeBusinessRule},
}

func writeServiceError(w http.ResponseWriter, err error) {
	render.Error(w, err, errMappings...)
}

func (h *Handler) handlePermissoes(w http.ResponseWriter, r *http.Request) {
	render.WriteJSON(w, http.StatusOK, map[string]any{"permissoes": TodasPermissoes})
}

func (h *Handler) handleListar(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.Listar(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]Publico, 0, len(users))
	for _, u := range users {
		out = append(out, u.Publico())
	}
	render.WriteJSON(w, http.StatusOK, map[string]any{"usuarios": out})
}

func (h *Handler) handleObter(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.Obter(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, u.Publico())
}

func (h *Handler) handleAdicionar(w http.ResponseWriter, r *http.Request) {
	var payload NovoUsuario
	if !render.DecodeJSON(w, r, &payload) {
		return
	}
	u, err := h.service.Adicionar(r.Context(), payload)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	render.WriteJSON(w, http.StatusCreated, u.Publico())
}

func (h *Handler) handleAtualizar(w http.ResponseWriter, r *http.Request) {
	var payload Atualizacao
	if !render.DecodeJSON(w, r, &payload) {
		return
	}
	u, err := h.service.Atualizar(r.Context(), chi.URLParam(r, "id"), payload)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, u.Publico())
}

func (h *Handler) handleRemover(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Remover(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSenha(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Senha string `json:"senha"`
	}
	if !render.DecodeJSON(w, r, &payload) {
		return
	}
	if err := h.service.DefinirSenha(r.Context(), chi.URLParam(r, "id"), payload.Senha); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
