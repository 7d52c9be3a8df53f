package cheque

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gestaofinanceira/tesouraria/internal/fornecedor"
	httpmiddleware "github.com/gestaofinanceira/tesouraria/internal/http/middleware"
	"github.com/gestaofinanceira/tesouraria/internal/http/render"
	"github.com/gestaofinanceira/tesouraria/internal/usuario"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router, guard httpmiddleware.Guard) {
	r.Route("/cheques", func(r chi.Router) {
		r.Use(guard(usuario.PermViewCheques))
		r.Get("/", h.handleListar)
		r.Get("/numero/{numero}", h.handleObterPorNumero)
		r.With(guard(usuario.PermEditPagamento)).Post("/", h.handleEmitir)
		r.With(guard(usuario.PermEditPagamento)).Post("/{id}/compensar", h.handleCompensar)
		r.With(guard(usuario.PermEditPagamento)).Post("/{id}/cancelar", h.handleCancelar)
	})
}

var errMappings = []render.Mapping{
	{Err: ErrNotFound, Status: http.StatusNotFound, Code: render.CodeNotFound},
	{Err: fornecedor.ErrNotFound, Status: http.StatusNotFound, Code: render.CodeNotFound},
	{Err: fornecedor.ErrPagamentoNotFound, Status: http.StatusNotFound, Code: render.CodeNotFound},
	{Err: ErrNumeroDuplicado, Status: http.StatusConflict, Code: render.CodeConflict},
	{Err: ErrChequeExistente, Status: http.StatusConflict, Code: render.CodeConflict},
	{Err: ErrTransicaoInvalida, Status: http.StatusUnprocessableEntity, Code: render.CodeBusinessRule},
}

func (h *Handler) handleListar(w http.ResponseWriter, r *http.Request) {
	cheques, err := h.service.Listar(r.Context(), r.URL.Query().Get("estado"))
	if err != nil {
		render.Error(w, err, errMappings...)
		return
	}
	render.WriteJSON(w, http.StatusOK, map[string]any{"cheques": cheques})
}

func (h *Handler) handleObterPorNumero(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.ObterPorNumero(r.Context(), chi.URLParam(r, "numero"))
	if err != nil {
		render.Error(w, err, errMappings...)
		return
	}
	render.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) handleEmitir(w http.ResponseWriter, r *http.Request) {
	var payload Emissao
	if !render.DecodeJSON(w, r, &payload) {
		return
	}
	c, err := h.service.Emitir(r.Context(), payload)
	if err != nil {
		render.Error(w, err, errMappings...)
		return
	}
	render.WriteJSON(w, http.StatusCreated, c)
}

func (h *Handler) handleCompensar(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Data *time.Time `json:"data"`
	}
	if r.ContentLength != 0 && !render.DecodeJSON(w, r, &payload) {
		return
	}
	c, err := h.service.Compensar(r.Context(), chi.URLParam(r, "id"), payload.Data)
	if err != nil {
		render.Error(w, err, errMappings...)
		return
	}
	render.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) handleCancelar(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.Cancelar(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		render.Error(w, err, errMappings...)
		return
	}
	render.WriteJSON(w, http.StatusOK, c)
}
