package fundomaneio

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

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
	r.Route("/fundo-maneio", func(r chi.Router) {
		r.With(guard(usuario.PermViewFundoManeio)).Get("/", h.handleListar)
		r.With(guard(usuario.PermViewFundoManeio)).Get("/{ano}/{mes}", h.handleObter)
		r.With(guard(usuario.PermManageFundoManeio)).Post("/movimentos", h.handleAdicionar)
		r.With(guard(usuario.PermManageFundoManeio)).Delete("/movimentos/{id}", h.handleRemover)
	})
}

var errMappings = []render.Mapping{
	{Err: ErrNotFound, Status: http.StatusNotFound, Code: render.CodeNotFound},
	{Err: ErrMovimentoNotFound, Status: http.StatusNotFound, Code: render.CodeNotFound},
	{Err: ErrValorInvalido, Status: http.StatusBadRequest, Code: render.CodeValidation},
	{Err: ErrTipoInvalido, Status: http.StatusBadRequest, Code: render.CodeValidation},
	{Err: ErrSaldoInsuficiente, Status: http.StatusUnprocessableEntity, Code: render.CodeBusinessRule},
}

func (h *Handler) handleListar(w http.ResponseWriter, r *http.Request) {
	fundos, err := h.service.Listar(r.Context())
	if err != nil {
		render.Error(w, err, errMappings...)
		return
	}
	render.WriteJSON(w, http.StatusOK, map[string]any{"fundos": fundos})
}

func (h *Handler) handleObter(w http.ResponseWriter, r *http.Request) {
	ano, err1 := strconv.Atoi(chi.URLParam(r, "ano"))
	mes, err2 := strconv.Atoi(chi.URLParam(r, "mes"))
	if err1 != nil || err2 != nil || mes < 1 || mes > 12 {
		render.WriteError(w, http.StatusBadRequest, render.CodeValidation, "mês inválido", nil)
		return
	}
	f, err := h.service.Obter(r.Context(), ano, time.Month(mes))
	if err != nil {
		render.Error(w, err, errMappings...)
		return
	}
	render.WriteJSON(w, http.StatusOK, f)
}

func (h *Handler) handleAdicionar(w http.ResponseWriter, r *http.Request) {
	var payload NovoMovimento
	if !render.DecodeJSON(w, r, &payload) {
		return
	}
	mov, err := h.service.AdicionarMovimento(r.Context(), payload)
	if err != nil {
		render.Error(w, err, errMappings...)
		return
	}
	render.WriteJSON(w, http.StatusCreated, mov)
}

func (h *Handler) handleRemover(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RemoverMovimento(r.Context(), chi.URLParam(r, "id")); err != nil {
		render.Error(w, err, errMappings...)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
