package orcamento

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	httpmiddleware "github.com/gestaofinanceira/tesouraria/internal/http/middleware"
	"github.com/gestaofinanceira/tesouraria/internal/http/render"
	"github.com/gestaofinanceira/tesouraria/internal/planilha"
	"github.com/gestaofinanceira/tesouraria/internal/usuario"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router, guard httpmiddleware.Guard) {
	r.Route("/orcamentos", func(r chi.Router) {
		r.Use(guard(usuario.PermViewPrevisaoOrcamento))
		r.Get("/", h.handleListar)
		r.Route("/{ano}/{mes}", func(r chi.Router) {
			r.Get("/", h.handleObter)
			r.Get("/execucao", h.handleExecucao)
			r.Get("/exportar", h.handleExportar)
			r.Post("/itens", h.handleAdicionarItem)
			r.Put("/itens/{id}", h.handleAtualizarItem)
			r.Delete("/itens/{id}", h.handleRemoverItem)
		})
	})
}

var errMappings = []render.Mapping{
	{Err: ErrNotFound, Status: http.StatusNotFound, Code: render.CodeNotFound},
	{Err: ErrItemNotFound, Status: http.StatusNotFound, Code: render.CodeNotFound},
	{Err: ErrDepartamentoVazio, Status: http.StatusBadRequest, Code: render.CodeValidation},
	{Err: ErrValorInvalido, Status: http.StatusBadRequest, Code: render.CodeValidation},
	{Err: ErrMesInvalido, Status: http.StatusBadRequest, Code: render.CodeValidation},
}

func mesDaURL(r *http.Request) (int, time.Month, bool) {
	ano, err1 := strconv.Atoi(chi.URLParam(r, "ano"))
	mes, err2 := strconv.Atoi(chi.URLParam(r, "mes"))
	if err1 != nil || err2 != nil || mes < 1 || mes > 12 {
		return 0, 0, false
	}
	return ano, time.Month(mes), true
}

func (h *Handler) handleListar(w http.ResponseWriter, r *http.Request) {
	orcamentos, err := h.service.Listar(r.Context())
	if err != nil {
		render.Error(w, err, errMappings...)
		return
	}
	render.WriteJSON(w, http.StatusOK, map[string]any{"orcamentos": orcamentos})
}

func (h *Handler) handleObter(w http.ResponseWriter, r *http.Request) {
	ano, mes, ok := mesDaURL(r)
	if !ok {
		render.Error(w, ErrMesInvalido, errMappings...)
		return
	}
	o, err := h.service.Obter(r.Context(), ano, mes)
	if err != nil {
		render.Error(w, err, errMappings...)
		return
	}
	render.WriteJSON(w, http.StatusOK, o)
}

func (h *Handler) handleExecucao(w http.ResponseWriter, r *http.Request) {
	ano, mes, ok := mesDaURL(r)
	if !ok {
		render.Error(w, ErrMesInvalido, errMappings...)
		return
	}
	ex, err := h.service.Execucao(r.Context(), ano, mes)
	if err != nil {
		render.Error(w, err, errMappings...)
		return
	}
	render.WriteJSON(w, http.StatusOK, ex)
}

func (h *Handler) handleExportar(w http.ResponseWriter, r *http.Request) {
	ano, mes, ok := mesDaURL(r)
	if !ok {
		render.Error(w, ErrMesInvalido, errMappings...)
		return
	}
	body, err := h.service.Exportar(r.Context(), ano, mes)
	if err != nil {
		render.Error(w, err, errMappings...)
		return
	}
	render.WriteFile(w, NomeExportacao(ano, mes), planilha.ContentType, body)
}

func (h *Handler) handleAdicionarItem(w http.ResponseWriter, r *http.Request) {
	ano, mes, ok := mesDaURL(r)
	if !ok {
		render.Error(w, ErrMesInvalido, errMappings...)
		return
	}
	var payload DadosItem
	if !render.DecodeJSON(w, r, &payload) {
		return
	}
	item, err := h.service.AdicionarItem(r.Context(), ano, mes, payload)
	if err != nil {
		render.Error(w, err, errMappings...)
		return
	}
	render.WriteJSON(w, http.StatusCreated, item)
}

func (h *Handler) handleAtualizarItem(w http.ResponseWriter, r *http.Request) {
	ano, mes, ok := mesDaURL(r)
	if !ok {
		render.Error(w, ErrMesInvalido, errMappings...)
		return
	}
	var payload DadosItem
	if !render.DecodeJSON(w, r, &payload) {
		return
	}
	item, err := h.service.AtualizarItem(r.Context(), ano, mes, chi.URLParam(r, "id"), payload)
	if err != nil {
		render.Error(w, err, errMappings...)
		return
	}
	render.WriteJSON(w, http.StatusOK, item)
}

func (h *Handler) handleRemoverItem(w http.ResponseWriter, r *http.Request) {
	ano, mes, ok := mesDaURL(r)
	if !ok {
		render.Error(w, ErrMesInvalido, errMappings...)
		return
	}
	if err := h.service.RemoverItem(r.Context(), ano, mes, chi.URLParam(r, "id")); err != nil {
		render.Error(w, err, errMappings...)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
