package receita

import (
	"errors"
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
	r.Route("/receitas", func(r chi.Router) {
		r.Use(guard(usuario.PermViewRelatorioFinanceiro))
		r.Get("/", h.handleListar)
		r.Get("/categorias", h.handleCatalogo)
		r.Get("/resumo/{ano}", h.handleResumo)
		r.Get("/tendencia/{ano}/{mes}", h.handleTendencia)
		r.Get("/{id}", h.handleObter)

		r.Group(func(r chi.Router) {
			r.Use(guard(usuario.PermManageReceitas))
			r.Post("/", h.handleAdicionar)
			r.Put("/{id}", h.handleAtualizar)
			r.Delete("/{id}", h.handleRemover)
			r.Post("/{id}/recebida", h.handleMarcarRecebida)
		})
	})
}

var errMappings = []render.Mapping{
	{Err: ErrNotFound, Status: http.StatusNotFound, Code: render.CodeNotFound},
	{Err: ErrStatusInvalido, Status: http.StatusBadRequest, Code: render.CodeValidation},
	{Err: ErrValorInvalido, Status: http.StatusBadRequest, Code: render.CodeValidation},
	{Err: ErrCategoriaVazia, Status: http.StatusBadRequest, Code: render.CodeValidation},
	{Err: ErrFonteVazia, Status: http.StatusBadRequest, Code: render.CodeValidation},
	{Err: ErrJaRecebida, Status: http.StatusConflict, Code: render.CodeConflict},
}

func filtroDaQuery(r *http.Request) (Filtro, error) {
	q := r.URL.Query()
	f := Filtro{Busca: q.Get("busca"), Status: q.Get("status")}
	if v := q.Get("ano"); v != "" {
		ano, err := strconv.Atoi(v)
		if err != nil {
			return f, errors.New("ano inválido")
		}
		f.Ano = ano
	}
	if v := q.Get("mes"); v != "" {
		mes, err := strconv.Atoi(v)
		if err != nil || mes < 1 || mes > 12 {
			return f, errors.New("mês inválido")
		}
		f.Mes = time.Month(mes)
	}
	return f, nil
}

func (h *Handler) handleListar(w http.ResponseWriter, r *http.Request) {
	f, err := filtroDaQuery(r)
	if err != nil {
		render.WriteError(w, http.StatusBadRequest, render.CodeValidation, err.Error(), nil)
		return
	}
	receitas, err := h.service.Listar(r.Context(), f)
	if err != nil {
		render.Error(w, err, errMappings...)
		return
	}
	render.WriteJSON(w, http.StatusOK, map[string]any{"receitas": receitas})
}

func (h *Handler) handleCatalogo(w http.ResponseWriter, r *http.Request) {
	render.WriteJSON(w, http.StatusOK, map[string]any{"categorias": Categorias, "fontes": Fontes})
}

func (h *Handler) handleResumo(w http.ResponseWriter, r *http.Request) {
	ano, err := strconv.Atoi(chi.URLParam(r, "ano"))
	if err != nil {
		render.WriteError(w, http.StatusBadRequest, render.CodeValidation, "ano inválido", nil)
		return
	}
	meses, err := h.service.ResumoMensal(r.Context(), ano)
	if err != nil {
		render.Error(w, err, errMappings...)
		return
	}
	render.WriteJSON(w, http.StatusOK, map[string]any{"ano": ano, "meses": meses})
}

func (h *Handler) handleTendencia(w http.ResponseWriter, r *http.Request) {
	ano, err1 := strconv.Atoi(chi.URLParam(r, "ano"))
	mes, err2 := strconv.Atoi(chi.URLParam(r, "mes"))
	if err1 != nil || err2 != nil || mes < 1 || mes > 12 {
		render.WriteError(w, http.StatusBadRequest, render.CodeValidation, "mês inválido", nil)
		return
	}
	t, err := h.service.Tendencia(r.Context(), ano, time.Month(mes))
	if err != nil {
		render.Error(w, err, errMappings...)
		return
	}
	render.WriteJSON(w, http.StatusOK, t)
}

func (h *Handler) handleObter(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.Obter(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		render.Error(w, err, errMappings...)
		return
	}
	render.WriteJSON(w, http.StatusOK, rec)
}

func (h *Handler) handleAdicionar(w http.ResponseWriter, r *http.Request) {
	var payload DadosReceita
	if !render.DecodeJSON(w, r, &payload) {
		return
	}
	rec, err := h.service.Adicionar(r.Context(), payload)
	if err != nil {
		render.Error(w, err, errMappings...)
		return
	}
	render.WriteJSON(w, http.StatusCreated, rec)
}

func (h *Handler) handleAtualizar(w http.ResponseWriter, r *http.Request) {
	var payload DadosReceita
	if !render.DecodeJSON(w, r, &payload) {
		return
	}
	rec, err := h.service.Atualizar(r.Context(), chi.URLParam(r, "id"), payload)
	if err != nil {
		render.Error(w, err, errMappings...)
		return
	}
	render.WriteJSON(w, http.StatusOK, rec)
}

func (h *Handler) handleRemover(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Remover(r.Context(), chi.URLParam(r, "id")); err != nil {
		render.Error(w, err, errMappings...)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMarcarRecebida(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Data   *time.Time `json:"data"`
		Metodo string     `json:"metodo"`
	}
	if !render.DecodeJSON(w, r, &payload) {
		return
	}
	rec, err := h.service.MarcarRecebida(r.Context(), chi.URLParam(r, "id"), payload.Data, payload.Metodo)
	if err != nil {
		render.Error(w, err, errMappings...)
		return
	}
	render.WriteJSON(w, http.StatusOK, rec)
}
