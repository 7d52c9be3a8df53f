package notificacao

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gestaofinanceira/tesouraria/internal/fornecedor"
	httpmiddleware "github.com/gestaofinanceira/tesouraria/internal/http/middleware"
	"github.com/gestaofinanceira/tesouraria/internal/http/render"
	"github.com/gestaofinanceira/tesouraria/internal/sessao"
	"github.com/gestaofinanceira/tesouraria/internal/usuario"
)

type Handler struct {
	service *Service
	monitor *Monitor
}

// NewHandler aceita monitor nil; a rota do snapshot responde então vazio.
func NewHandler(service *Service, monitor *Monitor) *Handler {
	return &Handler{service: service, monitor: monitor}
}

func (h *Handler) RegisterRoutes(r chi.Router, guard httpmiddleware.Guard) {
	r.Route("/notificacoes", func(r chi.Router) {
		r.Get("/", h.handleFeed)
		r.Get("/contagem", h.handleContagem)
		r.Post("/lidas", h.handleMarcarTodas)
		r.Post("/{id}/lida", h.handleMarcarLida)
		r.Delete("/{id}", h.handleRemover)

		r.With(guard(usuario.PermManageUsers)).Post("/", h.handleEnviar)
		r.With(guard(usuario.PermManageUsers)).Get("/monitor", h.handleMonitor)

		r.Route("/fornecedores", func(r chi.Router) {
			r.Use(guard(usuario.PermNotificarFornecedor))
			r.Get("/", h.handleHistoricoFornecedores)
			r.Post("/", h.handleNotificarFornecedor)
		})
	})
}

var errMappings = []render.Mapping{
	{Err: ErrNotFound, Status: http.StatusNotFound, Code: render.CodeNotFound},
	{Err: ErrTituloVazio, Status: http.StatusBadRequest, Code: render.CodeValidation},
	{Err: ErrTipoInvalido, Status: http.StatusBadRequest, Code: render.CodeValidation},
	{Err: ErrEmailObrigatorio, Status: http.StatusBadRequest, Code: render.CodeValidation},
	{Err: fornecedor.ErrNotFound, Status: http.StatusNotFound, Code: render.CodeNotFound},
	{Err: fornecedor.ErrPagamentoNotFound, Status: http.StatusNotFound, Code: render.CodeNotFound},
}

func (h *Handler) handleFeed(w http.ResponseWriter, r *http.Request) {
	ator, err := sessao.Exigir(r.Context())
	if err != nil {
		render.Error(w, err)
		return
	}
	feed, err := h.service.ParaPapel(r.Context(), ator.Papel)
	if err != nil {
		render.Error(w, err, errMappings...)
		return
	}
	render.WriteJSON(w, http.StatusOK, map[string]any{"notificacoes": feed})
}

func (h *Handler) handleContagem(w http.ResponseWriter, r *http.Request) {
	ator, err := sessao.Exigir(r.Context())
	if err != nil {
		render.Error(w, err)
		return
	}
	c, err := h.service.Contagem(r.Context(), ator.Papel)
	if err != nil {
		render.Error(w, err, errMappings...)
		return
	}
	render.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) handleMarcarTodas(w http.ResponseWriter, r *http.Request) {
	ator, err := sessao.Exigir(r.Context())
	if err != nil {
		render.Error(w, err)
		return
	}
	n, err := h.service.MarcarTodasLidas(r.Context(), ator.Papel)
	if err != nil {
		render.Error(w, err, errMappings...)
		return
	}
	render.WriteJSON(w, http.StatusOK, map[string]int{"marcadas": n})
}

func (h *Handler) handleMarcarLida(w http.ResponseWriter, r *http.Request) {
	if err := h.service.MarcarLida(r.Context(), chi.URLParam(r, "id")); err != nil {
		render.Error(w, err, errMappings...)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRemover(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Remover(r.Context(), chi.URLParam(r, "id")); err != nil {
		render.Error(w, err, errMappings...)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleEnviar(w http.ResponseWriter, r *http.Request) {
	var payload Nova
	if !render.DecodeJSON(w, r, &payload) {
		return
	}
	n, err := h.service.Enviar(r.Context(), payload)
	if err != nil {
		render.Error(w, err, errMappings...)
		return
	}
	render.WriteJSON(w, http.StatusCreated, n)
}

func (h *Handler) handleMonitor(w http.ResponseWriter, r *http.Request) {
	if h.monitor == nil {
		render.WriteJSON(w, http.StatusOK, Snapshot{Papeis: map[string]Contagem{}})
		return
	}
	render.WriteJSON(w, http.StatusOK, h.monitor.Ultimo())
}

func (h *Handler) handleHistoricoFornecedores(w http.ResponseWriter, r *http.Request) {
	hist, err := h.service.HistoricoFornecedores(r.Context(), r.URL.Query().Get("fornecedorId"))
	if err != nil {
		render.Error(w, err, errMappings...)
		return
	}
	render.WriteJSON(w, http.StatusOK, map[string]any{"notificacoes": hist})
}

func (h *Handler) handleNotificarFornecedor(w http.ResponseWriter, r *http.Request) {
	var payload PedidoFornecedor
	if !render.DecodeJSON(w, r, &payload) {
		return
	}
	reg, err := h.service.NotificarFornecedor(r.Context(), payload)
	if err != nil {
		render.Error(w, err, errMappings...)
		return
	}
	render.WriteJSON(w, http.StatusCreated, reg)
}
