package workflow

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
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes monta /workflows. A decisão não tem guarda de permissão: o
// nível do papel é verificado pelo serviço.
func (h *Handler) RegisterRoutes(r chi.Router, guard httpmiddleware.Guard) {
	r.Route("/workflows", func(r chi.Router) {
		r.With(guard(usuario.PermViewPagamentos)).Get("/", h.handleListar)
		r.Get("/pendentes", h.handlePendentes)
		r.With(guard(usuario.PermEditPagamento)).Post("/", h.handleSubmeter)
		r.Route("/{id}", func(r chi.Router) {
			r.With(guard(usuario.PermViewPagamentos)).Get("/", h.handleObter)
			r.Post("/decisao", h.handleDecidir)
			r.With(guard(usuario.PermEditPagamento)).Post("/confirmacao", h.handleConfirmar)
			r.With(guard(usuario.PermEditPagamento)).Post("/notificacoes", h.handleAlternar)
		})
	})
}

var errMappings = []render.Mapping{
	{Err: ErrNotFound, Status: http.StatusNotFound, Code: render.CodeNotFound},
	{Err: fornecedor.ErrNotFound, Status: http.StatusNotFound, Code: render.CodeNotFound},
	{Err: fornecedor.ErrPagamentoNotFound, Status: http.StatusNotFound, Code: render.CodeNotFound},
	{Err: ErrTipoInvalido, Status: http.StatusBadRequest, Code: render.CodeValidation},
	{Err: ErrDecisaoInvalida, Status: http.StatusBadRequest, Code: render.CodeValidation},
	{Err: ErrNivelIncorreto, Status: http.StatusForbidden, Code: render.CodeForbidden},
	{Err: ErrEstadoFinal, Status: http.StatusConflict, Code: render.CodeConflict},
	{Err: ErrWorkflowAtivo, Status: http.StatusConflict, Code: render.CodeConflict},
	{Err: ErrPagamentoJaConfirmado, Status: http.StatusConflict, Code: render.CodeConflict},
	{Err: ErrNaoAprovado, Status: http.StatusUnprocessableEntity, Code: render.CodeBusinessRule},
}

func (h *Handler) handleListar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	workflows, err := h.service.Listar(r.Context(), Filtro{
		Status:      q.Get("status"),
		Busca:       q.Get("busca"),
		PagamentoID: q.Get("pagamentoId"),
	})
	if err != nil {
		render.Error(w, err, errMappings...)
		return
	}
	render.WriteJSON(w, http.StatusOK, map[string]any{"workflows": workflows})
}

func (h *Handler) handlePendentes(w http.ResponseWriter, r *http.Request) {
	ator, err := sessao.Exigir(r.Context())
	if err != nil {
		render.Error(w, err)
		return
	}
	workflows, err := h.service.Pendentes(r.Context(), ator.Papel)
	if err != nil {
		render.Error(w, err, errMappings...)
		return
	}
	render.WriteJSON(w, http.StatusOK, map[string]any{"workflows": workflows, "nivel": NivelDoPapel(ator.Papel)})
}

func (h *Handler) handleObter(w http.ResponseWriter, r *http.Request) {
	wf, err := h.service.Obter(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		render.Error(w, err, errMappings...)
		return
	}
	render.WriteJSON(w, http.StatusOK, wf)
}

func (h *Handler) handleSubmeter(w http.ResponseWriter, r *http.Request) {
	var payload Submissao
	if !render.DecodeJSON(w, r, &payload) {
		return
	}
	wf, err := h.service.Submeter(r.Context(), payload)
	if err != nil {
		render.Error(w, err, errMappings...)
		return
	}
	render.WriteJSON(w, http.StatusCreated, wf)
}

func (h *Handler) handleDecidir(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Decisao    string `json:"decisao"`
		Comentario string `json:"comentario"`
	}
	if !render.DecodeJSON(w, r, &payload) {
		return
	}
	res, err := h.service.Decidir(r.Context(), chi.URLParam(r, "id"), payload.Decisao, payload.Comentario)
	if err != nil {
		render.Error(w, err, errMappings...)
		return
	}
	render.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) handleConfirmar(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		MarcarPago bool `json:"marcarPago"`
	}
	if !render.DecodeJSON(w, r, &payload) {
		return
	}
	wf, err := h.service.ConfirmarPagamento(r.Context(), chi.URLParam(r, "id"), payload.MarcarPago)
	if err != nil {
		render.Error(w, err, errMappings...)
		return
	}
	render.WriteJSON(w, http.StatusOK, wf)
}

func (h *Handler) handleAlternar(w http.ResponseWriter, r *http.Request) {
	wf, err := h.service.AlternarNotificacoes(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		render.Error(w, err, errMappings...)
		return
	}
	render.WriteJSON(w, http.StatusOK, wf)
}
