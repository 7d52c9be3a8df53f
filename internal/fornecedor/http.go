package fornecedor

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gestaofinanceira/tesouraria/internal/fundomaneio"
	httpmiddleware "github.com/gestaofinanceira/tesouraria/internal/http/middleware"
	"github.com/gestaofinanceira/tesouraria/internal/http/render"
	"github.com/gestaofinanceira/tesouraria/internal/usuario"
)

// Handler expõe fornecedores e pagamentos.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router, guard httpmiddleware.Guard) {
	r.Route("/fornecedores", func(r chi.Router) {
		r.With(guard(usuario.PermViewPagamentos)).Get("/", h.handleListar)
		r.With(guard(usuario.PermCreateFornecedor)).Post("/", h.handleAdicionar)
		r.Route("/{fornecedorID}", func(r chi.Router) {
			r.With(guard(usuario.PermViewPagamentos)).Get("/", h.handleObter)
			r.With(guard(usuario.PermEditFornecedor)).Patch("/", h.handleAtualizar)
			r.With(guard(usuario.PermDeleteFornecedor)).Delete("/", h.handleRemover)
			r.With(guard(usuario.PermCreatePagamento)).Post("/pagamentos", h.handleAdicionarPagamento)
			r.Route("/pagamentos/{pagamentoID}", func(r chi.Router) {
				r.With(guard(usuario.PermViewPagamentos)).Get("/", h.handleObterPagamento)
				r.With(guard(usuario.PermEditPagamento)).Put("/", h.handleAtualizarPagamento)
				r.With(guard(usuario.PermDeletePagamento)).Delete("/", h.handleRemoverPagamento)
				r.With(guard(usuario.PermMovePagamento)).Post("/mover", h.handleMover)
				r.With(guard(usuario.PermEditPagamento)).Post("/pagar", h.handlePagar)
				r.With(guard(usuario.PermEditPagamento)).Put("/documentos", h.handleDocumentos)
				r.With(guard(usuario.PermManageFundoManeio)).Post("/fundo-maneio", h.handleFundoManeio)
			})
		})
	})
	r.Route("/pagamentos", func(r chi.Router) {
		r.With(guard(usuario.PermViewPagamentos)).Get("/", h.handlePagamentos)
		r.With(guard(usuario.PermCreatePagamento)).Post("/", h.handleAdicionarPorNome)
		r.With(guard(usuario.PermViewPagamentos)).Get("/documentos-pendentes", h.handleDocumentosPendentes)
		r.With(guard(usuario.PermViewPagamentos)).Get("/removidos", h.handleRemovidos)
		r.With(guard(usuario.PermEditPagamento)).Post("/atrasados", h.handleAtrasados)
		r.With(guard(usuario.PermViewPagamentos)).Get("/{pagamentoID}/historico", h.handleHistorico)
	})
}

var errMappings = []render.Mapping{
	{Err: ErrNotFound, Status: http.StatusNotFound, Code: render.CodeNotFound},
	{Err: ErrPagamentoNotFound, Status: http.StatusNotFound, Code: render.CodeNotFound},
	{Err: ErrEstadoInvalido, Status: http.StatusBadRequest, Code: render.CodeValidation},
	{Err: ErrMetodoInvalido, Status: http.StatusBadRequest, Code: render.CodeValidation},
	{Err: ErrTipoInvalido, Status: http.StatusBadRequest, Code: render.CodeValidation},
	{Err: ErrDocumentoInvalido, Status: http.StatusBadRequest, Code: render.CodeValidation},
	{Err: ErrValorInvalido, Status: http.StatusBadRequest, Code: render.CodeValidation},
	{Err: ErrMesmoFornecedor, Status: http.StatusBadRequest, Code: render.CodeValidation},
	{Err: ErrFornecedorDuplicado, Status: http.StatusConflict, Code: render.CodeConflict},
	{Err: ErrFornecedorComPagamentos, Status: http.StatusConflict, Code: render.CodeConflict},
	{Err: ErrJaPago, Status: http.StatusConflict, Code: render.CodeConflict},
	{Err: ErrPagamentoReconciliado, Status: http.StatusConflict, Code: render.CodeConflict},
	{Err: ErrAprovacaoNecessaria, Status: http.StatusUnprocessableEntity, Code: render.CodeBusinessRule},
	{Err: fundomaneio.ErrSaldoInsuficiente, Status: http.StatusUnprocessableEntity, Code: render.CodeBusinessRule},
}

func writeServiceError(w http.ResponseWriter, err error) {
	render.Error(w, err, errMappings...)
}

func (h *Handler) handleListar(w http.ResponseWriter, r *http.Request) {
	fornecedores, err := h.service.Listar(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, map[string]any{"fornecedores": fornecedores})
}

func (h *Handler) handleAdicionar(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Nome  string `json:"nome"`
		Email string `json:"email"`
	}
	if !render.DecodeJSON(w, r, &payload) {
		return
	}
	f, err := h.service.AdicionarFornecedor(r.Context(), payload.Nome, payload.Email)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	render.WriteJSON(w, http.StatusCreated, f)
}

func (h *Handler) handleObter(w http.ResponseWriter, r *http.Request) {
	f, err := h.service.Obter(r.Context(), chi.URLParam(r, "fornecedorID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, f)
}

func (h *Handler) handleAtualizar(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Nome  *string `json:"nome"`
		Email *string `json:"email"`
	}
	if !render.DecodeJSON(w, r, &payload) {
		return
	}
	f, err := h.service.AtualizarFornecedor(r.Context(), chi.URLParam(r, "fornecedorID"), payload.Nome, payload.Email)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, f)
}

func (h *Handler) handleRemover(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RemoverFornecedor(r.Context(), chi.URLParam(r, "fornecedorID")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAdicionarPagamento(w http.ResponseWriter, r *http.Request) {
	var payload DadosPagamento
	if !render.DecodeJSON(w, r, &payload) {
		return
	}
	p, err := h.service.AdicionarPagamento(r.Context(), chi.URLParam(r, "fornecedorID"), payload)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	render.WriteJSON(w, http.StatusCreated, p)
}

func (h *Handler) handleAdicionarPorNome(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		DadosPagamento
		FornecedorNome string `json:"fornecedorNome"`
	}
	if !render.DecodeJSON(w, r, &payload) {
		return
	}
	p, err := h.service.AdicionarPagamentoPorNome(r.Context(), payload.FornecedorNome, payload.DadosPagamento)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	render.WriteJSON(w, http.StatusCreated, p)
}

func (h *Handler) handleObterPagamento(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.ObterPagamento(r.Context(), chi.URLParam(r, "fornecedorID"), chi.URLParam(r, "pagamentoID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) handleAtualizarPagamento(w http.ResponseWriter, r *http.Request) {
	var payload DadosPagamento
	if !render.DecodeJSON(w, r, &payload) {
		return
	}
	p, err := h.service.AtualizarPagamento(r.Context(), chi.URLParam(r, "fornecedorID"), chi.URLParam(r, "pagamentoID"), payload)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) handleRemoverPagamento(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RemoverPagamento(r.Context(), chi.URLParam(r, "fornecedorID"), chi.URLParam(r, "pagamentoID")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMover(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		DestinoID string `json:"destinoId"`
	}
	if !render.DecodeJSON(w, r, &payload) {
		return
	}
	p, err := h.service.MoverPagamento(r.Context(), chi.URLParam(r, "pagamentoID"), chi.URLParam(r, "fornecedorID"), strings.TrimSpace(payload.DestinoID))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) handlePagar(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Data *time.Time `json:"data"`
	}
	if r.ContentLength != 0 && !render.DecodeJSON(w, r, &payload) {
		return
	}
	p, err := h.service.MarcarComoPago(r.Context(), chi.URLParam(r, "fornecedorID"), chi.URLParam(r, "pagamentoID"), payload.Data)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) handleDocumentos(w http.ResponseWriter, r *http.Request) {
	var payload Documentos
	if !render.DecodeJSON(w, r, &payload) {
		return
	}
	p, err := h.service.AtualizarDocumentos(r.Context(), chi.URLParam(r, "fornecedorID"), chi.URLParam(r, "pagamentoID"), payload)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) handleFundoManeio(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Descricao string `json:"descricao"`
	}
	if r.ContentLength != 0 && !render.DecodeJSON(w, r, &payload) {
		return
	}
	p, mov, err := h.service.PagarComFundoManeio(r.Context(), chi.URLParam(r, "fornecedorID"), chi.URLParam(r, "pagamentoID"), payload.Descricao)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, map[string]any{"pagamento": p, "movimento": mov})
}

func (h *Handler) handlePagamentos(w http.ResponseWriter, r *http.Request) {
	var (
		out []PagamentoComFornecedor
		err error
	)
	if r.URL.Query().Get("emAberto") == "true" {
		out, err = h.service.EmAberto(r.Context())
	} else {
		out, err = h.service.Pagamentos(r.Context())
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if estado := r.URL.Query().Get("estado"); estado != "" {
		estado = NormalizeEstado(estado)
		filtrados := out[:0]
		for _, p := range out {
			if p.Estado == estado {
				filtrados = append(filtrados, p)
			}
		}
		out = filtrados
	}
	render.WriteJSON(w, http.StatusOK, map[string]any{"pagamentos": out})
}

func (h *Handler) handleDocumentosPendentes(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.DocumentosPendentes(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, map[string]any{"pendencias": out})
}

func (h *Handler) handleRemovidos(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.HistoricoRemovidos(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, map[string]any{"removidos": out})
}

func (h *Handler) handleAtrasados(w http.ResponseWriter, r *http.Request) {
	total, err := h.service.AtualizarAtrasados(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, map[string]any{"atualizados": total})
}

func (h *Handler) handleHistorico(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.Historico(r.Context(), chi.URLParam(r, "pagamentoID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, map[string]any{"historico": out})
}
