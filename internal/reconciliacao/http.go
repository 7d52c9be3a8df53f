package reconciliacao

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gestaofinanceira/tesouraria/internal/cheque"
	"github.com/gestaofinanceira/tesouraria/internal/fornecedor"
	httpmiddleware "github.com/gestaofinanceira/tesouraria/internal/http/middleware"
	"github.com/gestaofinanceira/tesouraria/internal/http/render"
	"github.com/gestaofinanceira/tesouraria/internal/planilha"
	"github.com/gestaofinanceira/tesouraria/internal/usuario"
)

// LimiteExtrato é o tamanho máximo aceito para um extrato enviado.
const LimiteExtrato = 10 << 20

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router, guard httpmiddleware.Guard) {
	r.Route("/reconciliacao", func(r chi.Router) {
		r.Use(guard(usuario.PermViewReconciliacaoBancaria))
		r.Get("/transacoes", h.handleListar)
		r.Get("/exportar", h.handleExportar)

		r.Group(func(r chi.Router) {
			r.Use(guard(usuario.PermEditPagamento))
			r.Post("/transacoes", h.handleAdicionar)
			r.Delete("/transacoes/{id}", h.handleRemover)
			r.Post("/transacoes/{id}/reconciliar", h.handleReconciliar)
			r.Post("/transacoes/{id}/desreconciliar", h.handleDesreconciliar)
			r.Post("/importar", h.handleImportar)
			r.Post("/automatica", h.handleAutomatica)
			r.Post("/sincronizar-cheques", h.handleSincronizarCheques)
		})
	})
}

var errMappings = []render.Mapping{
	{Err: ErrNotFound, Status: http.StatusNotFound, Code: render.CodeNotFound},
	{Err: fornecedor.ErrNotFound, Status: http.StatusNotFound, Code: render.CodeNotFound},
	{Err: fornecedor.ErrPagamentoNotFound, Status: http.StatusNotFound, Code: render.CodeNotFound},
	{Err: cheque.ErrNotFound, Status: http.StatusNotFound, Code: render.CodeNotFound},
	{Err: ErrJaReconciliada, Status: http.StatusConflict, Code: render.CodeConflict},
	{Err: ErrNaoReconciliada, Status: http.StatusConflict, Code: render.CodeConflict},
	{Err: cheque.ErrTransicaoInvalida, Status: http.StatusUnprocessableEntity, Code: render.CodeBusinessRule},
	{Err: ErrPerfilInvalido, Status: http.StatusBadRequest, Code: render.CodeValidation},
	{Err: ErrTipoInvalido, Status: http.StatusBadRequest, Code: render.CodeValidation},
	{Err: ErrValorInvalido, Status: http.StatusBadRequest, Code: render.CodeValidation},
	{Err: ErrSemTransacoes, Status: http.StatusUnprocessableEntity, Code: render.CodeBusinessRule},
}

func filtroDaQuery(r *http.Request) (Filtro, error) {
	q := r.URL.Query()
	var f Filtro
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
	f.Busca = q.Get("busca")
	if v := q.Get("reconciliado"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, errors.New("reconciliado inválido")
		}
		f.Reconciliado = &b
	}
	return f, nil
}

func (h *Handler) handleListar(w http.ResponseWriter, r *http.Request) {
	f, err := filtroDaQuery(r)
	if err != nil {
		render.WriteError(w, http.StatusBadRequest, render.CodeValidation, err.Error(), nil)
		return
	}
	transacoes, err := h.service.Listar(r.Context(), f)
	if err != nil {
		render.Error(w, err, errMappings...)
		return
	}
	render.WriteJSON(w, http.StatusOK, map[string]any{"transacoes": transacoes})
}

func (h *Handler) handleExportar(w http.ResponseWriter, r *http.Request) {
	f, err := filtroDaQuery(r)
	if err != nil {
		render.WriteError(w, http.StatusBadRequest, render.CodeValidation, err.Error(), nil)
		return
	}
	body, err := h.service.Exportar(r.Context(), f)
	if err != nil {
		render.Error(w, err, errMappings...)
		return
	}
	render.WriteFile(w, NomeExportacao, planilha.ContentType, body)
}

func (h *Handler) handleAdicionar(w http.ResponseWriter, r *http.Request) {
	var payload NovaTransacao
	if !render.DecodeJSON(w, r, &payload) {
		return
	}
	t, err := h.service.AdicionarManual(r.Context(), payload)
	if err != nil {
		render.Error(w, err, errMappings...)
		return
	}
	render.WriteJSON(w, http.StatusCreated, t)
}

func (h *Handler) handleRemover(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Remover(r.Context(), chi.URLParam(r, "id")); err != nil {
		render.Error(w, err, errMappings...)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleReconciliar(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		PagamentoID  string `json:"pagamentoId"`
		FornecedorID string `json:"fornecedorId"`
	}
	if !render.DecodeJSON(w, r, &payload) {
		return
	}
	t, err := h.service.ReconciliarManual(r.Context(), chi.URLParam(r, "id"), payload.PagamentoID, payload.FornecedorID)
	if err != nil {
		render.Error(w, err, errMappings...)
		return
	}
	render.WriteJSON(w, http.StatusOK, t)
}

func (h *Handler) handleDesreconciliar(w http.ResponseWriter, r *http.Request) {
	t, err := h.service.Desreconciliar(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		render.Error(w, err, errMappings...)
		return
	}
	render.WriteJSON(w, http.StatusOK, t)
}

// handleImportar aceita multipart com o campo "arquivo" ou o xlsx no corpo.
func (h *Handler) handleImportar(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, LimiteExtrato)
	arq := ArquivoExtrato{
		Perfil:      r.URL.Query().Get("perfil"),
		Reconciliar: r.URL.Query().Get("reconciliar") != "false",
		Nome:        r.URL.Query().Get("nome"),
	}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, header, err := r.FormFile("arquivo")
		if err != nil {
			render.WriteError(w, http.StatusBadRequest, render.CodeValidation, "campo arquivo obrigatório", nil)
			return
		}
		defer file.Close()
		if arq.Nome == "" {
			arq.Nome = header.Filename
		}
		if v := r.FormValue("perfil"); v != "" {
			arq.Perfil = v
		}
		arq.Conteudo, err = io.ReadAll(file)
		if err != nil {
			render.WriteError(w, http.StatusBadRequest, render.CodeValidation, "não foi possível ler o arquivo", nil)
			return
		}
	} else {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			render.WriteError(w, http.StatusBadRequest, render.CodeValidation, "não foi possível ler o arquivo", nil)
			return
		}
		arq.Conteudo = body
	}
	if len(arq.Conteudo) == 0 {
		render.WriteError(w, http.StatusBadRequest, render.CodeValidation, "arquivo vazio", nil)
		return
	}

	res, err := h.service.Importar(r.Context(), arq)
	if err != nil {
		render.Error(w, err, errMappings...)
		return
	}
	render.WriteJSON(w, http.StatusCreated, res)
}

func (h *Handler) handleAutomatica(w http.ResponseWriter, r *http.Request) {
	resumo, err := h.service.ReconciliarAutomatico(r.Context())
	if err != nil {
		render.Error(w, err, errMappings...)
		return
	}
	render.WriteJSON(w, http.StatusOK, resumo)
}

func (h *Handler) handleSincronizarCheques(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.SincronizarCheques(r.Context())
	if err != nil {
		render.Error(w, err, errMappings...)
		return
	}
	render.WriteJSON(w, http.StatusOK, map[string]int{"criadas": n})
}
