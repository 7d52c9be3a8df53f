package demonstracao

import (
	"net/http"
	"strings"
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
	r.With(guard(usuario.PermViewRelatorioFinanceiro)).Get("/demonstracao-resultados", h.handleDemonstracao)
}

var errMappings = []render.Mapping{
	{Err: ErrPeriodoInvalido, Status: http.StatusBadRequest, Code: render.CodeValidation},
	{Err: ErrIntervaloVazio, Status: http.StatusBadRequest, Code: render.CodeValidation},
}

func dataDaQuery(r *http.Request, nome string) (time.Time, bool) {
	v := strings.TrimSpace(r.URL.Query().Get(nome))
	if v == "" {
		return time.Time{}, true
	}
	t, err := time.Parse("2006-01-02", v)
	return t, err == nil
}

func (h *Handler) handleDemonstracao(w http.ResponseWriter, r *http.Request) {
	p := Periodo{Tipo: strings.ToLower(strings.TrimSpace(r.URL.Query().Get("periodo")))}
	var ok1, ok2 bool
	p.Inicio, ok1 = dataDaQuery(r, "inicio")
	p.Fim, ok2 = dataDaQuery(r, "fim")
	if !ok1 || !ok2 {
		render.WriteError(w, http.StatusBadRequest, render.CodeValidation, "datas no formato AAAA-MM-DD", nil)
		return
	}
	d, err := h.service.Demonstracao(r.Context(), p)
	if err != nil {
		render.Error(w, err, errMappings...)
		return
	}
	render.WriteJSON(w, http.StatusOK, d)
}
