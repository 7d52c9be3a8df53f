package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/gestaofinanceira/tesouraria/internal/auth"
	"github.com/gestaofinanceira/tesouraria/internal/cheque"
	"github.com/gestaofinanceira/tesouraria/internal/config"
	"github.com/gestaofinanceira/tesouraria/internal/demonstracao"
	"github.com/gestaofinanceira/tesouraria/internal/fornecedor"
	"github.com/gestaofinanceira/tesouraria/internal/fundomaneio"
	httpmiddleware "github.com/gestaofinanceira/tesouraria/internal/http/middleware"
	"github.com/gestaofinanceira/tesouraria/internal/http/render"
	"github.com/gestaofinanceira/tesouraria/internal/notificacao"
	"github.com/gestaofinanceira/tesouraria/internal/orcamento"
	"github.com/gestaofinanceira/tesouraria/internal/receita"
	"github.com/gestaofinanceira/tesouraria/internal/reconciliacao"
	"github.com/gestaofinanceira/tesouraria/internal/store"
	"github.com/gestaofinanceira/tesouraria/internal/usuario"
	"github.com/gestaofinanceira/tesouraria/internal/workflow"
)

// Services reúne os serviços de domínio montados no roteador.
type Services struct {
	Usuarios      *usuario.Service
	Fornecedores  *fornecedor.Service
	FundosManeio  *fundomaneio.Service
	Cheques       *cheque.Service
	Reconciliacao *reconciliacao.Service
	Receitas      *receita.Service
	Orcamentos    *orcamento.Service
	Demonstracao  *demonstracao.Service
	Notificacoes  *notificacao.Service
	Monitor       *notificacao.Monitor
	Workflows     *workflow.Service
}

type routeRegistrar interface {
	RegisterRoutes(r chi.Router, guard httpmiddleware.Guard)
}

type Handler struct {
	store         store.Store
	usuarios      *usuario.Service
	jwt           *auth.JWTManager
	refresh       *auth.RefreshManager
	refreshTTL    time.Duration
	publicLimiter *httpmiddleware.RateLimiter
	authLimiter   *httpmiddleware.RateLimiter
	devCookies    bool
}

// NewRouter devolve roteador configurado.
func NewRouter(cfg *config.Config, st store.Store, jwtManager *auth.JWTManager, refresh *auth.RefreshManager, svc Services) http.Handler {
	devCookies := false
	for _, origin := range cfg.AllowOrigins {
		if strings.Contains(origin, "localhost") {
			devCookies = true
			break
		}
	}

	h := &Handler{
		store:         st,
		usuarios:      svc.Usuarios,
		jwt:           jwtManager,
		refresh:       refresh,
		refreshTTL:    cfg.JWTRefreshTTL,
		publicLimiter: httpmiddleware.NewRateLimiter(cfg.RateLimitPublic.RequestsPerSecond, cfg.RateLimitPublic.Burst),
		authLimiter:   httpmiddleware.NewRateLimiter(cfg.RateLimitAuth.RequestsPerSecond, cfg.RateLimitAuth.Burst),
		devCookies:    devCookies,
	}

	guard := httpmiddleware.RequirePermission(svc.Usuarios)
	modulos := []routeRegistrar{
		usuario.NewHandler(svc.Usuarios),
		fornecedor.NewHandler(svc.Fornecedores),
		fundomaneio.NewHandler(svc.FundosManeio),
		cheque.NewHandler(svc.Cheques),
		reconciliacao.NewHandler(svc.Reconciliacao),
		receita.NewHandler(svc.Receitas),
		orcamento.NewHandler(svc.Orcamentos),
		demonstracao.NewHandler(svc.Demonstracao),
		notificacao.NewHandler(svc.Notificacoes, svc.Monitor),
		workflow.NewHandler(svc.Workflows),
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(httpmiddleware.Logging)
	r.Use(httpmiddleware.Recover)
	r.Use(httpmiddleware.CORS(cfg.AllowOrigins))

	r.Group(func(public chi.Router) {
		public.Use(httpmiddleware.IPRateLimit(h.publicLimiter))

		public.Get("/health", h.Health)
		public.Get("/ready", h.Ready)

		public.Route("/auth", func(a chi.Router) {
			a.Post("/login", h.Login)
			a.Post("/refresh", h.Refresh)
			a.Post("/logout", h.Logout)
		})
	})

	r.Group(func(private chi.Router) {
		private.Use(httpmiddleware.Auth(jwtManager, svc.Usuarios))
		private.Use(httpmiddleware.UserRateLimit(h.authLimiter))

		private.Get("/me", h.Me)
		for _, m := range modulos {
			m.RegisterRoutes(private, guard)
		}
	})

	return r
}

// Health responde status simples.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	render.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready valida a conexão com o backend de persistência.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		render.WriteError(w, http.StatusServiceUnavailable, render.CodeInternal, "dependências indisponíveis", map[string]any{
			"store": err.Error(),
		})
		return
	}

	render.WriteJSON(w, http.StatusOK, map[string]bool{"ready": true})
}
