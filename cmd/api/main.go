package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gestaofinanceira/tesouraria/internal/auth"
	"github.com/gestaofinanceira/tesouraria/internal/cheque"
	"github.com/gestaofinanceira/tesouraria/internal/config"
	"github.com/gestaofinanceira/tesouraria/internal/demonstracao"
	"github.com/gestaofinanceira/tesouraria/internal/fornecedor"
	"github.com/gestaofinanceira/tesouraria/internal/fundomaneio"
	internalhttp "github.com/gestaofinanceira/tesouraria/internal/http"
	"github.com/gestaofinanceira/tesouraria/internal/notificacao"
	"github.com/gestaofinanceira/tesouraria/internal/orcamento"
	"github.com/gestaofinanceira/tesouraria/internal/receita"
	"github.com/gestaofinanceira/tesouraria/internal/reconciliacao"
	"github.com/gestaofinanceira/tesouraria/internal/storage"
	"github.com/gestaofinanceira/tesouraria/internal/store"
	"github.com/gestaofinanceira/tesouraria/internal/usuario"
	"github.com/gestaofinanceira/tesouraria/internal/util"
	"github.com/gestaofinanceira/tesouraria/internal/workflow"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("api encerrada com erro")
	}
}

func component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

func run() error {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	ctx := context.Background()

	st, err := store.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer st.Close()
	log.Info().Str("backend", cfg.StoreBackend).Msg("persistência pronta")

	arquivo, err := storage.New(ctx, cfg.Archive)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	clock := util.Clock(time.Now)
	loc := cfg.Location

	usuarios := usuario.NewService(st, component("usuario"), clock)
	if cfg.Bootstrap.Enabled() {
		if _, err := usuarios.Bootstrap(ctx, usuario.BootstrapAdmin{
			Email:     cfg.Bootstrap.Email,
			Nome:      cfg.Bootstrap.Nome,
			Username:  cfg.Bootstrap.Username,
			SenhaHash: cfg.Bootstrap.SenhaHash,
		}); err != nil {
			return fmt.Errorf("bootstrap: %w", err)
		}
	}

	notificacoes := notificacao.NewService(st, component("notificacao"), clock, loc)
	var notifier notificacao.Notifier
	if wh := notificacao.NewWebhookNotifier(cfg.Notificacoes.WebhookURL); wh != nil {
		notifier = wh
		notificacoes.ComNotifier(wh)
	}
	monitor := notificacao.NewMonitor(notificacoes, cfg.Notificacoes, component("monitor"), notifier)

	workflows := workflow.NewService(st, notificacoes, component("workflow"), clock, loc)

	fornecedores := fornecedor.NewService(st, component("fornecedor"), clock, loc)
	fornecedores.ComAprovacao(workflows, usuarios)

	conciliacao := reconciliacao.NewService(st, component("reconciliacao"), clock, loc)
	conciliacao.ComArquivo(arquivo)

	orcamentos := orcamento.NewService(st, component("orcamento"), clock, loc)
	orcamentos.ComArquivo(arquivo)

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessTTL)
	refresh := auth.NewRefreshManager(st, cfg.JWTRefreshTTL, clock)

	handler := internalhttp.NewRouter(cfg, st, jwtManager, refresh, internalhttp.Services{
		Usuarios:      usuarios,
		Fornecedores:  fornecedores,
		FundosManeio:  fundomaneio.NewService(st, component("fundomaneio"), clock, loc),
		Cheques:       cheque.NewService(st, component("cheque"), clock, loc),
		Reconciliacao: conciliacao,
		Receitas:      receita.NewService(st, component("receita"), clock, loc),
		Orcamentos:    orcamentos,
		Demonstracao:  demonstracao.NewService(st, component("demonstracao"), clock, loc),
		Notificacoes:  notificacoes,
		Monitor:       monitor,
		Workflows:     workflows,
	})

	monitor.Start(ctx)
	defer monitor.Stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Msgf("API ouvindo em :%d", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("encerrando...")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
