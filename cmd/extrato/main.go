package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gestaofinanceira/tesouraria/internal/config"
	"github.com/gestaofinanceira/tesouraria/internal/reconciliacao"
	"github.com/gestaofinanceira/tesouraria/internal/sessao"
	"github.com/gestaofinanceira/tesouraria/internal/storage"
	"github.com/gestaofinanceira/tesouraria/internal/store"
	"github.com/gestaofinanceira/tesouraria/internal/usuario"
	"github.com/gestaofinanceira/tesouraria/internal/util"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("configuração inválida")
	}

	ctx := context.Background()

	st, err := store.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("não foi possível abrir a persistência")
	}
	defer st.Close()

	arquivo, err := storage.New(ctx, cfg.Archive)
	if err != nil {
		log.Fatal().Err(err).Msg("arquivo de extratos indisponível")
	}

	clock := util.Clock(time.Now)
	usuarios := usuario.NewService(st, log.With().Str("component", "usuario").Logger(), clock)
	service := reconciliacao.NewService(st, log.With().Str("component", "reconciliacao").Logger(), clock, cfg.Location)
	service.ComArquivo(arquivo)

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "importar":
		err = runImportar(ctx, service, usuarios, args)
	case "reconciliar":
		err = runReconciliar(ctx, service, usuarios, args)
	case "cheques":
		err = runCheques(ctx, service, usuarios, args)
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		log.Fatal().Err(err).Str("comando", cmd).Msg("falha ao executar comando")
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "extrato CLI")
	fmt.Fprintln(os.Stderr, "uso:")
	fmt.Fprintln(os.Stderr, "  extrato importar --usuario tesoureira@uni.ac.mz --arquivo marco.xlsx --perfil bci [--reconciliar]")
	fmt.Fprintln(os.Stderr, "  extrato reconciliar --usuario tesoureira@uni.ac.mz")
	fmt.Fprintln(os.Stderr, "  extrato cheques --usuario tesoureira@uni.ac.mz")
}

// contextoDoUsuario autentica o CLI como o usuário indicado, ativo.
func contextoDoUsuario(ctx context.Context, usuarios *usuario.Service, email string) (context.Context, error) {
	if email == "" {
		return nil, errors.New("--usuario é obrigatório")
	}
	u, err := usuarios.ObterPorEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("usuário %s: %w", email, err)
	}
	if !u.Ativo {
		return nil, usuario.ErrInativo
	}
	return sessao.NoContexto(ctx, usuario.AtorDe(*u)), nil
}

func runImportar(ctx context.Context, service *reconciliacao.Service, usuarios *usuario.Service, args []string) error {
	fs := flag.NewFlagSet("importar", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		email       = fs.String("usuario", "", "email do usuário que faz a importação")
		caminho     = fs.String("arquivo", "", "planilha do extrato (.xlsx)")
		perfil      = fs.String("perfil", reconciliacao.PerfilGenerico, "perfil do banco: bci, bim, standard ou generico")
		reconciliar = fs.Bool("reconciliar", false, "executa a reconciliação automática após importar")
	)

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *caminho == "" {
		return errors.New("--arquivo é obrigatório")
	}

	ctx, err := contextoDoUsuario(ctx, usuarios, *email)
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(*caminho)
	if err != nil {
		return fmt.Errorf("ler arquivo: %w", err)
	}

	res, err := service.Importar(ctx, reconciliacao.ArquivoExtrato{
		Nome:        filepath.Base(*caminho),
		Conteudo:    raw,
		Perfil:      *perfil,
		Reconciliar: *reconciliar,
	})
	if err != nil {
		return err
	}
	return imprimir(res)
}

func runReconciliar(ctx context.Context, service *reconciliacao.Service, usuarios *usuario.Service, args []string) error {
	fs := flag.NewFlagSet("reconciliar", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	email := fs.String("usuario", "", "email do usuário que reconcilia")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, err := contextoDoUsuario(ctx, usuarios, *email)
	if err != nil {
		return err
	}
	resumo, err := service.ReconciliarAutomatico(ctx)
	if err != nil {
		return err
	}
	return imprimir(resumo)
}

func runCheques(ctx context.Context, service *reconciliacao.Service, usuarios *usuario.Service, args []string) error {
	fs := flag.NewFlagSet("cheques", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	email := fs.String("usuario", "", "email do usuário que sincroniza")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, err := contextoDoUsuario(ctx, usuarios, *email)
	if err != nil {
		return err
	}
	n, err := service.SincronizarCheques(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		fmt.Println("nenhum cheque compensado por sincronizar")
		return nil
	}
	return imprimir(map[string]int{"sincronizados": n})
}

func imprimir(v any) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}
