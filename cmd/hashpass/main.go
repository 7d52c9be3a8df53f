package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/gestaofinanceira/tesouraria/internal/auth"
)

// hashpass gera o valor de BOOTSTRAP_ADMIN_SENHA_HASH. Com "-" a senha é lida
// da entrada padrão, para não ficar no histórico do shell.
func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "uso: hashpass <senha>|-")
		os.Exit(2)
	}

	senha := os.Args[1]
	if senha == "-" {
		linha, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && linha == "" {
			fmt.Fprintf(os.Stderr, "ler senha: %v\n", err)
			os.Exit(1)
		}
		senha = strings.TrimRight(linha, "\r\n")
	}
	if senha == "" {
		fmt.Fprintln(os.Stderr, "senha vazia")
		os.Exit(2)
	}

	hash, err := auth.Hash(senha)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gerar hash: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
