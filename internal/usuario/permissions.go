package usuario

import "sort"

// Permissões conhecidas pelo sistema.
const (
	PermManageUsers = "manage_users"
	PermViewUsers   = "view_users"
	PermCreateUser  = "create_user"
	PermEditUser    = "edit_user"
	PermDeleteUser  = "delete_user"
	PermResetSenha  = "reset_password"

	PermManageFornecedores = "manage_fornecedores"
	PermViewFornecedores   = "view_fornecedores"
	PermCreateFornecedor   = "create_fornecedor"
	PermEditFornecedor     = "edit_fornecedor"
	PermDeleteFornecedor   = "delete_fornecedor"

	PermManagePagamentos = "manage_pagamentos"
	PermViewPagamentos   = "view_pagamentos"
	PermCreatePagamento  = "create_pagamento"
	PermEditPagamento    = "edit_pagamento"
	PermDeletePagamento  = "delete_pagamento"
	PermMovePagamento    = "move_pagamento"

	PermViewRelatorioDivida     = "view_relatorio_divida"
	PermViewRelatorioFornecedor = "view_relatorio_fornecedor"
	PermViewRelatorioCliente    = "view_relatorio_cliente"
	PermViewRelatorioFinanceiro = "view_relatorio_financeiro"

	PermViewCheques               = "view_controlo_cheques"
	PermViewFundoManeio           = "view_fundo_maneio"
	PermManageFundoManeio         = "manage_fundo_maneio"
	PermViewReconciliacaoBancaria = "view_reconciliacao_bancaria"
	PermViewReconciliacaoInterna  = "view_reconciliacao_interna"
	PermViewCalendarioFiscal      = "view_calendario_fiscal"
	PermViewPrevisaoOrcamento     = "view_previsao_orcamento"
	PermNotificarFornecedor       = "notificar_fornecedor"

	PermApproveBankOperations = "approve_bank_operations"
	PermApprovePettyCash      = "approve_petty_cash"

	// Permissões sem equivalente na tabela de papéis: só admin ou override.
	PermManageReceitas = "manage_receitas"
)

// TodasPermissoes lista o catálogo completo, na ordem de exibição.
var TodasPermissoes = []string{
	PermManageUsers, PermViewUsers, PermCreateUser, PermEditUser, PermDeleteUser, PermResetSenha,
	PermManageFornecedores, PermViewFornecedores, PermCreateFornecedor, PermEditFornecedor, PermDeleteFornecedor,
	PermManagePagamentos, PermViewPagamentos, PermCreatePagamento, PermEditPagamento, PermDeletePagamento, PermMovePagamento,
	PermViewRelatorioDivida, PermViewRelatorioFornecedor, PermViewRelatorioCliente, PermViewRelatorioFinanceiro,
	PermViewCheques, PermViewFundoManeio, PermManageFundoManeio, PermViewReconciliacaoBancaria,
	PermViewReconciliacaoInterna, PermViewCalendarioFiscal, PermViewPrevisaoOrcamento, PermNotificarFornecedor,
	PermApproveBankOperations, PermApprovePettyCash,
	PermManageReceitas,
}

var permissoesPorPapel = map[string][]string{
	PapelReitor: {
		PermViewPagamentos, PermViewRelatorioDivida, PermViewRelatorioFornecedor, PermViewRelatorioFinanceiro,
		PermViewCheques, PermViewFundoManeio, PermViewReconciliacaoBancaria, PermViewReconciliacaoInterna,
		PermViewCalendarioFiscal, PermViewPrevisaoOrcamento, PermApproveBankOperations,
	},
	PapelDirectoraFinanceira: {
		PermViewPagamentos, PermCreatePagamento, PermEditPagamento, PermDeletePagamento,
		PermViewRelatorioDivida, PermViewRelatorioFornecedor, PermViewRelatorioCliente, PermViewRelatorioFinanceiro,
		PermViewCheques, PermViewFundoManeio, PermViewReconciliacaoBancaria, PermViewReconciliacaoInterna,
		PermViewCalendarioFiscal, PermViewPrevisaoOrcamento, PermApproveBankOperations,
	},
	PapelTesoureira: {
		PermViewPagamentos, PermCreatePagamento, PermEditPagamento, PermViewRelatorioDivida,
		PermViewRelatorioFornecedor, PermViewCheques, PermViewFundoManeio, PermManageFundoManeio,
		PermApprovePettyCash,
	},
	PapelUser: {
		PermViewPagamentos, PermViewRelatorioDivida, PermViewRelatorioFornecedor, PermViewCheques,
		PermViewFundoManeio,
	},
}

var permissoesValidas = func() map[string]struct{} {
	m := make(map[string]struct{}, len(TodasPermissoes))
	for _, p := range TodasPermissoes {
		m[p] = struct{}{}
	}
	return m
}()

// IsValidPermissao confirma que a permissão existe no catálogo.
func IsValidPermissao(p string) bool {
	_, ok := permissoesValidas[p]
	return ok
}

// PermissoesDoPapel devolve a tabela fixa do papel. Papel desconhecido recebe as de user.
func PermissoesDoPapel(papel string) []string {
	if papel == PapelAdmin {
		out := make([]string, len(TodasPermissoes))
		copy(out, TodasPermissoes)
		return out
	}
	base, ok := permissoesPorPapel[papel]
	if !ok {
		base = permissoesPorPapel[PapelUser]
	}
	out := make([]string, len(base))
	copy(out, base)
	return out
}

// Permissoes combina a tabela do papel com os overrides do usuário.
func Permissoes(u Usuario) []string {
	base := PermissoesDoPapel(u.Papel)
	if u.Papel == PapelAdmin || len(u.PermissoesPersonalizadas) == 0 {
		return base
	}
	seen := make(map[string]struct{}, len(base))
	for _, p := range base {
		seen[p] = struct{}{}
	}
	for _, p := range u.PermissoesPersonalizadas {
		if _, ok := seen[p]; ok || !IsValidPermissao(p) {
			continue
		}
		seen[p] = struct{}{}
		base = append(base, p)
	}
	sort.SliceStable(base, func(i, j int) bool { return ordem[base[i]] < ordem[base[j]] })
	return base
}

var ordem = func() map[string]int {
	m := make(map[string]int, len(TodasPermissoes))
	for i, p := range TodasPermissoes {
		m[p] = i
	}
	return m
}()

// TemPermissao verifica uma permissão; usuário inativo não tem nenhuma.
func TemPermissao(u Usuario, permissao string) bool {
	if !u.Ativo {
		return false
	}
	if u.Papel == PapelAdmin {
		return true
	}
	for _, p := range Permissoes(u) {
		if p == permissao {
			return true
		}
	}
	return false
}
