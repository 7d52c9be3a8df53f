package store

// Chaves das coleções persistidas.
const (
	KeyFornecedores             = "fornecedores"
	KeyUsuarios                 = "usuarios"
	KeyFundosManeio             = "fundosManeio"
	KeyReceitas                 = "receitas"
	KeyOrcamentos               = "orcamentos"
	KeyTransacoesBancarias      = "transacoesBancarias"
	KeyCheques                  = "cheques"
	KeyWorkflows                = "approvalWorkflows"
	KeyNotificacoes             = "notifications"
	KeyNotificacoesFornecedores = "notificacoesFornecedores"
	KeyPagamentosRemovidos      = "pagamentosRemovidos"
	KeyRefreshTokens            = "refreshTokens"
)
