// Package render padroniza o envelope JSON das respostas HTTP.
package render

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/gestaofinanceira/tesouraria/internal/sessao"
	"github.com/gestaofinanceira/tesouraria/internal/store"
	"github.com/gestaofinanceira/tesouraria/internal/util"
)

// Códigos de erro expostos pela API.
const (
	CodeValidation   = "VALIDATION"
	CodeAuth         = "AUTH"
	CodeForbidden    = "FORBIDDEN"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeBusinessRule = "BUSINESS_RULE"
	CodeCorruptState = "CORRUPT_STATE"
	CodeInternal     = "INTERNAL"
	CodeRateLimit    = "RATE_LIMIT"
)

// SuccessEnvelope padroniza respostas com dados.
type SuccessEnvelope struct {
	Data  any `json:"data"`
	Error any `json:"error"`
}

// ErrorEnvelope padroniza respostas de erro.
type ErrorEnvelope struct {
	Data  any        `json:"data"`
	Error *ErrorBody `json:"error"`
}

// ErrorBody descreve falhas normalizadas.
type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// WriteJSON escreve envelope de sucesso.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(SuccessEnvelope{Data: data, Error: nil})
}

// WriteError escreve envelope de erro e mantém formato consistente.
func WriteError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorEnvelope{
		Data:  nil,
		Error: &ErrorBody{Code: code, Message: message, Details: details},
	})
}

// WriteFile devolve conteúdo binário como anexo.
func WriteFile(w http.ResponseWriter, filename, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// DecodeJSON lê o corpo da requisição; responde VALIDATION em caso de falha.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteError(w, http.StatusBadRequest, CodeValidation, "JSON inválido", nil)
		return false
	}
	return true
}

// Mapping associa um erro de domínio a status e código HTTP.
type Mapping struct {
	Err    error
	Status int
	Code   string
}

// Error traduz erros de serviço, tentando primeiro os mapeamentos do domínio.
func Error(w http.ResponseWriter, err error, mappings ...Mapping) {
	for _, m := range mappings {
		if errors.Is(err, m.Err) {
			WriteError(w, m.Status, m.Code, err.Error(), nil)
			return
		}
	}
	switch {
	case errors.Is(err, util.ErrValidacao):
		WriteError(w, http.StatusBadRequest, CodeValidation, err.Error(), nil)
	case errors.Is(err, sessao.ErrNaoAutenticado):
		WriteError(w, http.StatusUnauthorized, CodeAuth, err.Error(), nil)
	case errors.Is(err, store.ErrEstadoCorrompido):
		log.Error().Err(err).Msg("estado persistido corrompido")
		WriteError(w, http.StatusInternalServerError, CodeCorruptState, "dados persistidos corrompidos", nil)
	case errors.Is(err, store.ErrConflito):
		WriteError(w, http.StatusConflict, CodeConflict, "operação concorrente, tente novamente", nil)
	default:
		log.Error().Err(err).Msg("erro interno")
		WriteError(w, http.StatusInternalServerError, CodeInternal, "erro interno", nil)
	}
}
