package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gestaofinanceira/tesouraria/internal/sessao"
)

type checkerStub map[string]bool

func (c checkerStub) TemPermissao(_ context.Context, _ string, permissao string) (bool, error) {
	if permissao == "quebrada" {
		return false, errors.New("store indisponível")
	}
	return c[permissao], nil
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

func TestRequirePermission(t *testing.T) {
	guard := RequirePermission(checkerStub{"view_cheques": true})
	ator := sessao.NoContexto(context.Background(), sessao.Ator{ID: "u1", Username: "ana"})

	casos := []struct {
		perm   string
		ctx    context.Context
		status int
	}{
		{"view_cheques", ator, http.StatusOK},
		{"manage_users", ator, http.StatusForbidden},
		{"quebrada", ator, http.StatusInternalServerError},
		{"view_cheques", context.Background(), http.StatusUnauthorized},
	}
	for _, c := range casos {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(c.ctx)
		guard(c.perm)(okHandler).ServeHTTP(rec, req)
		if rec.Code != c.status {
			t.Fatalf("%s: expected %d, got %d", c.perm, c.status, rec.Code)
		}
	}
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://tesouraria.uni.ac.mz", "*.uni.ac.mz"})(okHandler)

	for origin, permitido := range map[string]bool{
		"https://tesouraria.uni.ac.mz": true,
		"https://relatorios.uni.ac.mz": true,
		"https://uni.ac.mz":            false,
		"https://outro.co.mz":          false,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", origin)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		got := rec.Header().Get("Access-Control-Allow-Origin") == origin
		if got != permitido {
			t.Fatalf("%s: expected allowed=%v", origin, permitido)
		}
	}

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected preflight 204, got %d", rec.Code)
	}
}

func TestIPRateLimit(t *testing.T) {
	h := IPRateLimit(NewRateLimiter(1, 2))(okHandler)
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Real-IP", "10.0.0.7")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("expected burst of 2 then 429, got %v", codes)
	}
}

func TestRecover(t *testing.T) {
	h := Recover(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { panic("boom") }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestUserRateLimitPorAtor(t *testing.T) {
	h := UserRateLimit(NewRateLimiter(1, 1))(okHandler)
	ana := sessao.NoContexto(context.Background(), sessao.Ator{ID: "u1"})
	rui := sessao.NoContexto(context.Background(), sessao.Ator{ID: "u2"})

	status := func(ctx context.Context) int {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx))
		return rec.Code
	}
	if got := status(ana); got != http.StatusOK {
		t.Fatalf("expected 200, got %d", got)
	}
	if got := status(ana); got != http.StatusTooManyRequests {
		t.Fatalf("expected 429 for the same user, got %d", got)
	}
	if got := status(rui); got != http.StatusOK {
		t.Fatalf("expected 200 for another user, got %d", got)
	}
	if got := status(context.Background()); got != http.StatusOK {
		t.Fatalf("expected anonymous requests to pass, got %d", got)
	}
}
