package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/gestaofinanceira/tesouraria/internal/http/render"
	"github.com/gestaofinanceira/tesouraria/internal/sessao"
)

const limiterOcioso = 10 * time.Minute

// RateLimiter guarda um token bucket por chave (IP ou usuário).
type RateLimiter struct {
	limite rate.Limit
	burst  int

	mu        sync.Mutex
	buckets   map[string]*bucket
	varredura time.Time
}

type bucket struct {
	*rate.Limiter
	visto time.Time
}

// NewRateLimiter cria o limiter com reqPerSec sustentado e rajada burst.
func NewRateLimiter(reqPerSec float64, burst int) *RateLimiter {
	return &RateLimiter{
		limite:  rate.Limit(reqPerSec),
		burst:   burst,
		buckets: make(map[string]*bucket),
	}
}

func (l *RateLimiter) permite(chave string) bool {
	agora := time.Now()

	l.mu.Lock()
	b, ok := l.buckets[chave]
	if !ok {
		b = &bucket{Limiter: rate.NewLimiter(l.limite, l.burst)}
		l.buckets[chave] = b
	}
	b.visto = agora
	if agora.Sub(l.varredura) > limiterOcioso {
		for k, v := range l.buckets {
			if agora.Sub(v.visto) > limiterOcioso {
				delete(l.buckets, k)
			}
		}
		l.varredura = agora
	}
	l.mu.Unlock()

	return b.Allow()
}

func (l *RateLimiter) middleware(chave func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if k := chave(r); k != "" && !l.permite(k) {
				w.Header().Set("Retry-After", "1")
				render.WriteError(w, http.StatusTooManyRequests, render.CodeRateLimit, "limite de requisições excedido", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IPRateLimit limita as rotas públicas pelo IP de origem.
func IPRateLimit(limiter *RateLimiter) func(http.Handler) http.Handler {
	return limiter.middleware(func(r *http.Request) string { return "ip:" + clientIP(r) })
}

// UserRateLimit limita as rotas privadas pelo usuário da sessão.
func UserRateLimit(limiter *RateLimiter) func(http.Handler) http.Handler {
	return limiter.middleware(func(r *http.Request) string {
		ator, ok := sessao.DoContexto(r.Context())
		if !ok || ator.ID == "" {
			return ""
		}
		return "usuario:" + ator.ID
	})
}

// clientIP lê X-Real-IP e X-Forwarded-For antes do RemoteAddr, para o caso de
// o limiter ser montado fora do RealIP do chi.
func clientIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		primeiro, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(primeiro); ip != "" {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
