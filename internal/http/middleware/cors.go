package middleware

import (
	"net/http"
	"net/url"
	"strings"
)

const (
	corsAllowHeaders  = "Authorization, Content-Type, X-Requested-With, X-Refresh-Token"
	corsAllowMethods  = "GET,POST,PUT,PATCH,DELETE,OPTIONS"
	corsExposeHeaders = "Content-Disposition, X-Request-Id"
)

// origens guarda a lista de ALLOW_ORIGINS já separada em exatas e sufixos.
type origens struct {
	exatas  map[string]struct{}
	sufixos  []string
}

func novasOrigens(entradas []string) origens {
	o := origens{exatas: make(map[string]struct{}, len(entradas))}
	for _, entrada := range entradas {
		e := strings.TrimSpace(entrada)
		switch {
		case e == "":
		case strings.HasPrefix(e, "*."):
			o.sufixos = append(o.sufixos, strings.ToLower(strings.TrimPrefix(e, "*")))
		default:
			o.exatas[e] = struct{}{}
		}
	}
	return o
}

// permite aceita o Origin exato ou um subdomínio de uma entrada *.dominio.
// A raiz do domínio não casa com o wildcard.
func (o origens) permite(origin string) bool {
	if origin == "" {
		return false
	}
	if _, ok := o.exatas[origin]; ok {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, suf := range o.sufixos {
		if strings.HasSuffix(host, suf) {
			return true
		}
	}
	return false
}

// CORS aplica a política de ALLOW_ORIGINS. Content-Disposition fica exposto para
// que o painel leia o nome das planilhas exportadas.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	o := novasOrigens(allowedOrigins)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); o.permite(origin) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
				h.Set("Access-Control-Allow-Methods", corsAllowMethods)
				h.Set("Access-Control-Expose-Headers", corsExposeHeaders)
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
