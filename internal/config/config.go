package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Backends de persistência aceitos em STORE_BACKEND.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Config centraliza a configuração carregada do ambiente.
type Config struct {
	Port            int
	StoreBackend    string
	DBDSN           string
	RedisURL        string
	RedisPrefix     string
	JWTAccessTTL    time.Duration
	JWTRefreshTTL   time.Duration
	JWTSecret       string
	AllowOrigins    []string
	RateLimitPublic RateLimitConfig
	RateLimitAuth   RateLimitConfig
	LogLevel        string
	Location        *time.Location
	Bootstrap       BootstrapConfig
	Notificacoes    NotificacoesConfig
	Archive         ArchiveConfig
}

// RateLimitConfig representa limites simples para throttling.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// BootstrapConfig descreve o administrador criado na inicialização.
type BootstrapConfig struct {
	Email     string
	Nome      string
	Username  string
	SenhaHash string
}

// Enabled indica se há administrador inicial configurado.
func (b BootstrapConfig) Enabled() bool {
	return b.Email != ""
}

// NotificacoesConfig controla o monitor do feed.
type NotificacoesConfig struct {
	Enabled      bool
	PollInterval time.Duration
	WebhookURL   string
}

// ArchiveConfig define onde extratos importados e exportações são arquivados.
type ArchiveConfig struct {
	Provider     string
	S3Endpoint   string
	S3Region     string
	S3Bucket     string
	S3AccessKey  string
	S3SecretKey  string
	S3PublicURL  string
	GCSBucket    string
	GCSCredsFile string
}

// Load lê o ambiente (e um .env opcional) e devolve todas as variáveis
// inválidas de uma vez.
func Load() (*Config, error) {
	_ = godotenv.Load()

	e := &env{}
	cfg := &Config{
		Port:          e.inteiro("PORT", 8080),
		StoreBackend:  strings.ToLower(e.texto("STORE_BACKEND", StoreMemory)),
		RedisPrefix:   e.texto("REDIS_PREFIX", "tesouraria:"),
		JWTSecret:     e.texto("JWT_SECRET", ""),
		JWTAccessTTL:  e.duracao("JWT_ACCESS_TTL", 15*time.Minute),
		JWTRefreshTTL: e.duracao("JWT_REFRESH_TTL", 30*24*time.Hour),
		AllowOrigins:  e.lista("ALLOW_ORIGINS"),
		LogLevel:      strings.ToLower(e.texto("LOG_LEVEL", "info")),
		RateLimitPublic: RateLimitConfig{
			RequestsPerSecond: e.decimal("RATE_LIMIT_PUBLIC_RPS", 10),
			Burst:             e.inteiro("RATE_LIMIT_PUBLIC_BURST", 20),
		},
		RateLimitAuth: RateLimitConfig{
			RequestsPerSecond: e.decimal("RATE_LIMIT_AUTH_RPS", 10),
			Burst:             e.inteiro("RATE_LIMIT_AUTH_BURST", 40),
		},
	}

	if cfg.Port <= 0 {
		e.falha("PORT inválida")
	}
	switch cfg.StoreBackend {
	case StoreMemory:
	case StorePostgres:
		if cfg.DBDSN = e.texto("DB_DSN", ""); cfg.DBDSN == "" {
			e.falha("DB_DSN obrigatório")
		}
	case StoreRedis:
		if cfg.RedisURL = e.texto("REDIS_URL", ""); cfg.RedisURL == "" {
			e.falha("REDIS_URL obrigatório")
		}
	default:
		e.falha("STORE_BACKEND inválido: " + cfg.StoreBackend)
	}
	if len(cfg.JWTSecret) < 32 {
		e.falha("JWT_SECRET deve ter pelo menos 32 caracteres")
	}

	loc, err := time.LoadLocation(e.texto("TIMEZONE", "Africa/Maputo"))
	if err != nil {
		e.falha("TIMEZONE inválido")
	}
	cfg.Location = loc

	cfg.Bootstrap = BootstrapConfig{
		Email:     strings.ToLower(e.texto("BOOTSTRAP_ADMIN_EMAIL", "")),
		Nome:      e.texto("BOOTSTRAP_ADMIN_NOME", "Administrador"),
		Username:  e.texto("BOOTSTRAP_ADMIN_USERNAME", "admin"),
		SenhaHash: e.texto("BOOTSTRAP_ADMIN_SENHA_HASH", ""),
	}
	if cfg.Bootstrap.Enabled() && cfg.Bootstrap.SenhaHash == "" {
		e.falha("BOOTSTRAP_ADMIN_SENHA_HASH obrigatório")
	}

	cfg.Notificacoes = NotificacoesConfig{
		Enabled:      e.booleano("NOTIFICATIONS_MONITOR", true),
		PollInterval: e.duracao("NOTIFICATIONS_POLL_INTERVAL", 30*time.Second),
		WebhookURL:   e.texto("NOTIFICATIONS_WEBHOOK_URL", ""),
	}

	cfg.Archive = ArchiveConfig{
		Provider:     strings.ToLower(e.texto("ARCHIVE_PROVIDER", "noop")),
		S3Endpoint:   e.texto("ARCHIVE_S3_ENDPOINT", ""),
		S3Region:     e.texto("ARCHIVE_S3_REGION", "auto"),
		S3Bucket:     e.texto("ARCHIVE_S3_BUCKET", ""),
		S3AccessKey:  e.texto("ARCHIVE_S3_ACCESS_KEY", ""),
		S3SecretKey:  e.texto("ARCHIVE_S3_SECRET_KEY", ""),
		S3PublicURL:  e.texto("ARCHIVE_S3_PUBLIC_URL", ""),
		GCSBucket:    e.texto("ARCHIVE_GCS_BUCKET", ""),
		GCSCredsFile: e.texto("ARCHIVE_GCS_CREDENTIALS_FILE", ""),
	}

	if err := errors.Join(e.erros...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// env acumula erros de parse em vez de parar na primeira variável ruim.
type env struct {
	erros []error
}

func (e *env) falha(msg string) {
	e.erros = append(e.erros, errors.New(msg))
}

// texto devolve o valor sem espaços; vazio cai no default.
func (e *env) texto(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func (e *env) inteiro(key string, def int) int {
	v := e.texto(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.falha(key + " inválido")
		return def
	}
	return n
}

func (e *env) decimal(key string, def float64) float64 {
	v := e.texto(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		e.falha(key + " inválido")
		return def
	}
	return f
}

func (e *env) duracao(key string, def time.Duration) time.Duration {
	v := e.texto(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		e.falha(key + " inválido")
		return def
	}
	return d
}

func (e *env) booleano(key string, def bool) bool {
	v := e.texto(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.falha(key + " inválido")
		return def
	}
	return b
}

func (e *env) lista(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
