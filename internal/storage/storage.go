// Package storage arquiva extratos importados e planilhas exportadas.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gestaofinanceira/tesouraria/internal/config"
	"github.com/gestaofinanceira/tesouraria/internal/util"
)

// ErrNaoConfigurado sinaliza que nenhum backend de arquivo foi configurado.
var ErrNaoConfigurado = errors.New("storage: arquivo não configurado")

// Objeto é o blob a arquivar.
type Objeto struct {
	Chave       string
	Corpo       []byte
	ContentType string
}

// Resultado descreve o objeto persistido.
type Resultado struct {
	URL  string
	ETag string
}

// Uploader grava blobs num backend remoto.
type Uploader interface {
	Upload(ctx context.Context, obj Objeto) (*Resultado, error)
}

// New escolhe o backend pelo provider configurado.
func New(ctx context.Context, cfg config.ArchiveConfig) (Uploader, error) {
	switch cfg.Provider {
	case "", "noop":
		return NoopUploader{}, nil
	case "s3", "r2":
		return NewS3Uploader(S3Config{
			Endpoint:     cfg.S3Endpoint,
			Region:       cfg.S3Region,
			Bucket:       cfg.S3Bucket,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			PublicDomain: cfg.S3PublicURL,
		})
	case "gcs":
		return NewGCSUploader(ctx, cfg.GCSBucket, cfg.GCSCredsFile)
	default:
		return nil, fmt.Errorf("storage: provider %q desconhecido", cfg.Provider)
	}
}

// Chave monta o caminho do objeto: pasta/aaaa/mm/<id>-nome.
func Chave(pasta string, now time.Time, nome string) string {
	nome = strings.ReplaceAll(path.Base(strings.TrimSpace(nome)), " ", "_")
	if nome == "" || nome == "." || nome == "/" {
		nome = "arquivo"
	}
	return fmt.Sprintf("%s/%04d/%02d/%s-%s", pasta, now.Year(), int(now.Month()), util.NewID(), nome)
}

// Arquivar envia o objeto sem falhar a operação principal.
func Arquivar(ctx context.Context, u Uploader, logger zerolog.Logger, obj Objeto) *Resultado {
	if u == nil {
		return nil
	}
	res, err := u.Upload(ctx, obj)
	if errors.Is(err, ErrNaoConfigurado) {
		return nil
	}
	if err != nil {
		logger.Warn().Err(err).Str("chave", obj.Chave).Msg("falha ao arquivar objeto")
		return nil
	}
	logger.Debug().Str("chave", obj.Chave).Str("url", res.URL).Msg("objeto arquivado")
	return res
}

func (o Objeto) validar() error {
	if strings.TrimSpace(o.Chave) == "" {
		return errors.New("storage: chave do objeto obrigatória")
	}
	if len(o.Corpo) == 0 {
		return errors.New("storage: corpo vazio")
	}
	return nil
}

func (o Objeto) contentType() string {
	if ct := strings.TrimSpace(o.ContentType); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
