package storage

import "context"

// NoopUploader é usado quando ARCHIVE_PROVIDER não está definido.
type NoopUploader struct{}

func (NoopUploader) Upload(ctx context.Context, obj Objeto) (*Resultado, error) {
	return nil, ErrNaoConfigurado
}
