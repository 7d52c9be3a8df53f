package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSUploader grava objetos num bucket do Google Cloud Storage.
type GCSUploader struct {
	client *gcs.Client
	bucket string
}

// NewGCSUploader usa o arquivo de credenciais informado ou as Application Default Credentials.
func NewGCSUploader(ctx context.Context, bucket, credsFile string) (*GCSUploader, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("storage: bucket do GCS ausente")
	}
	var opts []option.ClientOption
	if strings.TrimSpace(credsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(credsFile))
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: criar cliente GCS: %w", err)
	}
	return &GCSUploader{client: client, bucket: bucket}, nil
}

func (u *GCSUploader) Upload(ctx context.Context, obj Objeto) (*Resultado, error) {
	if err := obj.validar(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := u.client.Bucket(u.bucket).Object(obj.Chave).NewWriter(ctx)
	w.ContentType = obj.contentType()
	if _, err := w.Write(obj.Corpo); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("storage: escrever objeto GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("storage: finalizar upload GCS: %w", err)
	}

	res := &Resultado{URL: fmt.Sprintf("gs://%s/%s", u.bucket, obj.Chave)}
	if attrs := w.Attrs(); attrs != nil {
		res.ETag = attrs.Etag
	}
	return res, nil
}

func (u *GCSUploader) Close() error {
	return u.client.Close()
}
