package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/gestaofinanceira/tesouraria/internal/config"
)

func TestS3UploaderSignsPut(t *testing.T) {
	var (
		gotAuth string
		gotBody string
		gotPath string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT, got %s", r.Method)
		}
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("ETag", `"abc123"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	up, err := NewS3Uploader(S3Config{
		Endpoint:  srv.URL,
		Region:    "auto",
		Bucket:    "arquivo",
		AccessKey: "AK",
		SecretKey: "SK",
		Now:       func() time.Time { return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	res, err := up.Upload(context.Background(), Objeto{Chave: "extratos/2024/03/a.xlsx", Corpo: []byte("conteudo")})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if res.ETag != "abc123" {
		t.Fatalf("expected etag abc123, got %s", res.ETag)
	}
	if gotPath != "/arquivo/extratos/2024/03/a.xlsx" || gotBody != "conteudo" {
		t.Fatalf("unexpected request %s %q", gotPath, gotBody)
	}
	if !strings.HasPrefix(gotAuth, "AWS4-HMAC-SHA256 Credential=AK/20240301/auto/s3/aws4_request") {
		t.Fatalf("unexpected authorization %q", gotAuth)
	}
	if !strings.Contains(gotAuth, "SignedHeaders=content-type;host;x-amz-content-sha256;x-amz-date") {
		t.Fatalf("unexpected signed headers %q", gotAuth)
	}
}

func TestS3UploaderRejectsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "negado", http.StatusForbidden)
	}))
	defer srv.Close()

	up, _ := NewS3Uploader(S3Config{Endpoint: srv.URL, Bucket: "b", AccessKey: "a", SecretKey: "s"})
	if _, err := up.Upload(context.Background(), Objeto{Chave: "k", Corpo: []byte("x")}); err == nil {
		t.Fatalf("expected error on 403")
	}
	if _, err := up.Upload(context.Background(), Objeto{Chave: "k"}); err == nil {
		t.Fatalf("expected error on empty body")
	}
}

func TestNewProviders(t *testing.T) {
	u, err := New(context.Background(), config.ArchiveConfig{Provider: "noop"})
	if err != nil {
		t.Fatalf("noop: %v", err)
	}
	if _, err := u.Upload(context.Background(), Objeto{Chave: "k", Corpo: []byte("x")}); !errors.Is(err, ErrNaoConfigurado) {
		t.Fatalf("expected ErrNaoConfigurado, got %v", err)
	}
	if _, err := New(context.Background(), config.ArchiveConfig{Provider: "s3"}); err == nil {
		t.Fatalf("expected validation error for empty s3 config")
	}
	if _, err := New(context.Background(), config.ArchiveConfig{Provider: "ftp"}); err == nil {
		t.Fatalf("expected unknown provider error")
	}
}

func TestArquivarIgnoraNoop(t *testing.T) {
	if res := Arquivar(context.Background(), NoopUploader{}, zerolog.Nop(), Objeto{Chave: "k", Corpo: []byte("x")}); res != nil {
		t.Fatalf("expected nil result, got %+v", res)
	}
}

func TestChave(t *testing.T) {
	k := Chave("extratos", time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC), "Extrato Março.xlsx")
	if !strings.HasPrefix(k, "extratos/2024/03/") || !strings.HasSuffix(k, "-Extrato_Março.xlsx") {
		t.Fatalf("unexpected key %s", k)
	}
}
