package storage

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

const (
	formatoAmzData = "20060102T150405Z"
	formatoAmzDia  = "20060102"
)

// S3Config descreve o bucket S3 ou R2 onde o arquivo é gravado.
type S3Config struct {
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	PublicDomain string
	HTTPClient   *http.Client
	Now          func() time.Time
}

// S3Uploader grava objetos com um PUT assinado em SigV4.
type S3Uploader struct {
	base      string
	bucket    string
	publico   string
	client    *http.Client
	now       func() time.Time
	assinador sigV4
}

func NewS3Uploader(cfg S3Config) (*S3Uploader, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	u := &S3Uploader{
		base:    strings.TrimRight(cfg.Endpoint, "/"),
		bucket:  cfg.Bucket,
		publico: strings.TrimRight(strings.TrimSpace(cfg.PublicDomain), "/"),
		client:  cfg.HTTPClient,
		now:     cfg.Now,
	}
	u.assinador = sigV4{accessKey: cfg.AccessKey, secretKey: cfg.SecretKey, region: cfg.Region, service: "s3"}
	if u.assinador.region == "" {
		u.assinador.region = "auto"
	}
	if u.client == nil {
		u.client = &http.Client{Timeout: 30 * time.Second}
	}
	if u.now == nil {
		u.now = time.Now
	}
	return u, nil
}

func (u *S3Uploader) Upload(ctx context.Context, obj Objeto) (*Resultado, error) {
	if err := obj.validar(); err != nil {
		return nil, err
	}

	chave := (&url.URL{Path: strings.TrimLeft(obj.Chave, "/")}).EscapedPath()
	destino := u.base + "/" + u.bucket + "/" + chave

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, destino, bytes.NewReader(obj.Corpo))
	if err != nil {
		return nil, err
	}
	req.ContentLength = int64(len(obj.Corpo))
	req.Header.Set("Content-Type", obj.contentType())
	u.assinador.assinar(req, obj.Corpo, u.now().UTC())

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("storage: enviar objeto: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		corpo, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("storage: PUT %s respondeu %d: %s", obj.Chave, resp.StatusCode, strings.TrimSpace(string(corpo)))
	}

	res := &Resultado{URL: destino, ETag: strings.Trim(resp.Header.Get("ETag"), `"`)}
	if u.publico != "" {
		res.URL = u.publico + "/" + chave
	}
	return res, nil
}

func (cfg S3Config) validate() error {
	var faltas []string
	if strings.TrimSpace(cfg.Bucket) == "" {
		faltas = append(faltas, "ARCHIVE_S3_BUCKET")
	}
	if strings.TrimSpace(cfg.AccessKey) == "" {
		faltas = append(faltas, "ARCHIVE_S3_ACCESS_KEY")
	}
	if strings.TrimSpace(cfg.SecretKey) == "" {
		faltas = append(faltas, "ARCHIVE_S3_SECRET_KEY")
	}
	if len(faltas) > 0 {
		return fmt.Errorf("storage: configuração S3 incompleta: %s", strings.Join(faltas, ", "))
	}
	if e, err := url.Parse(cfg.Endpoint); err != nil || (e.Scheme != "http" && e.Scheme != "https") || e.Host == "" {
		return errors.New("storage: ARCHIVE_S3_ENDPOINT deve ser uma URL http(s)")
	}
	return nil
}

// sigV4 assina requisições com AWS Signature Version 4 sobre os headers
// content-type, host, x-amz-content-sha256 e x-amz-date.
type sigV4 struct {
	accessKey string
	secretKey string
	region    string
	service   string
}

func (s sigV4) assinar(req *http.Request, corpo []byte, t time.Time) {
	soma := sha256.Sum256(corpo)
	payload := hex.EncodeToString(soma[:])
	data := t.Format(formatoAmzData)
	dia := t.Format(formatoAmzDia)

	req.Header.Set("x-amz-content-sha256", payload)
	req.Header.Set("x-amz-date", data)

	headers := map[string]string{
		"content-type":         req.Header.Get("Content-Type"),
		"host":                 req.URL.Host,
		"x-amz-content-sha256": payload,
		"x-amz-date":           data,
	}
	nomes := make([]string, 0, len(headers))
	for k := range headers {
		nomes = append(nomes, k)
	}
	sort.Strings(nomes)

	var canonicos strings.Builder
	for _, k := range nomes {
		fmt.Fprintf(&canonicos, "%s:%s\n", k, strings.TrimSpace(headers[k]))
	}
	assinados := strings.Join(nomes, ";")

	caminho := req.URL.Path
	if !strings.HasPrefix(caminho, "/") {
		caminho = "/" + caminho
	}
	pedido := strings.Join([]string{
		req.Method,
		escaparCaminho(caminho),
		req.URL.RawQuery,
		canonicos.String(),
		assinados,
		payload,
	}, "\n")
	pedidoHash := sha256.Sum256([]byte(pedido))

	escopo := strings.Join([]string{dia, s.region, s.service, "aws4_request"}, "/")
	paraAssinar := "AWS4-HMAC-SHA256\n" + data + "\n" + escopo + "\n" + hex.EncodeToString(pedidoHash[:])

	chave := []byte("AWS4" + s.secretKey)
	for _, parte := range []string{dia, s.region, s.service, "aws4_request"} {
		chave = hmacSHA256(chave, parte)
	}
	assinatura := hex.EncodeToString(hmacSHA256(chave, paraAssinar))

	req.Header.Set("Authorization", "AWS4-HMAC-SHA256 Credential="+s.accessKey+"/"+escopo+
		", SignedHeaders="+assinados+", Signature="+assinatura)
}

// escaparCaminho aplica o URI-encode do SigV4 preservando as barras.
func escaparCaminho(p string) string {
	var b strings.Builder
	for i := 0; i < len(p); i++ {
		c := p[i]
		switch {
		case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9':
			b.WriteByte(c)
		case c == '-', c == '_', c == '.', c == '~', c == '/':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

func hmacSHA256(key []byte, data string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(data))
	return mac.Sum(nil)
}
