package notificacao

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Notifier entrega alertas a um canal externo.
type Notifier interface {
	Notify(ctx context.Context, msg Alerta) error
}

type Alerta struct {
	Titulo     string
	Texto      string
	Severidade string
	// Destino é o email do fornecedor nos lembretes de pagamento.
	Destino string
}

// WebhookNotifier publica alertas num webhook compatível com Slack.
type WebhookNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewWebhookNotifier devolve nil sem URL, deixando o serviço sem canal externo.
func NewWebhookNotifier(webhookURL string) *WebhookNotifier {
	if webhookURL == "" {
		return nil
	}
	return &WebhookNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 5 * time.Second},
	}
}

func (w *WebhookNotifier) Notify(ctx context.Context, msg Alerta) error {
	if w == nil || w.webhookURL == "" {
		return ErrNotifierAusente
	}

	payload := map[string]any{
		"text": formatarMensagem(msg),
	}
	if msg.Destino != "" {
		payload["to"] = msg.Destino
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.webhookURL, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook respondeu %d", resp.StatusCode)
	}
	return nil
}

func formatarMensagem(msg Alerta) string {
	emoji := ":information_source:"
	switch msg.Severidade {
	case TipoAviso:
		emoji = ":warning:"
	case TipoAprovacao:
		emoji = ":rotating_light:"
	}
	if msg.Titulo != "" {
		return emoji + " *" + msg.Titulo + "*\n" + msg.Texto
	}
	return emoji + " " + msg.Texto
}
