package notificacao

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gestaofinanceira/tesouraria/internal/config"
	"github.com/gestaofinanceira/tesouraria/internal/usuario"
)

// PapeisMonitorados são os papéis cujas contagens o monitor acompanha.
var PapeisMonitorados = []string{
	usuario.PapelTesoureira,
	usuario.PapelDirectoraFinanceira,
	usuario.PapelReitor,
	usuario.PapelAdmin,
	usuario.PapelUser,
}

// Snapshot é o último cálculo das contagens por papel.
type Snapshot struct {
	CalculadoEm time.Time           `json:"calculadoEm"`
	Papeis      map[string]Contagem `json:"papeis"`
}

// Monitor relê o feed periodicamente e avisa quando surgem pendências importantes.
type Monitor struct {
	service  *Service
	cfg      config.NotificacoesConfig
	notifier Notifier
	logger   zerolog.Logger

	mu     sync.RWMutex
	ultimo Snapshot

	once   sync.Once
	cancel context.CancelFunc
	done   chan struct{}
}

func NewMonitor(service *Service, cfg config.NotificacoesConfig, logger zerolog.Logger, notifier Notifier) *Monitor {
	return &Monitor{
		service:  service,
		cfg:      cfg,
		notifier: notifier,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start inicia o loop periódico. Pode ser chamado mais de uma vez.
func (m *Monitor) Start(parent context.Context) {
	if !m.cfg.Enabled {
		return
	}
	m.once.Do(func() {
		ctx, cancel := context.WithCancel(parent)
		m.cancel = cancel
		go m.runLoop(ctx)
	})
}

// Stop encerra o loop e espera a volta em curso terminar.
func (m *Monitor) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
}

func (m *Monitor) runLoop(ctx context.Context) {
	defer close(m.done)

	interval := m.cfg.PollInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.logger.Info().Dur("interval", interval).Msg("monitor de notificações: loop iniciado")

	if err := m.RunOnce(ctx); err != nil {
		m.logger.Error().Err(err).Msg("monitor de notificações: primeira execução falhou")
	}

	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("monitor de notificações: loop encerrado")
			return
		case <-ticker.C:
			if err := m.RunOnce(ctx); err != nil {
				m.logger.Error().Err(err).Msg("monitor de notificações: execução periódica falhou")
			}
		}
	}
}

// RunOnce recalcula as contagens e alerta os papéis cujo número de
// notificações importantes por ler aumentou desde a última volta.
func (m *Monitor) RunOnce(ctx context.Context) error {
	todas, err := m.service.Listar(ctx)
	if err != nil {
		return fmt.Errorf("listar notificações: %w", err)
	}

	atual := Snapshot{CalculadoEm: m.service.clock.Now(), Papeis: make(map[string]Contagem, len(PapeisMonitorados))}
	for _, papel := range PapeisMonitorados {
		atual.Papeis[papel] = contar(filtrar(todas, papel))
	}

	m.mu.Lock()
	anterior := m.ultimo
	m.ultimo = atual
	m.mu.Unlock()

	for _, papel := range PapeisMonitorados {
		c := atual.Papeis[papel]
		antes := anterior.Papeis[papel]
		if c.AltaPrioridade <= antes.AltaPrioridade {
			continue
		}
		m.logger.Info().Str("papel", papel).Int("pendentes", c.AltaPrioridade).Msg("monitor de notificações: novas pendências importantes")
		if m.notifier == nil {
			continue
		}
		msg := Alerta{
			Titulo:     "Aprovações Pendentes",
			Texto:      fmt.Sprintf("%d notificação(ões) importante(s) por ler para %s.", c.AltaPrioridade, papel),
			Severidade: TipoAprovacao,
		}
		if err := m.notifier.Notify(ctx, msg); err != nil {
			m.logger.Error().Err(err).Str("papel", papel).Msg("monitor de notificações: falha ao enviar resumo")
		}
	}
	return nil
}

// Ultimo devolve o snapshot mais recente.
func (m *Monitor) Ultimo() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ultimo
}
