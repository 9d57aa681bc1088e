package infra

import (
	"context"

	"access-gate/middleware/accessctl/domain"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusStats expõe as decisões do controle de acesso como métricas.
//
// Só usa labels de baixa cardinalidade (categoria, resultado); identificadores
// nunca viram label.
type PrometheusStats struct {
	decisions *prometheus.CounterVec
	bans      *prometheus.CounterVec
	swept     prometheus.Counter
	shed      prometheus.Counter
}

var _ domain.StatsStore = (*PrometheusStats)(nil)

func NewPrometheusStats(reg prometheus.Registerer, namespace string) (*PrometheusStats, error) {
	p := &PrometheusStats{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_decisions_total",
			Help:      "Quota checks by category and outcome.",
		}, []string{"category", "outcome"}),
		bans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ban_decisions_total",
			Help:      "Ban gate decisions by status.",
		}, []string{"status"}),
		swept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_swept_entries_total",
			Help:      "Expired quota entries removed by the sweeper.",
		}),
		shed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shed_requests_total",
			Help:      "Requests refused for lack of a concurrency slot.",
		}),
	}
	for _, c := range []prometheus.Collector{p.decisions, p.bans, p.swept, p.shed} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *PrometheusStats) Record(_ context.Context, ev domain.StatsEvent) error {
	outcome := "denied"
	if ev.Allowed {
		outcome = "allowed"
	}
	p.decisions.WithLabelValues(string(ev.Category), outcome).Inc()
	return nil
}

// ObserveBan conta uma decisão do BanGate vista pelo middleware.
func (p *PrometheusStats) ObserveBan(status string) {
	p.bans.WithLabelValues(status).Inc()
}

// ObserveLift conta uma expiração reconciliada. O gate devolve not_banned
// nesse caso, então o status "expired" só chega por aqui.
func (p *PrometheusStats) ObserveLift() {
	p.bans.WithLabelValues(domain.Expired.String()).Inc()
}

func (p *PrometheusStats) ObserveShed() { p.shed.Inc() }

func (p *PrometheusStats) ObserveSweep(removed int) {
	p.swept.Add(float64(removed))
}

// RegisterGauge publica um valor lido sob demanda (ex: vagas em uso no pool).
func RegisterGauge(reg prometheus.Registerer, namespace, name, help string, fn func() float64) error {
	return reg.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn))
}
