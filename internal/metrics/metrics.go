package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "backoffice_http_requests_total",
		Help: "Total de requisicoes HTTP por classe de status",
	}, []string{"status"})

	permissionDenialsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "backoffice_permission_denials_total",
		Help: "Total de negacoes de permissao por modulo",
	}, []string{"module"})

	staffingRecomputesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "backoffice_staffing_recomputes_total",
		Help: "Total de recalculos de equipe executados",
	})

	ledgerSyncsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "backoffice_ledger_syncs_total",
		Help: "Total de sincronizacoes de custos de equipe para o caixa",
	})
)

func ObserveRequest(statusClass string) {
	httpRequestsTotal.WithLabelValues(statusClass).Inc()
}

func IncPermissionDenial(module string) {
	permissionDenialsTotal.WithLabelValues(module).Inc()
}

func IncStaffingRecompute() {
	staffingRecomputesTotal.Inc()
}

func IncLedgerSync() {
	ledgerSyncsTotal.Inc()
}
