package engine

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricsOnce sync.Once

	reconcilesTotal *prometheus.CounterVec
	rotationsTotal  *prometheus.CounterVec
)

// initMetrics registra los contadores del engine una sola vez, sin importar
// cuántos engines se construyan (los tests crean varios).
func initMetrics() {
	metricsOnce.Do(func() {
		reconcilesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "keysmith_reconciles_total",
			Help: "Pases de reconciliación por resultado",
		}, []string{"outcome"})

		rotationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "keysmith_rotations_total",
			Help: "Pases de rotación por resultado",
		}, []string{"outcome"})

		prometheus.MustRegister(reconcilesTotal, rotationsTotal)
	})
}

func reconcileMetric(outcome string) {
	if reconcilesTotal != nil {
		reconcilesTotal.WithLabelValues(outcome).Inc()
	}
}

func rotationMetric(outcome string) {
	if rotationsTotal != nil {
		rotationsTotal.WithLabelValues(outcome).Inc()
	}
}
