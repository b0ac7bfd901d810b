package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	CompletionTotal        *prometheus.CounterVec
	CompletionStepFailures *prometheus.CounterVec
	InstanceMaterialized   *prometheus.CounterVec
}

func NewMetrics(registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		CompletionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mission_completion_total",
			Help: "Mission completions by outcome.",
		}, []string{"kind", "outcome"}),
		CompletionStepFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mission_completion_step_failures_total",
			Help: "Failed completion steps by step name.",
		}, []string{"step"}),
		InstanceMaterialized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "daily_instance_materialized_total",
			Help: "Daily instance get-or-create results.",
		}, []string{"result"}),
	}

	var err error
	m.CompletionTotal, err = register(registerer, m.CompletionTotal)
	if err != nil {
		return nil, err
	}
	m.CompletionStepFailures, err = register(registerer, m.CompletionStepFailures)
	if err != nil {
		return nil, err
	}
	m.InstanceMaterialized, err = register(registerer, m.InstanceMaterialized)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func register(registerer prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := registerer.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return c, nil
}
