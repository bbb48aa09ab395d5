package metrics

import "github.com/prometheus/client_golang/prometheus"

// NewPromCounter adds observed values to a counter.
func NewPromCounter(m prometheus.Counter) Observer {
	return &PrometheusMetric{
		observe: func(val float64, labels ...string) {
			m.Add(val)
		},
		Collector: m,
	}
}

// NewPromCounterVec adds observed values to the labelled counter.
func NewPromCounterVec(m *prometheus.CounterVec) Observer {
	return &PrometheusMetric{
		observe: func(val float64, labels ...string) {
			m.WithLabelValues(labels...).Add(val)
		},
		Collector: m,
	}
}

// NewPromGauge sets a gauge to the observed value.
func NewPromGauge(m prometheus.Gauge) Observer {
	return &PrometheusMetric{
		observe: func(val float64, labels ...string) {
			m.Set(val)
		},
		Collector: m,
	}
}

// NewPromGaugeVec sets the labelled gauge to the observed value.
func NewPromGaugeVec(m *prometheus.GaugeVec) Observer {
	return &PrometheusMetric{
		observe: func(val float64, labels ...string) {
			m.WithLabelValues(labels...).Set(val)
		},
		Collector: m,
	}
}

// NewPromHistogram records observed values in a histogram.
func NewPromHistogram(m prometheus.Histogram) Observer {
	return &PrometheusMetric{
		observe: func(val float64, labels ...string) {
			m.Observe(val)
		},
		Collector: m,
	}
}

// PrometheusMetric adapts a prometheus collector to Observer.
type PrometheusMetric struct {
	observe func(val float64, labels ...string)
	prometheus.Collector
}

// Observe records val.
func (m *PrometheusMetric) Observe(val float64, labels ...string) {
	m.observe(val, labels...)
}
