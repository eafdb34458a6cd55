package monitor

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stellar/go-stellar-sdk/support/log"
)

type prometheusClient struct {
	httpHandler http.Handler
}

func (prometheusClient) GetMetricType() MetricType {
	return MetricTypePrometheus
}

func (p *prometheusClient) GetMetricHTTPHandler() http.Handler {
	return p.httpHandler
}

func (p *prometheusClient) MonitorHTTPRequestDuration(duration time.Duration, labels HTTPRequestLabels) {
	SummaryVecMetrics[HTTPRequestDurationTag].With(prometheus.Labels{
		"status": labels.Status,
		"route":  labels.Route,
		"method": labels.Method,
	}).Observe(duration.Seconds())
}

func (p *prometheusClient) MonitorDuration(duration time.Duration, tag MetricTag, labels map[string]string) {
	summary, ok := SummaryVecMetrics[tag]
	if !ok {
		log.Errorf("metric not registered in Prometheus SummaryVecMetrics: %s", tag)
		return
	}
	summary.With(labels).Observe(duration.Seconds())
}

func (p *prometheusClient) MonitorCounters(tag MetricTag, labels map[string]string) {
	p.MonitorCounterAdd(1, tag, labels)
}

func (p *prometheusClient) MonitorCounterAdd(value float64, tag MetricTag, labels map[string]string) {
	if len(labels) != 0 {
		if counterVecMetric, ok := CounterVecMetrics[tag]; ok {
			counterVecMetric.With(labels).Add(value)
		} else {
			log.Errorf("metric not registered in Prometheus CounterVecMetrics: %s", tag)
		}
		return
	}

	if counterMetric, ok := CounterMetrics[tag]; ok {
		counterMetric.Add(value)
	} else {
		log.Errorf("metric not registered in Prometheus CounterMetrics: %s", tag)
	}
}

func (p *prometheusClient) MonitorHistogram(value float64, tag MetricTag, labels map[string]string) {
	histogram, ok := HistogramVecMetrics[tag]
	if !ok {
		log.Errorf("metric not registered in Prometheus HistogramVecMetrics: %s", tag)
		return
	}
	histogram.With(labels).Observe(value)
}

// NewPrometheusClient registers every MetricTag plus the Go runtime collectors. A non-empty environment is added as
// a constant label to the application metrics so staging and production can share a Prometheus.
func NewPrometheusClient(environment string) (*prometheusClient, error) {
	metricsRegistry := prometheus.NewRegistry()
	metricsRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var registerer prometheus.Registerer = metricsRegistry
	if environment != "" {
		registerer = prometheus.WrapRegistererWith(prometheus.Labels{"environment": environment}, metricsRegistry)
	}

	var metricTag MetricTag
	for _, tag := range metricTag.ListAll() {
		collector, ok := lookupCollector(tag)
		if !ok {
			return nil, fmt.Errorf("metric not registered in prometheus metrics: %s", tag)
		}
		if err := registerer.Register(collector); err != nil {
			return nil, fmt.Errorf("registering %s: %w", tag, err)
		}
	}

	return &prometheusClient{httpHandler: promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{})}, nil
}

var _ MonitorClient = (*prometheusClient)(nil)
