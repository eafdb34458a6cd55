package monitor

import (
	"net/http"
	"time"
)

// MonitorClient is a metrics backend. Recording methods never fail: a tag the backend does not know is dropped.
//
//go:generate mockery --name=MonitorClient --case=underscore --structname=MockMonitorClient
type MonitorClient interface {
	GetMetricType() MetricType
	// GetMetricHTTPHandler exposes the recorded metrics for scraping.
	GetMetricHTTPHandler() http.Handler

	MonitorHTTPRequestDuration(duration time.Duration, labels HTTPRequestLabels)
	MonitorDuration(duration time.Duration, tag MetricTag, labels map[string]string)
	MonitorHistogram(value float64, tag MetricTag, labels map[string]string)
	MonitorCounters(tag MetricTag, labels map[string]string)
	MonitorCounterAdd(value float64, tag MetricTag, labels map[string]string)
}
