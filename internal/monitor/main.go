package monitor

import (
	"fmt"
	"strings"
)

type MetricType string

const MetricTypePrometheus MetricType = "PROMETHEUS"

func ParseMetricType(metricTypeStr string) (MetricType, error) {
	mType := MetricType(strings.ToUpper(strings.TrimSpace(metricTypeStr)))
	if mType != MetricTypePrometheus {
		return "", fmt.Errorf("invalid metric type %q", string(mType))
	}
	return mType, nil
}

// MetricOptions selects the metrics backend. Environment becomes a constant label on every application metric.
type MetricOptions struct {
	MetricType  MetricType
	Environment string
}

func GetClient(opts MetricOptions) (MonitorClient, error) {
	if opts.MetricType != MetricTypePrometheus {
		return nil, fmt.Errorf("unknown metric type: %q", opts.MetricType)
	}
	return NewPrometheusClient(opts.Environment)
}
