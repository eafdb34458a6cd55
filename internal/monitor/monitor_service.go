package monitor

import (
	"fmt"
	"net/http"
	"time"
)

//go:generate mockery --name=MonitorServiceInterface --case=underscore --structname=MockMonitorService
type MonitorServiceInterface interface {
	Start(opts MetricOptions) error
	GetMetricType() (MetricType, error)
	GetMetricHTTPHandler() (http.Handler, error)
	MonitorHTTPRequestDuration(duration time.Duration, labels HTTPRequestLabels) error
	MonitorCounters(tag MetricTag, labels map[string]string) error
	MonitorCounterAdd(value float64, tag MetricTag, labels map[string]string) error
	MonitorDuration(duration time.Duration, tag MetricTag, labels map[string]string) error
	MonitorHistogram(value float64, tag MetricTag, labels map[string]string) error
}

var _ MonitorServiceInterface = (*MonitorService)(nil)

var errClientNotInitialized = fmt.Errorf("client was not initialized")

type MonitorService struct {
	monitorClient MonitorClient
}

func (m *MonitorService) Start(opts MetricOptions) error {
	if m.monitorClient != nil {
		return fmt.Errorf("service already initialized")
	}

	monitorClient, err := GetClient(opts)
	if err != nil {
		return fmt.Errorf("error creating monitor client: %w", err)
	}

	m.monitorClient = monitorClient

	return nil
}

func (m *MonitorService) GetMetricType() (MetricType, error) {
	if m.monitorClient == nil {
		return "", errClientNotInitialized
	}

	return m.monitorClient.GetMetricType(), nil
}

func (m *MonitorService) GetMetricHTTPHandler() (http.Handler, error) {
	if m.monitorClient == nil {
		return nil, errClientNotInitialized
	}

	return m.monitorClient.GetMetricHTTPHandler(), nil
}

func (m *MonitorService) MonitorHTTPRequestDuration(duration time.Duration, labels HTTPRequestLabels) error {
	if m.monitorClient == nil {
		return errClientNotInitialized
	}

	m.monitorClient.MonitorHTTPRequestDuration(duration, labels)

	return nil
}

func (m *MonitorService) MonitorDuration(duration time.Duration, tag MetricTag, labels map[string]string) error {
	if m.monitorClient == nil {
		return errClientNotInitialized
	}

	m.monitorClient.MonitorDuration(duration, tag, labels)

	return nil
}

func (m *MonitorService) MonitorHistogram(value float64, tag MetricTag, labels map[string]string) error {
	if m.monitorClient == nil {
		return errClientNotInitialized
	}

	m.monitorClient.MonitorHistogram(value, tag, labels)

	return nil
}

func (m *MonitorService) MonitorCounters(tag MetricTag, labels map[string]string) error {
	if m.monitorClient == nil {
		return errClientNotInitialized
	}

	m.monitorClient.MonitorCounters(tag, labels)

	return nil
}

func (m *MonitorService) MonitorCounterAdd(value float64, tag MetricTag, labels map[string]string) error {
	if m.monitorClient == nil {
		return errClientNotInitialized
	}

	m.monitorClient.MonitorCounterAdd(value, tag, labels)

	return nil
}
