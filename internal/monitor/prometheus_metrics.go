package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "schoolhub"

var SummaryVecMetrics = map[MetricTag]*prometheus.SummaryVec{
	HTTPRequestDurationTag: prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace: namespace, Subsystem: "http", Name: string(HTTPRequestDurationTag),
		Help: "HTTP requests durations, sliding window = 10m",
	},
		[]string{"status", "route", "method"},
	),
	ConversionStepDurationTag: prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace: namespace, Subsystem: "conversion", Name: string(ConversionStepDurationTag),
		Help: "Duration of each conversion step",
	},
		conversionStepLabelNames,
	),
	SweepDurationTag: prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace: namespace, Subsystem: "lifecycle", Name: string(SweepDurationTag),
		Help: "Duration of the subscription sweeps",
	},
		[]string{"outcome"},
	),
	SuccessfulQueryDurationTag: prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace: namespace, Subsystem: "db", Name: string(SuccessfulQueryDurationTag),
		Help: "Catalog queries durations, sliding window = 10m",
	},
		dbQueryLabelNames,
	),
	FailureQueryDurationTag: prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace: namespace, Subsystem: "db", Name: string(FailureQueryDurationTag),
		Help: "Failing catalog queries durations, sliding window = 10m",
	},
		dbQueryLabelNames,
	),
}

var CounterMetrics = map[MetricTag]prometheus.Counter{
	SchoolsSuspendedCounterTag: prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "lifecycle", Name: string(SchoolsSuspendedCounterTag),
		Help: "Schools suspended by the subscription sweep",
	}),
}

var CounterVecMetrics = map[MetricTag]*prometheus.CounterVec{
	ConversionsCounterTag: prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "conversion", Name: string(ConversionsCounterTag),
		Help: "Conversion attempts by kind and outcome",
	},
		conversionLabelNames,
	),
	StaleConversionsCounterTag: prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "conversion", Name: string(StaleConversionsCounterTag),
		Help: "Stale initiated conversions settled by the reaper",
	},
		conversionLabelNames,
	),
}

var HistogramVecMetrics = map[MetricTag]*prometheus.HistogramVec{
	AllocationAttemptsTag: prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "conversion", Name: string(AllocationAttemptsTag),
		Help:    "Candidates tried before a domain was reserved",
		Buckets: []float64{1, 2, 3, 5, 10, 20},
	},
		kindLabelNames,
	),
}

func lookupCollector(tag MetricTag) (prometheus.Collector, bool) {
	if c, ok := SummaryVecMetrics[tag]; ok {
		return c, true
	}
	if c, ok := CounterMetrics[tag]; ok {
		return c, true
	}
	if c, ok := CounterVecMetrics[tag]; ok {
		return c, true
	}
	if c, ok := HistogramVecMetrics[tag]; ok {
		return c, true
	}
	return nil, false
}
