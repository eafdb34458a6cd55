package monitor

type MetricTag string

const (
	HTTPRequestDurationTag MetricTag = "requests_duration_seconds"
	// Conversions:
	ConversionsCounterTag      MetricTag = "conversions_total"
	ConversionStepDurationTag  MetricTag = "conversion_step_duration_seconds"
	AllocationAttemptsTag      MetricTag = "allocation_attempts"
	StaleConversionsCounterTag MetricTag = "stale_conversions_total"
	// Subscription lifecycle:
	SweepDurationTag           MetricTag = "sweep_duration_seconds"
	SchoolsSuspendedCounterTag MetricTag = "schools_suspended_total"
	// Database:
	SuccessfulQueryDurationTag MetricTag = "successful_queries_duration"
	FailureQueryDurationTag    MetricTag = "failure_queries_duration"
)

func (m MetricTag) ListAll() []MetricTag {
	return []MetricTag{
		HTTPRequestDurationTag,
		ConversionsCounterTag,
		ConversionStepDurationTag,
		AllocationAttemptsTag,
		StaleConversionsCounterTag,
		SweepDurationTag,
		SchoolsSuspendedCounterTag,
		SuccessfulQueryDurationTag,
		FailureQueryDurationTag,
	}
}
