package monitor

type HTTPRequestLabels struct {
	Status string
	Route  string
	Method string
}

// ConversionLabels identify a saga run. Kind is "admin" or "inquiry".
type ConversionLabels struct {
	Kind    string
	Outcome string
}

func (c ConversionLabels) ToMap() map[string]string {
	return map[string]string{
		"kind":    c.Kind,
		"outcome": c.Outcome,
	}
}

type ConversionStepLabels struct {
	Kind string
	Step string
}

func (c ConversionStepLabels) ToMap() map[string]string {
	return map[string]string{
		"kind": c.Kind,
		"step": c.Step,
	}
}

type SweepLabels struct {
	Outcome string
}

func (s SweepLabels) ToMap() map[string]string {
	return map[string]string{"outcome": s.Outcome}
}

// DBQueryLabels classify a query by its leading SQL verb.
type DBQueryLabels struct {
	QueryType string
}

func (d DBQueryLabels) ToMap() map[string]string {
	return map[string]string{"query_type": d.QueryType}
}

var (
	dbQueryLabelNames        = []string{"query_type"}
	conversionLabelNames     = []string{"kind", "outcome"}
	conversionStepLabelNames = []string{"kind", "step"}
	kindLabelNames           = []string{"kind"}
)
