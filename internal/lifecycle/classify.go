package lifecycle

import (
	"time"

	"github.com/schoolhub/schoolhub-backend/internal/data"
)

// OperatingState is the subscription state of a school at a given instant. It is always computed, never stored.
type OperatingState string

const (
	StateNotYetActive OperatingState = "not_yet_active"
	StateActive       OperatingState = "active"
	StateInGrace      OperatingState = "in_grace"
	StateExpired      OperatingState = "expired"
)

// Classify evaluates a subscription window at now. Rules are applied in order and the first match wins:
//  1. now is before start: not_yet_active.
//  2. end is unset or now is not after end: active.
//  3. graceEnd is set and now is not after graceEnd: in_grace.
//  4. otherwise: expired.
//
// A nil start is treated as already started. Boundaries are inclusive, so now == end is still active.
func Classify(now time.Time, start, end, graceEnd *time.Time) OperatingState {
	switch {
	case start != nil && now.Before(*start):
		return StateNotYetActive
	case end == nil || !now.After(*end):
		return StateActive
	case graceEnd != nil && !now.After(*graceEnd):
		return StateInGrace
	default:
		return StateExpired
	}
}

// Evaluation holds the display flags computed on every school read.
type Evaluation struct {
	OperatingState OperatingState `json:"operating_state"`
	IsExpired      bool           `json:"is_expired"`
	InGracePeriod  bool           `json:"in_grace_period"`
}

func Evaluate(school *data.School, now time.Time) Evaluation {
	state := Classify(now, school.SubscriptionStartDate, school.SubscriptionEndDate, school.GracePeriodEndDate)
	return Evaluation{
		OperatingState: state,
		IsExpired:      state == StateExpired,
		InGracePeriod:  state == StateInGrace,
	}
}
