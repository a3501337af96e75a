package history

import (
	"time"

	"github.com/lgtm-migrator/dtel/internal/session"
)

// Common filtering inputs.

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// SummaryRequest requests aggregated call metrics over a window.

type SummaryRequest struct {
	Range TimeRange `json:"range"`
}

type Summary struct {
	TotalCalls       int `json:"total_calls"`
	ConnectedCalls   int `json:"connected_calls"`
	MissedCalls      int `json:"missed_calls"`
	SystemEndedCalls int `json:"system_ended_calls"`
	ActiveCalls      int `json:"active_calls"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`
}

// CallDetail is one call's record with derived fields the ops UI shows.

type CallDetail struct {
	Record session.Record `json:"record"`

	Status          session.Status `json:"status"`
	DurationSeconds int            `json:"duration_seconds"`
	MessageCount    int            `json:"message_count"`
}
