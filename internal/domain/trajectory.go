package domain

import (
	"time"

	"github.com/google/uuid"
)

type StepType string

const (
	StepObservation StepType = "observation"
	StepReasoning   StepType = "reasoning"
	StepAction      StepType = "action"
	StepResult      StepType = "result"
	StepError       StepType = "error"
)

func ValidStepType(t string) bool {
	switch StepType(t) {
	case StepObservation, StepReasoning, StepAction, StepResult, StepError:
		return true
	}
	return false
}

// TrajectoryStep is one append-only entry in a session's execution log.
// Seq increases monotonically across the whole session, so interleaved steps
// from concurrent emitters can be reassembled into a total order; per-agent
// steps preserve their emission order.
type TrajectoryStep struct {
	SessionID uuid.UUID      `json:"session_id"`
	AgentName string         `json:"agent_name"`
	Seq       int            `json:"seq"`
	Type      StepType       `json:"type"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
