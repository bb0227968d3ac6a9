package service

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hearthlabs/kinship/internal/domain"
)

// TrajectoryRecorder is the append-only execution log for one pipeline run.
// Components share a single recorder by reference and may emit steps
// concurrently; sequence numbers are monotonic across all emitters.
type TrajectoryRecorder struct {
	sessionID uuid.UUID

	mu    sync.Mutex
	seq   int
	steps []domain.TrajectoryStep
}

// NewTrajectoryRecorder creates a recorder scoped to the given session. A nil
// session id gets a fresh one.
func NewTrajectoryRecorder(sessionID uuid.UUID) *TrajectoryRecorder {
	if sessionID == uuid.Nil {
		sessionID = uuid.New()
	}
	return &TrajectoryRecorder{sessionID: sessionID}
}

func (r *TrajectoryRecorder) SessionID() uuid.UUID {
	return r.sessionID
}

// ForAgent returns an emitter that stamps every step with the agent's name.
func (r *TrajectoryRecorder) ForAgent(agentName string) *AgentTrajectory {
	return &AgentTrajectory{rec: r, agent: agentName}
}

// Steps returns a snapshot of all steps recorded so far, in emission order.
func (r *TrajectoryRecorder) Steps() []domain.TrajectoryStep {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.TrajectoryStep, len(r.steps))
	copy(out, r.steps)
	return out
}

// StepsForAgent returns a snapshot of the steps one agent emitted, preserving
// their relative order.
func (r *TrajectoryRecorder) StepsForAgent(agentName string) []domain.TrajectoryStep {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TrajectoryStep
	for _, step := range r.steps {
		if step.AgentName == agentName {
			out = append(out, step)
		}
	}
	return out
}

func (r *TrajectoryRecorder) append(agent string, stepType domain.StepType, content string, metadata map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.steps = append(r.steps, domain.TrajectoryStep{
		SessionID: r.sessionID,
		AgentName: agent,
		Seq:       r.seq,
		Type:      stepType,
		Content:   content,
		Metadata:  metadata,
		Timestamp: time.Now().UTC(),
	})
}

// AgentTrajectory emits steps on behalf of a single named agent.
type AgentTrajectory struct {
	rec   *TrajectoryRecorder
	agent string
}

// Observe records something the agent noticed about its input.
func (t *AgentTrajectory) Observe(content string, metadata map[string]any) {
	t.rec.append(t.agent, domain.StepObservation, content, metadata)
}

// Reason records the agent's decision rationale.
func (t *AgentTrajectory) Reason(content string, metadata map[string]any) {
	t.rec.append(t.agent, domain.StepReasoning, content, metadata)
}

// Act records an operation the agent is about to perform.
func (t *AgentTrajectory) Act(content string, metadata map[string]any) {
	t.rec.append(t.agent, domain.StepAction, content, metadata)
}

// Result records the outcome of an operation.
func (t *AgentTrajectory) Result(content string, metadata map[string]any) {
	t.rec.append(t.agent, domain.StepResult, content, metadata)
}

// Error records a failure the agent encountered.
func (t *AgentTrajectory) Error(content string, metadata map[string]any) {
	t.rec.append(t.agent, domain.StepError, content, metadata)
}
