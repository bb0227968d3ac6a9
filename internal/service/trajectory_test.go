package service

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/hearthlabs/kinship/internal/domain"
)

func TestTrajectoryRecorder_SequenceIsMonotonic(t *testing.T) {
	rec := NewTrajectoryRecorder(uuid.New())

	resolver := rec.ForAgent("duplicate_resolver")
	grouping := rec.ForAgent("family_grouping")

	resolver.Observe("saw 3 candidates", nil)
	resolver.Reason("best score 0.97", nil)
	grouping.Act("walking graph", nil)
	resolver.Result("auto merge", map[string]any{"confidence": 0.97})
	grouping.Error("unknown endpoint", nil)

	steps := rec.Steps()
	if len(steps) != 5 {
		t.Fatalf("expected 5 steps, got %d", len(steps))
	}
	for i, step := range steps {
		if step.Seq != i+1 {
			t.Errorf("step %d has seq %d, want %d", i, step.Seq, i+1)
		}
		if step.SessionID != rec.SessionID() {
			t.Errorf("step %d has session %s, want %s", i, step.SessionID, rec.SessionID())
		}
	}

	wantTypes := []domain.StepType{
		domain.StepObservation,
		domain.StepReasoning,
		domain.StepAction,
		domain.StepResult,
		domain.StepError,
	}
	for i, want := range wantTypes {
		if steps[i].Type != want {
			t.Errorf("step %d type = %s, want %s", i, steps[i].Type, want)
		}
	}
}

func TestTrajectoryRecorder_NilSessionGetsFresh(t *testing.T) {
	rec := NewTrajectoryRecorder(uuid.Nil)
	if rec.SessionID() == uuid.Nil {
		t.Fatal("expected a generated session id")
	}
}

func TestTrajectoryRecorder_StepsForAgent(t *testing.T) {
	rec := NewTrajectoryRecorder(uuid.New())

	a := rec.ForAgent("a")
	b := rec.ForAgent("b")
	a.Observe("first", nil)
	b.Observe("other", nil)
	a.Result("second", nil)

	steps := rec.StepsForAgent("a")
	if len(steps) != 2 {
		t.Fatalf("expected 2 steps for agent a, got %d", len(steps))
	}
	if steps[0].Content != "first" || steps[1].Content != "second" {
		t.Fatalf("agent steps out of order: %q, %q", steps[0].Content, steps[1].Content)
	}
	if steps[0].Seq >= steps[1].Seq {
		t.Fatalf("per-agent seq not ascending: %d, %d", steps[0].Seq, steps[1].Seq)
	}
}

func TestTrajectoryRecorder_SnapshotDoesNotGrow(t *testing.T) {
	rec := NewTrajectoryRecorder(uuid.New())
	agent := rec.ForAgent("a")

	agent.Observe("one", nil)
	snap := rec.Steps()
	agent.Observe("two", nil)

	if len(snap) != 1 {
		t.Fatalf("snapshot grew after later appends: %d steps", len(snap))
	}
	if got := len(rec.Steps()); got != 2 {
		t.Fatalf("recorder should hold 2 steps, got %d", got)
	}
}

func TestTrajectoryRecorder_ConcurrentEmitters(t *testing.T) {
	rec := NewTrajectoryRecorder(uuid.New())

	const emitters = 8
	const perEmitter = 50

	var wg sync.WaitGroup
	for i := 0; i < emitters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			agent := rec.ForAgent(fmt.Sprintf("agent-%d", i))
			for j := 0; j < perEmitter; j++ {
				agent.Act(fmt.Sprintf("op-%d", j), nil)
			}
		}(i)
	}
	wg.Wait()

	steps := rec.Steps()
	if len(steps) != emitters*perEmitter {
		t.Fatalf("expected %d steps, got %d", emitters*perEmitter, len(steps))
	}

	seen := make(map[int]bool, len(steps))
	for _, step := range steps {
		if step.Seq < 1 || step.Seq > len(steps) {
			t.Fatalf("seq %d out of range", step.Seq)
		}
		if seen[step.Seq] {
			t.Fatalf("duplicate seq %d", step.Seq)
		}
		seen[step.Seq] = true
	}

	// each agent's own steps keep emission order
	for i := 0; i < emitters; i++ {
		agentSteps := rec.StepsForAgent(fmt.Sprintf("agent-%d", i))
		if len(agentSteps) != perEmitter {
			t.Fatalf("agent %d has %d steps, want %d", i, len(agentSteps), perEmitter)
		}
		for j := 1; j < len(agentSteps); j++ {
			if agentSteps[j].Seq <= agentSteps[j-1].Seq {
				t.Fatalf("agent %d steps out of order at %d", i, j)
			}
			if agentSteps[j].Content != fmt.Sprintf("op-%d", j) {
				t.Fatalf("agent %d content out of order: got %q at %d", i, agentSteps[j].Content, j)
			}
		}
	}
}
