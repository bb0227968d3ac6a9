package service

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/hearthlabs/kinship/internal/domain"
)

// summarize renders the one-line outcome stamped onto every PipelineResult.
func summarize(res *domain.PipelineResult) string {
	if res.FatalError != "" {
		return fmt.Sprintf("run aborted in state %s: %s", res.State, res.FatalError)
	}

	line := fmt.Sprintf("created %d families, added %d persons, merged %d duplicates, linked %d relationships",
		res.Storage.FamiliesCreated,
		res.Storage.PersonsCreated,
		res.Storage.PersonsMerged,
		res.Storage.RelationshipsCreated)
	if n := len(res.Storage.Errors); n > 0 {
		line += fmt.Sprintf(", %d storage errors", n)
	}
	if n := len(res.Warnings); n > 0 {
		line += fmt.Sprintf(", %d warnings", n)
	}
	if res.Cancelled {
		line = "cancelled: " + line
	}
	return line
}

// FormatSessionReport renders a session's trajectory as indented text, one
// block per agent in order of first appearance, steps in emission order.
func FormatSessionReport(sessionID uuid.UUID, steps []domain.TrajectoryStep) string {
	var b strings.Builder
	fmt.Fprintf(&b, "session %s: %d steps\n", sessionID, len(steps))

	for _, agent := range agentOrder(steps) {
		fmt.Fprintf(&b, "\n[%s]\n", agent)
		for _, step := range steps {
			if step.AgentName != agent {
				continue
			}
			fmt.Fprintf(&b, "  %3d  %-11s  %s\n", step.Seq, step.Type, step.Content)
		}
	}
	return b.String()
}

func agentOrder(steps []domain.TrajectoryStep) []string {
	seen := make(map[string]struct{})
	var order []string
	for _, step := range steps {
		if _, ok := seen[step.AgentName]; ok {
			continue
		}
		seen[step.AgentName] = struct{}{}
		order = append(order, step.AgentName)
	}
	return order
}
