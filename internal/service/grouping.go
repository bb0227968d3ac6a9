package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/hearthlabs/kinship/internal/domain"
)

const agentGrouping = "family_grouping"

// FamilyGroupingEngine partitions a resolved batch into family groups by
// treating persons as nodes and relationships as undirected edges, then
// walking connected components. It is deterministic: components surface in
// first-seen order and members keep their input order.
type FamilyGroupingEngine struct {
	logger *zap.Logger
}

func NewFamilyGroupingEngine(logger *zap.Logger) *FamilyGroupingEngine {
	return &FamilyGroupingEngine{logger: logger}
}

// Group builds the relationship graph and returns one FamilyGroup per
// connected component. Persons are keyed by displayName within the batch; a
// relationship naming a person outside the batch aborts with GroupingError.
// Fully isolated persons without a surname land in an unassigned group
// instead of receiving a fabricated family key.
func (e *FamilyGroupingEngine) Group(ctx context.Context, rec *TrajectoryRecorder, persons []domain.ExtractedPerson, relationships []domain.ExtractedRelationship) ([]domain.FamilyGroup, error) {
	traj := rec.ForAgent(agentGrouping)
	traj.Observe(
		fmt.Sprintf("grouping %d persons across %d relationships", len(persons), len(relationships)),
		nil,
	)

	// Nodes keyed by displayName; a repeated name folds into its first node.
	nodes := make([]domain.ExtractedPerson, 0, len(persons))
	index := make(map[string]int, len(persons))
	for _, p := range persons {
		if _, ok := index[p.DisplayName]; ok {
			continue
		}
		index[p.DisplayName] = len(nodes)
		nodes = append(nodes, p)
	}

	adjacency := make(map[int][]int, len(nodes))
	connected := make([]bool, len(nodes))
	for _, rel := range relationships {
		a, ok := index[rel.PersonA]
		if !ok {
			return nil, e.unknownEndpoint(traj, rel.PersonA, rel)
		}
		b, ok := index[rel.PersonB]
		if !ok {
			return nil, e.unknownEndpoint(traj, rel.PersonB, rel)
		}
		connected[a] = true
		connected[b] = true
		if a == b {
			continue
		}
		adjacency[a] = append(adjacency[a], b)
		adjacency[b] = append(adjacency[b], a)
	}

	traj.Act(fmt.Sprintf("walking relationship graph with %d nodes", len(nodes)), nil)

	var groups []domain.FamilyGroup
	unassigned := 0
	visited := make([]bool, len(nodes))
	for start := range nodes {
		if visited[start] {
			continue
		}
		component := walkComponent(start, adjacency, visited)

		members := make([]domain.ExtractedPerson, len(component))
		names := make([]string, len(component))
		for i, idx := range component {
			members[i] = nodes[idx]
			names[i] = nodes[idx].DisplayName
		}

		if len(component) == 1 && !connected[component[0]] && members[0].EffectiveSurname() == "" {
			groups = append(groups, domain.FamilyGroup{
				Members:    names,
				Unassigned: true,
			})
			unassigned++
			continue
		}

		anchor := selectAnchor(members)
		groups = append(groups, domain.FamilyGroup{
			Surname:    domain.NormalizeCodeToken(anchor.EffectiveSurname()),
			Location:   domain.NormalizeCodeToken(anchor.Location),
			AnchorName: anchor.DisplayName,
			Members:    names,
		})
	}

	traj.Result(
		fmt.Sprintf("formed %d family groups (%d unassigned)", len(groups), unassigned),
		map[string]any{"groups": groupKeys(groups)},
	)
	e.logger.Debug("family grouping complete",
		zap.Int("persons", len(nodes)),
		zap.Int("groups", len(groups)),
		zap.Int("unassigned", unassigned))
	return groups, nil
}

func (e *FamilyGroupingEngine) unknownEndpoint(traj *AgentTrajectory, name string, rel domain.ExtractedRelationship) error {
	err := &domain.GroupingError{
		Reason: fmt.Sprintf("relationship %q between %q and %q names a person not in the batch",
			rel.Term, rel.PersonA, rel.PersonB),
	}
	traj.Error(fmt.Sprintf("unknown relationship endpoint %q", name), nil)
	e.logger.Warn("grouping aborted", zap.String("endpoint", name), zap.Error(err))
	return err
}

// walkComponent breadth-first collects the component containing start and
// returns its node indices in input order.
func walkComponent(start int, adjacency map[int][]int, visited []bool) []int {
	visited[start] = true
	queue := []int{start}
	var component []int
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		component = append(component, node)
		for _, next := range adjacency[node] {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	// BFS order depends on edge insertion; input order keeps groups stable.
	sort.Ints(component)
	return component
}

// selectAnchor picks the member whose identity seeds the family key: the
// speaker when present, otherwise the member with the most populated
// surname/location attributes, first-seen breaking ties.
func selectAnchor(members []domain.ExtractedPerson) domain.ExtractedPerson {
	for _, m := range members {
		if m.IsSpeaker {
			return m
		}
	}
	best := members[0]
	bestScore := attributeCount(best)
	for _, m := range members[1:] {
		if score := attributeCount(m); score > bestScore {
			best, bestScore = m, score
		}
	}
	return best
}

func attributeCount(p domain.ExtractedPerson) int {
	count := 0
	if p.EffectiveSurname() != "" {
		count++
	}
	if strings.TrimSpace(p.Location) != "" {
		count++
	}
	return count
}

func groupKeys(groups []domain.FamilyGroup) []string {
	keys := make([]string, 0, len(groups))
	for _, g := range groups {
		if g.Unassigned {
			keys = append(keys, "unassigned")
			continue
		}
		keys = append(keys, g.Surname+"-"+g.Location)
	}
	return keys
}
