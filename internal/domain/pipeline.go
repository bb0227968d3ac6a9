package domain

import (
	"github.com/google/uuid"
)

type PipelineState string

const (
	StateIdle         PipelineState = "idle"
	StateExtracted    PipelineState = "extracted"
	StateDeduplicated PipelineState = "deduplicated"
	StateGrouped      PipelineState = "grouped"
	StatePersisted    PipelineState = "persisted"
	StateDone         PipelineState = "done"

	StateAbortedAtDedup       PipelineState = "aborted_at_dedup"
	StateAbortedAtGrouping    PipelineState = "aborted_at_grouping"
	StateAbortedAtPersistence PipelineState = "aborted_at_persistence"
)

// Terminal reports whether no further transition is allowed from s.
func (s PipelineState) Terminal() bool {
	switch s {
	case StateDone, StateAbortedAtDedup, StateAbortedAtGrouping, StateAbortedAtPersistence:
		return true
	}
	return false
}

// CanTransition reports whether from → to is a legal pipeline transition.
// Forward progress is strictly linear; each in-progress state may also abort
// to the terminal state named after the stage that failed.
func CanTransition(from, to PipelineState) bool {
	switch from {
	case StateIdle:
		return to == StateExtracted
	case StateExtracted:
		return to == StateDeduplicated || to == StateAbortedAtDedup
	case StateDeduplicated:
		return to == StateGrouped || to == StateAbortedAtGrouping
	case StateGrouped:
		return to == StatePersisted || to == StateAbortedAtPersistence
	case StatePersisted:
		return to == StateDone
	}
	return false
}

// ExtractionResult is the batch the pipeline consumes: extraction itself is
// external, the orchestrator takes this as given.
type ExtractionResult struct {
	Persons       []ExtractedPerson       `json:"persons"`
	Relationships []ExtractedRelationship `json:"relationships"`
	SpeakerName   string                  `json:"speaker_name,omitempty"`
	RawText       string                  `json:"raw_text,omitempty"`
}

// StorageOutcome aggregates what the persistence stage wrote. Errors holds
// per-item write failures that did not abort sibling writes.
type StorageOutcome struct {
	FamiliesCreated      int      `json:"families_created"`
	PersonsCreated       int      `json:"persons_created"`
	PersonsMerged        int      `json:"persons_merged"`
	RelationshipsCreated int      `json:"relationships_created"`
	Errors               []string `json:"errors,omitempty"`
}

// PipelineResult is the sole externally visible artifact of a run. Success
// means the run reached StateDone with no fatal error; Warnings is populated
// even on success and is distinct from Storage.Errors.
type PipelineResult struct {
	SessionID  uuid.UUID        `json:"session_id"`
	Success    bool             `json:"success"`
	State      PipelineState    `json:"state"`
	Cancelled  bool             `json:"cancelled,omitempty"`
	Decisions  []PersonDecision `json:"decisions"`
	Groups     []FamilyGroup    `json:"groups"`
	Storage    StorageOutcome   `json:"storage"`
	Warnings   []string         `json:"warnings,omitempty"`
	Trajectory []TrajectoryStep `json:"trajectory,omitempty"`
	FatalError string           `json:"fatal_error,omitempty"`
	Summary    string           `json:"summary,omitempty"`
}
