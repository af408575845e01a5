// Package task is the File Operation Task engine: the state machine that
// orchestrates a copy/move/delete/archive-create/archive-extract
// operation, grounded on rclone's fs/sync (pairing/checking loop) and
// fs/operations (per-entry primitives), but built as an explicit state
// enum with a table of legal transitions, checked on every state change,
// rather than rclone's callback chains. Task.Run drives it with direct
// calls into the UI and Executor; there is no event type or event queue.
package task

import "fmt"

// State is one node of the Task state machine.
type State int

// The states a Task may be in. Idle is the zero value and the initial
// and final state of every Task.
const (
	Idle State = iota
	Validating
	AwaitingConfirmation
	Executing
	AwaitingConflictChoice
	AwaitingRename
	Finalizing
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Validating:
		return "Validating"
	case AwaitingConfirmation:
		return "AwaitingConfirmation"
	case Executing:
		return "Executing"
	case AwaitingConflictChoice:
		return "AwaitingConflictChoice"
	case AwaitingRename:
		return "AwaitingRename"
	case Finalizing:
		return "Finalizing"
	case Cancelled:
		return "Cancelled"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// edges enumerates every legal (from, to) transition per spec, keyed by
// the driver methods below. transition panics on any other pair so a
// programming error surfaces immediately instead of silently producing
// an untraceable state, satisfying the "observable state trace visits
// only states and edges" invariant by construction.
var edges = map[State]map[State]bool{
	Idle: {
		Validating: true,
	},
	Validating: {
		AwaitingConfirmation: true,
		Executing:            true,
		Idle:                 true,
	},
	AwaitingConfirmation: {
		Executing: true,
		Idle:      true,
	},
	Executing: {
		AwaitingConflictChoice: true,
		Cancelled:              true,
		Finalizing:             true,
	},
	AwaitingConflictChoice: {
		Executing:     true,
		AwaitingRename: true,
		Cancelled:      true,
	},
	AwaitingRename: {
		Executing: true,
		Cancelled: true,
	},
	Cancelled: {
		Finalizing: true,
	},
	Finalizing: {
		Idle: true,
	},
}

// transition moves cur to next, panicking if (cur, next) is not a legal
// edge. Kept unexported: all state mutation goes through the Task
// methods below, never through caller-supplied states.
func transition(cur, next State) State {
	if !edges[cur][next] {
		panic(fmt.Sprintf("task: illegal transition %s -> %s", cur, next))
	}
	return next
}

// Kind names which user-initiated operation a Task performs.
type Kind int

// The operation kinds a Task may perform.
const (
	KindCopy Kind = iota
	KindMove
	KindDelete
	KindArchiveCreate
	KindArchiveExtract
)

func (k Kind) String() string {
	switch k {
	case KindCopy:
		return "copy"
	case KindMove:
		return "move"
	case KindDelete:
		return "delete"
	case KindArchiveCreate:
		return "archive-create"
	case KindArchiveExtract:
		return "archive-extract"
	default:
		return "unknown"
	}
}

// ConflictPolicy is the "apply to all" modifier on a conflict choice,
// converted into a persistent policy for the remainder of the operation.
type ConflictPolicy int

// The supported apply-to-all policies. Rename cannot be applied to all.
const (
	PolicyNone ConflictPolicy = iota
	PolicyOverwriteAll
	PolicySkipAll
)

// ConflictChoice is the UI's answer to one AwaitingConflictChoice.
type ConflictChoice int

// The choices the UI may return for a conflict.
const (
	ChoiceOverwrite ConflictChoice = iota
	ChoiceSkip
	ChoiceRename
	ChoiceCancel
)

// Summary is the final, user-visible result of a Task, emitted exactly
// once as the task returns to Idle.
type Summary struct {
	Succeeded int
	Errors    int
	Skipped   int
	Cancelled bool
}
