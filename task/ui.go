package task

import (
	"context"
	"io"

	"github.com/duofs/duofs/archivecache"
	"github.com/duofs/duofs/vpath"
)

// Conflict describes one destination path that already exists, surfaced
// to the UI while Executing is paused in AwaitingConflictChoice. Index
// counts the conflicts met so far in the walk, starting at 1. Task does
// not fill in KnownTotal; it is always zero.
type Conflict struct {
	Destination string
	Index       int
	KnownTotal  int
}

// UI is the dialog surface a Task calls back into. It performs no I/O of
// its own; every method returns promptly with the user's answer (a real
// frontend blocks its own event loop while waiting on the user, not the
// Task). No concrete dialog implementation ships in core, per spec.md.
type UI interface {
	// Confirm asks the user to proceed with op across entryCount
	// entries. Returning false aborts to Idle without any I/O.
	Confirm(ctx context.Context, kind Kind, entryCount int) (bool, error)
	// ResolveConflict asks how to handle one conflicting destination.
	ResolveConflict(ctx context.Context, c Conflict) (choice ConflictChoice, applyToAll bool, err error)
	// ProvideRename asks for a replacement leaf name for c, used only
	// after ChoiceRename. ok is false if the user cancels instead.
	ProvideRename(ctx context.Context, c Conflict) (name string, ok bool, err error)
	// ShowValidationError surfaces a single informational dialog for a
	// validation failure that aborted the task before any I/O.
	ShowValidationError(ctx context.Context, err error)
}

// Dispatcher enforces "only one Task at a time may be in a non-Idle
// state", matching spec.md §5's single-flight rule.
type Dispatcher struct {
	active *Task
}

// ErrAnotherTaskActive is returned by Dispatcher.Start when a Task is
// already running.
var ErrAnotherTaskActive = errAnotherTaskActive{}

type errAnotherTaskActive struct{}

func (errAnotherTaskActive) Error() string { return "task: another task is already active" }

// Start runs t to completion, rejecting the call if another task is
// already active. The caller's goroutine blocks for the duration of t's
// driver loop; callers wanting concurrency run Start in their own
// goroutine.
func (d *Dispatcher) Start(ctx context.Context, t *Task) (Summary, error) {
	if d.active != nil && d.active.state != Idle {
		return Summary{}, ErrAnotherTaskActive
	}
	d.active = t
	defer func() { d.active = nil }()
	return t.Run(ctx)
}

// legacyPolicy maps a legacy single overwrite bool onto the ConflictPolicy
// spec.md's "apply to all" modifier introduced, so an old caller's
// true/false still expresses its intent for every conflict the task hits
// rather than losing it entirely.
func legacyPolicy(overwrite bool) ConflictPolicy {
	if overwrite {
		return PolicyOverwriteAll
	}
	return PolicySkipAll
}

// CopySelected builds the Task for a copy of sources into dest. overwrite
// is the legacy single-flag conflict policy a caller that predates the
// per-conflict dialog supplies: true overwrites every conflicting
// destination and false skips every one, both without prompting.
func CopySelected(sources []vpath.Path, dest vpath.Path, overwrite bool, ui UI, ex *Executor) *Task {
	t := NewTask(KindCopy, sources, dest, ui, ex)
	t.policy = legacyPolicy(overwrite)
	return t
}

// MoveSelected builds the Task for a move of sources into dest: every
// entry is copied to dest and the sources are then deleted bottom-up,
// whatever the schemes. The Task never calls Path.MoveTo, so no native
// rename is attempted.
func MoveSelected(sources []vpath.Path, dest vpath.Path, overwrite bool, ui UI, ex *Executor) *Task {
	t := NewTask(KindMove, sources, dest, ui, ex)
	t.policy = legacyPolicy(overwrite)
	return t
}

// DeleteSelected builds the Task that deletes sources outright; delete has
// no destination and so no conflict policy to seed.
func DeleteSelected(sources []vpath.Path, ui UI, ex *Executor) *Task {
	return NewTask(KindDelete, sources, nil, ui, ex)
}

// CreateArchive builds the Task that writes sources into a single archive
// at dest in the given format (e.g. ".zip", ".tar.gz").
func CreateArchive(sources []vpath.Path, dest vpath.Path, format string, ui UI, ex *Executor) *Task {
	t := NewTask(KindArchiveCreate, sources, dest, ui, ex)
	t.ArchiveFormat = format
	return t
}

// ExtractArchive builds the Task that extracts every entry of archive into
// dest, opening each entry's content through open. Per spec.md §4.4.5, the
// legacy overwrite flag maps onto overwrite_all/skip_all the same way a
// copy or move's does.
func ExtractArchive(archive *archivecache.Index, open func(ctx context.Context, entry archivecache.Entry) (io.ReadCloser, error), dest vpath.Path, overwrite bool, ui UI, ex *Executor) *Task {
	t := NewTask(KindArchiveExtract, nil, dest, ui, ex)
	t.Archive = archive
	t.ArchiveOpen = open
	t.policy = legacyPolicy(overwrite)
	return t
}
