package task

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/duofs/duofs/archivecache"
	"github.com/duofs/duofs/duoerr"
	"github.com/duofs/duofs/vpath"
)

// Task orchestrates one user-initiated operation through the state
// machine in machine.go. It owns no I/O itself: validation delegates to
// the vpath capability queries, execution delegates to an Executor, and
// every user-facing decision is a call back into a UI.
type Task struct {
	ID      string
	Kind    Kind
	Sources []vpath.Path
	Dest    vpath.Path
	DryRun  bool

	// Archive is the source archive's index, required for
	// KindArchiveExtract; ArchiveFormat is the requested format for
	// KindArchiveCreate (e.g. ".zip", ".tar.gz").
	Archive       *archivecache.Index
	ArchiveOpen   func(ctx context.Context, entry archivecache.Entry) (io.ReadCloser, error)
	ArchiveFormat string

	UI       UI
	Executor *Executor
	Sink     ProgressSink

	state      State
	policy     ConflictPolicy
	cancel     bool // user-requested cancellation
	fatalAbort bool // DiskSpaceExhausted or similar: abort, but not a user cancel
	summary    Summary
}

// stopping reports whether the executing loops should stop early, for
// either a user cancellation or a fatal per-entry error.
func (t *Task) stopping() bool { return t.cancel || t.fatalAbort }

// NewTask builds a Task with a fresh correlation ID.
func NewTask(kind Kind, sources []vpath.Path, dest vpath.Path, ui UI, ex *Executor) *Task {
	return &Task{
		ID:       uuid.NewString(),
		Kind:     kind,
		Sources:  sources,
		Dest:     dest,
		UI:       ui,
		Executor: ex,
		state:    Idle,
	}
}

// State returns the Task's current state, for observers (tests, a
// status bar) that want to assert on the trace without driving it.
func (t *Task) State() State { return t.state }

// RequestCancel sets the cancellation flag, consulted between entries;
// a file copy already in progress runs to completion.
func (t *Task) RequestCancel() { t.cancel = true }

// Run drives the Task from Idle to Idle, returning the final summary.
// It blocks for the duration of the operation; callers wanting the UI
// thread free run Run in a worker goroutine and marshal UI callback
// results back across, per spec.md's "background-thread errors marshal
// to the main thread before display".
func (t *Task) Run(ctx context.Context) (Summary, error) {
	t.state = transition(t.state, Validating)

	if err := t.validate(ctx); err != nil {
		t.UI.ShowValidationError(ctx, err)
		t.state = transition(t.state, Idle)
		return Summary{}, err
	}

	if t.needsConfirmation() {
		t.state = transition(t.state, AwaitingConfirmation)
		ok, err := t.UI.Confirm(ctx, t.Kind, len(t.Sources))
		if err != nil || !ok {
			t.state = transition(t.state, Idle)
			return Summary{}, err
		}
		t.state = transition(t.state, Executing)
	} else {
		t.state = transition(t.state, Executing)
	}

	switch t.Kind {
	case KindCopy, KindMove:
		t.runCopyOrMove(ctx)
	case KindDelete:
		t.runDelete(ctx)
	case KindArchiveCreate:
		t.runArchiveCreate(ctx)
	case KindArchiveExtract:
		t.runArchiveExtract(ctx)
	}

	if t.stopping() {
		t.state = transition(t.state, Cancelled)
		t.summary.Cancelled = t.cancel
		t.state = transition(t.state, Finalizing)
	} else {
		t.state = transition(t.state, Finalizing)
	}
	t.state = transition(t.state, Idle)
	return t.summary, nil
}

// needsConfirmation reports whether the operation must pause for
// AwaitingConfirmation before any I/O. DryRun operations skip the
// prompt: there is nothing destructive to confirm.
func (t *Task) needsConfirmation() bool {
	return !t.DryRun && t.Kind != KindArchiveExtract
}

func (t *Task) validate(ctx context.Context) error {
	switch t.Kind {
	case KindCopy:
		return t.validateSourcesExistAndDestWritable(ctx)
	case KindMove:
		for _, s := range t.Sources {
			if !s.SupportsWriteOperations() {
				return duoerr.New(duoerr.UnsupportedOperation, "validate", s.String(), nil)
			}
		}
		return t.validateSourcesExistAndDestWritable(ctx)
	case KindDelete:
		for _, s := range t.Sources {
			if !s.SupportsWriteOperations() {
				return duoerr.New(duoerr.UnsupportedOperation, "validate", s.String(), nil)
			}
		}
		return nil
	case KindArchiveCreate, KindArchiveExtract:
		if !t.Dest.SupportsWriteOperations() {
			return duoerr.New(duoerr.UnsupportedOperation, "validate", t.Dest.String(), nil)
		}
		return nil
	}
	return nil
}

func (t *Task) validateSourcesExistAndDestWritable(ctx context.Context) error {
	if !t.Dest.SupportsWriteOperations() {
		return duoerr.New(duoerr.UnsupportedOperation, "validate", t.Dest.String(), nil)
	}
	for _, s := range t.Sources {
		exists, err := s.Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			return duoerr.New(duoerr.NotFound, "validate", s.String(), nil)
		}
	}
	return nil
}

// runCopyOrMove enumerates sources, reports the total up front, then
// copies (and for move, deletes) each entry, pausing on conflicts.
func (t *Task) runCopyOrMove(ctx context.Context) {
	plans, err := t.Executor.Enumerate(ctx, t.Sources, t.Dest)
	if err != nil {
		t.summary.Errors++
		return
	}
	if t.Sink != nil {
		t.Sink.EntriesTotal(len(plans))
	}

	conflictsSeen := 0
	for _, plan := range plans {
		if t.stopping() {
			return
		}
		if err := ctx.Err(); err != nil {
			t.cancel = true
			return
		}

		if !plan.isDir {
			exists, _ := plan.dst.Exists(ctx)
			if exists && t.policy == PolicyNone {
				conflictsSeen++
				resolved, skip := t.resolveConflict(ctx, plan.dst, conflictsSeen)
				if t.stopping() {
					return
				}
				if skip {
					t.summary.Skipped++
					continue
				}
				plan.dst = resolved
			} else if exists && t.policy == PolicySkipAll {
				t.summary.Skipped++
				continue
			}
		}

		if t.DryRun {
			t.summary.Succeeded++
			continue
		}

		if err := t.Executor.CopyEntry(ctx, plan, t.Sink); err != nil {
			if duoerr.IsFatal(err) {
				t.fatalAbort = true
				return
			}
			t.summary.Errors++
			continue
		}
		t.summary.Succeeded++
	}

	if t.Kind == KindMove && !t.DryRun && !t.stopping() {
		t.deleteSourcesBottomUp(ctx, plans)
	}
}

// resolveConflict pauses Executing for AwaitingConflictChoice (and, on
// rename, AwaitingRename), returning the resolved destination path and
// whether the entry should instead be skipped.
func (t *Task) resolveConflict(ctx context.Context, dst vpath.Path, index int) (resolved vpath.Path, skip bool) {
	t.state = transition(t.state, AwaitingConflictChoice)
	choice, applyToAll, err := t.UI.ResolveConflict(ctx, Conflict{Destination: dst.String(), Index: index})
	if err != nil {
		t.cancel = true
		t.state = transition(t.state, Executing)
		return nil, true
	}
	switch choice {
	case ChoiceOverwrite:
		if applyToAll {
			t.policy = PolicyOverwriteAll
		}
		t.state = transition(t.state, Executing)
		return dst, false
	case ChoiceSkip:
		if applyToAll {
			t.policy = PolicySkipAll
		}
		t.state = transition(t.state, Executing)
		return nil, true
	case ChoiceRename:
		t.state = transition(t.state, AwaitingRename)
		name, ok, rerr := t.UI.ProvideRename(ctx, Conflict{Destination: dst.String(), Index: index})
		if rerr != nil || !ok {
			t.cancel = true
			t.state = transition(t.state, Executing)
			return nil, true
		}
		t.state = transition(t.state, Executing)
		return dst.Parent().Join(name), false
	default: // ChoiceCancel
		t.cancel = true
		t.state = transition(t.state, Executing)
		return nil, true
	}
}

func (t *Task) deleteSourcesBottomUp(ctx context.Context, plans []entryPlan) {
	for i := len(plans) - 1; i >= 0; i-- {
		if t.stopping() {
			return
		}
		p := plans[i]
		if err := t.Executor.DeleteEntry(ctx, p.src, p.isDir); err != nil {
			t.summary.Errors++
		}
	}
}

func (t *Task) runDelete(ctx context.Context) {
	if t.Sink != nil {
		t.Sink.EntriesTotal(len(t.Sources))
	}
	for _, s := range t.Sources {
		if t.stopping() {
			return
		}
		if t.DryRun {
			t.summary.Succeeded++
			continue
		}
		isDir, _ := s.IsDir(ctx)
		if err := t.Executor.DeleteEntry(ctx, s, isDir); err != nil {
			t.summary.Errors++
			continue
		}
		t.summary.Succeeded++
	}
}

func (t *Task) runArchiveCreate(ctx context.Context) {
	if t.stopping() {
		return
	}
	if t.DryRun {
		t.summary.Succeeded += len(t.Sources)
		return
	}
	err := t.Executor.CreateArchive(ctx, t.Sources, t.Dest, t.ArchiveFormat, t.Sink, t.stopping)
	if err != nil {
		if t.cancel || duoerr.As(err) == duoerr.Cancelled {
			return
		}
		if duoerr.IsFatal(err) {
			t.fatalAbort = true
			return
		}
		t.summary.Errors++
		return
	}
	t.summary.Succeeded += len(t.Sources)
}

func (t *Task) runArchiveExtract(ctx context.Context) {
	if t.Archive == nil {
		t.summary.Errors++
		return
	}
	if t.Sink != nil {
		t.Sink.EntriesTotal(len(t.Archive.Entries))
	}
	conflictsSeen := 0
	for _, entry := range t.Archive.Entries {
		if t.stopping() {
			return
		}
		dst := joinRel(t.Dest, entry.Path)
		if entry.Kind != vpath.KindDir {
			exists, _ := dst.Exists(ctx)
			if exists && t.policy == PolicyNone {
				conflictsSeen++
				resolved, skip := t.resolveConflict(ctx, dst, conflictsSeen)
				if t.stopping() {
					return
				}
				if skip {
					t.summary.Skipped++
					continue
				}
				dst = resolved
			} else if exists && t.policy == PolicySkipAll {
				t.summary.Skipped++
				continue
			}
		}

		if t.DryRun {
			t.summary.Succeeded++
			continue
		}

		var content io.ReadCloser
		var err error
		if entry.Kind != vpath.KindDir && t.ArchiveOpen != nil {
			content, err = t.ArchiveOpen(ctx, entry)
		}
		if err != nil {
			t.summary.Errors++
			continue
		}
		extractErr := t.Executor.ExtractArchiveEntry(ctx, entry, readerOrEmpty(content), dst)
		if content != nil {
			_ = content.Close()
		}
		if extractErr != nil {
			if duoerr.IsFatal(extractErr) {
				t.fatalAbort = true
				return
			}
			t.summary.Errors++
			continue
		}
		t.summary.Succeeded++
	}
}

func readerOrEmpty(r io.Reader) io.Reader {
	if r == nil {
		return io.MultiReader()
	}
	return r
}
