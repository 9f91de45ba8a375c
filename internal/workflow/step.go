package workflow

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/nestcheck/internal/credential"
	"github.com/roach88/nestcheck/internal/store"
)

// Progress summarises a session's steps.
type Progress struct {
	Done       int
	Failed     int
	InProgress int
	Total      int
}

// Percent is the share of done steps, 0 to 100.
func (p Progress) Percent() float64 {
	if p.Total == 0 {
		return 0
	}
	return 100 * float64(p.Done) / float64(p.Total)
}

// Closed is the number of steps in a terminal status.
func (p Progress) Closed() int { return p.Done + p.Failed }

// checkTransition reports whether from -> to is allowed. Equal statuses are
// an annotation and always allowed.
func checkTransition(stepID int64, from, to store.StepStatus) error {
	if from == to {
		return nil
	}
	switch from {
	case store.StepPending:
		if to == store.StepInProgress || to.Terminal() {
			return nil
		}
	case store.StepInProgress:
		if to.Terminal() {
			return nil
		}
	}
	return &TransitionError{StepID: stepID, From: from, To: to}
}

// Begin moves a pending step to in_progress. Beginning a step that is already
// in progress returns it unchanged.
func (e *Engine) Begin(ctx context.Context, sc SessionContext, stepID int64) (*store.Step, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, err := e.sessionStep(ctx, sc, stepID)
	if err != nil {
		return nil, err
	}
	if st.Status == store.StepInProgress {
		return st, nil
	}
	return e.apply(ctx, st, store.StepChange{StepID: st.ID, NewStatus: store.StepInProgress}, statusLog(st, store.StepInProgress))
}

// Complete marks a step done. A non-empty note replaces the stored note.
func (e *Engine) Complete(ctx context.Context, sc SessionContext, stepID int64, note string) (*store.Step, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, err := e.sessionStep(ctx, sc, stepID)
	if err != nil {
		return nil, err
	}
	if st.Status == store.StepDone {
		return nil, &TransitionError{StepID: st.ID, From: st.Status, To: store.StepDone}
	}
	ch := store.StepChange{StepID: st.ID, NewStatus: store.StepDone}
	setNote(&ch, note)
	return e.apply(ctx, st, ch, statusLog(st, store.StepDone))
}

// Fail marks a step failed. Critical steps require a master grant; without
// one the result wraps credential.ErrGrantRequired and nothing is written.
// With one, the override and an AUDIT critical_override entry are recorded in
// the same transaction as the status change.
func (e *Engine) Fail(ctx context.Context, sc SessionContext, stepID int64, note string, grant *credential.Grant) (*store.Step, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, err := e.sessionStep(ctx, sc, stepID)
	if err != nil {
		return nil, err
	}
	if st.Status == store.StepFailed {
		return nil, &TransitionError{StepID: st.ID, From: st.Status, To: store.StepFailed}
	}

	ch := store.StepChange{StepID: st.ID, NewStatus: store.StepFailed}
	setNote(&ch, note)
	rec := statusLog(st, store.StepFailed)

	if st.Critical {
		if grant == nil || !grant.Is(credential.RoleMaster) {
			return nil, fmt.Errorf("fail critical step %d: %w", st.ID, credential.ErrGrantRequired)
		}
		ch.Override = &store.Override{MasterName: grant.Name()}
		rec = &store.LogRecord{
			Level:  store.LevelAudit,
			Action: "critical_override",
			Details: map[string]any{
				"master_name": grant.Name(),
				"block":       st.BlockIndex,
				"item":        st.ItemIndex,
				"from":        string(st.Status),
			},
		}
	}

	out, err := e.apply(ctx, st, ch, rec)
	if err != nil {
		return nil, err
	}
	if st.Critical {
		e.logger.Warn("critical step failed under override", "step_id", st.ID, "master", grant.Name())
	}
	return out, nil
}

// Annotate replaces a step's note without changing its status. An empty
// note clears it. Terminal steps can still be annotated.
func (e *Engine) Annotate(ctx context.Context, sc SessionContext, stepID int64, note string) (*store.Step, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, err := e.sessionStep(ctx, sc, stepID)
	if err != nil {
		return nil, err
	}
	ch := store.StepChange{StepID: st.ID, NewStatus: st.Status, SetNote: true, Note: cleanNote(note)}
	return e.apply(ctx, st, ch, nil)
}

// Steps returns the session's steps in checklist order.
func (e *Engine) Steps(ctx context.Context, sc SessionContext) ([]*store.Step, error) {
	return e.store.ListSteps(ctx, sc.SessionID)
}

// Step returns one step of the session.
func (e *Engine) Step(ctx context.Context, sc SessionContext, stepID int64) (*store.Step, error) {
	st, err := e.store.GetStep(ctx, stepID)
	if err != nil {
		return nil, err
	}
	if st.SessionID != sc.SessionID {
		return nil, &ValidationError{Field: "step", Message: fmt.Sprintf("step %d does not belong to session %d", stepID, sc.SessionID)}
	}
	return st, nil
}

// History returns the version trail of a step, oldest first.
func (e *Engine) History(ctx context.Context, sc SessionContext, stepID int64) ([]*store.StepVersion, error) {
	if _, err := e.Step(ctx, sc, stepID); err != nil {
		return nil, err
	}
	return e.store.ListStepVersions(ctx, stepID)
}

// Progress counts the session's steps by status.
func (e *Engine) Progress(ctx context.Context, sc SessionContext) (Progress, error) {
	return e.progress(ctx, sc)
}

func (e *Engine) progress(ctx context.Context, sc SessionContext) (Progress, error) {
	steps, err := e.store.ListSteps(ctx, sc.SessionID)
	if err != nil {
		return Progress{}, err
	}
	p := Progress{Total: len(steps)}
	for _, st := range steps {
		switch st.Status {
		case store.StepDone:
			p.Done++
		case store.StepFailed:
			p.Failed++
		case store.StepInProgress:
			p.InProgress++
		}
	}
	return p, nil
}

// sessionStep loads a step of an active session.
func (e *Engine) sessionStep(ctx context.Context, sc SessionContext, stepID int64) (*store.Step, error) {
	if _, err := e.activeSession(ctx, sc); err != nil {
		return nil, err
	}
	return e.Step(ctx, sc, stepID)
}

func (e *Engine) apply(ctx context.Context, cur *store.Step, ch store.StepChange, rec *store.LogRecord) (*store.Step, error) {
	if err := checkTransition(cur.ID, cur.Status, ch.NewStatus); err != nil {
		return nil, err
	}
	ch.Log = rec
	st, err := e.store.ApplyStepChange(ctx, ch)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("step updated", "step_id", st.ID, "from", cur.Status, "to", st.Status)
	return st, nil
}

func statusLog(st *store.Step, to store.StepStatus) *store.LogRecord {
	return &store.LogRecord{
		Level:  store.LevelInfo,
		Action: "step_status",
		Details: map[string]any{
			"block": st.BlockIndex,
			"item":  st.ItemIndex,
			"from":  string(st.Status),
			"to":    string(to),
		},
	}
}

func cleanNote(note string) string {
	return norm.NFC.String(strings.TrimSpace(note))
}

func setNote(ch *store.StepChange, note string) {
	if note = cleanNote(note); note != "" {
		ch.SetNote = true
		ch.Note = note
	}
}
