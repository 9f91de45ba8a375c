package workflow

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/nestcheck/internal/store"
)

// SessionContext identifies the session an operation applies to.
type SessionContext struct {
	SessionID int64
}

// For returns the context of sess.
func For(sess *store.Session) SessionContext {
	return SessionContext{SessionID: sess.ID}
}

func cleanInput(field, s string) (string, error) {
	s = norm.NFC.String(strings.TrimSpace(s))
	if s == "" {
		return "", &ValidationError{Field: field, Message: "must not be blank"}
	}
	return s, nil
}

func validateStart(orderRef, operator string) (string, string, error) {
	operator, err := cleanInput("operator", operator)
	if err != nil {
		return "", "", err
	}
	orderRef, err = cleanInput("order", orderRef)
	if err != nil {
		return "", "", err
	}
	return orderRef, operator, nil
}

// Start creates a session for orderRef and seeds its steps. If a session is
// already active it returns *ActiveSessionError and changes nothing.
func (e *Engine) Start(ctx context.Context, orderRef, operator string) (*store.Session, error) {
	orderRef, operator, err := validateStart(orderRef, operator)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	active, err := e.store.ActiveSession(ctx)
	switch {
	case err == nil:
		return nil, &ActiveSessionError{Existing: active}
	case !store.IsNotFound(err):
		return nil, err
	}
	return e.create(ctx, orderRef, operator)
}

// StartReplacing archives the active session (if any) as abandoned and then
// starts a new one.
func (e *Engine) StartReplacing(ctx context.Context, orderRef, operator string) (*store.Session, error) {
	orderRef, operator, err := validateStart(orderRef, operator)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	active, err := e.store.ActiveSession(ctx)
	switch {
	case err == nil:
		if _, err := e.store.AbandonSession(ctx, active.ID, &store.LogRecord{
			Level:   store.LevelInfo,
			Action:  "session_archive",
			Details: map[string]any{"order_no": active.OrderNo, "replaced_by": orderRef},
		}); err != nil {
			return nil, err
		}
		e.logger.Info("session archived", "session_id", active.ID, "order_no", active.OrderNo)
	case !store.IsNotFound(err):
		return nil, err
	}
	return e.create(ctx, orderRef, operator)
}

func (e *Engine) create(ctx context.Context, orderRef, operator string) (*store.Session, error) {
	seeds := e.seeds()
	sess, err := e.store.CreateSession(ctx, orderRef, operator, seeds, &store.LogRecord{
		Level:  store.LevelInfo,
		Action: "session_create",
		Details: map[string]any{
			"order_no":          orderRef,
			"operator":          operator,
			"checklist_version": e.def.Version(),
			"steps":             len(seeds),
		},
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("session started", "session_id", sess.ID, "order_no", orderRef, "steps", len(seeds))
	return sess, nil
}

// Resume reopens an active session. Steps missing for the current checklist
// are seeded; existing steps are left untouched.
func (e *Engine) Resume(ctx context.Context, sessionID int64) (*store.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sess, err := e.activeSession(ctx, SessionContext{SessionID: sessionID})
	if err != nil {
		return nil, err
	}

	inserted, err := e.store.SeedSteps(ctx, sess.ID, e.seeds())
	if err != nil {
		return nil, err
	}
	e.record(ctx, store.LevelInfo, "session_resume", map[string]any{
		"session_id": sess.ID,
		"seeded":     inserted,
	})
	e.logger.Info("session resumed", "session_id", sess.ID, "seeded", inserted)
	return sess, nil
}

// Current returns the active session, or ErrNoActiveSession.
func (e *Engine) Current(ctx context.Context) (*store.Session, error) {
	sess, err := e.store.ActiveSession(ctx)
	if store.IsNotFound(err) {
		return nil, ErrNoActiveSession
	}
	return sess, err
}

// Finish marks the session completed. Finishing a session that is not active,
// including a second Finish, returns ErrNoActiveSession.
func (e *Engine) Finish(ctx context.Context, sc SessionContext) (*store.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.finish(ctx, sc)
}

func (e *Engine) finish(ctx context.Context, sc SessionContext) (*store.Session, error) {
	prog, err := e.progress(ctx, sc)
	if err != nil {
		return nil, err
	}
	sess, err := e.store.CompleteSession(ctx, sc.SessionID, &store.LogRecord{
		Level:  store.LevelInfo,
		Action: "session_finish",
		Details: map[string]any{
			"done":   prog.Done,
			"failed": prog.Failed,
			"total":  prog.Total,
		},
	})
	if store.IsNotFound(err) {
		return nil, fmt.Errorf("finish session %d: %w", sc.SessionID, ErrNoActiveSession)
	}
	if err != nil {
		return nil, err
	}
	e.logger.Info("session finished", "session_id", sess.ID, "done", prog.Done, "total", prog.Total)
	return sess, nil
}

func (e *Engine) activeSession(ctx context.Context, sc SessionContext) (*store.Session, error) {
	sess, err := e.store.GetSession(ctx, sc.SessionID)
	if store.IsNotFound(err) {
		return nil, fmt.Errorf("session %d: %w", sc.SessionID, ErrNoActiveSession)
	}
	if err != nil {
		return nil, err
	}
	if sess.Status != store.SessionActive {
		return nil, fmt.Errorf("session %d is %s: %w", sess.ID, sess.Status, ErrNoActiveSession)
	}
	return sess, nil
}
