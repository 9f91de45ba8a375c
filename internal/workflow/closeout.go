package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/roach88/nestcheck/internal/checklist"
	"github.com/roach88/nestcheck/internal/credential"
	"github.com/roach88/nestcheck/internal/report"
	"github.com/roach88/nestcheck/internal/store"
)

// Mail texts.
const (
	ReportSubject = "CNC Checklist Report"
	TestSubject   = "Test CNC Checklist"
)

var errNoRenderer = errors.New("no report renderer configured")

// Closeout is the outcome of FinishAndReport.
type Closeout struct {
	Session *store.Session
	Report  *store.Report

	// Skipped lists photos left out of the document.
	Skipped []report.SkippedImage

	// Delivered is true when the document was e-mailed. DeliveryErr holds
	// the delivery failure; it never undoes the session or the report.
	Delivered   bool
	DeliveryErr error

	FinishMessage string
}

// FinishAndReport finishes the session, generates its report and, when
// e-mail is enabled, delivers it.
//
// A report failure is returned together with the Closeout; the session stays
// completed and the report can be generated again with GenerateReport.
func (e *Engine) FinishAndReport(ctx context.Context, sc SessionContext) (*Closeout, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sess, err := e.finish(ctx, sc)
	if err != nil {
		return nil, err
	}
	out := &Closeout{Session: sess, FinishMessage: e.finishMessage()}

	rep, res, err := e.generate(ctx, sess)
	if err != nil {
		return out, err
	}
	out.Report = rep
	out.Skipped = res.Skipped

	out.Delivered, out.DeliveryErr = e.deliver(ctx, sess, rep)
	return out, nil
}

func (e *Engine) finishMessage() string {
	if msg := e.def.FinishMessage(); msg != "" {
		return msg
	}
	return checklist.DefaultFinishMessage
}

// GenerateReport renders a new document for the session under the next
// report sequence number and registers it. Sessions in any status can be
// reported; each call produces a new Report row.
func (e *Engine) GenerateReport(ctx context.Context, sessionID int64) (*store.Report, *report.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sess, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	return e.generate(ctx, sess)
}

func (e *Engine) generate(ctx context.Context, sess *store.Session) (*store.Report, *report.Result, error) {
	if e.renderer == nil {
		return nil, nil, errNoRenderer
	}

	steps, err := e.store.ListSteps(ctx, sess.ID)
	if err != nil {
		return nil, nil, err
	}
	photos, err := e.store.PhotosBySession(ctx, sess.ID)
	if err != nil {
		return nil, nil, err
	}
	dir, err := e.SaveDir(ctx)
	if err != nil {
		return nil, nil, err
	}
	seq, err := e.store.NextReportSeq(ctx)
	if err != nil {
		return nil, nil, err
	}

	res, err := e.renderer.Generate(ctx, report.Request{
		Session:          sess,
		Steps:            steps,
		Photos:           photos,
		Dir:              dir,
		Seq:              seq,
		ChecklistVersion: e.def.Version(),
	})
	if err != nil {
		e.logger.Error("report generation failed", "session_id", sess.ID, "seq", seq, "error", err)
		e.record(ctx, store.LevelError, "pdf_generate", map[string]any{
			"session_id": sess.ID,
			"seq":        seq,
			"error":      err.Error(),
		})
		return nil, nil, err
	}

	for _, sk := range res.Skipped {
		e.record(ctx, store.LevelWarn, "photo_error", map[string]any{
			"session_id": sess.ID,
			"path":       sk.Path,
			"error":      sk.Err.Error(),
		})
	}

	rep, err := e.store.AddReport(ctx, sess.ID, seq, res.Path, &store.LogRecord{
		Level:   store.LevelInfo,
		Action:  "pdf_generate",
		Details: map[string]any{"pages": res.Pages, "skipped_photos": len(res.Skipped)},
	})
	if err != nil {
		if rmErr := os.Remove(res.Path); rmErr != nil {
			e.logger.Warn("could not remove unregistered report", "path", res.Path, "error", rmErr)
		}
		return nil, nil, err
	}
	e.logger.Info("report registered", "session_id", sess.ID, "seq", seq, "path", res.Path)
	return rep, res, nil
}

// Deliver e-mails a registered report when e-mail is enabled. It returns
// false and no error when delivery is switched off.
func (e *Engine) Deliver(ctx context.Context, rep *store.Report) (bool, error) {
	sess, err := e.store.GetSession(ctx, rep.SessionID)
	if err != nil {
		return false, err
	}
	return e.deliver(ctx, sess, rep)
}

func (e *Engine) deliver(ctx context.Context, sess *store.Session, rep *store.Report) (bool, error) {
	cfg, err := e.NotificationConfig(ctx)
	if err != nil {
		return false, err
	}
	if !cfg.Enabled {
		return false, nil
	}
	if e.notifier == nil {
		return false, errors.New("no e-mail transport configured")
	}

	body := fmt.Sprintf("Checklist report %04d for order %s is attached.", rep.Seq, sess.OrderNo)
	if err := e.notifier.Send(ctx, cfg, ReportSubject, body, rep.FilePath); err != nil {
		e.logger.Error("report delivery failed", "seq", rep.Seq, "error", err)
		e.record(ctx, store.LevelError, "email_send", map[string]any{
			"ok":    false,
			"seq":   rep.Seq,
			"error": err.Error(),
		})
		return false, err
	}

	e.record(ctx, store.LevelInfo, "email_send", map[string]any{
		"ok":   true,
		"seq":  rep.Seq,
		"file": rep.FilePath,
	})
	return true, nil
}

// TestEmail sends a message without attachment using the stored
// configuration, whether or not delivery is enabled.
func (e *Engine) TestEmail(ctx context.Context, admin credential.Grant) error {
	if err := requireAdmin("send test e-mail", admin); err != nil {
		return err
	}
	if e.notifier == nil {
		return errors.New("no e-mail transport configured")
	}
	cfg, err := e.NotificationConfig(ctx)
	if err != nil {
		return err
	}
	if err := e.notifier.Send(ctx, cfg, TestSubject, "E-mail delivery check.", ""); err != nil {
		e.record(ctx, store.LevelError, "email_send_test", map[string]any{"error": err.Error()})
		return err
	}
	e.record(ctx, store.LevelInfo, "email_send_test", map[string]any{"ok": true})
	return nil
}

// Reports lists generated reports, newest first, optionally filtered by an
// order number substring.
func (e *Engine) Reports(ctx context.Context, orderLike string) ([]*store.Report, error) {
	return e.store.ListReports(ctx, orderLike)
}
