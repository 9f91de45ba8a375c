package workflow

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roach88/nestcheck/internal/checklist"
	"github.com/roach88/nestcheck/internal/notify"
	"github.com/roach88/nestcheck/internal/report"
	"github.com/roach88/nestcheck/internal/store"
)

// Renderer produces report documents. Implemented by *report.Pipeline.
type Renderer interface {
	Generate(ctx context.Context, req report.Request) (*report.Result, error)
}

// Notifier delivers a document. Implemented by *notify.SMTPSender.
type Notifier interface {
	Send(ctx context.Context, cfg notify.Config, subject, body, attachmentPath string) error
}

// Engine runs checklist sessions against a store.
//
// Thread-safety: all mutating methods serialise on an internal mutex, so the
// read-check-write of a transition or a session start cannot interleave.
type Engine struct {
	store    *store.Store
	def      *checklist.Definition
	renderer Renderer
	notifier Notifier
	logger   *slog.Logger

	defaultSaveDir string

	mu sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithRenderer sets the report renderer used at closeout.
func WithRenderer(r Renderer) Option {
	return func(e *Engine) { e.renderer = r }
}

// WithNotifier sets the e-mail transport used at closeout.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithLogger sets the process logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithDefaultSaveDir sets the report directory used while the save_dir
// setting is unset.
func WithDefaultSaveDir(dir string) Option {
	return func(e *Engine) { e.defaultSaveDir = dir }
}

// New creates an Engine seeding sessions from def.
func New(s *store.Store, def *checklist.Definition, opts ...Option) *Engine {
	e := &Engine{
		store:  s,
		def:    def,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Checklist returns the definition sessions are seeded from.
func (e *Engine) Checklist() *checklist.Definition { return e.def }

func (e *Engine) seeds() []store.StepSeed {
	seeds := make([]store.StepSeed, 0, e.def.NumItems())
	e.def.Walk(func(bi, ii int, item checklist.Item) {
		seeds = append(seeds, store.StepSeed{
			BlockIndex: bi,
			ItemIndex:  ii,
			Text:       item.Text,
			Hint:       item.Hint,
			Critical:   item.Critical,
		})
	})
	return seeds
}

// record appends an audit-stream entry outside any other write. A failure is
// logged and returned.
func (e *Engine) record(ctx context.Context, level store.LogLevel, action string, details map[string]any) error {
	err := e.store.AppendLog(ctx, store.LogRecord{Level: level, Action: action, Details: details})
	if err != nil {
		e.logger.Error("append log entry", "action", action, "error", err)
	}
	return err
}
