package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/nestcheck/internal/checklist"
	"github.com/roach88/nestcheck/internal/credential"
	"github.com/roach88/nestcheck/internal/notify"
	"github.com/roach88/nestcheck/internal/report"
	"github.com/roach88/nestcheck/internal/store"
	"github.com/roach88/nestcheck/internal/testutil"
)

const testChecklist = `
version: "2.1"
finish_message: "Milling approved."
blocks:
  - title: Material
    items:
      - text: Check sheet thickness
      - text: Verify material grade
        hint: See order card
  - title: Program
    items:
      - text: Run nesting simulation
        critical: true
      - text: Check part count
      - text: Export program
`

type testEnv struct {
	engine   *Engine
	store    *store.Store
	creds    *credential.Store
	clock    *testutil.FakeClock
	renderer *fakeRenderer
	notifier *fakeNotifier
	saveDir  string
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func createTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := testutil.NewFakeClock()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"), store.WithClock(clock))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	def, err := checklist.Parse([]byte(testChecklist))
	require.NoError(t, err)

	env := &testEnv{
		store:    st,
		creds:    credential.New(st, credential.WithLogger(discardLogger())),
		clock:    clock,
		renderer: &fakeRenderer{},
		notifier: &fakeNotifier{},
		saveDir:  filepath.Join(t.TempDir(), "reports"),
	}
	env.engine = New(st, def,
		WithRenderer(env.renderer),
		WithNotifier(env.notifier),
		WithLogger(discardLogger()),
		WithDefaultSaveDir(env.saveDir),
	)
	_, err = env.creds.EnsureDefaults(context.Background())
	require.NoError(t, err)
	return env
}

// start begins a session for ORD-1 and returns it with its steps.
func (env *testEnv) start(t *testing.T) (SessionContext, []*store.Step) {
	t.Helper()
	ctx := context.Background()
	sess, err := env.engine.Start(ctx, "ORD-1", "Petrov")
	require.NoError(t, err)
	sc := For(sess)
	steps, err := env.engine.Steps(ctx, sc)
	require.NoError(t, err)
	require.Len(t, steps, 5)
	return sc, steps
}

func (env *testEnv) grant(t *testing.T, role credential.Role, name string) credential.Grant {
	t.Helper()
	pin := credential.DefaultAdminPin
	if role == credential.RoleMaster {
		pin = credential.DefaultMasterPin
	}
	g, err := env.creds.Authorize(context.Background(), role, pin, name)
	require.NoError(t, err)
	return g
}

func (env *testEnv) logs(t *testing.T, action string) []*store.LogEntry {
	t.Helper()
	entries, err := env.store.ListLogs(context.Background(), store.LogFilter{Action: action})
	require.NoError(t, err)
	return entries
}

// fakeRenderer writes a small placeholder file per request.
type fakeRenderer struct {
	mu       sync.Mutex
	requests []report.Request
	err      error
}

func (r *fakeRenderer) Generate(_ context.Context, req report.Request) (*report.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	if r.err != nil {
		return nil, &report.RenderError{Stage: "write", Err: r.err}
	}
	if err := os.MkdirAll(req.Dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(req.Dir, fmt.Sprintf("report_%04d.pdf", req.Seq))
	if err := os.WriteFile(path, []byte("%PDF-1.3\n"), 0o644); err != nil {
		return nil, err
	}
	return &report.Result{Path: path, Pages: 1}, nil
}

type sentMail struct {
	cfg        notify.Config
	subject    string
	body       string
	attachment string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (n *fakeNotifier) Send(_ context.Context, cfg notify.Config, subject, body, attachment string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMail{cfg: cfg, subject: subject, body: body, attachment: attachment})
	return n.err
}

// fakeSource returns a fixed acquisition result.
type fakeSource struct {
	path string
	err  error
}

func (s fakeSource) Acquire(context.Context, int64) (string, error) {
	return s.path, s.err
}

var errBoom = errors.New("boom")
