package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/nestcheck/internal/testutil"
)

// createTestStore creates a new store in a temp directory driven by a fake clock.
func createTestStore(t *testing.T) (*Store, *testutil.FakeClock) {
	t.Helper()
	clock := testutil.NewFakeClock()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithClock(clock))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, clock
}

// twoBlockSeeds returns 2 blocks with 2 and 3 items; item (1,0) is critical.
func twoBlockSeeds() []StepSeed {
	return []StepSeed{
		{BlockIndex: 0, ItemIndex: 0, Text: "Check sheet thickness"},
		{BlockIndex: 0, ItemIndex: 1, Text: "Verify material grade", Hint: "See order card"},
		{BlockIndex: 1, ItemIndex: 0, Text: "Run nesting simulation", Critical: true},
		{BlockIndex: 1, ItemIndex: 1, Text: "Check part count"},
		{BlockIndex: 1, ItemIndex: 2, Text: "Export program"},
	}
}

// createTestSession creates an active session seeded with twoBlockSeeds.
func createTestSession(t *testing.T, s *Store) (*Session, []*Step) {
	t.Helper()
	ctx := context.Background()
	sess, err := s.CreateSession(ctx, "ORD-1", "Petrov", twoBlockSeeds(), nil)
	if err != nil {
		t.Fatalf("CreateSession() failed: %v", err)
	}
	steps, err := s.ListSteps(ctx, sess.ID)
	if err != nil {
		t.Fatalf("ListSteps() failed: %v", err)
	}
	return sess, steps
}

func countRows(t *testing.T, s *Store, table string) int {
	t.Helper()
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}
