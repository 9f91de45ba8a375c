package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nestcheck/internal/store"
)

func TestStart_SeedsSteps(t *testing.T) {
	env := createTestEnv(t)
	sc, steps := env.start(t)

	seen := map[[2]int]bool{}
	for _, st := range steps {
		assert.Equal(t, sc.SessionID, st.SessionID)
		assert.Equal(t, store.StepPending, st.Status)
		key := [2]int{st.BlockIndex, st.ItemIndex}
		assert.False(t, seen[key], "duplicate step %v", key)
		seen[key] = true
	}
	assert.True(t, steps[2].Critical)
	assert.Equal(t, "See order card", steps[1].Hint)

	logs := env.logs(t, "session_create")
	require.Len(t, logs, 1)
	assert.Equal(t, "ORD-1", logs[0].Details["order_no"])
	assert.Equal(t, "2.1", logs[0].Details["checklist_version"])
}

func TestStart_Validation(t *testing.T) {
	env := createTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name, order, operator, field string
	}{
		{"blank operator", "ORD-1", "  ", "operator"},
		{"blank order", "", "Petrov", "order"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.engine.Start(ctx, tt.order, tt.operator)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}

	sessions, err := env.store.ListSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestStart_NormalisesInput(t *testing.T) {
	env := createTestEnv(t)
	sess, err := env.engine.Start(context.Background(), "  ORD-7 ", "Se\u0301nchez")
	require.NoError(t, err)
	assert.Equal(t, "ORD-7", sess.OrderNo)
	assert.Equal(t, "S\u00e9nchez", sess.OperatorName)
}

func TestStart_RejectsSecondActiveSession(t *testing.T) {
	env := createTestEnv(t)
	sc, _ := env.start(t)

	_, err := env.engine.Start(context.Background(), "ORD-2", "Sidorov")
	var ae *ActiveSessionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, sc.SessionID, ae.Existing.ID)

	sessions, err := env.store.ListSessions(context.Background())
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestStartReplacing_ArchivesActive(t *testing.T) {
	env := createTestEnv(t)
	ctx := context.Background()
	old, _ := env.start(t)

	sess, err := env.engine.StartReplacing(ctx, "ORD-2", "Sidorov")
	require.NoError(t, err)
	assert.NotEqual(t, old.SessionID, sess.ID)
	assert.Equal(t, store.SessionActive, sess.Status)

	prev, err := env.store.GetSession(ctx, old.SessionID)
	require.NoError(t, err)
	assert.Equal(t, store.SessionAbandoned, prev.Status)

	cur, err := env.engine.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, cur.ID)

	assert.Len(t, env.logs(t, "session_archive"), 1)
}

func TestStartReplacing_WithoutActive(t *testing.T) {
	env := createTestEnv(t)
	sess, err := env.engine.StartReplacing(context.Background(), "ORD-1", "Petrov")
	require.NoError(t, err)
	assert.Equal(t, store.SessionActive, sess.Status)
	assert.Empty(t, env.logs(t, "session_archive"))
}

func TestResume(t *testing.T) {
	env := createTestEnv(t)
	ctx := context.Background()
	sc, steps := env.start(t)

	_, err := env.engine.Complete(ctx, sc, steps[0].ID, "")
	require.NoError(t, err)

	sess, err := env.engine.Resume(ctx, sc.SessionID)
	require.NoError(t, err)
	assert.Equal(t, sc.SessionID, sess.ID)

	after, err := env.engine.Steps(ctx, sc)
	require.NoError(t, err)
	require.Len(t, after, 5)
	assert.Equal(t, store.StepDone, after[0].Status)

	logs := env.logs(t, "session_resume")
	require.Len(t, logs, 1)
	assert.EqualValues(t, 0, logs[0].Details["seeded"])
}

func TestResume_ClosedSession(t *testing.T) {
	env := createTestEnv(t)
	ctx := context.Background()
	sc, _ := env.start(t)
	_, err := env.engine.Finish(ctx, sc)
	require.NoError(t, err)

	_, err = env.engine.Resume(ctx, sc.SessionID)
	assert.ErrorIs(t, err, ErrNoActiveSession)

	_, err = env.engine.Resume(ctx, 999)
	assert.ErrorIs(t, err, ErrNoActiveSession)
}

func TestCurrent_None(t *testing.T) {
	env := createTestEnv(t)
	_, err := env.engine.Current(context.Background())
	assert.ErrorIs(t, err, ErrNoActiveSession)
}

func TestFinish(t *testing.T) {
	env := createTestEnv(t)
	ctx := context.Background()
	sc, _ := env.start(t)
	env.clock.Advance(90 * time.Second)

	sess, err := env.engine.Finish(ctx, sc)
	require.NoError(t, err)
	assert.Equal(t, store.SessionCompleted, sess.Status)
	require.NotNil(t, sess.CompletedAt)
	assert.True(t, sess.CompletedAt.Equal(env.clock.Now()))

	_, err = env.engine.Finish(ctx, sc)
	assert.ErrorIs(t, err, ErrNoActiveSession)

	logs := env.logs(t, "session_finish")
	require.Len(t, logs, 1)
	assert.EqualValues(t, 5, logs[0].Details["total"])
}
