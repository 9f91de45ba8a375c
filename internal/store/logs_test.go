package store

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendLog_DefaultsToInfoAndEmptyDetails(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendLog(ctx, LogRecord{Action: "camera_error"}))

	logs, err := s.ListLogs(ctx, LogFilter{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, LevelInfo, logs[0].Level)
	assert.Equal(t, "camera_error", logs[0].Action)
	assert.Empty(t, logs[0].Details)
}

func TestListLogs_FilterAndOrder(t *testing.T) {
	s, clock := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendLog(ctx, LogRecord{Level: LevelInfo, Action: "a"}))
	clock.Advance(time.Second)
	require.NoError(t, s.AppendLog(ctx, LogRecord{Level: LevelAudit, Action: "b"}))
	clock.Advance(time.Second)
	require.NoError(t, s.AppendLog(ctx, LogRecord{Level: LevelInfo, Action: "c"}))

	all, err := s.ListLogs(ctx, LogFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].Action)
	assert.Equal(t, "a", all[2].Action)

	info, err := s.ListLogs(ctx, LogFilter{Level: LevelInfo})
	require.NoError(t, err)
	assert.Len(t, info, 2)

	limited, err := s.ListLogs(ctx, LogFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "c", limited[0].Action)
}

func TestAppendLog_UnmarshalableDetails(t *testing.T) {
	s, _ := createTestStore(t)

	err := s.AppendLog(context.Background(), LogRecord{
		Action:  "bad",
		Details: map[string]any{"ch": make(chan int)},
	})
	require.Error(t, err)
	assert.True(t, IsStorageError(err))
	assert.Equal(t, 0, countRows(t, s, "logs"))
}

func TestExportLogsCSV(t *testing.T) {
	s, clock := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendLog(ctx, LogRecord{Level: LevelInfo, Action: "session_create",
		Details: map[string]any{"order_no": "ORD;1"}}))
	clock.Advance(time.Minute)
	require.NoError(t, s.AppendLog(ctx, LogRecord{Level: LevelAudit, Action: "pin_change",
		Details: map[string]any{"role": "master"}}))

	var buf bytes.Buffer
	n, err := s.ExportLogsCSV(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "ts;level;action;details_json", lines[0])
	assert.Equal(t, `2024-03-01T09:01:00Z;AUDIT;pin_change;"{""role"":""master""}"`, lines[1])
	// Delimiter inside details is quoted
	assert.Equal(t, `2024-03-01T09:00:00Z;INFO;session_create;"{""order_no"":""ORD;1""}"`, lines[2])
}

func TestExportLogsCSV_Empty(t *testing.T) {
	s, _ := createTestStore(t)

	var buf bytes.Buffer
	n, err := s.ExportLogsCSV(context.Background(), &buf)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, "ts;level;action;details_json\n", buf.String())
}
