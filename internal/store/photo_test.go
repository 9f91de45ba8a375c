package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddPhoto_ListInOrder(t *testing.T) {
	s, clock := createTestStore(t)
	ctx := context.Background()
	_, steps := createTestSession(t, s)

	p1, err := s.AddPhoto(ctx, steps[0].ID, "/photos/a.jpg", &LogRecord{Level: LevelInfo, Action: "photo_add"})
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Unix(), p1.AddedAt.Unix())

	_, err = s.AddPhoto(ctx, steps[0].ID, "/photos/b.jpg", nil)
	require.NoError(t, err)

	photos, err := s.ListPhotos(ctx, steps[0].ID)
	require.NoError(t, err)
	require.Len(t, photos, 2)
	assert.Equal(t, "/photos/a.jpg", photos[0].FilePath)
	assert.Equal(t, "/photos/b.jpg", photos[1].FilePath)

	logs, err := s.ListLogs(ctx, LogFilter{Action: "photo_add"})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, float64(steps[0].ID), logs[0].Details["step_id"])
}

func TestAddPhoto_UnknownStep(t *testing.T) {
	s, _ := createTestStore(t)

	_, err := s.AddPhoto(context.Background(), 999, "/photos/x.jpg", nil)
	require.Error(t, err)
	assert.True(t, IsStorageError(err))
}

func TestPhotosBySession(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()
	sess, steps := createTestSession(t, s)
	other, err := s.CreateSession(ctx, "ORD-2", "op", twoBlockSeeds(), nil)
	require.NoError(t, err)
	otherSteps, err := s.ListSteps(ctx, other.ID)
	require.NoError(t, err)

	_, err = s.AddPhoto(ctx, steps[0].ID, "a.jpg", nil)
	require.NoError(t, err)
	_, err = s.AddPhoto(ctx, steps[3].ID, "b.jpg", nil)
	require.NoError(t, err)
	_, err = s.AddPhoto(ctx, steps[3].ID, "c.jpg", nil)
	require.NoError(t, err)
	_, err = s.AddPhoto(ctx, otherSteps[0].ID, "other.jpg", nil)
	require.NoError(t, err)

	got, err := s.PhotosBySession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, map[int64][]string{
		steps[0].ID: {"a.jpg"},
		steps[3].ID: {"b.jpg", "c.jpg"},
	}, got)
}
