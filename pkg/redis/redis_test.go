package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"ImageLabelViewer/internal/entity"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (IRedis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewWithClient(client, time.Minute), mr
}

func TestScreenRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	screen := entity.Screen{
		ID:         "01HZX",
		UserID:     "user-1",
		State:      entity.ScreenLabelsShown,
		ImageRef:   "gallery/cat.jpg",
		Generation: 3,
		ResultText: "Label: Cat; Confidence: 0.91; Entity ID: /m/01yrx\n",
	}
	require.NoError(t, store.SaveScreen(ctx, screen))

	got, err := store.GetScreen(ctx, screen.ID)
	require.NoError(t, err)
	assert.Equal(t, screen, got)
}

func TestGetMissingScreen(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.GetScreen(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.GetImage(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestScreenExpiresWithImage(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveScreen(ctx, entity.Screen{ID: "s1"}))
	_, err := store.ReplaceImage(ctx, "s1", []byte{0xff, 0xd8}, func(*entity.Screen) error { return nil })
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = store.GetScreen(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.GetImage(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteScreenDropsEverything(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveScreen(ctx, entity.Screen{ID: "s1"}))
	_, err := store.ReplaceImage(ctx, "s1", []byte("img"), func(*entity.Screen) error { return nil })
	require.NoError(t, err)
	_, err = store.AcquireLabelLock(ctx, "s1", time.Minute)
	require.NoError(t, err)

	require.NoError(t, store.DeleteScreen(ctx, "s1"))

	assert.Empty(t, mr.Keys())
}

func TestLabelLockIsExclusive(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	ok, err := store.AcquireLabelLock(ctx, "s1", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.AcquireLabelLock(ctx, "s1", 10*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.ReleaseLabelLock(ctx, "s1"))
	ok, err = store.AcquireLabelLock(ctx, "s1", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(11 * time.Second)
	ok, err = store.AcquireLabelLock(ctx, "s1", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "stale lock should expire")
}

func TestReplaceImageKeepsScreenAndBytesTogether(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveScreen(ctx, entity.Screen{ID: "s1", Generation: 1}))

	updated, err := store.ReplaceImage(ctx, "s1", []byte("second"), func(s *entity.Screen) error {
		s.Generation++
		s.ImageRef = "gallery/dog.jpg"
		return nil
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, updated.Generation)

	screen, data, err := store.GetScreenImage(ctx, "s1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, screen.Generation)
	assert.Equal(t, "gallery/dog.jpg", screen.ImageRef)
	assert.Equal(t, []byte("second"), data)
}

func TestGetScreenImageWithoutImage(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveScreen(ctx, entity.Screen{ID: "s1"}))

	screen, data, err := store.GetScreenImage(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", screen.ID)
	assert.Nil(t, data)

	_, _, err = store.GetScreenImage(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateScreenRetriesOnConcurrentWrite(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveScreen(ctx, entity.Screen{ID: "s1", Generation: 1, State: entity.ScreenImageSelected}))

	calls := 0
	updated, err := store.UpdateScreen(ctx, "s1", func(s *entity.Screen) error {
		calls++
		if calls == 1 {
			// another writer lands between our read and our write
			require.NoError(t, store.SaveScreen(ctx, entity.Screen{ID: "s1", Generation: 2, State: entity.ScreenImageSelected}))
		}
		s.State = entity.ScreenLabeling
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
	assert.EqualValues(t, 2, updated.Generation)

	got, err := store.GetScreen(ctx, "s1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, got.Generation)
	assert.Equal(t, entity.ScreenLabeling, got.State)
}

func TestUpdateScreenAbort(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveScreen(ctx, entity.Screen{ID: "s1", Generation: 1}))

	stale := errors.New("stale generation")
	_, err := store.UpdateScreen(ctx, "s1", func(s *entity.Screen) error {
		s.Generation = 99
		return stale
	})
	assert.ErrorIs(t, err, stale)

	got, err := store.GetScreen(ctx, "s1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.Generation)

	_, err = store.UpdateScreen(ctx, "missing", func(*entity.Screen) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)
}
