package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/locked/internal/domain"
	"github.com/eliteGoblin/locked/internal/testutil"
)

func newTagSession(h *harness, reader *testutil.FakeTagReader) *TagSession {
	return NewTagSession(reader, h.locker, h.profiles, h.snooze, "", zap.NewNop())
}

func TestTagSession_TogglesLock(t *testing.T) {
	h := newHarness(t)
	h.blockProfile("X")
	tags := newTagSession(h, &testutil.FakeTagReader{Payload: DefaultTagPhrase})

	result, err := tags.Tap(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TapLocked, result)
	assert.True(t, h.locker.IsLocking())
	assert.True(t, h.locker.Session().HasUsedNFC)

	result, err = tags.Tap(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TapUnlocked, result)
	assert.False(t, h.locker.IsLocking())
}

func TestTagSession_WrongTag(t *testing.T) {
	h := newHarness(t)
	tags := newTagSession(h, &testutil.FakeTagReader{Payload: "someone else's tag"})

	result, err := tags.Tap(context.Background())

	assert.ErrorIs(t, err, domain.ErrWrongTag)
	assert.Equal(t, TapNoChange, result)
	assert.False(t, h.locker.IsLocking())
}

func TestTagSession_ScanFailure(t *testing.T) {
	h := newHarness(t)
	scanErr := errors.New("no tag in range")
	tags := newTagSession(h, &testutil.FakeTagReader{ScanErr: scanErr})

	_, err := tags.Tap(context.Background())

	assert.ErrorIs(t, err, scanErr)
	assert.NotErrorIs(t, err, domain.ErrWrongTag)
}

func TestTagSession_EndsSnooze(t *testing.T) {
	h := newHarness(t)
	h.blockProfile("X")
	h.lock()
	require.Equal(t, SnoozeStarted, h.snooze.StartSnooze(0))
	tags := newTagSession(h, &testutil.FakeTagReader{Payload: DefaultTagPhrase})

	result, err := tags.Tap(context.Background())

	require.NoError(t, err)
	assert.Equal(t, TapSnoozeEnded, result)
	assert.False(t, h.snooze.IsSnoozed())
	assert.True(t, h.locker.IsLocking())
}

func TestTagSession_Register(t *testing.T) {
	h := newHarness(t)
	reader := &testutil.FakeTagReader{}
	tags := NewTagSession(reader, h.locker, h.profiles, h.snooze, "MY-PHRASE", zap.NewNop())

	require.NoError(t, tags.Register(context.Background()))
	assert.Equal(t, []string{"MY-PHRASE"}, reader.Written)

	result, err := tags.Tap(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TapLocked, result)
}
