package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/eliteGoblin/locked/internal/domain"
)

// DefaultTagPhrase is the payload written to registered tags.
const DefaultTagPhrase = "LOCKED-IS-GREAT"

// TapResult is what a successful tag tap did.
type TapResult int

const (
	TapNoChange TapResult = iota
	TapLocked
	TapUnlocked
	TapSnoozeEnded
)

func (r TapResult) String() string {
	switch r {
	case TapLocked:
		return "locked"
	case TapUnlocked:
		return "unlocked"
	case TapSnoozeEnded:
		return "snooze_ended"
	}
	return "no_change"
}

// SnoozeCanceller ends a running snooze.
type SnoozeCanceller interface {
	IsSnoozed() bool
	EndSnooze() bool
}

// TagSession toggles the lock with a physical token.
type TagSession struct {
	reader   domain.TagReader
	locker   *Locker
	profiles ProfileSource
	snooze   SnoozeCanceller
	phrase   string
	logger   *zap.Logger
}

func NewTagSession(reader domain.TagReader, locker *Locker, profiles ProfileSource, snooze SnoozeCanceller, phrase string, logger *zap.Logger) *TagSession {
	if phrase == "" {
		phrase = DefaultTagPhrase
	}
	return &TagSession{
		reader:   reader,
		locker:   locker,
		profiles: profiles,
		snooze:   snooze,
		phrase:   phrase,
		logger:   logger,
	}
}

// Tap scans a tag and toggles the lock. A foreign tag returns domain.ErrWrongTag.
// Tapping during a snooze ends the snooze, which re-locks.
func (t *TagSession) Tap(ctx context.Context) (TapResult, error) {
	payload, err := t.reader.Scan(ctx)
	if err != nil {
		return TapNoChange, fmt.Errorf("failed to scan tag: %w", err)
	}
	if payload != t.phrase {
		t.logger.Info("wrong tag presented")
		return TapNoChange, domain.ErrWrongTag
	}

	if t.snooze != nil && t.snooze.IsSnoozed() {
		if t.snooze.EndSnooze() {
			return TapSnoozeEnded, nil
		}
		return TapNoChange, nil
	}

	p, ok := t.profiles.Current()
	if !ok {
		return TapNoChange, domain.ErrProfileNotFound
	}
	if t.locker.IsLocking() {
		if t.locker.EndSession(p) {
			return TapUnlocked, nil
		}
		return TapNoChange, nil
	}
	if t.locker.StartViaPhysicalToken(p) {
		return TapLocked, nil
	}
	return TapNoChange, nil
}

// Register writes the phrase to the presented tag.
func (t *TagSession) Register(ctx context.Context) error {
	if err := t.reader.Write(ctx, t.phrase); err != nil {
		return fmt.Errorf("failed to write tag: %w", err)
	}
	t.logger.Info("tag registered")
	return nil
}
