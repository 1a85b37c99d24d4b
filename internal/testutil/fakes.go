// Package testutil provides in-memory test doubles for the domain capabilities.
package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/eliteGoblin/locked/internal/domain"
)

// MemoryStore implements domain.KeyValueStore in memory.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, domain.ErrKeyNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryStore) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryStore) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MemoryStore) Close() error { return nil }

// SetRaw stores raw bytes, e.g. to simulate corrupt data.
func (m *MemoryStore) SetRaw(key string, value []byte) {
	_ = m.Set(key, value)
}

var _ domain.KeyValueStore = (*MemoryStore)(nil)

// FakeClock is a settable clock.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFakeClock(now time.Time) *FakeClock {
	return &FakeClock{now: now}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var _ domain.Clock = (*FakeClock)(nil)

// ShieldCall records one call made to a RecordingShield.
type ShieldCall struct {
	Method     string
	Apps       []string
	Categories []string
}

// RecordingShield implements domain.ShieldProvider and remembers what it was told.
type RecordingShield struct {
	mu    sync.Mutex
	Calls []ShieldCall
	Rules domain.ShieldRules
}

func NewRecordingShield() *RecordingShield {
	return &RecordingShield{Rules: domain.ShieldRules{Mode: domain.ShieldNone}}
}

func (s *RecordingShield) ApplyBlockList(apps, categories []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, ShieldCall{Method: "block", Apps: apps, Categories: categories})
	s.Rules = domain.ShieldRules{Mode: domain.ShieldBlockList, Apps: apps, Categories: categories}
	return nil
}

func (s *RecordingShield) ApplyAllowList(exceptApps, exceptCategories []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, ShieldCall{Method: "allow", Apps: exceptApps, Categories: exceptCategories})
	s.Rules = domain.ShieldRules{Mode: domain.ShieldAllowList, Apps: exceptApps, Categories: exceptCategories}
	return nil
}

func (s *RecordingShield) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, ShieldCall{Method: "clear"})
	s.Rules = domain.ShieldRules{Mode: domain.ShieldNone}
	return nil
}

// Current returns the rules in effect.
func (s *RecordingShield) Current() domain.ShieldRules {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Rules
}

// CallCount returns how many calls were made.
func (s *RecordingShield) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Calls)
}

var _ domain.ShieldProvider = (*RecordingShield)(nil)

// FakeAuthorizationCenter implements domain.AuthorizationCenter.
type FakeAuthorizationCenter struct {
	StatusValue domain.AuthorizationStatus
	RequestErr  error
	Requests    int
}

func NewApprovedAuthorizationCenter() *FakeAuthorizationCenter {
	return &FakeAuthorizationCenter{StatusValue: domain.AuthApproved}
}

func (a *FakeAuthorizationCenter) Status() domain.AuthorizationStatus {
	return a.StatusValue
}

func (a *FakeAuthorizationCenter) RequestAuthorization(ctx context.Context) error {
	a.Requests++
	if a.RequestErr != nil {
		a.StatusValue = domain.AuthDenied
		return a.RequestErr
	}
	a.StatusValue = domain.AuthApproved
	return nil
}

var _ domain.AuthorizationCenter = (*FakeAuthorizationCenter)(nil)

// Notification is one scheduled notification.
type Notification struct {
	Title string
	Body  string
	Delay time.Duration
}

// RecordingNotifier implements domain.Notifier.
type RecordingNotifier struct {
	mu   sync.Mutex
	Sent []Notification
}

func (n *RecordingNotifier) Schedule(title, body string, delay time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Sent = append(n.Sent, Notification{Title: title, Body: body, Delay: delay})
	return nil
}

// Titles returns the titles of every notification, in order.
func (n *RecordingNotifier) Titles() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	titles := make([]string, len(n.Sent))
	for i, s := range n.Sent {
		titles[i] = s.Title
	}
	return titles
}

var _ domain.Notifier = (*RecordingNotifier)(nil)

// FakeTagReader implements domain.TagReader with a fixed payload.
type FakeTagReader struct {
	Payload string
	ScanErr error
	Written []string
}

func (r *FakeTagReader) Scan(ctx context.Context) (string, error) {
	if r.ScanErr != nil {
		return "", r.ScanErr
	}
	return r.Payload, nil
}

func (r *FakeTagReader) Write(ctx context.Context, payload string) error {
	if r.ScanErr != nil {
		return r.ScanErr
	}
	r.Written = append(r.Written, payload)
	r.Payload = payload
	return nil
}

var _ domain.TagReader = (*FakeTagReader)(nil)

// LocalBroadcaster implements domain.Broadcaster synchronously within one process.
type LocalBroadcaster struct {
	mu        sync.Mutex
	observers map[string]map[int]func()
	nextID    int
	Posted    []string
}

func NewLocalBroadcaster() *LocalBroadcaster {
	return &LocalBroadcaster{observers: make(map[string]map[int]func())}
}

func (b *LocalBroadcaster) Post(signal string) error {
	b.mu.Lock()
	b.Posted = append(b.Posted, signal)
	fns := make([]func(), 0, len(b.observers[signal]))
	for _, fn := range b.observers[signal] {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	return nil
}

func (b *LocalBroadcaster) Observe(signal string, fn func()) (func(), error) {
	if fn == nil {
		return nil, errors.New("nil observer")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.observers[signal] == nil {
		b.observers[signal] = make(map[int]func())
	}
	id := b.nextID
	b.nextID++
	b.observers[signal][id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.observers[signal], id)
	}, nil
}

var _ domain.Broadcaster = (*LocalBroadcaster)(nil)
