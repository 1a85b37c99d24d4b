// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"errors"
	"sort"
	"time"
)

var (
	ErrKeyNotFound       = errors.New("key not found")
	ErrProfileNotFound   = errors.New("profile not found")
	ErrScheduleNotFound  = errors.New("schedule not found")
	ErrWrongTag          = errors.New("wrong tag")
	ErrSnoozeUnavailable = errors.New("no snoozes remaining today")
)

// Profile is a named set of lock targets plus the lock policy.
type Profile struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	LockTargets     []string `json:"lockTargets"`     // Opaque app identifiers
	CategoryTargets []string `json:"categoryTargets"` // Opaque category identifiers
	Icon            string   `json:"icon"`
	IsAllowListMode bool     `json:"isAllowListMode"`
}

// IsDefault reports whether the profile is the legacy undeletable default.
func (p Profile) IsDefault() bool {
	return p.Name == "Locked"
}

// NormalizeTargets returns a sorted copy of targets without duplicates or empty entries.
func NormalizeTargets(targets []string) []string {
	seen := make(map[string]struct{}, len(targets))
	out := make([]string, 0, len(targets))
	for _, t := range targets {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// ShieldMode is the kind of restriction currently applied.
type ShieldMode string

const (
	ShieldNone      ShieldMode = "none"
	ShieldBlockList ShieldMode = "block_list"
	ShieldAllowList ShieldMode = "allow_list"
)

// ShieldRules is the restriction set last handed to a ShieldProvider.
// In allow-list mode Apps/Categories are the exceptions.
type ShieldRules struct {
	Mode       ShieldMode `json:"mode"`
	Apps       []string   `json:"apps,omitempty"`
	Categories []string   `json:"categories,omitempty"`
	AppliedAt  time.Time  `json:"appliedAt"`
}

// LockSession is the persisted state of the lock session controller.
type LockSession struct {
	IsLocking    bool
	TimerEndDate *time.Time // Only meaningful while IsLocking (or snoozed)
	HasUsedNFC   bool
}

// SnoozeState is a snapshot of the snooze counter.
type SnoozeState struct {
	IsSnoozed           bool
	SnoozeTimeRemaining time.Duration
	SnoozesUsedToday    int
	MaxSnoozesPerDay    int
	SnoozeDuration      time.Duration
	LastResetDate       time.Time
}

// SnoozeRequest is the single-slot mailbox record written by the shield extension.
type SnoozeRequest struct {
	Requested   bool
	RequestTime time.Time
}

// AuthorizationStatus is the state of the Screen Time style authorization.
type AuthorizationStatus string

const (
	AuthUnknown    AuthorizationStatus = "unknown"
	AuthRequesting AuthorizationStatus = "requesting"
	AuthApproved   AuthorizationStatus = "approved"
	AuthDenied     AuthorizationStatus = "denied"
)

// MainProcess is the registry entry the main process publishes for extensions.
type MainProcess struct {
	PID           int    `json:"pid"`
	LastHeartbeat int64  `json:"last_heartbeat"`
	AppVersion    string `json:"app_version,omitempty"`
}

// EnforcementResult contains the outcome of one process-level enforcement pass.
type EnforcementResult struct {
	Mode       ShieldMode
	KilledPIDs []int
	Errors     []error
	ExecutedAt time.Time
	DurationMs int64
}
