// Package usecase contains application business logic.
package usecase

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/eliteGoblin/locked/internal/domain"
)

// Authorizer gates every mutating lock operation.
type Authorizer interface {
	IsApproved() bool
}

// Authorization tracks the host permission as a state machine:
// unknown -> requesting -> approved | denied.
type Authorization struct {
	mu     sync.Mutex
	center domain.AuthorizationCenter
	status domain.AuthorizationStatus
	logger *zap.Logger
}

// NewAuthorization creates the state machine and reads the host status once.
func NewAuthorization(center domain.AuthorizationCenter, logger *zap.Logger) *Authorization {
	a := &Authorization{
		center: center,
		status: domain.AuthUnknown,
		logger: logger,
	}
	a.Refresh()
	return a
}

// Refresh re-reads the host status without prompting.
// An in-flight request is not overridden.
func (a *Authorization) Refresh() domain.AuthorizationStatus {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.status == domain.AuthRequesting {
		return a.status
	}

	switch host := a.center.Status(); host {
	case domain.AuthApproved, domain.AuthDenied:
		a.status = host
	default:
		a.status = domain.AuthUnknown
	}
	return a.status
}

// Request prompts for approval unless already approved.
// Returns true when the final state is approved.
func (a *Authorization) Request(ctx context.Context) bool {
	a.mu.Lock()
	switch a.status {
	case domain.AuthApproved:
		a.mu.Unlock()
		return true
	case domain.AuthRequesting:
		a.mu.Unlock()
		return false
	}
	a.status = domain.AuthRequesting
	a.mu.Unlock()

	err := a.center.RequestAuthorization(ctx)

	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil {
		a.logger.Warn("authorization request failed", zap.Error(err))
		a.status = domain.AuthDenied
		return false
	}
	a.status = domain.AuthApproved
	a.logger.Info("authorization approved")
	return true
}

// Status returns the current state.
func (a *Authorization) Status() domain.AuthorizationStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// IsApproved reports whether mutating operations are allowed.
func (a *Authorization) IsApproved() bool {
	return a.Status() == domain.AuthApproved
}

var _ Authorizer = (*Authorization)(nil)
