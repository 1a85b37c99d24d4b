package infra

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/eliteGoblin/locked/internal/domain"
)

const authorizationFileName = "authorization"

// ErrAuthorizationRequired is returned when the user has not approved the app yet.
var ErrAuthorizationRequired = errors.New("authorization required: run `locked authorize`")

// FileAuthorizationCenter implements domain.AuthorizationCenter on a desktop
// host. The grant is a file in the data directory written by `locked authorize`.
type FileAuthorizationCenter struct {
	path string
}

// NewFileAuthorizationCenter creates a center keeping its grant in dataDir.
func NewFileAuthorizationCenter(dataDir string) *FileAuthorizationCenter {
	return &FileAuthorizationCenter{path: filepath.Join(dataDir, authorizationFileName)}
}

// Status returns the recorded grant without prompting.
func (c *FileAuthorizationCenter) Status() domain.AuthorizationStatus {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return domain.AuthUnknown
	}
	switch s := domain.AuthorizationStatus(strings.TrimSpace(string(data))); s {
	case domain.AuthApproved, domain.AuthDenied:
		return s
	default:
		return domain.AuthUnknown
	}
}

// RequestAuthorization succeeds only once the user has approved. There is
// no interactive prompt in a daemon, so an unknown or denied status fails.
func (c *FileAuthorizationCenter) RequestAuthorization(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	switch c.Status() {
	case domain.AuthApproved:
		return nil
	case domain.AuthDenied:
		return fmt.Errorf("authorization denied: %w", ErrAuthorizationRequired)
	default:
		return ErrAuthorizationRequired
	}
}

// Approve records the user's approval.
func (c *FileAuthorizationCenter) Approve() error {
	return c.write(domain.AuthApproved)
}

// Revoke records a denial.
func (c *FileAuthorizationCenter) Revoke() error {
	return c.write(domain.AuthDenied)
}

func (c *FileAuthorizationCenter) write(status domain.AuthorizationStatus) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := os.WriteFile(c.path, []byte(status), 0600); err != nil {
		return fmt.Errorf("failed to record authorization: %w", err)
	}
	return nil
}

var _ domain.AuthorizationCenter = (*FileAuthorizationCenter)(nil)
