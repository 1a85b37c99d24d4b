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

// ErrNoTag is returned when no token is presented.
var ErrNoTag = errors.New("no tag presented")

// FileTagReader implements domain.TagReader over a file standing in for
// the physical token (for example a file on a removable drive).
type FileTagReader struct {
	path string
}

// NewFileTagReader creates a reader for the token at path.
func NewFileTagReader(path string) *FileTagReader {
	return &FileTagReader{path: path}
}

// Scan returns the payload stored on the token.
func (r *FileTagReader) Scan(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoTag
		}
		return "", fmt.Errorf("failed to read tag: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Write stores payload on the token, replacing what was there.
func (r *FileTagReader) Write(ctx context.Context, payload string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0700); err != nil {
		return fmt.Errorf("failed to create tag directory: %w", err)
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(payload+"\n"), 0600); err != nil {
		return fmt.Errorf("failed to write tag: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write tag: %w", err)
	}
	return nil
}

var _ domain.TagReader = (*FileTagReader)(nil)
