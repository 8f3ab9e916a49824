// Package session tracks uploaded datasets for the lifetime of a conversation.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/Abhi-vish/financial-insights-ai/internal/dataset"
	"github.com/Abhi-vish/financial-insights-ai/internal/storage"
)

// ErrSessionNotFound is returned for unknown or expired sessions. It is the
// only failure callers see without an answer envelope.
var ErrSessionNotFound = errors.New("session not found")

type Session struct {
	ID         string
	Tenant     string
	Filename   string
	Format     storage.DatasetFormat
	ObjectPath string
	RowCount   int
	CreatedAt  time.Time
	LastAccess time.Time

	Dataset *dataset.Dataset
	Summary dataset.Summary
}

// Store is the in-process session registry the engine answers from.
type Store interface {
	Create(ctx context.Context, sess *Session) error
	// Get returns the session and refreshes its last-access time.
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*Session, error)
	// Sweep drops sessions idle past the TTL and reports what was removed.
	Sweep(ctx context.Context, now time.Time) ([]*Session, error)
}

// NewID generates a 16-byte random session identifier.
func NewID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
