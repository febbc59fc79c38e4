package store

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("not found")

// Snapshot keys used by the engine.
const (
	KeyExperiments = "experiments"
	KeyAssignments = "assignments"
)

// BlobStore is the persistence contract: opaque blobs by key, read in
// full at startup, written in full on every mutation, last writer wins.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte) error
	Close() error
}
