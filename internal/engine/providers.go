package engine

import (
	"sync"

	"github.com/google/uuid"
)

// CurrentPathProvider supplies the page path of the current browsing
// context for target-page matching.
type CurrentPathProvider interface {
	CurrentPath() string
}

// UserIdentityProvider supplies the durable pseudo-random identifier of
// the current browsing context. Implementations mint the id on first
// need and never rotate it.
type UserIdentityProvider interface {
	UserID() string
}

// PathFunc adapts a function to CurrentPathProvider.
type PathFunc func() string

func (f PathFunc) CurrentPath() string { return f() }

// IdentityFunc adapts a function to UserIdentityProvider.
type IdentityFunc func() string

func (f IdentityFunc) UserID() string { return f() }

// StoredIdentity mints a random user id once and returns it for the
// lifetime of the process.
type StoredIdentity struct {
	once sync.Once
	id   string
}

func (s *StoredIdentity) UserID() string {
	s.once.Do(func() {
		s.id = uuid.NewString()
	})
	return s.id
}
