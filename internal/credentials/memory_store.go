package credentials

import (
	"context"
	"sync"

	"github.com/parasail-network/node-agent/internal/models"
)

// MemoryStore holds the credential in process memory only. Backs tests and
// the throwaway "memory" backend.
type MemoryStore struct {
	mu   sync.Mutex
	cred models.Credential
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(_ context.Context) (models.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cred, nil
}

func (s *MemoryStore) Save(_ context.Context, cred models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = cred
	return nil
}
