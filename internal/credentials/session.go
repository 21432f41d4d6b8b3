package credentials

import (
	"context"
	"sync"

	"github.com/parasail-network/node-agent/internal/models"
)

// Session is the in-memory view of the current credential, shared by every
// authenticated call. The token is written by the auth layer and read by
// the HTTP client; the mutex keeps read-modify-write cycles atomic.
type Session struct {
	mu    sync.RWMutex
	cred  models.Credential
	store Store
}

func NewSession(ctx context.Context, store Store) (*Session, error) {
	cred, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return &Session{cred: cred, store: store}, nil
}

func (s *Session) Address() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred.WalletAddress
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred.BearerToken
}

// SetToken stores a freshly minted bearer token and persists the record.
// Each successful authentication overwrites the previous token.
func (s *Session) SetToken(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred.BearerToken = token
	return s.store.Save(ctx, s.cred)
}

// EnsureAddress corrects the persisted wallet address when it diverges from
// the address derived from the active private key. Reports whether a
// correction was written.
func (s *Session) EnsureAddress(ctx context.Context, address string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cred.WalletAddress == address {
		return false, nil
	}
	s.cred.WalletAddress = address
	if err := s.store.Save(ctx, s.cred); err != nil {
		return false, err
	}
	return true, nil
}
