package credentials

import (
	"context"
	"errors"

	"github.com/parasail-network/node-agent/internal/models"
)

// ErrCorrupt is returned when a persisted credential record cannot be
// decoded. Fatal at startup: the process cannot guess the user's intent.
var ErrCorrupt = errors.New("corrupt credentials record")

// Store persists the credential record across restarts. Load creates a
// default empty record if none exists yet; calling it repeatedly is safe.
type Store interface {
	Load(ctx context.Context) (models.Credential, error)
	Save(ctx context.Context, cred models.Credential) error
}
