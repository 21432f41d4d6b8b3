package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/parasail-network/node-agent/internal/models"
	"go.uber.org/zap"
)

// FileStore keeps the credential in a JSON file. Saves go through a temp
// file in the same directory followed by a rename, so a concurrent Load
// never sees a partially written record.
type FileStore struct {
	path string
	log  *zap.Logger
}

func NewFileStore(path string, log *zap.Logger) *FileStore {
	return &FileStore{path: path, log: log}
}

func (s *FileStore) Load(ctx context.Context) (models.Credential, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		cred := models.Credential{}
		if err := s.Save(ctx, cred); err != nil {
			return cred, err
		}
		s.log.Info("created empty credentials file", zap.String("path", s.path))
		return cred, nil
	}
	if err != nil {
		return models.Credential{}, fmt.Errorf("read %s: %w", s.path, err)
	}

	var cred models.Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return models.Credential{}, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)
	}
	return cred, nil
}

func (s *FileStore) Save(_ context.Context, cred models.Credential) error {
	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".credentials-*")
	if err != nil {
		return fmt.Errorf("create temp credentials file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}
