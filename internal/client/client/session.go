package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/notematic/internal/filex"
)

// Session is what the CLI remembers between runs.
type Session struct {
	Username     string `json:"username"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// SessionStore keeps a Session in a single file readable only by its owner.
type SessionStore struct {
	path string
}

func NewSessionStore(path string) *SessionStore {
	return &SessionStore{path: path}
}

// Load returns ErrNoSession when nothing has been saved yet.
func (s *SessionStore) Load() (*Session, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoSession
		}
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("corrupt session file %s: %w", s.path, err)
	}
	if sess.AccessToken == "" && sess.RefreshToken == "" {
		return nil, ErrNoSession
	}
	return &sess, nil
}

func (s *SessionStore) Save(sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	if err := filex.EnsureDir(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	return filex.WriteFileAtomic(s.path, data, 0o600)
}

func (s *SessionStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
