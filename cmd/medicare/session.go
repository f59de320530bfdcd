package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"MediCare/pkg/apiclient"
)

// sessionStore 把登录态保存为本地 JSON 文件，权限 0600
type sessionStore struct {
	path string
}

func (s *sessionStore) Load() (apiclient.Session, error) {
	var sess apiclient.Session
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return sess, nil
	}
	if err != nil {
		return sess, fmt.Errorf("read session: %w", err)
	}
	if err := json.Unmarshal(b, &sess); err != nil {
		return sess, fmt.Errorf("session file %s is corrupt, run logout: %w", s.path, err)
	}
	return sess, nil
}

func (s *sessionStore) Save(sess apiclient.Session) error {
	if sess.AccessToken == "" {
		err := os.Remove(s.path)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, b, 0o600)
}
