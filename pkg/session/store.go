package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"mediacrawl/pkg/logger"
)

// Store persists session state to disk so a restarted crawl can skip the
// login flow when the saved cookies are still live.
type Store struct {
	dir string
	log logger.Logger
}

// NewStore creates a session store rooted at dir. The directory is created
// on first save.
func NewStore(dir string, log logger.Logger) *Store {
	return &Store{dir: dir, log: log}
}

// persistedSession is the on-disk shape of a Session.
type persistedSession struct {
	Platform  string            `json:"platform"`
	Method    string            `json:"method"`
	State     State             `json:"state"`
	Cookies   map[string]string `json:"cookies"`
	UpdatedAt string            `json:"updated_at"`
}

// Save writes the session atomically: marshal to a temp file in the same
// directory, then rename over the destination.
func (s *Store) Save(sess *Session) error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	p := persistedSession{
		Platform:  sess.Platform,
		Method:    sess.Method,
		State:     sess.State(),
		Cookies:   sess.Cookies(),
		UpdatedAt: sess.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	path := s.path(sess.Platform)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace session file: %w", err)
	}

	s.log.DebugWithFields("session saved", map[string]interface{}{
		"platform": sess.Platform,
		"path":     path,
	})
	return nil
}

// Load reads a saved session for the platform. A missing file is not an
// error: it returns (nil, nil) and the caller runs a fresh login.
func (s *Store) Load(platform string) (*Session, error) {
	data, err := os.ReadFile(s.path(platform))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read session file: %w", err)
	}

	var p persistedSession
	if err := json.Unmarshal(data, &p); err != nil {
		s.log.WarnWithFields("session file corrupted, ignoring", map[string]interface{}{
			"platform": platform,
			"error":    err.Error(),
		})
		return nil, nil
	}

	sess := NewSession(p.Platform, p.Method)
	sess.setCookies(p.Cookies)
	sess.setState(p.State)
	return sess, nil
}

// Delete removes the saved session, if any.
func (s *Store) Delete(platform string) error {
	err := os.Remove(s.path(platform))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete session file: %w", err)
	}
	return nil
}

func (s *Store) path(platform string) string {
	return filepath.Join(s.dir, platform+"_session.json")
}
