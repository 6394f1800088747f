package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Credential holds the stored login material for one platform: the raw
// cookie string used by the cookie login method and, optionally, the phone
// number used by the SMS method.
type Credential struct {
	Platform     string    `json:"platform"`
	Cookies      string    `json:"cookies"`
	Phone        string    `json:"phone,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// CredentialStore is the interface for storing and retrieving credentials
type CredentialStore interface {
	// Store saves the credential for a platform
	Store(cred *Credential) error

	// Retrieve gets the credential for a platform
	Retrieve(platform string) (*Credential, error)

	// Delete removes the credential for a platform
	Delete(platform string) error

	// Exists checks if a credential exists for a platform
	Exists(platform string) bool
}

// Manager handles credential storage with fallback mechanisms
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a credential manager backed by the system keychain when
// available, with environment variables as the read-only fallback.
func NewManager() (*Manager, error) {
	var stores []CredentialStore

	keyringStore, err := NewKeyringStore()
	if err == nil {
		stores = append(stores, keyringStore)
	}

	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// Store saves the credential using the first store that accepts it
func (m *Manager) Store(cred *Credential) error {
	if cred.Platform == "" {
		return errors.New("platform is required")
	}
	if cred.Cookies == "" {
		return errors.New("cookie string is required")
	}

	cred.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		if err := store.Store(cred); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store credential: %w", lastErr)
	}
	return errors.New("no available credential stores")
}

// Retrieve gets the credential from the first store that has it
func (m *Manager) Retrieve(platform string) (*Credential, error) {
	for _, store := range m.stores {
		if cred, err := store.Retrieve(platform); err == nil && cred != nil {
			return cred, nil
		}
	}
	return nil, fmt.Errorf("credential not found for platform: %s", platform)
}

// Delete removes the credential from all stores
func (m *Manager) Delete(platform string) error {
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if err := store.Delete(platform); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}

	if !deleted && lastErr != nil {
		return fmt.Errorf("failed to delete credential: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("credential not found for platform: %s", platform)
	}

	return nil
}

// getConfigDir returns the configuration directory path
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "mediacrawl")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "mediacrawl")
	default: // Linux and others
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "mediacrawl")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "mediacrawl")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// SanitizeCredential creates a copy of the credential with the cookie
// material masked, safe for logs and terminal output.
func SanitizeCredential(cred *Credential) *Credential {
	if cred == nil {
		return nil
	}

	return &Credential{
		Platform:     cred.Platform,
		Cookies:      maskString(cred.Cookies),
		Phone:        maskString(cred.Phone),
		LastModified: cred.LastModified,
	}
}

// maskString masks all but the first 4 and last 4 characters of a string
func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Errors
var (
	ErrCredentialNotFound = errors.New("credential not found")
	ErrInvalidCredential  = errors.New("invalid credential")
)
