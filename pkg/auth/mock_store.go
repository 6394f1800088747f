package auth

import "sync"

// MockStore is an in-memory credential store for testing
type MockStore struct {
	mu          sync.RWMutex
	credentials map[string]*Credential

	// Behaviour switches for failure-path tests
	FailStore    bool
	FailRetrieve bool
	FailDelete   bool
}

// NewMockStore creates a new mock credential store
func NewMockStore() *MockStore {
	return &MockStore{
		credentials: make(map[string]*Credential),
	}
}

// Store saves the credential in memory
func (m *MockStore) Store(cred *Credential) error {
	if m.FailStore {
		return ErrInvalidCredential
	}
	if cred == nil || cred.Platform == "" {
		return ErrInvalidCredential
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	credCopy := *cred
	m.credentials[cred.Platform] = &credCopy
	return nil
}

// Retrieve gets the credential from memory
func (m *MockStore) Retrieve(platform string) (*Credential, error) {
	if m.FailRetrieve {
		return nil, ErrCredentialNotFound
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	cred, ok := m.credentials[platform]
	if !ok {
		return nil, ErrCredentialNotFound
	}

	credCopy := *cred
	return &credCopy, nil
}

// Delete removes the credential from memory
func (m *MockStore) Delete(platform string) error {
	if m.FailDelete {
		return ErrCredentialNotFound
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.credentials[platform]; !ok {
		return ErrCredentialNotFound
	}
	delete(m.credentials, platform)
	return nil
}

// Exists checks if the credential exists in memory
func (m *MockStore) Exists(platform string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.credentials[platform]
	return ok
}
