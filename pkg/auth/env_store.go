package auth

import (
	"fmt"
	"os"
	"strings"
)

// EnvironmentStore reads credentials from environment variables. It is a
// read-only last-resort store: MEDIACRAWL_COOKIES_<PLATFORM> carries the
// cookie string, MEDIACRAWL_PHONE_<PLATFORM> the phone number.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(cred *Credential) error {
	return fmt.Errorf("environment store is read-only")
}

// Retrieve gets the credential from environment variables
func (e *EnvironmentStore) Retrieve(platform string) (*Credential, error) {
	if platform == "" {
		return nil, ErrInvalidCredential
	}

	suffix := strings.ToUpper(platform)
	cookies := os.Getenv("MEDIACRAWL_COOKIES_" + suffix)
	if cookies == "" {
		return nil, ErrCredentialNotFound
	}

	return &Credential{
		Platform: platform,
		Cookies:  cookies,
		Phone:    os.Getenv("MEDIACRAWL_PHONE_" + suffix),
	}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(platform string) error {
	return fmt.Errorf("environment store is read-only")
}

// Exists checks if the credential exists in the environment
func (e *EnvironmentStore) Exists(platform string) bool {
	return os.Getenv("MEDIACRAWL_COOKIES_"+strings.ToUpper(platform)) != ""
}
