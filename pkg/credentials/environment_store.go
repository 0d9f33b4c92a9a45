package credentials

import (
	"os"
	"time"
)

// EnvironmentStore reads credentials from the environment. Read-only: it
// exists so CI and containers can log in without touching disk.
type EnvironmentStore struct{}

// NewEnvironmentStore creates an environment-backed store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve builds an account from INSTAAPI_USERNAME and INSTAAPI_PASSWORD
func (e *EnvironmentStore) Retrieve(username string) (*Account, error) {
	envUser := os.Getenv("INSTAAPI_USERNAME")
	password := os.Getenv("INSTAAPI_PASSWORD")

	if envUser == "" || password == "" {
		return nil, ErrCredentialsNotFound
	}
	if username != "" && username != envUser {
		return nil, ErrCredentialsNotFound
	}

	return &Account{
		Username:     envUser,
		Password:     password,
		DeviceSeed:   os.Getenv("INSTAAPI_DEVICE_SEED"),
		LastModified: time.Now(),
	}, nil
}

// List returns the environment account when present
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(username string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials are set
func (e *EnvironmentStore) Exists(username string) bool {
	return os.Getenv("INSTAAPI_USERNAME") != "" && os.Getenv("INSTAAPI_PASSWORD") != ""
}
