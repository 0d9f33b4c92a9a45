package credentials

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCredentialManager(t *testing.T) {
	manager, mockStore := NewMockManager()

	account := &Account{
		Username:     "testuser",
		Password:     "correct horse battery staple",
		DeviceSeed:   "testuser",
		LastModified: time.Now(),
	}

	err := manager.Store(account)
	if err != nil {
		t.Errorf("Failed to store account: %v", err)
	}

	retrieved, err := manager.Retrieve("testuser")
	if err != nil {
		t.Errorf("Failed to retrieve account: %v", err)
	}

	if retrieved.Username != account.Username {
		t.Errorf("Username mismatch: got %s, want %s", retrieved.Username, account.Username)
	}
	if retrieved.Password != account.Password {
		t.Errorf("Password mismatch: got %s, want %s", retrieved.Password, account.Password)
	}
	if retrieved.DeviceSeed != account.DeviceSeed {
		t.Errorf("DeviceSeed mismatch: got %s, want %s", retrieved.DeviceSeed, account.DeviceSeed)
	}

	accounts, err := manager.List()
	if err != nil {
		t.Errorf("Failed to list accounts: %v", err)
	}
	if len(accounts) == 0 {
		t.Error("Expected at least one account in list")
	}

	sanitized := SanitizeAccount(account)
	if sanitized.Password == account.Password {
		t.Error("Password should be masked")
	}
	if sanitized.Username != account.Username {
		t.Error("Username should not be masked")
	}

	err = manager.Delete("testuser")
	if err != nil {
		t.Errorf("Failed to delete account: %v", err)
	}

	_, err = manager.Retrieve("testuser")
	if err == nil {
		t.Error("Expected error retrieving deleted account")
	}

	if mockStore.Count() != 0 {
		t.Errorf("Expected 0 accounts after deletion, got %d", mockStore.Count())
	}
}

func TestManagerRejectsIncompleteAccount(t *testing.T) {
	manager, _ := NewMockManager()

	if err := manager.Store(&Account{Username: "nouser"}); err == nil {
		t.Error("Expected error storing account without password")
	}
	if err := manager.Store(&Account{Password: "nopass"}); err == nil {
		t.Error("Expected error storing account without username")
	}
}

func TestEncryptedFileStore(t *testing.T) {
	tempFile := filepath.Join(t.TempDir(), "test_creds.enc")

	os.Setenv("INSTAAPI_PASSPHRASE", "test_passphrase_123")
	defer os.Unsetenv("INSTAAPI_PASSPHRASE")

	store, err := NewEncryptedFileStore(tempFile)
	if err != nil {
		t.Fatalf("Failed to create encrypted store: %v", err)
	}

	account := &Account{
		Username:   "encrypted_user",
		Password:   "encrypted_password",
		DeviceSeed: "encrypted_seed",
	}

	err = store.Store(account)
	if err != nil {
		t.Errorf("Failed to store in encrypted file: %v", err)
	}

	retrieved, err := store.Retrieve("encrypted_user")
	if err != nil {
		t.Errorf("Failed to retrieve from encrypted file: %v", err)
	}

	if retrieved.Password != account.Password {
		t.Errorf("Password mismatch after encryption/decryption")
	}

	fileContent, err := os.ReadFile(tempFile)
	if err != nil {
		t.Fatal(err)
	}

	// the file must never leak plaintext secrets
	if contains(fileContent, []byte("encrypted_password")) {
		t.Error("File contains plaintext password")
	}
	if contains(fileContent, []byte("encrypted_seed")) {
		t.Error("File contains plaintext device seed")
	}
}

func TestEncryptedFileStoreDelete(t *testing.T) {
	tempFile := filepath.Join(t.TempDir(), "test_creds.enc")

	os.Setenv("INSTAAPI_PASSPHRASE", "test_passphrase_123")
	defer os.Unsetenv("INSTAAPI_PASSPHRASE")

	store, err := NewEncryptedFileStore(tempFile)
	if err != nil {
		t.Fatal(err)
	}

	if err := store.Store(&Account{Username: "u1", Password: "p1"}); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete("u1"); err != nil {
		t.Errorf("Failed to delete: %v", err)
	}

	// file is removed once the last account is gone
	if _, err := os.Stat(tempFile); !os.IsNotExist(err) {
		t.Error("Expected file to be removed after last account deleted")
	}

	if err := store.Delete("u1"); err != ErrCredentialsNotFound {
		t.Errorf("Expected ErrCredentialsNotFound, got %v", err)
	}
}

func TestEnvironmentStore(t *testing.T) {
	os.Setenv("INSTAAPI_USERNAME", "env_user")
	os.Setenv("INSTAAPI_PASSWORD", "env_password")
	os.Setenv("INSTAAPI_DEVICE_SEED", "env_seed")
	defer os.Unsetenv("INSTAAPI_USERNAME")
	defer os.Unsetenv("INSTAAPI_PASSWORD")
	defer os.Unsetenv("INSTAAPI_DEVICE_SEED")

	store := NewEnvironmentStore()

	account, err := store.Retrieve("")
	if err != nil {
		t.Errorf("Failed to retrieve from environment: %v", err)
	}

	if account.Username != "env_user" {
		t.Errorf("Username mismatch: got %s, want env_user", account.Username)
	}
	if account.Password != "env_password" {
		t.Errorf("Password mismatch: got %s, want env_password", account.Password)
	}
	if account.DeviceSeed != "env_seed" {
		t.Errorf("DeviceSeed mismatch: got %s, want env_seed", account.DeviceSeed)
	}

	// asking for a different user must not leak the env account
	if _, err := store.Retrieve("other_user"); err != ErrCredentialsNotFound {
		t.Errorf("Expected ErrCredentialsNotFound for other user, got %v", err)
	}

	if err := store.Store(&Account{}); err != ErrStoreUnavailable {
		t.Error("Expected ErrStoreUnavailable for environment store")
	}
}

func TestRealManagerWithEncryptedStore(t *testing.T) {
	tempDir := t.TempDir()

	os.Setenv("INSTAAPI_PASSPHRASE", "test_passphrase_real_manager")
	defer os.Unsetenv("INSTAAPI_PASSPHRASE")

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(tempDir, "credentials.enc"))
	if err != nil {
		t.Fatalf("Failed to create encrypted store: %v", err)
	}

	manager := NewMockManagerWithStores(encryptedStore)

	account := &Account{
		Username:     "realuser",
		Password:     "real_password",
		DeviceSeed:   "realuser",
		LastModified: time.Now(),
	}

	err = manager.Store(account)
	if err != nil {
		t.Fatalf("Failed to store account: %v", err)
	}

	accounts, err := manager.List()
	if err != nil {
		t.Fatalf("Failed to list accounts: %v", err)
	}
	if len(accounts) != 1 {
		t.Errorf("Expected 1 account in list, got %d", len(accounts))
	}

	retrieved, err := manager.Retrieve("realuser")
	if err != nil {
		t.Fatalf("Failed to retrieve account: %v", err)
	}

	if retrieved.Username != account.Username {
		t.Errorf("Username mismatch: got %s, want %s", retrieved.Username, account.Username)
	}
	if retrieved.Password != account.Password {
		t.Errorf("Password mismatch: got %s, want %s", retrieved.Password, account.Password)
	}
}

func TestMockStore(t *testing.T) {
	store := NewMockStore()

	accounts, err := store.List()
	if err != nil {
		t.Errorf("Failed to list empty store: %v", err)
	}
	if len(accounts) != 0 {
		t.Errorf("Expected 0 accounts, got %d", len(accounts))
	}

	account := &Account{
		Username: "mockuser",
		Password: "mock_password",
	}

	err = store.Store(account)
	if err != nil {
		t.Errorf("Failed to store account: %v", err)
	}

	if store.Count() != 1 {
		t.Errorf("Expected 1 account, got %d", store.Count())
	}

	if !store.Exists("mockuser") {
		t.Error("Account should exist")
	}

	store.ListError = fmt.Errorf("injected error")
	_, err = store.List()
	if err == nil || err.Error() != "injected error" {
		t.Error("Expected injected error")
	}
}

func contains(data []byte, substr []byte) bool {
	for i := 0; i <= len(data)-len(substr); i++ {
		if string(data[i:i+len(substr)]) == string(substr) {
			return true
		}
	}
	return false
}
