package keyring

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/julianstephens/habitual/internal/constants"
)

var (
	// ErrNotFound is returned when the requested secret is not in the keyring
	ErrNotFound = errors.New("credentials not found in keyring")
	// ErrKeyringUnavailable is returned when the OS keyring is not available
	ErrKeyringUnavailable = errors.New("OS keyring is not available")
)

func get(key string) (string, error) {
	v, err := keyring.Get(constants.AppName, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return v, nil
}

func set(key, value, what string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s cannot be empty", what)
	}
	if err := keyring.Set(constants.AppName, key, value); err != nil {
		return fmt.Errorf("failed to store %s in keyring: %w", what, err)
	}
	return nil
}

func del(key, what string) error {
	if err := keyring.Delete(constants.AppName, key); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete %s from keyring: %w", what, err)
	}
	return nil
}

// GetConnectionString retrieves the Postgres connection string.
// Returns ErrNotFound if none is stored.
func GetConnectionString() (string, error) {
	return get(constants.DefaultKeyringUser)
}

func SetConnectionString(connStr string) error {
	return set(constants.DefaultKeyringUser, connStr, "connection string")
}

func DeleteConnectionString() error {
	return del(constants.DefaultKeyringUser, "connection string")
}

// GetCurrentUser returns the owner id saved by `habitual login`.
func GetCurrentUser() (string, error) {
	return get(constants.CurrentUserKey)
}

func SetCurrentUser(userID string) error {
	return set(constants.CurrentUserKey, strings.TrimSpace(userID), "user id")
}

// ClearCurrentUser signs the user out. Clearing an empty slot is not an error.
func ClearCurrentUser() error {
	if err := del(constants.CurrentUserKey, "user id"); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

// IsAvailable checks if the OS keyring is available on the current system.
// This is a best-effort check and may not catch all failure scenarios.
func IsAvailable() bool {
	_, err := keyring.Get(constants.AppName, "test-availability")
	return err == nil || errors.Is(err, keyring.ErrNotFound)
}
