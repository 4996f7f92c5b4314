// Package secrets abstracts password storage behind a narrow interface with
// an OS-native keyring implementation (macOS Keychain, Windows Credential
// Manager, Linux Secret Service).
package secrets

import (
	"fmt"

	"github.com/zalando/go-keyring"
)

// Store reads and writes per-user passwords for a service identifier.
// Absence of a password is not an error.
type Store interface {
	// Password returns the stored password for service and user, with the
	// second return reporting presence.
	Password(service, user string) (string, bool)

	// SetPassword persists the password, overwriting any existing value.
	SetPassword(service, user, password string) error
}

// Keyring is the OS-native keyring implementation of Store.
type Keyring struct{}

// Compile-time check to ensure Keyring implements Store
var _ Store = (*Keyring)(nil)

// Password returns the password from the system keyring. Any lookup failure,
// including the entry not existing, is treated as absence: the keyring is a
// convenience cache, not an authoritative source.
func (Keyring) Password(service, user string) (string, bool) {
	password, err := keyring.Get(service, user)
	if err != nil || password == "" {
		return "", false
	}
	return password, true
}

// SetPassword persists the password to the system keyring.
func (Keyring) SetPassword(service, user, password string) error {
	if err := keyring.Set(service, user, password); err != nil {
		return fmt.Errorf("storing password in keyring: %w", err)
	}
	return nil
}
