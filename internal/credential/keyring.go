// Package credential keeps the mail password in the system keyring.
package credential

import (
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "signal-mail-bridge"

// Open returns the keyring backend used for bridge credentials
func Open() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.SecretServiceBackend,
			keyring.KeychainBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/signal-mail-bridge/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("signal-mail-bridge-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Get retrieves a credential value by key
func Get(ring keyring.Keyring, key string) (string, error) {
	item, err := ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}
	return string(item.Data), nil
}

// Set stores a credential value by key
func Set(ring keyring.Keyring, key, value string) error {
	err := ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: serviceName + " " + key,
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}
	return nil
}

// MailPassword returns the configured password, or the keyring entry for
// user when fromKeyring is set. open is only called in the keyring case.
func MailPassword(user, configured string, fromKeyring bool, open func() (keyring.Keyring, error)) (string, error) {
	if !fromKeyring {
		return configured, nil
	}
	if user == "" {
		return "", fmt.Errorf("mail.user is required to look up the password")
	}
	ring, err := open()
	if err != nil {
		return "", err
	}
	return Get(ring, user)
}
