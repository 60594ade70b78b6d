package feid

import (
	"errors"
	"io"
)

// ErrLocked is returned when an encrypted object is read before the private
// key has been unlocked.
var ErrLocked = errors.New("local store is encrypted and locked")

// Encryptor encrypts objects written to the local store. Encryption needs the
// public key only; reading back requires unlocking the private key with the
// passphrase.
type Encryptor interface {
	// Setup generates a key pair, stores the public key in plaintext and the
	// private key encrypted with passphrase. Called by `feid config keys`.
	Setup(passphrase string) error

	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key and returns a DecryptionContext for the
	// rest of the session. A wrong passphrase is an error.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured reports whether both key files exist.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key in memory only.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
