package testutil

import (
	"feid-go/internal/encryption"
	"feid-go/internal/feid"
)

// NewTestEncryptor creates a header-only encryptor that checks the
// passphrase given to Setup.
func NewTestEncryptor(passphrase string) feid.Encryptor {
	e := encryption.NewTestEncryptor()
	e.Setup(passphrase)
	return e
}
