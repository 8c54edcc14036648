package encryption

import (
	"bytes"
	"fmt"
	"io"
	"sync"
)

// testHeader is prepended by TestEncryptor so ciphertext differs from the
// plaintext while staying deterministic.
var testHeader = []byte("DLENC\x00\x00\x00")

// TestEncryptor is a deterministic, reversible encryptor for tests. It keeps
// the lock semantics of AgeEncryptor: after Lock, Decrypt fails with
// ErrLocked until Unlock is given the passphrase passed to Setup.
type TestEncryptor struct {
	mu         sync.Mutex
	passphrase string
	locked     bool
}

var _ Encryptor = (*TestEncryptor)(nil)

// NewTestEncryptor creates an unlocked TestEncryptor with no passphrase.
func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

func (e *TestEncryptor) Setup(passphrase string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.passphrase = passphrase
	e.locked = false
	return nil
}

// Lock forgets the unlocked state, as a fresh process would.
func (e *TestEncryptor) Lock() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.locked = true
}

func (e *TestEncryptor) Unlock(passphrase string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if passphrase != e.passphrase {
		return fmt.Errorf("unlocking test key: wrong passphrase")
	}
	e.locked = false
	return nil
}

func (e *TestEncryptor) IsConfigured() bool { return true }

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(testHeader); err != nil {
		return fmt.Errorf("writing test header: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (e *TestEncryptor) Decrypt(r io.Reader, w io.Writer) error {
	e.mu.Lock()
	locked := e.locked
	e.mu.Unlock()
	if locked {
		return ErrLocked
	}

	header := make([]byte, len(testHeader))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading test header: %w", err)
	}
	if !bytes.Equal(header, testHeader) {
		return fmt.Errorf("invalid test encryption header")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}
