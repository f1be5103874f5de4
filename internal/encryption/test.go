package encryption

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"abook/internal/abook"
)

// testMarker is the first line of every bundle written by TestEncryptor.
const testMarker = "ABOOK-TEST-BUNDLE v1\n"

// ErrWrongPassphrase is returned by TestEncryptor.Unlock.
var ErrWrongPassphrase = errors.New("wrong passphrase")

// TestEncryptor stands in for age in tests and for encryption type "test".
// Bundles are stored in the clear behind a marker line, so a restore of data
// that never went through Encrypt still fails. Keys need no setup; once Setup
// has been called, Unlock insists on the same passphrase.
type TestEncryptor struct {
	passphrase *string
}

var _ abook.Encryptor = (*TestEncryptor)(nil)

func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

func (e *TestEncryptor) Setup(passphrase string) error {
	if e.passphrase != nil {
		return ErrKeysExist
	}
	e.passphrase = &passphrase
	return nil
}

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := io.Copy(w, io.MultiReader(strings.NewReader(testMarker), r)); err != nil {
		return fmt.Errorf("writing test bundle: %w", err)
	}
	return nil
}

func (e *TestEncryptor) Unlock(passphrase string) (abook.DecryptionContext, error) {
	if e.passphrase != nil && *e.passphrase != passphrase {
		return nil, ErrWrongPassphrase
	}
	return TestDecryptionContext{}, nil
}

func (e *TestEncryptor) IsConfigured() bool {
	return true
}

// TestDecryptionContext reads bundles written by TestEncryptor.
type TestDecryptionContext struct{}

var _ abook.DecryptionContext = TestDecryptionContext{}

func (TestDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	br := bufio.NewReader(r)
	line, err := br.ReadString('\n')
	if line != testMarker {
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("reading test bundle: %w", err)
		}
		return errors.New("not a test bundle")
	}
	if _, err := br.WriteTo(w); err != nil {
		return fmt.Errorf("reading test bundle: %w", err)
	}
	return nil
}
