package kvstore

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/boddenberg/stockdash-bfa-go/internal/port"

	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

// ErrDecrypt is returned when a stored value was not sealed with this key.
var ErrDecrypt = errors.New("kvstore: value could not be decrypted")

// Encrypted seals values with NaCl secretbox before handing them to the
// wrapped store. Keys are stored in the clear.
type Encrypted struct {
	inner port.KeyValueStore
	key   [32]byte
}

// NewEncrypted wraps inner. The secretbox key is the SHA-256 of passphrase.
func NewEncrypted(inner port.KeyValueStore, passphrase string) *Encrypted {
	return &Encrypted{inner: inner, key: sha256.Sum256([]byte(passphrase))}
}

func (e *Encrypted) Get(ctx context.Context, key string) (string, bool, error) {
	sealed, ok, err := e.inner.Get(ctx, key)
	if err != nil || !ok {
		return "", ok, err
	}

	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil || len(raw) < nonceSize {
		return "", false, fmt.Errorf("%w: %s", ErrDecrypt, key)
	}

	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &e.key)
	if !ok {
		return "", false, fmt.Errorf("%w: %s", ErrDecrypt, key)
	}
	return string(plain), true, nil
}

func (e *Encrypted) Set(ctx context.Context, key, value string) error {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(value), &nonce, &e.key)
	return e.inner.Set(ctx, key, base64.StdEncoding.EncodeToString(sealed))
}

func (e *Encrypted) Delete(ctx context.Context, keys ...string) error {
	return e.inner.Delete(ctx, keys...)
}

// Ping delegates to the wrapped store when it can be probed.
func (e *Encrypted) Ping(ctx context.Context) error {
	if p, ok := e.inner.(port.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
