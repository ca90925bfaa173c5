package signing

import (
	"crypto/sha256"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"golang.org/x/crypto/hkdf"
)

// Keyring derives per-version signing keys from one master secret via
// HKDF-SHA256. Old versions stay derivable forever, which is what lets Verify
// select the key matching the version a unit was stamped with.
type Keyring struct {
	master  []byte
	current atomic.Int64

	mu      sync.RWMutex
	derived map[int][]byte
}

// NewKeyring validates the master secret and prepares the current version.
func NewKeyring(masterKey string, currentVersion int) (*Keyring, error) {
	if len(masterKey) < 16 {
		return nil, fmt.Errorf("master key must be at least 16 bytes, got %d", len(masterKey))
	}
	if currentVersion < 1 {
		return nil, fmt.Errorf("key version must be positive, got %d", currentVersion)
	}
	k := &Keyring{
		master:  []byte(masterKey),
		derived: make(map[int][]byte),
	}
	k.current.Store(int64(currentVersion))
	if _, err := k.Key(currentVersion); err != nil {
		return nil, err
	}
	return k, nil
}

// Key returns the 32-byte key for a version, deriving and caching it on first
// use.
func (k *Keyring) Key(version int) ([]byte, error) {
	if version < 1 || int64(version) > k.current.Load() {
		return nil, fmt.Errorf("unknown key version %d", version)
	}

	k.mu.RLock()
	key, ok := k.derived[version]
	k.mu.RUnlock()
	if ok {
		return key, nil
	}

	reader := hkdf.New(sha256.New, k.master, nil, fmt.Appendf(nil, "pharmatrace-signing-v%d", version))
	key = make([]byte, 32)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("derive key version %d: %w", version, err)
	}

	k.mu.Lock()
	k.derived[version] = key
	k.mu.Unlock()
	return key, nil
}

// CurrentVersion returns the version used to stamp new units.
func (k *Keyring) CurrentVersion() int {
	return int(k.current.Load())
}

// Rotate increments the current version and returns it.
func (k *Keyring) Rotate() int {
	return int(k.current.Add(1))
}
