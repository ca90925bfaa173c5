// Package signing implements the backend that authenticates serialized units.
// The software signer stands in for an HSM: production deployments swap in a
// PKCS#11-backed implementation of Signer without touching the pipeline.
package signing

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"math/big"
	"time"
)

// Signer is the contract a signing backend must satisfy. Sign is deterministic
// for a given key version so units can be verified statelessly from their
// identity tuple alone.
type Signer interface {
	// Sign produces the crypto-tail for a unit identity tuple using the
	// current key.
	Sign(serial, gtin, batchNumber string) (string, error)
	// Verify recomputes the tag for the given key version and compares it in
	// constant time. It reports false on any internal failure; verification
	// must classify, never crash.
	Verify(serial, gtin, batchNumber, tag string, keyVersion int) bool
	// CurrentKeyVersion identifies the key new units are stamped with. It is
	// monotonically non-decreasing across rotations.
	CurrentKeyVersion() int
}

// separator joins the identity tuple unambiguously before signing. Serials,
// GTINs, and batch numbers never contain a colon.
const separator = ":"

// HMACSigner simulates HSM signing with HMAC-SHA256 over the identity tuple.
// Per-version keys are derived from a master secret (see Keyring), so rotating
// to a new version keeps units stamped with older versions verifiable.
type HMACSigner struct {
	keys *Keyring
}

// NewHMACSigner builds a signer from the master secret. Key material problems
// surface here, at configuration time, not per-request.
func NewHMACSigner(masterKey string, currentVersion int) (*HMACSigner, error) {
	keys, err := NewKeyring(masterKey, currentVersion)
	if err != nil {
		return nil, fmt.Errorf("build signing keyring: %w", err)
	}
	return &HMACSigner{keys: keys}, nil
}

func (s *HMACSigner) Sign(serial, gtin, batchNumber string) (string, error) {
	key, err := s.keys.Key(s.keys.CurrentVersion())
	if err != nil {
		return "", fmt.Errorf("signing key unavailable: %w", err)
	}
	return s.tag(key, serial, gtin, batchNumber), nil
}

func (s *HMACSigner) Verify(serial, gtin, batchNumber, tag string, keyVersion int) bool {
	key, err := s.keys.Key(keyVersion)
	if err != nil {
		return false
	}
	expected := s.tag(key, serial, gtin, batchNumber)
	return hmac.Equal([]byte(expected), []byte(tag))
}

func (s *HMACSigner) CurrentKeyVersion() int {
	return s.keys.CurrentVersion()
}

// Rotate activates the next key version. Units already stamped keep verifying
// against their recorded version.
func (s *HMACSigner) Rotate() int {
	return s.keys.Rotate()
}

func (s *HMACSigner) tag(key []byte, serial, gtin, batchNumber string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(serial + separator + gtin + separator + batchNumber))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// CarrierPayload formats the GS1-style data-matrix content embedding the same
// identity tuple that was signed, plus the expiration date:
// (01)GTIN(21)SERIAL(10)BATCH(17)YYMMDD. Pure formatting, no cryptographic
// property.
func CarrierPayload(gtin, serial, batchNumber string, expiration time.Time) string {
	return fmt.Sprintf("(01)%s(21)%s(10)%s(17)%s",
		gtin, serial, batchNumber, expiration.Format("060102"))
}

// NewSerial generates a serial number unique with overwhelming probability: a
// millisecond timestamp plus a random five-digit suffix. The unit store's
// unique constraint is the backstop on collision.
func NewSerial() string {
	n, err := rand.Int(rand.Reader, big.NewInt(100000))
	suffix := int64(0)
	if err == nil {
		suffix = n.Int64()
	}
	return fmt.Sprintf("SN%d%05d", time.Now().UnixMilli(), suffix)
}
