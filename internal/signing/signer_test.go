package signing

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSigner(t *testing.T) *HMACSigner {
	t.Helper()
	signer, err := NewHMACSigner("unit-test-master-key-material", 1)
	require.NoError(t, err)
	return signer
}

func TestNewHMACSigner(t *testing.T) {
	t.Run("short master key rejected", func(t *testing.T) {
		_, err := NewHMACSigner("short", 1)
		assert.Error(t, err)
	})

	t.Run("zero key version rejected", func(t *testing.T) {
		_, err := NewHMACSigner("unit-test-master-key-material", 0)
		assert.Error(t, err)
	})
}

func TestSignVerifyRoundTrip(t *testing.T) {
	signer := newTestSigner(t)

	tag, err := signer.Sign("SN100", "01234567890123", "LOT-7")
	require.NoError(t, err)
	require.NotEmpty(t, tag)

	assert.True(t, signer.Verify("SN100", "01234567890123", "LOT-7", tag, 1))

	t.Run("deterministic for same inputs", func(t *testing.T) {
		again, err := signer.Sign("SN100", "01234567890123", "LOT-7")
		require.NoError(t, err)
		assert.Equal(t, tag, again)
	})

	t.Run("any single character mutation fails", func(t *testing.T) {
		for i := range tag {
			mutated := []byte(tag)
			if mutated[i] == 'A' {
				mutated[i] = 'B'
			} else {
				mutated[i] = 'A'
			}
			assert.False(t, signer.Verify("SN100", "01234567890123", "LOT-7", string(mutated), 1),
				"mutation at index %d should fail verification", i)
		}
	})

	t.Run("different identity tuple fails", func(t *testing.T) {
		assert.False(t, signer.Verify("SN101", "01234567890123", "LOT-7", tag, 1))
		assert.False(t, signer.Verify("SN100", "01234567890124", "LOT-7", tag, 1))
		assert.False(t, signer.Verify("SN100", "01234567890123", "LOT-8", tag, 1))
	})

	t.Run("unknown key version fails closed", func(t *testing.T) {
		assert.False(t, signer.Verify("SN100", "01234567890123", "LOT-7", tag, 99))
		assert.False(t, signer.Verify("SN100", "01234567890123", "LOT-7", tag, 0))
	})
}

func TestRotationKeepsOldUnitsVerifiable(t *testing.T) {
	signer := newTestSigner(t)

	oldTag, err := signer.Sign("SN200", "04012345678901", "LOT-9")
	require.NoError(t, err)

	require.Equal(t, 2, signer.Rotate())
	assert.Equal(t, 2, signer.CurrentKeyVersion())

	newTag, err := signer.Sign("SN200", "04012345678901", "LOT-9")
	require.NoError(t, err)
	assert.NotEqual(t, oldTag, newTag, "rotated key must produce a different tag")

	assert.True(t, signer.Verify("SN200", "04012345678901", "LOT-9", oldTag, 1))
	assert.True(t, signer.Verify("SN200", "04012345678901", "LOT-9", newTag, 2))
	assert.False(t, signer.Verify("SN200", "04012345678901", "LOT-9", oldTag, 2))
}

func TestCarrierPayload(t *testing.T) {
	exp := time.Date(2027, 3, 15, 0, 0, 0, 0, time.UTC)
	payload := CarrierPayload("01234567890123", "SN300", "LOT-3", exp)
	assert.Equal(t, "(01)01234567890123(21)SN300(10)LOT-3(17)270315", payload)
}

func TestNewSerial(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		serial := NewSerial()
		assert.True(t, strings.HasPrefix(serial, "SN"))
		assert.False(t, seen[serial], "serial %s repeated", serial)
		seen[serial] = true
	}
}
