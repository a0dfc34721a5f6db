package crypto

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"roomkey/internal/domain"
)

// GenerateRoomKey mints the shared symmetric key for one room session.
// The size matches the media layer's AEAD key size.
func GenerateRoomKey() (domain.RoomKey, error) {
	var key domain.RoomKey
	if len(key) != chacha20poly1305.KeySize {
		return key, fmt.Errorf("%w: unexpected room key size %d", domain.ErrCryptoUnavailable, len(key))
	}
	if _, err := rand.Read(key[:]); err != nil {
		return key, fmt.Errorf("%w: %v", domain.ErrCryptoUnavailable, err)
	}
	return key, nil
}
