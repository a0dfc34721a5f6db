package keymaterial

import (
	"time"

	"github.com/rs/zerolog"

	"roomkey/internal/crypto"
	"roomkey/internal/domain"
)

const (
	// SignedPreKeyLifetime is how long a signed pre-key stays valid. Past
	// this age it is replaced wholesale before use.
	SignedPreKeyLifetime = 7 * 24 * time.Hour

	// OneTimePreKeyFloor is the minimum pool size. A pool below the floor is
	// topped up with a fresh batch.
	OneTimePreKeyFloor = 30

	// OneTimePreKeyBatch is how many one-time pre-keys a top-up mints.
	OneTimePreKeyBatch = 30
)

// Service implements domain.KeyMaterialService.
type Service struct {
	log zerolog.Logger

	// Now is the clock used for signed pre-key aging.
	Now func() time.Time
}

// New returns a key material service.
func New(log zerolog.Logger) *Service {
	return &Service{
		log: log.With().Str("component", "keymaterial").Logger(),
		Now: time.Now,
	}
}

// EnsureKeyMaterial returns a complete key bundle, reusing whatever parts of
// existing are still valid:
//
//   - a missing identity key pair is generated;
//   - a signed pre-key older than SignedPreKeyLifetime (or malformed) is
//     regenerated, otherwise kept;
//   - a one-time pre-key pool below OneTimePreKeyFloor is replaced with a
//     batch of exactly OneTimePreKeyBatch new entries, ids continuing from
//     NextPreKeyID.
//
// Malformed stored material is treated as missing and regenerated rather
// than surfaced as an error. Only an unusable crypto environment fails, with
// domain.ErrCryptoUnavailable.
func (s *Service) EnsureKeyMaterial(existing *domain.KeyBundle) (domain.KeyBundle, error) {
	var bundle domain.KeyBundle
	if existing != nil {
		bundle = *existing
	}

	if err := s.ensureIdentity(&bundle); err != nil {
		return domain.KeyBundle{}, err
	}
	if err := s.ensureSignedPreKey(&bundle); err != nil {
		return domain.KeyBundle{}, err
	}
	if err := s.ensureOneTimePreKeys(&bundle); err != nil {
		return domain.KeyBundle{}, err
	}
	return bundle, nil
}

func (s *Service) ensureIdentity(b *domain.KeyBundle) error {
	var zero domain.X25519Public
	if b.Identity.XPub != zero {
		return nil
	}
	xPriv, xPub, err := crypto.GenerateX25519()
	if err != nil {
		return err
	}
	edPriv, edPub, err := crypto.GenerateEd25519()
	if err != nil {
		return err
	}
	b.Identity = domain.Identity{XPub: xPub, XPriv: xPriv, EdPub: edPub, EdPriv: edPriv}
	s.log.Debug().
		Str("fingerprint", crypto.Fingerprint(xPub.Slice())).
		Msg("generated identity key pair")
	return nil
}

func (s *Service) ensureSignedPreKey(b *domain.KeyBundle) error {
	if s.signedPreKeyUsable(b.SignedPreKey) {
		return nil
	}
	priv, pub, err := crypto.GenerateX25519()
	if err != nil {
		return err
	}
	b.SignedPreKey = domain.SignedPreKey{
		ID:        b.SignedPreKey.ID + 1,
		Public:    pub,
		Private:   priv,
		Signature: crypto.SignEd25519(b.Identity.EdPriv, pub.Slice()),
		CreatedAt: s.Now().UnixMilli(),
	}
	s.log.Debug().Int("id", b.SignedPreKey.ID).Msg("generated signed pre-key")
	return nil
}

// signedPreKeyUsable rejects zero, malformed and expired signed pre-keys.
func (s *Service) signedPreKeyUsable(spk domain.SignedPreKey) bool {
	var zero domain.X25519Public
	if spk.Public == zero || len(spk.Signature) == 0 || spk.CreatedAt <= 0 {
		return false
	}
	age := s.Now().Sub(time.UnixMilli(spk.CreatedAt))
	return age <= SignedPreKeyLifetime
}

func (s *Service) ensureOneTimePreKeys(b *domain.KeyBundle) error {
	// Filter into a fresh slice; the caller's backing array is not ours to
	// rewrite.
	pool := make([]domain.OneTimePreKey, 0, len(b.OneTimePreKeys))
	var zero domain.X25519Public
	for _, k := range b.OneTimePreKeys {
		if k.Public == zero {
			continue // malformed entry, drop
		}
		pool = append(pool, k)
	}
	b.OneTimePreKeys = pool

	if len(b.OneTimePreKeys) >= OneTimePreKeyFloor {
		return nil
	}
	if b.NextPreKeyID < 0 {
		b.NextPreKeyID = 0
	}
	minted := make([]domain.OneTimePreKey, 0, OneTimePreKeyBatch)
	for i := 0; i < OneTimePreKeyBatch; i++ {
		priv, pub, err := crypto.GenerateX25519()
		if err != nil {
			return err
		}
		minted = append(minted, domain.OneTimePreKey{
			ID:      b.NextPreKeyID + i,
			Public:  pub,
			Private: priv,
		})
	}
	// The transport may have consumed any of the old entries already, so a
	// depleted pool is replaced by the fresh batch rather than padded.
	b.OneTimePreKeys = minted
	b.NextPreKeyID += OneTimePreKeyBatch
	s.log.Debug().
		Int("minted", len(minted)).
		Int("next_id", b.NextPreKeyID).
		Msg("topped up one-time pre-key pool")
	return nil
}

// Compile-time assertion that Service implements domain.KeyMaterialService.
var _ domain.KeyMaterialService = (*Service)(nil)
