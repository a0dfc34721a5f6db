// Package guest manages the temporary identity of an externally invited
// participant: bootstrapping key material into the session store,
// registering the invitation token, and guaranteeing that every private key
// is purged when the meeting is torn down.
package guest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"roomkey/internal/domain"
)

// Namespace prefixes every store key a guest session writes, so one Clear
// call purges the lot, half-initialized state included.
const Namespace = "guest:"

// Logical store keys under Namespace.
const (
	keyIdentityPublic  = Namespace + "identity_key_public"
	keyIdentityPrivate = Namespace + "identity_key_private"
	keySigningPublic   = Namespace + "signing_key_public"
	keySigningPrivate  = Namespace + "signing_key_private"
	keySignedPreKey    = Namespace + "signed_pre_key"
	keyPreKeys         = Namespace + "pre_keys"
	keyNextPreKeyID    = Namespace + "next_pre_key_id"
	keySessionID       = Namespace + "session_id"
	keyMeetingID       = Namespace + "meeting_id"
	keyDisplayName     = Namespace + "display_name"
)

// Service implements domain.GuestService.
type Service struct {
	keys  domain.KeyMaterialService
	store domain.BootstrapStore
	api   domain.MeetingAPI
	log   zerolog.Logger
}

// New returns a guest lifecycle service.
func New(keys domain.KeyMaterialService, store domain.BootstrapStore, api domain.MeetingAPI, log zerolog.Logger) *Service {
	return &Service{
		keys:  keys,
		store: store,
		api:   api,
		log:   log.With().Str("component", "guest").Logger(),
	}
}

// Register bootstraps key material (reusing any still-valid stored parts),
// persists it, and registers the invitation token with the meeting service.
// The returned session id is the handle for all subsequent admission and
// key-exchange calls by this guest.
func (s *Service) Register(ctx context.Context, token, displayName string) (domain.ExternalSession, error) {
	bundle, err := s.keys.EnsureKeyMaterial(s.loadStored())
	if err != nil {
		return domain.ExternalSession{}, err
	}
	s.persist(bundle)

	sess, err := s.api.JoinExternal(ctx, token, displayName, bundle.Public())
	if err != nil {
		if !errors.Is(err, domain.ErrRegistrationFailed) {
			err = fmt.Errorf("%w: %v", domain.ErrRegistrationFailed, err)
		}
		return domain.ExternalSession{}, err
	}

	s.store.Set(keySessionID, []byte(sess.SessionID))
	s.store.Set(keyMeetingID, []byte(sess.MeetingID))
	s.store.Set(keyDisplayName, []byte(sess.DisplayName))
	s.log.Info().
		Str("session", sess.SessionID.String()).
		Str("meeting", sess.MeetingID.String()).
		Msg("guest registered")
	return sess, nil
}

// Session returns the registered guest session, if one exists in the store.
func (s *Service) Session() (domain.ExternalSession, bool) {
	id, ok := s.store.Get(keySessionID)
	if !ok {
		return domain.ExternalSession{}, false
	}
	meeting, _ := s.store.Get(keyMeetingID)
	name, _ := s.store.Get(keyDisplayName)
	return domain.ExternalSession{
		SessionID:   domain.SessionID(id),
		MeetingID:   domain.MeetingID(meeting),
		DisplayName: string(name),
	}, true
}

// Dispose purges every key under the guest namespace. Private key material
// for a guest identity must not outlive the meeting it was created for; this
// is a security requirement, not cleanup.
func (s *Service) Dispose(meeting domain.MeetingID) {
	s.store.Clear(Namespace)
	s.log.Info().Str("meeting", meeting.String()).Msg("guest session disposed, key material purged")
}

// loadStored reassembles the stored bundle. Anything missing or malformed
// is left zero so EnsureKeyMaterial regenerates it.
func (s *Service) loadStored() *domain.KeyBundle {
	var b domain.KeyBundle
	any := false

	if pub, ok := s.store.Get(keyIdentityPublic); ok {
		if priv, ok := s.store.Get(keyIdentityPrivate); ok && len(pub) == 32 && len(priv) == 32 {
			copy(b.Identity.XPub[:], pub)
			copy(b.Identity.XPriv[:], priv)
			any = true
		}
	}
	if pub, ok := s.store.Get(keySigningPublic); ok {
		if priv, ok := s.store.Get(keySigningPrivate); ok && len(pub) == 32 && len(priv) == 64 {
			copy(b.Identity.EdPub[:], pub)
			copy(b.Identity.EdPriv[:], priv)
		}
	}
	if raw, ok := s.store.Get(keySignedPreKey); ok {
		var spk domain.SignedPreKey
		if err := json.Unmarshal(raw, &spk); err == nil {
			b.SignedPreKey = spk
			any = true
		} else {
			s.log.Warn().Err(err).Msg("stored signed pre-key unparseable, will regenerate")
		}
	}
	if raw, ok := s.store.Get(keyPreKeys); ok {
		var pool []domain.OneTimePreKey
		if err := json.Unmarshal(raw, &pool); err == nil {
			b.OneTimePreKeys = pool
			any = true
		} else {
			s.log.Warn().Err(err).Msg("stored pre-key pool unparseable, will regenerate")
		}
	}
	if raw, ok := s.store.Get(keyNextPreKeyID); ok {
		if n, err := strconv.Atoi(string(raw)); err == nil {
			b.NextPreKeyID = n
		}
	}

	if !any {
		return nil
	}
	return &b
}

// persist writes the bundle under the guest namespace.
func (s *Service) persist(b domain.KeyBundle) {
	s.store.Set(keyIdentityPublic, b.Identity.XPub.Slice())
	s.store.Set(keyIdentityPrivate, b.Identity.XPriv.Slice())
	s.store.Set(keySigningPublic, b.Identity.EdPub.Slice())
	s.store.Set(keySigningPrivate, b.Identity.EdPriv.Slice())

	if raw, err := json.Marshal(b.SignedPreKey); err == nil {
		s.store.Set(keySignedPreKey, raw)
	}
	if raw, err := json.Marshal(b.OneTimePreKeys); err == nil {
		s.store.Set(keyPreKeys, raw)
	}
	s.store.Set(keyNextPreKeyID, []byte(strconv.Itoa(b.NextPreKeyID)))
}

// Compile-time assertion that Service implements domain.GuestService.
var _ domain.GuestService = (*Service)(nil)
