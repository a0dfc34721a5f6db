package guest_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"roomkey/internal/domain"
	"roomkey/internal/services/guest"
	"roomkey/internal/services/keymaterial"
	"roomkey/internal/store"
)

type joinAPI struct {
	err     error
	bundles []domain.PublicKeyBundle
}

func (f *joinAPI) GetMeeting(context.Context, domain.MeetingID) (domain.Meeting, error) {
	return domain.Meeting{}, nil
}

func (f *joinAPI) ListParticipants(context.Context, domain.MeetingID) ([]domain.ParticipantID, error) {
	return nil, nil
}

func (f *joinAPI) RequestAdmission(context.Context, domain.MeetingID, domain.SessionID) error {
	return nil
}

func (f *joinAPI) JoinExternal(_ context.Context, _ string, displayName string, bundle domain.PublicKeyBundle) (domain.ExternalSession, error) {
	f.bundles = append(f.bundles, bundle)
	if f.err != nil {
		return domain.ExternalSession{}, f.err
	}
	return domain.ExternalSession{
		SessionID:   "sess-1",
		MeetingID:   "meet-1",
		DisplayName: displayName,
	}, nil
}

func newService(api *joinAPI) (*guest.Service, *store.SessionStore) {
	st := store.NewSessionStore()
	keys := keymaterial.New(zerolog.Nop())
	return guest.New(keys, st, api, zerolog.Nop()), st
}

func TestRegisterPersistsMaterialAndSession(t *testing.T) {
	api := &joinAPI{}
	svc, st := newService(api)

	sess, err := svc.Register(context.Background(), "tok-1", "Alice")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if sess.SessionID != "sess-1" || sess.MeetingID != "meet-1" || sess.DisplayName != "Alice" {
		t.Fatalf("session: %+v", sess)
	}

	for _, key := range []string{
		guest.Namespace + "identity_key_public",
		guest.Namespace + "identity_key_private",
		guest.Namespace + "signing_key_public",
		guest.Namespace + "signing_key_private",
		guest.Namespace + "signed_pre_key",
		guest.Namespace + "pre_keys",
		guest.Namespace + "next_pre_key_id",
		guest.Namespace + "session_id",
		guest.Namespace + "meeting_id",
		guest.Namespace + "display_name",
	} {
		if _, ok := st.Get(key); !ok {
			t.Fatalf("store missing %q after Register", key)
		}
	}

	if len(api.bundles) != 1 {
		t.Fatalf("JoinExternal calls: %d", len(api.bundles))
	}
	if got := len(api.bundles[0].OneTimePreKeys); got != keymaterial.OneTimePreKeyBatch {
		t.Fatalf("registered pre-key pool size: want %d, got %d", keymaterial.OneTimePreKeyBatch, got)
	}

	got, ok := svc.Session()
	if !ok || got != sess {
		t.Fatal("Session() does not round-trip the registered session")
	}
}

func TestRegisterFailureWrapsSentinel(t *testing.T) {
	api := &joinAPI{err: errors.New("token expired")}
	svc, st := newService(api)

	if _, err := svc.Register(context.Background(), "tok-bad", "Alice"); !errors.Is(err, domain.ErrRegistrationFailed) {
		t.Fatalf("want ErrRegistrationFailed, got %v", err)
	}
	if _, ok := svc.Session(); ok {
		t.Fatal("failed registration left a session behind")
	}
	// Key material persisted before the failed call stays purgeable.
	st.Clear(guest.Namespace)
	if st.Len() != 0 {
		t.Fatal("namespace clear left keys behind")
	}
}

func TestSecondRegisterReusesIdentity(t *testing.T) {
	api := &joinAPI{}
	svc, _ := newService(api)

	if _, err := svc.Register(context.Background(), "tok-1", "Alice"); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if _, err := svc.Register(context.Background(), "tok-2", "Alice"); err != nil {
		t.Fatalf("second Register: %v", err)
	}
	if len(api.bundles) != 2 {
		t.Fatalf("JoinExternal calls: %d", len(api.bundles))
	}
	if api.bundles[0].IdentityKey != api.bundles[1].IdentityKey {
		t.Fatal("second registration regenerated the identity key")
	}
	if api.bundles[0].SigningKey != api.bundles[1].SigningKey {
		t.Fatal("second registration regenerated the signing key")
	}
}

func TestDisposePurgesNamespace(t *testing.T) {
	api := &joinAPI{}
	svc, st := newService(api)

	sess, err := svc.Register(context.Background(), "tok-1", "Alice")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if st.Len() == 0 {
		t.Fatal("nothing persisted before Dispose")
	}

	svc.Dispose(sess.MeetingID)
	if st.Len() != 0 {
		t.Fatalf("store still holds %d keys after Dispose", st.Len())
	}
	if _, ok := svc.Session(); ok {
		t.Fatal("session handle survived Dispose")
	}
}
