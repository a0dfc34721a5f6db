package app

import (
	"context"

	"roomkey/internal/domain"
	"roomkey/internal/relay"
	admissionsvc "roomkey/internal/services/admission"
	discoverysvc "roomkey/internal/services/discovery"
	exchangesvc "roomkey/internal/services/exchange"
	guestsvc "roomkey/internal/services/guest"
	keymaterialsvc "roomkey/internal/services/keymaterial"
	"roomkey/internal/signaling"
	"roomkey/internal/store"
	"roomkey/internal/transport"
)

// Wire bundles the store, clients and services for one session.
type Wire struct {
	Store     *store.SessionStore
	Signal    *signaling.Client
	Transport *transport.Socket
	API       domain.MeetingAPI

	KeyMaterial domain.KeyMaterialService
	Discovery   domain.DiscoveryService
	Exchange    domain.ExchangeService
	Admission   domain.AdmissionService
	Guests      domain.GuestService
}

// NewWire constructs the dependency graph from cfg. The signaling socket is
// not connected yet; call Connect before running protocol flows.
func NewWire(cfg Config) *Wire {
	sessionStore := store.NewSessionStore()
	signal := signaling.NewClient(cfg.Log)
	sock := transport.NewSocket(signal, cfg.Log)
	api := relay.NewHTTP(cfg.APIBase, cfg.HTTP)

	keyMaterial := keymaterialsvc.New(cfg.Log)
	discovery := discoverysvc.New(signal, api, cfg.Log)
	exchange := exchangesvc.New(discovery, sock, signal, cfg.Log)
	admission := admissionsvc.New(api, signal, cfg.Log)
	guests := guestsvc.New(keyMaterial, sessionStore, api, cfg.Log)

	return &Wire{
		Store:       sessionStore,
		Signal:      signal,
		Transport:   sock,
		API:         api,
		KeyMaterial: keyMaterial,
		Discovery:   discovery,
		Exchange:    exchange,
		Admission:   admission,
		Guests:      guests,
	}
}

// Connect dials the signaling socket and attaches the transport pump so
// inbound key requests and responses reach the coordinator.
func (w *Wire) Connect(ctx context.Context, socketURL string) error {
	if err := w.Signal.Connect(ctx, socketURL); err != nil {
		return err
	}
	go w.Transport.Attach(ctx, w.Exchange)
	return nil
}

// Close tears the session down: in-flight timers and listeners die with the
// socket, held room keys are wiped, and the bootstrap store is cleared.
func (w *Wire) Close() {
	w.Signal.Close()
	if c, ok := w.Exchange.(interface{ Close() }); ok {
		c.Close()
	}
	w.Store.Clear("")
}
