package exchange_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"roomkey/internal/domain"
	"roomkey/internal/services/exchange"
)

const room = domain.RoomID("room-1")

// fakeDiscovery pops one scripted result per CheckParticipants call,
// repeating the last one when the script runs out.
type fakeDiscovery struct {
	mu      sync.Mutex
	results []domain.RoleResult
	calls   int
	entered chan struct{} // closed on first call, if set
	gate    chan struct{} // blocks calls until closed, if set
}

func (f *fakeDiscovery) CheckParticipants(ctx context.Context, _ domain.RoomID) (domain.RoleResult, error) {
	f.mu.Lock()
	if f.entered != nil {
		close(f.entered)
		f.entered = nil
	}
	gate := f.gate
	idx := f.calls
	f.calls++
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	result := f.results[idx]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return domain.RoleResult{}, ctx.Err()
		}
	}
	return result, nil
}

func (f *fakeDiscovery) WaitForRoom(context.Context, domain.MeetingID, domain.RoomID) (domain.WaitOutcome, error) {
	return domain.WaitParticipantsFound, nil
}

type sentResponse struct {
	to  domain.ParticipantID
	key domain.RoomKey
}

// fakeTransport records calls; onRequest fires synchronously on every
// SendGroupKeyRequest with the running request count.
type fakeTransport struct {
	mu           sync.Mutex
	ensureCalls  int
	ensureLast   []domain.ParticipantID
	requestCalls int
	responses    []sentResponse
	onRequest    func(n int)
}

func (f *fakeTransport) SendGroupKeyRequest(context.Context, domain.RoomID) error {
	f.mu.Lock()
	f.requestCalls++
	n := f.requestCalls
	cb := f.onRequest
	f.mu.Unlock()
	if cb != nil {
		cb(n)
	}
	return nil
}

func (f *fakeTransport) SendGroupKeyResponse(_ context.Context, _ domain.RoomID, to domain.ParticipantID, key domain.RoomKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, sentResponse{to: to, key: key})
	return nil
}

func (f *fakeTransport) EnsureSenderKeyDistributed(_ context.Context, _ domain.RoomID, _ bool, members []domain.ParticipantID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensureCalls++
	f.ensureLast = members
	return nil
}

func (f *fakeTransport) HasSenderKey(domain.RoomID, domain.ParticipantID) bool { return true }

func (f *fakeTransport) SendToGuest(context.Context, domain.MeetingID, domain.SessionID, string, any) error {
	return nil
}

func (f *fakeTransport) SendToUser(context.Context, domain.ParticipantID, string, any) error {
	return nil
}

func (f *fakeTransport) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requestCalls
}

func newService(disc *fakeDiscovery, tr *fakeTransport) *exchange.Service {
	svc := exchange.New(disc, tr, nil, zerolog.Nop())
	svc.ResponseWindow = 150 * time.Millisecond
	svc.SenderKeyRetryDelay = 40 * time.Millisecond
	return svc
}

func keyOf(b byte) domain.RoomKey {
	var k domain.RoomKey
	for i := range k {
		k[i] = b
	}
	return k
}

func joiner(ids ...domain.ParticipantID) domain.RoleResult {
	return domain.RoleResult{ParticipantCount: len(ids), ParticipantIDs: ids}
}

func TestOriginatorPath(t *testing.T) {
	disc := &fakeDiscovery{results: []domain.RoleResult{{IsFirstParticipant: true}}}
	tr := &fakeTransport{}
	svc := newService(disc, tr)

	key, err := svc.ObtainKey(context.Background(), room)
	if err != nil {
		t.Fatalf("ObtainKey: %v", err)
	}
	if key == (domain.RoomKey{}) {
		t.Fatal("originator produced a zero key")
	}
	held, ok := svc.Key(room)
	if !ok || held != key {
		t.Fatal("generated key not held by coordinator")
	}
	if tr.requestCount() != 0 {
		t.Fatal("originator path issued a network key request")
	}
	if tr.ensureCalls == 0 {
		t.Fatal("originator did not announce its sender key")
	}
}

func TestJoinerAllReceived(t *testing.T) {
	disc := &fakeDiscovery{results: []domain.RoleResult{joiner("a", "b")}}
	tr := &fakeTransport{}
	svc := newService(disc, tr)

	shared := keyOf(1)
	tr.onRequest = func(int) {
		svc.HandleKeyResponse(room, "a", shared)
		svc.HandleKeyResponse(room, "b", shared)
	}

	key, err := svc.ObtainKey(context.Background(), room)
	if err != nil {
		t.Fatalf("ObtainKey: %v", err)
	}
	if key != shared {
		t.Fatal("joiner did not adopt the responded key")
	}
}

func TestFirstResponseWinsIsIdempotent(t *testing.T) {
	disc := &fakeDiscovery{results: []domain.RoleResult{joiner("a", "b")}}
	tr := &fakeTransport{}
	svc := newService(disc, tr)

	first, late := keyOf(1), keyOf(2)
	tr.onRequest = func(int) {
		// Duplicate and conflicting deliveries from "a" must be discarded.
		svc.HandleKeyResponse(room, "a", first)
		svc.HandleKeyResponse(room, "a", late)
		svc.HandleKeyResponse(room, "a", late)
		svc.HandleKeyResponse(room, "b", first)
	}

	key, err := svc.ObtainKey(context.Background(), room)
	if err != nil {
		t.Fatalf("ObtainKey: %v", err)
	}
	if key != first {
		t.Fatal("a later duplicate overwrote the first valid response")
	}
}

func TestUnseededSenderCannotSupplyKey(t *testing.T) {
	disc := &fakeDiscovery{results: []domain.RoleResult{joiner("a")}}
	tr := &fakeTransport{}
	svc := newService(disc, tr)

	tr.onRequest = func(n int) {
		if n == 1 {
			// Only a participant seeded at discovery may answer; an id that
			// never was part of the fan-out is dropped.
			svc.HandleKeyResponse(room, "ghost", keyOf(7))
		}
	}

	_, err := svc.ObtainKey(context.Background(), room)
	var xerr *domain.KeyExchangeError
	if !errors.As(err, &xerr) || xerr.Outcome != domain.NoneReceived {
		t.Fatalf("want NoneReceived, got %v", err)
	}
	if len(xerr.Responded) != 0 {
		t.Fatalf("unseeded sender counted as responded: %v", xerr.Responded)
	}
	if len(xerr.Missing) != 1 || xerr.Missing[0] != "a" {
		t.Fatalf("missing set: %v", xerr.Missing)
	}
	if _, ok := svc.Key(room); ok {
		t.Fatal("key from an unseeded sender was adopted")
	}
}

func TestNoneReceivedResendsOnce(t *testing.T) {
	disc := &fakeDiscovery{results: []domain.RoleResult{joiner("a")}}
	tr := &fakeTransport{}
	svc := newService(disc, tr)

	_, err := svc.ObtainKey(context.Background(), room)
	var xerr *domain.KeyExchangeError
	if !errors.As(err, &xerr) || xerr.Outcome != domain.NoneReceived {
		t.Fatalf("want NoneReceived, got %v", err)
	}
	if len(xerr.Missing) != 1 || xerr.Missing[0] != "a" {
		t.Fatalf("missing set: %v", xerr.Missing)
	}
	// Initial request plus exactly one delayed resend after the sender-key
	// redistribution.
	if got := tr.requestCount(); got != 2 {
		t.Fatalf("want 2 key requests, got %d", got)
	}
	if _, ok := svc.Key(room); ok {
		t.Fatal("key held despite zero responses")
	}
}

func TestPartialReceivedHoldsKey(t *testing.T) {
	disc := &fakeDiscovery{results: []domain.RoleResult{joiner("a", "b")}}
	tr := &fakeTransport{}
	svc := newService(disc, tr)

	shared := keyOf(3)
	tr.onRequest = func(n int) {
		if n == 1 {
			svc.HandleKeyResponse(room, "a", shared)
		}
	}

	_, err := svc.ObtainKey(context.Background(), room)
	var xerr *domain.KeyExchangeError
	if !errors.As(err, &xerr) || xerr.Outcome != domain.PartialReceived {
		t.Fatalf("want PartialReceived, got %v", err)
	}
	if len(xerr.Responded) != 1 || xerr.Responded[0] != "a" {
		t.Fatalf("responded set: %v", xerr.Responded)
	}
	if len(xerr.Missing) != 1 || xerr.Missing[0] != "b" {
		t.Fatalf("missing set: %v", xerr.Missing)
	}
	// Proceeding with partial coverage is the caller's explicit choice; the
	// collected key must be available for it.
	held, ok := svc.Key(room)
	if !ok || held != shared {
		t.Fatal("partial run did not retain the collected key")
	}
}

func TestRetryReEvaluatesRole(t *testing.T) {
	disc := &fakeDiscovery{results: []domain.RoleResult{
		joiner("a"),                 // first attempt: joiner, nobody answers
		{IsFirstParticipant: true},  // retry: the only peer left
	}}
	tr := &fakeTransport{}
	svc := newService(disc, tr)

	if _, err := svc.ObtainKey(context.Background(), room); err == nil {
		t.Fatal("first attempt should have failed with NoneReceived")
	}
	requestsAfterFirst := tr.requestCount()

	key, err := svc.ObtainKey(context.Background(), room)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if key == (domain.RoomKey{}) {
		t.Fatal("retry did not generate a key")
	}
	if tr.requestCount() != requestsAfterFirst {
		t.Fatal("retry against an empty room still issued a joiner request")
	}
}

func TestConcurrentRunRejected(t *testing.T) {
	entered := make(chan struct{})
	gate := make(chan struct{})
	disc := &fakeDiscovery{
		results: []domain.RoleResult{{IsFirstParticipant: true}},
		entered: entered,
		gate:    gate,
	}
	tr := &fakeTransport{}
	svc := newService(disc, tr)

	done := make(chan error, 1)
	go func() {
		_, err := svc.ObtainKey(context.Background(), room)
		done <- err
	}()
	<-entered

	if _, err := svc.ObtainKey(context.Background(), room); !errors.Is(err, domain.ErrExchangeInFlight) {
		t.Fatalf("want ErrExchangeInFlight, got %v", err)
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("first run: %v", err)
	}
}

func TestLateResponseDropped(t *testing.T) {
	disc := &fakeDiscovery{results: []domain.RoleResult{joiner("a")}}
	tr := &fakeTransport{}
	svc := newService(disc, tr)

	// No run is active; this must neither panic nor install a key.
	svc.HandleKeyResponse(room, "a", keyOf(9))
	if _, ok := svc.Key(room); ok {
		t.Fatal("late response mutated torn-down state")
	}
}

func TestCancellationDropsRun(t *testing.T) {
	disc := &fakeDiscovery{results: []domain.RoleResult{joiner("a")}}
	tr := &fakeTransport{}
	svc := newService(disc, tr)
	svc.ResponseWindow = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := svc.ObtainKey(ctx, room); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want context deadline, got %v", err)
	}
	// The cancelled run is gone; a straggler response is dropped.
	svc.HandleKeyResponse(room, "a", keyOf(4))
	if _, ok := svc.Key(room); ok {
		t.Fatal("straggler response reached a cancelled run")
	}
}

func TestResponderServesHeldKey(t *testing.T) {
	disc := &fakeDiscovery{results: []domain.RoleResult{{IsFirstParticipant: true}}}
	tr := &fakeTransport{}
	svc := newService(disc, tr)

	key, err := svc.GenerateKey(context.Background(), room)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	if err := svc.HandleKeyRequest(context.Background(), room, "joiner-1"); err != nil {
		t.Fatalf("HandleKeyRequest: %v", err)
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()
	if len(tr.responses) != 1 {
		t.Fatalf("want 1 key response, got %d", len(tr.responses))
	}
	if tr.responses[0].to != "joiner-1" || tr.responses[0].key != key {
		t.Fatal("responder sent the wrong key or recipient")
	}
	if len(tr.ensureLast) != 1 || tr.ensureLast[0] != "joiner-1" {
		t.Fatal("responder did not force sender-key distribution to the requester")
	}
}

func TestResponderIgnoresRequestWithoutKey(t *testing.T) {
	disc := &fakeDiscovery{results: []domain.RoleResult{{IsFirstParticipant: true}}}
	tr := &fakeTransport{}
	svc := newService(disc, tr)

	if err := svc.HandleKeyRequest(context.Background(), room, "joiner-1"); err != nil {
		t.Fatalf("HandleKeyRequest: %v", err)
	}
	if len(tr.responses) != 0 {
		t.Fatal("responded despite holding no key")
	}
}

func TestForgetWipesKey(t *testing.T) {
	disc := &fakeDiscovery{results: []domain.RoleResult{{IsFirstParticipant: true}}}
	tr := &fakeTransport{}
	svc := newService(disc, tr)

	if _, err := svc.GenerateKey(context.Background(), room); err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	svc.Forget(room)
	if _, ok := svc.Key(room); ok {
		t.Fatal("key survives Forget")
	}
}

// Room empty, A originates; B arrives, requests, and A's answer satisfies B.
func TestOriginatorThenJoinerScenario(t *testing.T) {
	discA := &fakeDiscovery{results: []domain.RoleResult{{IsFirstParticipant: true}}}
	trA := &fakeTransport{}
	svcA := newService(discA, trA)

	keyA, err := svcA.ObtainKey(context.Background(), room)
	if err != nil {
		t.Fatalf("A ObtainKey: %v", err)
	}

	discB := &fakeDiscovery{results: []domain.RoleResult{joiner("A")}}
	trB := &fakeTransport{}
	svcB := newService(discB, trB)
	trB.onRequest = func(int) {
		// A receives B's broadcast and replies with its held key.
		if err := svcA.HandleKeyRequest(context.Background(), room, "B"); err != nil {
			t.Errorf("A HandleKeyRequest: %v", err)
		}
		trA.mu.Lock()
		resp := trA.responses[len(trA.responses)-1]
		trA.mu.Unlock()
		svcB.HandleKeyResponse(room, "A", resp.key)
	}

	keyB, err := svcB.ObtainKey(context.Background(), room)
	if err != nil {
		t.Fatalf("B ObtainKey: %v", err)
	}
	if keyB != keyA {
		t.Fatal("joiner ended up with a different room key than the originator")
	}
}
