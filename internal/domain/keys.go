package domain

import (
	"encoding/json"
	"fmt"
)

// ------------- X25519 -------------

type X25519Private [32]byte
type X25519Public [32]byte

func (k X25519Private) Slice() []byte { return k[:] }
func (k X25519Public) Slice() []byte  { return k[:] }

func (k X25519Private) MarshalJSON() ([]byte, error)  { return marshalKey(k[:]) }
func (k *X25519Private) UnmarshalJSON(b []byte) error { return unmarshalKey(b, k[:]) }
func (k X25519Public) MarshalJSON() ([]byte, error)   { return marshalKey(k[:]) }
func (k *X25519Public) UnmarshalJSON(b []byte) error  { return unmarshalKey(b, k[:]) }

// ------------- Ed25519 -------------

// Ed25519Private uses the ed25519.PrivateKey layout (seed || public).
type Ed25519Private [64]byte
type Ed25519Public [32]byte

func (k Ed25519Private) Slice() []byte { return k[:] }
func (k Ed25519Public) Slice() []byte  { return k[:] }

func (k Ed25519Private) MarshalJSON() ([]byte, error)  { return marshalKey(k[:]) }
func (k *Ed25519Private) UnmarshalJSON(b []byte) error { return unmarshalKey(b, k[:]) }
func (k Ed25519Public) MarshalJSON() ([]byte, error)   { return marshalKey(k[:]) }
func (k *Ed25519Public) UnmarshalJSON(b []byte) error  { return unmarshalKey(b, k[:]) }

// ------------- Room key -------------

// RoomKey is the shared symmetric key of one media room session. It lives
// only in memory for the duration of the call and is never written to
// durable storage or logged.
type RoomKey [32]byte

func (k RoomKey) Slice() []byte { return k[:] }

func (k RoomKey) MarshalJSON() ([]byte, error)  { return marshalKey(k[:]) }
func (k *RoomKey) UnmarshalJSON(b []byte) error { return unmarshalKey(b, k[:]) }

// marshalKey encodes fixed-size key material as base64 for stable JSON.
func marshalKey(b []byte) ([]byte, error) { return json.Marshal(b) }

func unmarshalKey(data []byte, dst []byte) error {
	var raw []byte
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != len(dst) {
		return fmt.Errorf("key: want %d bytes, got %d", len(dst), len(raw))
	}
	copy(dst, raw)
	return nil
}
