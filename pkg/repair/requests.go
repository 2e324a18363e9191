package repair

import (
	"fmt"

	"github.com/shredchain/shredger/pkg/types"
	"github.com/shredchain/shredger/pkg/wire"
)

// Kind discriminates the three repair request variants on the wire.
type Kind uint8

const (
	KindWindowIndex Kind = iota
	KindHighestWindowIndex
	KindOrphan
)

// Request is a repair request kind paired with the slot (and, for the
// Shred/HighestShred kinds, the index) it targets. It is the in-memory
// shape the repair loop ranks and schedules; EncodeRequest turns one
// into the wire form a peer's serve-repair responder understands.
type Request struct {
	Kind  Kind
	Slot  types.Slot
	Index uint64 // meaningful for KindWindowIndex/KindHighestWindowIndex only
}

// EncodeRequest serializes a repair request: a tag byte selecting the
// variant, the requester's pubkey (the only ContactInfo field written;
// its addresses are not sent), the target slot, an optional
// index, and a trailing 32-bit nonce — spec.md §4.3's "request kinds on
// the wire", built on the same length-prefixed encoding the shred stream
// and entry serialization use (pkg/wire), per spec.md §6's note that the
// repair wire format "matches the shred stream's encoding".
func EncodeRequest(req Request, from types.ContactInfo, nonce uint32) []byte {
	w := wire.NewWriter()
	w.WriteUint8(uint8(req.Kind))
	w.WriteString(from.Pubkey)
	w.WriteUint64(uint64(req.Slot))
	if req.Kind != KindOrphan {
		w.WriteUint64(req.Index)
	}
	w.WriteUint32(nonce)
	return w.Bytes()
}

// DecodeRequest inverts EncodeRequest, as done by a serve-repair
// responder receiving a request packet.
func DecodeRequest(buf []byte) (req Request, fromPubkey string, nonce uint32, err error) {
	r := wire.NewReader(buf)
	tag, err := r.ReadUint8()
	if err != nil {
		return Request{}, "", 0, fmt.Errorf("repair: read kind: %w", err)
	}
	kind := Kind(tag)
	if kind != KindWindowIndex && kind != KindHighestWindowIndex && kind != KindOrphan {
		return Request{}, "", 0, fmt.Errorf("repair: unknown request kind %d", tag)
	}
	fromPubkey, err = r.ReadString()
	if err != nil {
		return Request{}, "", 0, fmt.Errorf("repair: read from: %w", err)
	}
	slot, err := r.ReadUint64()
	if err != nil {
		return Request{}, "", 0, fmt.Errorf("repair: read slot: %w", err)
	}
	req = Request{Kind: kind, Slot: types.Slot(slot)}
	if kind != KindOrphan {
		idx, err := r.ReadUint64()
		if err != nil {
			return Request{}, "", 0, fmt.Errorf("repair: read index: %w", err)
		}
		req.Index = idx
	}
	nonce, err = r.ReadUint32()
	if err != nil {
		return Request{}, "", 0, fmt.Errorf("repair: read nonce: %w", err)
	}
	return req, fromPubkey, nonce, nil
}

// EncodeResponse appends the fixed 4-byte nonce tail to a shred's raw
// bytes, per spec.md §6: "a single UDP packet per shred = shred bytes ‖
// nonce: u32 in the fixed tail slot."
func EncodeResponse(shredBytes []byte, nonce uint32) []byte {
	out := make([]byte, 0, len(shredBytes)+4)
	out = append(out, shredBytes...)
	w := wire.NewWriter()
	w.WriteUint32(nonce)
	return append(out, w.Bytes()...)
}

// DecodeResponse splits a response packet back into shred bytes and its
// trailing nonce.
func DecodeResponse(packet []byte) (shredBytes []byte, nonce uint32, err error) {
	if len(packet) < 4 {
		return nil, 0, fmt.Errorf("repair: response packet too short: %d bytes", len(packet))
	}
	split := len(packet) - 4
	r := wire.NewReader(packet[split:])
	nonce, err = r.ReadUint32()
	if err != nil {
		return nil, 0, fmt.Errorf("repair: read nonce: %w", err)
	}
	return packet[:split], nonce, nil
}
