package shred

import (
	"crypto/ed25519"
	"encoding/binary"
	"fmt"

	"github.com/shredchain/shredger/pkg/types"
)

// Shred wraps one exactly-PacketDataSize-byte wire frame. Every accessor
// reads straight out of buf at the fixed offsets from spec.md §6; nothing
// is cached or parsed eagerly, matching the spec's intent that parsing be
// "parse-free" on the critical path.
type Shred struct {
	buf []byte
}

// FromBytes wraps an existing PacketDataSize-byte buffer without copying.
// Callers that don't own buf exclusively should clone first.
func FromBytes(buf []byte) (*Shred, error) {
	if len(buf) != PacketDataSize {
		return nil, fmt.Errorf("shred: buffer is %d bytes, want %d", len(buf), PacketDataSize)
	}
	return &Shred{buf: buf}, nil
}

func newBlank() *Shred {
	return &Shred{buf: make([]byte, PacketDataSize)}
}

func (s *Shred) Bytes() []byte { return s.buf }

func (s *Shred) Signature() []byte { return s.buf[OffsetSignature : OffsetSignature+SizeOfSignature] }

// SignedRegion is every byte after the signature field — what gets signed
// and what gets verified.
func (s *Shred) SignedRegion() []byte { return s.buf[SizeOfSignature:] }

func (s *Shred) IsDataShred() bool { return s.buf[OffsetShredType] == DataShredType }

func (s *Shred) IsCodingShred() bool { return s.buf[OffsetShredType] == CodingShredType }

func (s *Shred) Slot() types.Slot {
	return types.Slot(binary.LittleEndian.Uint64(s.buf[OffsetSlot:]))
}

func (s *Shred) Index() uint32 {
	return binary.LittleEndian.Uint32(s.buf[OffsetIndex:])
}

func (s *Shred) Version() uint16 {
	return binary.LittleEndian.Uint16(s.buf[OffsetVersion:])
}

func (s *Shred) FECSetIndex() uint32 {
	return binary.LittleEndian.Uint32(s.buf[OffsetFECSetIdx:])
}

func (s *Shred) setCommonHeader(shredType byte, slot types.Slot, index uint32, version uint16, fecSetIndex uint32) {
	s.buf[OffsetShredType] = shredType
	binary.LittleEndian.PutUint64(s.buf[OffsetSlot:], uint64(slot))
	binary.LittleEndian.PutUint32(s.buf[OffsetIndex:], index)
	binary.LittleEndian.PutUint16(s.buf[OffsetVersion:], version)
	binary.LittleEndian.PutUint32(s.buf[OffsetFECSetIdx:], fecSetIndex)
}

// --- data-shred header (offset 83): parent_offset u16, flags u8, size u16 ---

const (
	dataOffParent = OffsetTypeHeader
	dataOffFlags  = OffsetTypeHeader + 2
	dataOffSize   = OffsetTypeHeader + 3
	dataOffload   = OffsetTypeHeader + SizeOfDataShredHeader
)

func (s *Shred) ParentOffset() uint16 {
	return binary.LittleEndian.Uint16(s.buf[dataOffParent:])
}

func (s *Shred) ParentSlot() types.Slot {
	return s.Slot() - types.Slot(s.ParentOffset())
}

func (s *Shred) Flags() byte { return s.buf[dataOffFlags] }

func (s *Shred) IsLastInSlot() bool { return s.Flags()&FlagLastShredInSlot != 0 }

func (s *Shred) IsDataComplete() bool { return s.Flags()&FlagDataCompleteShred != 0 }

func (s *Shred) ReferenceTick() byte { return s.Flags() & ShredTickReferenceMask }

// DataSize is the meaningful payload length recorded in the header,
// including the common and data headers (spec.md §3).
func (s *Shred) DataSize() uint16 {
	return binary.LittleEndian.Uint16(s.buf[dataOffSize:])
}

// Payload returns the meaningful (unpadded) data-shred payload bytes.
func (s *Shred) Payload() []byte {
	size := int(s.DataSize())
	if size < OffsetTypeHeader+SizeOfDataShredHeader {
		return nil
	}
	payloadLen := size - OffsetTypeHeader - SizeOfDataShredHeader
	if payloadLen < 0 || dataOffload+payloadLen > len(s.buf) {
		return nil
	}
	return s.buf[dataOffload : dataOffload+payloadLen]
}

// newDataShred builds a data shred's common+data headers and copies
// payload into the fixed-size payload region, zero-padding the tail.
func newDataShred(slot types.Slot, index uint32, version uint16, fecSetIndex uint32, parentSlot types.Slot, flags byte, payload []byte) (*Shred, error) {
	if len(payload) > DataShredPayloadSize {
		return nil, fmt.Errorf("shred: data payload %d exceeds %d", len(payload), DataShredPayloadSize)
	}
	if parentSlot > slot {
		return nil, fmt.Errorf("shred: parent slot %d exceeds slot %d", parentSlot, slot)
	}
	parentOffset := slot - parentSlot
	if parentOffset > 0xFFFF {
		return nil, fmt.Errorf("shred: parent offset %d exceeds 16 bits", parentOffset)
	}
	s := newBlank()
	s.setCommonHeader(DataShredType, slot, index, version, fecSetIndex)
	binary.LittleEndian.PutUint16(s.buf[dataOffParent:], uint16(parentOffset))
	s.buf[dataOffFlags] = flags
	size := OffsetTypeHeader + SizeOfDataShredHeader + len(payload)
	binary.LittleEndian.PutUint16(s.buf[dataOffSize:], uint16(size))
	copy(s.buf[dataOffload:], payload)
	return s, nil
}

// --- coding-shred header (offset 83): num_data u16, num_coding u16, position u16 ---

const (
	codeOffNumData   = OffsetTypeHeader
	codeOffNumCoding = OffsetTypeHeader + 2
	codeOffPosition  = OffsetTypeHeader + 4
	codeOffload      = OffsetTypeHeader + SizeOfCodingShredHeader
)

func (s *Shred) NumDataShreds() uint16 { return binary.LittleEndian.Uint16(s.buf[codeOffNumData:]) }

func (s *Shred) NumCodingShreds() uint16 { return binary.LittleEndian.Uint16(s.buf[codeOffNumCoding:]) }

func (s *Shred) Position() uint16 { return binary.LittleEndian.Uint16(s.buf[codeOffPosition:]) }

// CodingPayload is the parity region of a coding shred (the whole
// remainder of the buffer after its header — coding shreds carry no
// separate "meaningful length" field, the parity fills the frame).
func (s *Shred) CodingPayload() []byte { return s.buf[codeOffload:] }

// newCodingShred sets only the common header. Its type-specific header
// (num_data/num_coding/position) must be set via setCodingHeader AFTER
// Reed-Solomon encoding has written parity into EncodableRegion — setting
// it any earlier would just be clobbered by Encode.
func newCodingShred(slot types.Slot, index uint32, version uint16, fecSetIndex uint32) *Shred {
	s := newBlank()
	s.setCommonHeader(CodingShredType, slot, index, version, fecSetIndex)
	return s
}

func (s *Shred) setCodingHeader(numData, numCoding, position uint16) {
	binary.LittleEndian.PutUint16(s.buf[codeOffNumData:], numData)
	binary.LittleEndian.PutUint16(s.buf[codeOffNumCoding:], numCoding)
	binary.LittleEndian.PutUint16(s.buf[codeOffPosition:], position)
}

// Sign computes a detached ed25519 signature over SignedRegion and
// writes it into the signature field. No signing library appears
// anywhere in the retrieval pack; ed25519 is the standard library's own
// scheme and requires no third-party dependency to use correctly.
func (s *Shred) Sign(priv ed25519.PrivateKey) {
	sig := ed25519.Sign(priv, s.SignedRegion())
	copy(s.Signature(), sig)
}

// Verify reports whether the signature field is a valid ed25519
// signature over SignedRegion under pub.
func (s *Shred) Verify(pub ed25519.PublicKey) bool {
	return ed25519.Verify(pub, s.SignedRegion(), s.Signature())
}

// EncodableRegion is the byte range Reed-Solomon operates over: the
// common header (signature, shred type, slot, index, version, fec set
// index) is excluded because those fields are per-shred and either
// already known from the FEC set's own metadata or would be meaningless
// if reconstructed, and because letting Encode overwrite them on a
// coding shred would destroy values set via setCommonHeader. What
// remains — the type-specific header and the payload — is identical in
// length for data and coding shreds (both SizeOfCommonShredHeader bytes
// in), so the two line up byte-for-byte for RS.
func (s *Shred) EncodableRegion() []byte {
	return s.buf[OffsetTypeHeader:]
}
