// Package shred implements the binary shred codec: framing entries into
// MTU-sized fragments, Reed-Solomon FEC encode/recover, and reassembly.
//
// The wire format is bit-exact and defined entirely by fixed byte offsets
// (see the offset table below); nothing here is left to a serialization
// library's discretion. Forward-error-correction is delegated to
// github.com/klauspost/reedsolomon, the same erasure-coding library
// xtaci-kcptun vendors for its own FEC layer (vendor/github.com/xtaci/kcp-go/v5/fec.go) —
// this core's recovery.go mirrors that library's New/Encode/Reconstruct
// shape rather than reinventing Galois-field arithmetic.
package shred

// Wire layout (little-endian, fixed offsets):
//
//	offset  size  field
//	  0     64    signature
//	 64      1    shred_type       (0xA5 = data, 0x5A = coding)
//	 65      8    slot             (u64)
//	 73      4    index            (u32)
//	 77      2    version          (u16)
//	 79      4    fec_set_index    (u32)
//	 83 …         type-specific header then payload
const (
	PacketDataSize          = 1232
	SizeOfSignature         = 64
	SizeOfCommonShredHeader = 83
	SizeOfDataShredHeader   = 5
	SizeOfCodingShredHeader = 6
	SizeOfNonce             = 4

	OffsetSignature  = 0
	OffsetShredType  = 64
	OffsetSlot       = 65
	OffsetIndex      = 73
	OffsetVersion    = 77
	OffsetFECSetIdx  = 79
	OffsetTypeHeader = SizeOfCommonShredHeader

	// DataShredPayloadSize is the usable payload in a data shred after
	// the common and data-shred headers.
	DataShredPayloadSize = PacketDataSize - SizeOfCommonShredHeader - SizeOfDataShredHeader
	// CodingShredPayloadSize mirrors DataShredPayloadSize for the coding
	// header, both shred kinds share one on-wire size (spec.md §3/§6).
	CodingShredPayloadSize = PacketDataSize - SizeOfCommonShredHeader - SizeOfCodingShredHeader

	MaxDataShredsPerFECBlock = 32
	MaxOrphanRepairResponses = 10
	MaxRepairLength          = 512
	MaxOrphans               = 5
	RepairIntervalMS         = 100

	DataShredType   byte = 0xA5
	CodingShredType byte = 0x5A

	FlagDataCompleteShred byte = 0x40
	FlagLastShredInSlot   byte = 0x80
	ShredTickReferenceMask byte = 0x3F
)
