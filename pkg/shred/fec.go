package shred

import (
	"crypto/ed25519"
	"fmt"
	"math"

	"github.com/klauspost/reedsolomon"
)

// numCodingShreds implements the spec's C = clamp(round(r*D), 1, D), with
// C = 0 when rate is 0 (no redundancy requested at all).
func numCodingShreds(d int, rate float64) int {
	if rate <= 0 {
		return 0
	}
	c := int(math.Round(rate * float64(d)))
	if c < 1 {
		c = 1
	}
	if c > d {
		c = d
	}
	return c
}

// groupByFECSet splits dataShreds into contiguous runs sharing an FEC-set index.
func groupByFECSet(dataShreds []*Shred) [][]*Shred {
	var groups [][]*Shred
	var cur []*Shred
	var curIdx uint32
	for _, s := range dataShreds {
		if len(cur) == 0 || s.FECSetIndex() != curIdx {
			if len(cur) > 0 {
				groups = append(groups, cur)
			}
			cur = nil
			curIdx = s.FECSetIndex()
		}
		cur = append(cur, s)
	}
	if len(cur) > 0 {
		groups = append(groups, cur)
	}
	return groups
}

// GenerateCodingShreds partitions dataShreds into FEC sets (by their
// already-assigned fec_set_index) and produces Reed-Solomon parity shreds
// for each set at the given rate, per spec.md §4.1's coding-shred
// generation contract. It mirrors the encode shape xtaci-kcptun's FEC
// layer uses over github.com/klauspost/reedsolomon: build an Encoder for
// (D, C), hand it D+C equal-length shards, let it fill the parity ones.
func GenerateCodingShreds(dataShreds []*Shred, rate float64, version uint16, priv ed25519.PrivateKey) ([]*Shred, error) {
	var coding []*Shred
	for _, group := range groupByFECSet(dataShreds) {
		d := len(group)
		c := numCodingShreds(d, rate)
		if c == 0 {
			continue
		}
		slot := group[0].Slot()
		fecSetIndex := group[0].FECSetIndex()

		enc, err := reedsolomon.New(d, c)
		if err != nil {
			return nil, fmt.Errorf("shred: reedsolomon.New(%d,%d): %w", d, c, err)
		}

		shards := make([][]byte, d+c)
		for i, ds := range group {
			shards[i] = ds.EncodableRegion()
		}
		codingSet := make([]*Shred, c)
		for j := 0; j < c; j++ {
			cs := newCodingShred(slot, fecSetIndex+uint32(j), version, fecSetIndex)
			codingSet[j] = cs
			shards[d+j] = cs.EncodableRegion()
		}

		if err := enc.Encode(shards); err != nil {
			return nil, fmt.Errorf("shred: rs encode fec set at %d: %w", fecSetIndex, err)
		}
		// Only now that Encode has finished writing parity into
		// EncodableRegion can the coding-specific header be set — any
		// earlier and Encode would have overwritten it.
		for j, cs := range codingSet {
			cs.setCodingHeader(uint16(d), uint16(c), uint16(j))
			cs.Sign(priv)
		}
		coding = append(coding, codingSet...)
	}
	return coding, nil
}
