package types

import (
	"crypto/sha256"
	"fmt"
)

// NextHash computes the proof-of-history hash an entry must carry: prev
// is iterated through NumHashes-1 plain sha256 steps, then one final
// step mixes in a hash of the entry's transactions (or, for a
// transaction-free tick entry, is a plain sha256 step). NumHashes == 0
// with no transactions returns prev unchanged (an empty entry repeats
// the tip rather than advancing it).
func NextHash(prev [32]byte, numHashes uint64, transactions [][]byte) [32]byte {
	if numHashes == 0 && len(transactions) == 0 {
		return prev
	}

	hash := prev
	steps := numHashes
	if steps > 0 {
		steps--
	}
	for i := uint64(0); i < steps; i++ {
		hash = sha256.Sum256(hash[:])
	}

	if len(transactions) == 0 {
		return sha256.Sum256(hash[:])
	}

	mixin := hashTransactions(transactions)
	buf := make([]byte, 0, 64)
	buf = append(buf, hash[:]...)
	buf = append(buf, mixin[:]...)
	return sha256.Sum256(buf)
}

func hashTransactions(transactions [][]byte) [32]byte {
	h := sha256.New()
	for _, tx := range transactions {
		h.Write(tx)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// VerifyEntryChain walks entries against the running PoH tip last,
// recomputing each entry's hash with NextHash and comparing it to the
// entry's recorded Hash. It returns the tip after the last verified
// entry; on a mismatch it returns the tip reached so far alongside an
// error naming the offending index.
func VerifyEntryChain(last [32]byte, entries []Entry) ([32]byte, error) {
	for i, e := range entries {
		want := NextHash(last, e.NumHashes, e.Transactions)
		if want != e.Hash {
			return last, fmt.Errorf("types: entry %d breaks the hash chain", i)
		}
		last = want
	}
	return last, nil
}

// IsTick reports whether an entry represents a PoH tick rather than a
// transaction batch: ticks carry no transactions.
func (e Entry) IsTick() bool {
	return len(e.Transactions) == 0
}
