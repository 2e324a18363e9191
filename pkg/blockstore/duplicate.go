package blockstore

import (
	"time"

	"github.com/shredchain/shredger/pkg/types"
)

// DuplicateShredProof records two conflicting shreds observed for the
// same (slot, index): evidence that a leader (or a relay) equivocated.
// InsertShreds produces one whenever a newly-arrived shred disagrees with
// an already-stored shred at the same coordinates; it is retained
// alongside the slot's data rather than silently discarded.
type DuplicateShredProof struct {
	Slot     types.Slot
	Index    uint32
	Original []byte
	Conflict []byte
	SeenAt   time.Time
}
