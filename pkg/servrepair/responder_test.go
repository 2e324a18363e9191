package servrepair

import (
	"crypto/ed25519"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shredchain/shredger/pkg/blockstore"
	"github.com/shredchain/shredger/pkg/repair"
	"github.com/shredchain/shredger/pkg/shred"
	"github.com/shredchain/shredger/pkg/types"
)

type recordingRespConn struct {
	mu   sync.Mutex
	sent [][]byte
	addr []net.Addr
}

func (c *recordingRespConn) ReadFrom([]byte) (int, net.Addr, error) { return 0, nil, errTimeout{} }
func (c *recordingRespConn) SetReadDeadline(time.Time) error        { return nil }
func (c *recordingRespConn) WriteTo(b []byte, addr net.Addr) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]byte, len(b))
	copy(cp, b)
	c.sent = append(c.sent, cp)
	c.addr = append(c.addr, addr)
	return len(b), nil
}

type errTimeout struct{}

func (errTimeout) Error() string   { return "i/o timeout" }
func (errTimeout) Timeout() bool   { return true }
func (errTimeout) Temporary() bool { return true }

func openRespTestStore(t *testing.T) *blockstore.BoltBlockstore {
	t.Helper()
	bs, err := blockstore.NewBoltBlockstore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { bs.Close() })
	return bs
}

func insertRespSlot(t *testing.T, bs *blockstore.BoltBlockstore, priv ed25519.PrivateKey, parentSlot, slot types.Slot, numEntries int) {
	t.Helper()
	entries := make([]types.Entry, 0, numEntries)
	for i := 0; i < numEntries; i++ {
		entries = append(entries, types.Entry{NumHashes: uint64(i), Transactions: [][]byte{make([]byte, 100)}})
	}
	data, _, err := shred.EntriesToShreds(entries, parentSlot, slot, 1, true, 0, priv)
	require.NoError(t, err)
	_, err = bs.InsertShreds(data, nil, true)
	require.NoError(t, err)
}

func newTestResponder(bs blockstore.Blockstore, conn PacketConn, localPubkey string) *Responder {
	return NewResponder(Config{
		Conn:       conn,
		Blockstore: bs,
		Local:      types.ContactInfo{Pubkey: localPubkey},
	})
}

// Scenario E: HighestWindowIndex(s, i) with i < k returns exactly the
// shred at index k=received-1; with i >= k, returns nothing.
func TestHandleHighestWindowIndexScenarioE(t *testing.T) {
	bs := openRespTestStore(t)
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	insertRespSlot(t, bs, priv, 0, 5, 25) // indices 0..3, received=4, k=3

	conn := &recordingRespConn{}
	r := newTestResponder(bs, conn, "me")
	addr := &net.UDPAddr{IP: net.IPv4(1, 2, 3, 4), Port: 1}

	r.handleHighestWindowIndex(repair.Request{Kind: repair.KindHighestWindowIndex, Slot: 5, Index: 1}, addr, 42)
	require.Len(t, conn.sent, 1)
	shredBytes, nonce, err := repair.DecodeResponse(conn.sent[0])
	require.NoError(t, err)
	assert.Equal(t, uint32(42), nonce)
	sh, err := shred.FromBytes(shredBytes)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), sh.Index())

	conn.sent = nil
	r.handleHighestWindowIndex(repair.Request{Kind: repair.KindHighestWindowIndex, Slot: 5, Index: 3}, addr, 42)
	assert.Empty(t, conn.sent)
}

// Scenario F: a chain of n slots, Orphan(last) with max
// MaxOrphanRepairResponses (10) returns at most min(n, 10) packets
// walking successive ancestors.
func TestHandleOrphanScenarioF(t *testing.T) {
	bs := openRespTestStore(t)
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	const base = types.Slot(10)
	const n = 8
	for i := 0; i < n; i++ {
		slot := base + types.Slot(i)
		parent := slot
		if i > 0 {
			parent = base + types.Slot(i-1)
		}
		insertRespSlot(t, bs, priv, parent, slot, 2)
	}

	conn := &recordingRespConn{}
	r := newTestResponder(bs, conn, "me")
	addr := &net.UDPAddr{IP: net.IPv4(1, 2, 3, 4), Port: 1}

	r.handleOrphan(repair.Request{Kind: repair.KindOrphan, Slot: base + n - 1}, addr, 7)

	assert.LessOrEqual(t, len(conn.sent), shred.MaxOrphanRepairResponses)
	assert.LessOrEqual(t, len(conn.sent), n)
	assert.NotEmpty(t, conn.sent)

	prevSlot := types.Slot(0)
	for i, raw := range conn.sent {
		shredBytes, nonce, err := repair.DecodeResponse(raw)
		require.NoError(t, err)
		assert.Equal(t, uint32(7), nonce)
		sh, err := shred.FromBytes(shredBytes)
		require.NoError(t, err)
		if i > 0 {
			assert.Less(t, sh.Slot(), prevSlot, "orphan walk should move strictly toward the root")
		}
		prevSlot = sh.Slot()
	}
}

// Property 6: a request whose sender equals the responder's own
// identity produces no response packet.
func TestHandlePacketSelfRepairNoResponse(t *testing.T) {
	bs := openRespTestStore(t)
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	insertRespSlot(t, bs, priv, 0, 1, 4)

	conn := &recordingRespConn{}
	r := newTestResponder(bs, conn, "me")
	addr := &net.UDPAddr{IP: net.IPv4(1, 2, 3, 4), Port: 1}

	packet := repair.EncodeRequest(repair.Request{Kind: repair.KindHighestWindowIndex, Slot: 1, Index: 0}, types.ContactInfo{Pubkey: "me"}, 1)
	r.handlePacket(packet, addr)

	assert.Empty(t, conn.sent)
}

func TestHandlePacketMalformedIsDropped(t *testing.T) {
	bs := openRespTestStore(t)
	conn := &recordingRespConn{}
	r := newTestResponder(bs, conn, "me")
	addr := &net.UDPAddr{IP: net.IPv4(1, 2, 3, 4), Port: 1}

	r.handlePacket([]byte{0xff}, addr)
	assert.Empty(t, conn.sent)
}

func TestHandleWindowIndexMissingShredProducesNoResponse(t *testing.T) {
	bs := openRespTestStore(t)
	conn := &recordingRespConn{}
	r := newTestResponder(bs, conn, "me")
	addr := &net.UDPAddr{IP: net.IPv4(1, 2, 3, 4), Port: 1}

	r.handleWindowIndex(repair.Request{Kind: repair.KindWindowIndex, Slot: 99, Index: 0}, addr, 1)
	assert.Empty(t, conn.sent)
}

func TestAdjustMaxPacketsShrinksOnSlowBatchAndGrowsOnFast(t *testing.T) {
	r := newTestResponder(nil, &recordingRespConn{}, "me")
	start := r.maxPackets

	r.adjustMaxPackets(2 * time.Second)
	assert.Less(t, r.maxPackets, start)

	shrunk := r.maxPackets
	r.adjustMaxPackets(10 * time.Millisecond)
	assert.Greater(t, r.maxPackets, shrunk)
}

func TestAdjustMaxPacketsRespectsBounds(t *testing.T) {
	r := newTestResponder(nil, &recordingRespConn{}, "me")
	r.maxPackets = minMaxPackets
	r.adjustMaxPackets(2 * time.Second)
	assert.Equal(t, minMaxPackets, r.maxPackets)

	r.maxPackets = maxMaxPackets
	r.adjustMaxPackets(time.Millisecond)
	assert.Equal(t, maxMaxPackets, r.maxPackets)
}
