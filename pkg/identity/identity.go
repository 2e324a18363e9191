// Package identity manages the node's ed25519 keypair: the signing key
// shred construction uses as leader and the verification key other
// nodes check incoming shreds against. Shaped after
// pkg/security/secrets.go's small keyed-crypto manager (constructor
// takes raw key material, methods operate on it), adapted from secret
// encryption to detached signatures since the core's only cryptographic
// need is "sign bytes after the signature field, verify later" with no
// encryption component at all.
package identity

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"os"
)

// Identity wraps a node's ed25519 keypair and the base64 string form of
// its public key used anywhere a pubkey travels as text (ContactInfo,
// wire-encoded repair requests, log fields).
type Identity struct {
	priv   ed25519.PrivateKey
	pub    ed25519.PublicKey
	pubStr string
}

// New wraps an existing private key. The private key must be a full
// ed25519.PrivateKey (64 bytes: seed ‖ public key).
func New(priv ed25519.PrivateKey) (*Identity, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("identity: private key must be %d bytes, got %d", ed25519.PrivateKeySize, len(priv))
	}
	pub := priv.Public().(ed25519.PublicKey)
	return &Identity{
		priv:   priv,
		pub:    pub,
		pubStr: encodePubkey(pub),
	}, nil
}

// Generate creates a fresh random keypair.
func Generate() (*Identity, error) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("identity: generate keypair: %w", err)
	}
	return New(priv)
}

// LoadFromFile reads a raw ed25519 private key from path and wraps it.
func LoadFromFile(path string) (*Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("identity: read key file: %w", err)
	}
	return New(ed25519.PrivateKey(data))
}

// SaveToFile writes the raw private key to path with owner-only
// permissions, the same discipline a filesystem-backed signing key
// needs regardless of the secrets machinery guarding it on disk.
func (id *Identity) SaveToFile(path string) error {
	if err := os.WriteFile(path, id.priv, 0o600); err != nil {
		return fmt.Errorf("identity: write key file: %w", err)
	}
	return nil
}

// Pubkey returns the base64 text form of the public key, the canonical
// string identity used throughout ContactInfo and the repair wire
// protocol.
func (id *Identity) Pubkey() string { return id.pubStr }

// PublicKey returns the raw verification key.
func (id *Identity) PublicKey() ed25519.PublicKey { return id.pub }

// Sign produces a detached signature over msg.
func (id *Identity) Sign(msg []byte) []byte {
	return ed25519.Sign(id.priv, msg)
}

// Verify checks a detached signature against a known public key. It
// does not take a receiver: callers verifying a peer's shred have the
// peer's raw public key, not an Identity for it.
func Verify(pub ed25519.PublicKey, msg, sig []byte) bool {
	return ed25519.Verify(pub, msg, sig)
}

// DecodePubkey inverts the base64 text form a ContactInfo.Pubkey or
// wire-encoded identity carries back into a raw verification key.
func DecodePubkey(s string) (ed25519.PublicKey, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("identity: decode pubkey: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("identity: decoded pubkey must be %d bytes, got %d", ed25519.PublicKeySize, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

func encodePubkey(pub ed25519.PublicKey) string {
	return base64.RawURLEncoding.EncodeToString(pub)
}
