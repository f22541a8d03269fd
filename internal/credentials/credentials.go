// Package credentials implements the device's identity: owner/device/
// creator IDs and the Ed25519 keypair used to sign CBOR payloads (spec
// §3 "Credentials", §4.C/D). Grounded on the teacher's Ed25519Provider
// (internal/federation/crypto_provider.go), narrowed from a
// tenant-selectable dual-algorithm provider down to the single Ed25519
// path spec.md wires (§3: "alg = -8 for Ed25519" is the only algorithm
// in scope).
package credentials

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// Credentials holds the device's identity triple and signing key.
type Credentials struct {
	ownerID   string
	deviceID  string
	creatorID string

	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey

	dirty          bool
	isOwnerChanged bool
}

// New derives DeviceID from mac (a 6-byte MAC-like identifier, hex-encoded
// lower-case per spec §3/§9), fixes CreatorID to the build-time constant,
// and generates a fresh Ed25519 keypair. Owner starts empty (first-boot,
// unprovisioned device).
func New(mac [6]byte, creatorID string) (*Credentials, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("credentials: generate keypair: %w", err)
	}
	return &Credentials{
		deviceID:   hex.EncodeToString(mac[:]),
		creatorID:  creatorID,
		privateKey: priv,
		publicKey:  pub,
	}, nil
}

// FromKey rebuilds Credentials around an already-provisioned keypair (e.g.
// restored from storage) instead of generating a new one.
func FromKey(mac [6]byte, creatorID string, priv ed25519.PrivateKey) *Credentials {
	return &Credentials{
		deviceID:   hex.EncodeToString(mac[:]),
		creatorID:  creatorID,
		privateKey: priv,
		publicKey:  priv.Public().(ed25519.PublicKey),
	}
}

// OwnerID returns the current owner account identifier.
func (c *Credentials) OwnerID() string { return c.ownerID }

// SetOwnerID updates the owner, marking the credentials dirty and setting
// the isOwnerChanged flag that ConsumeOwnerChanged reports.
func (c *Credentials) SetOwnerID(owner string) {
	if owner == c.ownerID {
		return
	}
	c.ownerID = owner
	c.dirty = true
	c.isOwnerChanged = true
}

// DeviceID returns the 12-character hex device identifier derived from
// the MAC address.
func (c *Credentials) DeviceID() string { return c.deviceID }

// CreatorID returns the build-constant creator identifier.
func (c *Credentials) CreatorID() string { return c.creatorID }

// PublicKey returns the device's Ed25519 public key.
func (c *Credentials) PublicKey() ed25519.PublicKey { return c.publicKey }

// PrivateKeyBytes returns the raw private key, for persistence into
// /credentials.cbor so identity survives a restart.
func (c *Credentials) PrivateKeyBytes() []byte { return c.privateKey }

// KeyID returns the hex-encoded public key, used as the MQTT username
// per spec §4.L.
func (c *Credentials) KeyID() string {
	return hex.EncodeToString(c.publicKey)
}

// Sign signs data with the device's private key.
func (c *Credentials) Sign(data []byte) []byte {
	return ed25519.Sign(c.privateKey, data)
}

// IsDirty reports whether the owner has changed since the last ClearDirty.
func (c *Credentials) IsDirty() bool { return c.dirty }

// ClearDirty resets the dirty flag after the caller has persisted the
// credentials document.
func (c *Credentials) ClearDirty() { c.dirty = false }

// ConsumeOwnerChanged reports and clears isOwnerChanged, a one-shot
// signal. Nothing else in this module reads it: the MQTT bridge does not
// poll it, and an owner change does not by itself trigger a
// resubscription.
func (c *Credentials) ConsumeOwnerChanged() bool {
	changed := c.isOwnerChanged
	c.isOwnerChanged = false
	return changed
}
