package domain

import "time"

// Layer is a deployment environment of the remote platform. Each layer has
// its own signing credential and its own data.
type Layer string

const (
	LayerSandbox Layer = "sandbox"
	LayerLive    Layer = "live"
)

// Valid reports whether l is a known layer.
func (l Layer) Valid() bool {
	return l == LayerSandbox || l == LayerLive
}

// Credential is the signing identity for one layer. The remote platform uses
// SignerID and KeyFingerprint to look up the matching public key.
type Credential struct {
	Layer          Layer     `json:"layer"`
	PrivateKeyPEM  string    `json:"-"` // PKCS#1/PKCS#8 RSA private key, never exposed
	SignerID       string    `json:"signer_id"`
	KeyFingerprint string    `json:"key_fingerprint"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Signature is the result of signing one outbound call.
type Signature struct {
	Value          string // base64 RSA-SHA256 signature over the canonical payload
	SignerID       string
	KeyFingerprint string
	Timestamp      int64 // unix seconds baked into the canonical payload
}
