package service

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"time"

	"vending-payout-console/internal/core/domain"
	"vending-payout-console/internal/core/ports"
	"vending-payout-console/pkg/apperror"
)

// RSASigner implements ports.Signer using RSA-SHA256 (PKCS#1 v1.5) over a
// canonical serialization of method + params + timestamp. It is stateless
// beyond reading credential snapshots from the provider.
type RSASigner struct {
	creds ports.CredentialProvider
	now   func() time.Time
}

// NewRSASigner creates a new RSA request signer.
func NewRSASigner(creds ports.CredentialProvider) *RSASigner {
	return &RSASigner{creds: creds, now: time.Now}
}

// Sign builds and signs the canonical payload for one outbound call.
func (s *RSASigner) Sign(layer domain.Layer, method string, params map[string]any) (*domain.Signature, error) {
	cred, err := s.creds.Active(layer)
	if err != nil {
		return nil, err
	}

	key, err := ParseRSAPrivateKey(cred.PrivateKeyPEM)
	if err != nil {
		return nil, apperror.ErrInvalidKey(err)
	}

	ts := s.now().Unix()
	payload := CanonicalSigningString(method, params, ts)
	digest := sha256.Sum256([]byte(payload))

	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	if err != nil {
		return nil, apperror.ErrInvalidKey(fmt.Errorf("signing payload: %w", err))
	}

	return &domain.Signature{
		Value:          base64.StdEncoding.EncodeToString(sig),
		SignerID:       cred.SignerID,
		KeyFingerprint: cred.KeyFingerprint,
		Timestamp:      ts,
	}, nil
}

// CanonicalSigningString constructs the order-stable payload to sign.
// Format: METHOD|CANONICAL_PARAMS|TIMESTAMP
func CanonicalSigningString(method string, params map[string]any, timestamp int64) string {
	return fmt.Sprintf("%s|%s|%d", method, domain.CanonicalParams(params), timestamp)
}

// ParseRSAPrivateKey decodes a PEM-encoded RSA private key in either PKCS#1
// or PKCS#8 form. Credential saves run it too, so a structurally invalid key
// is normally caught long before the first sign call.
func ParseRSAPrivateKey(pemData string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is %T, want RSA", parsed)
	}
	return key, nil
}
