package service

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"sync"
	"testing"
	"time"

	"vending-payout-console/internal/core/domain"
	"vending-payout-console/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// generateTestKeyPEM returns a fresh RSA private key and its PKCS#1 PEM form.
func generateTestKeyPEM(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pemData := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	return key, string(pemData)
}

// staticCredentials is a fixed-snapshot ports.CredentialProvider.
type staticCredentials struct {
	mu    sync.Mutex
	creds map[domain.Layer]*domain.Credential
}

func newStaticCredentials(creds ...*domain.Credential) *staticCredentials {
	m := make(map[domain.Layer]*domain.Credential)
	for _, c := range creds {
		m[c.Layer] = c
	}
	return &staticCredentials{creds: m}
}

func (s *staticCredentials) Active(layer domain.Layer) (*domain.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.creds[layer]
	if !ok {
		return nil, apperror.ErrNoCredential(string(layer))
	}
	return cred, nil
}

func TestRSASigner_Sign_VerifiesWithPublicKey(t *testing.T) {
	key, pemKey := generateTestKeyPEM(t)
	signer := NewRSASigner(newStaticCredentials(&domain.Credential{
		Layer:          domain.LayerSandbox,
		PrivateKeyPEM:  pemKey,
		SignerID:       "signer-42",
		KeyFingerprint: "fp-abc",
	}))
	signer.now = func() time.Time { return time.Unix(1756400000, 0) }

	params := map[string]any{"account_code": "40702", "amount": "1375.00"}
	sig, err := signer.Sign(domain.LayerSandbox, domain.MethodTransferMoney, params)
	require.NoError(t, err)

	assert.Equal(t, "signer-42", sig.SignerID)
	assert.Equal(t, "fp-abc", sig.KeyFingerprint)
	assert.Equal(t, int64(1756400000), sig.Timestamp)

	raw, err := base64.StdEncoding.DecodeString(sig.Value)
	require.NoError(t, err)
	payload := CanonicalSigningString(domain.MethodTransferMoney, params, sig.Timestamp)
	digest := sha256.Sum256([]byte(payload))
	assert.NoError(t, rsa.VerifyPKCS1v15(&key.PublicKey, crypto.SHA256, digest[:], raw))
}

func TestRSASigner_Sign_Deterministic_CanonicalOrder(t *testing.T) {
	// Same params in different map insert order produce the same payload.
	ts := int64(1756400000)
	a := CanonicalSigningString("list_payments", map[string]any{"from": "2026-08-01", "to": "2026-08-31"}, ts)
	b := CanonicalSigningString("list_payments", map[string]any{"to": "2026-08-31", "from": "2026-08-01"}, ts)
	assert.Equal(t, a, b)
}

func TestRSASigner_Sign_NoCredential(t *testing.T) {
	signer := NewRSASigner(newStaticCredentials())

	_, err := signer.Sign(domain.LayerLive, domain.MethodGetBalance, nil)
	require.Error(t, err)
	assert.True(t, apperror.IsSigning(err))
}

func TestRSASigner_Sign_InvalidStoredKey(t *testing.T) {
	signer := NewRSASigner(newStaticCredentials(&domain.Credential{
		Layer:         domain.LayerLive,
		PrivateKeyPEM: "garbage, not a key",
		SignerID:      "signer-1",
	}))

	_, err := signer.Sign(domain.LayerLive, domain.MethodGetBalance, nil)
	require.Error(t, err)
	assert.True(t, apperror.IsSigning(err))
}

func TestParseRSAPrivateKey_PKCS8(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	pemData := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	parsed, err := ParseRSAPrivateKey(string(pemData))
	require.NoError(t, err)
	assert.Equal(t, key.N, parsed.N)
}
