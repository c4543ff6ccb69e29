package service

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"
	"sync/atomic"
	"time"

	"vending-payout-console/internal/core/domain"
	"vending-payout-console/internal/core/ports"
	"vending-payout-console/pkg/apperror"

	"github.com/rs/zerolog"
)

// CredentialService implements ports.CredentialProvider and
// ports.CredentialAdmin. Each layer's active credential lives behind an
// atomic pointer: a sign call that took a snapshot before a swap finishes
// with the key it started with, never a half-written one.
type CredentialService struct {
	repo  ports.CredentialRepository
	vault ports.KeyVault
	log   zerolog.Logger

	sandbox atomic.Pointer[domain.Credential]
	live    atomic.Pointer[domain.Credential]
}

// NewCredentialService creates the credential service. Call Load to hydrate
// persisted credentials before serving traffic.
func NewCredentialService(repo ports.CredentialRepository, vault ports.KeyVault, log zerolog.Logger) *CredentialService {
	return &CredentialService{repo: repo, vault: vault, log: log}
}

// Load hydrates the in-memory snapshots from the repository. A layer with no
// stored credential is left empty; signing for it fails until one is saved.
func (s *CredentialService) Load(ctx context.Context) error {
	for _, layer := range []domain.Layer{domain.LayerSandbox, domain.LayerLive} {
		cred, sealedKey, err := s.repo.Get(ctx, layer)
		if err != nil {
			return fmt.Errorf("loading %s credential: %w", layer, err)
		}
		if cred == nil {
			continue
		}
		pemKey, err := s.vault.Open(sealedKey)
		if err != nil {
			return fmt.Errorf("unsealing %s credential: %w", layer, err)
		}
		cred.PrivateKeyPEM = pemKey
		s.slot(layer).Store(cred)
		s.log.Info().Str("layer", string(layer)).Str("signer_id", cred.SignerID).Msg("credential loaded")
	}
	return nil
}

// Active returns the layer's current credential snapshot.
func (s *CredentialService) Active(layer domain.Layer) (*domain.Credential, error) {
	if !layer.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown layer %q", layer))
	}
	cred := s.slot(layer).Load()
	if cred == nil {
		return nil, apperror.ErrNoCredential(string(layer))
	}
	return cred, nil
}

// Save validates the key material, persists it sealed, and atomically swaps
// the in-memory snapshot. Validation happens before any write, so a bad key
// can never replace a working one (validate-then-swap).
func (s *CredentialService) Save(ctx context.Context, layer domain.Layer, privateKeyPEM, signerID, keyFingerprint string) error {
	if !layer.Valid() {
		return apperror.Validation(fmt.Sprintf("unknown layer %q", layer))
	}
	if signerID == "" || keyFingerprint == "" {
		return apperror.Validation("signer_id and key_fingerprint are required")
	}

	key, err := ParseRSAPrivateKey(privateKeyPEM)
	if err != nil {
		return apperror.ErrInvalidKey(err)
	}
	if err := probeSign(key); err != nil {
		return apperror.ErrInvalidKey(err)
	}

	cred := &domain.Credential{
		Layer:          layer,
		PrivateKeyPEM:  privateKeyPEM,
		SignerID:       signerID,
		KeyFingerprint: keyFingerprint,
		UpdatedAt:      time.Now().UTC(),
	}

	sealedKey, err := s.vault.Seal(privateKeyPEM)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("sealing key: %w", err))
	}
	if err := s.repo.Save(ctx, cred, sealedKey); err != nil {
		return apperror.InternalError(fmt.Errorf("persisting credential: %w", err))
	}

	s.slot(layer).Store(cred)

	s.log.Info().
		Str("layer", string(layer)).
		Str("signer_id", signerID).
		Str("fingerprint", keyFingerprint).
		Msg("credential replaced")

	return nil
}

func (s *CredentialService) slot(layer domain.Layer) *atomic.Pointer[domain.Credential] {
	if layer == domain.LayerLive {
		return &s.live
	}
	return &s.sandbox
}

// probeSign signs a throwaway digest to prove the key is usable end to end.
func probeSign(key *rsa.PrivateKey) error {
	digest := sha256.Sum256([]byte("credential-probe"))
	if _, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:]); err != nil {
		return fmt.Errorf("probe signature: %w", err)
	}
	return nil
}
