package postgres

import (
	"context"
	"errors"
	"fmt"

	"vending-payout-console/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// CredentialRepo implements ports.CredentialRepository. One row per layer;
// the private key is stored sealed, never in the clear.
type CredentialRepo struct {
	pool Pool
}

// NewCredentialRepo creates a new CredentialRepo.
func NewCredentialRepo(pool Pool) *CredentialRepo {
	return &CredentialRepo{pool: pool}
}

// Save upserts the layer's credential row.
func (r *CredentialRepo) Save(ctx context.Context, cred *domain.Credential, encryptedKey string) error {
	query := `INSERT INTO credentials (layer, private_key_enc, signer_id, key_fingerprint, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (layer) DO UPDATE
		SET private_key_enc = EXCLUDED.private_key_enc,
			signer_id = EXCLUDED.signer_id,
			key_fingerprint = EXCLUDED.key_fingerprint,
			updated_at = EXCLUDED.updated_at`

	_, err := r.pool.Exec(ctx, query,
		cred.Layer, encryptedKey, cred.SignerID, cred.KeyFingerprint, cred.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

// Get fetches the layer's credential and its sealed private key.
func (r *CredentialRepo) Get(ctx context.Context, layer domain.Layer) (*domain.Credential, string, error) {
	query := `SELECT layer, private_key_enc, signer_id, key_fingerprint, updated_at
		FROM credentials WHERE layer = $1`

	cred := &domain.Credential{}
	var encryptedKey string
	err := r.pool.QueryRow(ctx, query, layer).Scan(
		&cred.Layer, &encryptedKey, &cred.SignerID, &cred.KeyFingerprint, &cred.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("get credential: %w", err)
	}
	return cred, encryptedKey, nil
}
