package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

// Argon2KeyVault implements ports.KeyVault using AES-256-GCM with a key
// derived from a passphrase via argon2id. Credential key material is sealed
// with this vault before it touches the database.
type Argon2KeyVault struct {
	key []byte // 32-byte derived AES-256 key
}

const (
	vaultArgonTime    = 1
	vaultArgonMemory  = 64 * 1024
	vaultArgonThreads = 4
	vaultKeyLen       = 32
	vaultMinSaltLen   = 8
)

// NewArgon2KeyVault derives the vault key from passphrase and salt.
func NewArgon2KeyVault(passphrase, salt string) (*Argon2KeyVault, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("vault passphrase must not be empty")
	}
	if len(salt) < vaultMinSaltLen {
		return nil, fmt.Errorf("vault salt must be at least %d bytes, got %d", vaultMinSaltLen, len(salt))
	}
	key := argon2.IDKey([]byte(passphrase), []byte(salt), vaultArgonTime, vaultArgonMemory, vaultArgonThreads, vaultKeyLen)
	return &Argon2KeyVault{key: key}, nil
}

// Seal encrypts plaintext using AES-256-GCM.
// Returns hex-encoded string: nonce + ciphertext.
func (v *Argon2KeyVault) Seal(plaintext string) (string, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", fmt.Errorf("creating cipher: %w", err)
	}

	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("creating GCM: %w", err)
	}

	nonce := make([]byte, aesGCM.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	ciphertext := aesGCM.Seal(nonce, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(ciphertext), nil
}

// Open decrypts a hex-encoded AES-256-GCM ciphertext.
func (v *Argon2KeyVault) Open(ciphertextHex string) (string, error) {
	ciphertext, err := hex.DecodeString(ciphertextHex)
	if err != nil {
		return "", fmt.Errorf("decoding ciphertext: %w", err)
	}

	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", fmt.Errorf("creating cipher: %w", err)
	}

	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("creating GCM: %w", err)
	}

	nonceSize := aesGCM.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := aesGCM.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypting: %w", err)
	}

	return string(plaintext), nil
}
