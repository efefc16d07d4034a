// Package crypto handles wallet key storage, EIP-712 signing and L2 request
// authentication for the live trading venue.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/alanyoungcy/polycouncil/internal/domain"
)

const (
	kdfIterations = 480_000
	kdfSaltLen    = 16
	keyFileFormat = 1
)

// sealedKey is the on-disk JSON layout of an encrypted key. Byte fields are
// base64 encoded by encoding/json.
type sealedKey struct {
	Version    int    `json:"version"`
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// KeyConfig lists the places a private key may come from.
type KeyConfig struct {
	RawPrivateKey    string
	EncryptedKeyPath string
	KeyPassword      string
}

// EncryptKey seals a 32-byte hex private key under password.
func EncryptKey(privateKeyHex, password string) ([]byte, error) {
	raw, err := decodeKey(privateKeyHex)
	if err != nil {
		return nil, err
	}
	if password == "" {
		return nil, errors.New("crypto: empty password")
	}

	salt := make([]byte, kdfSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("crypto: salt: %w", err)
	}
	aead, err := newAEAD(password, salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: nonce: %w", err)
	}

	return json.MarshalIndent(sealedKey{
		Version:    keyFileFormat,
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: aead.Seal(nil, nonce, raw, nil),
	}, "", "  ")
}

// DecryptKey opens a blob produced by EncryptKey and returns the key as hex
// without a 0x prefix.
func DecryptKey(blob []byte, password string) (string, error) {
	var sk sealedKey
	if err := json.Unmarshal(blob, &sk); err != nil {
		return "", fmt.Errorf("crypto: decode key file: %w", err)
	}
	if sk.Version != keyFileFormat {
		return "", fmt.Errorf("crypto: unsupported key file version %d", sk.Version)
	}
	aead, err := newAEAD(password, sk.Salt)
	if err != nil {
		return "", err
	}
	raw, err := aead.Open(nil, sk.Nonce, sk.Ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("crypto: open key file (wrong password?): %w", err)
	}
	return hex.EncodeToString(raw), nil
}

// WriteEncryptedKey seals the key and writes it to path with 0600 permissions.
func WriteEncryptedKey(path, privateKeyHex, password string) error {
	blob, err := EncryptKey(privateKeyHex, password)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, blob, 0o600); err != nil {
		return fmt.Errorf("crypto: write key file: %w", err)
	}
	return nil
}

// LoadKey resolves the configured key. A raw key wins over an encrypted file.
func LoadKey(cfg KeyConfig) (string, error) {
	switch {
	case cfg.RawPrivateKey != "":
		raw, err := decodeKey(cfg.RawPrivateKey)
		if err != nil {
			return "", err
		}
		return hex.EncodeToString(raw), nil
	case cfg.EncryptedKeyPath != "":
		blob, err := os.ReadFile(cfg.EncryptedKeyPath)
		if err != nil {
			return "", fmt.Errorf("crypto: read key file: %w", err)
		}
		return DecryptKey(blob, cfg.KeyPassword)
	default:
		return "", fmt.Errorf("crypto: %w: no private key or encrypted key file", domain.ErrMissingCredential)
	}
}

func decodeKey(s string) ([]byte, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, fmt.Errorf("crypto: private key is not hex: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("crypto: private key must be 32 bytes, got %d", len(raw))
	}
	return raw, nil
}

func newAEAD(password string, salt []byte) (cipher.AEAD, error) {
	if password == "" {
		return nil, errors.New("crypto: empty password")
	}
	block, err := aes.NewCipher(pbkdf2.Key([]byte(password), salt, kdfIterations, 32, sha256.New))
	if err != nil {
		return nil, fmt.Errorf("crypto: cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
