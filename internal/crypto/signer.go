// Package crypto manages Ed25519 keys for decision seals.
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
)

const (
	privateKeyType = "ED25519 PRIVATE KEY"
	publicKeyType  = "ED25519 PUBLIC KEY"
)

// GenerateKeys writes a new keypair as PEM; the private key file is 0600
func GenerateKeys(privateKeyPath, publicKeyPath string) error {
	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("failed to generate keypair: %w", err)
	}

	if err := writePEM(privateKeyPath, privateKeyType, privateKey, 0600); err != nil {
		return fmt.Errorf("private key: %w", err)
	}
	if err := writePEM(publicKeyPath, publicKeyType, publicKey, 0644); err != nil {
		return fmt.Errorf("public key: %w", err)
	}
	return nil
}

func writePEM(path, blockType string, der []byte, perm os.FileMode) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	if err := pem.Encode(f, &pem.Block{Type: blockType, Bytes: der}); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func readPEM(path, wantType string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block in %s", path)
	}
	if block.Type != wantType {
		return nil, fmt.Errorf("invalid key type: expected %s, got %s", wantType, block.Type)
	}
	return block.Bytes, nil
}

// LoadPrivateKey reads a PEM private key written by GenerateKeys
func LoadPrivateKey(path string) (ed25519.PrivateKey, error) {
	der, err := readPEM(path, privateKeyType)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}
	if len(der) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid private key size")
	}
	return ed25519.PrivateKey(der), nil
}

// LoadPublicKey reads a PEM public key written by GenerateKeys
func LoadPublicKey(path string) (ed25519.PublicKey, error) {
	der, err := readPEM(path, publicKeyType)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key: %w", err)
	}
	if len(der) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid public key size")
	}
	return ed25519.PublicKey(der), nil
}

// Sign data with the key at privateKeyPath
func Sign(data []byte, privateKeyPath string) ([]byte, error) {
	key, err := LoadPrivateKey(privateKeyPath)
	if err != nil {
		return nil, err
	}
	return ed25519.Sign(key, data), nil
}

// Verify reports whether signature matches data under the key at publicKeyPath
func Verify(data []byte, signature []byte, publicKeyPath string) (bool, error) {
	key, err := LoadPublicKey(publicKeyPath)
	if err != nil {
		return false, err
	}
	return ed25519.Verify(key, data, signature), nil
}
