// Package seal binds a decision to a digest of its canonical form and,
// optionally, an Ed25519 signature over that digest.
package seal

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethosgate/ethosgate/internal/canonical"
	"github.com/ethosgate/ethosgate/internal/crypto"
	"github.com/ethosgate/ethosgate/internal/models"
)

const digestPrefix = "sha256:"

var (
	// ErrDigestMismatch means the decision changed after sealing
	ErrDigestMismatch = errors.New("seal: digest mismatch")
	// ErrBadSignature means the signature does not match the digest under the given key
	ErrBadSignature = errors.New("seal: signature invalid")
	// ErrUnsigned means a key was supplied but the seal carries no signature
	ErrUnsigned = errors.New("seal: decision is not signed")
)

// Seal over one decision
type Seal struct {
	CanonVersion canonical.Version `json:"canon_version"`
	Digest       string            `json:"digest"`
	Signature    string            `json:"signature,omitempty"` // hex
}

// Envelope is the on-disk form of a sealed decision
type Envelope struct {
	Decision models.Decision `json:"decision"`
	Seal     Seal            `json:"seal"`
}

// Digest of the canonical decision
func Digest(d models.Decision, version canonical.Version) (string, error) {
	data, err := canonical.Marshal(d, version)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return digestPrefix + hex.EncodeToString(sum[:]), nil
}

// Compute an unsigned seal
func Compute(d models.Decision, version canonical.Version) (Seal, error) {
	digest, err := Digest(d, version)
	if err != nil {
		return Seal{}, err
	}
	return Seal{CanonVersion: version, Digest: digest}, nil
}

// Sign computes a seal and signs its digest with the key at privateKeyPath
func Sign(d models.Decision, version canonical.Version, privateKeyPath string) (Seal, error) {
	s, err := Compute(d, version)
	if err != nil {
		return Seal{}, err
	}
	sig, err := crypto.Sign([]byte(s.Digest), privateKeyPath)
	if err != nil {
		return Seal{}, err
	}
	s.Signature = hex.EncodeToString(sig)
	return s, nil
}

// Verify recomputes the digest and, when publicKeyPath is set, checks the signature.
func Verify(d models.Decision, s Seal, publicKeyPath string) error {
	if !strings.HasPrefix(s.Digest, digestPrefix) {
		return fmt.Errorf("seal: unsupported digest %q", s.Digest)
	}
	version, err := canonical.ParseVersion(string(s.CanonVersion))
	if err != nil {
		return fmt.Errorf("seal: %w", err)
	}

	got, err := Digest(d, version)
	if err != nil {
		return err
	}
	if got != s.Digest {
		return fmt.Errorf("%w: sealed %s, recomputed %s", ErrDigestMismatch, s.Digest, got)
	}

	if publicKeyPath == "" {
		return nil
	}
	if s.Signature == "" {
		return ErrUnsigned
	}
	sig, err := hex.DecodeString(s.Signature)
	if err != nil {
		return fmt.Errorf("seal: invalid signature hex: %w", err)
	}
	ok, err := crypto.Verify([]byte(s.Digest), sig, publicKeyPath)
	if err != nil {
		return err
	}
	if !ok {
		return ErrBadSignature
	}
	return nil
}

// WriteEnvelope saves a sealed decision as indented JSON
func WriteEnvelope(path string, env Envelope) error {
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal sealed decision: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write sealed decision: %w", err)
	}
	return nil
}

// ReadEnvelope loads a sealed decision
func ReadEnvelope(path string) (Envelope, error) {
	var env Envelope
	data, err := os.ReadFile(path)
	if err != nil {
		return env, fmt.Errorf("failed to read sealed decision: %w", err)
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return env, fmt.Errorf("failed to parse sealed decision: %w", err)
	}
	return env, nil
}
