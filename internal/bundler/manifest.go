// Package bundler packs a sealed decision and the evidence behind it into a
// deterministic zip archive.
package bundler

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/ethosgate/ethosgate/internal/seal"
	"github.com/ethosgate/ethosgate/internal/version"
)

// Well-known entry names
const (
	ManifestName = "manifest.json"
	DecisionName = "decision.json"
	ConfigName   = "config.yaml"
	PublicKey    = "public.key"
	ReceiptName  = "receipt.json"
	ReadmeName   = "README.txt"
)

// Manifest describes the bundle contents
type Manifest struct {
	ToolVersion  string         `json:"tool_version"`
	RequestID    string         `json:"request_id"`
	Verdict      string         `json:"verdict"`
	Digest       string         `json:"digest"`
	CanonVersion string         `json:"canon_version"`
	Signed       bool           `json:"signed"`
	Config       string         `json:"config,omitempty"`
	Files        []ManifestFile `json:"files"`
}

// ManifestFile is one hashed bundle entry
type ManifestFile struct {
	Name   string `json:"name"`
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
}

// NewManifest hashes every entry; files are sorted by name.
func NewManifest(env seal.Envelope, configName string, entries []Entry) *Manifest {
	m := &Manifest{
		ToolVersion:  version.BuildVersion(),
		RequestID:    env.Decision.RequestID,
		Verdict:      string(env.Decision.Verdict),
		Digest:       env.Seal.Digest,
		CanonVersion: string(env.Seal.CanonVersion),
		Signed:       env.Seal.Signature != "",
		Config:       configName,
		Files:        make([]ManifestFile, 0, len(entries)),
	}
	for _, e := range entries {
		m.Files = append(m.Files, ManifestFile{
			Name:   e.Name,
			SHA256: hashBytes(e.Data),
			Size:   int64(len(e.Data)),
		})
	}
	sort.Slice(m.Files, func(i, j int) bool {
		return m.Files[i].Name < m.Files[j].Name
	})
	return m
}

// ToJSON deterministic
func (m *Manifest) ToJSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// check compares entry contents against the manifest
func (m *Manifest) check(files map[string][]byte) error {
	for _, f := range m.Files {
		data, ok := files[f.Name]
		if !ok {
			return fmt.Errorf("%w: %s listed in manifest but missing", ErrCorrupt, f.Name)
		}
		if got := hashBytes(data); got != f.SHA256 {
			return fmt.Errorf("%w: %s hash %s, manifest says %s", ErrCorrupt, f.Name, got, f.SHA256)
		}
	}
	if len(files) != len(m.Files) {
		return fmt.Errorf("%w: bundle has %d files, manifest lists %d", ErrCorrupt, len(files), len(m.Files))
	}
	return nil
}

func hashBytes(data []byte) string {
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash)
}
