// Package canonical produces byte-stable JSON for hashing and signing.
package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// Version selects the canonicalization scheme
type Version string

const (
	// V1 sorts object keys and keeps encoding/json number text
	V1 Version = "v1"
	// V2 is JCS (RFC 8785)
	V2 Version = "v2"
)

// DefaultVersion for new seals
const DefaultVersion = V2

// ParseVersion accepts "v1", "v2" or empty (default)
func ParseVersion(s string) (Version, error) {
	switch Version(s) {
	case "":
		return DefaultVersion, nil
	case V1, V2:
		return Version(s), nil
	default:
		return "", fmt.Errorf("unknown canonicalization version: %s", s)
	}
}

// Marshal encodes v with encoding/json and canonicalizes the result
func Marshal(v any, version Version) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical: %w", err)
	}
	return Transform(raw, version)
}

// Transform canonicalizes an existing JSON document
func Transform(raw []byte, version Version) ([]byte, error) {
	switch version {
	case V1:
		return transformV1(raw)
	case V2:
		out, err := jcs.Transform(raw)
		if err != nil {
			return nil, fmt.Errorf("canonical v2: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown canonicalization version: %s", version)
	}
}

// encoding/json writes map keys sorted, so a generic round trip is enough
func transformV1(raw []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("canonical v1: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("canonical v1: trailing data after JSON value")
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(generic); err != nil {
		return nil, fmt.Errorf("canonical v1: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
