// Package fingerprint derives the opaque marker recorded for each
// materialized value. A fingerprint changes if and only if the persisted
// content changes.
package fingerprint

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/blake2b"

	"sidas/internal/asset"
)

// Strategy computes the fingerprint for a freshly produced value.
//
// prev is the asset's state before this materialization; strategies that
// carry a counter read it. Digest is always a content hash so that any
// strategy can tell whether content changed.
type Strategy interface {
	Name() string
	Fingerprint(value any, prev asset.State) (fp string, digest string, err error)
}

const (
	NameContentHash    = "content"
	NameVersionCounter = "version"
)

// ByName resolves a strategy name. Empty means content.
func ByName(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", NameContentHash:
		return ContentHash{}, nil
	case NameVersionCounter:
		return VersionCounter{}, nil
	default:
		return nil, fmt.Errorf("unknown fingerprint strategy %q (must be one of: %s, %s)",
			name, NameContentHash, NameVersionCounter)
	}
}

// Digest hashes the canonical JSON encoding of v with BLAKE2b-256.
func Digest(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("fingerprint: encode value: %w", err)
	}
	sum := blake2b.Sum256(b)
	return "b2:" + hex.EncodeToString(sum[:]), nil
}

// ContentHash uses the digest itself as the fingerprint.
type ContentHash struct{}

func (ContentHash) Name() string { return NameContentHash }

func (ContentHash) Fingerprint(value any, _ asset.State) (string, string, error) {
	d, err := Digest(value)
	if err != nil {
		return "", "", err
	}
	return d, d, nil
}

// VersionCounter issues v1, v2, ... and bumps only when the digest differs
// from the previous one.
type VersionCounter struct{}

func (VersionCounter) Name() string { return NameVersionCounter }

func (VersionCounter) Fingerprint(value any, prev asset.State) (string, string, error) {
	d, err := Digest(value)
	if err != nil {
		return "", "", err
	}
	if prev.Fingerprint != "" && prev.Digest == d {
		return prev.Fingerprint, d, nil
	}
	n := int64(0)
	if v, ok := strings.CutPrefix(prev.Fingerprint, "v"); ok {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			n = parsed
		}
	}
	return "v" + strconv.FormatInt(n+1, 10), d, nil
}
