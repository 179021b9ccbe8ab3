package fixtures

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// ContentHash computes the stable content hash of a fixture: a hex-encoded
// SHA-256 over the canonical JSON of the operation and data. encoding/json
// marshals map keys in sorted order, so semantically identical payloads hash
// identically regardless of the key order they arrived in.
func ContentHash(operation string, data map[string]any) (string, error) {
	canonical, err := json.Marshal(map[string]any{
		"operation": operation,
		"data":      data,
	})
	if err != nil {
		return "", fmt.Errorf("canonicalize fixture content: %w", err)
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// canonicalData renders the data payload as canonical JSON for storage,
// with the same sorted-key property as ContentHash.
func canonicalData(data map[string]any) (string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode fixture data: %w", err)
	}
	return string(raw), nil
}
