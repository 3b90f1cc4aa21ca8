package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Equals checks if two hashes are equal
func (h Hash) Equals(other Hash) bool {
	return h == other
}

// Domain-specific hash types
type (
	ConfigHash Hash
	DataHash   Hash
)

// Constructors
func NewConfigHash(data []byte) ConfigHash { return ConfigHash(NewHash(data)) }
func NewDataHash(data []byte) DataHash     { return DataHash(NewHash(data)) }

// String conversions
func (h ConfigHash) String() string { return Hash(h).String() }
func (h DataHash) String() string   { return Hash(h).String() }

// ComputeConfigHash produces a deterministic fingerprint of calculator
// parameters so that two runs with identical configuration hash identically.
func ComputeConfigHash(params map[string]interface{}) ConfigHash {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var data strings.Builder
	for _, key := range keys {
		data.WriteString(key)
		data.WriteString(fmt.Sprintf("%v", params[key]))
	}

	return NewConfigHash([]byte(data.String()))
}
