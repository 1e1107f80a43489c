package domain

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// APIKeyTailBytes is the random tail length in bytes (32 hex chars), per
// original_source's generate_api_key (16 random bytes = 32 hex chars).
const APIKeyTailBytes = 16

// GenerateAPIKey returns a fresh "sk-<name>-<32 hex>" key and its stored
// prefix "sk-<name>" for a newly created or regenerated user.
func GenerateAPIKey(name string) (key, prefix string, err error) {
	tail := make([]byte, APIKeyTailBytes)
	if _, err := rand.Read(tail); err != nil {
		return "", "", fmt.Errorf("generate api key: %w", err)
	}
	prefix = "sk-" + name
	key = prefix + "-" + hex.EncodeToString(tail)
	return key, prefix, nil
}

// ExtractAPIKeyPrefix splits a presented API key into its prefix, i.e.
// everything up to (not including) the final '-'. Keys must start with
// "sk-" and contain at least one dash after that prefix; otherwise ok is
// false.
func ExtractAPIKeyPrefix(key string) (prefix string, ok bool) {
	if !strings.HasPrefix(key, "sk-") {
		return "", false
	}
	last := strings.LastIndex(key, "-")
	if last <= 2 { // must be a dash after "sk-"
		return "", false
	}
	return key[:last], true
}
