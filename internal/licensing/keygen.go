// Package licensing implements the license code registry: issuing,
// validating, and retiring redeemable codes.
package licensing

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"strings"
)

const (
	codeGroups    = 4
	codeGroupSize = 4
)

// GenerateCode returns a new random license code of the form
// XXXX-XXXX-XXXX-XXXX using the base32 alphabet.
func GenerateCode() (string, error) {
	raw := make([]byte, 10)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}

	encoded := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(raw)

	groups := make([]string, 0, codeGroups)
	for i := 0; i < codeGroups; i++ {
		start := i * codeGroupSize
		groups = append(groups, encoded[start:start+codeGroupSize])
	}
	return strings.Join(groups, "-"), nil
}

// NormalizeCode uppercases a user-supplied code and strips surrounding
// whitespace so lookups are case-insensitive.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
