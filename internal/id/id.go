package id

import (
	"fmt"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// InviteAlphabet is the character set of board invite codes.
const InviteAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// InviteCodeLength is the fixed length of an invite code.
const InviteCodeLength = 16

// Generate creates a prefixed unique ID, e.g. "card-V1StGXR8_Z5jdHi6B-myT".
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// InviteCode returns a fresh 16 character code from InviteAlphabet.
func InviteCode() (string, error) {
	code, err := gonanoid.Generate(InviteAlphabet, InviteCodeLength)
	if err != nil {
		return "", fmt.Errorf("generate invite code: %w", err)
	}
	return code, nil
}

// NormalizeInviteCode upper-cases and trims a user-entered code and reports
// whether it has the right shape.
func NormalizeInviteCode(code string) (string, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != InviteCodeLength {
		return code, false
	}
	for _, r := range code {
		if !strings.ContainsRune(InviteAlphabet, r) {
			return code, false
		}
	}
	return code, true
}
