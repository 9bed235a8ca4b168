package mfa

import (
	"strings"

	"github.com/google/uuid"
)

const backupCodeLength = 8

// newBackupCodes returns n random upper-case codes of 8 hex characters.
func newBackupCodes(n int) []string {
	codes := make([]string, n)
	for i := range codes {
		codes[i] = strings.ToUpper(uuid.NewString()[:backupCodeLength])
	}
	return codes
}

// normalizeCode trims whitespace and upper-cases user input so backup codes
// match regardless of how they were typed.
func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
