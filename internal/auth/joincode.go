package auth

import (
	"strings"

	"github.com/google/uuid"
)

// JoinCodeLength is the number of characters in a household join code.
const JoinCodeLength = 8

// NewJoinCode returns an uppercase alphanumeric code cut from a random UUID.
func NewJoinCode() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(id[:JoinCodeLength])
}
