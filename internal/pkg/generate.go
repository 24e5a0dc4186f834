package pkg

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

// Alphabet excludes ambiguous characters: 0, O, 1, I, L.
const inviteAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const inviteCodeLength = 6

// GenerateRoomID - generates a unique identifier for a room.
func GenerateRoomID() string {
	return uuid.NewString()
}

// GeneratePlayerID - generates a unique identifier for a player session.
func GeneratePlayerID() string {
	return uuid.NewString()
}

// GenerateInviteCode - generates a short human-typeable invite code.
// Uniqueness among waiting rooms is the caller's job; collisions are
// handled by regenerating.
func GenerateInviteCode() (string, error) {
	code := make([]byte, inviteCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(inviteAlphabet))))
		if err != nil {
			return "", fmt.Errorf("failed to generate invite code: %w", err)
		}
		code[i] = inviteAlphabet[n.Int64()]
	}

	return string(code), nil
}
