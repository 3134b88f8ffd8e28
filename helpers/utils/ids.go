package utils

import (
	"crypto/rand"
	"sync"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// GenerateUUID returns a random UUID v4 string, used for request and error ids.
func GenerateUUID() string {
	return uuid.NewString()
}

// GenerateULID returns a lexicographically sortable id. Ids created in the
// same millisecond still sort in creation order.
func GenerateULID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Now(), entropy).String()
}

// GenerateShortID returns the first 8 hex characters of a fresh UUID.
func GenerateShortID() string {
	return uuid.NewString()[:8]
}
