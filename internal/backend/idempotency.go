package backend

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewIdempotencyKey returns a fresh ULID suitable for the Idempotency-Key header.
func NewIdempotencyKey() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// EnsureIdempotencyKey keeps a caller-supplied key or generates one.
func EnsureIdempotencyKey(key string) string {
	if key = strings.TrimSpace(key); key != "" {
		return key
	}
	return NewIdempotencyKey()
}
