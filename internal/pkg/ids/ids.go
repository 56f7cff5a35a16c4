package ids

import (
	mathrand "math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const orderPrefix = "ORD-"

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// NewOrderNumber returns an externally visible, lexicographically sortable order number.
func NewOrderNumber() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return orderPrefix + ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// IsOrderNumber reports whether s has the shape produced by NewOrderNumber.
func IsOrderNumber(s string) bool {
	if !strings.HasPrefix(s, orderPrefix) {
		return false
	}
	_, err := ulid.ParseStrict(strings.TrimPrefix(s, orderPrefix))
	return err == nil
}
