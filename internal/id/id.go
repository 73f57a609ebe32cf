package id

import (
	"encoding/hex"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var fallbackSeq atomic.Uint64

// New returns a random v4 UUID as 32 hex characters, used for sessions and
// conversions.
func New() string {
	u, err := uuid.NewRandom()
	if err != nil {
		return "id-" + strconv.FormatInt(time.Now().UnixNano(), 36) + "-" + strconv.FormatUint(fallbackSeq.Add(1), 36)
	}
	return hex.EncodeToString(u[:])
}
