package identity

import (
	"crypto/rand"
	"fmt"
	"math"
	mrand "math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// TempIDPrefix marks ids minted locally for optimistic rows. An id with this
// prefix is never treated as a remote id.
const TempIDPrefix = "temp-"

// NewRequestID returns a correlation id for one transport request.
// Falls back to timestamp+random when the system entropy source fails.
func NewRequestID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		return fallbackID()
	}
	return id.String()
}

func fallbackID() string {
	return strconv.FormatInt(time.Now().UnixNano(), 36) + "-" + randomSuffix(8)
}

// NewTempID returns an id for an optimistic row.
// Format: "temp-" + unix millis + "-" + random base36.
func NewTempID() string {
	return fmt.Sprintf("%s%d-%s", TempIDPrefix, time.Now().UnixMilli(), randomSuffix(6))
}

// IsTempID reports whether id was minted by NewTempID.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

func randomSuffix(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = base36[mrand.IntN(len(base36))]
	}
	return string(b)
}

// GenerateProjectID generates a project ID using ULID.
// Format: "prj_" + ulid().
func GenerateProjectID() string {
	return "prj_" + generateULID()
}

// GenerateTaskID generates a task ID using ULID.
// Format: "tsk_" + ulid().
func GenerateTaskID() string {
	return "tsk_" + generateULID()
}

// GenerateMessageID generates a message ID using ULID.
// Format: "msg_" + ulid().
func GenerateMessageID() string {
	return "msg_" + generateULID()
}

// GenerateUserID generates a user ID using ULID.
// Format: "usr_" + ulid().
func GenerateUserID() string {
	return "usr_" + generateULID()
}

var (
	ulidMu      sync.Mutex
	ulidEntropy = ulid.Monotonic(rand.Reader, 0)
)

// generateULID generates a ULID string.
func generateULID() string {
	ulidMu.Lock()
	defer ulidMu.Unlock()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), ulidEntropy)
	return id.String()
}

// IDTimestamp extracts the creation time from a prefixed ULID id such as
// "tsk_01H...".
func IDTimestamp(id string) (time.Time, error) {
	_, raw, ok := strings.Cut(id, "_")
	if !ok {
		return time.Time{}, fmt.Errorf("id %q has no prefix", id)
	}
	parsed, err := ulid.Parse(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse ULID: %w", err)
	}
	ms := parsed.Time()
	if ms > uint64(math.MaxInt64) {
		return time.Time{}, fmt.Errorf("ULID timestamp %d exceeds int64 range", ms)
	}
	return time.UnixMilli(int64(ms)), nil //nolint:gosec // overflow checked above
}
