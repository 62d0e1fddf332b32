package task

import (
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// NewID generates a task identifier combining a UTC timestamp at second
// resolution with a random 128-bit hex suffix. Identifiers are practically
// unique and roughly time-sortable without any coordination service.
func NewID() string {
	return newIDAt(time.Now())
}

func newIDAt(now time.Time) string {
	ts := now.UTC().Format("20060102150405")
	id := uuid.New()
	return ts + "_" + hex.EncodeToString(id[:])
}
