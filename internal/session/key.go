package session

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const keyPrefix = "imported_data_"

var keyPattern = regexp.MustCompile(`^imported_data_[0-9]+_[0-9a-f]{32}$`)

// NewKey returns an unguessable session key: a creation timestamp plus 122
// random bits.
func NewKey(now time.Time) string {
	id := uuid.New()
	return fmt.Sprintf("%s%d_%s", keyPrefix, now.Unix(), strings.ReplaceAll(id.String(), "-", ""))
}

// ValidKey reports whether key has the shape produced by NewKey. Keys are
// used as directory names, so anything else is rejected outright.
func ValidKey(key string) bool {
	return keyPattern.MatchString(key)
}
