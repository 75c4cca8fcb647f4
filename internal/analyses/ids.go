package analyses

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	legacyPrefix = "analysis-"
	suffixLen    = 8
)

// NewID returns an id for a new analysis row.
func NewID() string {
	return uuid.NewString()
}

// LegacyID formats the analysis-<unix-ms> id used by older rows.
func LegacyID(t time.Time) string {
	return legacyPrefix + strconv.FormatInt(t.UnixMilli(), 10)
}

// IsLegacyID reports whether id has the analysis-<unix-ms> shape.
func IsLegacyID(id string) bool {
	rest, ok := strings.CutPrefix(strings.TrimSpace(id), legacyPrefix)
	if !ok || rest == "" {
		return false
	}
	_, err := strconv.ParseInt(rest, 10, 64)
	return err == nil
}

// IDSuffix returns the trailing characters used for fuzzy lookups.
func IDSuffix(id string) string {
	id = strings.TrimSpace(id)
	if len(id) <= suffixLen {
		return id
	}
	return id[len(id)-suffixLen:]
}
