// Package ids generates prefixed entity identifiers.
package ids

import (
	"strings"

	"github.com/google/uuid"
)

// Prefixes for the entity kinds that mint ids.
const (
	UserPrefix  = "u_"
	PostPrefix  = "p_"
	ImagePrefix = "img_"
)

// New returns a fresh id with the given kind prefix.
func New(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}
