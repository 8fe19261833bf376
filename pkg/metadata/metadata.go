// Package metadata stamps generated markdown with a content hash so that
// later edits can be detected.
package metadata

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// TagStart opens the stamp block.
	TagStart = "<!-- LANDSCOUT_STAMP"
	// TagEnd closes the stamp block.
	TagEnd = "LANDSCOUT_STAMP -->"
)

// Stamp verification errors.
var (
	ErrNoStamp      = errors.New("no stamp block found")
	ErrNoHashFound  = errors.New("no hash found in stamp")
	ErrHashMismatch = errors.New("hash mismatch")
)

// Stamp describes a generated document.
type Stamp struct {
	Generated time.Time
	RunID     string
	Hash      string
	Listings  int
}

var stampRegex = regexp.MustCompile(`(?s)\n*<!--\s*LANDSCOUT_STAMP\s*\n(.*?)\n\s*LANDSCOUT_STAMP\s*-->\s*`)

// Extract splits content into its stamp (nil when absent) and the stamped
// body. The body is what the hash covers.
func Extract(content string) (*Stamp, string) {
	match := stampRegex.FindStringSubmatch(content)
	body := strings.TrimRight(stampRegex.ReplaceAllString(content, ""), "\n")

	if len(match) < 2 {
		return nil, body
	}

	stamp := &Stamp{}

	for line := range strings.SplitSeq(match[1], "\n") {
		key, val, ok := strings.Cut(strings.TrimSpace(line), ":")
		if !ok {
			continue
		}

		val = strings.TrimSpace(val)

		switch strings.TrimSpace(key) {
		case "RUN_ID":
			stamp.RunID = val
		case "GENERATED":
			if t, err := time.Parse(time.RFC3339, val); err == nil {
				stamp.Generated = t
			}
		case "LISTINGS":
			if n, err := strconv.Atoi(val); err == nil {
				stamp.Listings = n
			}
		case "HASH":
			stamp.Hash = val
		}
	}

	return stamp, body
}

// Hash returns the hex SHA-256 of the unstamped body of content.
func Hash(content string) string {
	_, body := Extract(content)
	sum := sha256.Sum256([]byte(body))

	return hex.EncodeToString(sum[:])
}

// Sign replaces any existing stamp in content with a fresh one.
func Sign(content string, s Stamp) string {
	_, body := Extract(content)

	if s.Generated.IsZero() {
		s.Generated = time.Now()
	}

	return fmt.Sprintf("%s\n\n%s\nRUN_ID: %s\nGENERATED: %s\nLISTINGS: %d\nHASH: %s\n%s\n",
		body, TagStart, s.RunID, s.Generated.UTC().Format(time.RFC3339), s.Listings, Hash(body), TagEnd)
}

// Verify checks that content still matches the hash in its stamp.
func Verify(content string) (*Stamp, error) {
	stamp, body := Extract(content)
	if stamp == nil {
		return nil, ErrNoStamp
	}

	if stamp.Hash == "" {
		return stamp, ErrNoHashFound
	}

	if got := Hash(body); got != stamp.Hash {
		return stamp, fmt.Errorf("%w: expected %s, got %s", ErrHashMismatch, stamp.Hash, got)
	}

	return stamp, nil
}
