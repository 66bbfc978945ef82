package bt

import (
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// DisplayPath returns p with every byte sequence that is not valid UTF-8
// replaced by U+FFFD, so it can be logged and sent in notifications.
func DisplayPath(p string) string {
	s, _, err := transform.String(runes.ReplaceIllFormed(), p)
	if err != nil {
		return p
	}
	return s
}
