// Package announce builds the announcement text posted for a new preprint.
package announce

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/crxbot/crx_agent/pkg/chemrxiv"
)

// MaxRunes is the hard character limit of the target platform. A message of
// exactly MaxRunes characters is rejected, matching the original bot.
const MaxRunes = 280

// ErrTooLong is returned by Build when the announcement cannot fit. Callers
// treat it as an expected outcome (skip posting, flag for manual review),
// not a programming error.
var ErrTooLong = errors.New("announcement exceeds the character limit")

// Build formats the fixed announcement template:
//
//	<title> by <author> & co-workers
//
//	<canonical URL>
func Build(title, author, canonicalURL string) (string, error) {
	text := fmt.Sprintf("%s by %s & co-workers\n\n%s", title, author, canonicalURL)
	if utf8.RuneCountInString(text) >= MaxRunes {
		return "", ErrTooLong
	}
	return text, nil
}

// AuthorPolicy selects which author gets credited in the announcement.
type AuthorPolicy func(authors []chemrxiv.Author) (string, error)

// LastAuthor credits the final entry of the author list. Neither first nor
// last author is always the right choice; last is the original bot's
// default and is kept as such.
func LastAuthor(authors []chemrxiv.Author) (string, error) {
	if len(authors) == 0 {
		return "", errors.New("preprint has no authors")
	}
	return authors[len(authors)-1].FullName, nil
}

// FirstAuthor credits the first entry of the author list.
func FirstAuthor(authors []chemrxiv.Author) (string, error) {
	if len(authors) == 0 {
		return "", errors.New("preprint has no authors")
	}
	return authors[0].FullName, nil
}

// PolicyByName maps a configuration value to an author policy. Unknown names
// fall back to LastAuthor.
func PolicyByName(name string) AuthorPolicy {
	switch name {
	case "first":
		return FirstAuthor
	default:
		return LastAuthor
	}
}
