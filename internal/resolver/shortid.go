// Package resolver turns the uid prefixes users type on the command line into full uids.
package resolver

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// MinShortIDLength is the minimum length of a uid prefix.
const MinShortIDLength = 6

// Resolve returns the single candidate whose uid starts with shortID. A full uid must be
// one of the candidates. what names the kind of object in errors ("record", "board").
func Resolve(shortID string, candidates []uuid.UUID, what string) (uuid.UUID, error) {
	shortID = strings.ToLower(strings.TrimSpace(shortID))

	if uid, err := uuid.Parse(shortID); err == nil {
		for _, c := range candidates {
			if c == uid {
				return uid, nil
			}
		}
		return uuid.Nil, &NotFoundError{ShortID: shortID, What: what}
	}

	if len(shortID) < MinShortIDLength {
		return uuid.Nil, fmt.Errorf("short ID must be at least %d characters (got %d)", MinShortIDLength, len(shortID))
	}

	var matches []uuid.UUID
	for _, c := range candidates {
		if strings.HasPrefix(c.String(), shortID) {
			matches = append(matches, c)
		}
	}

	switch len(matches) {
	case 0:
		return uuid.Nil, &NotFoundError{ShortID: shortID, What: what}
	case 1:
		return matches[0], nil
	default:
		sort.Slice(matches, func(i, j int) bool { return matches[i].String() < matches[j].String() })
		return uuid.Nil, &AmbiguousError{ShortID: shortID, What: what, Matches: matches}
	}
}

// NotFoundError indicates no candidate matched the short ID.
type NotFoundError struct {
	ShortID string
	What    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no %ss found matching '%s'", e.What, e.ShortID)
}

// AmbiguousError indicates several candidates matched the short ID.
type AmbiguousError struct {
	ShortID string
	What    string
	Matches []uuid.UUID
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous short ID '%s' matches %d %ss", e.ShortID, len(e.Matches), e.What)
}

// Details lists the matching uids (up to 10, then "...and N more").
func (e *AmbiguousError) Details() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Error: %s:\n", e.Error())

	shown := len(e.Matches)
	if shown > 10 {
		shown = 10
	}
	for _, m := range e.Matches[:shown] {
		fmt.Fprintf(&b, "  %s\n", m)
	}
	if len(e.Matches) > 10 {
		fmt.Fprintf(&b, "  ...and %d more\n", len(e.Matches)-10)
	}

	fmt.Fprintf(&b, "\nUse a longer prefix to uniquely identify the %s.", e.What)
	return b.String()
}

// IsNotFoundError checks if an error is a NotFoundError.
func IsNotFoundError(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsAmbiguousError checks if an error is an AmbiguousError.
func IsAmbiguousError(err error) bool {
	var target *AmbiguousError
	return errors.As(err, &target)
}
