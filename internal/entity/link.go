// Package entity defines the short link entity and the domain errors shared by
// the use case, the storage adapters and the delivery layer.
package entity

import (
	"errors"
	"time"
)

var (
	// ErrInvalidURL is returned when the URL to shorten is empty or is not an absolute URL.
	ErrInvalidURL = errors.New("invalid url")
	// ErrLinkNotFound is returned when no live short link has the requested code.
	ErrLinkNotFound = errors.New("short link not found")
	// ErrCodeExists is returned by storage when a code is already taken.
	ErrCodeExists = errors.New("short code exists")
	// ErrCodeGenerationExhausted is returned when no free code was found within the retry budget.
	ErrCodeGenerationExhausted = errors.New("short code generation exhausted")
)

// ShortLink is a shortened URL together with its usage statistics.
type ShortLink struct {
	Code           string     // Code is the short identifier, unique among live links.
	OriginalURL    string     // OriginalURL is the absolute URL the code resolves to.
	CreatedAt      time.Time  // CreatedAt is the moment the link was created.
	VisitCount     int64      // VisitCount is the number of successful expands.
	LastAccessedAt *time.Time // LastAccessedAt is the moment of the latest expand, nil before the first one.
}

// Clone returns a deep copy of the link so callers can't share the timestamp pointer.
func (l *ShortLink) Clone() *ShortLink {
	c := *l
	if l.LastAccessedAt != nil {
		t := *l.LastAccessedAt
		c.LastAccessedAt = &t
	}
	return &c
}
