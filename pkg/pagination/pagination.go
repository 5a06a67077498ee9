// Package pagination covers the two list styles the API serves: numbered
// pages for catalogue and admin screens, keyset cursors for a user's trade
// inbox.
package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultSize = 20
	MaxSize     = 100
)

// Page is a normalised page number and size.
type Page struct {
	Number int
	Size   int
}

// NewPage clamps number to >= 1 and size to 1..MaxSize, using DefaultSize
// when size is not positive.
func NewPage(number, size int) Page {
	if number < 1 {
		number = 1
	}
	switch {
	case size <= 0:
		size = DefaultSize
	case size > MaxSize:
		size = MaxSize
	}
	return Page{Number: number, Size: size}
}

// Offset is the number of rows before this page.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// Cursor points at the last row of the previous page in (created_at DESC,
// id DESC) order.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

var errMalformed = errors.New("malformed cursor")

// Encode returns an opaque, URL-safe token.
func (c Cursor) Encode() string {
	raw := c.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + c.ID.String()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// ParseCursor decodes a token from Encode. An empty token yields nil.
func ParseCursor(token string) (*Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, errMalformed
	}
	stamp, id, ok := strings.Cut(string(raw), "|")
	if !ok {
		return nil, errMalformed
	}
	createdAt, err := time.Parse(time.RFC3339Nano, stamp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}
	parsedID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}
	return &Cursor{CreatedAt: createdAt, ID: parsedID}, nil
}

// Trim cuts rows fetched with size+1 back to size. more reports whether the
// extra row was present.
func Trim[T any](rows []T, size int) (page []T, more bool) {
	if len(rows) > size {
		return rows[:size], true
	}
	return rows, false
}
