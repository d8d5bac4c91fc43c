// Package pagination implements keyset (cursor) pagination over collections
// ordered newest first by (created_at, id).
//
// A cursor records the position of the last item handed to the caller. The
// next page starts strictly after it, so inserts between requests never cause
// an item to be returned twice. Ties on the timestamp are broken by id.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"sort"
	"time"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// ErrInvalidCursor is returned when a cursor string cannot be decoded.
var ErrInvalidCursor = errors.New("invalid pagination cursor")

// Cursor identifies a position in a (CreatedAt DESC, ID DESC) ordering.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// IsZero reports whether the cursor points at the start of the collection.
func (c Cursor) IsZero() bool {
	return c.ID == "" && c.CreatedAt.IsZero()
}

// Request carries the raw paging parameters supplied by a caller.
type Request struct {
	Limit  int
	Cursor string
}

// Page is one slice of a paginated collection.
type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

type wireCursor struct {
	T  string `json:"t"`
	ID string `json:"id"`
}

// Encode renders a cursor as an opaque URL-safe token.
func Encode(c Cursor) string {
	if c.IsZero() {
		return ""
	}
	raw, _ := json.Marshal(wireCursor{T: c.CreatedAt.UTC().Format(time.RFC3339Nano), ID: c.ID})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// Decode parses a token produced by Encode. The empty token is the zero cursor.
func Decode(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, ErrInvalidCursor
	}
	var wc wireCursor
	if err := json.Unmarshal(raw, &wc); err != nil || wc.ID == "" {
		return Cursor{}, ErrInvalidCursor
	}
	ts, err := time.Parse(time.RFC3339Nano, wc.T)
	if err != nil {
		return Cursor{}, ErrInvalidCursor
	}
	return Cursor{CreatedAt: ts.UTC(), ID: wc.ID}, nil
}

// Normalize clamps the limit and decodes the cursor.
func Normalize(req Request) (int, Cursor, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	cursor, err := Decode(req.Cursor)
	if err != nil {
		return 0, Cursor{}, err
	}
	return limit, cursor, nil
}

// Before reports whether a sorts ahead of b in newest-first order.
func Before(a, b Cursor) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// After reports whether the item keyed by (createdAt, id) comes strictly after c.
func After(c Cursor, createdAt time.Time, id string) bool {
	if c.IsZero() {
		return true
	}
	return Before(c, Cursor{CreatedAt: createdAt, ID: id})
}

// Build turns rows fetched with limit+1 into a page.
func Build[T any](rows []T, limit int, key func(T) Cursor) Page[T] {
	page := Page[T]{Items: rows}
	if len(rows) > limit {
		page.Items = rows[:limit]
		page.HasMore = true
		page.NextCursor = Encode(key(page.Items[len(page.Items)-1]))
	}
	if page.Items == nil {
		page.Items = []T{}
	}
	return page
}

// Paginate pages through an in-memory collection. items is not modified.
func Paginate[T any](items []T, key func(T) Cursor, req Request) (Page[T], error) {
	limit, cursor, err := Normalize(req)
	if err != nil {
		return Page[T]{}, err
	}

	sorted := make([]T, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return Before(key(sorted[i]), key(sorted[j]))
	})

	rows := make([]T, 0, limit+1)
	for _, item := range sorted {
		k := key(item)
		if !After(cursor, k.CreatedAt, k.ID) {
			continue
		}
		rows = append(rows, item)
		if len(rows) > limit {
			break
		}
	}
	return Build(rows, limit, key), nil
}
