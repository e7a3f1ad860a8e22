// Package rates holds the vendor rate documents, the contract a document
// store must satisfy, and the live cache that mirrors the store in memory.
//
// # Store contract
//
// A [Store] is an opaque id → document store with whole-collection change
// notification. Watch delivers the complete current collection first and
// again after every change; there are no diffs. Put replaces a document
// wholesale (no field merge).
//
// # Cache
//
// [Cache] consumes a Watch stream and keeps an immutable [State] behind an
// atomic pointer. Each snapshot builds a new State from scratch and swaps it
// in, so readers never observe a half-applied notification. Errors on the
// stream are logged and leave the previous State in place.
package rates

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/JonMunkholm/vendorrates/internal/ratecsv"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultName is the vendor used when an upload does not name one.
const DefaultName = "DHL"

// MaxNameLength bounds vendor names, counted in runes.
const MaxNameLength = 128

// ErrClosed is returned by stores that have been closed.
var ErrClosed = errors.New("vendor store closed")

// ErrNotFound is returned when no document exists for a vendor.
var ErrNotFound = errors.New("vendor not found")

// ErrInvalidName is returned for vendor names that cannot be used as ids.
var ErrInvalidName = errors.New("invalid vendor name")

// Document is one vendor's rate table.
type Document struct {
	Name   string               `json:"id"`
	Record ratecsv.ColumnRecord `json:"record"`
}

// Event is a single delivery from Store.Watch: either a full snapshot of the
// collection or an error. Snapshot is ordered by vendor name.
type Event struct {
	Snapshot []Document
	Err      error
}

// Store is the persistent document store behind the cache.
type Store interface {
	// Watch streams full snapshots until ctx is done, then closes the channel.
	Watch(ctx context.Context) (<-chan Event, error)

	// Put creates or fully replaces the document with doc.Name as its id.
	Put(ctx context.Context, doc Document) error

	Ping(ctx context.Context) error
	Close() error
}

// ResolveKey turns operator input into a document id: surrounding space is
// trimmed, an empty name falls back to fallback, and the result is
// upper-cased. "dhl" and "DHL" therefore address the same document.
// Input that is blank after trimming counts as empty, so "  " resolves to
// fallback.
func ResolveKey(input, fallback string) string {
	name := strings.TrimSpace(input)
	if name == "" {
		name = strings.TrimSpace(fallback)
	}
	// Casers are stateful; one per call.
	return cases.Upper(language.Und).String(name)
}

// ValidateKey rejects ids that are empty, too long or contain a path
// separator.
func ValidateKey(key string) error {
	switch {
	case key == "":
		return ErrInvalidName
	case utf8.RuneCountInString(key) > MaxNameLength:
		return ErrInvalidName
	case strings.ContainsAny(key, "/\\"):
		return ErrInvalidName
	}
	return nil
}
