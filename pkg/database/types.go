package database

import (
	"context"

	"github.com/bisegni/jsldal/pkg/parser"
	"github.com/bisegni/jsldal/pkg/query"
)

// Source produces raw units (lines, rows, documents) in a fixed order.
// Every cursor owns its own Source; a Source is never shared.
type Source interface {
	// NextUnit returns the next raw unit. hasMore is false once the source is
	// exhausted, permanently. The returned slice is only valid until the next call.
	NextUnit(ctx context.Context) (unit []byte, hasMore bool, err error)
	// Close releases the resources held by the source. It is safe to call twice.
	Close() error
}

// Opener creates a fresh Source positioned at the beginning of the data.
type Opener func(ctx context.Context) (Source, error)

// Decoder turns one raw unit into a Record.
type Decoder func(unit []byte) (parser.Record, error)

// Cursor is a lazy, filtered, single-pass sequence of records.
type Cursor interface {
	// Next advances to the next record matching the query. It returns false when
	// the source is exhausted or an error occurred; check Err to tell them apart.
	// Once Next returned false, it keeps returning false.
	Next(ctx context.Context) bool
	// Record returns the record Next stopped at.
	Record() parser.Record
	// Err returns the error which terminated the cursor, if any.
	Err() error
	// Current returns the number of raw units pulled from the source so far,
	// matching or not.
	Current() int
	// Close releases the cursor's source. It may be called at any time.
	Close() error
}

// Database is an opened storage target which can be scanned by cursors.
type Database interface {
	// Factory returns the factory which created the database.
	Factory() Factory
	// Select returns a new cursor scoped to q. It never reads and never fails,
	// problems opening the data are reported by the cursor's Err.
	Select(q query.Query) Cursor
	// Close releases the handle.
	Close() error
}

// Args are backend-defined construction arguments, e.g. {"path": "cities.jsonl"}.
type Args map[string]interface{}

// Factory constructs databases and cursors of one backend kind.
type Factory interface {
	// Name returns the backend name, e.g. "jsonl"
	Name() string
	// CreateDatabase opens the storage target described by args.
	CreateDatabase(ctx context.Context, args Args) (Database, error)
	// CreateCursor opens the target and selects q on it. The returned cursor owns
	// the database and closes it on Close.
	CreateCursor(ctx context.Context, args Args, q query.Query) (Cursor, error)
}
