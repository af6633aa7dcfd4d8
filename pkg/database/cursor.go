package database

import (
	"context"
	"iter"
	"log/slog"

	"github.com/bisegni/jsldal/pkg/parser"
	"github.com/bisegni/jsldal/pkg/query"
	"github.com/pkg/errors"
)

// scanCursor pulls units from its own Source, decodes them and returns only the
// records matching the query. Filtering is part of the pull chain, so at most one
// unit is held at any time and nothing is read ahead.
type scanCursor struct {
	logger *slog.Logger
	open   Opener
	decode Decoder
	query  query.Query

	src      Source
	rec      parser.Record
	current  int
	err      error
	closeErr error
	done     bool
}

// NewCursor builds a cursor over the sources returned by open. The source is opened
// on the first Next call, not here. Backends outside this package can use it to
// satisfy Database.Select.
func NewCursor(open Opener, decode Decoder, q query.Query) Cursor {
	return newCursor(slog.Default(), open, decode, q)
}

func newCursor(logger *slog.Logger, open Opener, decode Decoder, q query.Query) *scanCursor {
	return &scanCursor{
		logger: logger,
		open:   open,
		decode: decode,
		query:  q,
	}
}

// Next is part of Cursor
func (c *scanCursor) Next(ctx context.Context) bool {
	if c.done {
		return false
	}
	c.rec = nil

	if c.src == nil {
		src, err := c.open(ctx)
		if err != nil {
			c.fail(err)
			return false
		}
		c.src = src
	}

	for {
		if err := ctx.Err(); err != nil {
			c.fail(err)
			return false
		}

		unit, hasMore, err := c.src.NextUnit(ctx)
		if err != nil {
			c.fail(errors.Wrapf(err, "could not read unit %d", c.current+1))
			return false
		}
		if !hasMore {
			c.logger.Debug("cursor exhausted", "scanned", c.current)
			c.release()
			return false
		}
		c.current++

		rec, err := c.decode(unit)
		if err != nil {
			c.fail(&DecodeError{Position: c.current, Unit: string(unit), Err: err})
			return false
		}

		if c.query.Match(rec) {
			c.rec = rec
			return true
		}
	}
}

// Record is part of Cursor
func (c *scanCursor) Record() parser.Record {
	return c.rec
}

// Err is part of Cursor
func (c *scanCursor) Err() error {
	return c.err
}

// Current is part of Cursor
func (c *scanCursor) Current() int {
	return c.current
}

// Close is part of Cursor
func (c *scanCursor) Close() error {
	c.rec = nil
	c.release()
	return c.closeErr
}

func (c *scanCursor) fail(err error) {
	c.err = err
	c.release()
}

func (c *scanCursor) release() {
	c.done = true
	if c.src != nil {
		c.closeErr = c.src.Close()
		c.src = nil
	}
}

// ownedCursor closes the database it was selected from together with itself.
type ownedCursor struct {
	Cursor
	db Database
}

func (oc *ownedCursor) Close() error {
	err := oc.Cursor.Close()
	if dbErr := oc.db.Close(); err == nil {
		err = dbErr
	}
	return err
}

// createCursor implements Factory.CreateCursor in terms of CreateDatabase.
func createCursor(ctx context.Context, f Factory, args Args, q query.Query) (Cursor, error) {
	db, err := f.CreateDatabase(ctx, args)
	if err != nil {
		return nil, err
	}
	return &ownedCursor{Cursor: db.Select(q), db: db}, nil
}

// Records adapts cur to a range-over-func iterator. The cursor error, if any, is
// yielded last with a nil record. The cursor is closed when the loop ends.
func Records(ctx context.Context, cur Cursor) iter.Seq2[parser.Record, error] {
	return func(yield func(parser.Record, error) bool) {
		defer cur.Close()
		for cur.Next(ctx) {
			if !yield(cur.Record(), nil) {
				return
			}
		}
		if err := cur.Err(); err != nil {
			yield(nil, err)
		}
	}
}

// Collect drains cur into a slice and closes it. The records read before an error
// are returned together with it.
func Collect(ctx context.Context, cur Cursor) ([]parser.Record, error) {
	var res []parser.Record
	for rec, err := range Records(ctx, cur) {
		if err != nil {
			return res, err
		}
		res = append(res, rec)
	}
	return res, nil
}
