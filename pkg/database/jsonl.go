package database

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/bisegni/jsldal/pkg/parser"
	"github.com/bisegni/jsldal/pkg/query"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// JSONLBackend is the name of the JSON Lines file backend.
const JSONLBackend = "jsonl"

// JSONLOptions are the construction arguments of the jsonl backend.
type JSONLOptions struct {
	// Path of the file, one JSON object per line. Files ending in ".gz" are
	// decompressed on the fly.
	Path string `mapstructure:"path"`
	// MaxLineSize limits the length of a single line, parser.DefaultMaxLineSize if 0.
	MaxLineSize int `mapstructure:"max_line_size"`
}

// JSONLFactory creates databases over JSON Lines files.
type JSONLFactory struct{}

// NewJSONLFactory returns the jsonl backend factory.
func NewJSONLFactory() *JSONLFactory {
	return &JSONLFactory{}
}

// Name is part of Factory
func (f *JSONLFactory) Name() string {
	return JSONLBackend
}

// CreateDatabase is part of Factory. It fails with a SourceError if the file
// cannot be opened.
func (f *JSONLFactory) CreateDatabase(ctx context.Context, args Args) (Database, error) {
	var opts JSONLOptions
	if err := decodeArgs(JSONLBackend, args, &opts); err != nil {
		return nil, err
	}
	return f.Open(opts)
}

// CreateCursor is part of Factory
func (f *JSONLFactory) CreateCursor(ctx context.Context, args Args, q query.Query) (Cursor, error) {
	return createCursor(ctx, f, args, q)
}

// Open creates the database from typed options.
func (f *JSONLFactory) Open(opts JSONLOptions) (*JSONLDatabase, error) {
	if opts.Path == "" {
		return nil, errors.Wrapf(ErrInvalidArgs, "%s: path is required", JSONLBackend)
	}
	if opts.MaxLineSize < 0 {
		return nil, errors.Wrapf(ErrInvalidArgs, "%s: max_line_size=%d must not be negative", JSONLBackend, opts.MaxLineSize)
	}

	// make sure the file can be read now, rather than on the first cursor advance
	src, err := openLineFile(opts.Path, opts.MaxLineSize)
	if err != nil {
		return nil, &SourceError{Backend: JSONLBackend, Target: opts.Path, Err: err}
	}
	if err := src.Close(); err != nil {
		return nil, &SourceError{Backend: JSONLBackend, Target: opts.Path, Err: err}
	}

	db := &JSONLDatabase{
		handle: newHandle(f, opts.Path, parser.DecodeJSON),
		opts:   opts,
	}
	db.logger.Debug("database opened")
	return db, nil
}

// JSONLDatabase is a JSON Lines file. Every cursor opens the file on its own, so
// cursors never share a read position.
type JSONLDatabase struct {
	*handle
	opts JSONLOptions
}

// Select is part of Database
func (db *JSONLDatabase) Select(q query.Query) Cursor {
	return db.selectWith(q, func(ctx context.Context) (Source, error) {
		src, err := openLineFile(db.opts.Path, db.opts.MaxLineSize)
		if err != nil {
			return nil, &SourceError{Backend: JSONLBackend, Target: db.opts.Path, Err: err}
		}
		return src, nil
	})
}

// Close is part of Database
func (db *JSONLDatabase) Close() error {
	if db.markClosed() {
		db.logger.Debug("database closed")
	}
	return nil
}

// lineSource hands out the lines of a file.
type lineSource struct {
	lr *parser.LineReader
	// file is set when lr reads through a decompressor which does not close it
	file io.Closer
}

func openLineFile(path string, maxLineSize int) (*lineSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if !fi.Mode().IsRegular() {
		_ = f.Close()
		return nil, errors.Errorf("%s is not a regular file", path)
	}

	if strings.HasSuffix(path, ".gz") {
		zr, err := gzip.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, errors.Wrapf(err, "could not read gzip header of %s", path)
		}
		return &lineSource{lr: parser.NewLineReader(zr, maxLineSize), file: f}, nil
	}
	return &lineSource{lr: parser.NewLineReader(f, maxLineSize)}, nil
}

// NextUnit is part of Source
func (s *lineSource) NextUnit(ctx context.Context) ([]byte, bool, error) {
	return s.lr.Next()
}

// Close is part of Source
func (s *lineSource) Close() error {
	err := s.lr.Close()
	if s.file != nil {
		if ferr := s.file.Close(); err == nil {
			err = ferr
		}
		s.file = nil
	}
	return err
}
