package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"regexp"

	"github.com/bisegni/jsldal/pkg/parser"
	"github.com/bisegni/jsldal/pkg/query"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// SQLiteBackend is the name of the SQLite table backend.
const SQLiteBackend = "sqlite"

const (
	defaultSQLiteColumn  = "doc"
	defaultSQLiteOrderBy = "rowid"
)

var sqlIdentRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLiteOptions are the construction arguments of the sqlite backend. Each row
// of Table holds one JSON object in Column.
type SQLiteOptions struct {
	Path    string `mapstructure:"path"`
	Table   string `mapstructure:"table"`
	Column  string `mapstructure:"column"`
	OrderBy string `mapstructure:"order_by"`
}

// SQLiteFactory creates databases over a table of an SQLite file.
type SQLiteFactory struct{}

func NewSQLiteFactory() *SQLiteFactory {
	return &SQLiteFactory{}
}

// Name is part of Factory
func (f *SQLiteFactory) Name() string {
	return SQLiteBackend
}

// CreateDatabase is part of Factory
func (f *SQLiteFactory) CreateDatabase(ctx context.Context, args Args) (Database, error) {
	var opts SQLiteOptions
	if err := decodeArgs(SQLiteBackend, args, &opts); err != nil {
		return nil, err
	}
	return f.Open(ctx, opts)
}

// CreateCursor is part of Factory
func (f *SQLiteFactory) CreateCursor(ctx context.Context, args Args, q query.Query) (Cursor, error) {
	return createCursor(ctx, f, args, q)
}

// Open connects to the file and checks the table and column exist.
func (f *SQLiteFactory) Open(ctx context.Context, opts SQLiteOptions) (*SQLiteDatabase, error) {
	if opts.Column == "" {
		opts.Column = defaultSQLiteColumn
	}
	if opts.OrderBy == "" {
		opts.OrderBy = defaultSQLiteOrderBy
	}
	if opts.Path == "" {
		return nil, errors.Wrapf(ErrInvalidArgs, "%s: path is required", SQLiteBackend)
	}
	for name, v := range map[string]string{"table": opts.Table, "column": opts.Column, "order_by": opts.OrderBy} {
		if !sqlIdentRe.MatchString(v) {
			return nil, errors.Wrapf(ErrInvalidArgs, "%s: %s=%q is not a valid identifier", SQLiteBackend, name, v)
		}
	}

	target := opts.Path + "#" + opts.Table
	srcErr := func(err error) error {
		return &SourceError{Backend: SQLiteBackend, Target: target, Err: err}
	}

	// the driver would silently create a missing file
	if _, err := os.Stat(opts.Path); err != nil {
		return nil, srcErr(err)
	}

	sdb, err := sql.Open("sqlite", opts.Path)
	if err != nil {
		return nil, srcErr(err)
	}
	if err := sdb.PingContext(ctx); err != nil {
		_ = sdb.Close()
		return nil, srcErr(err)
	}

	stmt := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s", opts.Column, opts.Table, opts.OrderBy)
	rows, err := sdb.QueryContext(ctx, stmt+" LIMIT 0")
	if err != nil {
		_ = sdb.Close()
		return nil, srcErr(err)
	}
	if err := rows.Close(); err != nil {
		_ = sdb.Close()
		return nil, srcErr(err)
	}

	db := &SQLiteDatabase{
		handle: newHandle(f, target, parser.DecodeJSON),
		db:     sdb,
		stmt:   stmt,
	}
	db.logger.Debug("database opened", "stmt", stmt)
	return db, nil
}

// SQLiteDatabase scans one table. Each cursor runs its own query and owns its
// own rows.
type SQLiteDatabase struct {
	*handle
	db   *sql.DB
	stmt string
}

// Select is part of Database
func (db *SQLiteDatabase) Select(q query.Query) Cursor {
	return db.selectWith(q, func(ctx context.Context) (Source, error) {
		// the rows outlive the context of the first Next, they go away on Close
		qctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		rows, err := db.db.QueryContext(qctx, db.stmt)
		if err != nil {
			cancel()
			return nil, errors.Wrapf(err, "could not run %q", db.stmt)
		}
		return &rowSource{rows: rows, cancel: cancel}, nil
	})
}

// Close is part of Database
func (db *SQLiteDatabase) Close() error {
	if !db.markClosed() {
		return nil
	}
	db.logger.Debug("database closed")
	return db.db.Close()
}

// rowSource hands out the JSON column of every row.
type rowSource struct {
	rows   *sql.Rows
	cancel context.CancelFunc
	unit   sql.RawBytes
}

// NextUnit is part of Source
func (s *rowSource) NextUnit(ctx context.Context) ([]byte, bool, error) {
	if s.rows == nil {
		return nil, false, nil
	}
	if !s.rows.Next() {
		return nil, false, s.rows.Err()
	}
	if err := s.rows.Scan(&s.unit); err != nil {
		return nil, false, err
	}
	return s.unit, true, nil
}

// Close is part of Source
func (s *rowSource) Close() error {
	if s.rows == nil {
		return nil
	}
	err := s.rows.Close()
	s.cancel()
	s.rows = nil
	return err
}
