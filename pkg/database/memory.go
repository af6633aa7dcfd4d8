package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/bisegni/jsldal/pkg/parser"
	"github.com/bisegni/jsldal/pkg/query"
)

// MemoryBackend is the name of the in-memory backend.
const MemoryBackend = "memory"

// MemoryOptions are the construction arguments of the memory backend.
type MemoryOptions struct {
	// Lines hold one JSON object each.
	Lines []string `mapstructure:"lines"`
}

// MemoryFactory creates databases over a list of lines held in memory.
type MemoryFactory struct{}

func NewMemoryFactory() *MemoryFactory {
	return &MemoryFactory{}
}

// Name is part of Factory
func (f *MemoryFactory) Name() string {
	return MemoryBackend
}

// CreateDatabase is part of Factory
func (f *MemoryFactory) CreateDatabase(ctx context.Context, args Args) (Database, error) {
	var opts MemoryOptions
	if err := decodeArgs(MemoryBackend, args, &opts); err != nil {
		return nil, err
	}
	return f.Open(opts.Lines...), nil
}

// CreateCursor is part of Factory
func (f *MemoryFactory) CreateCursor(ctx context.Context, args Args, q query.Query) (Cursor, error) {
	return createCursor(ctx, f, args, q)
}

// Open creates the database. The lines are copied.
func (f *MemoryFactory) Open(lines ...string) *MemoryDatabase {
	snapshot := make([]string, len(lines))
	copy(snapshot, lines)
	return &MemoryDatabase{
		handle: newHandle(f, fmt.Sprintf("%d lines", len(lines)), parser.DecodeJSON),
		lines:  snapshot,
	}
}

// MemoryDatabase is an immutable list of lines.
type MemoryDatabase struct {
	*handle
	lines []string
}

// Select is part of Database
func (db *MemoryDatabase) Select(q query.Query) Cursor {
	return db.selectWith(q, func(ctx context.Context) (Source, error) {
		return &sliceSource{lines: db.lines}, nil
	})
}

// Close is part of Database
func (db *MemoryDatabase) Close() error {
	db.markClosed()
	return nil
}

// sliceSource walks the lines with its own index. Blank lines are skipped as the
// file backend does.
type sliceSource struct {
	lines []string
	idx   int
}

// NextUnit is part of Source
func (s *sliceSource) NextUnit(ctx context.Context) ([]byte, bool, error) {
	for s.idx < len(s.lines) {
		line := s.lines[s.idx]
		s.idx++
		if strings.TrimSpace(line) == "" {
			continue
		}
		return []byte(line), true, nil
	}
	return nil, false, nil
}

// Close is part of Source
func (s *sliceSource) Close() error {
	s.idx = len(s.lines)
	return nil
}
