package database

import (
	"context"
	"log/slog"
	"sync"

	"github.com/bisegni/jsldal/pkg/query"
)

// handle is the state shared by the database implementations of this package.
type handle struct {
	factory Factory
	logger  *slog.Logger
	decode  Decoder

	mu     sync.Mutex
	closed bool
}

func newHandle(f Factory, target string, decode Decoder) *handle {
	return &handle{
		factory: f,
		logger:  slog.Default().With("backend", f.Name(), "target", target),
		decode:  decode,
	}
}

// Factory is part of Database
func (h *handle) Factory() Factory {
	return h.factory
}

// markClosed returns true only for the call which actually closed the handle.
func (h *handle) markClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.closed = true
	return true
}

func (h *handle) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// selectWith builds the cursor for Select. open is called on the first Next of the
// cursor, when the handle must still be open.
func (h *handle) selectWith(q query.Query, open Opener) Cursor {
	guarded := func(ctx context.Context) (Source, error) {
		if h.isClosed() {
			return nil, ErrClosed
		}
		return open(ctx)
	}
	h.logger.Debug("select", "query", q.String())
	return newCursor(h.logger, guarded, h.decode, q)
}
