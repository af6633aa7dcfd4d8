package database

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/bisegni/jsldal/pkg/parser"
	"github.com/bisegni/jsldal/pkg/query"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func openJSONL(t *testing.T, path string) Database {
	t.Helper()
	db, err := NewJSONLFactory().CreateDatabase(context.Background(), Args{"path": path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestJSONLScenario(t *testing.T) {
	path := writeFile(t, "cities.jsonl", strings.Join(cities, "\n")+"\n")
	db := openJSONL(t, path)

	recs, err := Collect(context.Background(), db.Select(query.New(map[string]interface{}{"city": "Roma"})))
	require.NoError(t, err)
	assert.Equal(t, []parser.Record{
		{"city": "Roma", "pop": json.Number("3")},
		{"city": "Roma", "pop": json.Number("1")},
	}, recs)
}

func TestJSONLBlankLinesAreNotUnits(t *testing.T) {
	path := writeFile(t, "blank.jsonl", "\n"+cities[0]+"\n   \n\t\n"+cities[1]+"\r\n\r\n"+cities[2]+"\n\n")
	db := openJSONL(t, path)

	cur := db.Select(query.New(map[string]interface{}{"city": "Milano"}))
	defer cur.Close()
	ctx := context.Background()

	require.True(t, cur.Next(ctx))
	assert.Equal(t, 2, cur.Current())
	require.False(t, cur.Next(ctx))
	require.NoError(t, cur.Err())
	assert.Equal(t, 3, cur.Current())
}

func TestJSONLLargeIntegers(t *testing.T) {
	path := writeFile(t, "ids.jsonl", `{"id":9007199254740993}`+"\n"+`{"id":9007199254740992}`+"\n")
	db := openJSONL(t, path)

	recs, err := Collect(context.Background(), db.Select(query.New(map[string]interface{}{"id": int64(9007199254740992)})))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, json.Number("9007199254740992"), recs[0]["id"])

	recs, err = Collect(context.Background(), db.Select(query.Empty))
	require.NoError(t, err)
	assert.Equal(t, json.Number("9007199254740993"), recs[0]["id"])
}

func TestJSONLFactoryIdentity(t *testing.T) {
	f := NewJSONLFactory()
	db, err := f.CreateDatabase(context.Background(), Args{"path": writeFile(t, "a.jsonl", "")})
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, JSONLBackend, f.Name())
	assert.Same(t, f, db.Factory())
}

func TestJSONLCRLF(t *testing.T) {
	path := writeFile(t, "crlf.jsonl", strings.Join(cities, "\r\n"))
	db := openJSONL(t, path)

	recs, err := Collect(context.Background(), db.Select(query.Empty))
	require.NoError(t, err)
	assert.Len(t, recs, 3)
}

func TestJSONLMalformedLine(t *testing.T) {
	path := writeFile(t, "bad.jsonl", cities[0]+"\nnot-json\n"+cities[2]+"\n")
	db := openJSONL(t, path)

	cur := db.Select(query.Empty)
	defer cur.Close()

	ctx := context.Background()
	require.True(t, cur.Next(ctx))
	require.False(t, cur.Next(ctx))

	var de *DecodeError
	require.True(t, errors.As(cur.Err(), &de))
	assert.Equal(t, 2, de.Position)
	assert.Equal(t, "not-json", de.Unit)
}

func TestJSONLSourceUnavailable(t *testing.T) {
	f := NewJSONLFactory()
	ctx := context.Background()

	_, err := f.CreateDatabase(ctx, Args{"path": filepath.Join(t.TempDir(), "missing.jsonl")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSourceUnavailable))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	_, err = f.CreateDatabase(ctx, Args{"path": t.TempDir()})
	assert.True(t, errors.Is(err, ErrSourceUnavailable))

	_, err = f.CreateCursor(ctx, Args{"path": filepath.Join(t.TempDir(), "missing.jsonl")}, query.Empty)
	assert.True(t, errors.Is(err, ErrSourceUnavailable))
}

func TestJSONLInvalidArgs(t *testing.T) {
	f := NewJSONLFactory()
	ctx := context.Background()

	for _, args := range []Args{
		nil,
		{},
		{"path": ""},
		{"path": "x.jsonl", "table": "docs"},
		{"path": "x.jsonl", "max_line_size": -1},
		{"path": "x.jsonl", "max_line_size": "many"},
	} {
		_, err := f.CreateDatabase(ctx, args)
		assert.True(t, errors.Is(err, ErrInvalidArgs), "%v: %v", args, err)
	}
}

func TestJSONLWeakArgs(t *testing.T) {
	path := writeFile(t, "long.jsonl", `{"name":"`+strings.Repeat("x", 100)+`"}`+"\n")
	db, err := NewJSONLFactory().CreateDatabase(context.Background(), Args{"path": path, "max_line_size": "32"})
	require.NoError(t, err)
	defer db.Close()

	cur := db.Select(query.Empty)
	assert.False(t, cur.Next(context.Background()))
	assert.Error(t, cur.Err())
	assert.False(t, errors.Is(cur.Err(), ErrDecode))
}

func TestJSONLFileRemovedAfterOpen(t *testing.T) {
	path := writeFile(t, "gone.jsonl", cities[0]+"\n")
	db := openJSONL(t, path)

	// Select does not touch the file
	cur := db.Select(query.Empty)
	require.NoError(t, os.Remove(path))

	assert.False(t, cur.Next(context.Background()))
	assert.True(t, errors.Is(cur.Err(), ErrSourceUnavailable))
}

func TestJSONLSelectAfterClose(t *testing.T) {
	path := writeFile(t, "c.jsonl", cities[0]+"\n")
	db := openJSONL(t, path)
	require.NoError(t, db.Close())
	require.NoError(t, db.Close())

	cur := db.Select(query.Empty)
	assert.False(t, cur.Next(context.Background()))
	assert.True(t, errors.Is(cur.Err(), ErrClosed))
}

func TestJSONLIndependentCursors(t *testing.T) {
	path := writeFile(t, "cities.jsonl", strings.Join(cities, "\n")+"\n")
	db := openJSONL(t, path)
	ctx := context.Background()

	roma := db.Select(query.New(map[string]interface{}{"city": "Roma"}))
	all := db.Select(query.Empty)
	defer roma.Close()
	defer all.Close()

	// interleave the two cursors, each keeps its own position
	require.True(t, all.Next(ctx))
	require.True(t, all.Next(ctx))
	assert.Equal(t, "Milano", all.Record()["city"])

	require.True(t, roma.Next(ctx))
	assert.Equal(t, json.Number("3"), roma.Record()["pop"])
	assert.Equal(t, 1, roma.Current())

	require.True(t, all.Next(ctx))
	assert.Equal(t, json.Number("1"), all.Record()["pop"])
	require.True(t, roma.Next(ctx))
	assert.Equal(t, json.Number("1"), roma.Record()["pop"])

	assert.False(t, all.Next(ctx))
	assert.False(t, roma.Next(ctx))
}

func TestJSONLConcurrentCursors(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 500; i++ {
		sb.WriteString(cities[i%len(cities)])
		sb.WriteByte('\n')
	}
	db := openJSONL(t, writeFile(t, "many.jsonl", sb.String()))

	queries := []query.Query{
		query.Empty,
		query.New(map[string]interface{}{"city": "Roma"}),
		query.New(map[string]interface{}{"city": "Milano"}),
		query.New(map[string]interface{}{"city": "Roma", "pop": 1}),
	}
	expected := []int{500, 333, 167, 166}

	for round := 0; round < 4; round++ {
		counts := make([]int, len(queries))
		errs := make([]error, len(queries))
		var wg sync.WaitGroup
		for i, q := range queries {
			wg.Add(1)
			go func(i int, q query.Query) {
				defer wg.Done()
				recs, err := Collect(context.Background(), db.Select(q))
				counts[i] = len(recs)
				errs[i] = err
			}(i, q)
		}
		wg.Wait()

		for i := range queries {
			require.NoError(t, errs[i])
		}
		assert.Equal(t, expected, counts)
	}
}

func TestJSONLCreateCursorOwnsDatabase(t *testing.T) {
	path := writeFile(t, "cities.jsonl", strings.Join(cities, "\n"))
	cur, err := NewJSONLFactory().CreateCursor(context.Background(), Args{"path": path}, query.New(map[string]interface{}{"city": "Milano"}))
	require.NoError(t, err)

	oc, ok := cur.(*ownedCursor)
	require.True(t, ok)

	recs, err := Collect(context.Background(), cur)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, json.Number("5"), recs[0]["pop"])

	// Collect closed the cursor and the database with it
	assert.True(t, oc.db.(*JSONLDatabase).isClosed())
}

func TestJSONLGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cities.jsonl.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := gzip.NewWriter(f)
	_, err = zw.Write([]byte(strings.Join(cities, "\n") + "\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	db := openJSONL(t, path)
	recs, err := Collect(context.Background(), db.Select(query.New(map[string]interface{}{"city": "Roma"})))
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestJSONLGzipBadHeader(t *testing.T) {
	path := writeFile(t, "plain.jsonl.gz", cities[0])
	_, err := NewJSONLFactory().CreateDatabase(context.Background(), Args{"path": path})
	assert.True(t, errors.Is(err, ErrSourceUnavailable))
}
