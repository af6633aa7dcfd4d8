package parser

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, lr *LineReader) []string {
	t.Helper()
	var lines []string
	for {
		line, ok, err := lr.Next()
		require.NoError(t, err)
		if !ok {
			return lines
		}
		lines = append(lines, string(line))
	}
}

func TestLineReader(t *testing.T) {
	lr := NewLineReader(strings.NewReader("{\"a\":1}\n{\"a\":2}\n"), 0)
	assert.Equal(t, []string{`{"a":1}`, `{"a":2}`}, readAll(t, lr))

	// exhaustion is permanent
	line, ok, err := lr.Next()
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, line)
}

func TestLineReaderLineEndings(t *testing.T) {
	lr := NewLineReader(strings.NewReader("{\"a\":1}\r\n{\"a\":2}\r\n{\"a\":3}"), 0)
	assert.Equal(t, []string{`{"a":1}`, `{"a":2}`, `{"a":3}`}, readAll(t, lr))
}

func TestLineReaderEmptyLines(t *testing.T) {
	content := "\n{\"name\": \"Alice\"}\n\n   \n\t\n{\"name\": \"Bob\"}\n\n"
	lr := NewLineReader(strings.NewReader(content), 0)
	assert.Equal(t, []string{`{"name": "Alice"}`, `{"name": "Bob"}`}, readAll(t, lr))
}

func TestLineReaderEmptyInput(t *testing.T) {
	lr := NewLineReader(strings.NewReader(""), 0)
	assert.Empty(t, readAll(t, lr))
}

func TestLineReaderLineTooLong(t *testing.T) {
	lr := NewLineReader(strings.NewReader(strings.Repeat("x", 128)+"\n"), 16)
	_, ok, err := lr.Next()
	assert.False(t, ok)
	assert.Error(t, err)

	// the failure is terminal as well
	_, ok, err = lr.Next()
	assert.False(t, ok)
	assert.NoError(t, err)
}

func TestLineReaderClosesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{\"a\":1}\n"), 0644))

	f, err := os.Open(path)
	require.NoError(t, err)

	lr := NewLineReader(f, 0)
	require.NoError(t, lr.Close())
	require.NoError(t, lr.Close())

	_, err = f.Stat()
	assert.Error(t, err, "file must be closed")

	_, ok, err := lr.Next()
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestDecodeJSON(t *testing.T) {
	rec, err := DecodeJSON([]byte(`{"city":"Roma","pop":3,"tags":["x"],"geo":{"lat":41.9}}`))
	require.NoError(t, err)
	assert.Equal(t, Record{
		"city": "Roma",
		"pop":  json.Number("3"),
		"tags": []interface{}{"x"},
		"geo":  map[string]interface{}{"lat": json.Number("41.9")},
	}, rec)
}

func TestDecodeJSONKeepsNumberLiterals(t *testing.T) {
	line := `{"id":9007199254740993,"ratio":0.1000000000000000055511151231257827}`
	rec, err := DecodeJSON([]byte(line))
	require.NoError(t, err)
	assert.Equal(t, json.Number("9007199254740993"), rec["id"])

	// written back unchanged
	var buf bytes.Buffer
	w, err := NewWriter(&buf, FormatJSONL, false)
	require.NoError(t, err)
	require.NoError(t, w.Write(rec))
	assert.Equal(t, line+"\n", buf.String())
}

func TestDecodeJSONMalformed(t *testing.T) {
	inputs := []string{
		"not-json",
		"{\"name\": \"Alice\"",
		"[1,2]",
		"\"str\"",
		"42",
		"null",
		"{\"a\":1} {\"b\":2}",
		"",
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			rec, err := DecodeJSON([]byte(in))
			assert.Error(t, err)
			assert.Nil(t, rec)
		})
	}
}

func TestDecodeJSONErrorCause(t *testing.T) {
	_, err := DecodeJSON([]byte("not-json"))
	require.Error(t, err)

	var se *json.SyntaxError
	assert.True(t, errors.As(err, &se))
	assert.IsType(t, &json.SyntaxError{}, errors.Cause(err))
}

func TestWriterJSONL(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, FormatJSONL, false)
	require.NoError(t, err)

	require.NoError(t, w.Write(Record{"a": 1}))
	require.NoError(t, w.Write(Record{"b": "x"}))
	require.NoError(t, w.Close())

	assert.Equal(t, "{\"a\":1}\n{\"b\":\"x\"}\n", buf.String())
	assert.Equal(t, 2, w.Count())
}

func TestWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, FormatJSON, false)
	require.NoError(t, err)

	require.NoError(t, w.Write(Record{"a": 1}))
	require.NoError(t, w.Write(Record{"b": "x"}))
	require.NoError(t, w.Close())
	assert.Equal(t, "[{\"a\":1},{\"b\":\"x\"}]\n", buf.String())
}

func TestWriterJSONPretty(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, FormatJSON, true)
	require.NoError(t, err)

	require.NoError(t, w.Write(Record{"a": 1}))
	require.NoError(t, w.Write(Record{"b": 2}))
	require.NoError(t, w.Close())
	assert.Equal(t, "[\n  {\n    \"a\": 1\n  },\n  {\n    \"b\": 2\n  }\n]\n", buf.String())
}

func TestWriterJSONEmpty(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, FormatJSON, true)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.Equal(t, "[]\n", buf.String())
}

func TestWriterUnknownFormat(t *testing.T) {
	_, err := NewWriter(&bytes.Buffer{}, "csv", false)
	assert.Error(t, err)
}
